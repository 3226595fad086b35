// Package logstore holds the ordered, append-only set of lines the pager
// displays and searches.
package logstore

import "sync"

// Store is an append-only sequence of log lines addressed by 0-based index.
// A line, once appended, is never modified or removed, so an index stays
// valid for the lifetime of the store. One writer and any number of
// concurrent readers are supported.
type Store struct {
	mu    sync.RWMutex
	lines []string
	bytes int64
}

// New creates an empty store. An optional capacity hint pre-sizes the
// backing slice.
func New(capacity ...int) *Store {
	n := 0
	if len(capacity) > 0 && capacity[0] > 0 {
		n = capacity[0]
	}
	return &Store{lines: make([]string, 0, n)}
}

// Append adds line at the end of the store and returns its index.
func (s *Store) Append(line string) int {
	s.mu.Lock()
	idx := len(s.lines)
	s.lines = append(s.lines, line)
	s.bytes += int64(len(line))
	s.mu.Unlock()
	return idx
}

// Len returns the number of lines appended so far.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lines)
}

// Bytes returns the total size of all stored lines.
func (s *Store) Bytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bytes
}

// Line returns the line at index i.
func (s *Store) Line(i int) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.lines) {
		return "", false
	}
	return s.lines[i], true
}

// Range returns the lines in [start, end). The range is clamped to the
// current length; an empty or inverted range yields nil.
//
// The returned slice shares storage with the store and must be treated as
// read-only. Its capacity is capped so appending to it cannot overwrite
// lines added later, and elements below the current length are never
// written again, so the slice stays valid after the lock is released.
func (s *Store) Range(start, end int) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if start < 0 {
		start = 0
	}
	if end > len(s.lines) {
		end = len(s.lines)
	}
	if start >= end {
		return nil
	}
	return s.lines[start:end:end]
}
