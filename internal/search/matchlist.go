package search

import (
	"cmp"
	"slices"
	"sync"
)

// MatchList is the sorted, de-duplicated set of matching line numbers for
// the newest version seen. Batches tagged with an older version are
// dropped.
type MatchList struct {
	mu      sync.Mutex
	matches []Match
	version uint64

	merged    uint64
	discarded uint64
}

// NewMatchList creates an empty list at version 0.
func NewMatchList() *MatchList {
	return &MatchList{}
}

// Merge folds b into the list. A batch older than the newest version seen
// is discarded. Each match is inserted at its sorted position unless its
// line is already present. Merge reports whether the list changed.
func (l *MatchList) Merge(b Batch) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b.Version < l.version {
		l.discarded++
		return false
	}
	if b.Version > l.version {
		l.version = b.Version
	}
	l.merged++

	changed := false
	for _, m := range b.Matches {
		i, found := slices.BinarySearchFunc(l.matches, m.Line, compareLine)
		if found {
			continue
		}
		l.matches = slices.Insert(l.matches, i, m)
		changed = true
	}
	return changed
}

// Reset empties the list and runs publish while the list lock is held.
// publish returns the version it made current; batches older than that
// are rejected from then on. No reader can observe the new version next to
// matches from an earlier one.
func (l *MatchList) Reset(publish func() uint64) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	v := publish()
	l.matches = nil
	if v > l.version {
		l.version = v
	}
	return v
}

// Snapshot returns a copy of the current matches in ascending line order.
func (l *MatchList) Snapshot() []Match {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.matches)
}

// Lines returns the matching line numbers in ascending order.
func (l *MatchList) Lines() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]int, len(l.matches))
	for i, m := range l.matches {
		out[i] = m.Line
	}
	return out
}

// Len returns the number of matches.
func (l *MatchList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.matches)
}

// Version returns the newest version the list has accepted.
func (l *MatchList) Version() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.version
}

// Counters returns how many batches were merged and how many were dropped
// as stale.
func (l *MatchList) Counters() (merged, discarded uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.merged, l.discarded
}

func compareLine(m Match, line int) int {
	return cmp.Compare(m.Line, line)
}
