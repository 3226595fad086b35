// Package search implements incremental regex matching over the log store:
// versioned criteria, chunked scan jobs, a worker pool and the sorter that
// merges worker results into an ordered match list.
package search

import (
	"regexp"
	"sync"
	"sync/atomic"
	"unicode/utf8"
)

// DefaultMinQueryLen is the shortest query that is compiled. Anything
// shorter disables matching.
const DefaultMinQueryLen = 3

// QueryState describes what the current query text compiled to.
type QueryState int

const (
	// QueryDisabled means the query is shorter than the minimum length.
	QueryDisabled QueryState = iota
	// QueryInvalid means the query failed to compile as a regex.
	QueryInvalid
	// QueryActive means the query compiled and is being matched.
	QueryActive
)

func (s QueryState) String() string {
	switch s {
	case QueryDisabled:
		return "disabled"
	case QueryInvalid:
		return "invalid"
	case QueryActive:
		return "active"
	default:
		return "unknown"
	}
}

// Criteria is the pattern in force together with the version it was
// published under. A nil Pattern means no filter is active and nothing
// matches. Criteria values are immutable once published.
type Criteria struct {
	Pattern *regexp.Regexp
	Version uint64
}

// Active reports whether the criteria carry a pattern.
func (c Criteria) Active() bool { return c.Pattern != nil }

// Match reports whether line matches the pattern. Inactive criteria never
// match.
func (c Criteria) Match(line string) bool {
	return c.Pattern != nil && c.Pattern.MatchString(line)
}

// Compile turns query text into a pattern. Queries shorter than minLen
// runes, and queries that are not valid regular expressions, produce a nil
// pattern.
func Compile(text string, minLen int) (*regexp.Regexp, QueryState) {
	if utf8.RuneCountInString(text) < minLen {
		return nil, QueryDisabled
	}
	re, err := regexp.Compile(text)
	if err != nil {
		return nil, QueryInvalid
	}
	return re, QueryActive
}

// Selector owns the published Criteria. Readers take a consistent snapshot
// under a read lock; Set replaces the whole value and bumps the version.
type Selector struct {
	mu      sync.RWMutex
	current Criteria
	query   string
	state   QueryState
	minLen  int

	// version mirrors current.Version for lock-free staleness checks.
	version atomic.Uint64
}

// NewSelector creates a selector with no active pattern at version 0.
func NewSelector(minLen int) *Selector {
	if minLen < 0 {
		minLen = 0
	}
	return &Selector{minLen: minLen}
}

// Set compiles text and publishes it under the next version. The version
// is bumped even when the text does not compile, so results computed under
// the previous pattern become stale.
func (s *Selector) Set(text string) Criteria {
	re, state := Compile(text, s.minLen)

	s.mu.Lock()
	defer s.mu.Unlock()
	next := Criteria{Pattern: re, Version: s.current.Version + 1}
	s.current = next
	s.query = text
	s.state = state
	s.version.Store(next.Version)
	return next
}

// Snapshot returns the criteria in force.
func (s *Selector) Snapshot() Criteria {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Version returns the latest published version without taking the lock.
func (s *Selector) Version() uint64 {
	return s.version.Load()
}

// Query returns the raw text last passed to Set and what it compiled to.
func (s *Selector) Query() (string, QueryState) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query, s.state
}
