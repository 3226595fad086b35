package search

import (
	"context"
	"sync/atomic"
)

// LineSource is the read side of the log store used by workers.
type LineSource interface {
	Range(start, end int) []string
}

// CriteriaSource publishes the criteria workers match against.
type CriteriaSource interface {
	Snapshot() Criteria
	Version() uint64
}

// WorkerPool scans jobs from the job queue and pushes one batch per job
// with matches to the batch queue. Each worker is an independent loop
// started with Work; the pool only holds shared state and counters.
type WorkerPool struct {
	jobs     *Queue[Job]
	batches  *Queue[Batch]
	lines    LineSource
	criteria CriteriaSource
	size     int

	scanned atomic.Int64
	stale   atomic.Int64
}

// NewWorkerPool creates a pool of size workers.
func NewWorkerPool(size int, jobs *Queue[Job], batches *Queue[Batch], lines LineSource, criteria CriteriaSource) *WorkerPool {
	if size < 1 {
		size = 1
	}
	return &WorkerPool{
		jobs:     jobs,
		batches:  batches,
		lines:    lines,
		criteria: criteria,
		size:     size,
	}
}

// Size returns the number of workers the pool is meant to run.
func (p *WorkerPool) Size() int { return p.size }

// Work runs one worker loop until ctx is done or the job queue closes.
func (p *WorkerPool) Work(ctx context.Context) error {
	for {
		job, ok := p.jobs.Pop(ctx)
		if !ok {
			return nil
		}
		if batch, ok := p.Scan(job); ok {
			p.batches.Push(batch)
		}
		p.jobs.Done()
	}
}

// Scan evaluates job against the criteria current at call time. It
// returns false when there is nothing to report: no active pattern, no
// matching lines, or a newer version was published while scanning.
func (p *WorkerPool) Scan(job Job) (Batch, bool) {
	crit := p.criteria.Snapshot()
	if !crit.Active() {
		return Batch{}, false
	}

	lines := p.lines.Range(job.Start, job.End)
	p.scanned.Add(int64(len(lines)))

	var matches []Match
	for i, line := range lines {
		if crit.Match(line) {
			matches = append(matches, Match{Line: job.Start + i, Version: crit.Version})
		}
	}
	if len(matches) == 0 {
		return Batch{}, false
	}
	if p.criteria.Version() != crit.Version {
		p.stale.Add(1)
		return Batch{}, false
	}
	return Batch{Version: crit.Version, Matches: matches}, true
}

// Scanned returns the number of lines evaluated so far.
func (p *WorkerPool) Scanned() int64 { return p.scanned.Load() }

// StaleDrops returns the number of batches dropped by workers because the
// version moved on before they were sent.
func (p *WorkerPool) StaleDrops() int64 { return p.stale.Load() }
