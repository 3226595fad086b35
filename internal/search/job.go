package search

// DefaultChunkSize is the number of lines per scan job when a full rescan
// is dispatched.
const DefaultChunkSize = 10

// Job asks a worker to scan lines [Start, End) against whatever criteria
// are current when the worker picks it up.
type Job struct {
	Start int
	End   int
}

// Len returns the number of lines covered by the job.
func (j Job) Len() int {
	if j.End <= j.Start {
		return 0
	}
	return j.End - j.Start
}

// Match records that Line matched the pattern published under Version.
type Match struct {
	Line    int
	Version uint64
}

// Batch is the result of one job. Every match in a batch shares Version,
// and Matches is in ascending line order.
type Batch struct {
	Version uint64
	Matches []Match
}

// Chunks splits [start, end) into consecutive jobs of at most size lines.
func Chunks(start, end, size int) []Job {
	if size < 1 {
		size = 1
	}
	if start < 0 {
		start = 0
	}
	if end <= start {
		return nil
	}
	jobs := make([]Job, 0, (end-start+size-1)/size)
	for lo := start; lo < end; lo += size {
		hi := lo + size
		if hi > end {
			hi = end
		}
		jobs = append(jobs, Job{Start: lo, End: hi})
	}
	return jobs
}

// Dispatcher turns line ranges into scan jobs on the shared job queue.
type Dispatcher struct {
	jobs      *Queue[Job]
	chunkSize int
}

// NewDispatcher creates a dispatcher feeding jobs.
func NewDispatcher(jobs *Queue[Job], chunkSize int) *Dispatcher {
	if chunkSize < 1 {
		chunkSize = DefaultChunkSize
	}
	return &Dispatcher{jobs: jobs, chunkSize: chunkSize}
}

// Dispatch enqueues jobs covering [start, end) and returns how many were
// queued.
func (d *Dispatcher) Dispatch(start, end int) int {
	jobs := Chunks(start, end, d.chunkSize)
	if !d.jobs.PushAll(jobs) {
		return 0
	}
	return len(jobs)
}
