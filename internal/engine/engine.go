// Package engine wires the log store, the query selector, the worker pool
// and the sorter into the single object the UI, the ingest pipeline and
// the HTTP API talk to.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/apyr/internal/logstore"
	"github.com/tinytelemetry/apyr/internal/model"
	"github.com/tinytelemetry/apyr/internal/search"
)

// ErrQuitting is returned by operations refused because shutdown has been
// requested.
var ErrQuitting = errors.New("engine: quitting")

// Config controls the search machinery.
type Config struct {
	Workers     int // scan goroutines
	ChunkSize   int // lines per job on a full rescan
	MinQueryLen int // shorter queries disable matching
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		Workers:     model.DefaultWorkers,
		ChunkSize:   search.DefaultChunkSize,
		MinQueryLen: search.DefaultMinQueryLen,
	}
}

// PanicError reports a component that panicked. The engine turns panics in
// its goroutines into this error so the caller can restore the terminal
// before exiting.
type PanicError struct {
	Component string
	Value     any
	Stack     []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s panicked: %v", e.Component, e.Value)
}

// Stats is a point-in-time summary of engine state.
type Stats struct {
	Lines          int
	Bytes          int64
	Matches        int
	Version        uint64
	Query          string
	QueryState     search.QueryState
	PendingJobs    int
	PendingBatches int
	Workers        int
	Scanned        int64
	MergedBatches  uint64
	StaleBatches   uint64
	Quitting       bool
}

// Engine is the shared state of the pager. All methods are safe for
// concurrent use.
type Engine struct {
	cfg Config

	store      *logstore.Store
	selector   *search.Selector
	matches    *search.MatchList
	jobs       *search.Queue[search.Job]
	batches    *search.Queue[search.Batch]
	dispatcher *search.Dispatcher
	pool       *search.WorkerPool
	sorter     *search.Sorter

	quitting atomic.Bool
	onChange atomic.Pointer[func()]

	runOnce sync.Once
}

// New builds an engine. Optional config overrides the defaults; zero
// fields fall back to their default values.
func New(conf ...Config) *Engine {
	cfg := DefaultConfig()
	if len(conf) > 0 {
		c := conf[0]
		if c.Workers > 0 {
			cfg.Workers = c.Workers
		}
		if c.ChunkSize > 0 {
			cfg.ChunkSize = c.ChunkSize
		}
		if c.MinQueryLen > 0 {
			cfg.MinQueryLen = c.MinQueryLen
		}
	}

	e := &Engine{
		cfg:      cfg,
		store:    logstore.New(),
		selector: search.NewSelector(cfg.MinQueryLen),
		matches:  search.NewMatchList(),
		jobs:     search.NewQueue[search.Job](),
		batches:  search.NewQueue[search.Batch](),
	}
	e.dispatcher = search.NewDispatcher(e.jobs, cfg.ChunkSize)
	e.pool = search.NewWorkerPool(cfg.Workers, e.jobs, e.batches, e.store, e.selector)
	e.sorter = search.NewSorter(e.batches, e.matches, e.notify)
	return e
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Run starts the workers and the sorter and blocks until ctx is done or a
// component fails. A panic in any component is recovered, reported as a
// *PanicError and raises the quit flag. Run may only be called once.
func (e *Engine) Run(ctx context.Context) error {
	started := false
	e.runOnce.Do(func() { started = true })
	if !started {
		return errors.New("engine: already running")
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < e.pool.Size(); i++ {
		g.Go(e.guard(gctx, fmt.Sprintf("worker-%d", i), e.pool.Work))
	}
	g.Go(e.guard(gctx, "sorter", e.sorter.Run))

	log.Printf("engine: started workers=%d chunk=%d", e.pool.Size(), e.cfg.ChunkSize)
	err := g.Wait()
	if err != nil {
		log.Printf("engine: stopped: %v", err)
	}
	return err
}

func (e *Engine) guard(ctx context.Context, name string, fn func(context.Context) error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &PanicError{Component: name, Value: r, Stack: debug.Stack()}
				log.Printf("engine: %s panicked: %v\n%s", name, r, debug.Stack())
				e.RequestQuit()
			}
		}()
		return fn(ctx)
	}
}

// SubmitQuery publishes text as the new query and returns its version.
// The match list is cleared before the call returns, and every existing
// line is rescanned in chunks.
func (e *Engine) SubmitQuery(text string) uint64 {
	version := e.matches.Reset(func() uint64 {
		return e.selector.Set(text).Version
	})
	n := e.store.Len()
	jobs := e.dispatcher.Dispatch(0, n)
	log.Printf("engine: query v%d %q rescan lines=%d jobs=%d", version, text, n, jobs)
	e.notify()
	return version
}

// Lines returns a read-only view of lines [start, end), clamped to the
// current length.
func (e *Engine) Lines(start, end int) []string {
	return e.store.Range(start, end)
}

// Line returns a single line.
func (e *Engine) Line(i int) (string, bool) {
	return e.store.Line(i)
}

// Matches returns a copy of the match list in ascending line order.
func (e *Engine) Matches() []search.Match {
	return e.matches.Snapshot()
}

// MatchLines returns the matching line numbers in ascending order.
func (e *Engine) MatchLines() []int {
	return e.matches.Lines()
}

// LogLen returns the number of stored lines.
func (e *Engine) LogLen() int {
	return e.store.Len()
}

// IsQuitting reports whether shutdown was requested.
func (e *Engine) IsQuitting() bool {
	return e.quitting.Load()
}

// RequestQuit raises the quit flag. It is idempotent.
func (e *Engine) RequestQuit() {
	if e.quitting.CompareAndSwap(false, true) {
		log.Printf("engine: quit requested")
		e.notify()
	}
}

// AppendLine stores text and returns its index. Scanning the new line is
// the caller's job via NotifyNewRange.
func (e *Engine) AppendLine(text string) int {
	idx := e.store.Append(text)
	e.notify()
	return idx
}

// NotifyNewRange schedules lines [start, end) for scanning.
func (e *Engine) NotifyNewRange(start, end int) {
	e.dispatcher.Dispatch(start, end)
}

// Criteria returns the criteria currently in force.
func (e *Engine) Criteria() search.Criteria {
	return e.selector.Snapshot()
}

// Query returns the last submitted query text and what it compiled to.
func (e *Engine) Query() (string, search.QueryState) {
	return e.selector.Query()
}

// Settled reports whether every dispatched job has been scanned and every
// resulting batch merged.
func (e *Engine) Settled() bool {
	return e.jobs.Pending() == 0 && e.batches.Pending() == 0
}

// OnChange registers fn to be called after the store grows, the match list
// changes, or quit is requested. fn runs on engine goroutines and must not
// block. Passing nil removes the hook.
func (e *Engine) OnChange(fn func()) {
	if fn == nil {
		e.onChange.Store(nil)
		return
	}
	e.onChange.Store(&fn)
}

func (e *Engine) notify() {
	if fn := e.onChange.Load(); fn != nil {
		(*fn)()
	}
}

// Stats returns a summary of engine state.
func (e *Engine) Stats() Stats {
	query, state := e.selector.Query()
	merged, stale := e.matches.Counters()
	return Stats{
		Lines:          e.store.Len(),
		Bytes:          e.store.Bytes(),
		Matches:        e.matches.Len(),
		Version:        e.selector.Version(),
		Query:          query,
		QueryState:     state,
		PendingJobs:    e.jobs.Pending(),
		PendingBatches: e.batches.Pending(),
		Workers:        e.pool.Size(),
		Scanned:        e.pool.Scanned(),
		MergedBatches:  merged,
		StaleBatches:   stale + uint64(e.pool.StaleDrops()),
		Quitting:       e.IsQuitting(),
	}
}
