package archive

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinytelemetry/apyr/internal/model"
)

const (
	// DefaultBatchSize is the number of records that triggers an immediate flush.
	DefaultBatchSize = 2000

	// DefaultFlushInterval is how often pending records are flushed.
	DefaultFlushInterval = 100 * time.Millisecond

	// DefaultFlushQueueSize is the number of batches that can be queued for async flushing.
	DefaultFlushQueueSize = 64
)

// BatchWriter persists a batch of line records.
type BatchWriter interface {
	InsertBatch(records []model.LineRecord) error
}

// InsertBufferConfig holds tunable parameters for the insert buffer.
type InsertBufferConfig struct {
	BatchSize      int
	FlushInterval  time.Duration
	FlushQueueSize int
}

// InsertBuffer batches records and flushes them asynchronously. Add never
// blocks on database IO. Only the tick loop hands batches to the flush
// worker; when the flush queue is full it writes the batch inline.
type InsertBuffer struct {
	writer        BatchWriter
	mu            sync.Mutex
	pending       []model.LineRecord
	flushChan     chan []model.LineRecord
	maxBatch      int
	flushInterval time.Duration
	done          chan struct{}
	kick          chan struct{}
	wg            sync.WaitGroup
	tickWg        sync.WaitGroup
	stopOnce      sync.Once

	flushed           atomic.Int64
	backpressureCount atomic.Int64
	lastBPLog         atomic.Int64
}

// NewInsertBuffer creates a buffer flushing into writer.
func NewInsertBuffer(writer BatchWriter, conf ...InsertBufferConfig) *InsertBuffer {
	batchSize := DefaultBatchSize
	flushInterval := DefaultFlushInterval
	flushQueueSize := DefaultFlushQueueSize
	if len(conf) > 0 {
		if conf[0].BatchSize > 0 {
			batchSize = conf[0].BatchSize
		}
		if conf[0].FlushInterval > 0 {
			flushInterval = conf[0].FlushInterval
		}
		if conf[0].FlushQueueSize > 0 {
			flushQueueSize = conf[0].FlushQueueSize
		}
	}

	b := &InsertBuffer{
		writer:        writer,
		pending:       make([]model.LineRecord, 0, batchSize),
		flushChan:     make(chan []model.LineRecord, flushQueueSize),
		maxBatch:      batchSize,
		flushInterval: flushInterval,
		done:          make(chan struct{}),
		kick:          make(chan struct{}, 1),
	}

	b.wg.Add(1)
	go b.flushWorker()

	b.wg.Add(1)
	b.tickWg.Add(1)
	go b.tickLoop()

	return b
}

func (b *InsertBuffer) tickLoop() {
	defer b.wg.Done()
	defer b.tickWg.Done()
	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.drainPending()
		case <-b.kick:
			b.drainPending()
		case <-b.done:
			b.drainPending()
			return
		}
	}
}

// logBackpressure logs at most once every 10 seconds.
func (b *InsertBuffer) logBackpressure() {
	count := b.backpressureCount.Add(1)
	now := time.Now().Unix()
	last := b.lastBPLog.Load()
	if now-last >= 10 && b.lastBPLog.CompareAndSwap(last, now) {
		log.Printf("archive: backpressure, %d inline flushes (flush queue full)", count)
	}
}

func (b *InsertBuffer) drainPending() {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	batch := b.pending
	b.pending = make([]model.LineRecord, 0, b.maxBatch)
	b.mu.Unlock()

	select {
	case b.flushChan <- batch:
	default:
		b.logBackpressure()
		if err := b.flushBatch(batch); err != nil {
			log.Printf("archive: flush error (inline): %v", err)
		}
	}
}

func (b *InsertBuffer) flushWorker() {
	defer b.wg.Done()
	for batch := range b.flushChan {
		if err := b.flushBatch(batch); err != nil {
			log.Printf("archive: flush error: %v", err)
		}
	}
}

// Add queues a record for insertion. Records added after Stop are dropped.
func (b *InsertBuffer) Add(record model.LineRecord) {
	select {
	case <-b.done:
		return
	default:
	}

	b.mu.Lock()
	b.pending = append(b.pending, record)
	full := len(b.pending) >= b.maxBatch
	b.mu.Unlock()

	if full {
		select {
		case b.kick <- struct{}{}:
		default:
		}
	}
}

// Flushed returns the number of records handed to the writer so far.
func (b *InsertBuffer) Flushed() int64 { return b.flushed.Load() }

// Stop flushes remaining records and waits for all writes to complete.
// It is safe to call more than once.
func (b *InsertBuffer) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		// the tick loop's final drain must land before the queue closes
		b.tickWg.Wait()
		close(b.flushChan)
		b.wg.Wait()
	})
}

func (b *InsertBuffer) flushBatch(batch []model.LineRecord) error {
	if len(batch) == 0 {
		return nil
	}
	if err := b.writer.InsertBatch(batch); err != nil {
		return err
	}
	b.flushed.Add(int64(len(batch)))
	return nil
}
