package logsource

import (
	"context"
	"log"
	"sync"

	"github.com/tinytelemetry/apyr/internal/model"
)

// DefaultMuxBuffer is the default channel buffer size for the source multiplexer.
const DefaultMuxBuffer = 50_000

// Multiplexer merges multiple log sources into a single read-only stream.
// Lines from one source keep their relative order; lines from different
// sources interleave in arrival order. The output closes once every
// source has closed or Stop is called.
type Multiplexer struct {
	ctx    context.Context
	cancel context.CancelFunc

	sources []LogSource
	lines   chan model.IngestEnvelope

	startOnce sync.Once
	stopOnce  sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewMultiplexer creates a multiplexer over sources. buffer <= 0 selects
// DefaultMuxBuffer.
func NewMultiplexer(parent context.Context, sources []LogSource, buffer int) *Multiplexer {
	if buffer <= 0 {
		buffer = DefaultMuxBuffer
	}
	ctx, cancel := context.WithCancel(parent)
	return &Multiplexer{
		ctx:     ctx,
		cancel:  cancel,
		sources: sources,
		lines:   make(chan model.IngestEnvelope, buffer),
	}
}

// Start begins forwarding. With no sources the output closes immediately.
func (m *Multiplexer) Start() {
	m.startOnce.Do(func() {
		if len(m.sources) == 0 {
			m.closeOutput()
			return
		}

		for _, src := range m.sources {
			m.wg.Add(1)
			go m.forward(src)
		}

		go func() {
			m.wg.Wait()
			m.closeOutput()
		}()
	})
}

// Stop cancels forwarding, stops every source and closes the output.
func (m *Multiplexer) Stop() {
	m.stopOnce.Do(func() {
		m.cancel()
		for _, src := range m.sources {
			src.Stop()
		}
		m.wg.Wait()
		m.closeOutput()
	})
}

// HasSources reports whether any source was configured.
func (m *Multiplexer) HasSources() bool {
	return len(m.sources) > 0
}

// Names lists the configured sources.
func (m *Multiplexer) Names() []string {
	names := make([]string, len(m.sources))
	for i, src := range m.sources {
		names[i] = src.Name()
	}
	return names
}

// Lines returns the merged stream.
func (m *Multiplexer) Lines() <-chan model.IngestEnvelope {
	return m.lines
}

func (m *Multiplexer) forward(src LogSource) {
	defer m.wg.Done()

	sourceLines := src.Lines()
	for {
		select {
		case <-m.ctx.Done():
			return
		case line, ok := <-sourceLines:
			if !ok {
				log.Printf("logsource: %s closed", src.Name())
				return
			}
			select {
			case m.lines <- line:
			case <-m.ctx.Done():
				return
			}
		}
	}
}

func (m *Multiplexer) closeOutput() {
	m.closeOnce.Do(func() {
		close(m.lines)
	})
}
