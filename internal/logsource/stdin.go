package logsource

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/tinytelemetry/apyr/internal/model"
)

// DefaultStdinBuffer is the default channel buffer size for stdin lines.
const DefaultStdinBuffer = 50_000

// StdinConfig holds tunable parameters for the stdin source.
type StdinConfig struct {
	BufferSize  int
	MaxLineSize int
	RetryDelay  time.Duration
}

// StdinSource reads log lines from stdin.
type StdinSource struct {
	ch     chan model.IngestEnvelope
	cancel context.CancelFunc
}

// StdinIsPiped reports whether stdin is a pipe or file rather than an
// interactive terminal. Only piped stdin is read as a log source.
func StdinIsPiped() bool {
	return !term.IsTerminal(int(os.Stdin.Fd()))
}

// NewStdinSource creates a StdinSource that reads from stdin in a background goroutine.
func NewStdinSource(ctx context.Context, conf ...StdinConfig) *StdinSource {
	return newStdinSourceWithReader(ctx, os.Stdin, conf...)
}

func newStdinSourceWithReader(ctx context.Context, r io.Reader, conf ...StdinConfig) *StdinSource {
	bufferSize := DefaultStdinBuffer
	var lrConf LineReaderConfig
	if len(conf) > 0 {
		if conf[0].BufferSize > 0 {
			bufferSize = conf[0].BufferSize
		}
		lrConf.MaxLineSize = conf[0].MaxLineSize
		lrConf.RetryDelay = conf[0].RetryDelay
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &StdinSource{
		ch:     make(chan model.IngestEnvelope, bufferSize),
		cancel: cancel,
	}
	go pump(ctx, s.Name(), NewLineReader(r, lrConf), s.ch)
	return s
}

func (s *StdinSource) Lines() <-chan model.IngestEnvelope { return s.ch }
func (s *StdinSource) Stop()                              { s.cancel() }
func (s *StdinSource) Name() string                       { return "stdin" }

// pump forwards lines from lr to out until the stream ends or ctx is
// cancelled, then closes out. The blocking read runs on its own goroutine
// so cancellation is observed even while a read is parked.
func pump(ctx context.Context, name string, lr *LineReader, out chan<- model.IngestEnvelope) {
	defer close(out)

	results := make(chan string)
	go func() {
		defer close(results)
		for {
			line, err := lr.Next(ctx)
			if err != nil {
				switch {
				case errors.Is(err, io.EOF):
					log.Printf("logsource: %s reached end of input", name)
				case ctx.Err() != nil:
				default:
					log.Printf("logsource: %s read error: %v", name, err)
				}
				return
			}
			select {
			case results <- line:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-results:
			if !ok {
				return
			}
			select {
			case out <- model.IngestEnvelope{Source: name, Line: line}:
			case <-ctx.Done():
				return
			}
		}
	}
}
