package logsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tinytelemetry/apyr/internal/model"
)

const (
	// DefaultFileBuffer is the default channel buffer size for file lines.
	DefaultFileBuffer = 50_000

	// DefaultFollowPoll is how often a followed file is re-checked when no
	// filesystem event arrives.
	DefaultFollowPoll = time.Second
)

// FileConfig holds tunable parameters for the file source.
type FileConfig struct {
	Follow      bool
	BufferSize  int
	MaxLineSize int
	PollEvery   time.Duration
}

// FileSource reads log lines from a file. With Follow set it keeps the
// file open after EOF and reads appended data as it is written, like
// tail -f.
type FileSource struct {
	path   string
	ch     chan model.IngestEnvelope
	cancel context.CancelFunc
}

// NewFileSource opens path and starts reading it in the background.
func NewFileSource(ctx context.Context, path string, conf ...FileConfig) (*FileSource, error) {
	cfg := FileConfig{BufferSize: DefaultFileBuffer, PollEvery: DefaultFollowPoll}
	if len(conf) > 0 {
		c := conf[0]
		cfg.Follow = c.Follow
		cfg.MaxLineSize = c.MaxLineSize
		if c.BufferSize > 0 {
			cfg.BufferSize = c.BufferSize
		}
		if c.PollEvery > 0 {
			cfg.PollEvery = c.PollEvery
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	var watcher *fsnotify.Watcher
	if cfg.Follow {
		watcher, err = fsnotify.NewWatcher()
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("create watcher: %w", err)
		}
		if err := watcher.Add(path); err != nil {
			_ = watcher.Close()
			_ = f.Close()
			return nil, fmt.Errorf("watch %s: %w", path, err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &FileSource{
		path:   path,
		ch:     make(chan model.IngestEnvelope, cfg.BufferSize),
		cancel: cancel,
	}

	if !cfg.Follow {
		go func() {
			defer func() { _ = f.Close() }()
			pump(ctx, s.path, NewLineReader(f, LineReaderConfig{MaxLineSize: cfg.MaxLineSize}), s.ch)
		}()
		return s, nil
	}

	lr := NewLineReader(f, LineReaderConfig{MaxLineSize: cfg.MaxLineSize, HoldPartial: true})
	go s.follow(ctx, f, lr, watcher, cfg.PollEvery)
	return s, nil
}

func (s *FileSource) Lines() <-chan model.IngestEnvelope { return s.ch }
func (s *FileSource) Stop()                              { s.cancel() }
func (s *FileSource) Name() string                       { return "file" }

// Path returns the file being read.
func (s *FileSource) Path() string { return s.path }

func (s *FileSource) follow(ctx context.Context, f *os.File, lr *LineReader, w *fsnotify.Watcher, poll time.Duration) {
	defer close(s.ch)
	defer func() { _ = f.Close() }()
	defer func() { _ = w.Close() }()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		if !s.drain(ctx, lr) {
			return
		}

		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				log.Printf("logsource: %s was removed or renamed, stopping follow", s.path)
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Printf("logsource: watch %s: %v", s.path, err)
			continue
		case <-ticker.C:
		}

		s.rewindIfTruncated(f, lr)
		lr.Resume()
	}
}

// drain sends every complete line up to the current end of file. It
// returns false when the source should stop.
func (s *FileSource) drain(ctx context.Context, lr *LineReader) bool {
	for {
		line, err := lr.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return true
			}
			if ctx.Err() == nil {
				log.Printf("logsource: %s read error: %v", s.path, err)
			}
			return false
		}
		select {
		case s.ch <- model.IngestEnvelope{Source: s.path, Line: line}:
		case <-ctx.Done():
			return false
		}
	}
}

func (s *FileSource) rewindIfTruncated(f *os.File, lr *LineReader) {
	pos, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return
	}
	fi, err := f.Stat()
	if err != nil || fi.Size() >= pos {
		return
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		log.Printf("logsource: rewind %s: %v", s.path, err)
		return
	}
	lr.Reset()
	log.Printf("logsource: %s truncated (size %d < offset %d), reading from start", s.path, fi.Size(), pos)
}
