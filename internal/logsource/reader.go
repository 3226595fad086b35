package logsource

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"
)

const (
	// DefaultMaxLineSize caps a single line; longer input is split.
	DefaultMaxLineSize = 1024 * 1024 // 1MB

	// DefaultRetryDelay is how long to wait after a read returns no data
	// and no error before reading again.
	DefaultRetryDelay = 10 * time.Millisecond

	readChunkSize = 32 * 1024
)

// LineReaderConfig holds tunable parameters for LineReader.
type LineReaderConfig struct {
	MaxLineSize int
	RetryDelay  time.Duration

	// HoldPartial keeps an unterminated trailing line buffered at EOF
	// instead of emitting it. Followers set this because the writer may
	// still complete the line.
	HoldPartial bool
}

// LineReader splits a byte stream into lines. Lines end at '\n'; a
// trailing '\r' is dropped. A read that returns zero bytes without an
// error is treated as transient and retried after a short sleep.
type LineReader struct {
	r   io.Reader
	buf []byte

	partial []byte
	ready   []string
	err     error

	maxLineSize int
	retryDelay  time.Duration
	holdPartial bool
}

// NewLineReader wraps r.
func NewLineReader(r io.Reader, conf ...LineReaderConfig) *LineReader {
	lr := &LineReader{
		r:           r,
		buf:         make([]byte, readChunkSize),
		maxLineSize: DefaultMaxLineSize,
		retryDelay:  DefaultRetryDelay,
	}
	if len(conf) > 0 {
		if conf[0].MaxLineSize > 0 {
			lr.maxLineSize = conf[0].MaxLineSize
		}
		if conf[0].RetryDelay > 0 {
			lr.retryDelay = conf[0].RetryDelay
		}
		lr.holdPartial = conf[0].HoldPartial
	}
	return lr
}

// Next returns the next line. At the end of the stream a final
// unterminated line is returned before io.EOF, unless HoldPartial is set.
// Any other read error is returned once the lines read before it are
// drained. Next only checks ctx between reads; a Read blocked in the
// kernel is not interrupted.
func (lr *LineReader) Next(ctx context.Context) (string, error) {
	for {
		if len(lr.ready) > 0 {
			line := lr.ready[0]
			lr.ready[0] = ""
			lr.ready = lr.ready[1:]
			return line, nil
		}
		if lr.err != nil {
			return "", lr.err
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, err := lr.r.Read(lr.buf)
		if n > 0 {
			lr.consume(lr.buf[:n])
		}
		switch {
		case err != nil:
			if errors.Is(err, io.EOF) && !lr.holdPartial && len(lr.partial) > 0 {
				lr.emit(lr.partial)
				lr.partial = lr.partial[:0]
			}
			lr.err = err
		case n == 0:
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(lr.retryDelay):
			}
		}
	}
}

// Resume clears a sticky io.EOF so reading can continue after the
// underlying file has grown.
func (lr *LineReader) Resume() {
	if errors.Is(lr.err, io.EOF) {
		lr.err = nil
	}
}

// Reset drops buffered data and any sticky error. Used after the
// underlying file was truncated and rewound.
func (lr *LineReader) Reset() {
	lr.partial = lr.partial[:0]
	lr.ready = nil
	lr.err = nil
}

func (lr *LineReader) consume(p []byte) {
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			lr.partial = append(lr.partial, p...)
			lr.splitLong()
			return
		}
		lr.partial = append(lr.partial, p[:i]...)
		lr.splitLong()
		lr.emit(lr.partial)
		lr.partial = lr.partial[:0]
		p = p[i+1:]
	}
}

// splitLong emits max-size pieces while the pending line is over the cap.
func (lr *LineReader) splitLong() {
	for len(lr.partial) > lr.maxLineSize {
		lr.ready = append(lr.ready, string(lr.partial[:lr.maxLineSize]))
		lr.partial = append(lr.partial[:0], lr.partial[lr.maxLineSize:]...)
	}
}

func (lr *LineReader) emit(line []byte) {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	lr.ready = append(lr.ready, string(line))
}
