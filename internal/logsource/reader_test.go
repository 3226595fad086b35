package logsource

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func readAll(t *testing.T, lr *LineReader) ([]string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var lines []string
	for {
		line, err := lr.Next(ctx)
		if err != nil {
			return lines, err
		}
		lines = append(lines, line)
	}
}

func TestLineReaderSplitsLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"single terminated", "a\n", []string{"a"}},
		{"trailing partial", "a\nb", []string{"a", "b"}},
		{"crlf", "a\r\nb\r\n", []string{"a", "b"}},
		{"blank lines kept", "a\n\n\nb\n", []string{"a", "", "", "b"}},
		{"lone cr kept mid-line", "a\rb\n", []string{"a\rb"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readAll(t, NewLineReader(strings.NewReader(tt.input)))
			if !errors.Is(err, io.EOF) {
				t.Fatalf("final error = %v, want io.EOF", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("lines mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLineReaderSplitsLongLines(t *testing.T) {
	input := strings.Repeat("x", 25) + "\nok\n"
	got, _ := readAll(t, NewLineReader(strings.NewReader(input), LineReaderConfig{MaxLineSize: 10}))
	want := []string{strings.Repeat("x", 10), strings.Repeat("x", 10), strings.Repeat("x", 5), "ok"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
}

// stutterReader returns zero bytes with a nil error before each real read.
type stutterReader struct {
	r     io.Reader
	stall bool
	zeros int
}

func (s *stutterReader) Read(p []byte) (int, error) {
	s.stall = !s.stall
	if s.stall {
		s.zeros++
		return 0, nil
	}
	return s.r.Read(p[:1])
}

func TestLineReaderRetriesZeroByteReads(t *testing.T) {
	sr := &stutterReader{r: strings.NewReader("ab\ncd\n")}
	got, err := readAll(t, NewLineReader(sr, LineReaderConfig{RetryDelay: time.Microsecond}))
	if !errors.Is(err, io.EOF) {
		t.Fatalf("final error = %v, want io.EOF", err)
	}
	if diff := cmp.Diff([]string{"ab", "cd"}, got); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
	if sr.zeros == 0 {
		t.Fatal("reader never stalled")
	}
}

type failingReader struct {
	data string
	err  error
	done bool
}

func (f *failingReader) Read(p []byte) (int, error) {
	if f.done {
		return 0, f.err
	}
	f.done = true
	return copy(p, f.data), nil
}

func TestLineReaderReturnsLinesBeforeError(t *testing.T) {
	boom := errors.New("boom")
	got, err := readAll(t, NewLineReader(&failingReader{data: "one\ntwo\npart", err: boom}))
	if !errors.Is(err, boom) {
		t.Fatalf("final error = %v, want boom", err)
	}
	if diff := cmp.Diff([]string{"one", "two"}, got); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestLineReaderHoldPartialAndResume(t *testing.T) {
	r, w := io.Pipe()
	lr := NewLineReader(r, LineReaderConfig{HoldPartial: true})

	go func() {
		_, _ = w.Write([]byte("done\npar"))
		_ = w.Close()
	}()
	got, err := readAll(t, lr)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("final error = %v, want io.EOF", err)
	}
	if diff := cmp.Diff([]string{"done"}, got); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}

	lr.r = strings.NewReader("tial\n")
	lr.Resume()
	got, _ = readAll(t, lr)
	if diff := cmp.Diff([]string{"partial"}, got); diff != "" {
		t.Fatalf("lines after Resume mismatch (-want +got):\n%s", diff)
	}
}

func TestLineReaderHonorsContext(t *testing.T) {
	lr := NewLineReader(&stutterReader{r: strings.NewReader("")}, LineReaderConfig{RetryDelay: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := lr.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Next() error = %v, want deadline exceeded", err)
	}
}
