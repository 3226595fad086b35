package logsource

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/tinytelemetry/apyr/internal/model"
)

func drainLines(t *testing.T, ch <-chan model.IngestEnvelope) []string {
	t.Helper()
	var got []string
	timeout := time.After(2 * time.Second)
	for {
		select {
		case env, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, env.Line)
		case <-timeout:
			t.Fatalf("timed out waiting for lines channel to close, got %q", got)
		}
	}
}

func TestStdinSourceReadsUntilEOF(t *testing.T) {
	src := newStdinSourceWithReader(context.Background(), strings.NewReader("one\n\ntwo\nthree"))
	defer src.Stop()

	got := drainLines(t, src.Lines())
	want := []string{"one", "", "two", "three"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestStdinSourceStopClosesLines(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer func() { _ = w.Close() }()

	src := newStdinSourceWithReader(context.Background(), r)
	src.Stop()

	select {
	case _, ok := <-src.Lines():
		if ok {
			t.Fatal("expected lines channel to be closed after Stop")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for lines channel to close")
	}
}

func TestStdinSourceStopIsIdempotent(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer func() { _ = w.Close() }()

	src := newStdinSourceWithReader(context.Background(), r)
	src.Stop()
	src.Stop()
}

func TestStdinSourceTagsEnvelopes(t *testing.T) {
	src := newStdinSourceWithReader(context.Background(), strings.NewReader("x\n"))
	env, ok := <-src.Lines()
	if !ok {
		t.Fatal("lines closed before first envelope")
	}
	if env.Source != "stdin" || env.Line != "x" {
		t.Fatalf("envelope = %+v, want stdin/x", env)
	}
}
