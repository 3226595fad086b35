package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/tinytelemetry/apyr/internal/search"
)

func startEngine(t *testing.T, conf ...Config) *Engine {
	t.Helper()
	e := New(conf...)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run() error = %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("engine did not stop")
		}
	})
	return e
}

func waitSettled(t *testing.T, e *Engine) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !e.Settled() {
		if time.Now().After(deadline) {
			s := e.Stats()
			t.Fatalf("engine not settled: jobs=%d batches=%d", s.PendingJobs, s.PendingBatches)
		}
		time.Sleep(time.Millisecond)
	}
}

func ingest(e *Engine, lines ...string) {
	for _, line := range lines {
		i := e.AppendLine(line)
		e.NotifyNewRange(i, i+1)
	}
}

func TestQueryMatchesExistingLines(t *testing.T) {
	e := startEngine(t)
	ingest(e, "foo", "bar", "foobar")
	waitSettled(t, e)

	v := e.SubmitQuery("foo")
	waitSettled(t, e)

	if diff := cmp.Diff([]int{0, 2}, e.MatchLines()); diff != "" {
		t.Fatalf("MatchLines() mismatch (-want +got):\n%s", diff)
	}
	for _, m := range e.Matches() {
		if m.Version != v {
			t.Fatalf("match %+v has version %d, want %d", m, m.Version, v)
		}
	}
}

func TestShortQueryMatchesNothing(t *testing.T) {
	e := startEngine(t)
	ingest(e, "foo", "bar", "foobar")
	e.SubmitQuery("fo")
	waitSettled(t, e)

	if n := len(e.Matches()); n != 0 {
		t.Fatalf("len(Matches()) = %d, want 0", n)
	}
	if _, state := e.Query(); state != search.QueryDisabled {
		t.Fatalf("Query() state = %v, want disabled", state)
	}
}

func TestInvalidQueryDoesNotCrash(t *testing.T) {
	e := startEngine(t)
	ingest(e, "foo", "[x]")
	e.SubmitQuery("[[[")
	waitSettled(t, e)

	if n := len(e.Matches()); n != 0 {
		t.Fatalf("len(Matches()) = %d, want 0", n)
	}
	if _, state := e.Query(); state != search.QueryInvalid {
		t.Fatalf("Query() state = %v, want invalid", state)
	}
	if e.IsQuitting() {
		t.Fatal("invalid query raised quit flag")
	}
}

func TestRescanChunksWholeLog(t *testing.T) {
	e := startEngine(t, Config{Workers: 3, ChunkSize: 10})
	lines := make([]string, 25)
	for i := range lines {
		lines[i] = "x"
	}
	for _, line := range lines {
		e.AppendLine(line)
	}

	e.SubmitQuery("x+$")
	waitSettled(t, e)

	want := make([]int, 25)
	for i := range want {
		want[i] = i
	}
	if diff := cmp.Diff(want, e.MatchLines()); diff != "" {
		t.Fatalf("MatchLines() mismatch (-want +got):\n%s", diff)
	}
}

func TestNewLinesMatchActiveQuery(t *testing.T) {
	e := startEngine(t)
	e.SubmitQuery("error")
	ingest(e, "ok", "an error", "fine", "error again")
	waitSettled(t, e)

	if diff := cmp.Diff([]int{1, 3}, e.MatchLines()); diff != "" {
		t.Fatalf("MatchLines() mismatch (-want +got):\n%s", diff)
	}
}

func TestQueryChangeClearsSynchronously(t *testing.T) {
	e := startEngine(t)
	ingest(e, "alpha", "beta", "alphabet")
	e.SubmitQuery("alpha")
	waitSettled(t, e)
	if len(e.Matches()) == 0 {
		t.Fatal("expected matches for alpha")
	}

	v := e.SubmitQuery("beta")
	for _, m := range e.Matches() {
		if m.Version < v {
			t.Fatalf("match %+v from older version visible after SubmitQuery returned v%d", m, v)
		}
	}
	waitSettled(t, e)
	if diff := cmp.Diff([]int{1}, e.MatchLines()); diff != "" {
		t.Fatalf("MatchLines() mismatch (-want +got):\n%s", diff)
	}
}

func TestRapidEditsConvergeOnLastQuery(t *testing.T) {
	e := startEngine(t, Config{Workers: 8})
	for i := 0; i < 500; i++ {
		if i%3 == 0 {
			e.AppendLine("needle in haystack")
		} else {
			e.AppendLine("just hay")
		}
	}

	for _, q := range []string{"nee", "need", "needl", "hay", "needle"} {
		e.SubmitQuery(q)
	}
	waitSettled(t, e)

	var want []int
	for i := 0; i < 500; i += 3 {
		want = append(want, i)
	}
	if diff := cmp.Diff(want, e.MatchLines()); diff != "" {
		t.Fatalf("MatchLines() mismatch (-want +got):\n%s", diff)
	}
	for _, m := range e.Matches() {
		if m.Version != 5 {
			t.Fatalf("match %+v not from final version 5", m)
		}
	}
}

func TestConcurrentIngestAndQueries(t *testing.T) {
	e := startEngine(t)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			if i%2 == 0 {
				ingest(e, "even line")
			} else {
				ingest(e, "odd line")
			}
		}
	}()
	for i := 0; i < 20; i++ {
		if i%2 == 0 {
			e.SubmitQuery("odd")
		} else {
			e.SubmitQuery("even")
		}
	}
	wg.Wait()
	waitSettled(t, e)

	var want []int
	for i := 0; i < 1000; i += 2 {
		want = append(want, i)
	}
	if diff := cmp.Diff(want, e.MatchLines()); diff != "" {
		t.Fatalf("MatchLines() mismatch (-want +got):\n%s", diff)
	}
}

func TestRequestQuitIsIdempotentAndNotifies(t *testing.T) {
	e := New()
	var calls atomic.Int32
	e.OnChange(func() { calls.Add(1) })

	e.RequestQuit()
	e.RequestQuit()
	if !e.IsQuitting() {
		t.Fatal("IsQuitting() = false after RequestQuit")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("change hook fired %d times, want 1", got)
	}
}

func TestGuardRecoversPanic(t *testing.T) {
	e := New()
	run := e.guard(context.Background(), "test", func(context.Context) error {
		panic("boom")
	})

	err := run()
	var pe *PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("guard error = %v, want *PanicError", err)
	}
	if pe.Component != "test" || pe.Value != "boom" {
		t.Fatalf("PanicError = %+v", pe)
	}
	if !e.IsQuitting() {
		t.Fatal("panic did not raise the quit flag")
	}
}

func TestRunTwiceFails(t *testing.T) {
	e := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.Run(ctx); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if err := e.Run(context.Background()); err == nil {
		t.Fatal("second Run() error = nil, want error")
	}
}

func TestStats(t *testing.T) {
	e := startEngine(t, Config{Workers: 2})
	ingest(e, "abc", "abcd", "zzz")
	e.SubmitQuery("abc")
	waitSettled(t, e)

	s := e.Stats()
	if s.Lines != 3 || s.Matches != 2 || s.Version != 1 || s.Workers != 2 {
		t.Fatalf("Stats() = %+v", s)
	}
	if s.Query != "abc" || s.QueryState != search.QueryActive {
		t.Fatalf("Stats() query = %q %v", s.Query, s.QueryState)
	}
}
