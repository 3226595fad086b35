package archive

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tinytelemetry/apyr/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open("")
	if err != nil {
		t.Fatalf("Open(\"\") failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func records(lines ...string) []model.LineRecord {
	out := make([]model.LineRecord, len(lines))
	for i, line := range lines {
		out[i] = model.LineRecord{Index: i, Source: "stdin", Line: line, IngestedAt: time.Now()}
	}
	return out
}

func TestInsertBatchAndCount(t *testing.T) {
	store := newTestStore(t)

	batch := records("hello", "world", "")
	batch[1].Severity = "ERROR"
	if err := store.InsertBatch(batch); err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}

	n, err := store.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Errorf("Count() = %d, want 3", n)
	}

	counts, err := store.SeverityCounts()
	if err != nil {
		t.Fatalf("SeverityCounts: %v", err)
	}
	if counts["ERROR"] != 1 || counts[""] != 2 {
		t.Errorf("SeverityCounts() = %v", counts)
	}
}

func TestCountIsPerSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.duckdb")

	first, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := first.InsertBatch(records("a", "b")); err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}
	first.Close()

	second, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	if second.Session() == first.Session() {
		t.Fatal("reopened archive reused the session id")
	}
	if n, _ := second.Count(); n != 0 {
		t.Errorf("new session Count() = %d, want 0", n)
	}

	rows, err := second.Query("SELECT COUNT(*) AS n FROM lines")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if got := rows[0]["n"]; got != int64(2) {
		t.Errorf("total lines across sessions = %v, want 2", got)
	}
}

func TestBeginSession(t *testing.T) {
	store := newTestStore(t)
	if err := store.BeginSession([]string{"stdin", "tcp"}); err != nil {
		t.Fatalf("BeginSession: %v", err)
	}
	rows, err := store.Query("SELECT sources FROM sessions")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 1 || rows[0]["sources"] != "stdin,tcp" {
		t.Fatalf("sessions rows = %v", rows)
	}
}

func TestQueryRejectsWrites(t *testing.T) {
	store := newTestStore(t)

	tests := []string{
		"DELETE FROM lines",
		"SELECT 1; DROP TABLE lines",
		"WITH x AS (SELECT 1) INSERT INTO lines VALUES (1)",
		"/* SELECT */ UPDATE lines SET line = ''",
		"SELECT * FROM lines -- fine\n; DROP TABLE lines",
	}
	for _, q := range tests {
		if _, err := store.Query(q); err == nil {
			t.Errorf("Query(%q) error = nil, want rejection", q)
		}
	}
}

func TestQueryReturnsRows(t *testing.T) {
	store := newTestStore(t)
	if err := store.InsertBatch(records("alpha", "beta")); err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}

	rows, err := store.Query("SELECT lineno, line FROM lines ORDER BY lineno -- newest last")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[1]["line"] != "beta" {
		t.Errorf("rows[1][line] = %v, want beta", rows[1]["line"])
	}
}

func TestStripSQLComments(t *testing.T) {
	got := stripSQLComments("SELECT 1 /* hidden DROP */ -- trailing\nFROM t")
	if strings.Contains(got, "DROP") || strings.Contains(got, "trailing") {
		t.Fatalf("stripSQLComments left comment text: %q", got)
	}
}

func TestErrDisabledIsSentinel(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), ErrDisabled)
	if !errors.Is(wrapped, ErrDisabled) {
		t.Fatal("errors.Is(wrapped, ErrDisabled) = false")
	}
}
