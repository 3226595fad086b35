// Package archive mirrors ingested lines into a DuckDB database so a
// session can be inspected with SQL after the fact. The pager never reads
// lines back from the archive.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/google/uuid"

	"github.com/tinytelemetry/apyr/internal/archive/migrate"
	"github.com/tinytelemetry/apyr/internal/model"
)

// ErrDisabled is returned when an archive operation is requested but no
// archive is configured.
var ErrDisabled = errors.New("archive: disabled")

// DefaultQueryTimeout bounds every statement the store runs.
const DefaultQueryTimeout = 30 * time.Second

// MaxQueryRows caps the rows returned by Query.
const MaxQueryRows = 1000

// dangerousKeywordPattern matches statements that could modify the database.
var dangerousKeywordPattern = regexp.MustCompile(
	`(?i)\b(INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|TRUNCATE|COPY|ATTACH|DETACH|LOAD|EXPORT|IMPORT|INSTALL|CALL|EXECUTE|PRAGMA|SET)\b`,
)

var blockCommentPattern = regexp.MustCompile(`/\*[\s\S]*?\*/`)

// Store manages the DuckDB connection for one pager session.
type Store struct {
	db           *sql.DB
	mu           sync.RWMutex
	path         string
	session      string
	QueryTimeout time.Duration
}

// Open opens or creates the archive at path and registers a new session.
// An empty path uses an in-memory database.
func Open(path string, queryTimeout ...time.Duration) (*Store, error) {
	dsn := ""
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create archive dir: %w", err)
		}
		dsn = path
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if err := migrate.NewRunner(db).Run(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate archive: %w", err)
	}

	qt := DefaultQueryTimeout
	if len(queryTimeout) > 0 && queryTimeout[0] > 0 {
		qt = queryTimeout[0]
	}

	return &Store{
		db:           db,
		path:         path,
		session:      uuid.NewString(),
		QueryTimeout: qt,
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Session returns the id under which this run's lines are stored.
func (s *Store) Session() string { return s.session }

// Path returns the database file, or "" for an in-memory archive.
func (s *Store) Path() string { return s.path }

func (s *Store) queryCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.QueryTimeout)
}

// BeginSession records the session row with the names of its sources.
func (s *Store) BeginSession(sources []string) error {
	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (id, sources) VALUES (?, ?)",
		s.session, strings.Join(sources, ","))
	return err
}

// InsertBatch writes records in a single transaction. If the batch fails,
// records are retried one at a time and the ones that still fail are
// dropped and logged.
func (s *Store) InsertBatch(records []model.LineRecord) error {
	if len(records) == 0 {
		return nil
	}

	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.insertTx(ctx, records); err == nil {
		return nil
	}

	var failed int
	for _, r := range records {
		if rerr := s.insertTx(ctx, []model.LineRecord{r}); rerr != nil {
			failed++
			log.Printf("archive: dropping line %d (%.80s): %v", r.Index, r.Line, rerr)
		}
	}
	if failed > 0 {
		log.Printf("archive: batch partially failed, %d/%d lines dropped", failed, len(records))
	}
	return nil
}

func (s *Store) insertTx(ctx context.Context, records []model.LineRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO lines (session_id, lineno, source, severity, line, ingested_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		at := r.IngestedAt
		if at.IsZero() {
			at = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, s.session, r.Index, r.Source, r.Severity, r.Line, at); err != nil {
			return fmt.Errorf("line insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Count returns the number of lines archived for the current session.
func (s *Store) Count() (int64, error) {
	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM lines WHERE session_id = ?", s.session).Scan(&n)
	return n, err
}

// SeverityCounts returns line counts per severity for the current session.
// Lines without a recognized severity are counted under "".
func (s *Store) SeverityCounts() (map[string]int64, error) {
	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT severity, COUNT(*) FROM lines WHERE session_id = ? GROUP BY severity", s.session)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var sev string
		var n int64
		if err := rows.Scan(&sev, &n); err != nil {
			return nil, err
		}
		counts[sev] = n
	}
	return counts, rows.Err()
}

// Query runs a read-only SELECT or WITH statement and returns up to
// MaxQueryRows rows as column-name maps.
func (s *Store) Query(query string) ([]map[string]any, error) {
	trimmed := strings.TrimSpace(query)
	if strings.Contains(trimmed, ";") {
		return nil, fmt.Errorf("query must not contain semicolons")
	}

	stripped := strings.TrimSpace(stripSQLComments(trimmed))
	upper := strings.ToUpper(stripped)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return nil, fmt.Errorf("only SELECT/WITH queries are allowed")
	}
	if match := dangerousKeywordPattern.FindString(stripped); match != "" {
		return nil, fmt.Errorf("query contains disallowed keyword: %s", strings.ToUpper(match))
	}

	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, trimmed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]any
	for rows.Next() && len(results) < MaxQueryRows {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			log.Printf("archive: scan error in Query: %v", err)
			continue
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// stripSQLComments removes -- line comments and /* */ block comments.
func stripSQLComments(query string) string {
	cleaned := blockCommentPattern.ReplaceAllString(query, " ")
	var b strings.Builder
	for _, line := range strings.Split(cleaned, "\n") {
		if idx := strings.Index(line, "--"); idx >= 0 {
			line = line[:idx]
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// DeleteBefore removes lines and sessions older than cutoff, except those of
// the current session, and returns the number of lines removed.
func (s *Store) DeleteBefore(cutoff time.Time) (int64, error) {
	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM lines WHERE ingested_at < ? AND session_id <> ?", cutoff, s.session)
	if err != nil {
		return 0, fmt.Errorf("delete lines: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE started_at < ? AND id <> ?", cutoff, s.session); err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
