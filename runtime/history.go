package runtime

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/petal-labs/pollen/schema"

	_ "modernc.org/sqlite"
)

// CallRecord is one dispatched invocation as kept in call history.
type CallRecord struct {
	ID         string            `json:"id"`
	App        string            `json:"app"`
	Tool       string            `json:"tool"`
	Args       map[string]string `json:"args,omitempty"`
	Results    map[string]string `json:"results,omitempty"`
	Kind       schema.ReturnKind `json:"kind,omitempty"`
	Error      string            `json:"error,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	DurationMS int64             `json:"duration_ms"`
}

// HistoryStore persists dispatched calls for inspection and replay.
type HistoryStore interface {
	Append(ctx context.Context, rec CallRecord) error
	Recent(ctx context.Context, limit int) ([]CallRecord, error)
	Close() error
}

// MemoryHistory keeps call records in memory, newest first. The zero
// value is not usable; create one with NewMemoryHistory.
type MemoryHistory struct {
	mu   sync.RWMutex
	max  int
	recs []CallRecord
}

// NewMemoryHistory creates an in-memory history capped at maxRecords
// (0 = unlimited).
func NewMemoryHistory(maxRecords int) *MemoryHistory {
	return &MemoryHistory{max: maxRecords}
}

// Append stores a record, evicting the oldest past the cap.
func (h *MemoryHistory) Append(_ context.Context, rec CallRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recs = append(h.recs, rec)
	if h.max > 0 && len(h.recs) > h.max {
		h.recs = h.recs[len(h.recs)-h.max:]
	}
	return nil
}

// Recent returns up to limit records, newest first (0 = all).
func (h *MemoryHistory) Recent(_ context.Context, limit int) ([]CallRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := len(h.recs)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]CallRecord, 0, n)
	for i := len(h.recs) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, h.recs[i])
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (h *MemoryHistory) Close() error { return nil }

const historySchema = `
CREATE TABLE IF NOT EXISTS calls (
	id TEXT PRIMARY KEY,
	app TEXT NOT NULL,
	tool TEXT NOT NULL,
	args TEXT NOT NULL,
	results TEXT NOT NULL,
	kind TEXT NOT NULL,
	error TEXT NOT NULL,
	started_at TEXT NOT NULL,
	duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_calls_started_at ON calls (started_at);`

// SQLiteHistoryConfig configures the SQLite-backed call history.
type SQLiteHistoryConfig struct {
	// DSN is the database path or connection string.
	DSN string

	// MaxRecords caps stored calls; the oldest records beyond the cap
	// are deleted after each append (0 = unlimited).
	MaxRecords int
}

// SQLiteHistory persists call records in SQLite with WAL mode for
// concurrent reads.
type SQLiteHistory struct {
	db  *sql.DB
	cfg SQLiteHistoryConfig
}

var _ HistoryStore = (*SQLiteHistory)(nil)
var _ HistoryStore = (*MemoryHistory)(nil)

// NewSQLiteHistory opens (or creates) a SQLite call history.
func NewSQLiteHistory(cfg SQLiteHistoryConfig) (*SQLiteHistory, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("runtime: history dsn is required")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("runtime: history open: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("runtime: history set WAL mode: %w", err)
	}
	if _, err := db.Exec(historySchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("runtime: history create schema: %w", err)
	}
	return &SQLiteHistory{db: db, cfg: cfg}, nil
}

// Append stores a record and prunes past the configured cap.
func (h *SQLiteHistory) Append(ctx context.Context, rec CallRecord) error {
	argsJSON, err := json.Marshal(rec.Args)
	if err != nil {
		return fmt.Errorf("runtime: history marshal args: %w", err)
	}
	resultsJSON, err := json.Marshal(rec.Results)
	if err != nil {
		return fmt.Errorf("runtime: history marshal results: %w", err)
	}

	_, err = h.db.ExecContext(ctx,
		`INSERT INTO calls (id, app, tool, args, results, kind, error, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.App,
		rec.Tool,
		string(argsJSON),
		string(resultsJSON),
		string(rec.Kind),
		rec.Error,
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("runtime: history append: %w", err)
	}

	if h.cfg.MaxRecords > 0 {
		_, err = h.db.ExecContext(ctx,
			`DELETE FROM calls WHERE id NOT IN
			 (SELECT id FROM calls ORDER BY started_at DESC, rowid DESC LIMIT ?)`,
			h.cfg.MaxRecords,
		)
		if err != nil {
			return fmt.Errorf("runtime: history prune: %w", err)
		}
	}
	return nil
}

// Recent returns up to limit records, newest first (0 = all).
func (h *SQLiteHistory) Recent(ctx context.Context, limit int) ([]CallRecord, error) {
	query := `SELECT id, app, tool, args, results, kind, error, started_at, duration_ms
	           FROM calls ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("runtime: history recent: %w", err)
	}
	defer rows.Close()

	var out []CallRecord
	for rows.Next() {
		var rec CallRecord
		var argsJSON, resultsJSON, kind, startedAt string
		if err := rows.Scan(&rec.ID, &rec.App, &rec.Tool, &argsJSON, &resultsJSON,
			&kind, &rec.Error, &startedAt, &rec.DurationMS); err != nil {
			return nil, fmt.Errorf("runtime: history scan: %w", err)
		}
		if err := json.Unmarshal([]byte(argsJSON), &rec.Args); err != nil {
			return nil, fmt.Errorf("runtime: history unmarshal args: %w", err)
		}
		if err := json.Unmarshal([]byte(resultsJSON), &rec.Results); err != nil {
			return nil, fmt.Errorf("runtime: history unmarshal results: %w", err)
		}
		rec.Kind = schema.ReturnKind(kind)
		ts, err := time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, fmt.Errorf("runtime: history parse time: %w", err)
		}
		rec.StartedAt = ts
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (h *SQLiteHistory) Close() error { return h.db.Close() }
