// Package sqlite keeps an append-only audit log of lifecycle events,
// generation metadata and recovered provider errors. Sessions are never
// read back from it.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tjfontaine/polyglot-persona/internal/domain"
	"github.com/tjfontaine/polyglot-persona/internal/events"
)

// Store is a SQLite audit log.
type Store struct {
	db *sql.DB
}

// New opens (and if needed creates) the audit database at dsn.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			session_id TEXT NOT NULL,
			data TEXT,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS generations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			operation TEXT NOT NULL,
			provider TEXT NOT NULL,
			model TEXT,
			input_tokens INTEGER NOT NULL,
			output_tokens INTEGER NOT NULL,
			estimated INTEGER NOT NULL DEFAULT 0,
			latency_ns INTEGER NOT NULL,
			cost REAL NOT NULL,
			fallback INTEGER NOT NULL DEFAULT 0,
			attempt INTEGER NOT NULL,
			generated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS provider_errors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			operation TEXT NOT NULL,
			provider TEXT NOT NULL,
			kind TEXT NOT NULL,
			message TEXT,
			attempt INTEGER NOT NULL,
			at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_type ON events(type)`,
		`CREATE INDEX IF NOT EXISTS idx_generations_session ON generations(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_generations_provider ON generations(provider)`,
		`CREATE INDEX IF NOT EXISTS idx_provider_errors_session ON provider_errors(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_provider_errors_kind ON provider_errors(kind)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// AppendEvent stores a lifecycle event. Replaying an event id is a no-op.
func (s *Store) AppendEvent(ctx context.Context, event *events.Event) error {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	query := `INSERT OR IGNORE INTO events (id, type, session_id, data, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, event.ID, string(event.Type), event.SessionID, string(data), event.Timestamp.UnixNano()); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// RecordGeneration stores the metadata of one successful provider call.
func (s *Store) RecordGeneration(ctx context.Context, sessionID string, meta domain.GenerationMetadata) error {
	query := `INSERT INTO generations
		(session_id, operation, provider, model, input_tokens, output_tokens, estimated, latency_ns, cost, fallback, attempt, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		sessionID, string(meta.Operation), meta.Provider, meta.Model,
		meta.InputTokens, meta.OutputTokens, boolInt(meta.Estimated),
		int64(meta.Latency), meta.Cost, boolInt(meta.Fallback), meta.Attempt,
		meta.GeneratedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert generation: %w", err)
	}
	return nil
}

// RecordProviderError stores one recovered provider failure.
func (s *Store) RecordProviderError(ctx context.Context, sessionID string, rec domain.ProviderErrorRecord) error {
	query := `INSERT INTO provider_errors (session_id, operation, provider, kind, message, attempt, at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		sessionID, string(rec.Operation), rec.Provider, string(rec.Kind), rec.Message, rec.Attempt, rec.At.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert provider error: %w", err)
	}
	return nil
}

// ListEvents returns a session's events in insertion order.
func (s *Store) ListEvents(ctx context.Context, sessionID string) ([]*events.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, session_id, data, created_at FROM events WHERE session_id = ? ORDER BY created_at, rowid`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []*events.Event
	for rows.Next() {
		var (
			e        events.Event
			typ      string
			data     sql.NullString
			createdN int64
		)
		if err := rows.Scan(&e.ID, &typ, &e.SessionID, &data, &createdN); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Type = events.Type(typ)
		e.Timestamp = time.Unix(0, createdN).UTC()
		if data.Valid && data.String != "" && data.String != "null" {
			if err := json.Unmarshal([]byte(data.String), &e.Data); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
			}
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// ListGenerations returns a session's generation records in insertion order.
func (s *Store) ListGenerations(ctx context.Context, sessionID string) ([]domain.GenerationMetadata, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT operation, provider, model, input_tokens, output_tokens, estimated,
		latency_ns, cost, fallback, attempt, generated_at FROM generations WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query generations: %w", err)
	}
	defer rows.Close()

	var out []domain.GenerationMetadata
	for rows.Next() {
		var (
			m                   domain.GenerationMetadata
			op                  string
			model               sql.NullString
			estimated, fallback int
			latency, generated  int64
		)
		if err := rows.Scan(&op, &m.Provider, &model, &m.InputTokens, &m.OutputTokens, &estimated,
			&latency, &m.Cost, &fallback, &m.Attempt, &generated); err != nil {
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}
		m.Operation = domain.Operation(op)
		m.Model = model.String
		m.Estimated = estimated != 0
		m.Fallback = fallback != 0
		m.Latency = time.Duration(latency)
		m.GeneratedAt = time.Unix(0, generated).UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListProviderErrors returns a session's provider errors in insertion order.
func (s *Store) ListProviderErrors(ctx context.Context, sessionID string) ([]domain.ProviderErrorRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT operation, provider, kind, message, attempt, at
		FROM provider_errors WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query provider errors: %w", err)
	}
	defer rows.Close()

	var out []domain.ProviderErrorRecord
	for rows.Next() {
		var (
			r        domain.ProviderErrorRecord
			op, kind string
			msg      sql.NullString
			at       int64
		)
		if err := rows.Scan(&op, &r.Provider, &kind, &msg, &r.Attempt, &at); err != nil {
			return nil, fmt.Errorf("failed to scan provider error: %w", err)
		}
		r.Operation = domain.Operation(op)
		r.Kind = domain.ErrorKind(kind)
		r.Message = msg.String
		r.At = time.Unix(0, at).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// ProviderErrorCounts returns recovered errors grouped by provider and kind.
func (s *Store) ProviderErrorCounts(ctx context.Context) (map[string]map[domain.ErrorKind]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT provider, kind, COUNT(*) FROM provider_errors GROUP BY provider, kind`)
	if err != nil {
		return nil, fmt.Errorf("failed to query provider error counts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]map[domain.ErrorKind]int)
	for rows.Next() {
		var (
			provider, kind string
			n              int
		)
		if err := rows.Scan(&provider, &kind, &n); err != nil {
			return nil, fmt.Errorf("failed to scan provider error count: %w", err)
		}
		if out[provider] == nil {
			out[provider] = make(map[domain.ErrorKind]int)
		}
		out[provider][domain.ErrorKind(kind)] = n
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
