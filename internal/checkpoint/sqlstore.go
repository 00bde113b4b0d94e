package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// SQLStore keeps checkpoints in a single table through database/sql. It runs
// on SQLite (modernc.org/sqlite, no cgo) or PostgreSQL (pgx).
type SQLStore struct {
	db     *sql.DB
	driver string
}

const createTable = `CREATE TABLE IF NOT EXISTS research_sessions (
	session_id TEXT PRIMARY KEY,
	phase      TEXT NOT NULL,
	updated_at BIGINT NOT NULL,
	payload    TEXT NOT NULL
)`

const upsertSession = `INSERT INTO research_sessions (session_id, phase, updated_at, payload)
VALUES (?, ?, ?, ?)
ON CONFLICT (session_id) DO UPDATE SET
	phase = excluded.phase,
	updated_at = excluded.updated_at,
	payload = excluded.payload`

// OpenSQLite opens (creating if needed) a SQLite database file.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	db, err := sql.Open(DriverSQLite, path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open sqlite: %w", err)
	}
	// One writer at a time avoids SQLITE_BUSY under concurrent saves.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("checkpoint: configure sqlite: %w", err)
	}
	s, err := NewSQLStore(ctx, db, DriverSQLite)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// OpenPostgres connects to PostgreSQL using a pgx DSN.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open(DriverPostgres, strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("checkpoint: ping postgres: %w", err)
	}
	s, err := NewSQLStore(ctx, db, DriverPostgres)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open database and creates the table if missing.
func NewSQLStore(ctx context.Context, db *sql.DB, driver string) (*SQLStore, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("checkpoint: unsupported driver %q", driver)
	}
	s := &SQLStore{db: db, driver: driver}
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		return nil, fmt.Errorf("checkpoint: create table: %w", err)
	}
	return s, nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Save upserts cp.
func (s *SQLStore) Save(ctx context.Context, cp Checkpoint) error {
	if err := validate(cp); err != nil {
		return err
	}
	stamp(&cp, time.Now().UTC())
	payload, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("checkpoint: encode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.rebind(upsertSession),
		cp.SessionID, string(cp.Phase), cp.UpdatedAt.UnixNano(), string(payload)); err != nil {
		return fmt.Errorf("checkpoint: save %s: %w", cp.SessionID, err)
	}
	return nil
}

// Load returns the checkpoint for sessionID.
func (s *SQLStore) Load(ctx context.Context, sessionID string) (*Checkpoint, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT payload FROM research_sessions WHERE session_id = ?"), sessionID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: load %s: %w", sessionID, err)
	}
	var cp Checkpoint
	if err := json.Unmarshal([]byte(payload), &cp); err != nil {
		return nil, fmt.Errorf("checkpoint: decode %s: %w", sessionID, err)
	}
	return &cp, nil
}

// Revision returns the stored updated_at and payload length of the session.
func (s *SQLStore) Revision(ctx context.Context, sessionID string) (string, error) {
	var updated, size int64
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT updated_at, LENGTH(payload) FROM research_sessions WHERE session_id = ?"), sessionID).Scan(&updated, &size)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return "", fmt.Errorf("checkpoint: revision %s: %w", sessionID, err)
	}
	return strconv.FormatInt(updated, 10) + "-" + strconv.FormatInt(size, 10), nil
}

// List returns every checkpoint, most recently updated first.
func (s *SQLStore) List(ctx context.Context) ([]Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT session_id, payload FROM research_sessions ORDER BY updated_at DESC, session_id ASC")
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list: %w", err)
	}
	defer rows.Close()

	out := []Checkpoint{}
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("checkpoint: scan: %w", err)
		}
		var cp Checkpoint
		if err := json.Unmarshal([]byte(payload), &cp); err != nil {
			return nil, fmt.Errorf("checkpoint: decode %s: %w", id, err)
		}
		out = append(out, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("checkpoint: list: %w", err)
	}
	return out, nil
}

// Delete removes the checkpoint for sessionID.
func (s *SQLStore) Delete(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind("DELETE FROM research_sessions WHERE session_id = ?"), sessionID)
	if err != nil {
		return fmt.Errorf("checkpoint: delete %s: %w", sessionID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
