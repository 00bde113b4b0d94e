//go:build cgo

package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	kuzu "github.com/kuzudb/go-kuzu"
)

// Compile-time interface checks.
var (
	_ Store      = (*KuzuStore)(nil)
	_ Revisioner = (*KuzuStore)(nil)
)

// KuzuStore keeps checkpoints as ResearchSession nodes in an embedded KuzuDB
// database. It requires cgo because go-kuzu wraps KuzuDB's C library.
type KuzuStore struct {
	mu   sync.Mutex
	db   *kuzu.Database
	conn *kuzu.Connection
}

const kuzuDDL = `CREATE NODE TABLE IF NOT EXISTS ResearchSession(
	session_id STRING,
	phase STRING,
	updated_at INT64,
	payload STRING,
	PRIMARY KEY(session_id)
)`

// NewKuzuStore opens a KuzuDB database at dbPath, or an in-memory database
// when dbPath is ":memory:", and creates the session table.
func NewKuzuStore(dbPath string) (*KuzuStore, error) {
	if dbPath != ":memory:" {
		// KuzuDB creates the leaf directory itself.
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("checkpoint: kuzu: create parent directory: %w", err)
		}
	}
	db, err := kuzu.OpenDatabase(dbPath, kuzu.DefaultSystemConfig())
	if err != nil {
		return nil, fmt.Errorf("checkpoint: kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("checkpoint: kuzu: open connection: %w", err)
	}
	s := &KuzuStore{db: db, conn: conn}

	res, err := conn.Query(kuzuDDL)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("checkpoint: kuzu: init schema: %w", err)
	}
	res.Close()
	return s, nil
}

func openKuzu(path string) (Store, error) {
	s, err := NewKuzuStore(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Save upserts the session node.
func (s *KuzuStore) Save(_ context.Context, cp Checkpoint) error {
	if err := validate(cp); err != nil {
		return err
	}
	stamp(&cp, time.Now().UTC())
	payload, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("checkpoint: encode: %w", err)
	}
	return s.exec(
		`MERGE (s:ResearchSession {session_id: $id})
		 SET s.phase = $phase, s.updated_at = $updated, s.payload = $payload`,
		map[string]any{
			"id":      cp.SessionID,
			"phase":   string(cp.Phase),
			"updated": cp.UpdatedAt.UnixNano(),
			"payload": string(payload),
		},
	)
}

// Load returns the checkpoint for sessionID.
func (s *KuzuStore) Load(_ context.Context, sessionID string) (*Checkpoint, error) {
	rows, err := s.query(
		"MATCH (s:ResearchSession {session_id: $id}) RETURN s.payload",
		map[string]any{"id": sessionID},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	return decodeKuzuPayload(rows[0][0])
}

// Revision returns the stored updated_at of the session node.
func (s *KuzuStore) Revision(_ context.Context, sessionID string) (string, error) {
	rows, err := s.query(
		"MATCH (s:ResearchSession {session_id: $id}) RETURN s.updated_at",
		map[string]any{"id": sessionID},
	)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	return fmt.Sprint(rows[0][0]), nil
}

// List returns every checkpoint, most recently updated first.
func (s *KuzuStore) List(_ context.Context) ([]Checkpoint, error) {
	rows, err := s.query(
		"MATCH (s:ResearchSession) RETURN s.payload ORDER BY s.updated_at DESC, s.session_id ASC",
		nil,
	)
	if err != nil {
		return nil, err
	}
	out := make([]Checkpoint, 0, len(rows))
	for _, r := range rows {
		cp, err := decodeKuzuPayload(r[0])
		if err != nil {
			return nil, err
		}
		out = append(out, *cp)
	}
	return out, nil
}

// Delete removes the session node.
func (s *KuzuStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.Load(ctx, sessionID); err != nil {
		return err
	}
	return s.exec(
		"MATCH (s:ResearchSession {session_id: $id}) DELETE s",
		map[string]any{"id": sessionID},
	)
}

// Close releases the KuzuDB connection and database.
func (s *KuzuStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
	return nil
}

func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("checkpoint: kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("checkpoint: kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

// query runs a Cypher statement and collects every row as a []any.
func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		res *kuzu.QueryResult
		err error
	)
	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("checkpoint: kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("checkpoint: kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("checkpoint: kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

func decodeKuzuPayload(v any) (*Checkpoint, error) {
	payload, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("checkpoint: kuzu: payload is %T, want string", v)
	}
	var cp Checkpoint
	if err := json.Unmarshal([]byte(payload), &cp); err != nil {
		return nil, fmt.Errorf("checkpoint: kuzu: decode: %w", err)
	}
	return &cp, nil
}
