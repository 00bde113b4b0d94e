package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

var sessionIDRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// FileStore keeps one JSON file per session in a directory. Writes go to a
// temporary file that is renamed into place, so a reader never sees a
// partially written checkpoint.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("checkpoint: create %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory holding the checkpoint files.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(sessionID string) (string, error) {
	if !sessionIDRe.MatchString(sessionID) {
		return "", fmt.Errorf("checkpoint: session id %q is not usable as a file name", sessionID)
	}
	return filepath.Join(s.dir, sessionID+".json"), nil
}

// Save atomically writes cp to <dir>/<session>.json.
func (s *FileStore) Save(_ context.Context, cp Checkpoint) error {
	if err := validate(cp); err != nil {
		return err
	}
	path, err := s.path(cp.SessionID)
	if err != nil {
		return err
	}
	stamp(&cp, time.Now().UTC())

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: encode: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, "."+cp.SessionID+".*.tmp")
	if err != nil {
		return fmt.Errorf("checkpoint: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("checkpoint: write %s: %w", cp.SessionID, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("checkpoint: sync %s: %w", cp.SessionID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("checkpoint: close %s: %w", cp.SessionID, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("checkpoint: rename %s: %w", cp.SessionID, err)
	}
	return nil
}

// Load reads the checkpoint for sessionID.
func (s *FileStore) Load(_ context.Context, sessionID string) (*Checkpoint, error) {
	path, err := s.path(sessionID)
	if err != nil {
		return nil, err
	}
	return readCheckpoint(path, sessionID)
}

// Revision returns the modification time and size of the session file.
func (s *FileStore) Revision(_ context.Context, sessionID string) (string, error) {
	path, err := s.path(sessionID)
	if err != nil {
		return "", err
	}
	fi, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return "", fmt.Errorf("checkpoint: stat %s: %w", path, err)
	}
	return strconv.FormatInt(fi.ModTime().UnixNano(), 10) + "-" + strconv.FormatInt(fi.Size(), 10), nil
}

func readCheckpoint(path, sessionID string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read %s: %w", path, err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("checkpoint: decode %s: %w", path, err)
	}
	return &cp, nil
}

// List reads every checkpoint file in the directory.
func (s *FileStore) List(_ context.Context) ([]Checkpoint, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list %s: %w", s.dir, err)
	}
	out := []Checkpoint{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		cp, err := readCheckpoint(filepath.Join(s.dir, name), strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}
		out = append(out, *cp)
	}
	sortByUpdated(out)
	return out, nil
}

// Delete removes the checkpoint file for sessionID.
func (s *FileStore) Delete(_ context.Context, sessionID string) error {
	path, err := s.path(sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
		}
		return fmt.Errorf("checkpoint: delete %s: %w", sessionID, err)
	}
	return nil
}

// Close is a no-op; every operation opens and closes its own file.
func (s *FileStore) Close() error { return nil }
