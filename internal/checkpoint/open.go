package checkpoint

import (
	"context"
	"fmt"
	"strings"

	"github.com/dusk-indust/deepresearch/internal/config"
)

// Open builds the store selected by cfg, wrapped in a CachedStore when
// CacheSize is positive.
func Open(ctx context.Context, cfg config.CheckpointConfig) (Store, error) {
	var (
		store Store
		err   error
	)
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return NewMemStore(), nil
	case "file":
		store, err = NewFileStore(cfg.Path)
	case "sqlite":
		store, err = OpenSQLite(ctx, cfg.Path)
	case "postgres":
		store, err = OpenPostgres(ctx, cfg.DSN)
	case "kuzu":
		store, err = openKuzu(cfg.Path)
	default:
		return nil, fmt.Errorf("checkpoint: unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if cfg.CacheSize <= 0 {
		return store, nil
	}
	cached, err := NewCachedStore(store, cfg.CacheSize)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return cached, nil
}
