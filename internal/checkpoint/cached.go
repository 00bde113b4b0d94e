package checkpoint

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedStore is a read-through LRU cache in front of another Store. Writes
// go to the backing store first and then refresh the cache.
//
// When the backing store is a Revisioner, every Load compares the cached
// revision with the stored one, so a checkpoint rewritten by another process
// is never served stale. Other stores are trusted to have a single writer.
type CachedStore struct {
	next  Store
	rev   Revisioner
	cache *lru.Cache[string, cachedCheckpoint]
}

type cachedCheckpoint struct {
	cp  Checkpoint
	rev string
}

// NewCachedStore wraps next with an LRU cache holding up to size sessions.
func NewCachedStore(next Store, size int) (*CachedStore, error) {
	cache, err := lru.New[string, cachedCheckpoint](size)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: cache: %w", err)
	}
	rev, _ := next.(Revisioner)
	return &CachedStore{next: next, rev: rev, cache: cache}, nil
}

// Save writes through to the backing store.
func (c *CachedStore) Save(ctx context.Context, cp Checkpoint) error {
	if err := c.next.Save(ctx, cp); err != nil {
		c.cache.Remove(cp.SessionID)
		return err
	}
	// Re-read so the cached copy carries the timestamps the store assigned.
	if _, err := c.fill(ctx, cp.SessionID); err != nil {
		c.cache.Remove(cp.SessionID)
	}
	return nil
}

// Load serves from the cache when the cached copy is still current.
func (c *CachedStore) Load(ctx context.Context, sessionID string) (*Checkpoint, error) {
	if entry, ok := c.cache.Get(sessionID); ok {
		if c.rev == nil {
			return cloneCheckpoint(entry.cp), nil
		}
		rev, err := c.rev.Revision(ctx, sessionID)
		if err != nil {
			c.cache.Remove(sessionID)
			return nil, err
		}
		if rev == entry.rev {
			return cloneCheckpoint(entry.cp), nil
		}
	}
	cp, err := c.fill(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return cloneCheckpoint(*cp), nil
}

// fill loads sessionID from the backing store into the cache. The revision is
// read first: a write landing between the two reads leaves an older revision
// in the cache, which the next Load detects.
func (c *CachedStore) fill(ctx context.Context, sessionID string) (*Checkpoint, error) {
	var rev string
	if c.rev != nil {
		r, err := c.rev.Revision(ctx, sessionID)
		if err != nil {
			c.cache.Remove(sessionID)
			return nil, err
		}
		rev = r
	}
	cp, err := c.next.Load(ctx, sessionID)
	if err != nil {
		c.cache.Remove(sessionID)
		return nil, err
	}
	c.cache.Add(sessionID, cachedCheckpoint{cp: *cp, rev: rev})
	return cp, nil
}

// List always reads the backing store.
func (c *CachedStore) List(ctx context.Context) ([]Checkpoint, error) {
	return c.next.List(ctx)
}

// Delete removes the session from both the cache and the backing store.
func (c *CachedStore) Delete(ctx context.Context, sessionID string) error {
	c.cache.Remove(sessionID)
	return c.next.Delete(ctx, sessionID)
}

// Close purges the cache and closes the backing store.
func (c *CachedStore) Close() error {
	c.cache.Purge()
	return c.next.Close()
}

// cloneCheckpoint copies the slices of a cached checkpoint so callers cannot
// mutate the cache through the returned value.
func cloneCheckpoint(cp Checkpoint) *Checkpoint {
	snap := cp.State
	snap.Conversation = append(snap.Conversation[:0:0], snap.Conversation...)
	snap.Supervisor = append(snap.Supervisor[:0:0], snap.Supervisor...)
	snap.RawNotes = append(snap.RawNotes[:0:0], snap.RawNotes...)
	snap.Notes = append(snap.Notes[:0:0], snap.Notes...)
	if snap.ResearchBrief != nil {
		v := *snap.ResearchBrief
		snap.ResearchBrief = &v
	}
	if snap.FinalReport != nil {
		v := *snap.FinalReport
		snap.FinalReport = &v
	}
	cp.State = snap
	return &cp
}
