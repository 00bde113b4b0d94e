package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/deepresearch/internal/config"
	"github.com/dusk-indust/deepresearch/internal/state"
)

func sampleCheckpoint(id string, phase Phase, updated time.Time) Checkpoint {
	brief := "Compare EU battery makers"
	return Checkpoint{
		SessionID: id,
		Phase:     phase,
		Question:  "Which years?",
		UpdatedAt: updated,
		State: state.Snapshot{
			ID: id,
			Conversation: []state.Message{
				{ID: "u1", Role: state.RoleUser, Content: "batteries", CreatedAt: updated},
			},
			ResearchBrief: &brief,
			RawNotes:      []string{"n1", "n1"},
		},
	}
}

// testStoreContract runs the behaviour every backend must share.
func testStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("save and load", func(t *testing.T) {
		s := newStore(t)
		want := sampleCheckpoint("s1", PhaseAwaitingInput, base)
		require.NoError(t, s.Save(ctx, want))

		got, err := s.Load(ctx, "s1")
		require.NoError(t, err)
		assert.False(t, got.CreatedAt.IsZero())
		got.CreatedAt = time.Time{}
		if diff := cmp.Diff(want, *got); diff != "" {
			t.Errorf("checkpoint mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("save overwrites", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(ctx, sampleCheckpoint("s1", PhaseAwaitingInput, base)))
		next := sampleCheckpoint("s1", PhaseCompleted, base.Add(time.Minute))
		next.Question = ""
		require.NoError(t, s.Save(ctx, next))

		got, err := s.Load(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, PhaseCompleted, got.Phase)
		assert.Empty(t, got.Question)

		all, err := s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("missing session", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Load(ctx, "nope")
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.True(t, errors.Is(s.Delete(ctx, "nope"), ErrNotFound))
	})

	t.Run("list newest first", func(t *testing.T) {
		s := newStore(t)
		for i, id := range []string{"a", "b", "c"} {
			require.NoError(t, s.Save(ctx, sampleCheckpoint(id, PhaseResearching, base.Add(time.Duration(i)*time.Minute))))
		}
		all, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"c", "b", "a"}, []string{all[0].SessionID, all[1].SessionID, all[2].SessionID})
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(ctx, sampleCheckpoint("s1", PhaseFailed, base)))
		require.NoError(t, s.Delete(ctx, "s1"))
		_, err := s.Load(ctx, "s1")
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("rejects empty id", func(t *testing.T) {
		s := newStore(t)
		assert.Error(t, s.Save(ctx, Checkpoint{}))
	})

	t.Run("concurrent saves", func(t *testing.T) {
		s := newStore(t)
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id := fmt.Sprintf("s%d", i)
				assert.NoError(t, s.Save(ctx, sampleCheckpoint(id, PhaseResearching, base)))
			}(i)
		}
		wg.Wait()
		all, err := s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 10)
	})
}

func TestMemStore(t *testing.T) {
	testStoreContract(t, func(t *testing.T) Store { return NewMemStore() })
}

func TestFileStore(t *testing.T) {
	testStoreContract(t, func(t *testing.T) Store {
		s, err := NewFileStore(filepath.Join(t.TempDir(), "sessions"))
		require.NoError(t, err)
		return s
	})
}

func TestFileStore_RejectsPathLikeIDs(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	for _, id := range []string{"../escape", "a/b", ".hidden"} {
		cp := sampleCheckpoint(id, PhaseResearching, time.Now())
		assert.Error(t, s.Save(context.Background(), cp), id)
	}
}

func TestFileStore_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), sampleCheckpoint("s1", PhaseResearching, time.Now())))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "s1.json", entries[0].Name())
}

func TestSQLiteStore(t *testing.T) {
	testStoreContract(t, func(t *testing.T) Store {
		s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "sessions.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("DEEPRESEARCH_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("DEEPRESEARCH_TEST_PG_DSN not set")
	}
	testStoreContract(t, func(t *testing.T) Store {
		s, err := OpenPostgres(context.Background(), dsn)
		require.NoError(t, err)
		_, err = s.db.Exec("DELETE FROM research_sessions")
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestSQLStore_Rebind(t *testing.T) {
	pg := &SQLStore{driver: DriverPostgres}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))

	lite := &SQLStore{driver: DriverSQLite}
	assert.Equal(t, "x = ?", lite.rebind("x = ?"))
}

func TestCachedStore(t *testing.T) {
	testStoreContract(t, func(t *testing.T) Store {
		s, err := NewCachedStore(NewMemStore(), 4)
		require.NoError(t, err)
		return s
	})
}

// countingStore counts Load calls on the backing store.
type countingStore struct {
	Store
	mu    sync.Mutex
	loads int
}

func (c *countingStore) Load(ctx context.Context, id string) (*Checkpoint, error) {
	c.mu.Lock()
	c.loads++
	c.mu.Unlock()
	return c.Store.Load(ctx, id)
}

func TestCachedStore_ServesFromCache(t *testing.T) {
	ctx := context.Background()
	backing := &countingStore{Store: NewMemStore()}
	s, err := NewCachedStore(backing, 2)
	require.NoError(t, err)

	require.NoError(t, s.Save(ctx, sampleCheckpoint("s1", PhaseResearching, time.Now())))
	loadsAfterSave := backing.loads

	for i := 0; i < 3; i++ {
		got, err := s.Load(ctx, "s1")
		require.NoError(t, err)
		got.State.RawNotes[0] = "mutated"
	}
	assert.Equal(t, loadsAfterSave, backing.loads)

	got, err := s.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "n1", got.State.RawNotes[0])
}

// testRevisions checks that a Revisioner's token changes on every rewrite.
func testRevisions(t *testing.T, s interface {
	Store
	Revisioner
}) {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.Revision(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, s.Save(ctx, sampleCheckpoint("s1", PhaseAwaitingInput, base)))
	first, err := s.Revision(ctx, "s1")
	require.NoError(t, err)
	again, err := s.Revision(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, first, again)

	require.NoError(t, s.Save(ctx, sampleCheckpoint("s1", PhaseCompleted, base.Add(time.Minute))))
	second, err := s.Revision(ctx, "s1")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestFileStore_Revision(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	testRevisions(t, s)
}

func TestSQLiteStore_Revision(t *testing.T) {
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "rev.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	testRevisions(t, s)
}

// Two processes sharing one session directory, each with its own cache.
func TestCachedStore_SeesWritesFromOtherProcess(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	open := func() *CachedStore {
		fs, err := NewFileStore(dir)
		require.NoError(t, err)
		s, err := NewCachedStore(fs, 8)
		require.NoError(t, err)
		return s
	}
	a, b := open(), open()

	require.NoError(t, a.Save(ctx, sampleCheckpoint("s1", PhaseAwaitingInput, base)))
	got, err := a.Load(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, PhaseAwaitingInput, got.Phase)

	cp, err := b.Load(ctx, "s1")
	require.NoError(t, err)
	cp.Phase = PhaseCompleted
	cp.Question = ""
	cp.UpdatedAt = base.Add(time.Minute)
	require.NoError(t, b.Save(ctx, *cp))

	got, err = a.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, PhaseCompleted, got.Phase)
	assert.Empty(t, got.Question)

	require.NoError(t, b.Delete(ctx, "s1"))
	_, err = a.Load(ctx, "s1")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(ctx, config.CheckpointConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemStore{}, s)

	s, err = Open(ctx, config.CheckpointConfig{Backend: "file", Path: filepath.Join(dir, "f")})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = Open(ctx, config.CheckpointConfig{Backend: "sqlite", Path: filepath.Join(dir, "s.db"), CacheSize: 8})
	require.NoError(t, err)
	assert.IsType(t, &CachedStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, config.CheckpointConfig{Backend: "redis"})
	assert.Error(t, err)
}
