package localfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Quisharoo/manager-feedback-questions-sub000/session"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "nested", "sessions.json"))
}

func sample(id string) *session.Session {
	return &session.Session{
		ID:         id,
		Name:       "Weekly 1:1",
		CreatedAt:  10,
		LastAccess: 10,
		Asked:      []session.Question{},
		Skipped:    []session.Question{},
		Answers:    map[string]string{},
	}
}

func TestMissingFileBehavesAsEmpty(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	_, err := b.Fetch(ctx, "x")
	require.ErrorIs(t, err, session.ErrNotFound)

	all, err := b.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	require.NoError(t, b.Ping(ctx))
}

func TestInsertFetchPersistsDocumentLayout(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Insert(ctx, sample("s1")))
	require.ErrorIs(t, b.Insert(ctx, sample("s1")), session.ErrExists)

	got, err := b.Fetch(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Weekly 1:1", got.Name)

	raw, err := os.ReadFile(b.Path())
	require.NoError(t, err)
	var doc struct {
		Sessions map[string]map[string]any `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Contains(t, doc.Sessions, "s1")
	assert.Equal(t, "s1", doc.Sessions["s1"]["id"])

	// A second backend on the same path sees the same data.
	reopened := New(b.Path())
	again, err := reopened.Fetch(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, got.Name, again.Name)
}

func TestCompareAndSwap(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	require.NoError(t, b.Insert(ctx, sample("s1")))

	next := sample("s1")
	next.Version = 1
	next.Answers["Q1"] = "notes"
	require.NoError(t, b.CompareAndSwap(ctx, next, 0))

	stale := sample("s1")
	stale.Version = 1
	require.ErrorIs(t, b.CompareAndSwap(ctx, stale, 0), session.ErrVersionConflict)
	require.ErrorIs(t, b.CompareAndSwap(ctx, sample("ghost"), 0), session.ErrNotFound)

	got, err := b.Fetch(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "notes", got.Answers["Q1"])
	assert.Equal(t, int64(1), got.Version)
}

func TestWriteDeleteList(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Write(ctx, sample("a")))
	require.NoError(t, b.Write(ctx, sample("b")))
	require.NoError(t, b.Delete(ctx, "a"))
	require.NoError(t, b.Delete(ctx, "missing"))

	all, err := b.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "b", all[0].ID)
}

func TestLegacyEntriesAreMigrated(t *testing.T) {
	b := newTestBackend(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(b.Path()), 0o755))
	legacy := `{"sessions":{"old":{"name":"n","createdAt":1,"lastAccess":1,"asked":["Q1"],"answers":{}}}}`
	require.NoError(t, os.WriteFile(b.Path(), []byte(legacy), 0o644))

	got, err := b.Fetch(context.Background(), "old")
	require.NoError(t, err)
	assert.Equal(t, "old", got.ID)
	assert.Equal(t, []session.Question{{Text: "Q1"}}, got.Asked)
	assert.NotNil(t, got.Skipped)
	assert.Equal(t, session.CurrentSchemaVersion, got.SchemaVersion)
}

func TestCorruptFile(t *testing.T) {
	b := newTestBackend(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(b.Path()), 0o755))
	require.NoError(t, os.WriteFile(b.Path(), []byte("{oops"), 0o644))

	_, err := b.Fetch(context.Background(), "x")
	require.ErrorIs(t, err, session.ErrCorrupt)
	require.ErrorIs(t, b.Ping(context.Background()), session.ErrCorrupt)
}

func TestUnwritableDirectoryIsStorageUnavailable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	// The parent "directory" is a regular file, so MkdirAll fails.
	b := New(filepath.Join(blocker, "sessions.json"))
	err := b.Insert(context.Background(), sample("s1"))
	require.ErrorIs(t, err, session.ErrStorageUnavailable)
}

func TestConcurrentStoreUpdatesAllSurvive(t *testing.T) {
	ctx := context.Background()
	store := session.NewStore(newTestBackend(t), session.Options{
		MaxAttempts:     50,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	})
	sess, err := store.Create(ctx, "race")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Update(ctx, sess.ID, func(cur *session.Session) (*session.Session, error) {
				cur.Answers[fmt.Sprintf("q%d", i)] = "v"
				return cur, nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, got.Answers, 5)
}
