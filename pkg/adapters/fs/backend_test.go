package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/inkwell/pkg/core"
	"github.com/aretw0/inkwell/pkg/drafts"
)

func newBackend(t *testing.T) *DraftBackend {
	t.Helper()
	b := NewDraftBackend(Config{Dir: filepath.Join(t.TempDir(), "drafts")})
	require.NoError(t, b.Initialize(context.Background()))
	return b
}

func sample(body string) core.Draft {
	return core.Draft{
		Fields:  core.Fields{Title: "Plan", Body: body, Tags: []string{"work"}},
		SavedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestDraftBackend_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

	require.NoError(t, b.Put(ctx, "n1", sample("v1")))
	require.NoError(t, b.Put(ctx, "n1", sample("v2")))

	got, err := b.Get(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Body, "one draft per key")

	require.NoError(t, b.Delete(ctx, "n1"))
	_, err = b.Get(ctx, "n1")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.NoError(t, b.Delete(ctx, "n1"), "deleting a missing draft is fine")
}

func TestDraftBackend_KeysAreEscaped(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

	for _, key := range []string{core.NewNoteKey, "team/alpha", "n 2"} {
		require.NoError(t, b.Put(ctx, key, sample(key)))
	}
	require.NoError(t, os.WriteFile(filepath.Join(b.Dir, "README.txt"), []byte("ignored"), 0o644))

	keys, err := b.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"n 2", "new", "team/alpha"}, keys)

	path, err := b.Path("team/alpha")
	require.NoError(t, err)
	assert.Equal(t, b.Dir, filepath.Dir(path), "keys never escape the draft directory")
}

func TestDraftBackend_CorruptFile(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

	path, err := b.Path("n1")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("---\ntitle: [oops\n"), 0o644))

	_, err = b.Get(ctx, "n1")
	assert.ErrorIs(t, err, ErrMalformed)

	store := drafts.New(b, nil)
	_, ok := store.Read(ctx, "n1")
	assert.False(t, ok, "corrupt drafts read as absent")
}

func TestDraftBackend_CacheSeesExternalEdits(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	require.NoError(t, b.Put(ctx, "n1", sample("mine")))

	_, err := b.Get(ctx, "n1")
	require.NoError(t, err)
	state := b.State().(BackendState)
	assert.Equal(t, 1, state.CacheHits)

	data, err := EncodeDraft(sample("edited elsewhere, longer body"))
	require.NoError(t, err)
	path, _ := b.Path("n1")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	got, err := b.Get(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, "edited elsewhere, longer body", got.Body)
}

func TestDraftBackend_Initialize(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	b := NewDraftBackend(Config{Dir: missing, MustExist: true})
	assert.Error(t, b.Initialize(context.Background()))

	keys, err := b.Keys(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, keys)

	assert.Equal(t, "fs-drafts", b.ComponentType())
}

func TestDraftBackend_ThroughStore(t *testing.T) {
	ctx := context.Background()
	store := drafts.New(newBackend(t), nil)

	store.Write(ctx, "n1", sample("a"))
	store.Write(ctx, "n2", sample("b"))
	store.Write(ctx, core.NewNoteKey, sample("c"))

	keys := store.List(ctx, "n*")
	assert.Equal(t, []string{"n1", "n2", "new"}, keys)

	d, ok := store.Read(ctx, "n2")
	require.True(t, ok)
	assert.Equal(t, "b", d.Body)
}
