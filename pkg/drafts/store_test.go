package drafts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/inkwell/pkg/core"
)

// failingBackend fails every operation, like storage disabled by the platform.
type failingBackend struct{}

func (failingBackend) Put(context.Context, string, core.Draft) error { return errors.New("disabled") }
func (failingBackend) Get(context.Context, string) (core.Draft, error) {
	return core.Draft{}, errors.New("disabled")
}
func (failingBackend) Delete(context.Context, string) error     { return errors.New("disabled") }
func (failingBackend) Keys(context.Context) ([]string, error) { return nil, errors.New("disabled") }

func sampleDraft(body string) core.Draft {
	return core.Draft{
		Fields:  core.Fields{Title: "Groceries", Body: body, Tags: []string{"home"}},
		SavedAt: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestStore_WriteReadRemove(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryBackend(0), nil)

	_, ok := s.Read(ctx, "n1")
	assert.False(t, ok)

	s.Write(ctx, "n1", sampleDraft("milk"))
	s.Write(ctx, "n1", sampleDraft("milk, eggs"))

	got, ok := s.Read(ctx, "n1")
	require.True(t, ok)
	assert.Equal(t, "milk, eggs", got.Body, "writes overwrite in place")

	s.Remove(ctx, "n1")
	_, ok = s.Read(ctx, "n1")
	assert.False(t, ok)
}

func TestStore_SwallowsBackendFailures(t *testing.T) {
	ctx := context.Background()
	s := New(failingBackend{}, nil)

	assert.NotPanics(t, func() {
		s.Write(ctx, "n1", sampleDraft("x"))
		s.Remove(ctx, "n1")
	})
	_, ok := s.Read(ctx, "n1")
	assert.False(t, ok)
	assert.Empty(t, s.List(ctx, ""))
}

func TestStore_QuotaExceededIsNoop(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend(20)
	s := New(backend, nil)

	s.Write(ctx, "small", sampleDraft("ok"))
	s.Write(ctx, "large", sampleDraft("this body is far too long for the quota"))

	_, ok := s.Read(ctx, "large")
	assert.False(t, ok)
	_, ok = s.Read(ctx, "small")
	assert.True(t, ok)
	assert.Equal(t, 1, backend.Len())
}

func TestStore_WriteIsolatesCallerSlices(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryBackend(0), nil)

	d := sampleDraft("x")
	s.Write(ctx, "n1", d)
	d.Tags[0] = "mutated"

	got, ok := s.Read(ctx, "n1")
	require.True(t, ok)
	assert.Equal(t, []string{"home"}, got.Tags)
}

func TestStore_List(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryBackend(0), nil)
	for _, k := range []string{"new", "work/a", "work/b", "home/c"} {
		s.Write(ctx, k, sampleDraft(k))
	}

	assert.Equal(t, []string{"home/c", "new", "work/a", "work/b"}, s.List(ctx, ""))
	assert.Equal(t, []string{"work/a", "work/b"}, s.List(ctx, "work/*"))
}

func TestStore_State(t *testing.T) {
	s := New(NewMemoryBackend(0), nil)
	state, ok := s.State().(StoreState)
	require.True(t, ok)
	assert.Equal(t, "memory", state.Backend)
}
