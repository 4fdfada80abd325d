package flush

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	unsaved  atomic.Bool
	persists atomic.Int32
	flushes  atomic.Int32
	order    []string
}

func newRecorder(unsaved bool) (*recorder, *Triggers) {
	r := &recorder{}
	r.unsaved.Store(unsaved)
	tr := New(r.unsaved.Load,
		func() { r.persists.Add(1); r.order = append(r.order, "persist") },
		func() { r.flushes.Add(1); r.order = append(r.order, "flush") },
		nil)
	return r, tr
}

func TestTriggers_FlushOncePerQualifyingEvent(t *testing.T) {
	r, tr := newRecorder(true)

	for _, ev := range []Event{EventHidden, EventBlur, EventUnload} {
		assert.True(t, tr.Fire(ev), ev)
		assert.Equal(t, 1, tr.Fired(ev))
	}
	assert.EqualValues(t, 3, r.flushes.Load())
	assert.EqualValues(t, 3, r.persists.Load())
	assert.Equal(t, []string{"persist", "flush", "persist", "flush", "persist", "flush"}, r.order,
		"the draft is written before the network flush starts")
}

func TestTriggers_IgnoresNonQualifyingEvents(t *testing.T) {
	r, tr := newRecorder(true)

	assert.False(t, tr.Fire(EventVisible))
	assert.False(t, tr.Fire(EventFocus))
	assert.Zero(t, r.flushes.Load())
}

func TestTriggers_NoUnsavedChanges(t *testing.T) {
	r, tr := newRecorder(false)

	assert.False(t, tr.Fire(EventHidden))
	assert.Zero(t, r.persists.Load())
	assert.Zero(t, r.flushes.Load())
}

// chanSource is a minimal lifecycle.Source over a channel of events.
type chanSource struct {
	out chan lifecycle.Event
}

func (s *chanSource) Events() <-chan lifecycle.Event  { return s.out }
func (s *chanSource) Start(ctx context.Context) error { return nil }

func TestTriggers_Watch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r, tr := newRecorder(true)
	src := &chanSource{out: make(chan lifecycle.Event)}
	require.NoError(t, tr.Watch(ctx, src))

	src.out <- EventHidden
	src.out <- EventFocus
	src.out <- EventUnload

	require.Eventually(t, func() bool { return r.flushes.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, tr.Fired(EventUnload))
}
