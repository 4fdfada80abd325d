package autosave

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/inkwell/internal/clock"
	"github.com/aretw0/inkwell/pkg/core"
	"github.com/aretw0/inkwell/pkg/drafts"
	"github.com/aretw0/inkwell/pkg/network"
)

type remoteCall struct {
	op     string
	id     string
	fields core.Fields
}

// fakeRemote records every request. fail decides the outcome of the n-th
// call (1-based); gate, when set, holds requests until it is closed.
type fakeRemote struct {
	mu    sync.Mutex
	calls []remoteCall
	fail  func(n int) error
	gate  chan struct{}
}

func (r *fakeRemote) record(op, id string, f core.Fields) error {
	r.mu.Lock()
	r.calls = append(r.calls, remoteCall{op: op, id: id, fields: f.Clone()})
	n := len(r.calls)
	fail := r.fail
	gate := r.gate
	r.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if fail != nil {
		return fail(n)
	}
	return nil
}

func (r *fakeRemote) CreateNote(ctx context.Context, f core.Fields) (core.Note, error) {
	if err := r.record("create", "", f); err != nil {
		return core.Note{}, err
	}
	return core.Note{ID: "note-1", Title: f.Title, Body: f.Body, Tags: f.Tags, Favorited: f.Favorited}, nil
}

func (r *fakeRemote) UpdateNote(ctx context.Context, id string, f core.Fields) (core.Note, error) {
	if err := r.record("update", id, f); err != nil {
		return core.Note{}, err
	}
	return core.Note{ID: id, Title: f.Title, Body: f.Body, Tags: f.Tags, Favorited: f.Favorited}, nil
}

func (r *fakeRemote) GetNote(ctx context.Context, id string) (core.Note, error) {
	return core.Note{}, core.ErrNotFound
}

func (r *fakeRemote) Calls() []remoteCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]remoteCall(nil), r.calls...)
}

func serverError(n int) error {
	return &core.RemoteError{Op: "update", Status: 503, Kind: core.KindServer, Err: fmt.Errorf("attempt %d unavailable", n)}
}

type harness struct {
	clock   *clock.Fake
	remote  *fakeRemote
	net     *network.Monitor
	backend *drafts.MemoryBackend
	store   *drafts.Store
	sched   *Scheduler

	mu       sync.Mutex
	statuses []core.Status
}

func newHarness(t *testing.T, online bool) *harness {
	t.Helper()

	h := &harness{
		clock:   clock.NewFake(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)),
		remote:  &fakeRemote{},
		net:     network.NewMonitor(online),
		backend: drafts.NewMemoryBackend(0),
	}
	h.store = drafts.New(h.backend, nil)
	h.sched = New(h.remote, h.store, h.net, Config{Clock: h.clock})
	h.sched.Subscribe(func(s core.Status) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.statuses = append(h.statuses, s)
	})
	t.Cleanup(h.sched.Close)
	return h
}

func (h *harness) Statuses() []core.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]core.Status(nil), h.statuses...)
}

func (h *harness) waitCalls(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(h.remote.Calls()) == n }, time.Second, time.Millisecond,
		"expected %d remote calls", n)
}

func (h *harness) waitStatus(t *testing.T, want core.Status) {
	t.Helper()
	require.Eventually(t, func() bool { return h.sched.Status() == want }, time.Second, time.Millisecond,
		"expected status %s, have %s", want, h.sched.Status())
}

func (h *harness) waitRetries(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.sched.Retries() == n }, time.Second, time.Millisecond,
		"expected %d retries consumed", n)
}

func (h *harness) draft(key string) (core.Draft, bool) {
	return h.store.Read(context.Background(), key)
}

var baseline = core.Fields{Title: "Plan", Body: "v1", Tags: []string{"work"}}

func edited(body string) core.Fields {
	f := baseline.Clone()
	f.Body = body
	return f
}

func TestScheduler_DebounceCoalescesEdits(t *testing.T) {
	h := newHarness(t, true)
	h.sched.Reset("n1", baseline)

	for _, body := range []string{"v2", "v3", "v4", "v5"} {
		h.sched.Update(edited(body))
		h.clock.Advance(500 * time.Millisecond)
	}
	assert.Empty(t, h.remote.Calls(), "no save while edits keep arriving")

	h.clock.Advance(250 * time.Millisecond)
	h.waitCalls(t, 1)
	h.waitStatus(t, core.StatusSaved)

	calls := h.remote.Calls()
	assert.Equal(t, "update", calls[0].op)
	assert.Equal(t, "n1", calls[0].id)
	assert.Equal(t, "v5", calls[0].fields.Body)

	assert.Equal(t, edited("v5"), h.sched.Snapshot())
	assert.False(t, h.sched.HasUnsavedChanges())
	_, ok := h.draft("n1")
	assert.False(t, ok, "draft removed after success")

	h.clock.Advance(time.Minute)
	assert.Never(t, func() bool { return len(h.remote.Calls()) > 1 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestScheduler_IdempotentFlush(t *testing.T) {
	h := newHarness(t, true)
	h.sched.Reset("n1", baseline)

	h.sched.Flush()
	h.sched.Update(baseline.Clone())
	assert.Zero(t, h.clock.Pending(), "unchanged buffer arms no timer")

	h.sched.Update(edited("changed"))
	h.sched.Update(baseline.Clone())
	h.clock.Advance(time.Second)
	h.sched.Flush()

	assert.Never(t, func() bool { return len(h.remote.Calls()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, core.StatusIdle, h.sched.Status())
}

func TestScheduler_RetryLadderThenError(t *testing.T) {
	h := newHarness(t, true)
	h.remote.fail = serverError
	h.sched.Reset("n1", baseline)

	h.sched.Update(edited("v2"))
	h.clock.Advance(DefaultDebounce)
	h.waitCalls(t, 1)
	h.waitRetries(t, 1)
	assert.Equal(t, core.StatusRetrying, h.sched.Status())

	h.clock.Advance(2*time.Second - time.Millisecond)
	assert.Len(t, h.remote.Calls(), 1, "first retry waits 2s")
	h.clock.Advance(time.Millisecond)
	h.waitCalls(t, 2)
	h.waitRetries(t, 2)

	h.clock.Advance(5 * time.Second)
	h.waitCalls(t, 3)
	h.waitRetries(t, 3)

	h.clock.Advance(10 * time.Second)
	h.waitCalls(t, 4)
	h.waitStatus(t, core.StatusError)
	assert.Zero(t, h.sched.Retries(), "counter resets on exhaustion")
	assert.Equal(t, core.KindServer, core.KindOf(h.sched.LastError()))

	h.clock.Advance(time.Hour)
	assert.Never(t, func() bool { return len(h.remote.Calls()) > 4 }, 50*time.Millisecond, 5*time.Millisecond)

	d, ok := h.draft("n1")
	require.True(t, ok, "draft survives a terminal error")
	assert.Equal(t, "v2", d.Body)
}

func TestScheduler_NonRetryableStopsImmediately(t *testing.T) {
	h := newHarness(t, true)
	h.remote.fail = func(int) error {
		return &core.RemoteError{Op: "update", Status: 422, Kind: core.KindClient, Err: errors.New("title too long")}
	}
	h.sched.Reset("n1", baseline)

	h.sched.Update(edited("v2"))
	h.clock.Advance(DefaultDebounce)
	h.waitStatus(t, core.StatusError)

	h.clock.Advance(time.Hour)
	assert.Never(t, func() bool { return len(h.remote.Calls()) > 1 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, core.KindClient, core.KindOf(h.sched.LastError()))
}

func TestScheduler_OfflineSuspensionAndRecovery(t *testing.T) {
	h := newHarness(t, false)
	h.sched.Reset("n1", baseline)

	h.sched.Update(edited("offline edit"))
	h.clock.Advance(DefaultDebounce)
	assert.Equal(t, core.StatusOffline, h.sched.Status())
	assert.Empty(t, h.remote.Calls(), "known-unreachable network is not contacted")
	assert.Zero(t, h.sched.Retries(), "offline consumes no retry budget")
	assert.Equal(t, []core.Status{core.StatusSaving, core.StatusOffline}, h.Statuses())

	h.sched.Update(edited("latest"))
	h.clock.Advance(DefaultDebounce)
	assert.Equal(t, core.StatusOffline, h.sched.Status())

	h.net.Set(true)
	h.clock.Advance(DefaultReconnectDelay)
	h.waitCalls(t, 1)
	h.waitStatus(t, core.StatusSaved)
	assert.Equal(t, "latest", h.remote.Calls()[0].fields.Body)

	h.clock.Advance(time.Minute)
	assert.Never(t, func() bool { return len(h.remote.Calls()) > 1 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestScheduler_TransportFailureWhileGoingOffline(t *testing.T) {
	h := newHarness(t, true)
	h.remote.fail = func(n int) error {
		if n == 1 {
			h.net.Set(false)
			return &core.RemoteError{Op: "update", Kind: core.KindTransport, Err: errors.New("connection refused")}
		}
		return nil
	}
	h.sched.Reset("n1", baseline)

	h.sched.Update(edited("v2"))
	h.clock.Advance(DefaultDebounce)
	h.waitStatus(t, core.StatusOffline)
	assert.Zero(t, h.sched.Retries())

	h.net.Set(true)
	h.clock.Advance(DefaultReconnectDelay)
	h.waitCalls(t, 2)
	h.waitStatus(t, core.StatusSaved)
}

func TestScheduler_EditSupersedesRetry(t *testing.T) {
	h := newHarness(t, true)
	h.remote.fail = func(n int) error {
		if n == 1 {
			return serverError(n)
		}
		return nil
	}
	h.sched.Reset("n1", baseline)

	h.sched.Update(edited("stale"))
	h.clock.Advance(DefaultDebounce)
	h.waitRetries(t, 1)

	h.sched.Update(edited("fresh"))
	assert.Zero(t, h.sched.Retries(), "fresh edit resets the retry state")
	assert.Equal(t, core.StatusIdle, h.sched.Status())

	h.clock.Advance(DefaultDebounce)
	h.waitCalls(t, 2)
	h.waitStatus(t, core.StatusSaved)
	assert.Equal(t, "fresh", h.remote.Calls()[1].fields.Body)

	h.clock.Advance(time.Minute)
	assert.Never(t, func() bool { return len(h.remote.Calls()) > 2 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestScheduler_RevertDuringRetryCancelsIt(t *testing.T) {
	h := newHarness(t, true)
	h.remote.fail = func(n int) error { return serverError(n) }
	h.sched.Reset("n1", baseline)

	h.sched.Update(edited("v2"))
	h.clock.Advance(DefaultDebounce)
	h.waitRetries(t, 1)
	require.Equal(t, core.StatusRetrying, h.sched.Status())

	h.sched.Update(baseline)
	assert.Zero(t, h.sched.Retries(), "the edit resets the retry state")
	assert.Equal(t, core.StatusIdle, h.sched.Status())
	assert.False(t, h.sched.HasUnsavedChanges())
	_, ok := h.draft("n1")
	assert.False(t, ok, "a draft equal to the server copy is dropped")

	h.clock.Advance(time.Minute)
	assert.Never(t, func() bool { return len(h.remote.Calls()) > 1 }, 50*time.Millisecond, 5*time.Millisecond,
		"the snapshot content is never sent")
}

func TestScheduler_CreateAssignsIdentity(t *testing.T) {
	h := newHarness(t, true)
	created := make(chan core.Note, 1)
	h.sched.OnCreated(func(n core.Note) { created <- n })

	h.sched.Update(core.Fields{Tags: []string{"only-tags"}})
	assert.Zero(t, h.clock.Pending(), "a blank note is never created")

	h.sched.Update(core.Fields{Body: "Hello"})
	h.clock.Advance(DefaultDebounce)
	h.waitStatus(t, core.StatusSaved)

	calls := h.remote.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "create", calls[0].op)
	assert.Equal(t, "note-1", h.sched.ID())
	assert.Equal(t, "note-1", (<-created).ID)
	_, ok := h.draft(core.NewNoteKey)
	assert.False(t, ok)

	h.sched.Update(core.Fields{Body: "Hello, world"})
	h.clock.Advance(DefaultDebounce)
	h.waitCalls(t, 2)
	assert.Equal(t, "update", h.remote.Calls()[1].op)
	assert.Equal(t, "note-1", h.remote.Calls()[1].id)
}

func TestScheduler_SingleRequestInFlight(t *testing.T) {
	h := newHarness(t, true)
	h.remote.gate = make(chan struct{})
	h.sched.Reset("n1", baseline)

	h.sched.Update(edited("first"))
	h.clock.Advance(DefaultDebounce)
	h.waitCalls(t, 1)

	h.sched.Update(edited("second"))
	h.sched.Flush()
	h.sched.SaveNow()
	h.clock.Advance(time.Minute)
	assert.Len(t, h.remote.Calls(), 1, "no second request while one is pending")

	h.remote.mu.Lock()
	close(h.remote.gate)
	h.remote.gate = nil
	h.remote.mu.Unlock()

	require.Eventually(t, func() bool {
		d, ok := h.draft("n1")
		return ok && d.Body == "second"
	}, time.Second, time.Millisecond, "mid-request edits stay durable")
	require.Eventually(t, func() bool { return h.clock.Pending() == 1 }, time.Second, time.Millisecond,
		"follow-up debounce armed")
	assert.True(t, h.sched.HasUnsavedChanges())

	h.clock.Advance(DefaultDebounce)
	h.waitCalls(t, 2)
	assert.Equal(t, "second", h.remote.Calls()[1].fields.Body)
}

func TestScheduler_CancelStopsTimers(t *testing.T) {
	h := newHarness(t, true)
	h.sched.Reset("n1", baseline)

	h.sched.Update(edited("doomed"))
	h.sched.Cancel()
	h.clock.Advance(time.Minute)

	assert.Never(t, func() bool { return len(h.remote.Calls()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Zero(t, h.clock.Pending())
}

func TestScheduler_SaveNowIsUnconditional(t *testing.T) {
	h := newHarness(t, true)
	h.sched.Reset("n1", baseline)

	h.sched.SaveNow()
	h.waitCalls(t, 1)
	h.waitStatus(t, core.StatusSaved)
}

func TestScheduler_FlushPersistsDraftBeforeNetwork(t *testing.T) {
	h := newHarness(t, false)
	h.sched.Reset("n1", baseline)

	h.sched.Update(edited("unsent"))
	h.sched.Flush()

	d, ok := h.draft("n1")
	require.True(t, ok)
	assert.Equal(t, "unsent", d.Body)
	assert.Equal(t, h.clock.Now(), d.SavedAt)
	assert.Equal(t, core.StatusOffline, h.sched.Status())
}

func TestScheduler_State(t *testing.T) {
	h := newHarness(t, true)
	h.sched.Reset("n1", baseline)
	h.sched.Update(edited("x"))

	state, ok := h.sched.State().(SchedulerState)
	require.True(t, ok)
	assert.Equal(t, "n1", state.NoteID)
	assert.True(t, state.Unsaved)
	assert.Equal(t, 3, state.MaxRetries)
	assert.Equal(t, "autosave-scheduler", h.sched.ComponentType())
}
