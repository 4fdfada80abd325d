// Package autosave turns a stream of edits into remote saves.
//
// The Scheduler debounces edits, sends only the latest buffer, keeps at most
// one request in flight, classifies failures into retry, offline suspension
// or terminal error, and keeps the draft store in step with what the remote
// store has acknowledged.
package autosave

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/inkwell/internal/clock"
	"github.com/aretw0/inkwell/pkg/core"
	"github.com/aretw0/inkwell/pkg/drafts"
)

const (
	// DefaultDebounce is the quiet period after the last edit before saving.
	DefaultDebounce = 750 * time.Millisecond
	// DefaultReconnectDelay separates a reachability notification from the save it triggers.
	DefaultReconnectDelay = 100 * time.Millisecond
	// DefaultRequestTimeout bounds a single remote call.
	DefaultRequestTimeout = 30 * time.Second
)

// DefaultRetryDelays is the backoff ladder. Its length is the retry budget.
var DefaultRetryDelays = []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second}

// Config holds the scheduler tunables. Zero values select the defaults.
type Config struct {
	Debounce       time.Duration
	RetryDelays    []time.Duration
	ReconnectDelay time.Duration
	RequestTimeout time.Duration
	Clock          clock.Clock
	Logger         *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	if len(c.RetryDelays) == 0 {
		c.RetryDelays = DefaultRetryDelays
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.Clock == nil {
		c.Clock = clock.Real()
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// Scheduler is the save state machine for one editor.
type Scheduler struct {
	mu     sync.Mutex
	cfg    Config
	remote core.RemoteStore
	drafts *drafts.Store
	net    core.Connectivity

	ctx    context.Context
	cancel context.CancelFunc

	id       string
	buffer   core.Fields
	snapshot core.Fields
	phase    phase
	retries  int
	lastErr  error
	closed   bool

	// gen invalidates timer callbacks that lost the race with a transition.
	gen uint64

	nextSub     int
	listeners   map[int]func(core.Status)
	onCreated   func(core.Note)
	unsubscribe func()

	// effects run after the lock is released.
	effects []func()
}

// New creates a scheduler for a note without identity. Call Reset to bind it
// to an existing note. net may be nil, in which case the network is assumed
// reachable.
func New(remote core.RemoteStore, store *drafts.Store, net core.Connectivity, cfg Config) *Scheduler {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		cfg:       cfg,
		remote:    remote,
		drafts:    store,
		net:       net,
		ctx:       ctx,
		cancel:    cancel,
		phase:     &idlePhase{outcome: core.StatusIdle},
		listeners: make(map[int]func(core.Status)),
	}
	if net != nil {
		s.unsubscribe = net.Subscribe(s.onConnectivity)
	}
	return s
}

// OnCreated registers fn to receive the note returned by a successful create.
func (s *Scheduler) OnCreated(fn func(core.Note)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCreated = fn
}

// Subscribe registers fn for status transitions.
func (s *Scheduler) Subscribe(fn func(core.Status)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Reset binds the scheduler to a note identity with a known baseline.
// Pending timers are cancelled and any in-flight result will be ignored.
func (s *Scheduler) Reset(id string, baseline core.Fields) {
	s.do(func() {
		s.stopLocked()
		s.id = id
		s.snapshot = baseline.Clone()
		s.buffer = baseline.Clone()
		s.retries = 0
		s.lastErr = nil
		s.setPhaseLocked(&idlePhase{outcome: core.StatusIdle})
	})
}

// Update records the latest buffer. Qualifying edits restart the debounce
// window; edits that arrive during a request are saved once it completes.
func (s *Scheduler) Update(f core.Fields) {
	s.do(func() {
		if s.closed {
			return
		}
		s.buffer = f.Clone()

		if p, ok := s.phase.(*savingPhase); ok {
			p.followUp = true
			return
		}

		// A fresh edit supersedes a pending retry, qualifying or not.
		if _, ok := s.phase.(*retryingPhase); ok {
			s.stopLocked()
			s.retries = 0
			if !s.qualifiesLocked() {
				// Back to the acknowledged state: nothing left to send or recover.
				s.drafts.Remove(s.ctx, core.DraftKey(s.id))
				s.setPhaseLocked(&idlePhase{outcome: core.StatusIdle})
				return
			}
		}
		if !s.qualifiesLocked() {
			return
		}

		s.retries = 0
		s.armDebounceLocked()
	})
}

// Flush cancels the debounce window and saves the buffer now if it differs
// from the last acknowledged state. It is a no-op while a request is in flight.
func (s *Scheduler) Flush() {
	s.do(func() { s.flushLocked(false) })
}

// SaveNow saves the buffer immediately even when it matches the last
// acknowledged state. It is a no-op while a request is in flight.
func (s *Scheduler) SaveNow() {
	s.do(func() { s.flushLocked(true) })
}

// PersistDraft writes the buffer to the draft store synchronously when it
// holds unsaved changes.
func (s *Scheduler) PersistDraft() {
	s.do(s.persistDraftLocked)
}

// Cancel stops every pending timer and detaches any in-flight request, whose
// result will be discarded.
func (s *Scheduler) Cancel() {
	s.do(func() {
		s.stopLocked()
		s.setPhaseLocked(&idlePhase{outcome: core.StatusIdle})
	})
}

// Close cancels all pending work and releases the connectivity subscription.
func (s *Scheduler) Close() {
	s.do(func() {
		if s.closed {
			return
		}
		s.stopLocked()
		s.closed = true
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		s.cancel()
	})
}

// Status returns the presentation status.
func (s *Scheduler) Status() core.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase.status()
}

// ID returns the remote identity, empty until a create succeeds.
func (s *Scheduler) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Snapshot returns the last state known to match the remote store.
func (s *Scheduler) Snapshot() core.Fields {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Clone()
}

// HasUnsavedChanges reports whether the buffer differs from the snapshot.
func (s *Scheduler) HasUnsavedChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.buffer.Equal(s.snapshot)
}

// Retries returns the number of retries consumed in the current cycle.
func (s *Scheduler) Retries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retries
}

// LastError returns the failure that produced the current error status.
func (s *Scheduler) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// do runs fn under the lock and then the effects it queued.
func (s *Scheduler) do(fn func()) {
	s.mu.Lock()
	fn()
	effects := s.effects
	s.effects = nil
	s.mu.Unlock()

	for _, e := range effects {
		e()
	}
}

func (s *Scheduler) qualifiesLocked() bool {
	if s.buffer.Equal(s.snapshot) {
		return false
	}
	return s.id != "" || !s.buffer.IsBlank()
}

func (s *Scheduler) setPhaseLocked(p phase) {
	from := s.phase.status()
	s.phase = p
	to := p.status()
	if from == to {
		return
	}

	s.cfg.Logger.Debug("autosave status", "note", core.DraftKey(s.id), "from", from, "to", to)

	listeners := make([]func(core.Status), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.effects = append(s.effects, func() {
		for _, l := range listeners {
			l(to)
		}
	})
}

// stopLocked cancels the current phase's timer and invalidates callbacks
// already queued behind the lock.
func (s *Scheduler) stopLocked() {
	s.phase.stop()
	s.gen++
}

func (s *Scheduler) after(d time.Duration, fn func()) clock.Timer {
	gen := s.gen
	return s.cfg.Clock.AfterFunc(d, func() {
		s.do(func() {
			if s.closed || gen != s.gen {
				return
			}
			fn()
		})
	})
}

func (s *Scheduler) armDebounceLocked() {
	shown := core.StatusIdle
	if _, offline := s.phase.(*offlinePhase); offline {
		shown = core.StatusOffline
	} else if p, ok := s.phase.(*debouncingPhase); ok {
		shown = p.shown
	}

	s.stopLocked()
	timer := s.after(s.cfg.Debounce, s.onDebounceLocked)
	s.setPhaseLocked(&debouncingPhase{timer: timer, shown: shown})
}

func (s *Scheduler) onDebounceLocked() {
	s.persistDraftLocked()
	if !s.qualifiesLocked() {
		s.setPhaseLocked(&idlePhase{outcome: core.StatusIdle})
		return
	}
	s.dispatchLocked()
}

func (s *Scheduler) flushLocked(force bool) {
	if s.closed {
		return
	}
	if _, saving := s.phase.(*savingPhase); saving {
		return
	}

	s.persistDraftLocked()

	send := s.qualifiesLocked()
	if force && s.id != "" {
		send = true
	}
	if !send {
		if _, debouncing := s.phase.(*debouncingPhase); debouncing {
			s.stopLocked()
			s.setPhaseLocked(&idlePhase{outcome: core.StatusIdle})
		}
		return
	}

	s.stopLocked()
	s.dispatchLocked()
}

func (s *Scheduler) persistDraftLocked() {
	if s.buffer.Equal(s.snapshot) || (s.id == "" && s.buffer.IsBlank()) {
		return
	}
	s.drafts.Write(s.ctx, core.DraftKey(s.id), core.Draft{
		Fields:  s.buffer,
		SavedAt: s.cfg.Clock.Now(),
	})
}

// dispatchLocked sends the current buffer. Callers have already stopped any
// timer of the previous phase.
func (s *Scheduler) dispatchLocked() {
	p := &savingPhase{sent: s.buffer.Clone(), create: s.id == ""}
	s.gen++
	s.setPhaseLocked(p)

	if s.net != nil && !s.net.Online() {
		s.cfg.Logger.Debug("autosave skipped, network unreachable", "note", core.DraftKey(s.id))
		s.setPhaseLocked(&offlinePhase{})
		return
	}

	id := s.id
	fields := p.sent.Clone()
	lifecycle.Go(s.ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()

		var (
			note core.Note
			err  error
		)
		if p.create {
			note, err = s.remote.CreateNote(ctx, fields)
		} else {
			note, err = s.remote.UpdateNote(ctx, id, fields)
		}
		s.complete(p, note, err)
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		s.complete(p, core.Note{}, fmt.Errorf("save panicked: %w", err))
	}))
}

func (s *Scheduler) complete(p *savingPhase, note core.Note, err error) {
	s.do(func() {
		if s.closed || s.phase != phase(p) {
			return
		}
		if err != nil {
			s.failLocked(p, err)
			return
		}
		s.succeedLocked(p, note)
	})
}

func (s *Scheduler) succeedLocked(p *savingPhase, note core.Note) {
	oldKey := core.DraftKey(s.id)

	s.retries = 0
	s.lastErr = nil
	s.snapshot = p.sent
	if p.create {
		s.id = note.ID
		if fn := s.onCreated; fn != nil {
			s.effects = append(s.effects, func() { fn(note) })
		}
	}

	s.drafts.Remove(s.ctx, oldKey)
	s.cfg.Logger.Debug("autosave succeeded", "note", note.ID, "create", p.create)
	s.setPhaseLocked(&idlePhase{outcome: core.StatusSaved})

	// Edits that arrived mid-request are still unsaved: keep them durable
	// under the (possibly new) key and start another cycle.
	if s.qualifiesLocked() {
		s.persistDraftLocked()
		s.armDebounceLocked()
	}
}

func (s *Scheduler) failLocked(p *savingPhase, err error) {
	kind := core.KindOf(err)
	s.cfg.Logger.Warn("autosave failed", "note", core.DraftKey(s.id), "kind", kind, "error", err)

	// New content supersedes the failed attempt.
	if p.followUp && !s.buffer.Equal(p.sent) && s.qualifiesLocked() {
		s.retries = 0
		s.armDebounceLocked()
		return
	}

	if !kind.Retryable() {
		s.retries = 0
		s.lastErr = err
		s.setPhaseLocked(&idlePhase{outcome: core.StatusError})
		return
	}

	if s.net != nil && !s.net.Online() {
		s.setPhaseLocked(&offlinePhase{})
		return
	}

	if s.retries >= len(s.cfg.RetryDelays) {
		s.retries = 0
		s.lastErr = err
		s.setPhaseLocked(&idlePhase{outcome: core.StatusError})
		return
	}

	delay := s.cfg.RetryDelays[s.retries]
	s.retries++
	timer := s.after(delay, s.onRetryLocked)
	s.setPhaseLocked(&retryingPhase{attempt: s.retries, timer: timer})
}

func (s *Scheduler) onRetryLocked() {
	if _, ok := s.phase.(*retryingPhase); !ok {
		return
	}
	if !s.qualifiesLocked() {
		s.retries = 0
		s.setPhaseLocked(&idlePhase{outcome: core.StatusIdle})
		return
	}
	s.dispatchLocked()
}

func (s *Scheduler) onConnectivity(online bool) {
	s.do(func() {
		if s.closed {
			return
		}
		p, ok := s.phase.(*offlinePhase)
		if !ok {
			return
		}
		if !online {
			p.stop()
			return
		}
		if p.timer != nil {
			return
		}
		s.gen++
		p.timer = s.after(s.cfg.ReconnectDelay, s.onReconnectLocked)
	})
}

func (s *Scheduler) onReconnectLocked() {
	if p, ok := s.phase.(*offlinePhase); ok {
		p.timer = nil
	} else {
		return
	}
	if !s.qualifiesLocked() {
		s.setPhaseLocked(&idlePhase{outcome: core.StatusIdle})
		return
	}
	s.dispatchLocked()
}
