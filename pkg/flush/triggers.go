// Package flush forces pending edits out at lifecycle moments where waiting
// for the debounce window could lose them: the document being hidden, the
// window losing focus, and the page being unloaded.
package flush

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/lifecycle"
)

// Event is a platform notification relevant to flushing.
type Event string

const (
	EventHidden  Event = "hidden"
	EventVisible Event = "visible"
	EventBlur    Event = "blur"
	EventFocus   Event = "focus"
	EventUnload  Event = "unload"
)

// String implements lifecycle.Event.
func (e Event) String() string { return string(e) }

// Qualifies reports whether e must force a flush.
func (e Event) Qualifies() bool {
	return e == EventHidden || e == EventBlur || e == EventUnload
}

// Triggers invokes the flush callback once per qualifying event when there
// are unsaved changes, after synchronously persisting the local draft.
type Triggers struct {
	hasUnsaved func() bool
	persist    func()
	flush      func()
	logger     *slog.Logger

	mu    sync.Mutex
	fired map[Event]int
}

// New creates the triggers. persist must write the current buffer to the
// draft store without delay; flush starts the network save.
func New(hasUnsaved func() bool, persist, flush func(), logger *slog.Logger) *Triggers {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Triggers{
		hasUnsaved: hasUnsaved,
		persist:    persist,
		flush:      flush,
		logger:     logger,
		fired:      make(map[Event]int),
	}
}

// Fire handles one platform event synchronously and reports whether it
// flushed.
func (t *Triggers) Fire(ev Event) bool {
	if !ev.Qualifies() {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.hasUnsaved() {
		return false
	}

	t.logger.Debug("flush triggered", "event", ev)
	t.persist()
	t.flush()
	t.fired[ev]++
	return true
}

// Fired returns how many flushes ev has caused.
func (t *Triggers) Fired(ev Event) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired[ev]
}

// Source emits platform events. It is the subset of lifecycle.Source the
// triggers consume.
type Source interface {
	Events() <-chan lifecycle.Event
	Start(ctx context.Context) error
}

// Watch starts src and fires every Event it emits until ctx is done or the
// source closes. Events of other types are ignored.
func (t *Triggers) Watch(ctx context.Context, src Source) error {
	if err := src.Start(ctx); err != nil {
		return err
	}

	lifecycle.Go(ctx, func(ctx context.Context) error {
		events := src.Events()
		for {
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-events:
				if !ok {
					return nil
				}
				if ev, ok := e.(Event); ok {
					t.Fire(ev)
				}
			}
		}
	})
	return nil
}
