// Package editor coordinates the autosave engine for one open note.
//
// The Controller owns the live buffer, reconciles recovered drafts when a
// note identity is opened, forwards edits to the save scheduler and routes
// platform events to the flush triggers. Status is read from the scheduler.
package editor

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/aretw0/inkwell/pkg/autosave"
	"github.com/aretw0/inkwell/pkg/core"
	"github.com/aretw0/inkwell/pkg/drafts"
	"github.com/aretw0/inkwell/pkg/flush"
	"github.com/aretw0/inkwell/pkg/reconcile"
)

// Controller is the editor-facing API of the engine.
type Controller struct {
	remote     core.RemoteStore
	drafts     *drafts.Store
	sched      *autosave.Scheduler
	reconciler *reconcile.Reconciler
	triggers   *flush.Triggers
	logger     *slog.Logger

	// op serializes the operations that drive the scheduler. mu guards the
	// fields below and is never held across a scheduler call, so status
	// listeners may read the controller.
	op       sync.Mutex
	mu       sync.Mutex
	note     *core.Note
	buffer   core.Fields
	conflict *reconcile.Result
	// deferred is set while an identity is open but its server state is unknown.
	deferred bool
	touched  bool
	closed   bool
}

// New creates a controller positioned on a blank, unsaved note. Call one of
// the Open methods to load a note.
func New(remote core.RemoteStore, store *drafts.Store, net core.Connectivity, cfg autosave.Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c := &Controller{
		remote:     remote,
		drafts:     store,
		sched:      autosave.New(remote, store, net, cfg),
		reconciler: reconcile.New(store, logger),
		logger:     logger,
	}
	c.sched.OnCreated(c.onCreated)
	c.triggers = flush.New(c.flushable, c.sched.PersistDraft, c.sched.Flush, logger)
	return c
}

// OpenNew starts a brand-new note. A draft left over from a previous unsaved
// new note is surfaced for a decision.
func (c *Controller) OpenNew(ctx context.Context) reconcile.Result {
	c.op.Lock()
	defer c.op.Unlock()

	c.reset(nil, core.Fields{}, false)
	return c.check(ctx, nil, false)
}

// Open switches to an existing note whose server state is known.
func (c *Controller) Open(ctx context.Context, note core.Note) reconcile.Result {
	c.op.Lock()
	defer c.op.Unlock()

	c.reset(&note, note.Fields(), false)
	return c.check(ctx, &note, true)
}

// OpenPending switches to an existing note before its server state has
// arrived. Reconciliation waits for Loaded; edits are buffered but not saved.
func (c *Controller) OpenPending(id string) {
	c.op.Lock()
	defer c.op.Unlock()

	c.reset(&core.Note{ID: id}, core.Fields{}, true)
}

// Loaded delivers the server state for a note opened with OpenPending.
func (c *Controller) Loaded(ctx context.Context, note core.Note) reconcile.Result {
	c.op.Lock()
	defer c.op.Unlock()

	c.mu.Lock()
	if c.note == nil || c.note.ID != note.ID {
		c.mu.Unlock()
		return reconcile.Result{Outcome: reconcile.OutcomeNone, Key: core.DraftKey(note.ID)}
	}
	c.note = &note
	c.deferred = false
	if !c.touched {
		c.buffer = note.Fields()
	}
	c.buffer = c.buffer.Clone()
	c.mu.Unlock()

	c.sched.Reset(note.ID, note.Fields())
	return c.check(ctx, &note, true)
}

// Load opens the note with the given identity, fetching it from the remote store.
func (c *Controller) Load(ctx context.Context, id string) (reconcile.Result, error) {
	c.OpenPending(id)
	note, err := c.remote.GetNote(ctx, id)
	if err != nil {
		return reconcile.Result{Outcome: reconcile.OutcomeDeferred, Key: core.DraftKey(id)}, fmt.Errorf("load note %s: %w", id, err)
	}
	return c.Loaded(ctx, note), nil
}

func (c *Controller) reset(note *core.Note, baseline core.Fields, deferred bool) {
	c.mu.Lock()
	c.note = note
	c.buffer = baseline.Clone()
	c.conflict = nil
	c.deferred = deferred
	c.touched = false
	c.mu.Unlock()

	id := ""
	if note != nil {
		id = note.ID
	}
	c.sched.Reset(id, baseline)
}

// check reconciles the recovered draft for note and, when nothing is held
// back, hands the buffer to the scheduler.
func (c *Controller) check(ctx context.Context, note *core.Note, loaded bool) reconcile.Result {
	res := c.reconciler.Check(ctx, note, loaded)

	c.mu.Lock()
	switch res.Outcome {
	case reconcile.OutcomeConflict:
		c.conflict = &res
	case reconcile.OutcomeDeferred:
		c.deferred = true
	}
	c.mu.Unlock()

	if buffer, closed, held := c.view(); !closed && !held {
		c.sched.Update(buffer)
	}
	return res
}

// view copies the buffer and reports whether the controller is closed or
// holding edits back for a pending decision or load.
func (c *Controller) view() (buffer core.Fields, closed, held bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.Clone(), c.closed, c.conflict != nil || c.deferred
}

// Conflict returns the recovered draft waiting for a decision, if any.
func (c *Controller) Conflict() (core.Draft, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conflict == nil {
		return core.Draft{}, false
	}
	return c.conflict.Draft, true
}

// Resolve applies the user's decision about a recovered draft and arms the
// normal save cycle.
func (c *Controller) Resolve(ctx context.Context, choice reconcile.Choice) error {
	c.op.Lock()
	defer c.op.Unlock()

	c.mu.Lock()
	pending := c.conflict
	c.mu.Unlock()
	if pending == nil {
		return core.ErrNoConflict
	}

	fields, adopt := c.reconciler.Resolve(ctx, *pending, choice)

	c.mu.Lock()
	c.conflict = nil
	if adopt {
		c.buffer = fields
		c.logger.Info("restored local draft", "note", c.keyLocked())
	}
	c.mu.Unlock()

	if buffer, closed, held := c.view(); !closed && !held {
		c.sched.Update(buffer)
	}
	return nil
}

// SetTitle replaces the title in the buffer.
func (c *Controller) SetTitle(title string) {
	c.edit(func(f *core.Fields) { f.Title = title })
}

// SetBody replaces the body in the buffer.
func (c *Controller) SetBody(body string) {
	c.edit(func(f *core.Fields) { f.Body = body })
}

// SetTags replaces the ordered tag list in the buffer.
func (c *Controller) SetTags(tags []string) {
	c.edit(func(f *core.Fields) { f.Tags = slices.Clone(tags) })
}

// SetFavorited sets the favorite flag in the buffer.
func (c *Controller) SetFavorited(fav bool) {
	c.edit(func(f *core.Fields) { f.Favorited = fav })
}

// Apply replaces the whole buffer.
func (c *Controller) Apply(f core.Fields) {
	c.edit(func(dst *core.Fields) { *dst = f.Clone() })
}

func (c *Controller) edit(fn func(*core.Fields)) {
	c.op.Lock()
	defer c.op.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	fn(&c.buffer)
	c.touched = true
	c.mu.Unlock()

	if buffer, _, held := c.view(); !held {
		c.sched.Update(buffer)
	}
}

// Fields returns a copy of the live buffer.
func (c *Controller) Fields() core.Fields {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.Clone()
}

// Note returns the server copy of the open note, nil for an unsaved new note.
func (c *Controller) Note() *core.Note {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.note == nil {
		return nil
	}
	n := *c.note
	return &n
}

// HasUnsavedChanges reports whether the buffer differs from the last state
// acknowledged by the remote store.
func (c *Controller) HasUnsavedChanges() bool {
	buffer, _, _ := c.view()
	return !buffer.Equal(c.sched.Snapshot())
}

// flushable gates the flush triggers. A pending decision must not be
// overwritten by the buffer, so nothing flushes until it is resolved.
func (c *Controller) flushable() bool {
	buffer, closed, held := c.view()
	if closed || held {
		return false
	}
	return !buffer.Equal(c.sched.Snapshot())
}

// Status returns the save status.
func (c *Controller) Status() core.Status {
	return c.sched.Status()
}

// Subscribe registers fn for save status transitions. Listeners run
// synchronously on the goroutine that caused the transition: they may read
// the controller (Fields, Note, Conflict, HasUnsavedChanges, State) but
// must not edit, save, open or close it.
func (c *Controller) Subscribe(fn func(core.Status)) (cancel func()) {
	return c.sched.Subscribe(fn)
}

// LastError returns the failure behind an error status.
func (c *Controller) LastError() error {
	return c.sched.LastError()
}

// SaveNow is the explicit save action: it cancels the debounce window and
// saves unconditionally.
func (c *Controller) SaveNow() error {
	c.op.Lock()
	defer c.op.Unlock()

	buffer, closed, held := c.view()
	if closed {
		return core.ErrClosed
	}
	if held {
		return core.ErrConflict
	}
	c.sched.Update(buffer)
	c.sched.SaveNow()
	return nil
}

// Flush saves pending changes now, skipping the debounce window.
func (c *Controller) Flush() {
	c.sched.Flush()
}

// HandleEvent routes a platform event to the flush triggers and reports
// whether it forced a flush.
func (c *Controller) HandleEvent(ev flush.Event) bool {
	return c.triggers.Fire(ev)
}

// Triggers exposes the flush triggers, e.g. to Watch a platform source.
func (c *Controller) Triggers() *flush.Triggers {
	return c.triggers
}

// WaitIdle blocks until no save request is in flight or ctx is done.
func (c *Controller) WaitIdle(ctx context.Context) error {
	done := make(chan struct{}, 1)
	cancel := c.sched.Subscribe(func(s core.Status) {
		if s != core.StatusSaving {
			select {
			case done <- struct{}{}:
			default:
			}
		}
	})
	defer cancel()

	for c.sched.Status() == core.StatusSaving {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Archive archives the open note. Pending saves are cancelled and the draft
// is dropped; the controller is closed afterwards.
func (c *Controller) Archive(ctx context.Context) error {
	return c.end(ctx, "archive", func(a core.Archiver, id string) error {
		return a.ArchiveNote(ctx, id)
	})
}

// Delete deletes the open note. Pending saves are cancelled and the draft
// is dropped; the controller is closed afterwards.
func (c *Controller) Delete(ctx context.Context) error {
	return c.end(ctx, "delete", func(a core.Archiver, id string) error {
		return a.DeleteNote(ctx, id)
	})
}

func (c *Controller) end(ctx context.Context, op string, call func(core.Archiver, string) error) error {
	c.op.Lock()
	defer c.op.Unlock()

	buffer, closed, held := c.view()
	if closed {
		return core.ErrClosed
	}

	c.mu.Lock()
	key := c.keyLocked()
	id := ""
	if c.note != nil {
		id = c.note.ID
	}
	c.mu.Unlock()

	if id != "" {
		err := core.ErrUnsupported
		if a, ok := c.remote.(core.Archiver); ok {
			err = call(a, id)
		}
		if err != nil {
			// The note stays open: keep pending edits durable and scheduled.
			if !held {
				c.sched.PersistDraft()
				c.sched.Update(buffer)
			}
			return fmt.Errorf("%s note %s: %w", op, id, err)
		}
	}

	c.sched.Cancel()
	c.drafts.Remove(ctx, key)

	c.logger.Info("note lifecycle ended", "op", op, "note", key)
	c.close()
	return nil
}

// Close cancels all pending timers. It does not flush; route
// flush.EventUnload first when leaving with unsaved changes.
func (c *Controller) Close() {
	c.op.Lock()
	defer c.op.Unlock()
	c.close()
}

func (c *Controller) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.sched.Close()
}

func (c *Controller) keyLocked() string {
	if c.note == nil {
		return core.DraftKey("")
	}
	return core.DraftKey(c.note.ID)
}

func (c *Controller) onCreated(note core.Note) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.note != nil && c.note.ID != "" {
		return
	}
	c.note = &note
	c.logger.Info("note created", "note", note.ID)
}
