// Package reconcile decides, once per note load, what to do with a draft
// recovered from local storage.
//
// Drafts that the server already supersedes, or that repeat the server's
// content, are discarded silently. Anything else is handed to the user.
// Freshness is judged by comparing the draft's wall-clock save time with the
// server's last-modified time, so clock drift between client and server can
// misclassify a draft.
package reconcile

import (
	"context"
	"log/slog"

	"github.com/aretw0/inkwell/pkg/core"
	"github.com/aretw0/inkwell/pkg/drafts"
)

// Outcome is the result of a reconciliation check.
type Outcome string

const (
	// OutcomeNone means no draft exists for the key.
	OutcomeNone Outcome = "none"
	// OutcomeDeferred means the remote note has not finished loading.
	OutcomeDeferred Outcome = "deferred"
	// OutcomeStale means the draft was not newer than the server and was discarded.
	OutcomeStale Outcome = "stale"
	// OutcomeIdentical means the draft repeated the server content and was discarded.
	OutcomeIdentical Outcome = "identical"
	// OutcomeConflict means the user must choose between draft and server.
	OutcomeConflict Outcome = "conflict"
)

// Choice is the user's answer to a conflict.
type Choice string

const (
	// ChoiceRestore adopts the draft into the live buffer.
	ChoiceRestore Choice = "restore"
	// ChoiceDiscard deletes the draft and keeps the server version.
	ChoiceDiscard Choice = "discard"
)

// Result describes a reconciliation check.
type Result struct {
	Outcome Outcome
	Key     string
	// Draft is set for OutcomeConflict.
	Draft core.Draft
}

// NeedsDecision reports whether the user has to be asked.
func (r Result) NeedsDecision() bool {
	return r.Outcome == OutcomeConflict
}

// Reconciler compares recovered drafts with the remote store.
type Reconciler struct {
	drafts *drafts.Store
	logger *slog.Logger
}

// New creates a Reconciler over store.
func New(store *drafts.Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reconciler{drafts: store, logger: logger}
}

// Check reconciles the draft stored for the note. remote is nil for a note
// without identity; loaded reports whether remote carries the server state.
func (r *Reconciler) Check(ctx context.Context, remote *core.Note, loaded bool) Result {
	id := ""
	if remote != nil {
		id = remote.ID
	}
	key := core.DraftKey(id)

	draft, ok := r.drafts.Read(ctx, key)
	if !ok {
		return Result{Outcome: OutcomeNone, Key: key}
	}

	if id == "" {
		r.logger.Debug("recovered draft for new note", "key", key)
		return Result{Outcome: OutcomeConflict, Key: key, Draft: draft}
	}

	if !loaded || remote.UpdatedAt.IsZero() {
		return Result{Outcome: OutcomeDeferred, Key: key}
	}

	outcome := Decide(draft, *remote)
	switch outcome {
	case OutcomeStale, OutcomeIdentical:
		r.logger.Debug("discarding redundant draft", "key", key, "reason", outcome)
		r.drafts.Remove(ctx, key)
		return Result{Outcome: outcome, Key: key}
	default:
		r.logger.Info("draft conflicts with server version", "key", key,
			"draft_saved_at", draft.SavedAt, "server_updated_at", remote.UpdatedAt)
		return Result{Outcome: OutcomeConflict, Key: key, Draft: draft}
	}
}

// Resolve applies the user's choice for a conflict. For ChoiceRestore it
// returns the draft fields to adopt; the draft stays stored until the normal
// save cycle succeeds. For ChoiceDiscard the draft is deleted.
func (r *Reconciler) Resolve(ctx context.Context, res Result, choice Choice) (core.Fields, bool) {
	switch choice {
	case ChoiceRestore:
		return res.Draft.Fields.Clone(), true
	default:
		r.drafts.Remove(ctx, res.Key)
		return core.Fields{}, false
	}
}

// Decide classifies a draft against a loaded remote note without side effects.
func Decide(d core.Draft, remote core.Note) Outcome {
	if !d.NewerThan(remote.UpdatedAt) {
		return OutcomeStale
	}
	if d.Fields.Equal(remote.Fields()) {
		return OutcomeIdentical
	}
	return OutcomeConflict
}
