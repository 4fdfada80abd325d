package autosave

import (
	"github.com/aretw0/introspection"

	"github.com/aretw0/inkwell/pkg/core"
)

// SchedulerState exposes internal state for observability.
type SchedulerState struct {
	NoteID     string      `json:"note_id,omitempty"`
	Status     core.Status `json:"status"`
	Retries    int         `json:"retries"`
	MaxRetries int         `json:"max_retries"`
	Unsaved    bool        `json:"unsaved"`
	InFlight   bool        `json:"in_flight"`
	LastError  string      `json:"last_error,omitempty"`
}

// State implements introspection.Introspectable.
func (s *Scheduler) State() any {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, inFlight := s.phase.(*savingPhase)
	state := SchedulerState{
		NoteID:     s.id,
		Status:     s.phase.status(),
		Retries:    s.retries,
		MaxRetries: len(s.cfg.RetryDelays),
		Unsaved:    !s.buffer.Equal(s.snapshot),
		InFlight:   inFlight,
	}
	if s.lastErr != nil {
		state.LastError = s.lastErr.Error()
	}
	return state
}

// ComponentType implements introspection.Component.
func (s *Scheduler) ComponentType() string {
	return "autosave-scheduler"
}

var _ introspection.Introspectable = (*Scheduler)(nil)
var _ introspection.Component = (*Scheduler)(nil)
