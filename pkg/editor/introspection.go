package editor

import (
	"github.com/aretw0/introspection"

	"github.com/aretw0/inkwell/pkg/autosave"
)

// ControllerState exposes the editor's view for observability.
type ControllerState struct {
	NoteID          string                  `json:"note_id,omitempty"`
	PendingConflict bool                    `json:"pending_conflict"`
	AwaitingLoad    bool                    `json:"awaiting_load"`
	Closed          bool                    `json:"closed"`
	Scheduler       autosave.SchedulerState `json:"scheduler"`
}

// State implements introspection.Introspectable.
func (c *Controller) State() any {
	c.mu.Lock()
	state := ControllerState{
		PendingConflict: c.conflict != nil,
		AwaitingLoad:    c.deferred,
		Closed:          c.closed,
	}
	if c.note != nil {
		state.NoteID = c.note.ID
	}
	c.mu.Unlock()

	if s, ok := c.sched.State().(autosave.SchedulerState); ok {
		state.Scheduler = s
	}
	return state
}

// ComponentType implements introspection.Component.
func (c *Controller) ComponentType() string {
	return "editor"
}

var _ introspection.Introspectable = (*Controller)(nil)
var _ introspection.Component = (*Controller)(nil)
