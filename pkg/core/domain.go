package core

import "time"

// NewNoteKey is the draft key used while a note has no remote identity yet.
const NewNoteKey = "new"

// DraftKey returns the draft key for a note identity.
// An empty identity maps to NewNoteKey.
func DraftKey(id string) string {
	if id == "" {
		return NewNoteKey
	}
	return id
}

// Draft is the locally persisted snapshot of an in-progress edit.
type Draft struct {
	Fields
	SavedAt time.Time
}

// NewerThan reports whether the draft was saved strictly after t.
func (d Draft) NewerThan(t time.Time) bool {
	return d.SavedAt.After(t)
}

// Status is the presentation state of the autosave engine.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusSaving   Status = "saving"
	StatusSaved    Status = "saved"
	StatusRetrying Status = "retrying"
	StatusError    Status = "error"
	StatusOffline  Status = "offline"
)

// Label returns the compact indicator text shown to the user.
func (s Status) Label() string {
	switch s {
	case StatusSaving:
		return "saving…"
	case StatusSaved:
		return "saved"
	case StatusRetrying:
		return "retrying…"
	case StatusOffline:
		return "offline"
	case StatusError:
		return "save failed"
	default:
		return ""
	}
}
