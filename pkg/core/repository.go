package core

import "context"

// RemoteStore is the authoritative note store.
// Failures must be *RemoteError values so callers can classify them.
type RemoteStore interface {
	// CreateNote creates a note and returns it with its assigned identity.
	CreateNote(ctx context.Context, f Fields) (Note, error)

	// UpdateNote replaces the editable fields of an existing note.
	UpdateNote(ctx context.Context, id string, f Fields) (Note, error)

	// GetNote loads the current server version of a note.
	GetNote(ctx context.Context, id string) (Note, error)
}

// Archiver is implemented by remote stores that support archive and delete.
type Archiver interface {
	ArchiveNote(ctx context.Context, id string) error
	DeleteNote(ctx context.Context, id string) error
}

// DraftBackend is the durable key/value surface behind the draft store.
// Writes are best effort; implementations return errors freely and the
// draft store decides what to do with them.
type DraftBackend interface {
	// Put stores d under key, replacing any previous record.
	Put(ctx context.Context, key string, d Draft) error

	// Get returns the record for key, ErrNotFound when absent, or a decode
	// error when the record is corrupt.
	Get(ctx context.Context, key string) (Draft, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists every stored key.
	Keys(ctx context.Context) ([]string, error)
}

// Connectivity exposes network reachability.
type Connectivity interface {
	// Online reports the current reachability.
	Online() bool

	// Subscribe registers fn for reachability changes and returns a function
	// that removes the subscription.
	Subscribe(fn func(online bool)) (cancel func())
}
