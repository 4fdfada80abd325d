package core

import (
	"slices"
	"strings"
	"time"
)

// Note is the remote entity as last seen by the client.
// The remote store owns it; the client only holds a cached copy.
type Note struct {
	ID        string
	Title     string
	Body      string
	Favorited bool
	Tags      []string
	Archived  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Fields returns the editable part of the note.
func (n Note) Fields() Fields {
	return Fields{
		Title:     n.Title,
		Body:      n.Body,
		Tags:      slices.Clone(n.Tags),
		Favorited: n.Favorited,
	}
}

// Fields is the editable tuple of a note: what the editor buffer holds,
// what a draft persists and what a save sends.
type Fields struct {
	Title     string
	Body      string
	Tags      []string
	Favorited bool
}

// Equal reports whether both tuples carry the same content.
// Tags are compared as an ordered sequence; nil and empty are equal.
func (f Fields) Equal(o Fields) bool {
	return f.Title == o.Title &&
		f.Body == o.Body &&
		f.Favorited == o.Favorited &&
		slices.Equal(f.Tags, o.Tags)
}

// IsBlank reports whether neither title nor body carries any text.
// A blank buffer never creates a note.
func (f Fields) IsBlank() bool {
	return strings.TrimSpace(f.Title) == "" && strings.TrimSpace(f.Body) == ""
}

// Clone returns a copy that shares no memory with f.
func (f Fields) Clone() Fields {
	f.Tags = slices.Clone(f.Tags)
	return f
}
