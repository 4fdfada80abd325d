// Package drafts is the local safety net for in-progress edits.
//
// A Store keeps at most one draft per key and never reports failures to its
// caller: losing the safety net must not break the editor. Storage errors
// are logged and the operation degrades to a no-op.
package drafts

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/aretw0/introspection"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/inkwell/pkg/core"
)

// Store is the never-failing draft store.
type Store struct {
	backend core.DraftBackend
	logger  *slog.Logger
}

// New wraps backend. A nil logger discards output.
func New(backend core.DraftBackend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{backend: backend, logger: logger}
}

// Write stores d under key, overwriting any previous draft.
func (s *Store) Write(ctx context.Context, key string, d core.Draft) {
	d.Fields = d.Fields.Clone()
	if err := s.backend.Put(ctx, key, d); err != nil {
		s.logger.Warn("draft write dropped", "key", key, "error", err)
	}
}

// Read returns the draft stored under key. Missing and corrupt records are
// both reported as absent.
func (s *Store) Read(ctx context.Context, key string) (core.Draft, bool) {
	d, err := s.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			s.logger.Warn("draft unreadable, treating as absent", "key", key, "error", err)
		}
		return core.Draft{}, false
	}
	return d, true
}

// Remove deletes the draft stored under key.
func (s *Store) Remove(ctx context.Context, key string) {
	if err := s.backend.Delete(ctx, key); err != nil {
		s.logger.Warn("draft remove dropped", "key", key, "error", err)
	}
}

// List returns the sorted keys matching a doublestar pattern.
// An empty pattern matches everything.
func (s *Store) List(ctx context.Context, pattern string) []string {
	keys, err := s.backend.Keys(ctx)
	if err != nil {
		s.logger.Warn("draft listing failed", "error", err)
		return nil
	}

	if pattern == "" {
		pattern = "**"
	}

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		ok, err := doublestar.Match(pattern, k)
		if err != nil {
			s.logger.Warn("invalid draft pattern", "pattern", pattern, "error", err)
			return nil
		}
		if ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// StoreState exposes the store for observability.
type StoreState struct {
	Backend string `json:"backend"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	backend := "custom"
	if comp, ok := s.backend.(introspection.Component); ok {
		backend = comp.ComponentType()
	}
	return StoreState{Backend: backend}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "draft-store"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
