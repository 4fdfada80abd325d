package fs

import (
	"github.com/aretw0/introspection"
)

// BackendState exposes internal state for observability.
type BackendState struct {
	Dir         string `json:"dir"`
	CacheSize   int    `json:"cache_size"`
	CacheHits   int    `json:"cache_hits"`
	CacheMisses int    `json:"cache_misses"`
	Writes      int    `json:"writes"`
}

// State implements introspection.Introspectable.
func (b *DraftBackend) State() any {
	b.mu.Lock()
	writes := b.writes
	b.mu.Unlock()

	hits, misses := b.cache.stats()
	return BackendState{
		Dir:         b.Dir,
		CacheSize:   b.cache.Len(),
		CacheHits:   hits,
		CacheMisses: misses,
		Writes:      writes,
	}
}

// ComponentType implements introspection.Component.
func (b *DraftBackend) ComponentType() string {
	return "fs-drafts"
}

var _ introspection.Introspectable = (*DraftBackend)(nil)
var _ introspection.Component = (*DraftBackend)(nil)
