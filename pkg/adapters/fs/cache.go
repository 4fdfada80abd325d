package fs

import (
	"sync"
	"time"

	"github.com/aretw0/inkwell/pkg/core"
)

// cacheEntry is a decoded draft together with the file stat it came from.
type cacheEntry struct {
	draft   core.Draft
	modTime time.Time
	size    int64
}

// cache keeps decoded drafts so repeated reads skip YAML parsing. Entries
// are trusted only while the file's mtime and size are unchanged, which also
// catches edits made by other processes.
type cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	hits    int
	misses  int
}

func newCache() *cache {
	return &cache{entries: make(map[string]cacheEntry)}
}

// Get returns the cached draft for key when the file stat still matches.
func (c *cache) Get(key string, modTime time.Time, size int64) (core.Draft, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !e.modTime.Equal(modTime) || e.size != size {
		c.misses++
		return core.Draft{}, false
	}
	c.hits++
	d := e.draft
	d.Fields = d.Fields.Clone()
	return d, true
}

// Set records the decoded draft for key.
func (c *cache) Set(key string, d core.Draft, modTime time.Time, size int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d.Fields = d.Fields.Clone()
	c.entries[key] = cacheEntry{draft: d, modTime: modTime, size: size}
}

// Delete drops key.
func (c *cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Prune removes entries that are not in keep.
func (c *cache) Prune(keep map[string]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if !keep[key] {
			delete(c.entries, key)
		}
	}
}

// Len returns the number of cached drafts.
func (c *cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *cache) stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
