package drafts

import (
	"context"
	"errors"
	"sync"

	"github.com/aretw0/inkwell/pkg/core"
)

// ErrQuotaExceeded is returned by MemoryBackend when a write would exceed its quota.
var ErrQuotaExceeded = errors.New("draft storage quota exceeded")

// MemoryBackend keeps drafts in process memory.
// A positive quota bounds the total size of stored text, mimicking the
// capacity limits of browser-style storage.
type MemoryBackend struct {
	mu     sync.RWMutex
	quota  int
	drafts map[string]core.Draft
}

// NewMemoryBackend creates an empty backend. quota <= 0 means unlimited.
func NewMemoryBackend(quota int) *MemoryBackend {
	return &MemoryBackend{
		quota:  quota,
		drafts: make(map[string]core.Draft),
	}
}

func (m *MemoryBackend) Put(ctx context.Context, key string, d core.Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.quota > 0 {
		used := 0
		for k, other := range m.drafts {
			if k != key {
				used += draftSize(other)
			}
		}
		if used+draftSize(d) > m.quota {
			return ErrQuotaExceeded
		}
	}

	m.drafts[key] = core.Draft{Fields: d.Fields.Clone(), SavedAt: d.SavedAt}
	return nil
}

func (m *MemoryBackend) Get(ctx context.Context, key string) (core.Draft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.drafts[key]
	if !ok {
		return core.Draft{}, core.ErrNotFound
	}
	return core.Draft{Fields: d.Fields.Clone(), SavedAt: d.SavedAt}, nil
}

func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, key)
	return nil
}

func (m *MemoryBackend) Keys(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.drafts))
	for k := range m.drafts {
		keys = append(keys, k)
	}
	return keys, nil
}

// Len returns the number of stored drafts.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.drafts)
}

// ComponentType implements introspection.Component.
func (m *MemoryBackend) ComponentType() string {
	return "memory"
}

func draftSize(d core.Draft) int {
	n := len(d.Title) + len(d.Body)
	for _, t := range d.Tags {
		n += len(t)
	}
	return n
}
