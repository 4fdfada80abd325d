// Package network tracks whether the remote store is reachable.
//
// The Monitor never probes the network itself. Hosts feed it platform
// reachability notifications through Set or Follow, and components read
// the current value or subscribe to changes.
package network

import (
	"context"
	"sync"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/inkwell/pkg/core"
)

// Monitor is the online/offline state holder.
type Monitor struct {
	mu     sync.Mutex
	online bool
	nextID int
	subs   map[int]func(bool)
}

// NewMonitor creates a monitor with the given initial reachability.
func NewMonitor(online bool) *Monitor {
	return &Monitor{
		online: online,
		subs:   make(map[int]func(bool)),
	}
}

// Online reports the last known reachability.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers fn for reachability changes.
func (m *Monitor) Subscribe(fn func(online bool)) (cancel func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.subs[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Set records a platform reachability notification. Subscribers are called
// synchronously, outside the lock, only when the value actually changes.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subs := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(online)
	}
}

// Follow applies every value received on events until ctx is done or the
// channel closes. It returns immediately; the loop runs on a tracked goroutine.
func (m *Monitor) Follow(ctx context.Context, events <-chan bool) {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case online, ok := <-events:
				if !ok {
					return nil
				}
				m.Set(online)
			}
		}
	})
}

var _ core.Connectivity = (*Monitor)(nil)
