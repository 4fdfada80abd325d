package network

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_NotifiesOnChangeOnly(t *testing.T) {
	m := NewMonitor(true)
	var got []bool
	cancel := m.Subscribe(func(online bool) { got = append(got, online) })

	m.Set(true)
	m.Set(false)
	m.Set(false)
	m.Set(true)

	assert.Equal(t, []bool{false, true}, got)
	assert.True(t, m.Online())

	cancel()
	m.Set(false)
	assert.Len(t, got, 2, "cancelled subscribers are not called")
}

func TestMonitor_SubscriberMayReadState(t *testing.T) {
	m := NewMonitor(false)
	var seen atomic.Bool
	m.Subscribe(func(bool) { seen.Store(m.Online()) })

	m.Set(true)
	assert.True(t, seen.Load())
}

func TestMonitor_Follow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMonitor(true)
	events := make(chan bool)
	m.Follow(ctx, events)

	events <- false
	require.Eventually(t, func() bool { return !m.Online() }, time.Second, 5*time.Millisecond)

	events <- true
	require.Eventually(t, m.Online, time.Second, 5*time.Millisecond)
}
