package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFake_FiresInDeadlineOrder(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	var fired []string

	c.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })
	c.AfterFunc(time.Second, func() { fired = append(fired, "a") })
	stopped := c.AfterFunc(time.Second, func() { fired = append(fired, "never") })
	assert.True(t, stopped.Stop())
	assert.False(t, stopped.Stop())

	c.Advance(1500 * time.Millisecond)
	assert.Equal(t, []string{"a"}, fired)
	assert.Equal(t, 1, c.Pending())

	c.Advance(time.Second)
	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Equal(t, time.Unix(0, 0).Add(2500*time.Millisecond), c.Now())
}

func TestFake_CallbackSchedulesWithinWindow(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	count := 0
	var tick func()
	tick = func() {
		count++
		if count < 3 {
			c.AfterFunc(time.Second, tick)
		}
	}
	c.AfterFunc(time.Second, tick)

	c.Advance(10 * time.Second)
	assert.Equal(t, 3, count)
	assert.Zero(t, c.Pending())
}
