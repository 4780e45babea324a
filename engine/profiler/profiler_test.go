package profiler

import (
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func TestTickReportsAtInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(100, 0)}
	p := NewProfiler(
		WithLogger(testr.New(t)),
		WithClock(clock.now),
		WithUpdateInterval(time.Second),
	)

	for range 29 {
		clock.advance(20 * time.Millisecond)
		assert.False(t, p.Tick(5))
	}
	assert.Zero(t, p.Last().FPS)

	clock.advance(420 * time.Millisecond)
	assert.True(t, p.Tick(7))

	stats := p.Last()
	assert.InDelta(t, 30, stats.FPS, 1e-9)
	assert.Equal(t, 7, stats.Instances)
	assert.Greater(t, stats.SysMB, 0.0)

	clock.advance(500 * time.Millisecond)
	assert.False(t, p.Tick(7), "frame count and timer restart after a report")
}
