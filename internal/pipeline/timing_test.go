package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
)

func TestThroughputCounter(t *testing.T) {
	mock := clock.NewMock()
	c := NewThroughputCounter(30, mock)

	for i := 0; i < 29; i++ {
		mock.Add(20 * time.Millisecond)
		fps, updated := c.Tick()
		assert.False(t, updated)
		assert.Zero(t, fps)
	}

	mock.Add(20 * time.Millisecond)
	fps, updated := c.Tick()
	assert.True(t, updated)
	assert.InDelta(t, 50.0, fps, 0.0001)
	assert.InDelta(t, 50.0, c.FPS(), 0.0001)

	// The value holds until the next window closes.
	for i := 0; i < 29; i++ {
		mock.Add(100 * time.Millisecond)
		fps, updated = c.Tick()
		assert.False(t, updated)
		assert.InDelta(t, 50.0, fps, 0.0001)
	}
	mock.Add(100 * time.Millisecond)
	fps, updated = c.Tick()
	assert.True(t, updated)
	assert.InDelta(t, 10.0, fps, 0.0001)

	c.Reset()
	assert.Zero(t, c.FPS())
}

func TestThroughputCounter_DefaultWindow(t *testing.T) {
	c := NewThroughputCounter(0, clock.NewMock())
	assert.Equal(t, 30, c.window)
}

func TestPacer_Delay(t *testing.T) {
	mock := clock.NewMock()
	p := NewPacer(30*time.Millisecond, mock)

	start := mock.Now()
	assert.Equal(t, 30*time.Millisecond, p.Delay(start))

	mock.Add(12 * time.Millisecond)
	assert.Equal(t, 18*time.Millisecond, p.Delay(start))

	mock.Add(40 * time.Millisecond)
	assert.Zero(t, p.Delay(start))
}

func TestPacer_Disabled(t *testing.T) {
	mock := clock.NewMock()
	p := NewPacer(0, mock)
	assert.Zero(t, p.Delay(mock.Now()))
	assert.NoError(t, p.Wait(context.Background(), mock.Now()))
}

func TestPacer_WaitAbortsOnCancel(t *testing.T) {
	mock := clock.NewMock()
	p := NewPacer(time.Hour, mock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, p.Wait(ctx, mock.Now()), context.Canceled)
}

func TestPacer_WaitRealClock(t *testing.T) {
	p := NewPacer(15*time.Millisecond, clock.New())

	start := time.Now()
	assert.NoError(t, p.Wait(context.Background(), start))
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}
