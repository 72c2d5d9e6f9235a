package pipeline

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// ThroughputCounter recomputes frames per second every N frames
type ThroughputCounter struct {
	clk         clock.Clock
	window      int
	count       int
	windowStart time.Time
	fps         float64
}

// NewThroughputCounter creates a counter with a window of n frames
func NewThroughputCounter(n int, clk clock.Clock) *ThroughputCounter {
	if n <= 0 {
		n = 30
	}
	return &ThroughputCounter{clk: clk, window: n, windowStart: clk.Now()}
}

// Reset starts a new window now and forgets the last value
func (c *ThroughputCounter) Reset() {
	c.count = 0
	c.fps = 0
	c.windowStart = c.clk.Now()
}

// Tick counts one frame. It reports true when the window closed and FPS was recomputed.
func (c *ThroughputCounter) Tick() (float64, bool) {
	c.count++
	if c.count < c.window {
		return c.fps, false
	}

	now := c.clk.Now()
	if elapsed := now.Sub(c.windowStart).Seconds(); elapsed > 0 {
		c.fps = float64(c.count) / elapsed
	}
	c.count = 0
	c.windowStart = now
	return c.fps, true
}

// FPS returns the last computed value, 0 before the first window closes
func (c *ThroughputCounter) FPS() float64 {
	return c.fps
}

// Pacer holds ticks to a target interval measured from each tick's start
type Pacer struct {
	clk      clock.Clock
	interval time.Duration
}

// NewPacer creates a pacer; a non-positive interval disables pacing
func NewPacer(interval time.Duration, clk clock.Clock) *Pacer {
	return &Pacer{clk: clk, interval: interval}
}

// Delay returns how long to wait before the next tick
func (p *Pacer) Delay(tickStart time.Time) time.Duration {
	if p.interval <= 0 {
		return 0
	}
	d := p.interval - p.clk.Since(tickStart)
	if d < 0 {
		return 0
	}
	return d
}

// Wait sleeps for the remaining interval or until ctx ends
func (p *Pacer) Wait(ctx context.Context, tickStart time.Time) error {
	return sleep(ctx, p.clk, p.Delay(tickStart))
}

func sleep(ctx context.Context, clk clock.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := clk.Timer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
