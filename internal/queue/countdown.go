package queue

import (
	"context"
	"sync"
	"time"
)

// Countdown is a per-viewer wait timer. It ticks the remaining seconds
// down from whatever Restart last set; the value is allowed to go
// negative, which the display renders as overdue rather than clamping.
type Countdown struct {
	interval time.Duration
	onTick   func(remaining int)

	mu        sync.Mutex
	remaining int
	gen       int
	cancel    context.CancelFunc
}

// NewCountdown ticks every interval and invokes onTick (which may be
// nil) with the updated remaining seconds.
func NewCountdown(interval time.Duration, onTick func(remaining int)) *Countdown {
	if interval <= 0 {
		interval = time.Second
	}
	return &Countdown{interval: interval, onTick: onTick}
}

// Restart stops any running countdown and begins a new one from
// seconds. The run stops when ctx is cancelled or Restart/Stop is
// called again.
func (c *Countdown) Restart(ctx context.Context, seconds int) {
	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = cancel
	c.remaining = seconds
	c.gen++
	gen := c.gen
	c.mu.Unlock()
	go c.run(runCtx, gen)
}

func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
}

// Remaining reports the current value in seconds; negative means the
// estimate has elapsed.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *Countdown) run(ctx context.Context, gen int) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			if gen != c.gen {
				// A newer Restart owns the counter now.
				c.mu.Unlock()
				return
			}
			c.remaining--
			value := c.remaining
			c.mu.Unlock()
			if c.onTick != nil {
				c.onTick(value)
			}
		}
	}
}
