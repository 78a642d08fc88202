package realtime

import (
	"context"
	"time"
)

// Reconciler pairs a hub subscription with a fixed-interval poll. The
// handler is invoked once on start, on every matching event, and on
// every tick. A missed event therefore delays a subscriber by at most
// one poll interval; it cannot strand it on stale state.
type Reconciler struct {
	hub      *Hub
	interval time.Duration
}

func NewReconciler(hub *Hub, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Reconciler{hub: hub, interval: interval}
}

// Run blocks until ctx is cancelled, invoking fn on the pattern above.
// Errors from fn are swallowed: the next tick retries.
func (r *Reconciler) Run(ctx context.Context, filter Subscription, fn func(ctx context.Context) error) {
	client := r.hub.Subscribe(filter)
	defer r.hub.Unregister(client)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	_ = fn(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-client.Send:
			if !ok {
				return
			}
			// Drain bursts so one re-fetch covers them.
		drain:
			for {
				select {
				case _, ok := <-client.Send:
					if !ok {
						return
					}
				default:
					break drain
				}
			}
			_ = fn(ctx)
		case <-ticker.C:
			_ = fn(ctx)
		}
	}
}
