package queue

import (
	"context"
	"time"

	"agenx/queue-service/internal/models"
	"agenx/queue-service/internal/store"
)

// DefaultServiceSeconds is the flat per-customer estimate used when no
// override is configured: twenty minutes of service time.
const DefaultServiceSeconds = 1200

// PositionCalculator derives a waiting customer's 1-based place in
// line. Position 1 means next to be called.
type PositionCalculator struct {
	entries        store.EntryStore
	serviceSeconds int
}

func NewPositionCalculator(entries store.EntryStore, serviceSeconds int) *PositionCalculator {
	if serviceSeconds <= 0 {
		serviceSeconds = DefaultServiceSeconds
	}
	return &PositionCalculator{entries: entries, serviceSeconds: serviceSeconds}
}

// Position counts waiting entries that joined at or before entry,
// including entry itself. Non-waiting entries have no position and
// report zero.
func (c *PositionCalculator) Position(ctx context.Context, entry models.QueueEntry) (int, error) {
	if entry.Status != models.StatusWaiting {
		return 0, nil
	}
	return c.entries.CountAhead(ctx, entry.BusinessID, entry.JoinedAt, entry.EntryID)
}

// EstimatedWait is a flat multiple of position; it ignores service mix
// and staffing on purpose, the estimate only needs to be stable and
// monotonic with position.
func (c *PositionCalculator) EstimatedWait(position int) time.Duration {
	if position <= 0 {
		return 0
	}
	return time.Duration(position*c.serviceSeconds) * time.Second
}
