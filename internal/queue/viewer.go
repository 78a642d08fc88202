package queue

import (
	"context"
	"sync"
	"time"

	"agenx/queue-service/internal/models"
	"agenx/queue-service/internal/realtime"
	"agenx/queue-service/internal/store"
)

// Snapshot is what a waiting customer sees: their entry, derived
// position, and the countdown value in seconds (negative once the
// estimate has elapsed, zero when the entry is no longer waiting).
type Snapshot struct {
	Entry     models.QueueEntry `json:"entry"`
	Position  int               `json:"position"`
	Remaining int               `json:"remaining_seconds"`
}

// ViewerSession tracks one customer's live view of their own entry. It
// re-fetches on every change signal and poll tick, restarts the
// countdown whenever position or status moved, and pushes a Snapshot to
// onUpdate on each refresh and each countdown tick.
type ViewerSession struct {
	entries   store.EntryStore
	positions *PositionCalculator
	countdown *Countdown
	onUpdate  func(Snapshot)

	mu       sync.Mutex
	runCtx   context.Context
	entryID  string
	entry    models.QueueEntry
	position int
	seen     bool
}

// NewViewerSession builds a session ticking at tick (one second in
// production; tests shrink it).
func NewViewerSession(entries store.EntryStore, positions *PositionCalculator, tick time.Duration, onUpdate func(Snapshot)) *ViewerSession {
	s := &ViewerSession{entries: entries, positions: positions, onUpdate: onUpdate}
	s.countdown = NewCountdown(tick, func(int) { s.push() })
	return s
}

// Run follows entryID until ctx is cancelled or the entry leaves the
// waiting status, whichever comes first. It blocks. The subscription is
// business-wide: any change in the queue can move this entry's
// position, not just changes to the entry itself.
func (s *ViewerSession) Run(ctx context.Context, rec *realtime.Reconciler, businessID, entryID string) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.runCtx = runCtx
	s.entryID = entryID
	s.mu.Unlock()

	rec.Run(runCtx, realtime.Subscription{BusinessID: businessID}, func(ctx context.Context) error {
		done, err := s.refresh(ctx)
		if done {
			cancel()
		}
		return err
	})
	s.countdown.Stop()
}

// Snapshot returns the latest view.
func (s *ViewerSession) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *ViewerSession) snapshotLocked() Snapshot {
	snap := Snapshot{Entry: s.entry, Position: s.position}
	if s.entry.Status == models.StatusWaiting {
		snap.Remaining = s.countdown.Remaining()
	}
	return snap
}

// refresh re-reads authoritative state. It reports done=true once the
// entry is no longer waiting, after pushing the final snapshot.
func (s *ViewerSession) refresh(ctx context.Context) (bool, error) {
	s.mu.Lock()
	entryID := s.entryID
	runCtx := s.runCtx
	s.mu.Unlock()

	entry, err := s.entries.GetEntry(ctx, entryID)
	if err != nil {
		return false, err
	}
	if entry.Status != models.StatusWaiting {
		s.countdown.Stop()
		s.mu.Lock()
		s.entry = entry
		s.position = 0
		s.mu.Unlock()
		s.push()
		return true, nil
	}

	position, err := s.positions.Position(ctx, entry)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	changed := !s.seen || position != s.position || entry.Status != s.entry.Status
	s.entry = entry
	s.position = position
	s.seen = true
	s.mu.Unlock()

	if changed {
		s.countdown.Restart(runCtx, int(s.positions.EstimatedWait(position).Seconds()))
	}
	s.push()
	return false, nil
}

func (s *ViewerSession) push() {
	if s.onUpdate == nil {
		return
	}
	s.mu.Lock()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.onUpdate(snap)
}
