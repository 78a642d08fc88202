package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"agenx/queue-service/internal/models"
	"agenx/queue-service/internal/realtime"
	"agenx/queue-service/internal/store/memory"
)

type snapshotRecorder struct {
	mu   sync.Mutex
	last Snapshot
	seen bool
}

func (r *snapshotRecorder) record(snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = snap
	r.seen = true
}

func (r *snapshotRecorder) latest() (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.seen
}

func TestViewerSessionFollowsQueue(t *testing.T) {
	mem := memory.NewStore()
	hub := realtime.NewHub()
	machine := NewStateMachine(mem, hub)
	calc := NewPositionCalculator(mem, 60)
	base := time.Now().UTC()

	first := seedWaiting(t, mem, "biz-1", "first", base)
	second := seedWaiting(t, mem, "biz-1", "second", base.Add(time.Minute))

	rec := &snapshotRecorder{}
	session := NewViewerSession(mem, calc, 5*time.Millisecond, rec.record)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		// Long poll interval: updates must arrive via hub events.
		session.Run(ctx, realtime.NewReconciler(hub, time.Minute), "biz-1", second.EntryID)
	}()

	waitUntil(t, 2*time.Second, func() bool {
		snap, ok := rec.latest()
		return ok && snap.Position == 2
	})
	snap, _ := rec.latest()
	if snap.Remaining > 120 || snap.Remaining < 110 {
		t.Fatalf("Remaining = %d, want close to 120", snap.Remaining)
	}

	// First customer gets called; the viewer moves up and the countdown
	// restarts from the shorter estimate.
	if _, err := machine.Transition(context.Background(), first.BusinessID, first.EntryID, models.StatusWaiting, models.StatusCalling); err != nil {
		t.Fatalf("call first: %v", err)
	}
	waitUntil(t, 2*time.Second, func() bool {
		snap, _ := rec.latest()
		return snap.Position == 1 && snap.Remaining <= 60 && snap.Remaining > 50
	})

	// The viewer's own entry gets called; the session ends on its own.
	if _, err := machine.Transition(context.Background(), second.BusinessID, second.EntryID, models.StatusWaiting, models.StatusCalling); err != nil {
		t.Fatalf("call second: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end after entry left waiting")
	}
	snap, _ = rec.latest()
	if snap.Entry.Status != models.StatusCalling || snap.Position != 0 || snap.Remaining != 0 {
		t.Fatalf("final snapshot = %+v", snap)
	}
}
