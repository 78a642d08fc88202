package queue

import (
	"context"
	"testing"
	"time"

	"agenx/queue-service/internal/models"
	"agenx/queue-service/internal/store"
	"agenx/queue-service/internal/store/memory"
)

func seedWaiting(t *testing.T, mem *memory.Store, businessID, name string, joinedAt time.Time) models.QueueEntry {
	t.Helper()
	entry, err := mem.CreateEntry(context.Background(), store.CreateEntryInput{
		BusinessID:  businessID,
		ClientName:  name,
		ClientPhone: "11999990000",
		JoinedAt:    joinedAt,
	})
	if err != nil {
		t.Fatalf("create entry %s: %v", name, err)
	}
	return entry
}

func TestPositionFollowsArrivalOrder(t *testing.T) {
	mem := memory.NewStore()
	calc := NewPositionCalculator(mem, 0)
	base := time.Now().UTC()

	first := seedWaiting(t, mem, "biz-1", "first", base)
	second := seedWaiting(t, mem, "biz-1", "second", base.Add(time.Minute))
	third := seedWaiting(t, mem, "biz-1", "third", base.Add(2*time.Minute))
	// Another business does not count.
	seedWaiting(t, mem, "biz-2", "elsewhere", base)

	for i, entry := range []models.QueueEntry{first, second, third} {
		pos, err := calc.Position(context.Background(), entry)
		if err != nil {
			t.Fatalf("position: %v", err)
		}
		if pos != i+1 {
			t.Fatalf("position(%s) = %d, want %d", entry.ClientName, pos, i+1)
		}
	}
}

func TestPositionShiftsWhenEarlierEntryLeaves(t *testing.T) {
	mem := memory.NewStore()
	machine := NewStateMachine(mem, nil)
	calc := NewPositionCalculator(mem, 0)
	base := time.Now().UTC()

	first := seedWaiting(t, mem, "biz-1", "first", base)
	second := seedWaiting(t, mem, "biz-1", "second", base.Add(time.Minute))

	if _, err := machine.Transition(context.Background(), first.BusinessID, first.EntryID, models.StatusWaiting, models.StatusCalling); err != nil {
		t.Fatalf("call first: %v", err)
	}

	pos, err := calc.Position(context.Background(), second)
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if pos != 1 {
		t.Fatalf("position = %d, want 1 after first was called", pos)
	}
}

func TestPositionZeroWhenNotWaiting(t *testing.T) {
	mem := memory.NewStore()
	calc := NewPositionCalculator(mem, 0)

	entry := seedWaiting(t, mem, "biz-1", "first", time.Now().UTC())
	entry.Status = models.StatusCalling

	pos, err := calc.Position(context.Background(), entry)
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if pos != 0 {
		t.Fatalf("position = %d, want 0 for non-waiting entry", pos)
	}
}

func TestEstimatedWait(t *testing.T) {
	calc := NewPositionCalculator(memory.NewStore(), 0)

	cases := []struct {
		position int
		want     time.Duration
	}{
		{0, 0},
		{1, 20 * time.Minute},
		{3, time.Hour},
	}
	for _, tc := range cases {
		if got := calc.EstimatedWait(tc.position); got != tc.want {
			t.Fatalf("EstimatedWait(%d) = %s, want %s", tc.position, got, tc.want)
		}
	}

	custom := NewPositionCalculator(memory.NewStore(), 600)
	if got := custom.EstimatedWait(2); got != 20*time.Minute {
		t.Fatalf("EstimatedWait(2) with 600s override = %s, want 20m", got)
	}
}
