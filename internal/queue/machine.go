// Package queue holds the status machine and the derived-position math
// for walk-in entries. Status is the only persisted ordering input; a
// customer's place in line is always recomputed, never stored.
package queue

import (
	"context"
	"fmt"
	"time"

	"agenx/queue-service/internal/models"
	"agenx/queue-service/internal/realtime"
	"agenx/queue-service/internal/store"
)

// Publisher receives change notifications after a successful write.
// Delivery is fire and forget.
type Publisher interface {
	Publish(event realtime.Event)
}

// StateMachine applies status transitions with compare-and-set
// semantics: the edge is validated against the caller's expected status
// before any write, and the store only commits if the row still holds
// that status.
type StateMachine struct {
	entries   store.EntryStore
	publisher Publisher
}

func NewStateMachine(entries store.EntryStore, publisher Publisher) *StateMachine {
	return &StateMachine{entries: entries, publisher: publisher}
}

// Transition moves an entry from one status to another. It returns
// store.ErrInvalidTransition when the edge is not allowed and
// store.ErrConflict when the entry's current status no longer matches
// from, in which case the caller should re-fetch and retry.
func (m *StateMachine) Transition(ctx context.Context, businessID, entryID, from, to string) (models.QueueEntry, error) {
	if !store.ValidTransition(from, to) {
		return models.QueueEntry{}, fmt.Errorf("transition %s -> %s: %w", from, to, store.ErrInvalidTransition)
	}
	entry, err := m.entries.UpdateStatus(ctx, store.UpdateStatusInput{
		BusinessID: businessID,
		EntryID:    entryID,
		FromStatus: from,
		ToStatus:   to,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return models.QueueEntry{}, err
	}
	if m.publisher != nil {
		m.publisher.Publish(realtime.Event{
			Type:       store.EventStatusChanged,
			BusinessID: entry.BusinessID,
			EntryID:    entry.EntryID,
			Status:     entry.Status,
			CreatedAt:  time.Now().UTC(),
		})
	}
	return entry, nil
}
