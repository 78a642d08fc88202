package models

import "time"

// QueueEntry is one customer's place in a business's walk-in queue for the
// current day. JoinedAt is assigned at creation and never mutated; among
// waiting and calling entries it defines the queue order.
type QueueEntry struct {
	EntryID        string    `json:"entry_id"`
	BusinessID     string    `json:"business_id"`
	ClientID       *string   `json:"client_id,omitempty"`
	ClientName     string    `json:"client_name"`
	ClientPhone    string    `json:"client_phone"`
	ServiceID      *string   `json:"service_id,omitempty"`
	ProfessionalID *string   `json:"professional_id,omitempty"`
	Status         string    `json:"status"`
	JoinedAt       time.Time `json:"joined_at"`
	Notes          string    `json:"notes,omitempty"`
}

const (
	StatusWaiting   = "waiting"
	StatusCalling   = "calling"
	StatusServing   = "serving"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no_show"
)

// Terminal reports whether status admits no further transition.
func Terminal(status string) bool {
	switch status {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	default:
		return false
	}
}

// QueueMetrics are the dashboard counters over today's entries.
type QueueMetrics struct {
	Waiting   int `json:"waiting"`
	Serving   int `json:"serving"`
	Completed int `json:"completed"`
}
