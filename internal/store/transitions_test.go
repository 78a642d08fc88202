package store

import (
	"testing"

	"agenx/queue-service/internal/models"
)

func TestValidTransition(t *testing.T) {
	cases := []struct {
		from  string
		to    string
		valid bool
	}{
		{"waiting", "calling", true},
		{"waiting", "serving", false},
		{"waiting", "no_show", true},
		{"waiting", "cancelled", true},
		{"waiting", "completed", false},
		{"calling", "serving", true},
		{"calling", "waiting", false},
		{"calling", "no_show", true},
		{"calling", "cancelled", true},
		{"serving", "completed", true},
		{"serving", "cancelled", true},
		{"serving", "no_show", false},
		{"serving", "calling", false},
		{"completed", "cancelled", false},
		{"cancelled", "waiting", false},
		{"no_show", "calling", false},
		{"unknown", "calling", false},
	}

	for _, tt := range cases {
		if got := ValidTransition(tt.from, tt.to); got != tt.valid {
			t.Fatalf("ValidTransition(%q, %q)=%v, want %v", tt.from, tt.to, got, tt.valid)
		}
	}
}

func TestTerminalStatusesHaveNoOutgoingEdges(t *testing.T) {
	statuses := []string{
		models.StatusWaiting,
		models.StatusCalling,
		models.StatusServing,
		models.StatusCompleted,
		models.StatusCancelled,
		models.StatusNoShow,
	}
	for _, from := range statuses {
		_, hasEdges := transitionMap[from]
		if models.Terminal(from) == hasEdges {
			t.Fatalf("status %q: terminal=%v but hasEdges=%v", from, models.Terminal(from), hasEdges)
		}
	}
}
