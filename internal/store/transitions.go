package store

import "agenx/queue-service/internal/models"

var transitionMap = map[string][]string{
	models.StatusWaiting: {models.StatusCalling, models.StatusNoShow, models.StatusCancelled},
	models.StatusCalling: {models.StatusServing, models.StatusNoShow, models.StatusCancelled},
	models.StatusServing: {models.StatusCompleted, models.StatusCancelled},
}

// ValidTransition reports whether from → to is an allowed edge. Terminal
// statuses have no outgoing edges.
func ValidTransition(from, to string) bool {
	allowed, ok := transitionMap[from]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == to {
			return true
		}
	}
	return false
}
