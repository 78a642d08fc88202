package store

import "errors"

var (
	ErrEntryNotFound        = errors.New("queue entry not found")
	ErrConflict             = errors.New("concurrent status update conflict")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrProfessionalNotFound = errors.New("professional not found")
)
