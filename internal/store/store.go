package store

import (
	"context"
	"encoding/json"
	"time"

	"agenx/queue-service/internal/models"
)

type CreateEntryInput struct {
	BusinessID     string
	ClientName     string
	ClientPhone    string
	ServiceID      string
	ProfessionalID string
	Notes          string
	JoinedAt       time.Time
}

type UpdateStatusInput struct {
	BusinessID string
	EntryID    string
	FromStatus string
	ToStatus   string
	OccurredAt time.Time
}

// EntryStore is the authoritative record of queue entries. UpdateStatus is
// a compare-and-swap on the stored status: the update applies only while
// the stored status still equals FromStatus; zero rows matched surfaces as
// ErrConflict (or ErrEntryNotFound when the entry does not exist).
type EntryStore interface {
	CreateEntry(ctx context.Context, input CreateEntryInput) (models.QueueEntry, error)
	GetEntry(ctx context.Context, entryID string) (models.QueueEntry, error)
	ListToday(ctx context.Context, businessID string) ([]models.QueueEntry, error)
	ListActive(ctx context.Context, businessID string) ([]models.QueueEntry, error)
	CountAhead(ctx context.Context, businessID string, joinedAt time.Time, entryID string) (int, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (models.QueueEntry, error)
	ListOutboxEvents(ctx context.Context, businessID string, after time.Time, limit int) ([]OutboxEvent, error)
}

type CreateClientInput struct {
	BusinessID string
	Name       string
	Phone      string
}

type CreateAppointmentInput struct {
	BusinessID      string
	ClientID        string
	ProfessionalID  string
	Service         string
	Price           float64
	AppointmentTime time.Time
	DurationMinutes int
}

type CreateFinanceRecordInput struct {
	BusinessID       string
	AppointmentID    string
	ProfessionalID   string
	ProfessionalName string
	ClientName       string
	ServiceName      string
	Revenue          float64
	CommissionRate   float64
	CommissionValue  float64
	CreatedAt        time.Time
}

// ClientStore resolves clients by phone within a business. FindClientByPhone
// tries the given candidates in order and returns the first match.
type ClientStore interface {
	FindClientByPhone(ctx context.Context, businessID string, phones []string) (models.Client, bool, error)
	CreateClient(ctx context.Context, input CreateClientInput) (models.Client, error)
}

type AppointmentStore interface {
	CreateAppointment(ctx context.Context, input CreateAppointmentInput) (models.Appointment, error)
}

type FinanceStore interface {
	CreateFinanceRecord(ctx context.Context, input CreateFinanceRecordInput) (models.FinanceRecord, error)
}

type ProfessionalStore interface {
	GetProfessional(ctx context.Context, businessID, professionalID string) (models.Professional, bool, error)
}

const (
	EventEntryCreated  = "queue.entry_created"
	EventStatusChanged = "queue.status_changed"
)

type OutboxEvent struct {
	EventID    string          `json:"event_id"`
	BusinessID string          `json:"business_id"`
	EntryID    string          `json:"entry_id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
}
