// Package memory implements the store interfaces in process. It backs the
// unit tests and local runs without a database; the postgres package is the
// production implementation.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"agenx/queue-service/internal/models"
	"agenx/queue-service/internal/store"

	"github.com/google/uuid"
)

type Store struct {
	mu            sync.Mutex
	entries       map[string]models.QueueEntry
	clients       []models.Client
	appointments  []models.Appointment
	finance       []models.FinanceRecord
	professionals map[string]models.Professional
	outbox        []store.OutboxEvent
}

func NewStore() *Store {
	return &Store{
		entries:       make(map[string]models.QueueEntry),
		professionals: make(map[string]models.Professional),
	}
}

func (s *Store) CreateEntry(ctx context.Context, input store.CreateEntryInput) (models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	joinedAt := input.JoinedAt
	if joinedAt.IsZero() {
		joinedAt = time.Now().UTC()
	}
	entry := models.QueueEntry{
		EntryID:     uuid.NewString(),
		BusinessID:  input.BusinessID,
		ClientName:  input.ClientName,
		ClientPhone: input.ClientPhone,
		Status:      models.StatusWaiting,
		JoinedAt:    joinedAt,
		Notes:       input.Notes,
	}
	if input.ServiceID != "" {
		serviceID := input.ServiceID
		entry.ServiceID = &serviceID
	}
	if input.ProfessionalID != "" {
		proID := input.ProfessionalID
		entry.ProfessionalID = &proID
	}
	s.entries[entry.EntryID] = entry
	s.appendOutboxLocked(store.EventEntryCreated, entry)
	return entry, nil
}

func (s *Store) GetEntry(ctx context.Context, entryID string) (models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[entryID]
	if !ok {
		return models.QueueEntry{}, store.ErrEntryNotFound
	}
	return entry, nil
}

func (s *Store) ListToday(ctx context.Context, businessID string) ([]models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := startOfToday()
	var entries []models.QueueEntry
	for _, entry := range s.entries {
		if entry.BusinessID != businessID || entry.JoinedAt.Before(cutoff) {
			continue
		}
		entries = append(entries, entry)
	}
	sortEntries(entries)
	return entries, nil
}

func (s *Store) ListActive(ctx context.Context, businessID string) ([]models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := startOfToday()
	var entries []models.QueueEntry
	for _, entry := range s.entries {
		if entry.BusinessID != businessID || entry.JoinedAt.Before(cutoff) {
			continue
		}
		if models.Terminal(entry.Status) {
			continue
		}
		entries = append(entries, entry)
	}
	sortEntries(entries)
	return entries, nil
}

func (s *Store) CountAhead(ctx context.Context, businessID string, joinedAt time.Time, entryID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, entry := range s.entries {
		if entry.BusinessID != businessID || entry.Status != models.StatusWaiting {
			continue
		}
		if entry.JoinedAt.Before(joinedAt) || (entry.JoinedAt.Equal(joinedAt) && entry.EntryID <= entryID) {
			count++
		}
	}
	return count, nil
}

func (s *Store) UpdateStatus(ctx context.Context, input store.UpdateStatusInput) (models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[input.EntryID]
	if !ok || entry.BusinessID != input.BusinessID {
		return models.QueueEntry{}, store.ErrEntryNotFound
	}
	if entry.Status != input.FromStatus {
		return models.QueueEntry{}, store.ErrConflict
	}
	entry.Status = input.ToStatus
	s.entries[input.EntryID] = entry
	s.appendOutboxLocked(store.EventStatusChanged, entry)
	return entry, nil
}

func (s *Store) ListOutboxEvents(ctx context.Context, businessID string, after time.Time, limit int) ([]store.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	var events []store.OutboxEvent
	for _, event := range s.outbox {
		if event.BusinessID != businessID {
			continue
		}
		if !after.IsZero() && !event.CreatedAt.After(after) {
			continue
		}
		events = append(events, event)
		if len(events) >= limit {
			break
		}
	}
	return events, nil
}

func (s *Store) FindClientByPhone(ctx context.Context, businessID string, phones []string) (models.Client, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, phone := range phones {
		for _, client := range s.clients {
			if client.BusinessID == businessID && client.Phone == phone {
				return client, true, nil
			}
		}
	}
	return models.Client{}, false, nil
}

func (s *Store) CreateClient(ctx context.Context, input store.CreateClientInput) (models.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	client := models.Client{
		ClientID:   uuid.NewString(),
		BusinessID: input.BusinessID,
		Name:       input.Name,
		Phone:      input.Phone,
		CreatedAt:  time.Now().UTC(),
	}
	s.clients = append(s.clients, client)
	return client, nil
}

func (s *Store) CreateAppointment(ctx context.Context, input store.CreateAppointmentInput) (models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	apt := models.Appointment{
		AppointmentID:   uuid.NewString(),
		BusinessID:      input.BusinessID,
		ClientID:        input.ClientID,
		Service:         input.Service,
		Price:           input.Price,
		Status:          models.AppointmentStatusCompleted,
		AppointmentTime: input.AppointmentTime,
		DurationMinutes: input.DurationMinutes,
	}
	if input.ProfessionalID != "" {
		proID := input.ProfessionalID
		apt.ProfessionalID = &proID
	}
	s.appointments = append(s.appointments, apt)
	return apt, nil
}

func (s *Store) CreateFinanceRecord(ctx context.Context, input store.CreateFinanceRecordInput) (models.FinanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	record := models.FinanceRecord{
		RecordID:         uuid.NewString(),
		BusinessID:       input.BusinessID,
		AppointmentID:    input.AppointmentID,
		ProfessionalName: input.ProfessionalName,
		ClientName:       input.ClientName,
		ServiceName:      input.ServiceName,
		Type:             models.FinanceTypeRevenue,
		Revenue:          input.Revenue,
		CommissionRate:   input.CommissionRate,
		CommissionValue:  input.CommissionValue,
		CreatedAt:        createdAt,
	}
	if input.ProfessionalID != "" {
		proID := input.ProfessionalID
		record.ProfessionalID = &proID
	}
	s.finance = append(s.finance, record)
	return record, nil
}

func (s *Store) GetProfessional(ctx context.Context, businessID, professionalID string) (models.Professional, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pro, ok := s.professionals[professionalID]
	if !ok || pro.BusinessID != businessID {
		return models.Professional{}, false, nil
	}
	return pro, true, nil
}

// SeedProfessional registers reference data for tests and local runs.
func (s *Store) SeedProfessional(pro models.Professional) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.professionals[pro.ProfessionalID] = pro
}

// Clients returns a snapshot of stored clients.
func (s *Store) Clients() []models.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Client(nil), s.clients...)
}

// Appointments returns a snapshot of stored appointments.
func (s *Store) Appointments() []models.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Appointment(nil), s.appointments...)
}

// FinanceRecords returns a snapshot of stored finance records.
func (s *Store) FinanceRecords() []models.FinanceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.FinanceRecord(nil), s.finance...)
}

func (s *Store) appendOutboxLocked(eventType string, entry models.QueueEntry) {
	payload, err := json.Marshal(map[string]interface{}{
		"entry_id":    entry.EntryID,
		"business_id": entry.BusinessID,
		"status":      entry.Status,
		"joined_at":   entry.JoinedAt,
	})
	if err != nil {
		return
	}
	s.outbox = append(s.outbox, store.OutboxEvent{
		EventID:    uuid.NewString(),
		BusinessID: entry.BusinessID,
		EntryID:    entry.EntryID,
		Type:       eventType,
		Payload:    payload,
		CreatedAt:  time.Now().UTC(),
	})
}

func sortEntries(entries []models.QueueEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].JoinedAt.Equal(entries[j].JoinedAt) {
			return entries[i].EntryID < entries[j].EntryID
		}
		return entries[i].JoinedAt.Before(entries[j].JoinedAt)
	})
}

func startOfToday() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
