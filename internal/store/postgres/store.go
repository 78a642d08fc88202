package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"agenx/queue-service/internal/models"
	"agenx/queue-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const entryColumns = "entry_id, business_id, client_id, client_name, client_phone, service_id, professional_id, status, joined_at, notes"

func (s *Store) CreateEntry(ctx context.Context, input store.CreateEntryInput) (models.QueueEntry, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.QueueEntry{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	joinedAt := input.JoinedAt
	if joinedAt.IsZero() {
		joinedAt = time.Now().UTC()
	}
	entryID := uuid.NewString()

	var entry models.QueueEntry
	var clientIDNull, serviceIDNull, proIDNull, notesNull sql.NullString
	row := tx.QueryRow(ctx, `
		INSERT INTO queue_entries (
			entry_id, business_id, client_name, client_phone, service_id, professional_id, status, joined_at, notes
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING `+entryColumns+`
	`, entryID, input.BusinessID, input.ClientName, input.ClientPhone, nullIfEmpty(input.ServiceID), nullIfEmpty(input.ProfessionalID), models.StatusWaiting, joinedAt, nullIfEmpty(input.Notes))
	if err = row.Scan(&entry.EntryID, &entry.BusinessID, &clientIDNull, &entry.ClientName, &entry.ClientPhone, &serviceIDNull, &proIDNull, &entry.Status, &entry.JoinedAt, &notesNull); err != nil {
		return models.QueueEntry{}, err
	}
	applyNulls(&entry, clientIDNull, serviceIDNull, proIDNull, notesNull)

	if err = insertOutboxEvent(ctx, tx, store.EventEntryCreated, entry); err != nil {
		return models.QueueEntry{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.QueueEntry{}, err
	}
	return entry, nil
}

func (s *Store) GetEntry(ctx context.Context, entryID string) (models.QueueEntry, error) {
	var entry models.QueueEntry
	var clientIDNull, serviceIDNull, proIDNull, notesNull sql.NullString
	row := s.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE entry_id = $1
	`, entryID)
	if err := row.Scan(&entry.EntryID, &entry.BusinessID, &clientIDNull, &entry.ClientName, &entry.ClientPhone, &serviceIDNull, &proIDNull, &entry.Status, &entry.JoinedAt, &notesNull); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.QueueEntry{}, store.ErrEntryNotFound
		}
		return models.QueueEntry{}, err
	}
	applyNulls(&entry, clientIDNull, serviceIDNull, proIDNull, notesNull)
	return entry, nil
}

func (s *Store) ListToday(ctx context.Context, businessID string) ([]models.QueueEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE business_id = $1 AND joined_at >= $2
		ORDER BY joined_at ASC, entry_id ASC
	`, businessID, startOfToday())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.QueueEntry
	for rows.Next() {
		var entry models.QueueEntry
		var clientIDNull, serviceIDNull, proIDNull, notesNull sql.NullString
		if err := rows.Scan(&entry.EntryID, &entry.BusinessID, &clientIDNull, &entry.ClientName, &entry.ClientPhone, &serviceIDNull, &proIDNull, &entry.Status, &entry.JoinedAt, &notesNull); err != nil {
			return nil, err
		}
		applyNulls(&entry, clientIDNull, serviceIDNull, proIDNull, notesNull)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// ListActive returns today's entries still in the queue or at the chair,
// in calling order.
func (s *Store) ListActive(ctx context.Context, businessID string) ([]models.QueueEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE business_id = $1 AND joined_at >= $2
			AND status IN ($3, $4, $5)
		ORDER BY joined_at ASC, entry_id ASC
	`, businessID, startOfToday(), models.StatusWaiting, models.StatusCalling, models.StatusServing)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.QueueEntry
	for rows.Next() {
		var entry models.QueueEntry
		var clientIDNull, serviceIDNull, proIDNull, notesNull sql.NullString
		if err := rows.Scan(&entry.EntryID, &entry.BusinessID, &clientIDNull, &entry.ClientName, &entry.ClientPhone, &serviceIDNull, &proIDNull, &entry.Status, &entry.JoinedAt, &notesNull); err != nil {
			return nil, err
		}
		applyNulls(&entry, clientIDNull, serviceIDNull, proIDNull, notesNull)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) CountAhead(ctx context.Context, businessID string, joinedAt time.Time, entryID string) (int, error) {
	var count int
	row := s.pool.QueryRow(ctx, `
		SELECT COUNT(1)
		FROM queue_entries
		WHERE business_id = $1 AND status = $2
			AND (joined_at < $3 OR (joined_at = $3 AND entry_id <= $4))
	`, businessID, models.StatusWaiting, joinedAt, entryID)
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) UpdateStatus(ctx context.Context, input store.UpdateStatusInput) (models.QueueEntry, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.QueueEntry{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var entry models.QueueEntry
	var clientIDNull, serviceIDNull, proIDNull, notesNull sql.NullString
	row := tx.QueryRow(ctx, `
		UPDATE queue_entries
		SET status = $1
		WHERE entry_id = $2 AND business_id = $3 AND status = $4
		RETURNING `+entryColumns+`
	`, input.ToStatus, input.EntryID, input.BusinessID, input.FromStatus)
	if err = row.Scan(&entry.EntryID, &entry.BusinessID, &clientIDNull, &entry.ClientName, &entry.ClientPhone, &serviceIDNull, &proIDNull, &entry.Status, &entry.JoinedAt, &notesNull); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			exists, loadErr := entryExists(ctx, tx, input.EntryID, input.BusinessID)
			if loadErr != nil {
				err = loadErr
				return models.QueueEntry{}, err
			}
			if !exists {
				err = store.ErrEntryNotFound
				return models.QueueEntry{}, err
			}
			err = store.ErrConflict
			return models.QueueEntry{}, err
		}
		return models.QueueEntry{}, err
	}
	applyNulls(&entry, clientIDNull, serviceIDNull, proIDNull, notesNull)

	if err = insertOutboxEvent(ctx, tx, store.EventStatusChanged, entry); err != nil {
		return models.QueueEntry{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.QueueEntry{}, err
	}
	return entry, nil
}

func (s *Store) ListOutboxEvents(ctx context.Context, businessID string, after time.Time, limit int) ([]store.OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT event_id, business_id, entry_id, type, payload_json, created_at
		FROM outbox_events
		WHERE business_id = $1
	`
	args := []interface{}{businessID}
	if !after.IsZero() {
		query += " AND created_at > $2 ORDER BY created_at ASC LIMIT $3"
		args = append(args, after, limit)
	} else {
		query += " ORDER BY created_at ASC LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.OutboxEvent
	for rows.Next() {
		var event store.OutboxEvent
		if err := rows.Scan(&event.EventID, &event.BusinessID, &event.EntryID, &event.Type, &event.Payload, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Store) FindClientByPhone(ctx context.Context, businessID string, phones []string) (models.Client, bool, error) {
	for _, phone := range phones {
		var client models.Client
		row := s.pool.QueryRow(ctx, `
			SELECT client_id, business_id, name, phone, created_at
			FROM clients
			WHERE business_id = $1 AND phone = $2
			ORDER BY created_at ASC
			LIMIT 1
		`, businessID, phone)
		err := row.Scan(&client.ClientID, &client.BusinessID, &client.Name, &client.Phone, &client.CreatedAt)
		if err == nil {
			return client, true, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return models.Client{}, false, err
		}
	}
	return models.Client{}, false, nil
}

func (s *Store) CreateClient(ctx context.Context, input store.CreateClientInput) (models.Client, error) {
	var client models.Client
	row := s.pool.QueryRow(ctx, `
		INSERT INTO clients (client_id, business_id, name, phone, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING client_id, business_id, name, phone, created_at
	`, uuid.NewString(), input.BusinessID, input.Name, input.Phone, time.Now().UTC())
	if err := row.Scan(&client.ClientID, &client.BusinessID, &client.Name, &client.Phone, &client.CreatedAt); err != nil {
		return models.Client{}, err
	}
	return client, nil
}

func (s *Store) CreateAppointment(ctx context.Context, input store.CreateAppointmentInput) (models.Appointment, error) {
	var apt models.Appointment
	var proIDNull sql.NullString
	row := s.pool.QueryRow(ctx, `
		INSERT INTO appointments (
			appointment_id, business_id, client_id, professional_id, service, price, status, appointment_time, duration_minutes
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING appointment_id, business_id, client_id, professional_id, service, price, status, appointment_time, duration_minutes
	`, uuid.NewString(), input.BusinessID, input.ClientID, nullIfEmpty(input.ProfessionalID), input.Service, input.Price, models.AppointmentStatusCompleted, input.AppointmentTime, input.DurationMinutes)
	if err := row.Scan(&apt.AppointmentID, &apt.BusinessID, &apt.ClientID, &proIDNull, &apt.Service, &apt.Price, &apt.Status, &apt.AppointmentTime, &apt.DurationMinutes); err != nil {
		return models.Appointment{}, err
	}
	apt.ProfessionalID = nullStringPtr(proIDNull)
	return apt, nil
}

func (s *Store) CreateFinanceRecord(ctx context.Context, input store.CreateFinanceRecordInput) (models.FinanceRecord, error) {
	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	var record models.FinanceRecord
	var proIDNull sql.NullString
	row := s.pool.QueryRow(ctx, `
		INSERT INTO finance_records (
			record_id, business_id, appointment_id, professional_id, professional_name, client_name, service_name, type, revenue, commission_rate, commission_value, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING record_id, business_id, appointment_id, professional_id, professional_name, client_name, service_name, type, revenue, commission_rate, commission_value, created_at
	`, uuid.NewString(), input.BusinessID, input.AppointmentID, nullIfEmpty(input.ProfessionalID), input.ProfessionalName, input.ClientName, input.ServiceName, models.FinanceTypeRevenue, input.Revenue, input.CommissionRate, input.CommissionValue, createdAt)
	if err := row.Scan(&record.RecordID, &record.BusinessID, &record.AppointmentID, &proIDNull, &record.ProfessionalName, &record.ClientName, &record.ServiceName, &record.Type, &record.Revenue, &record.CommissionRate, &record.CommissionValue, &record.CreatedAt); err != nil {
		return models.FinanceRecord{}, err
	}
	record.ProfessionalID = nullStringPtr(proIDNull)
	return record, nil
}

func (s *Store) GetProfessional(ctx context.Context, businessID, professionalID string) (models.Professional, bool, error) {
	var pro models.Professional
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, name, commission_rate, active
		FROM team_members
		WHERE id = $1 AND user_id = $2
	`, professionalID, businessID)
	if err := row.Scan(&pro.ProfessionalID, &pro.BusinessID, &pro.Name, &pro.CommissionRate, &pro.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Professional{}, false, nil
		}
		return models.Professional{}, false, err
	}
	return pro, true, nil
}

func insertOutboxEvent(ctx context.Context, tx pgx.Tx, eventType string, entry models.QueueEntry) error {
	payload := map[string]interface{}{
		"entry_id":    entry.EntryID,
		"business_id": entry.BusinessID,
		"status":      entry.Status,
		"joined_at":   entry.JoinedAt,
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_events (event_id, business_id, entry_id, type, payload_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.NewString(), entry.BusinessID, entry.EntryID, eventType, payloadJSON, time.Now().UTC())
	return err
}

func entryExists(ctx context.Context, tx pgx.Tx, entryID, businessID string) (bool, error) {
	var exists bool
	row := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM queue_entries WHERE entry_id = $1 AND business_id = $2
		)
	`, entryID, businessID)
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func startOfToday() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func applyNulls(entry *models.QueueEntry, clientID, serviceID, proID, notes sql.NullString) {
	entry.ClientID = nullStringPtr(clientID)
	entry.ServiceID = nullStringPtr(serviceID)
	entry.ProfessionalID = nullStringPtr(proID)
	if notes.Valid {
		entry.Notes = notes.String
	}
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	return &value.String
}
