// Package completion turns a served queue entry into billing records:
// it resolves or creates the client, writes a completed appointment and
// a finance record, and only then moves the entry to its terminal
// status. The steps are sequential, not atomic; a failure mid-way
// leaves the entry in serving so staff can retry, and a retry after a
// partial failure can duplicate the already-written records.
package completion

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"agenx/queue-service/internal/models"
	"agenx/queue-service/internal/queue"
	"agenx/queue-service/internal/store"
)

// ErrNotServing rejects a completion whose entry is not currently being
// served, which covers the double-completion case as well.
var ErrNotServing = errors.New("entry is not being served")

var ErrInvalidPrice = errors.New("price must be a non-negative amount")

const defaultDurationMinutes = 30

type Input struct {
	BusinessID     string
	EntryID        string
	ServiceName    string
	Price          float64
	ProfessionalID string
}

type Result struct {
	Entry         models.QueueEntry    `json:"entry"`
	Client        models.Client        `json:"client"`
	Appointment   models.Appointment   `json:"appointment"`
	FinanceRecord models.FinanceRecord `json:"finance_record"`
}

type Transactor struct {
	entries       store.EntryStore
	clients       store.ClientStore
	appointments  store.AppointmentStore
	finance       store.FinanceStore
	professionals store.ProfessionalStore
	machine       *queue.StateMachine
}

func NewTransactor(
	entries store.EntryStore,
	clients store.ClientStore,
	appointments store.AppointmentStore,
	finance store.FinanceStore,
	professionals store.ProfessionalStore,
	machine *queue.StateMachine,
) *Transactor {
	return &Transactor{
		entries:       entries,
		clients:       clients,
		appointments:  appointments,
		finance:       finance,
		professionals: professionals,
		machine:       machine,
	}
}

// Complete runs the finish flow for a served entry. Each returned error
// is wrapped with the step that failed so staff-facing messages can say
// what to retry.
func (t *Transactor) Complete(ctx context.Context, input Input) (Result, error) {
	if input.Price < 0 || math.IsNaN(input.Price) || math.IsInf(input.Price, 0) {
		return Result{}, ErrInvalidPrice
	}

	entry, err := t.entries.GetEntry(ctx, input.EntryID)
	if err != nil {
		return Result{}, fmt.Errorf("load entry: %w", err)
	}
	if entry.BusinessID != input.BusinessID {
		return Result{}, fmt.Errorf("load entry: %w", store.ErrEntryNotFound)
	}
	if entry.Status != models.StatusServing {
		return Result{}, fmt.Errorf("entry %s is %s: %w", entry.EntryID, entry.Status, ErrNotServing)
	}

	client, err := t.resolveClient(ctx, entry)
	if err != nil {
		return Result{}, fmt.Errorf("resolve client: %w", err)
	}

	professionalID := input.ProfessionalID
	if professionalID == "" && entry.ProfessionalID != nil {
		professionalID = *entry.ProfessionalID
	}
	professionalName := ""
	commissionRate := 0.0
	if professionalID != "" {
		pro, found, err := t.professionals.GetProfessional(ctx, input.BusinessID, professionalID)
		if err != nil {
			return Result{}, fmt.Errorf("load professional: %w", err)
		}
		if !found {
			return Result{}, fmt.Errorf("load professional: %w", store.ErrProfessionalNotFound)
		}
		professionalName = pro.Name
		commissionRate = pro.CommissionRate
	}

	now := time.Now().UTC()
	appointment, err := t.appointments.CreateAppointment(ctx, store.CreateAppointmentInput{
		BusinessID:      input.BusinessID,
		ClientID:        client.ClientID,
		ProfessionalID:  professionalID,
		Service:         input.ServiceName,
		Price:           input.Price,
		AppointmentTime: now,
		DurationMinutes: defaultDurationMinutes,
	})
	if err != nil {
		return Result{}, fmt.Errorf("create appointment: %w", err)
	}

	record, err := t.finance.CreateFinanceRecord(ctx, store.CreateFinanceRecordInput{
		BusinessID:       input.BusinessID,
		AppointmentID:    appointment.AppointmentID,
		ProfessionalID:   professionalID,
		ProfessionalName: professionalName,
		ClientName:       client.Name,
		ServiceName:      input.ServiceName,
		Revenue:          input.Price,
		CommissionRate:   commissionRate,
		CommissionValue:  input.Price * commissionRate / 100,
		CreatedAt:        now,
	})
	if err != nil {
		return Result{}, fmt.Errorf("create finance record: %w", err)
	}

	// Terminal transition last: if anything above failed the entry is
	// still serving and the flow can be retried.
	updated, err := t.machine.Transition(ctx, input.BusinessID, input.EntryID, models.StatusServing, models.StatusCompleted)
	if err != nil {
		return Result{}, fmt.Errorf("complete entry: %w", err)
	}

	return Result{Entry: updated, Client: client, Appointment: appointment, FinanceRecord: record}, nil
}

// resolveClient matches the entry's phone against existing clients,
// trying the raw digits and the common display formats, and creates a
// new client when none match.
func (t *Transactor) resolveClient(ctx context.Context, entry models.QueueEntry) (models.Client, error) {
	client, found, err := t.clients.FindClientByPhone(ctx, entry.BusinessID, phoneCandidates(entry.ClientPhone))
	if err != nil {
		return models.Client{}, err
	}
	if found {
		return client, nil
	}
	return t.clients.CreateClient(ctx, store.CreateClientInput{
		BusinessID: entry.BusinessID,
		Name:       entry.ClientName,
		Phone:      entry.ClientPhone,
	})
}
