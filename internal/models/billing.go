package models

import "time"

// Client is identified by phone number within a business and created
// lazily the first time a completion cannot match an existing record.
type Client struct {
	ClientID   string    `json:"client_id"`
	BusinessID string    `json:"business_id"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	CreatedAt  time.Time `json:"created_at"`
}

// Appointment is the completed-service record written once per finished
// queue entry.
type Appointment struct {
	AppointmentID   string    `json:"appointment_id"`
	BusinessID      string    `json:"business_id"`
	ClientID        string    `json:"client_id"`
	ProfessionalID  *string   `json:"professional_id,omitempty"`
	Service         string    `json:"service"`
	Price           float64   `json:"price"`
	Status          string    `json:"status"`
	AppointmentTime time.Time `json:"appointment_time"`
	DurationMinutes int       `json:"duration_minutes"`
}

const AppointmentStatusCompleted = "completed"

// FinanceRecord captures revenue and commission for a completed entry.
// The finance subsystem treats these as append-only.
type FinanceRecord struct {
	RecordID         string    `json:"record_id"`
	BusinessID       string    `json:"business_id"`
	AppointmentID    string    `json:"appointment_id"`
	ProfessionalID   *string   `json:"professional_id,omitempty"`
	ProfessionalName string    `json:"professional_name"`
	ClientName       string    `json:"client_name"`
	ServiceName      string    `json:"service_name"`
	Type             string    `json:"type"`
	Revenue          float64   `json:"revenue"`
	CommissionRate   float64   `json:"commission_rate"`
	CommissionValue  float64   `json:"commission_value"`
	CreatedAt        time.Time `json:"created_at"`
}

const FinanceTypeRevenue = "revenue"

// Professional is read-only reference data supplying the commission rate.
type Professional struct {
	ProfessionalID string  `json:"professional_id"`
	BusinessID     string  `json:"business_id"`
	Name           string  `json:"name"`
	CommissionRate float64 `json:"commission_rate"`
	Active         bool    `json:"active"`
}
