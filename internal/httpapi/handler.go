package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"agenx/queue-service/internal/completion"
	"agenx/queue-service/internal/models"
	"agenx/queue-service/internal/queue"
	"agenx/queue-service/internal/realtime"
	"agenx/queue-service/internal/store"

	"github.com/google/uuid"
)

// Completer runs the finish flow. Satisfied by completion.Transactor.
type Completer interface {
	Complete(ctx context.Context, input completion.Input) (completion.Result, error)
}

type Handler struct {
	entries   store.EntryStore
	machine   *queue.StateMachine
	positions *queue.PositionCalculator
	completer Completer
	publisher queue.Publisher
}

func NewHandler(entries store.EntryStore, machine *queue.StateMachine, positions *queue.PositionCalculator, completer Completer, publisher queue.Publisher) *Handler {
	return &Handler{
		entries:   entries,
		machine:   machine,
		positions: positions,
		completer: completer,
		publisher: publisher,
	}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/queue/entries", h.handleEntries)
	mux.HandleFunc("/api/queue/entries/", h.handleEntryRoutes)
	mux.HandleFunc("/api/events", h.handleEvents)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type joinRequest struct {
	BusinessID     string `json:"business_id"`
	ClientName     string `json:"client_name"`
	ClientPhone    string `json:"client_phone"`
	ServiceID      string `json:"service_id"`
	ProfessionalID string `json:"professional_id"`
	Notes          string `json:"notes"`
}

type errorResponse struct {
	Error responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) handleEntries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleJoin(w, r)
	case http.MethodGet:
		h.handleList(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.BusinessID = strings.TrimSpace(req.BusinessID)
	req.ClientName = strings.TrimSpace(req.ClientName)
	req.ClientPhone = strings.TrimSpace(req.ClientPhone)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.ProfessionalID = strings.TrimSpace(req.ProfessionalID)
	req.Notes = strings.TrimSpace(req.Notes)

	if req.BusinessID == "" || req.ClientName == "" || req.ClientPhone == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "business_id, client_name, and client_phone are required")
		return
	}
	if !isValidUUID(req.BusinessID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "business_id must be a UUID")
		return
	}
	if req.ServiceID != "" && !isValidUUID(req.ServiceID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "service_id must be a UUID when provided")
		return
	}
	if req.ProfessionalID != "" && !isValidUUID(req.ProfessionalID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "professional_id must be a UUID when provided")
		return
	}
	if !isValidPhone(req.ClientPhone) {
		writeError(w, http.StatusBadRequest, "invalid_request", "client_phone must contain 8-16 digits")
		return
	}

	entry, err := h.entries.CreateEntry(r.Context(), store.CreateEntryInput{
		BusinessID:     req.BusinessID,
		ClientName:     req.ClientName,
		ClientPhone:    req.ClientPhone,
		ServiceID:      req.ServiceID,
		ProfessionalID: req.ProfessionalID,
		Notes:          req.Notes,
		JoinedAt:       time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	if h.publisher != nil {
		h.publisher.Publish(realtime.Event{
			Type:       store.EventEntryCreated,
			BusinessID: entry.BusinessID,
			EntryID:    entry.EntryID,
			Status:     entry.Status,
			CreatedAt:  time.Now().UTC(),
		})
	}

	writeJSON(w, http.StatusCreated, entry)
}

type listResponse struct {
	Entries []models.QueueEntry `json:"entries"`
	Metrics models.QueueMetrics `json:"metrics"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	businessID := strings.TrimSpace(r.URL.Query().Get("business_id"))
	if businessID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "business_id is required")
		return
	}
	if !isValidUUID(businessID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "business_id must be a UUID")
		return
	}

	var entries []models.QueueEntry
	var err error
	if r.URL.Query().Get("active") == "true" {
		entries, err = h.entries.ListActive(r.Context(), businessID)
	} else {
		entries, err = h.entries.ListToday(r.Context(), businessID)
	}
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	if entries == nil {
		entries = []models.QueueEntry{}
	}

	metrics := models.QueueMetrics{}
	for _, entry := range entries {
		switch entry.Status {
		case models.StatusWaiting:
			metrics.Waiting++
		case models.StatusServing:
			metrics.Serving++
		case models.StatusCompleted:
			metrics.Completed++
		}
	}

	writeJSON(w, http.StatusOK, listResponse{Entries: entries, Metrics: metrics})
}

type entryView struct {
	Entry                models.QueueEntry `json:"entry"`
	Position             int               `json:"position"`
	EstimatedWaitSeconds int               `json:"estimated_wait_seconds"`
}

func (h *Handler) handleEntryRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/queue/entries/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.handleEntryStatus(w, r, parts[0])
	case len(parts) == 3 && parts[1] == "actions" && r.Method == http.MethodPost:
		h.handleEntryAction(w, r, parts[0], parts[2])
	case len(parts) == 1 || (len(parts) == 3 && parts[1] == "actions"):
		w.WriteHeader(http.StatusMethodNotAllowed)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleEntryStatus(w http.ResponseWriter, r *http.Request, entryID string) {
	if !isValidUUID(entryID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "entry_id must be a UUID")
		return
	}
	businessID := strings.TrimSpace(r.URL.Query().Get("business_id"))
	if businessID == "" || !isValidUUID(businessID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "business_id must be a UUID")
		return
	}

	entry, err := h.entries.GetEntry(r.Context(), entryID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	if entry.BusinessID != businessID {
		status, code, msg := mapError(store.ErrEntryNotFound)
		writeError(w, status, code, msg)
		return
	}

	position, err := h.positions.Position(r.Context(), entry)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, entryView{
		Entry:                entry,
		Position:             position,
		EstimatedWaitSeconds: int(h.positions.EstimatedWait(position).Seconds()),
	})
}

type actionRequest struct {
	BusinessID     string `json:"business_id"`
	ExpectedStatus string `json:"expected_status"`
}

type finishRequest struct {
	BusinessID     string  `json:"business_id"`
	ServiceName    string  `json:"service_name"`
	Price          float64 `json:"price"`
	ProfessionalID string  `json:"professional_id"`
}

// actionTargets maps each staff action to the status it moves the entry
// into. The edge itself is validated by the state machine.
var actionTargets = map[string]string{
	"call":    models.StatusCalling,
	"start":   models.StatusServing,
	"cancel":  models.StatusCancelled,
	"no-show": models.StatusNoShow,
}

func (h *Handler) handleEntryAction(w http.ResponseWriter, r *http.Request, entryID, action string) {
	if !isValidUUID(entryID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "entry_id must be a UUID")
		return
	}

	if action == "finish" {
		h.handleFinish(w, r, entryID)
		return
	}

	target, ok := actionTargets[action]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var req actionRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.BusinessID = strings.TrimSpace(req.BusinessID)
	req.ExpectedStatus = strings.TrimSpace(req.ExpectedStatus)

	if req.BusinessID == "" || req.ExpectedStatus == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "business_id and expected_status are required")
		return
	}
	if !isValidUUID(req.BusinessID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "business_id must be a UUID")
		return
	}

	entry, err := h.machine.Transition(r.Context(), req.BusinessID, entryID, req.ExpectedStatus, target)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleFinish(w http.ResponseWriter, r *http.Request, entryID string) {
	var req finishRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.BusinessID = strings.TrimSpace(req.BusinessID)
	req.ServiceName = strings.TrimSpace(req.ServiceName)
	req.ProfessionalID = strings.TrimSpace(req.ProfessionalID)

	if req.BusinessID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "business_id is required")
		return
	}
	if !isValidUUID(req.BusinessID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "business_id must be a UUID")
		return
	}
	if req.ProfessionalID != "" && !isValidUUID(req.ProfessionalID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "professional_id must be a UUID when provided")
		return
	}
	if req.ServiceName == "" {
		req.ServiceName = "Atendimento"
	}

	result, err := h.completer.Complete(r.Context(), completion.Input{
		BusinessID:     req.BusinessID,
		EntryID:        entryID,
		ServiceName:    req.ServiceName,
		Price:          req.Price,
		ProfessionalID: req.ProfessionalID,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	businessID := strings.TrimSpace(r.URL.Query().Get("business_id"))
	if businessID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "business_id is required")
		return
	}
	if !isValidUUID(businessID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "business_id must be a UUID")
		return
	}

	afterRaw := strings.TrimSpace(r.URL.Query().Get("after"))
	var after time.Time
	if afterRaw != "" {
		parsed, err := time.Parse(time.RFC3339, afterRaw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "after must be RFC3339 timestamp")
			return
		}
		after = parsed
	}

	limit := 100
	if limitRaw := strings.TrimSpace(r.URL.Query().Get("limit")); limitRaw != "" {
		parsed, err := strconv.Atoi(limitRaw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	events, err := h.entries.ListOutboxEvents(r.Context(), businessID, after, limit)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	if events == nil {
		events = []store.OutboxEvent{}
	}

	writeJSON(w, http.StatusOK, events)
}

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func isValidPhone(value string) bool {
	count := 0
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9':
			count++
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '+':
		default:
			return false
		}
	}
	return count >= 8 && count <= 16
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrEntryNotFound):
		return http.StatusNotFound, "entry_not_found", "queue entry not found"
	case errors.Is(err, store.ErrProfessionalNotFound):
		return http.StatusNotFound, "professional_not_found", "professional not found"
	case errors.Is(err, store.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition", "entry status does not allow this action"
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, "conflict", "entry changed since it was loaded; refresh and retry"
	case errors.Is(err, completion.ErrNotServing):
		return http.StatusConflict, "not_serving", "entry is not being served"
	case errors.Is(err, completion.ErrInvalidPrice):
		return http.StatusBadRequest, "invalid_request", "price must be a non-negative amount"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
