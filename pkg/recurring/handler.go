package recurring

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/spendwise/spendwise/internal/rest"
	"github.com/spendwise/spendwise/internal/utils"
	"github.com/spendwise/spendwise/pkg/user"
)

type ObligationDTO struct {
	Id            string     `json:"id"`
	Title         string     `json:"title"`
	Amount        string     `json:"amount"`
	Category      string     `json:"category"`
	Description   string     `json:"description,omitempty"`
	Frequency     string     `json:"frequency"`
	StartDate     time.Time  `json:"startDate"`
	EndDate       *time.Time `json:"endDate,omitempty"`
	NextDueDate   time.Time  `json:"nextDueDate"`
	PaymentMethod string     `json:"paymentMethod"`
	IsActive      bool       `json:"isActive"`
	Tags          []string   `json:"tags"`
	Version       int        `json:"version"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	Overdue       bool       `json:"overdue"`
	DaysUntilDue  int        `json:"daysUntilDue"`
}

type ObligationRequestDTO struct {
	Title         string           `json:"title"`
	Amount        *decimal.Decimal `json:"amount"`
	Category      string           `json:"category"`
	Description   string           `json:"description"`
	Frequency     string           `json:"frequency"`
	// StartDate and EndDate take an RFC3339 timestamp or a YYYY-MM-DD date.
	StartDate     *string          `json:"startDate"`
	EndDate       *string          `json:"endDate"`
	PaymentMethod string           `json:"paymentMethod"`
	IsActive      *bool            `json:"isActive"`
	Tags          []string         `json:"tags"`
	Version       int              `json:"version,omitempty"`
}

type ActiveDTO struct {
	IsActive *bool `json:"isActive"`
}

type Handler struct {
	service Service
	clock   utils.Clock
}

func NewHandler(service Service, clock utils.Clock) *Handler {
	return &Handler{service: service, clock: clock}
}

// ListObligations godoc
// @Summary List recurring obligations
// @Description Active obligations of the current user ordered by next due date
// @Tags Recurring
// @Produce json
// @Param includeInactive query bool false "Include deactivated obligations"
// @Param asOf query string false "Reference time for overdue status (RFC3339 or YYYY-MM-DD)"
// @Success 200 {array} ObligationDTO
// @Failure 400 {object} rest.ErrorResponse
// @Failure 403 {object} rest.ErrorResponse "User not found"
// @Router /api/recurring [get]
// @Security XUserId
func (h *Handler) ListObligations(w http.ResponseWriter, r *http.Request) {
	log.Debug("Listing recurring obligations")
	includeInactive, err := rest.BoolParam(r, "includeInactive", false)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid includeInactive parameter", err.Error())
		return
	}
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}

	obligations, err := h.service.ListObligations(r.Context(), includeInactive)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	dtos := make([]ObligationDTO, 0, len(obligations))
	for _, obligation := range obligations {
		dtos = append(dtos, ObligationToDTO(obligation, asOf))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateObligation godoc
// @Summary Create a recurring obligation
// @Description The first due date is one period after the start date
// @Tags Recurring
// @Accept json
// @Produce json
// @Param obligation body ObligationRequestDTO true "Obligation"
// @Success 201 {object} ObligationDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid obligation"
// @Failure 403 {object} rest.ErrorResponse "User not found"
// @Router /api/recurring [post]
// @Security XUserId
func (h *Handler) CreateObligation(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating recurring obligation")
	input, ok := decodeInput(w, r)
	if !ok {
		return
	}

	created, err := h.service.CreateObligation(r.Context(), input)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ObligationToDTO(created, h.now(r)))
}

// GetObligation godoc
// @Summary Get a recurring obligation
// @Tags Recurring
// @Produce json
// @Param id path string true "Obligation ID"
// @Param asOf query string false "Reference time for overdue status"
// @Success 200 {object} ObligationDTO
// @Failure 403 {object} rest.ErrorResponse "Not the owner"
// @Failure 404 {object} rest.ErrorResponse "Obligation not found"
// @Router /api/recurring/{id} [get]
// @Security XUserId
func (h *Handler) GetObligation(w http.ResponseWriter, r *http.Request) {
	id, ok := idFromPath(w, r)
	if !ok {
		return
	}
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}

	obligation, err := h.service.GetObligation(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ObligationToDTO(obligation, asOf))
}

// UpdateObligation godoc
// @Summary Update a recurring obligation
// @Description Changing frequency or start date recomputes the next due date from the start date
// @Tags Recurring
// @Accept json
// @Produce json
// @Param id path string true "Obligation ID"
// @Param obligation body ObligationRequestDTO true "Obligation"
// @Success 200 {object} ObligationDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid obligation"
// @Failure 403 {object} rest.ErrorResponse "Not the owner"
// @Failure 404 {object} rest.ErrorResponse "Obligation not found"
// @Failure 409 {object} rest.ErrorResponse "Concurrent modification"
// @Router /api/recurring/{id} [put]
// @Security XUserId
func (h *Handler) UpdateObligation(w http.ResponseWriter, r *http.Request) {
	id, ok := idFromPath(w, r)
	if !ok {
		return
	}
	log.Debugf("Updating recurring obligation %s", id)
	input, ok := decodeInput(w, r)
	if !ok {
		return
	}

	updated, err := h.service.UpdateObligation(r.Context(), id, input)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ObligationToDTO(updated, h.now(r)))
}

// SetActive godoc
// @Summary Activate or deactivate a recurring obligation
// @Tags Recurring
// @Accept json
// @Produce json
// @Param id path string true "Obligation ID"
// @Param active body ActiveDTO true "Active flag"
// @Success 200 {object} ObligationDTO
// @Failure 400 {object} rest.ErrorResponse
// @Failure 404 {object} rest.ErrorResponse "Obligation not found"
// @Failure 409 {object} rest.ErrorResponse "Concurrent modification"
// @Router /api/recurring/{id}/active [patch]
// @Security XUserId
func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, ok := idFromPath(w, r)
	if !ok {
		return
	}
	var body ActiveDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", err.Error())
		return
	}
	if body.IsActive == nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", "isActive is required")
		return
	}

	updated, err := h.service.SetActive(r.Context(), id, *body.IsActive)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ObligationToDTO(updated, h.now(r)))
}

// DeleteObligation godoc
// @Summary Delete a recurring obligation
// @Tags Recurring
// @Param id path string true "Obligation ID"
// @Success 204
// @Failure 403 {object} rest.ErrorResponse "Not the owner"
// @Failure 404 {object} rest.ErrorResponse "Obligation not found"
// @Router /api/recurring/{id} [delete]
// @Security XUserId
func (h *Handler) DeleteObligation(w http.ResponseWriter, r *http.Request) {
	id, ok := idFromPath(w, r)
	if !ok {
		return
	}
	log.Debugf("Deleting recurring obligation %s", id)
	if err := h.service.DeleteObligation(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdvanceObligation godoc
// @Summary Mark the current due date as paid
// @Description Moves the next due date one period forward
// @Tags Recurring
// @Produce json
// @Param id path string true "Obligation ID"
// @Success 200 {object} ObligationDTO
// @Failure 403 {object} rest.ErrorResponse "Not the owner"
// @Failure 404 {object} rest.ErrorResponse "Obligation not found"
// @Failure 409 {object} rest.ErrorResponse "Concurrent modification"
// @Router /api/recurring/{id}/advance [post]
// @Security XUserId
func (h *Handler) AdvanceObligation(w http.ResponseWriter, r *http.Request) {
	id, ok := idFromPath(w, r)
	if !ok {
		return
	}
	log.Debugf("Advancing recurring obligation %s", id)
	advanced, err := h.service.AdvanceObligation(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ObligationToDTO(advanced, h.now(r)))
}

func (h *Handler) now(r *http.Request) time.Time {
	return h.clock.Now().In(user.CurrentLocation(r.Context()))
}

func (h *Handler) asOf(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	asOf, err := rest.TimeParam(r, "asOf", h.now(r), user.CurrentLocation(r.Context()))
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid asOf parameter", err.Error())
		return time.Time{}, false
	}
	return asOf, true
}

func idFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := mux.Vars(r)["id"]
	id, err := uuid.Parse(raw)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid obligation id", err.Error())
		return uuid.Nil, false
	}
	return id, true
}

func decodeInput(w http.ResponseWriter, r *http.Request) (ObligationInput, bool) {
	var dto ObligationRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", err.Error())
		return ObligationInput{}, false
	}
	if dto.Amount == nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid obligation", "amount is required")
		return ObligationInput{}, false
	}
	frequency, err := ParseFrequency(dto.Frequency)
	if err != nil {
		writeServiceError(w, err)
		return ObligationInput{}, false
	}
	loc := user.CurrentLocation(r.Context())
	startDate, err := bodyDate("startDate", dto.StartDate, loc)
	if err != nil {
		writeServiceError(w, err)
		return ObligationInput{}, false
	}
	endDate, err := bodyDate("endDate", dto.EndDate, loc)
	if err != nil {
		writeServiceError(w, err)
		return ObligationInput{}, false
	}
	return ObligationInput{
		Title:           dto.Title,
		Amount:          *dto.Amount,
		Category:        Category(dto.Category),
		Description:     dto.Description,
		Frequency:       frequency,
		StartDate:       startDate,
		EndDate:         endDate,
		PaymentMethod:   PaymentMethod(dto.PaymentMethod),
		IsActive:        dto.IsActive,
		Tags:            dto.Tags,
		ExpectedVersion: dto.Version,
	}, true
}

// bodyDate reads an optional date field; a plain YYYY-MM-DD means midnight in the caller's timezone.
func bodyDate(field string, raw *string, loc *time.Location) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	t, err := rest.ParseTime(strings.TrimSpace(*raw), loc)
	if err != nil {
		return nil, &ValidationError{Field: field, Reason: err.Error()}
	}
	return &t, nil
}

func ObligationToDTO(o Obligation, asOf time.Time) ObligationDTO {
	tags := o.Tags
	if tags == nil {
		tags = []string{}
	}
	return ObligationDTO{
		Id:            o.Id.String(),
		Title:         o.Title,
		Amount:        o.Amount.StringFixed(2),
		Category:      string(o.Category),
		Description:   o.Description,
		Frequency:     string(o.Frequency),
		StartDate:     o.StartDate,
		EndDate:       o.EndDate,
		NextDueDate:   o.NextDueDate,
		PaymentMethod: string(o.PaymentMethod),
		IsActive:      o.IsActive,
		Tags:          tags,
		Version:       o.Version,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
		Overdue:       o.IsOverdue(asOf),
		DaysUntilDue:  o.DaysUntilDue(asOf),
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	var validationErr *ValidationError
	switch {
	case errors.Is(err, user.ErrNoUser):
		rest.WriteError(w, http.StatusForbidden, "User not found", err.Error())
	case errors.As(err, &validationErr):
		rest.WriteError(w, http.StatusBadRequest, "Invalid obligation", validationErr.Error())
	case errors.Is(err, ErrObligationNotFound):
		rest.WriteError(w, http.StatusNotFound, "Obligation not found", err.Error())
	case errors.Is(err, ErrNotOwner):
		rest.WriteError(w, http.StatusForbidden, "Access denied", err.Error())
	case errors.Is(err, ErrConcurrencyConflict):
		rest.WriteError(w, http.StatusConflict, "Concurrent modification", err.Error())
	default:
		log.Errorf("recurring obligation request failed: %v", err)
		rest.WriteError(w, http.StatusInternalServerError, "Internal server error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("failed to encode response: %v", err)
	}
}
