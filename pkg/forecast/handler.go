package forecast

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spendwise/spendwise/internal/rest"
	"github.com/spendwise/spendwise/internal/utils"
	"github.com/spendwise/spendwise/pkg/user"
)

type ForecastDTO struct {
	Horizon             string            `json:"horizon"`
	AsOf                time.Time         `json:"asOf"`
	TargetDate          time.Time         `json:"targetDate"`
	TotalForecast       string            `json:"totalForecast"`
	CategoryBreakdown   map[string]string `json:"categoryBreakdown"`
	UpcomingOccurrences []OccurrenceDTO   `json:"upcomingOccurrences"`
	SavingsOpportunity  string            `json:"savingsOpportunity"`
	LargestCategory     string            `json:"largestCategory,omitempty"`
	OccurrenceCount     int               `json:"occurrenceCount"`
}

type OccurrenceDTO struct {
	ObligationId string    `json:"obligationId"`
	Title        string    `json:"title"`
	DueDate      time.Time `json:"dueDate"`
	Amount       string    `json:"amount"`
	Category     string    `json:"category"`
}

type Handler struct {
	service Service
	clock   utils.Clock
}

func NewHandler(service Service, clock utils.Clock) *Handler {
	return &Handler{service: service, clock: clock}
}

// GetForecast godoc
// @Summary Forecast recurring spend
// @Description Projects active obligations of the current user over the horizon. Responds with CSV when the Accept header is text/csv
// @Tags Forecast
// @Produce json,text/csv
// @Param horizon query string false "next-month (default), next-3-months or next-6-months"
// @Param asOf query string false "Reference time (RFC3339 or YYYY-MM-DD), defaults to now"
// @Success 200 {object} ForecastDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid horizon or asOf"
// @Failure 403 {object} rest.ErrorResponse "User not found"
// @Router /api/forecast [get]
// @Security XUserId
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	log.Debug("Computing forecast")
	result, ok := h.compute(w, r)
	if !ok {
		return
	}
	if r.Header.Get("Accept") == "text/csv" {
		writeCSVResponse(w, result, false)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(ResultToDTO(result)); err != nil {
		log.Errorf("failed to encode forecast: %v", err)
	}
}

// ExportForecast godoc
// @Summary Export forecast occurrences as CSV
// @Tags Forecast
// @Produce text/csv
// @Param horizon query string false "next-month (default), next-3-months or next-6-months"
// @Param asOf query string false "Reference time (RFC3339 or YYYY-MM-DD), defaults to now"
// @Success 200 {string} string "CSV file"
// @Failure 400 {object} rest.ErrorResponse "Invalid horizon or asOf"
// @Failure 403 {object} rest.ErrorResponse "User not found"
// @Router /api/forecast/export [get]
// @Security XUserId
func (h *Handler) ExportForecast(w http.ResponseWriter, r *http.Request) {
	log.Debug("Exporting forecast")
	result, ok := h.compute(w, r)
	if !ok {
		return
	}
	writeCSVResponse(w, result, true)
}

func writeCSVResponse(w http.ResponseWriter, result Result, attachment bool) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, result); err != nil {
		log.Errorf("failed to render forecast csv: %v", err)
		rest.WriteError(w, http.StatusInternalServerError, "Internal server error", "")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	if attachment {
		filename := fmt.Sprintf("forecast-%s-%s.csv", result.Horizon, result.AsOf.Format("2006-01-02"))
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.Errorf("failed to write forecast csv: %v", err)
	}
}

func (h *Handler) compute(w http.ResponseWriter, r *http.Request) (Result, bool) {
	horizon, err := ParseHorizon(r.URL.Query().Get("horizon"))
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid horizon", err.Error())
		return Result{}, false
	}
	loc := user.CurrentLocation(r.Context())
	asOf, err := rest.TimeParam(r, "asOf", h.clock.Now().In(loc), loc)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid asOf parameter", err.Error())
		return Result{}, false
	}

	result, err := h.service.ComputeForecast(r.Context(), horizon, asOf)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrNoUser):
			rest.WriteError(w, http.StatusForbidden, "User not found", err.Error())
		case errors.Is(err, ErrInvalidHorizon):
			rest.WriteError(w, http.StatusBadRequest, "Invalid horizon", err.Error())
		case errors.Is(err, ErrInvalidAsOf):
			rest.WriteError(w, http.StatusBadRequest, "Invalid asOf parameter", err.Error())
		default:
			log.Errorf("forecast failed: %v", err)
			rest.WriteError(w, http.StatusInternalServerError, "Internal server error", "")
		}
		return Result{}, false
	}
	return result, true
}

func ResultToDTO(result Result) ForecastDTO {
	breakdown := make(map[string]string, len(result.CategoryBreakdown))
	for category, amount := range result.CategoryBreakdown {
		breakdown[string(category)] = amount.StringFixed(2)
	}
	upcoming := make([]OccurrenceDTO, 0, len(result.UpcomingOccurrences))
	for _, occurrence := range result.UpcomingOccurrences {
		upcoming = append(upcoming, OccurrenceDTO{
			ObligationId: occurrence.ObligationId.String(),
			Title:        occurrence.Title,
			DueDate:      occurrence.DueDate,
			Amount:       occurrence.Amount.StringFixed(2),
			Category:     string(occurrence.Category),
		})
	}
	return ForecastDTO{
		Horizon:             string(result.Horizon),
		AsOf:                result.AsOf,
		TargetDate:          result.TargetDate,
		TotalForecast:       result.TotalForecast.StringFixed(2),
		CategoryBreakdown:   breakdown,
		UpcomingOccurrences: upcoming,
		SavingsOpportunity:  result.SavingsOpportunity.StringFixed(2),
		LargestCategory:     string(result.LargestCategory),
		OccurrenceCount:     result.OccurrenceCount,
	}
}
