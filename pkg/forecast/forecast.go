package forecast

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spendwise/spendwise/pkg/recurring"
)

var (
	ErrInvalidHorizon = errors.New("invalid forecast horizon")
	ErrInvalidAsOf    = errors.New("forecast reference time is required")
)

// Horizon names a forecast window starting at the reference time.
type Horizon string

const (
	HorizonNextMonth       Horizon = "next-month"
	HorizonNextThreeMonths Horizon = "next-3-months"
	HorizonNextSixMonths   Horizon = "next-6-months"
)

const (
	// UpcomingWindowDays is the number of calendar days after asOf listed as upcoming occurrences.
	UpcomingWindowDays = 30
	// DefaultMaxOccurrencesPerObligation bounds the projection of a single obligation.
	DefaultMaxOccurrencesPerObligation = 10000
)

var savingsRate = decimal.NewFromFloat(0.10)

func (h Horizon) months() (int, error) {
	switch h {
	case HorizonNextMonth:
		return 1, nil
	case HorizonNextThreeMonths:
		return 3, nil
	case HorizonNextSixMonths:
		return 6, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidHorizon, string(h))
	}
}

// ParseHorizon maps an empty value to next-month.
func ParseHorizon(s string) (Horizon, error) {
	if s == "" {
		return HorizonNextMonth, nil
	}
	h := Horizon(s)
	if _, err := h.months(); err != nil {
		return "", err
	}
	return h, nil
}

// TargetDate is asOf moved forward by the horizon's months, clamped to the end of the target month.
func TargetDate(asOf time.Time, horizon Horizon) (time.Time, error) {
	if asOf.IsZero() {
		return time.Time{}, ErrInvalidAsOf
	}
	months, err := horizon.months()
	if err != nil {
		return time.Time{}, err
	}
	return recurring.AddMonthsClamped(asOf, months), nil
}

// UpcomingWindowEnd is the inclusive end of the upcoming window, counted in calendar days
// of asOf's location so a DST change does not shift it.
func UpcomingWindowEnd(asOf time.Time) time.Time {
	return asOf.AddDate(0, 0, UpcomingWindowDays)
}

// Occurrence is a single projected payment.
type Occurrence struct {
	ObligationId uuid.UUID
	Title        string
	DueDate      time.Time
	Amount       decimal.Decimal
	Category     recurring.Category
}

type Result struct {
	Horizon             Horizon
	AsOf                time.Time
	TargetDate          time.Time
	TotalForecast       decimal.Decimal
	CategoryBreakdown   map[recurring.Category]decimal.Decimal
	UpcomingOccurrences []Occurrence
	SavingsOpportunity  decimal.Decimal
	// LargestCategory is empty when nothing is projected.
	LargestCategory recurring.Category
	OccurrenceCount int
	// Occurrences holds every projected occurrence ordered by due date.
	Occurrences []Occurrence
}
