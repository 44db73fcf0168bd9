package forecast

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/spendwise/spendwise/pkg/recurring"
)

// Aggregate summarizes projected occurrences. Occurrences are expected in due date order.
func Aggregate(occurrences []Occurrence, horizon Horizon, asOf, target time.Time) Result {
	total := decimal.Zero
	breakdown := make(map[recurring.Category]decimal.Decimal)
	upcoming := make([]Occurrence, 0)
	windowEnd := UpcomingWindowEnd(asOf)

	for _, occurrence := range occurrences {
		total = total.Add(occurrence.Amount)
		breakdown[occurrence.Category] = breakdown[occurrence.Category].Add(occurrence.Amount)
		if !occurrence.DueDate.Before(asOf) && !occurrence.DueDate.After(windowEnd) {
			upcoming = append(upcoming, occurrence)
		}
	}
	sortOccurrences(upcoming)

	all := make([]Occurrence, len(occurrences))
	copy(all, occurrences)

	return Result{
		Horizon:             horizon,
		AsOf:                asOf,
		TargetDate:          target,
		TotalForecast:       total,
		CategoryBreakdown:   breakdown,
		UpcomingOccurrences: upcoming,
		SavingsOpportunity:  total.Mul(savingsRate).Round(2),
		LargestCategory:     largestCategory(breakdown),
		OccurrenceCount:     len(occurrences),
		Occurrences:         all,
	}
}

func largestCategory(breakdown map[recurring.Category]decimal.Decimal) recurring.Category {
	var largest recurring.Category
	var largestTotal decimal.Decimal
	for category, amount := range breakdown {
		if largest == "" || amount.GreaterThan(largestTotal) ||
			(amount.Equal(largestTotal) && category < largest) {
			largest = category
			largestTotal = amount
		}
	}
	return largest
}

// Compute projects the obligations over the horizon and aggregates the occurrences.
func Compute(projector *Projector, obligations []recurring.Obligation, horizon Horizon, asOf time.Time) (Result, error) {
	occurrences, target, err := projector.Project(obligations, horizon, asOf)
	if err != nil {
		return Result{}, err
	}
	return Aggregate(occurrences, horizon, asOf, target), nil
}
