package recurring

import (
	"fmt"
	"time"
)

// NextDueDate returns the occurrence that follows date for the given frequency.
//
// Month and year steps clamp to the last valid day of the target month, so Jan 31 is
// followed by Feb 28 (or Feb 29) and Feb 29 by Feb 28 of a common year. The result is
// always strictly after date. Time of day and location are preserved.
func NextDueDate(date time.Time, frequency Frequency) (time.Time, error) {
	switch frequency {
	case FrequencyDaily:
		return date.AddDate(0, 0, 1), nil
	case FrequencyWeekly:
		return date.AddDate(0, 0, 7), nil
	case FrequencyMonthly:
		return AddMonthsClamped(date, 1), nil
	case FrequencyYearly:
		return AddMonthsClamped(date, 12), nil
	default:
		return time.Time{}, &ValidationError{
			Field:  "frequency",
			Reason: fmt.Sprintf("unsupported frequency %q", frequency),
		}
	}
}

// AddMonthsClamped adds n calendar months to t. When the day of month of t does not
// exist in the target month the result is the last day of that month.
func AddMonthsClamped(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	monthIndex := int(month) - 1 + n
	yearShift := monthIndex / 12
	monthIndex = monthIndex % 12
	if monthIndex < 0 {
		monthIndex += 12
		yearShift--
	}
	targetYear := year + yearShift
	targetMonth := time.Month(monthIndex + 1)

	if last := daysIn(targetYear, targetMonth); day > last {
		day = last
	}
	return time.Date(targetYear, targetMonth, day, hour, minute, sec, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	// day 0 of the following month is the last day of month
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
