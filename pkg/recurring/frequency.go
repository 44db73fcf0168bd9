package recurring

import "strings"

// Frequency is the calendar cadence of an obligation.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

var frequencies = []Frequency{FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly}

func (f Frequency) Valid() bool {
	for _, known := range frequencies {
		if f == known {
			return true
		}
	}
	return false
}

// ParseFrequency accepts any letter case and surrounding whitespace.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", &ValidationError{Field: "frequency", Reason: "must be one of daily, weekly, monthly, yearly"}
	}
	return f, nil
}
