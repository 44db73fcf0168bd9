package forecast

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
)

type occurrenceRow struct {
	DueDate      string `csv:"due_date"`
	Title        string `csv:"title"`
	Category     string `csv:"category"`
	Amount       string `csv:"amount"`
	ObligationId string `csv:"obligation_id"`
	Upcoming     bool   `csv:"upcoming"`
}

// WriteCSV renders every projected occurrence of the result as a CSV table with a header row.
func WriteCSV(w io.Writer, result Result) error {
	upcoming := make(map[occurrenceKey]struct{}, len(result.UpcomingOccurrences))
	for _, occurrence := range result.UpcomingOccurrences {
		upcoming[keyOf(occurrence)] = struct{}{}
	}

	rows := make([]*occurrenceRow, 0, len(result.Occurrences))
	for _, occurrence := range result.Occurrences {
		_, isUpcoming := upcoming[keyOf(occurrence)]
		rows = append(rows, &occurrenceRow{
			DueDate:      occurrence.DueDate.Format("2006-01-02"),
			Title:        occurrence.Title,
			Category:     string(occurrence.Category),
			Amount:       occurrence.Amount.StringFixed(2),
			ObligationId: occurrence.ObligationId.String(),
			Upcoming:     isUpcoming,
		})
	}

	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("failed to write forecast csv: %w", err)
	}
	return nil
}

type occurrenceKey struct {
	id      string
	dueDate int64
}

func keyOf(o Occurrence) occurrenceKey {
	return occurrenceKey{id: o.ObligationId.String(), dueDate: o.DueDate.UnixNano()}
}
