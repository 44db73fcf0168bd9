package forecast

import (
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spendwise/spendwise/pkg/recurring"
)

// Projector simulates future occurrences of obligations without touching their schedule.
type Projector struct {
	maxOccurrencesPerObligation int
}

func NewProjector(maxOccurrencesPerObligation int) *Projector {
	if maxOccurrencesPerObligation <= 0 {
		maxOccurrencesPerObligation = DefaultMaxOccurrencesPerObligation
	}
	return &Projector{maxOccurrencesPerObligation: maxOccurrencesPerObligation}
}

// Project emits every occurrence with a due date in [nextDueDate, target] for each active
// obligation, where target is asOf moved forward by the horizon. Occurrences after an
// obligation's end date are not emitted. The result is ordered by due date, then obligation id.
func (p *Projector) Project(obligations []recurring.Obligation, horizon Horizon, asOf time.Time) ([]Occurrence, time.Time, error) {
	target, err := TargetDate(asOf, horizon)
	if err != nil {
		return nil, time.Time{}, err
	}

	occurrences := make([]Occurrence, 0)
	for _, obligation := range obligations {
		if !obligation.IsActive {
			continue
		}
		projected, err := p.projectOne(obligation, target)
		if err != nil {
			return nil, time.Time{}, err
		}
		occurrences = append(occurrences, projected...)
	}
	sortOccurrences(occurrences)
	return occurrences, target, nil
}

func (p *Projector) projectOne(obligation recurring.Obligation, target time.Time) ([]Occurrence, error) {
	var occurrences []Occurrence
	candidate := obligation.NextDueDate
	for !candidate.After(target) && !obligation.Ended(candidate) {
		if len(occurrences) == p.maxOccurrencesPerObligation {
			log.Warnf("projection of obligation %s stopped after %d occurrences before %s",
				obligation.Id, p.maxOccurrencesPerObligation, target)
			break
		}
		occurrences = append(occurrences, Occurrence{
			ObligationId: obligation.Id,
			Title:        obligation.Title,
			DueDate:      candidate,
			Amount:       obligation.Amount,
			Category:     obligation.Category,
		})

		next, err := recurring.NextDueDate(candidate, obligation.Frequency)
		if err != nil {
			return nil, err
		}
		if !next.After(candidate) {
			log.Errorf("due date of obligation %s did not advance past %s, stopping projection", obligation.Id, candidate)
			break
		}
		candidate = next
	}
	return occurrences, nil
}

func sortOccurrences(occurrences []Occurrence) {
	sort.SliceStable(occurrences, func(i, j int) bool {
		a, b := occurrences[i], occurrences[j]
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		return a.ObligationId.String() < b.ObligationId.String()
	})
}
