package forecast

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spendwise/spendwise/pkg/recurring"
	"github.com/spendwise/spendwise/pkg/user"
)

// ObligationReader provides a snapshot of a user's active obligations.
type ObligationReader interface {
	FindActiveObligations(ctx context.Context, userId int) ([]recurring.Obligation, error)
}

type Service interface {
	ComputeForecast(ctx context.Context, horizon Horizon, asOf time.Time) (Result, error)
}

type ServiceImpl struct {
	reader    ObligationReader
	projector *Projector
}

func NewService(reader ObligationReader, projector *Projector) *ServiceImpl {
	return &ServiceImpl{reader: reader, projector: projector}
}

func (s *ServiceImpl) ComputeForecast(ctx context.Context, horizon Horizon, asOf time.Time) (Result, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if _, err := TargetDate(asOf, horizon); err != nil {
		return Result{}, err
	}

	obligations, err := s.reader.FindActiveObligations(ctx, userId)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load active obligations: %w", err)
	}

	// Stored instants come back in UTC; expand them on the owner's calendar.
	loc := user.CurrentLocation(ctx)
	for i := range obligations {
		obligations[i] = obligations[i].In(loc)
	}

	result, err := Compute(s.projector, obligations, horizon, asOf)
	if err != nil {
		return Result{}, err
	}
	log.Debugf("forecast %s for user %d: %d occurrences, total %s",
		horizon, userId, result.OccurrenceCount, result.TotalForecast.StringFixed(2))
	return result, nil
}
