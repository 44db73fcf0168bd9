package recurring

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/spendwise/spendwise/internal/event_bus"
	"github.com/spendwise/spendwise/internal/utils"
	"github.com/spendwise/spendwise/pkg/user"
)

// ObligationInput carries the user-editable fields of an obligation.
type ObligationInput struct {
	Title       string
	Amount      decimal.Decimal
	Category    Category
	Description string
	Frequency   Frequency
	// StartDate nil means now on create and keep the current value on update.
	StartDate *time.Time
	EndDate   *time.Time
	// PaymentMethod empty means Cash on create and keep the current value on update.
	PaymentMethod PaymentMethod
	IsActive      *bool
	Tags          []string
	// ExpectedVersion, when positive, must equal the stored version for an update to apply.
	ExpectedVersion int
}

type Service interface {
	CreateObligation(ctx context.Context, input ObligationInput) (Obligation, error)
	GetObligation(ctx context.Context, id uuid.UUID) (Obligation, error)
	ListObligations(ctx context.Context, includeInactive bool) ([]Obligation, error)
	UpdateObligation(ctx context.Context, id uuid.UUID, input ObligationInput) (Obligation, error)
	SetActive(ctx context.Context, id uuid.UUID, isActive bool) (Obligation, error)
	DeleteObligation(ctx context.Context, id uuid.UUID) error
	// AdvanceObligation moves the next due date one period forward. Concurrent advances
	// from the same read never both apply; the loser gets ErrConcurrencyConflict.
	AdvanceObligation(ctx context.Context, id uuid.UUID) (Obligation, error)
}

type ServiceImpl struct {
	repo     Repository
	clock    utils.Clock
	eventBus *event_bus.EventBus
}

func NewService(repo Repository, clock utils.Clock, eventBus *event_bus.EventBus) *ServiceImpl {
	return &ServiceImpl{repo: repo, clock: clock, eventBus: eventBus}
}

func (s *ServiceImpl) CreateObligation(ctx context.Context, input ObligationInput) (Obligation, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Obligation{}, fmt.Errorf("failed to get current user: %w", err)
	}

	loc := user.CurrentLocation(ctx)
	startDate := s.clock.Now().In(loc)
	if input.StartDate != nil {
		startDate = input.StartDate.In(loc)
	}
	paymentMethod := input.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = PaymentCash
	}
	isActive := true
	if input.IsActive != nil {
		isActive = *input.IsActive
	}

	obligation := Obligation{
		OwnerId:       userId,
		Title:         strings.TrimSpace(input.Title),
		Amount:        input.Amount.Round(2),
		Category:      input.Category,
		Description:   strings.TrimSpace(input.Description),
		Frequency:     input.Frequency,
		StartDate:     startDate,
		EndDate:       inLocation(input.EndDate, loc),
		PaymentMethod: paymentMethod,
		IsActive:      isActive,
		Tags:          normalizeTags(input.Tags),
	}
	if err := s.scheduleFromStart(&obligation); err != nil {
		return Obligation{}, err
	}

	created, err := s.repo.Create(ctx, userId, obligation)
	if err != nil {
		return Obligation{}, err
	}
	created = created.In(loc)
	log.Debugf("created recurring obligation %s due %s", created.Id, created.NextDueDate)

	if err := s.publish(ctx, event_bus.ObligationCreatedType, changedEvent(created)); err != nil {
		return Obligation{}, err
	}
	return created, nil
}

func (s *ServiceImpl) GetObligation(ctx context.Context, id uuid.UUID) (Obligation, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Obligation{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return loadOwned(ctx, s.repo, userId, id)
}

func (s *ServiceImpl) ListObligations(ctx context.Context, includeInactive bool) ([]Obligation, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	obligations, err := s.repo.FindObligations(ctx, userId, includeInactive)
	if err != nil {
		return nil, err
	}
	loc := user.CurrentLocation(ctx)
	for i := range obligations {
		obligations[i] = obligations[i].In(loc)
	}
	SortByNextDueDate(obligations)
	return obligations, nil
}

func (s *ServiceImpl) UpdateObligation(ctx context.Context, id uuid.UUID, input ObligationInput) (Obligation, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Obligation{}, fmt.Errorf("failed to get current user: %w", err)
	}

	loc := user.CurrentLocation(ctx)
	var updated Obligation
	err = s.repo.WithTransaction(ctx, func(repo Repository) error {
		current, err := loadOwned(ctx, repo, userId, id)
		if err != nil {
			return err
		}
		if input.ExpectedVersion > 0 && input.ExpectedVersion != current.Version {
			return ErrConcurrencyConflict
		}

		next := current.clone()
		next.Title = strings.TrimSpace(input.Title)
		next.Amount = input.Amount.Round(2)
		next.Category = input.Category
		next.Description = strings.TrimSpace(input.Description)
		next.Frequency = input.Frequency
		next.EndDate = inLocation(input.EndDate, loc)
		next.Tags = normalizeTags(input.Tags)
		if input.StartDate != nil {
			next.StartDate = input.StartDate.In(loc)
		}
		if input.PaymentMethod != "" {
			next.PaymentMethod = input.PaymentMethod
		}
		if input.IsActive != nil {
			next.IsActive = *input.IsActive
		}

		if next.Frequency != current.Frequency || !next.StartDate.Equal(current.StartDate) {
			if err := s.scheduleFromStart(&next); err != nil {
				return err
			}
		} else if err := next.validate(); err != nil {
			return err
		}

		updated, err = repo.Update(ctx, userId, next, current.Version)
		return err
	})
	if err != nil {
		return Obligation{}, err
	}
	updated = updated.In(loc)

	if err := s.publish(ctx, event_bus.ObligationUpdatedType, changedEvent(updated)); err != nil {
		return Obligation{}, err
	}
	return updated, nil
}

func (s *ServiceImpl) SetActive(ctx context.Context, id uuid.UUID, isActive bool) (Obligation, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Obligation{}, fmt.Errorf("failed to get current user: %w", err)
	}

	var updated Obligation
	changed := false
	err = s.repo.WithTransaction(ctx, func(repo Repository) error {
		current, err := loadOwned(ctx, repo, userId, id)
		if err != nil {
			return err
		}
		if current.IsActive == isActive {
			updated = current
			return nil
		}
		next := current.clone()
		next.IsActive = isActive
		updated, err = repo.Update(ctx, userId, next, current.Version)
		changed = err == nil
		return err
	})
	if err != nil {
		return Obligation{}, err
	}

	updated = updated.In(user.CurrentLocation(ctx))
	if changed {
		if err := s.publish(ctx, event_bus.ObligationUpdatedType, changedEvent(updated)); err != nil {
			return Obligation{}, err
		}
	}
	return updated, nil
}

func (s *ServiceImpl) DeleteObligation(ctx context.Context, id uuid.UUID) error {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}

	err = s.repo.WithTransaction(ctx, func(repo Repository) error {
		if _, err := loadOwned(ctx, repo, userId, id); err != nil {
			return err
		}
		deleted, err := repo.Delete(ctx, userId, id)
		if err != nil {
			return err
		}
		if !deleted {
			return ErrObligationNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	return s.publish(ctx, event_bus.ObligationDeletedType, event_bus.ObligationDeleted{Id: id, OwnerId: userId})
}

func (s *ServiceImpl) AdvanceObligation(ctx context.Context, id uuid.UUID) (Obligation, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Obligation{}, fmt.Errorf("failed to get current user: %w", err)
	}

	var previousDueDate time.Time
	var advanced Obligation
	err = s.repo.WithTransaction(ctx, func(repo Repository) error {
		current, err := loadOwned(ctx, repo, userId, id)
		if err != nil {
			return err
		}
		nextDueDate, err := NextDueDate(current.NextDueDate, current.Frequency)
		if err != nil {
			return err
		}
		previousDueDate = current.NextDueDate

		next := current.clone()
		next.NextDueDate = nextDueDate
		advanced, err = repo.Update(ctx, userId, next, current.Version)
		return err
	})
	if err != nil {
		return Obligation{}, err
	}
	advanced = advanced.In(user.CurrentLocation(ctx))
	log.Debugf("advanced recurring obligation %s from %s to %s", id, previousDueDate, advanced.NextDueDate)

	err = s.publish(ctx, event_bus.ObligationAdvancedType, event_bus.ObligationAdvanced{
		Id:              advanced.Id,
		OwnerId:         advanced.OwnerId,
		PreviousDueDate: previousDueDate,
		NextDueDate:     advanced.NextDueDate,
		Version:         advanced.Version,
	})
	if err != nil {
		return Obligation{}, err
	}
	return advanced, nil
}

// scheduleFromStart validates the obligation and resets its next due date to one period after the start date.
func (s *ServiceImpl) scheduleFromStart(obligation *Obligation) error {
	obligation.NextDueDate = obligation.StartDate
	if err := obligation.validate(); err != nil {
		return err
	}
	nextDueDate, err := NextDueDate(obligation.StartDate, obligation.Frequency)
	if err != nil {
		return err
	}
	obligation.NextDueDate = nextDueDate
	return nil
}

// The write is already committed when publishing fails; subscribers are in-process
// and a repeated write re-emits the event.
func (s *ServiceImpl) publish(ctx context.Context, eventType event_bus.EventType, data any) error {
	if s.eventBus == nil {
		return nil
	}
	if err := s.eventBus.Publish(event_bus.NewEvent(ctx, eventType, data)); err != nil {
		log.Errorf("failed to publish %s event: %v", eventType, err)
		return err
	}
	return nil
}

func loadOwned(ctx context.Context, repo Repository, userId int, id uuid.UUID) (Obligation, error) {
	obligation, err := repo.Get(ctx, id)
	if err != nil {
		return Obligation{}, err
	}
	if obligation.OwnerId != userId {
		log.Warnf("user %d tried to access recurring obligation %s of another user", userId, id)
		return Obligation{}, ErrNotOwner
	}
	return obligation.In(user.CurrentLocation(ctx)), nil
}

func inLocation(t *time.Time, loc *time.Location) *time.Time {
	if t == nil {
		return nil
	}
	converted := t.In(loc)
	return &converted
}

func changedEvent(o Obligation) event_bus.ObligationChanged {
	return event_bus.ObligationChanged{
		Id:          o.Id,
		OwnerId:     o.OwnerId,
		Title:       o.Title,
		Amount:      o.Amount,
		Category:    string(o.Category),
		Frequency:   string(o.Frequency),
		NextDueDate: o.NextDueDate,
		IsActive:    o.IsActive,
		Version:     o.Version,
	}
}
