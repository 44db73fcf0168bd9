package recurring

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spendwise/spendwise/internal/event_bus"
	"github.com/spendwise/spendwise/internal/utils"
	"github.com/spendwise/spendwise/pkg/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = user.WithUser(context.Background(), user.User{
	Id:          10,
	Uid:         uuid.NewString(),
	Username:    "test-user-1",
	DisplayName: "Test User 1",
	Settings:    user.Settings{Timezone: "UTC"},
})

var warsawCtx = user.WithUser(context.Background(), user.User{
	Id:       30,
	Uid:      uuid.NewString(),
	Username: "test-user-warsaw",
	Settings: user.Settings{Timezone: "Europe/Warsaw"},
})

func warsaw(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("Europe/Warsaw")
	require.NoError(t, err)
	return loc
}

var otherUserCtx = user.WithUser(context.Background(), user.User{
	Id:       20,
	Uid:      uuid.NewString(),
	Username: "test-user-2",
})

var clock = &utils.MockClock{FixedNow: time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)}

func setup(t *testing.T) (*ServiceImpl, *RepositoryStub, *[]event_bus.Event) {
	repo := NewRepositoryStub()
	bus := event_bus.NewEventBus(clock)
	var published []event_bus.Event
	var mu sync.Mutex
	record := func(e event_bus.Event) error {
		mu.Lock()
		defer mu.Unlock()
		published = append(published, e)
		return nil
	}
	for _, eventType := range []event_bus.EventType{
		event_bus.ObligationCreatedType,
		event_bus.ObligationUpdatedType,
		event_bus.ObligationAdvancedType,
		event_bus.ObligationDeletedType,
	} {
		bus.Subscribe(eventType, record)
	}
	t.Cleanup(func() {
		repo.Reset()
		clock.SetNow(time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC))
	})
	return NewService(repo, clock, bus), repo, &published
}

func monthlyRent() ObligationInput {
	start := date(2023, 12, 15)
	return ObligationInput{
		Title:     "  Rent  ",
		Amount:    decimal.RequireFromString("100.005"),
		Category:  CategoryBills,
		Frequency: FrequencyMonthly,
		StartDate: &start,
		Tags:      []string{"home", " home", "", "flat "},
	}
}

func TestServiceImpl_CreateObligation(t *testing.T) {
	t.Run("should compute first due date and apply defaults", func(t *testing.T) {
		// given
		service, _, published := setup(t)

		// when
		created, err := service.CreateObligation(ctx, monthlyRent())

		// then
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, created.Id)
		assert.Equal(t, 10, created.OwnerId)
		assert.Equal(t, "Rent", created.Title)
		assert.Equal(t, "100.01", created.Amount.StringFixed(2))
		assert.Equal(t, date(2024, 1, 15), created.NextDueDate)
		assert.Equal(t, PaymentCash, created.PaymentMethod)
		assert.True(t, created.IsActive)
		assert.Equal(t, []string{"home", "flat"}, created.Tags)
		assert.Equal(t, 1, created.Version)
		require.Len(t, *published, 1)
		assert.Equal(t, event_bus.ObligationCreatedType, (*published)[0].Type)
	})

	t.Run("should default start date to clock time", func(t *testing.T) {
		// given
		service, _, _ := setup(t)
		input := monthlyRent()
		input.StartDate = nil
		input.Frequency = FrequencyWeekly

		// when
		created, err := service.CreateObligation(warsawCtx, input)

		// then
		require.NoError(t, err)
		assert.Equal(t, "2024-01-10T09:00:00+01:00", created.StartDate.Format(time.RFC3339))
		assert.Equal(t, "2024-01-17T09:00:00+01:00", created.NextDueDate.Format(time.RFC3339))
	})

	t.Run("should keep explicit inactive flag and payment method", func(t *testing.T) {
		// given
		service, _, _ := setup(t)
		input := monthlyRent()
		inactive := false
		input.IsActive = &inactive
		input.PaymentMethod = PaymentBankTransfer

		// when
		created, err := service.CreateObligation(ctx, input)

		// then
		require.NoError(t, err)
		assert.False(t, created.IsActive)
		assert.Equal(t, PaymentBankTransfer, created.PaymentMethod)
	})

	t.Run("should reject invalid input without persisting", func(t *testing.T) {
		endBeforeStart := date(2023, 1, 1)
		tests := []struct {
			name   string
			mutate func(*ObligationInput)
			field  string
		}{
			{"empty title", func(i *ObligationInput) { i.Title = "   " }, "title"},
			{"negative amount", func(i *ObligationInput) { i.Amount = decimal.NewFromInt(-1) }, "amount"},
			{"unknown category", func(i *ObligationInput) { i.Category = "Gambling" }, "category"},
			{"unknown frequency", func(i *ObligationInput) { i.Frequency = "hourly" }, "frequency"},
			{"unknown payment method", func(i *ObligationInput) { i.PaymentMethod = "Cheque" }, "paymentMethod"},
			{"end before start", func(i *ObligationInput) { i.EndDate = &endBeforeStart }, "endDate"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				// given
				service, repo, published := setup(t)
				input := monthlyRent()
				tt.mutate(&input)

				// when
				_, err := service.CreateObligation(ctx, input)

				// then
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidObligation)
				var validationErr *ValidationError
				require.True(t, errors.As(err, &validationErr))
				assert.Equal(t, tt.field, validationErr.Field)
				stored, _ := repo.FindObligations(ctx, 10, true)
				assert.Empty(t, stored)
				assert.Empty(t, *published)
			})
		}
	})

	t.Run("should fail without user in context", func(t *testing.T) {
		// given
		service, _, _ := setup(t)

		// when
		_, err := service.CreateObligation(context.Background(), monthlyRent())

		// then
		assert.ErrorIs(t, err, user.ErrNoUser)
	})
}

func TestServiceImpl_UpdateObligation(t *testing.T) {
	t.Run("should keep next due date when frequency is unchanged", func(t *testing.T) {
		// given
		service, _, _ := setup(t)
		created, err := service.CreateObligation(ctx, monthlyRent())
		require.NoError(t, err)
		advanced, err := service.AdvanceObligation(ctx, created.Id)
		require.NoError(t, err)
		input := monthlyRent()
		input.Title = "Rent and utilities"
		input.Amount = decimal.NewFromInt(150)

		// when
		updated, err := service.UpdateObligation(ctx, created.Id, input)

		// then
		require.NoError(t, err)
		assert.Equal(t, "Rent and utilities", updated.Title)
		assert.True(t, decimal.NewFromInt(150).Equal(updated.Amount))
		assert.Equal(t, advanced.NextDueDate, updated.NextDueDate)
		assert.Equal(t, advanced.Version+1, updated.Version)
	})

	t.Run("should recompute next due date from start date when frequency changes", func(t *testing.T) {
		// given
		service, _, _ := setup(t)
		created, err := service.CreateObligation(ctx, monthlyRent())
		require.NoError(t, err)
		_, err = service.AdvanceObligation(ctx, created.Id)
		require.NoError(t, err)
		input := monthlyRent()
		input.Frequency = FrequencyWeekly

		// when
		updated, err := service.UpdateObligation(ctx, created.Id, input)

		// then
		require.NoError(t, err)
		assert.Equal(t, FrequencyWeekly, updated.Frequency)
		assert.Equal(t, date(2023, 12, 22), updated.NextDueDate)
	})

	t.Run("should recompute next due date when start date changes", func(t *testing.T) {
		// given
		service, _, _ := setup(t)
		created, err := service.CreateObligation(ctx, monthlyRent())
		require.NoError(t, err)
		input := monthlyRent()
		newStart := date(2024, 1, 31)
		input.StartDate = &newStart

		// when
		updated, err := service.UpdateObligation(ctx, created.Id, input)

		// then
		require.NoError(t, err)
		assert.Equal(t, date(2024, 2, 29), updated.NextDueDate)
	})

	t.Run("should keep current values for omitted optional fields", func(t *testing.T) {
		// given
		service, _, _ := setup(t)
		input := monthlyRent()
		input.PaymentMethod = PaymentCreditCard
		created, err := service.CreateObligation(ctx, input)
		require.NoError(t, err)
		_, err = service.SetActive(ctx, created.Id, false)
		require.NoError(t, err)
		update := monthlyRent()
		update.StartDate = nil

		// when
		updated, err := service.UpdateObligation(ctx, created.Id, update)

		// then
		require.NoError(t, err)
		assert.Equal(t, PaymentCreditCard, updated.PaymentMethod)
		assert.False(t, updated.IsActive)
		assert.Equal(t, created.StartDate, updated.StartDate)
	})

	t.Run("should reject stale expected version", func(t *testing.T) {
		// given
		service, _, _ := setup(t)
		created, err := service.CreateObligation(ctx, monthlyRent())
		require.NoError(t, err)
		_, err = service.AdvanceObligation(ctx, created.Id)
		require.NoError(t, err)
		input := monthlyRent()
		input.ExpectedVersion = created.Version

		// when
		_, err = service.UpdateObligation(ctx, created.Id, input)

		// then
		assert.ErrorIs(t, err, ErrConcurrencyConflict)
	})

	t.Run("should return not found for missing obligation", func(t *testing.T) {
		// given
		service, _, _ := setup(t)

		// when
		_, err := service.UpdateObligation(ctx, uuid.New(), monthlyRent())

		// then
		assert.ErrorIs(t, err, ErrObligationNotFound)
	})

	t.Run("should refuse update by another user", func(t *testing.T) {
		// given
		service, _, _ := setup(t)
		created, err := service.CreateObligation(ctx, monthlyRent())
		require.NoError(t, err)

		// when
		_, err = service.UpdateObligation(otherUserCtx, created.Id, monthlyRent())

		// then
		assert.ErrorIs(t, err, ErrNotOwner)
	})
}

func TestServiceImpl_SetActive(t *testing.T) {
	t.Run("should toggle flag without touching the schedule", func(t *testing.T) {
		// given
		service, _, published := setup(t)
		created, err := service.CreateObligation(ctx, monthlyRent())
		require.NoError(t, err)

		// when
		deactivated, err := service.SetActive(ctx, created.Id, false)
		require.NoError(t, err)
		active, err := service.ListObligations(ctx, false)
		require.NoError(t, err)
		all, err := service.ListObligations(ctx, true)
		require.NoError(t, err)

		// then
		assert.False(t, deactivated.IsActive)
		assert.Equal(t, created.NextDueDate, deactivated.NextDueDate)
		assert.Empty(t, active)
		assert.Len(t, all, 1)
		assert.Len(t, *published, 2)
	})

	t.Run("should not write when flag is unchanged", func(t *testing.T) {
		// given
		service, _, published := setup(t)
		created, err := service.CreateObligation(ctx, monthlyRent())
		require.NoError(t, err)

		// when
		same, err := service.SetActive(ctx, created.Id, true)

		// then
		require.NoError(t, err)
		assert.Equal(t, created.Version, same.Version)
		assert.Len(t, *published, 1)
	})
}

func TestServiceImpl_DeleteObligation(t *testing.T) {
	t.Run("should delete owned obligation", func(t *testing.T) {
		// given
		service, _, published := setup(t)
		created, err := service.CreateObligation(ctx, monthlyRent())
		require.NoError(t, err)

		// when
		err = service.DeleteObligation(ctx, created.Id)

		// then
		require.NoError(t, err)
		_, err = service.GetObligation(ctx, created.Id)
		assert.ErrorIs(t, err, ErrObligationNotFound)
		assert.Equal(t, event_bus.ObligationDeletedType, (*published)[len(*published)-1].Type)
	})

	t.Run("should refuse deletion by another user", func(t *testing.T) {
		// given
		service, _, _ := setup(t)
		created, err := service.CreateObligation(ctx, monthlyRent())
		require.NoError(t, err)

		// when
		err = service.DeleteObligation(otherUserCtx, created.Id)

		// then
		assert.ErrorIs(t, err, ErrNotOwner)
		_, err = service.GetObligation(ctx, created.Id)
		assert.NoError(t, err)
	})

	t.Run("should return not found for missing obligation", func(t *testing.T) {
		// given
		service, _, _ := setup(t)

		// when
		err := service.DeleteObligation(ctx, uuid.New())

		// then
		assert.ErrorIs(t, err, ErrObligationNotFound)
	})
}

func TestServiceImpl_AdvanceObligation(t *testing.T) {
	t.Run("should compound sequential advances", func(t *testing.T) {
		// given
		service, _, published := setup(t)
		created, err := service.CreateObligation(ctx, monthlyRent())
		require.NoError(t, err)
		require.Equal(t, date(2024, 1, 15), created.NextDueDate)

		// when
		first, err := service.AdvanceObligation(ctx, created.Id)
		require.NoError(t, err)
		second, err := service.AdvanceObligation(ctx, created.Id)
		require.NoError(t, err)

		// then
		assert.Equal(t, date(2024, 2, 15), first.NextDueDate)
		assert.Equal(t, date(2024, 3, 15), second.NextDueDate)
		assert.Equal(t, 3, second.Version)
		last := (*published)[len(*published)-1]
		require.Equal(t, event_bus.ObligationAdvancedType, last.Type)
		assert.Equal(t, date(2024, 2, 15), last.Data.(event_bus.ObligationAdvanced).PreviousDueDate)
	})

	t.Run("should reject second advance computed from the same read", func(t *testing.T) {
		// given
		service, repo, _ := setup(t)
		created, err := service.CreateObligation(ctx, monthlyRent())
		require.NoError(t, err)
		staleService := NewService(&staleReadRepository{RepositoryStub: repo, snapshot: created}, clock, nil)

		// when
		first, firstErr := staleService.AdvanceObligation(ctx, created.Id)
		_, secondErr := staleService.AdvanceObligation(ctx, created.Id)

		// then
		require.NoError(t, firstErr)
		assert.Equal(t, date(2024, 2, 15), first.NextDueDate)
		assert.ErrorIs(t, secondErr, ErrConcurrencyConflict)
		stored, err := service.GetObligation(ctx, created.Id)
		require.NoError(t, err)
		assert.Equal(t, date(2024, 2, 15), stored.NextDueDate)
		assert.Equal(t, 2, stored.Version)
	})

	t.Run("should apply every successful concurrent advance exactly once", func(t *testing.T) {
		// given
		service, _, _ := setup(t)
		created, err := service.CreateObligation(ctx, monthlyRent())
		require.NoError(t, err)
		const callers = 16

		// when
		var wg sync.WaitGroup
		results := make(chan error, callers)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := service.AdvanceObligation(ctx, created.Id)
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		// then
		succeeded := 0
		for err := range results {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, ErrConcurrencyConflict)
		}
		require.GreaterOrEqual(t, succeeded, 1)
		stored, err := service.GetObligation(ctx, created.Id)
		require.NoError(t, err)
		assert.Equal(t, AddMonthsClamped(created.NextDueDate, succeeded), stored.NextDueDate)
		assert.Equal(t, 1+succeeded, stored.Version)
	})

	t.Run("should refuse advance by another user", func(t *testing.T) {
		// given
		service, _, _ := setup(t)
		created, err := service.CreateObligation(ctx, monthlyRent())
		require.NoError(t, err)

		// when
		_, err = service.AdvanceObligation(otherUserCtx, created.Id)

		// then
		assert.ErrorIs(t, err, ErrNotOwner)
	})

	t.Run("should return not found for missing obligation", func(t *testing.T) {
		// given
		service, _, _ := setup(t)

		// when
		_, err := service.AdvanceObligation(ctx, uuid.New())

		// then
		assert.ErrorIs(t, err, ErrObligationNotFound)
	})
}

func TestServiceImpl_ListObligations(t *testing.T) {
	// given
	service, _, _ := setup(t)
	later := monthlyRent()
	laterStart := date(2024, 3, 1)
	later.StartDate = &laterStart
	earlier := monthlyRent()
	earlierStart := date(2023, 11, 1)
	earlier.StartDate = &earlierStart
	_, err := service.CreateObligation(ctx, later)
	require.NoError(t, err)
	_, err = service.CreateObligation(ctx, earlier)
	require.NoError(t, err)
	_, err = service.CreateObligation(otherUserCtx, monthlyRent())
	require.NoError(t, err)

	// when
	obligations, err := service.ListObligations(ctx, false)

	// then
	require.NoError(t, err)
	require.Len(t, obligations, 2)
	assert.Equal(t, date(2023, 12, 1), obligations[0].NextDueDate)
	assert.Equal(t, date(2024, 4, 1), obligations[1].NextDueDate)
}

func TestObligation_DerivedStatus(t *testing.T) {
	obligation := Obligation{NextDueDate: date(2024, 1, 15)}

	assert.False(t, obligation.IsOverdue(date(2024, 1, 15)))
	assert.True(t, obligation.IsOverdue(date(2024, 1, 16)))
	assert.Equal(t, 5, obligation.DaysUntilDue(date(2024, 1, 10)))
	assert.Equal(t, -1, obligation.DaysUntilDue(date(2024, 1, 16)))
	assert.Equal(t, 0, obligation.DaysUntilDue(time.Date(2024, 1, 14, 12, 0, 0, 0, time.UTC)))
}

// staleReadRepository always returns the same snapshot from Get, like two callers racing on one read.
type staleReadRepository struct {
	*RepositoryStub
	snapshot Obligation
}

func (r *staleReadRepository) Get(ctx context.Context, id uuid.UUID) (Obligation, error) {
	return r.snapshot.clone(), nil
}

func (r *staleReadRepository) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	return fn(r)
}

func TestServiceImpl_OwnerTimezone(t *testing.T) {
	t.Run("should keep monthly anchor day of owner timezone across stored UTC instants", func(t *testing.T) {
		// given
		service, repo, _ := setup(t)
		input := monthlyRent()
		start := time.Date(2023, 1, 1, 0, 0, 0, 0, warsaw(t))
		input.StartDate = &start
		created, err := service.CreateObligation(warsawCtx, input)
		require.NoError(t, err)
		stored, err := repo.Get(context.Background(), created.Id)
		require.NoError(t, err)
		require.Equal(t, time.UTC, stored.NextDueDate.Location())

		// when
		dueDates := make([]time.Time, 0, 4)
		for i := 0; i < 4; i++ {
			advanced, err := service.AdvanceObligation(warsawCtx, created.Id)
			require.NoError(t, err)
			dueDates = append(dueDates, advanced.NextDueDate)
		}

		// then
		assert.Equal(t, "2023-02-01T00:00:00+01:00", created.NextDueDate.Format(time.RFC3339))
		assert.Equal(t, []string{
			"2023-03-01T00:00:00+01:00",
			"2023-04-01T00:00:00+02:00",
			"2023-05-01T00:00:00+02:00",
			"2023-06-01T00:00:00+02:00",
		}, formatted(dueDates))
	})

	t.Run("should recompute from start date on owner calendar when frequency changes", func(t *testing.T) {
		// given
		service, _, _ := setup(t)
		input := monthlyRent()
		start := time.Date(2024, 1, 31, 0, 0, 0, 0, warsaw(t))
		input.StartDate = &start
		input.Frequency = FrequencyWeekly
		created, err := service.CreateObligation(warsawCtx, input)
		require.NoError(t, err)

		// when
		update := monthlyRent()
		update.StartDate = nil
		update.Frequency = FrequencyMonthly
		updated, err := service.UpdateObligation(warsawCtx, created.Id, update)

		// then
		require.NoError(t, err)
		assert.Equal(t, "2024-02-29T00:00:00+01:00", updated.NextDueDate.Format(time.RFC3339))
	})

	t.Run("should interpret UTC input in owner timezone", func(t *testing.T) {
		// given
		service, _, _ := setup(t)
		input := monthlyRent()
		start := time.Date(2024, 1, 30, 23, 0, 0, 0, time.UTC)
		input.StartDate = &start

		// when
		created, err := service.CreateObligation(warsawCtx, input)

		// then
		require.NoError(t, err)
		assert.Equal(t, "2024-01-31T00:00:00+01:00", created.StartDate.Format(time.RFC3339))
		assert.Equal(t, "2024-02-29T00:00:00+01:00", created.NextDueDate.Format(time.RFC3339))
	})
}

func formatted(times []time.Time) []string {
	result := make([]string, 0, len(times))
	for _, t := range times {
		result = append(result, t.Format(time.RFC3339))
	}
	return result
}
