package app

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spendwise/spendwise/internal/auth"
	"github.com/spendwise/spendwise/internal/config"
	"github.com/spendwise/spendwise/internal/event_bus"
	"github.com/spendwise/spendwise/internal/utils"
	"github.com/spendwise/spendwise/pkg/forecast"
	"github.com/spendwise/spendwise/pkg/recurring"
	"github.com/spendwise/spendwise/pkg/user"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	Clock          utils.Clock
	EventBus       *event_bus.EventBus
	TokenValidator *auth.TokenValidator

	UserService user.Service
	UserHandler *user.Handler

	RecurringRepo    recurring.Repository
	RecurringService *recurring.ServiceImpl
	RecurringHandler *recurring.Handler

	ForecastProjector *forecast.Projector
	ForecastService   *forecast.ServiceImpl
	ForecastHandler   *forecast.Handler
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(db *pgxpool.Pool, cfg config.Application, clock utils.Clock) *Dependencies {
	return buildDependencies(user.NewUserRepo(db), recurring.NewRepo(db), cfg, clock)
}

func buildDependencies(userRepo user.Repo, recurringRepo recurring.Repository, cfg config.Application, clock utils.Clock) *Dependencies {
	deps := &Dependencies{}

	deps.Clock = clock
	deps.EventBus = event_bus.NewEventBus(clock)
	subscribeAuditLog(deps.EventBus)
	deps.TokenValidator = auth.NewTokenValidator(cfg.Auth.JwtSecret, clock)

	deps.UserService = user.NewUserService(userRepo)
	deps.UserHandler = user.NewHandler(deps.UserService)

	deps.RecurringRepo = recurringRepo
	deps.RecurringService = recurring.NewService(deps.RecurringRepo, clock, deps.EventBus)
	deps.RecurringHandler = recurring.NewHandler(deps.RecurringService, clock)

	deps.ForecastProjector = forecast.NewProjector(cfg.Forecast.MaxOccurrencesPerObligation)
	deps.ForecastService = forecast.NewService(deps.RecurringRepo, deps.ForecastProjector)
	deps.ForecastHandler = forecast.NewHandler(deps.ForecastService, clock)

	return deps
}
