package event_bus

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	ObligationCreatedType  EventType = "recurring.obligation.created"
	ObligationUpdatedType  EventType = "recurring.obligation.updated"
	ObligationAdvancedType EventType = "recurring.obligation.advanced"
	ObligationDeletedType  EventType = "recurring.obligation.deleted"
)

// ObligationChanged is published after an obligation was created or updated.
type ObligationChanged struct {
	Id          uuid.UUID
	OwnerId     int
	Title       string
	Amount      decimal.Decimal
	Category    string
	Frequency   string
	NextDueDate time.Time
	IsActive    bool
	Version     int
}

type ObligationAdvanced struct {
	Id              uuid.UUID
	OwnerId         int
	PreviousDueDate time.Time
	NextDueDate     time.Time
	Version         int
}

type ObligationDeleted struct {
	Id      uuid.UUID
	OwnerId int
}
