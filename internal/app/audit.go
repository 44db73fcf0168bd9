package app

import (
	log "github.com/sirupsen/logrus"
	"github.com/spendwise/spendwise/internal/event_bus"
)

// subscribeAuditLog writes one structured log entry per obligation change.
func subscribeAuditLog(bus *event_bus.EventBus) {
	logChanged := func(e event_bus.EventT[event_bus.ObligationChanged]) error {
		log.WithFields(log.Fields{
			"event":       e.Type,
			"obligation":  e.Data.Id,
			"owner":       e.Data.OwnerId,
			"amount":      e.Data.Amount.StringFixed(2),
			"frequency":   e.Data.Frequency,
			"nextDueDate": e.Data.NextDueDate,
			"active":      e.Data.IsActive,
			"version":     e.Data.Version,
			"at":          e.Timestamp,
		}).Info("recurring obligation changed")
		return nil
	}
	event_bus.SubscribeTyped(bus, event_bus.ObligationCreatedType, logChanged)
	event_bus.SubscribeTyped(bus, event_bus.ObligationUpdatedType, logChanged)

	event_bus.SubscribeTyped(bus, event_bus.ObligationAdvancedType,
		func(e event_bus.EventT[event_bus.ObligationAdvanced]) error {
			log.WithFields(log.Fields{
				"event":      e.Type,
				"obligation": e.Data.Id,
				"owner":      e.Data.OwnerId,
				"from":       e.Data.PreviousDueDate,
				"to":         e.Data.NextDueDate,
				"version":    e.Data.Version,
				"at":         e.Timestamp,
			}).Info("recurring obligation advanced")
			return nil
		})

	event_bus.SubscribeTyped(bus, event_bus.ObligationDeletedType,
		func(e event_bus.EventT[event_bus.ObligationDeleted]) error {
			log.WithFields(log.Fields{
				"event":      e.Type,
				"obligation": e.Data.Id,
				"owner":      e.Data.OwnerId,
				"at":         e.Timestamp,
			}).Info("recurring obligation deleted")
			return nil
		})
}
