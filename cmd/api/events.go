package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/appeal-service/internal/events"
)

// newEventDispatcher builds the in-memory dispatcher and attaches the
// audit log subscriber. Outbound notification delivery hangs off the same
// dispatcher in deployments that carry it.
func newEventDispatcher(logger *zap.Logger) events.Dispatcher {
	dispatcher := events.NewInMemoryDispatcher()

	audit := func(ctx context.Context, event events.Event) error {
		logger.Info("domain event",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.Int64("ticket_id", event.TicketID),
		)
		return nil
	}
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketAssigned,
		events.EventTicketUnassigned,
		events.EventTicketEscalated,
		events.EventTicketClosed,
		events.EventMessageAppended,
	} {
		dispatcher.Subscribe(eventType, audit)
	}
	return dispatcher
}
