package events

import (
	"time"

	"github.com/spec-kit/appeal-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated    EventType = "ticket_created"
	EventTicketAssigned   EventType = "ticket_assigned"
	EventTicketUnassigned EventType = "ticket_unassigned"
	EventTicketEscalated  EventType = "ticket_escalated"
	EventTicketClosed     EventType = "ticket_closed"
	EventMessageAppended  EventType = "message_appended"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type       domain.SubjectType `json:"type"`
	UserID     *int64             `json:"user_id,omitempty"`
	OperatorID *int64             `json:"operator_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Category domain.TicketCategory `json:"category"`
	Priority domain.TicketPriority `json:"priority"`
	Subject  string                `json:"subject"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	OperatorID         int64  `json:"operator_id"`
	PreviousOperatorID *int64 `json:"previous_operator_id,omitempty"`
	Note               string `json:"note,omitempty"`
}

// TicketUnassignedPayload payload.
type TicketUnassignedPayload struct {
	PreviousOperatorID int64 `json:"previous_operator_id"`
}

// TicketEscalatedPayload payload.
type TicketEscalatedPayload struct {
	Reason             string `json:"reason"`
	NewOperatorID      int64  `json:"new_operator_id"`
	PreviousOperatorID *int64 `json:"previous_operator_id,omitempty"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	Reason     string `json:"reason"`
	ByOperator bool   `json:"by_operator"`
}

// MessageAppendedPayload payload.
type MessageAppendedPayload struct {
	MessageID    int64 `json:"message_id"`
	FromOperator bool  `json:"from_operator"`
	SenderID     int64 `json:"sender_id"`
}
