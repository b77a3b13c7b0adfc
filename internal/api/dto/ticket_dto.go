package dto

import (
	"time"

	"github.com/spec-kit/appeal-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Category domain.TicketCategory `json:"category"`
	Priority domain.TicketPriority `json:"priority"`
	Subject  string                `json:"subject"`
	Body     string                `json:"body"`
}

// TicketSummary response.
type TicketSummary struct {
	ID                 int64                 `json:"id"`
	ExternalKey        string                `json:"external_key"`
	Category           domain.TicketCategory `json:"category"`
	Priority           domain.TicketPriority `json:"priority"`
	Subject            string                `json:"subject"`
	Status             domain.TicketStatus   `json:"status"`
	AssignedOperatorID *int64                `json:"assigned_operator_id,omitempty"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Body            string            `json:"body"`
	FirstResponseAt *time.Time        `json:"first_response_at,omitempty"`
	ClosedAt        *time.Time        `json:"closed_at,omitempty"`
	CloseReason     *string           `json:"close_reason,omitempty"`
	Messages        []MessageResponse `json:"messages"`
}

// MessageResponse represents one thread entry.
type MessageResponse struct {
	ID             int64     `json:"id"`
	SenderID       int64     `json:"sender_id"`
	FromOperator   bool      `json:"from_operator"`
	Body           string    `json:"body"`
	ReadByOperator bool      `json:"read_by_operator"`
	SentAt         time.Time `json:"sent_at"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Body string `json:"body"`
}

// CloseTicketRequest payload.
type CloseTicketRequest struct {
	Reason string `json:"reason"`
}

// FromTicket maps a domain ticket to its summary representation.
func FromTicket(t *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:                 t.ID,
		ExternalKey:        t.ExternalKey,
		Category:           t.Category,
		Priority:           t.Priority,
		Subject:            t.Subject,
		Status:             t.Status,
		AssignedOperatorID: t.AssignedOperatorID,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}

// FromTicketDetail maps a ticket with its thread.
func FromTicketDetail(t *domain.Ticket, msgs []domain.Message) TicketDetailResponse {
	out := TicketDetailResponse{
		TicketSummary:   FromTicket(t),
		Body:            t.Body,
		FirstResponseAt: t.FirstResponseAt,
		ClosedAt:        t.ClosedAt,
		CloseReason:     t.CloseReason,
		Messages:        make([]MessageResponse, 0, len(msgs)),
	}
	for _, msg := range msgs {
		out.Messages = append(out.Messages, FromMessage(&msg))
	}
	return out
}

// FromMessage maps a domain message.
func FromMessage(m *domain.Message) MessageResponse {
	return MessageResponse{
		ID:             m.ID,
		SenderID:       m.SenderID,
		FromOperator:   m.FromOperator,
		Body:           m.Body,
		ReadByOperator: m.ReadByOperator,
		SentAt:         m.SentAt,
	}
}
