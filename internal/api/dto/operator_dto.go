package dto

import (
	"time"

	"github.com/spec-kit/appeal-service/internal/domain"
)

// OperatorLoginRequest payload.
type OperatorLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// OperatorLoginResponse payload.
type OperatorLoginResponse struct {
	AccessToken string              `json:"access_token"`
	ExpiresAt   time.Time           `json:"expires_at"`
	OperatorID  int64               `json:"operator_id"`
	Role        domain.OperatorRole `json:"role"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	OperatorID int64  `json:"operator_id"`
	Note       string `json:"note"`
}

// ReassignTicketRequest payload.
type ReassignTicketRequest struct {
	Reason string `json:"reason"`
}

// AvailabilityRequest payload.
type AvailabilityRequest struct {
	Available bool `json:"available"`
}

// WorkloadResponse represents an operator's current load.
type WorkloadResponse struct {
	OperatorID     int64               `json:"operator_id"`
	ActiveTickets  int                 `json:"active_tickets"`
	TotalTickets   int                 `json:"total_tickets"`
	Available      bool                `json:"available"`
	LastActivityAt time.Time           `json:"last_activity_at"`
	Expertise      []ExpertiseResponse `json:"expertise"`
}

// ExpertiseResponse represents one category expertise record.
type ExpertiseResponse struct {
	Category domain.TicketCategory `json:"category"`
	Level    int                   `json:"level"`
}

// AssignmentPreviewEntry is one ranked candidate in the preview endpoint.
type AssignmentPreviewEntry struct {
	OperatorID    int64 `json:"operator_id"`
	Score         int   `json:"score"`
	ActiveTickets int   `json:"active_tickets"`
}

// FromWorkload maps a domain workload record.
func FromWorkload(w *domain.OperatorWorkload) WorkloadResponse {
	out := WorkloadResponse{
		OperatorID:     w.OperatorID,
		ActiveTickets:  w.ActiveTickets,
		TotalTickets:   w.TotalTickets,
		Available:      w.Available,
		LastActivityAt: w.LastActivityAt,
		Expertise:      make([]ExpertiseResponse, 0, len(w.Expertise)),
	}
	for _, e := range w.Expertise {
		out.Expertise = append(out.Expertise, ExpertiseResponse{Category: e.Category, Level: e.Level})
	}
	return out
}
