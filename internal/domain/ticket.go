package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew        TicketStatus = "NEW"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityNormal TicketPriority = "NORMAL"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// TicketCategory is the fixed routing taxonomy for incoming tickets.
type TicketCategory string

const (
	CategoryGeneral   TicketCategory = "GENERAL"
	CategoryBilling   TicketCategory = "BILLING"
	CategoryTechnical TicketCategory = "TECHNICAL"
	CategoryAccount   TicketCategory = "ACCOUNT"
	CategoryComplaint TicketCategory = "COMPLAINT"
)

// Categories lists all valid ticket categories.
var Categories = []TicketCategory{
	CategoryGeneral,
	CategoryBilling,
	CategoryTechnical,
	CategoryAccount,
	CategoryComplaint,
}

// ValidCategory reports whether c is a known category.
func ValidCategory(c TicketCategory) bool {
	for _, known := range Categories {
		if known == c {
			return true
		}
	}
	return false
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID                 int64
	ExternalKey        string
	RequesterID        int64
	Category           TicketCategory
	Priority           TicketPriority
	Subject            string
	Body               string
	Status             TicketStatus
	AssignedOperatorID *int64
	FirstResponseAt    *time.Time
	ClosedAt           *time.Time
	CloseReason        *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsClosed reports whether the ticket reached its terminal state.
func (t *Ticket) IsClosed() bool {
	return t.Status == TicketStatusClosed
}
