package domain

import "time"

// Message is one entry in a ticket's conversation thread. Messages are
// append-only and ordered by their id; they are never edited or removed.
type Message struct {
	ID             int64
	TicketID       int64
	SenderID       int64
	FromOperator   bool
	Body           string
	ReadByOperator bool
	SentAt         time.Time
}
