package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/appeal-service/internal/domain"
)

// MessageRepository encapsulates ticket message persistence.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.Message, error)
	MarkReadByOperator(ctx context.Context, ticketID int64) error
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository instantiates the repository.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	const query = `
        INSERT INTO ticket_messages (ticket_id, sender_id, from_operator, body, read_by_operator, sent_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id`
	return r.pool.QueryRow(ctx, query,
		msg.TicketID,
		msg.SenderID,
		msg.FromOperator,
		msg.Body,
		msg.ReadByOperator,
		msg.SentAt,
	).Scan(&msg.ID)
}

// ListByTicket returns the thread in insertion order. Ordering is by id,
// not sent_at, so same-instant messages never reorder.
func (r *messageRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Message, error) {
	const query = `
        SELECT id, ticket_id, sender_id, from_operator, body, read_by_operator, sent_at
        FROM ticket_messages WHERE ticket_id=$1 ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (r *messageRepository) MarkReadByOperator(ctx context.Context, ticketID int64) error {
	const query = `
        UPDATE ticket_messages SET read_by_operator=TRUE
        WHERE ticket_id=$1 AND from_operator=FALSE AND read_by_operator=FALSE`
	_, err := r.pool.Exec(ctx, query, ticketID)
	return err
}

func scanMessages(rows pgx.Rows) ([]domain.Message, error) {
	var result []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.SenderID,
			&msg.FromOperator,
			&msg.Body,
			&msg.ReadByOperator,
			&msg.SentAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}
