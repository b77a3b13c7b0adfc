package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/appeal-service/internal/config"
	"github.com/spec-kit/appeal-service/internal/domain"
	"github.com/spec-kit/appeal-service/internal/events"
	"github.com/spec-kit/appeal-service/internal/repository"
	apperrors "github.com/spec-kit/appeal-service/pkg/util/errorutil"
)

// ReasonOverdue marks reassignments forced by the escalation sweep.
const ReasonOverdue = "overdue"

// TicketService coordinates the ticket lifecycle: creation, assignment,
// conversation, and closing.
type TicketService struct {
	tickets    repository.TicketRepository
	messages   repository.MessageRepository
	operators  repository.OperatorRepository
	tracker    *WorkloadService
	engine     *AssignmentService
	dispatcher events.Dispatcher
	policy     config.TicketPolicyConfig
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the lifecycle service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	MessageRepo  repository.MessageRepository
	OperatorRepo repository.OperatorRepository
	Tracker      *WorkloadService
	Engine       *AssignmentService
	Dispatcher   events.Dispatcher
	Policy       config.TicketPolicyConfig
	Logger       *zap.Logger
	Now          func() time.Time
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := deps.Policy
	if policy.SubjectMaxLen == 0 {
		policy = config.TicketPolicyConfig{SubjectMinLen: 5, SubjectMaxLen: 200, BodyMinLen: 10, BodyMaxLen: 4000}
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		operators:  deps.OperatorRepo,
		tracker:    deps.Tracker,
		engine:     deps.Engine,
		dispatcher: deps.Dispatcher,
		policy:     policy,
		logger:     logger,
		now:        now,
	}
}

// CreateTicket validates and persists a new ticket in NEW status, together
// with the opening requester message.
func (s *TicketService) CreateTicket(ctx context.Context, requesterID int64, category domain.TicketCategory, priority domain.TicketPriority, subject, body string) (*domain.Ticket, error) {
	subject = strings.TrimSpace(subject)
	body = strings.TrimSpace(body)

	if n := len([]rune(subject)); n < s.policy.SubjectMinLen || n > s.policy.SubjectMaxLen {
		return nil, apperrors.NewValidationError("subject length out of bounds", map[string]any{
			"min": s.policy.SubjectMinLen,
			"max": s.policy.SubjectMaxLen,
			"got": n,
		})
	}
	if n := len([]rune(body)); n < s.policy.BodyMinLen || n > s.policy.BodyMaxLen {
		return nil, apperrors.NewValidationError("body length out of bounds", map[string]any{
			"min": s.policy.BodyMinLen,
			"max": s.policy.BodyMaxLen,
			"got": n,
		})
	}
	if !domain.ValidCategory(category) {
		return nil, apperrors.NewValidationError("unknown category", map[string]any{"category": category})
	}
	if priority == "" {
		priority = domain.TicketPriorityNormal
	}

	ticket := &domain.Ticket{
		ExternalKey: generateTicketKey(),
		RequesterID: requesterID,
		Category:    category,
		Priority:    priority,
		Subject:     subject,
		Body:        body,
		Status:      domain.TicketStatusNew,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, s.storageErr("create ticket", err)
	}

	opening := &domain.Message{
		TicketID:     ticket.ID,
		SenderID:     requesterID,
		FromOperator: false,
		Body:         body,
		SentAt:       s.now(),
	}
	if err := s.messages.Create(ctx, opening); err != nil {
		return nil, s.storageErr("create opening message", err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    userActor(requesterID),
		Payload: events.TicketCreatedPayload{
			Category: ticket.Category,
			Priority: ticket.Priority,
			Subject:  ticket.Subject,
		},
	})
	return ticket, nil
}

// AssignTicket assigns the ticket to the given operator. Assigning an
// already-assigned ticket to a different operator is a reassignment: the
// outgoing operator's load is released first.
func (s *TicketService) AssignTicket(ctx context.Context, ticketID, operatorID, actorID int64, note string) error {
	actor, err := s.operators.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewForbidden("acting operator unknown")
		}
		return s.storageErr("get acting operator", err)
	}
	if !actor.Role.CanAssign() {
		return apperrors.NewForbidden("insufficient role for assignment")
	}

	ticket, err := s.ticketByID(ctx, ticketID)
	if err != nil {
		return err
	}
	if ticket.IsClosed() {
		return apperrors.NewConflict("ticket is closed", map[string]any{"ticket_id": ticketID})
	}

	previous := ticket.AssignedOperatorID
	if previous != nil && *previous == operatorID {
		return nil
	}

	ticket.AssignedOperatorID = &operatorID
	ticket.Status = domain.TicketStatusInProgress
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return s.storageErr("update ticket", err)
	}

	if previous != nil {
		if err := s.tracker.CompleteTicket(ctx, *previous); err != nil {
			return err
		}
	}
	if err := s.tracker.AssignTicket(ctx, operatorID); err != nil {
		return err
	}

	if note = strings.TrimSpace(note); note != "" {
		msg := &domain.Message{
			TicketID:       ticket.ID,
			SenderID:       actorID,
			FromOperator:   true,
			Body:           note,
			ReadByOperator: true,
			SentAt:         s.now(),
		}
		if err := s.messages.Create(ctx, msg); err != nil {
			s.logger.Warn("assignment note not recorded", zap.Int64("ticket_id", ticketID), zap.Error(err))
		}
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		Actor:    operatorActor(actorID),
		Payload: events.TicketAssignedPayload{
			OperatorID:         operatorID,
			PreviousOperatorID: previous,
			Note:               note,
		},
	})
	return nil
}

// UnassignTicket removes the current assignment and reverts the ticket to
// NEW. A ticket with no assignee is left untouched.
func (s *TicketService) UnassignTicket(ctx context.Context, ticketID, actorID int64) error {
	ticket, err := s.ticketByID(ctx, ticketID)
	if err != nil {
		return err
	}
	if ticket.IsClosed() {
		return apperrors.NewConflict("ticket is closed", map[string]any{"ticket_id": ticketID})
	}
	if ticket.AssignedOperatorID == nil {
		return nil
	}

	previous := *ticket.AssignedOperatorID
	ticket.AssignedOperatorID = nil
	ticket.Status = domain.TicketStatusNew
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return s.storageErr("update ticket", err)
	}
	if err := s.tracker.CompleteTicket(ctx, previous); err != nil {
		return err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketUnassigned,
		TicketID: ticket.ID,
		Actor:    operatorActor(actorID),
		Payload:  events.TicketUnassignedPayload{PreviousOperatorID: previous},
	})
	return nil
}

// ReassignTicket moves the ticket to the best available operator. The
// search runs before the existing assignment is touched (find-then-swap):
// when no replacement exists the ticket keeps its current operator, or
// stays NEW if it had none, and the caller gets NO_ELIGIBLE_OPERATOR.
func (s *TicketService) ReassignTicket(ctx context.Context, ticketID int64, reason string) (int64, error) {
	ticket, err := s.ticketByID(ctx, ticketID)
	if err != nil {
		return 0, err
	}
	if ticket.IsClosed() {
		return 0, apperrors.NewConflict("ticket is closed", map[string]any{"ticket_id": ticketID})
	}

	previous := ticket.AssignedOperatorID
	replacement, err := s.engine.FindBestOperatorExcluding(ctx, ticket.Category, ticket.Priority, previous)
	if err != nil {
		return 0, err
	}

	ticket.AssignedOperatorID = &replacement.OperatorID
	ticket.Status = domain.TicketStatusInProgress
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return 0, s.storageErr("update ticket", err)
	}

	if previous != nil {
		if err := s.tracker.CompleteTicket(ctx, *previous); err != nil {
			return 0, err
		}
	}
	if err := s.tracker.AssignTicket(ctx, replacement.OperatorID); err != nil {
		return 0, err
	}

	eventType := events.EventTicketAssigned
	if reason == ReasonOverdue {
		eventType = events.EventTicketEscalated
	}
	s.publishEvent(ctx, events.Event{
		Type:     eventType,
		TicketID: ticket.ID,
		Actor:    events.Actor{Type: domain.SubjectTypeOperator, OperatorID: &replacement.OperatorID},
		Payload: events.TicketEscalatedPayload{
			Reason:             reason,
			NewOperatorID:      replacement.OperatorID,
			PreviousOperatorID: previous,
		},
	})
	return replacement.OperatorID, nil
}

// AppendMessage adds a message to the ticket thread. Both directions keep
// the ticket active: status becomes IN_PROGRESS either way. The first
// operator-authored message stamps the first-response time.
func (s *TicketService) AppendMessage(ctx context.Context, ticketID, senderID int64, fromOperator bool, text string) (*domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewValidationError("message text required", nil)
	}

	ticket, err := s.ticketByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.IsClosed() {
		return nil, apperrors.NewConflict("ticket is closed", map[string]any{"ticket_id": ticketID})
	}

	msg := &domain.Message{
		TicketID:       ticket.ID,
		SenderID:       senderID,
		FromOperator:   fromOperator,
		Body:           text,
		ReadByOperator: fromOperator,
		SentAt:         s.now(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, s.storageErr("create message", err)
	}

	ticket.Status = domain.TicketStatusInProgress
	if fromOperator && ticket.FirstResponseAt == nil {
		at := s.now()
		ticket.FirstResponseAt = &at
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, s.storageErr("update ticket", err)
	}

	if fromOperator {
		if err := s.messages.MarkReadByOperator(ctx, ticketID); err != nil {
			s.logger.Warn("mark-read failed", zap.Int64("ticket_id", ticketID), zap.Error(err))
		}
		if err := s.tracker.Touch(ctx, senderID); err != nil {
			s.logger.Warn("touch failed", zap.Int64("operator_id", senderID), zap.Error(err))
		}
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventMessageAppended,
		TicketID: ticket.ID,
		Actor:    actorFor(fromOperator, senderID),
		Payload: events.MessageAppendedPayload{
			MessageID:    msg.ID,
			FromOperator: fromOperator,
			SenderID:     senderID,
		},
	})
	return msg, nil
}

// CloseTicket moves the ticket to its terminal CLOSED state. Closing an
// already-closed ticket returns Conflict and touches nothing, so operator
// load is never double-decremented.
func (s *TicketService) CloseTicket(ctx context.Context, ticketID, closedBy int64, isOperator bool, reason string) error {
	ticket, err := s.ticketByID(ctx, ticketID)
	if err != nil {
		return err
	}
	if ticket.IsClosed() {
		return apperrors.NewConflict("ticket already closed", map[string]any{"ticket_id": ticketID})
	}

	now := s.now()
	reason = strings.TrimSpace(reason)
	ticket.Status = domain.TicketStatusClosed
	ticket.ClosedAt = &now
	if reason != "" {
		ticket.CloseReason = &reason
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return s.storageErr("update ticket", err)
	}

	closure := &domain.Message{
		TicketID:       ticket.ID,
		SenderID:       closedBy,
		FromOperator:   isOperator,
		Body:           closureNote(reason),
		ReadByOperator: true,
		SentAt:         now,
	}
	if err := s.messages.Create(ctx, closure); err != nil {
		s.logger.Warn("closure note not recorded", zap.Int64("ticket_id", ticketID), zap.Error(err))
	}

	if ticket.AssignedOperatorID != nil {
		if err := s.tracker.CompleteTicket(ctx, *ticket.AssignedOperatorID); err != nil {
			return err
		}
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketClosed,
		TicketID: ticket.ID,
		Actor:    actorFor(isOperator, closedBy),
		Payload: events.TicketClosedPayload{
			Reason:     reason,
			ByOperator: isOperator,
		},
	})
	return nil
}

// GetTicketForRequester fetches a ticket and its thread, enforcing ownership.
func (s *TicketService) GetTicketForRequester(ctx context.Context, requesterID, ticketID int64) (*domain.Ticket, []domain.Message, error) {
	ticket, err := s.ticketByID(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	if ticket.RequesterID != requesterID {
		return nil, nil, apperrors.NewForbidden("access denied")
	}
	msgs, err := s.messages.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, nil, s.storageErr("list messages", err)
	}
	return ticket, msgs, nil
}

// GetTicketWithThread fetches a ticket and its thread for operators.
func (s *TicketService) GetTicketWithThread(ctx context.Context, ticketID int64) (*domain.Ticket, []domain.Message, error) {
	ticket, err := s.ticketByID(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := s.messages.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, nil, s.storageErr("list messages", err)
	}
	return ticket, msgs, nil
}

// ListRequesterTickets returns the requester's tickets, newest activity first.
func (s *TicketService) ListRequesterTickets(ctx context.Context, requesterID int64, limit, offset int) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		RequesterID: &requesterID,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		return nil, s.storageErr("list tickets", err)
	}
	return tickets, nil
}

// ListTickets returns tickets matching the filter for operator views.
func (s *TicketService) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, s.storageErr("list tickets", err)
	}
	return tickets, nil
}

func (s *TicketService) ticketByID(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, s.storageErr("get ticket", err)
	}
	return ticket, nil
}

func (s *TicketService) storageErr(op string, err error) error {
	s.logger.Error("ticket storage failure", zap.String("op", op), zap.Error(err))
	return apperrors.NewStorageError(err)
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func generateTicketKey() string {
	return "APL-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func closureNote(reason string) string {
	if reason == "" {
		return "ticket closed"
	}
	return fmt.Sprintf("ticket closed: %s", reason)
}

func userActor(userID int64) events.Actor {
	return events.Actor{Type: domain.SubjectTypeUser, UserID: &userID}
}

func operatorActor(operatorID int64) events.Actor {
	return events.Actor{Type: domain.SubjectTypeOperator, OperatorID: &operatorID}
}

func actorFor(fromOperator bool, id int64) events.Actor {
	if fromOperator {
		return operatorActor(id)
	}
	return userActor(id)
}
