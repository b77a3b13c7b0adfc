package service

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/appeal-service/internal/observability"
	"github.com/spec-kit/appeal-service/internal/repository"
	apperrors "github.com/spec-kit/appeal-service/pkg/util/errorutil"
)

// EscalationService sweeps stale unanswered tickets and forces them
// through reassignment. One sweep runs at a time; an overlapping call
// returns immediately.
type EscalationService struct {
	tickets   repository.TicketRepository
	lifecycle *TicketService
	threshold time.Duration
	logger    *zap.Logger
	metrics   *observability.Metrics

	running atomic.Bool
}

// EscalationDependencies bundles collaborators.
type EscalationDependencies struct {
	TicketRepo repository.TicketRepository
	Lifecycle  *TicketService
	Threshold  time.Duration
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// NewEscalationService constructs the sweeper.
func NewEscalationService(deps EscalationDependencies) *EscalationService {
	threshold := deps.Threshold
	if threshold <= 0 {
		threshold = 24 * time.Hour
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EscalationService{
		tickets:   deps.TicketRepo,
		lifecycle: deps.Lifecycle,
		threshold: threshold,
		logger:    logger,
		metrics:   deps.Metrics,
	}
}

// RunOnce finds overdue tickets and reassigns each one. Individual
// failures are logged and skipped; one bad ticket never blocks the rest.
// Returns the number of tickets successfully escalated.
func (s *EscalationService) RunOnce(ctx context.Context, now time.Time) (int, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Debug("escalation sweep already in flight; skipping")
		return 0, nil
	}
	defer s.running.Store(false)

	overdue, err := s.tickets.ListOverdue(ctx, now.Add(-s.threshold))
	if err != nil {
		s.logger.Error("overdue listing failed", zap.Error(err))
		return 0, apperrors.NewStorageError(err)
	}

	escalated := 0
	for i := range overdue {
		ticket := &overdue[i]
		if ctx.Err() != nil {
			break
		}
		operatorID, err := s.lifecycle.ReassignTicket(ctx, ticket.ID, ReasonOverdue)
		if err != nil {
			s.logger.Warn("escalation skipped",
				zap.Int64("ticket_id", ticket.ID),
				zap.Error(err),
			)
			continue
		}
		s.logger.Info("ticket escalated",
			zap.Int64("ticket_id", ticket.ID),
			zap.Int64("operator_id", operatorID),
		)
		escalated++
	}

	s.metrics.RecordEscalation(escalated)
	return escalated, nil
}
