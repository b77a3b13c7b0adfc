package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/appeal-service/internal/cache"
	"github.com/spec-kit/appeal-service/internal/domain"
	"github.com/spec-kit/appeal-service/internal/repository"
	apperrors "github.com/spec-kit/appeal-service/pkg/util/errorutil"
)

// WorkloadService is the single mutation funnel for operator workload
// counters. All writes to a given operator's record serialize on a
// per-operator lock; writes to different operators never contend beyond
// the lock-table lookup.
type WorkloadService struct {
	workloads repository.WorkloadRepository
	cache     cache.WorkloadCache
	logger    *zap.Logger
	now       func() time.Time

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// WorkloadDependencies bundles collaborators.
type WorkloadDependencies struct {
	WorkloadRepo repository.WorkloadRepository
	Cache        cache.WorkloadCache
	Logger       *zap.Logger
	Now          func() time.Time
}

// NewWorkloadService constructs the service.
func NewWorkloadService(deps WorkloadDependencies) *WorkloadService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkloadService{
		workloads: deps.WorkloadRepo,
		cache:     deps.Cache,
		logger:    logger,
		now:       now,
		locks:     make(map[int64]*sync.Mutex),
	}
}

// GetByOperator returns the operator's workload record.
func (s *WorkloadService) GetByOperator(ctx context.Context, operatorID int64) (*domain.OperatorWorkload, error) {
	workload, err := s.workloads.GetByOperator(ctx, operatorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("operator workload", map[string]any{"operator_id": operatorID})
		}
		return nil, s.storageErr("get workload", operatorID, err)
	}
	return workload, nil
}

// GetAvailableOrderedByLoad returns all available operators, least loaded
// first, reading through the snapshot cache when one is configured.
func (s *WorkloadService) GetAvailableOrderedByLoad(ctx context.Context) ([]domain.OperatorWorkload, error) {
	if s.cache != nil {
		if snapshot, ok := s.cache.GetAvailable(ctx); ok {
			return snapshot, nil
		}
	}
	workloads, err := s.workloads.ListAvailable(ctx)
	if err != nil {
		return nil, s.storageErr("list available workloads", 0, err)
	}
	if s.cache != nil {
		s.cache.SetAvailable(ctx, workloads)
	}
	return workloads, nil
}

// GetByCategoryExpertise returns operators holding an expertise record for
// the category, strongest first.
func (s *WorkloadService) GetByCategoryExpertise(ctx context.Context, category domain.TicketCategory) ([]domain.OperatorWorkload, error) {
	workloads, err := s.workloads.ListByCategoryExpertise(ctx, category)
	if err != nil {
		return nil, s.storageErr("list workloads by expertise", 0, err)
	}
	return workloads, nil
}

// AssignTicket records one more active ticket for the operator. The record
// is created lazily on first assignment.
func (s *WorkloadService) AssignTicket(ctx context.Context, operatorID int64) error {
	return s.mutate(ctx, operatorID, func(w *domain.OperatorWorkload) {
		w.ActiveTickets++
		w.TotalTickets++
		w.LastActivityAt = s.now()
	})
}

// CompleteTicket releases one active ticket, flooring the count at zero.
func (s *WorkloadService) CompleteTicket(ctx context.Context, operatorID int64) error {
	return s.mutate(ctx, operatorID, func(w *domain.OperatorWorkload) {
		if w.ActiveTickets > 0 {
			w.ActiveTickets--
		}
	})
}

// SetAvailability flips the operator's availability flag.
func (s *WorkloadService) SetAvailability(ctx context.Context, operatorID int64, available bool) error {
	return s.mutate(ctx, operatorID, func(w *domain.OperatorWorkload) {
		w.Available = available
	})
}

// Touch refreshes the operator's last-activity timestamp without changing
// any counters.
func (s *WorkloadService) Touch(ctx context.Context, operatorID int64) error {
	return s.mutate(ctx, operatorID, func(w *domain.OperatorWorkload) {
		w.LastActivityAt = s.now()
	})
}

func (s *WorkloadService) mutate(ctx context.Context, operatorID int64, apply func(*domain.OperatorWorkload)) error {
	lock := s.lockFor(operatorID)
	lock.Lock()
	defer lock.Unlock()

	workload, err := s.loadOrInit(ctx, operatorID)
	if err != nil {
		return err
	}
	apply(workload)
	if err := s.workloads.Save(ctx, workload); err != nil {
		return s.storageErr("save workload", operatorID, err)
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
	return nil
}

func (s *WorkloadService) loadOrInit(ctx context.Context, operatorID int64) (*domain.OperatorWorkload, error) {
	workload, err := s.workloads.GetByOperator(ctx, operatorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.OperatorWorkload{
				OperatorID:     operatorID,
				Available:      true,
				LastActivityAt: s.now(),
			}, nil
		}
		return nil, s.storageErr("get workload", operatorID, err)
	}
	return workload, nil
}

func (s *WorkloadService) lockFor(operatorID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[operatorID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[operatorID] = lock
	}
	return lock
}

func (s *WorkloadService) storageErr(op string, operatorID int64, err error) error {
	s.logger.Error("workload storage failure",
		zap.String("op", op),
		zap.Int64("operator_id", operatorID),
		zap.Error(err),
	)
	return apperrors.NewStorageError(err)
}
