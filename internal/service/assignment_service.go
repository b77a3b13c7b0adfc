package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/appeal-service/internal/config"
	"github.com/spec-kit/appeal-service/internal/domain"
	apperrors "github.com/spec-kit/appeal-service/pkg/util/errorutil"
)

// AssignmentService scores available operators and picks the best match for
// a ticket. It never mutates workload state; callers commit the choice
// through the workload tracker afterward.
type AssignmentService struct {
	tracker *WorkloadService
	weights config.ScoringConfig
	logger  *zap.Logger
	now     func() time.Time
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	Tracker *WorkloadService
	Weights config.ScoringConfig
	Logger  *zap.Logger
	Now     func() time.Time
}

// OperatorScore pairs a candidate with its computed score.
type OperatorScore struct {
	Workload domain.OperatorWorkload
	Score    int
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		tracker: deps.Tracker,
		weights: deps.Weights,
		logger:  logger,
		now:     now,
	}
}

// FindBestOperator returns the top-ranked available operator for the
// ticket's category and priority.
func (s *AssignmentService) FindBestOperator(ctx context.Context, category domain.TicketCategory, priority domain.TicketPriority) (*domain.OperatorWorkload, error) {
	return s.FindBestOperatorExcluding(ctx, category, priority, nil)
}

// FindBestOperatorExcluding is FindBestOperator with an optional operator
// to skip; reassignment uses it so a ticket never "moves" to the operator
// it already has.
func (s *AssignmentService) FindBestOperatorExcluding(ctx context.Context, category domain.TicketCategory, priority domain.TicketPriority, exclude *int64) (*domain.OperatorWorkload, error) {
	ranked, err := s.RankOperators(ctx, category, priority)
	if err != nil {
		return nil, err
	}
	for i := range ranked {
		if exclude != nil && ranked[i].Workload.OperatorID == *exclude {
			continue
		}
		winner := ranked[i].Workload
		s.logger.Debug("operator selected",
			zap.Int64("operator_id", winner.OperatorID),
			zap.Int("score", ranked[i].Score),
			zap.String("category", string(category)),
			zap.String("priority", string(priority)),
		)
		return &winner, nil
	}
	return nil, apperrors.NewNoEligibleOperator(map[string]any{
		"category": category,
		"priority": priority,
	})
}

// RankOperators scores every available operator and returns them best
// first. Exposed for the assignment-preview diagnostic endpoint.
func (s *AssignmentService) RankOperators(ctx context.Context, category domain.TicketCategory, priority domain.TicketPriority) ([]OperatorScore, error) {
	candidates, err := s.tracker.GetAvailableOrderedByLoad(ctx)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, apperrors.NewNoEligibleOperator(map[string]any{
			"category": category,
			"priority": priority,
		})
	}

	now := s.now()
	ranked := make([]OperatorScore, 0, len(candidates))
	for _, candidate := range candidates {
		ranked = append(ranked, OperatorScore{
			Workload: candidate,
			Score:    s.scoreOperator(&candidate, category, priority, now),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Workload.ActiveTickets != b.Workload.ActiveTickets {
			return a.Workload.ActiveTickets < b.Workload.ActiveTickets
		}
		if !a.Workload.LastActivityAt.Equal(b.Workload.LastActivityAt) {
			return a.Workload.LastActivityAt.After(b.Workload.LastActivityAt)
		}
		return a.Workload.OperatorID < b.Workload.OperatorID
	})
	return ranked, nil
}

// scoreOperator computes the assignment score for one candidate. The
// priority-affinity bonus applies to HIGH only, never URGENT; that
// asymmetry is inherited production behavior and is pinned by tests.
func (s *AssignmentService) scoreOperator(w *domain.OperatorWorkload, category domain.TicketCategory, priority domain.TicketPriority, now time.Time) int {
	score := s.weights.BaseScore

	level := w.ExpertiseLevel(category)
	if level > 0 {
		score += s.expertiseScore(level)
	}

	score -= w.ActiveTickets * s.weights.LoadPenalty

	if now.Sub(w.LastActivityAt) < s.weights.RecencyWindow {
		score += s.weights.RecencyBonus
	}

	if priority == domain.TicketPriorityHigh && level >= s.weights.AffinityMinLevel {
		score += s.weights.PriorityAffinityBonus
	}

	if score < 0 {
		score = 0
	}
	return score
}

// expertiseScore maps an experience level to its score contribution.
// Linear in the level, so a higher level never scores lower.
func (s *AssignmentService) expertiseScore(level int) int {
	return level * s.weights.ExpertiseWeight
}
