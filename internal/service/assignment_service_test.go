package service

import (
	"context"
	"testing"
	"time"

	"github.com/spec-kit/appeal-service/internal/domain"
	apperrors "github.com/spec-kit/appeal-service/pkg/util/errorutil"
)

func billingExpertise(level int) []domain.CategoryExpertise {
	return []domain.CategoryExpertise{{Category: domain.CategoryBilling, Level: level}}
}

func TestRankOperatorsPrefersExpertise(t *testing.T) {
	env := newTicketEnv()
	env.addWorkload(domain.OperatorWorkload{OperatorID: 1, Available: true, Expertise: billingExpertise(5)})
	env.addWorkload(domain.OperatorWorkload{OperatorID: 2, Available: true, Expertise: billingExpertise(1)})

	ranked, err := env.engine.RankOperators(context.Background(), domain.CategoryBilling, domain.TicketPriorityNormal)
	if err != nil {
		t.Fatalf("RankOperators: %v", err)
	}
	if ranked[0].Workload.OperatorID != 1 {
		t.Fatalf("top operator = %d, want 1", ranked[0].Workload.OperatorID)
	}
	// base 100 + level*10 + recency 30
	if ranked[0].Score != 180 || ranked[1].Score != 140 {
		t.Fatalf("scores = %d/%d, want 180/140", ranked[0].Score, ranked[1].Score)
	}
}

func TestRankOperatorsAppliesLoadPenalty(t *testing.T) {
	env := newTicketEnv()
	env.addWorkload(domain.OperatorWorkload{OperatorID: 1, ActiveTickets: 3, Available: true})
	env.addWorkload(domain.OperatorWorkload{OperatorID: 2, ActiveTickets: 0, Available: true})

	best, err := env.engine.FindBestOperator(context.Background(), domain.CategoryGeneral, domain.TicketPriorityNormal)
	if err != nil {
		t.Fatalf("FindBestOperator: %v", err)
	}
	if best.OperatorID != 2 {
		t.Fatalf("best = %d, want idle operator 2", best.OperatorID)
	}
}

func TestRecencyBonusBoundary(t *testing.T) {
	env := newTicketEnv()
	// Exactly at the window edge earns nothing; just inside earns the bonus.
	env.addWorkload(domain.OperatorWorkload{OperatorID: 1, Available: true, LastActivityAt: env.now.Add(-4 * time.Hour)})
	env.addWorkload(domain.OperatorWorkload{OperatorID: 2, Available: true, LastActivityAt: env.now.Add(-4*time.Hour + time.Second)})

	ranked, err := env.engine.RankOperators(context.Background(), domain.CategoryGeneral, domain.TicketPriorityNormal)
	if err != nil {
		t.Fatalf("RankOperators: %v", err)
	}
	if ranked[0].Workload.OperatorID != 2 || ranked[0].Score != 130 {
		t.Fatalf("top = op %d score %d, want op 2 score 130", ranked[0].Workload.OperatorID, ranked[0].Score)
	}
	if ranked[1].Score != 100 {
		t.Fatalf("stale operator score = %d, want 100", ranked[1].Score)
	}
}

func TestHighPriorityAffinityBonus(t *testing.T) {
	env := newTicketEnv()
	env.addWorkload(domain.OperatorWorkload{OperatorID: 1, Available: true, Expertise: billingExpertise(5)})
	env.addWorkload(domain.OperatorWorkload{OperatorID: 2, Available: true, Expertise: billingExpertise(1)})

	ranked, err := env.engine.RankOperators(context.Background(), domain.CategoryBilling, domain.TicketPriorityHigh)
	if err != nil {
		t.Fatalf("RankOperators: %v", err)
	}
	// 100 + 50 expertise + 30 recency + 50 affinity vs 100 + 10 + 30.
	if ranked[0].Score != 230 || ranked[1].Score != 140 {
		t.Fatalf("scores = %d/%d, want 230/140", ranked[0].Score, ranked[1].Score)
	}
}

func TestUrgentPriorityGetsNoAffinityBonus(t *testing.T) {
	env := newTicketEnv()
	env.addWorkload(domain.OperatorWorkload{OperatorID: 1, Available: true, Expertise: billingExpertise(5)})

	ranked, err := env.engine.RankOperators(context.Background(), domain.CategoryBilling, domain.TicketPriorityUrgent)
	if err != nil {
		t.Fatalf("RankOperators: %v", err)
	}
	if ranked[0].Score != 180 {
		t.Fatalf("urgent score = %d, want 180 (no affinity bonus)", ranked[0].Score)
	}
}

func TestAffinityRequiresMinimumLevel(t *testing.T) {
	env := newTicketEnv()
	env.addWorkload(domain.OperatorWorkload{OperatorID: 1, Available: true, Expertise: billingExpertise(3)})

	ranked, err := env.engine.RankOperators(context.Background(), domain.CategoryBilling, domain.TicketPriorityHigh)
	if err != nil {
		t.Fatalf("RankOperators: %v", err)
	}
	if ranked[0].Score != 160 {
		t.Fatalf("score = %d, want 160 (level 3 below affinity threshold)", ranked[0].Score)
	}
}

func TestScoreFloorsAtZero(t *testing.T) {
	env := newTicketEnv()
	env.addWorkload(domain.OperatorWorkload{
		OperatorID:     1,
		ActiveTickets:  10,
		Available:      true,
		LastActivityAt: env.now.Add(-24 * time.Hour),
	})

	ranked, err := env.engine.RankOperators(context.Background(), domain.CategoryGeneral, domain.TicketPriorityNormal)
	if err != nil {
		t.Fatalf("RankOperators: %v", err)
	}
	if ranked[0].Score != 0 {
		t.Fatalf("score = %d, want floor 0", ranked[0].Score)
	}
}

func TestNoAvailableOperators(t *testing.T) {
	env := newTicketEnv()
	env.addWorkload(domain.OperatorWorkload{OperatorID: 1, Available: false})

	_, err := env.engine.FindBestOperator(context.Background(), domain.CategoryGeneral, domain.TicketPriorityNormal)
	if !apperrors.IsCode(err, "NO_ELIGIBLE_OPERATOR") {
		t.Fatalf("err = %v, want NO_ELIGIBLE_OPERATOR", err)
	}
}

func TestTieBreakFewerActiveThenLowestID(t *testing.T) {
	env := newTicketEnv()
	stale := env.now.Add(-24 * time.Hour)
	// Operators 1 and 2 tie on score 100; operator 2 carries less load.
	env.addWorkload(domain.OperatorWorkload{OperatorID: 1, ActiveTickets: 1, Available: true, LastActivityAt: stale, Expertise: billingExpertise(2)})
	env.addWorkload(domain.OperatorWorkload{OperatorID: 2, ActiveTickets: 0, Available: true, LastActivityAt: stale})
	// Operators 3 and 4 tie on every criterion except id.
	env.addWorkload(domain.OperatorWorkload{OperatorID: 4, ActiveTickets: 5, Available: true, LastActivityAt: stale})
	env.addWorkload(domain.OperatorWorkload{OperatorID: 3, ActiveTickets: 5, Available: true, LastActivityAt: stale})

	ranked, err := env.engine.RankOperators(context.Background(), domain.CategoryBilling, domain.TicketPriorityNormal)
	if err != nil {
		t.Fatalf("RankOperators: %v", err)
	}
	if ranked[0].Workload.OperatorID != 2 || ranked[1].Workload.OperatorID != 1 {
		t.Fatalf("load tie-break: got %d,%d want 2,1", ranked[0].Workload.OperatorID, ranked[1].Workload.OperatorID)
	}
	if ranked[2].Workload.OperatorID != 3 || ranked[3].Workload.OperatorID != 4 {
		t.Fatalf("id tie-break: got %d,%d want 3,4", ranked[2].Workload.OperatorID, ranked[3].Workload.OperatorID)
	}
}

func TestFindBestExcludesGivenOperator(t *testing.T) {
	env := newTicketEnv()
	env.addWorkload(domain.OperatorWorkload{OperatorID: 1, Available: true, Expertise: billingExpertise(5)})
	env.addWorkload(domain.OperatorWorkload{OperatorID: 2, Available: true})

	exclude := int64(1)
	best, err := env.engine.FindBestOperatorExcluding(context.Background(), domain.CategoryBilling, domain.TicketPriorityNormal, &exclude)
	if err != nil {
		t.Fatalf("FindBestOperatorExcluding: %v", err)
	}
	if best.OperatorID != 2 {
		t.Fatalf("best = %d, want 2", best.OperatorID)
	}

	only := int64(2)
	env.workloads.mu.Lock()
	delete(env.workloads.workloads, 1)
	env.workloads.mu.Unlock()
	_, err = env.engine.FindBestOperatorExcluding(context.Background(), domain.CategoryBilling, domain.TicketPriorityNormal, &only)
	if !apperrors.IsCode(err, "NO_ELIGIBLE_OPERATOR") {
		t.Fatalf("err = %v, want NO_ELIGIBLE_OPERATOR when sole candidate is excluded", err)
	}
}
