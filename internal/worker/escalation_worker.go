package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/appeal-service/internal/service"
)

// StartEscalationWorker runs the overdue-ticket sweep on a fixed interval
// until the context is cancelled. The sweeper itself is single-flight, so
// a slow sweep is skipped rather than stacked.
func StartEscalationWorker(ctx context.Context, sweeper *service.EscalationService, interval time.Duration, logger *zap.Logger) {
	if sweeper == nil || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				logger.Info("escalation worker stopped")
				return
			case <-ticker.C:
				count, err := sweeper.RunOnce(ctx, time.Now())
				if err != nil {
					logger.Warn("escalation sweep failed", zap.Error(err))
					continue
				}
				if count > 0 {
					logger.Info("escalation sweep finished", zap.Int("escalated", count))
				}
			}
		}
	}()
}
