package scheduler

import (
	"context"
	"sync"
	"time"

	paymentUsecases "github.com/pesaflow/pesaflow/internal/application/payment/usecases"
	"github.com/pesaflow/pesaflow/internal/shared/logger"
)

// ReconciliationScheduler runs the stale-transaction sweep on a fixed
// interval. It is the backstop for outcomes the interactive poller never
// saw: lost webhooks, dropped clients, restarts mid-poll.
type ReconciliationScheduler struct {
	reconcileUC *paymentUsecases.ReconcileStaleUseCase
	logger      logger.Interface
	stopChan    chan struct{}
	stopOnce    sync.Once      // Ensures Stop() is only called once
	wg          sync.WaitGroup // Tracks running goroutines for graceful shutdown
	interval    time.Duration
}

func NewReconciliationScheduler(
	reconcileUC *paymentUsecases.ReconcileStaleUseCase,
	interval time.Duration,
	logger logger.Interface,
) *ReconciliationScheduler {
	return &ReconciliationScheduler{
		reconcileUC: reconcileUC,
		logger:      logger,
		stopChan:    make(chan struct{}),
		interval:    interval,
	}
}

// Start starts the scheduler and returns immediately.
func (s *ReconciliationScheduler) Start(ctx context.Context) {
	s.logger.Infow("starting reconciliation scheduler", "interval", s.interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runSweepLoop(ctx)
	}()
}

// Stop stops the scheduler gracefully and waits for the sweep goroutine.
// Safe to call multiple times.
func (s *ReconciliationScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Infow("stopping reconciliation scheduler")
		close(s.stopChan)
		s.wg.Wait()
		s.logger.Infow("reconciliation scheduler stopped")
	})
}

func (s *ReconciliationScheduler) runSweepLoop(ctx context.Context) {
	// Run immediately on startup to catch anything left over from before
	// the restart.
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Infow("reconciliation scheduler stopped due to context cancellation")
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *ReconciliationScheduler) sweep(ctx context.Context) {
	startTime := time.Now()

	settled, err := s.reconcileUC.Execute(ctx)
	if err != nil {
		s.logger.Errorw("stale transaction sweep failed",
			"error", err,
			"duration", time.Since(startTime),
		)
		return
	}
	if settled > 0 {
		s.logger.Infow("stale transactions reconciled",
			"count", settled,
			"duration", time.Since(startTime),
		)
	}
}
