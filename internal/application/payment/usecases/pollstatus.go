package usecases

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pesaflow/pesaflow/internal/application/payment/gateway"
	"github.com/pesaflow/pesaflow/internal/domain/order"
	"github.com/pesaflow/pesaflow/internal/domain/transaction"
	"github.com/pesaflow/pesaflow/internal/shared/db"
	"github.com/pesaflow/pesaflow/internal/shared/logger"
)

// PollStatusUseCase drives the bounded wait for a single payment outcome:
// one status check per interval until the row settles or the attempt budget
// runs out, at which point the transaction is marked TIMEOUT locally.
// Concurrent waiters for the same checkout request ID share one poll loop
// via singleflight.
type PollStatusUseCase struct {
	txnRepo  transaction.TransactionRepository
	query    *QueryStatusUseCase
	resolver *transitionResolver
	logger   logger.Interface

	interval    time.Duration
	maxAttempts int

	group singleflight.Group
}

func NewPollStatusUseCase(
	txnRepo transaction.TransactionRepository,
	orderRepo order.OrderRepository,
	pushGateway gateway.PushGateway,
	txManager *db.TransactionManager,
	logger logger.Interface,
	interval time.Duration,
	maxAttempts int,
	minPollInterval time.Duration,
) *PollStatusUseCase {
	return &PollStatusUseCase{
		txnRepo:     txnRepo,
		query:       NewQueryStatusUseCase(txnRepo, orderRepo, pushGateway, txManager, logger, minPollInterval),
		resolver:    newTransitionResolver(txnRepo, orderRepo, txManager, logger),
		logger:      logger,
		interval:    interval,
		maxAttempts: maxAttempts,
	}
}

// Execute blocks until the transaction reaches a terminal state, the poll
// budget is exhausted, or ctx is cancelled. On cancellation the stored state
// is returned as-is; the transaction stays active for other signals.
func (uc *PollStatusUseCase) Execute(ctx context.Context, checkoutRequestID string) (*transaction.Transaction, error) {
	v, err, shared := uc.group.Do(checkoutRequestID, func() (interface{}, error) {
		return uc.poll(ctx, checkoutRequestID)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		uc.logger.Debugw("poll loop shared with concurrent waiter",
			"checkout_request_id", checkoutRequestID,
		)
	}
	return v.(*transaction.Transaction), nil
}

func (uc *PollStatusUseCase) poll(ctx context.Context, checkoutRequestID string) (*transaction.Transaction, error) {
	txn, err := uc.txnRepo.GetByCheckoutRequestID(ctx, checkoutRequestID)
	if err != nil {
		return nil, err
	}
	if txn.Status().IsTerminal() {
		return txn, nil
	}

	ticker := time.NewTicker(uc.interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= uc.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			uc.logger.Debugw("poll loop cancelled",
				"checkout_request_id", checkoutRequestID,
				"attempt", attempt,
			)
			return txn, nil
		case <-ticker.C:
		}

		txn, err = uc.query.Execute(ctx, checkoutRequestID)
		if err != nil {
			return nil, err
		}
		if txn.Status().IsTerminal() {
			return txn, nil
		}
	}

	// Budget exhausted with no terminal signal. The timeout write is
	// conditional, so a webhook landing at this exact moment still wins.
	applied, err := uc.resolver.resolveTimeout(ctx, txn)
	if err != nil {
		return nil, err
	}
	if !applied {
		return uc.txnRepo.GetByCheckoutRequestID(ctx, checkoutRequestID)
	}
	return txn, nil
}
