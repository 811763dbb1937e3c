package usecases

import (
	"context"
	"time"

	"github.com/pesaflow/pesaflow/internal/application/payment/gateway"
	"github.com/pesaflow/pesaflow/internal/domain/order"
	"github.com/pesaflow/pesaflow/internal/domain/transaction"
	"github.com/pesaflow/pesaflow/internal/shared/biztime"
	"github.com/pesaflow/pesaflow/internal/shared/db"
	"github.com/pesaflow/pesaflow/internal/shared/logger"
)

const (
	// staleAfter is how long an active row may go unchecked before the
	// sweep picks it up. Anything a live poller is driving gets checked
	// far more often than this.
	staleAfter = 5 * time.Minute

	// abandonAfter is the age past which an active row with no gateway
	// outcome is marked TIMEOUT. Well beyond the interactive poll budget.
	abandonAfter = 15 * time.Minute

	sweepBatchSize = 100
)

// ReconcileStaleUseCase is the safety net behind the interactive poller: it
// sweeps active rows nobody is watching (server restarts, dropped clients,
// lost webhooks), queries the gateway once per row, and settles or times
// them out.
type ReconcileStaleUseCase struct {
	txnRepo  transaction.TransactionRepository
	gateway  gateway.PushGateway
	resolver *transitionResolver
	logger   logger.Interface

	now func() time.Time
}

func NewReconcileStaleUseCase(
	txnRepo transaction.TransactionRepository,
	orderRepo order.OrderRepository,
	pushGateway gateway.PushGateway,
	txManager *db.TransactionManager,
	logger logger.Interface,
) *ReconcileStaleUseCase {
	return &ReconcileStaleUseCase{
		txnRepo:  txnRepo,
		gateway:  pushGateway,
		resolver: newTransitionResolver(txnRepo, orderRepo, txManager, logger),
		logger:   logger,
		now:      biztime.NowUTC,
	}
}

// Execute sweeps one batch of stale active transactions and returns how many
// were settled or timed out.
func (uc *ReconcileStaleUseCase) Execute(ctx context.Context) (int, error) {
	now := uc.now()

	stale, err := uc.txnRepo.ListStaleActive(ctx, now.Add(-staleAfter), sweepBatchSize)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	settled := 0
	for _, txn := range stale {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		if uc.reconcileOne(ctx, txn, now) {
			settled++
		}
	}
	return settled, nil
}

func (uc *ReconcileStaleUseCase) reconcileOne(ctx context.Context, txn *transaction.Transaction, now time.Time) bool {
	result, err := uc.gateway.QueryStatus(ctx, txn.CheckoutRequestID())
	if err != nil {
		uc.logger.Warnw("reconciliation query failed",
			"checkout_request_id", txn.CheckoutRequestID(),
			"error", err,
		)
		return false
	}

	txn.RecordCheck(now)

	switch {
	case result.Pending:
		if now.Sub(txn.CreatedAt()) > abandonAfter {
			applied, err := uc.resolver.resolveTimeout(ctx, txn)
			if err != nil {
				uc.logger.Errorw("failed to time out abandoned transaction",
					"checkout_request_id", txn.CheckoutRequestID(),
					"error", err,
				)
				return false
			}
			return applied
		}
		// Still within the window; stamp the check so the next sweep
		// skips it for a while.
		if err := uc.txnRepo.Update(ctx, txn); err != nil {
			uc.logger.Warnw("failed to record reconciliation check",
				"checkout_request_id", txn.CheckoutRequestID(),
				"error", err,
			)
		}
		return false

	case result.IsSuccess() && result.ReceiptReference != "":
		applied, err := uc.resolver.resolveCompleted(ctx, txn, result.ReceiptReference)
		if err != nil {
			uc.logger.Errorw("failed to complete transaction during reconciliation",
				"checkout_request_id", txn.CheckoutRequestID(),
				"error", err,
			)
			return false
		}
		return applied

	case result.IsSuccess():
		// Success without a receipt cannot settle the row; an old row in
		// this shape gets timed out so it stops blocking the order.
		if now.Sub(txn.CreatedAt()) > abandonAfter {
			applied, err := uc.resolver.resolveTimeout(ctx, txn)
			if err != nil {
				return false
			}
			return applied
		}
		return false

	default:
		applied, err := uc.resolver.resolveFailed(ctx, txn, result.ResultCode, result.ResultDescription)
		if err != nil {
			uc.logger.Errorw("failed to fail transaction during reconciliation",
				"checkout_request_id", txn.CheckoutRequestID(),
				"error", err,
			)
			return false
		}
		return applied
	}
}
