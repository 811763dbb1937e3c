package usecases

import (
	"context"
	"fmt"

	"github.com/pesaflow/pesaflow/internal/domain/order"
	"github.com/pesaflow/pesaflow/internal/domain/transaction"
	vo "github.com/pesaflow/pesaflow/internal/domain/transaction/valueobjects"
	"github.com/pesaflow/pesaflow/internal/shared/db"
	"github.com/pesaflow/pesaflow/internal/shared/logger"
)

// transitionResolver applies terminal outcomes. The webhook path, the status
// query path and the background poller all funnel through it, so the
// conditional write and the order flip happen the same way regardless of
// which signal arrived first.
type transitionResolver struct {
	txnRepo   transaction.TransactionRepository
	orderRepo order.OrderRepository
	txManager *db.TransactionManager
	logger    logger.Interface
}

func newTransitionResolver(
	txnRepo transaction.TransactionRepository,
	orderRepo order.OrderRepository,
	txManager *db.TransactionManager,
	logger logger.Interface,
) *transitionResolver {
	return &transitionResolver{
		txnRepo:   txnRepo,
		orderRepo: orderRepo,
		txManager: txManager,
		logger:    logger,
	}
}

// resolveCompleted marks the transaction COMPLETED with its receipt and flips
// the order to PAID in one database transaction. The write is conditional on
// the row still being active; applied=false means a concurrent signal already
// settled it and this caller's outcome is discarded.
func (r *transitionResolver) resolveCompleted(ctx context.Context, txn *transaction.Transaction, receiptReference string) (bool, error) {
	if err := txn.Complete(receiptReference); err != nil {
		return false, err
	}

	var applied bool
	err := r.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		var err error
		applied, err = r.txnRepo.UpdateIfStatusIn(txCtx, txn, vo.ActiveStatuses())
		if err != nil {
			return err
		}
		if !applied {
			return nil
		}
		return r.orderRepo.UpdatePaymentStatus(txCtx, txn.OrderID(), order.PaymentStatusPaid)
	})
	if err != nil {
		return false, fmt.Errorf("failed to apply completed transition: %w", err)
	}

	if applied {
		r.logger.Infow("transaction completed",
			"checkout_request_id", txn.CheckoutRequestID(),
			"order_id", txn.OrderID(),
			"receipt_reference", receiptReference,
		)
	} else {
		r.logger.Infow("completed transition lost the race, already settled",
			"checkout_request_id", txn.CheckoutRequestID(),
		)
	}
	return applied, nil
}

// resolveFailed marks the transaction FAILED with the gateway's decline code
// and flips the order to FAILED. Declines are expected outcomes; nothing here
// returns a gateway error.
func (r *transitionResolver) resolveFailed(ctx context.Context, txn *transaction.Transaction, resultCode int, resultDescription string) (bool, error) {
	if err := txn.Fail(resultCode, resultDescription); err != nil {
		return false, err
	}

	var applied bool
	err := r.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		var err error
		applied, err = r.txnRepo.UpdateIfStatusIn(txCtx, txn, vo.ActiveStatuses())
		if err != nil {
			return err
		}
		if !applied {
			return nil
		}
		return r.orderRepo.UpdatePaymentStatus(txCtx, txn.OrderID(), order.PaymentStatusFailed)
	})
	if err != nil {
		return false, fmt.Errorf("failed to apply failed transition: %w", err)
	}

	if applied {
		r.logger.Infow("transaction failed",
			"checkout_request_id", txn.CheckoutRequestID(),
			"order_id", txn.OrderID(),
			"result_code", resultCode,
			"result_description", resultDescription,
		)
	} else {
		r.logger.Infow("failed transition lost the race, already settled",
			"checkout_request_id", txn.CheckoutRequestID(),
		)
	}
	return applied, nil
}

// resolveTimeout records the local poll-budget judgment. The order is left
// untouched: the gateway may still settle the payment and a later
// reconciliation decides what the order becomes.
func (r *transitionResolver) resolveTimeout(ctx context.Context, txn *transaction.Transaction) (bool, error) {
	if err := txn.MarkTimeout(); err != nil {
		return false, err
	}

	applied, err := r.txnRepo.UpdateIfStatusIn(ctx, txn, vo.ActiveStatuses())
	if err != nil {
		return false, fmt.Errorf("failed to apply timeout transition: %w", err)
	}

	if applied {
		r.logger.Warnw("transaction timed out waiting for gateway outcome",
			"checkout_request_id", txn.CheckoutRequestID(),
			"order_id", txn.OrderID(),
			"check_count", txn.CheckCount(),
		)
	}
	return applied, nil
}
