package usecases

import (
	"context"
	"fmt"

	"github.com/pesaflow/pesaflow/internal/domain/transaction"
	vo "github.com/pesaflow/pesaflow/internal/domain/transaction/valueobjects"
	apperrors "github.com/pesaflow/pesaflow/internal/shared/errors"
	"github.com/pesaflow/pesaflow/internal/shared/logger"
)

// CancelPaymentUseCase stops waiting on an active attempt. Cancellation is
// local bookkeeping only: the gateway-side prompt may still reach the
// customer's device, we just no longer honor its outcome.
type CancelPaymentUseCase struct {
	txnRepo transaction.TransactionRepository
	logger  logger.Interface
}

func NewCancelPaymentUseCase(txnRepo transaction.TransactionRepository, logger logger.Interface) *CancelPaymentUseCase {
	return &CancelPaymentUseCase{txnRepo: txnRepo, logger: logger}
}

func (uc *CancelPaymentUseCase) Execute(ctx context.Context, checkoutRequestID string) (*transaction.Transaction, error) {
	txn, err := uc.txnRepo.GetByCheckoutRequestID(ctx, checkoutRequestID)
	if err != nil {
		return nil, err
	}

	if txn.Status() == vo.StatusCancelled {
		return txn, nil
	}
	if txn.Status().IsTerminal() {
		return nil, apperrors.NewConflictError(
			fmt.Sprintf("transaction already settled as %s", txn.Status()),
			checkoutRequestID,
		)
	}

	if err := txn.Cancel(); err != nil {
		return nil, err
	}

	applied, err := uc.txnRepo.UpdateIfStatusIn(ctx, txn, vo.ActiveStatuses())
	if err != nil {
		return nil, fmt.Errorf("failed to cancel transaction: %w", err)
	}
	if !applied {
		// Settled between read and write; report the state that won.
		current, err := uc.txnRepo.GetByCheckoutRequestID(ctx, checkoutRequestID)
		if err != nil {
			return nil, err
		}
		return nil, apperrors.NewConflictError(
			fmt.Sprintf("transaction settled concurrently as %s", current.Status()),
			checkoutRequestID,
		)
	}

	uc.logger.Infow("transaction cancelled",
		"checkout_request_id", checkoutRequestID,
		"order_id", txn.OrderID(),
	)
	return txn, nil
}
