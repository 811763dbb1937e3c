package usecases

import (
	"context"
	"fmt"

	"github.com/pesaflow/pesaflow/internal/domain/transaction"
	apperrors "github.com/pesaflow/pesaflow/internal/shared/errors"
	"github.com/pesaflow/pesaflow/internal/shared/logger"
)

// RetryPaymentCommand requests a fresh attempt after a decline, timeout or
// cancellation. Phone number and amount default to the previous attempt's
// values when not overridden.
type RetryPaymentCommand struct {
	CheckoutRequestID string
	PhoneNumber       string
	IdempotencyKey    string
}

// RetryPaymentUseCase creates a new attempt for the order of a settled,
// non-completed transaction. The old row is permanent history; the retry is
// a brand-new transaction with its own checkout request ID.
type RetryPaymentUseCase struct {
	txnRepo    transaction.TransactionRepository
	initiateUC *InitiatePaymentUseCase
	logger     logger.Interface
}

func NewRetryPaymentUseCase(
	txnRepo transaction.TransactionRepository,
	initiateUC *InitiatePaymentUseCase,
	logger logger.Interface,
) *RetryPaymentUseCase {
	return &RetryPaymentUseCase{
		txnRepo:    txnRepo,
		initiateUC: initiateUC,
		logger:     logger,
	}
}

func (uc *RetryPaymentUseCase) Execute(ctx context.Context, cmd RetryPaymentCommand) (*InitiatePaymentResult, error) {
	prev, err := uc.txnRepo.GetByCheckoutRequestID(ctx, cmd.CheckoutRequestID)
	if err != nil {
		return nil, err
	}

	if !prev.Status().IsRetryable() {
		return nil, apperrors.NewConflictError(
			fmt.Sprintf("transaction with status %s cannot be retried", prev.Status()),
			cmd.CheckoutRequestID,
		)
	}

	phoneNumber := cmd.PhoneNumber
	if phoneNumber == "" {
		phoneNumber = prev.PhoneNumber()
	}

	uc.logger.Infow("retrying payment",
		"order_id", prev.OrderID(),
		"previous_checkout_request_id", cmd.CheckoutRequestID,
		"previous_status", prev.Status().String(),
	)

	return uc.initiateUC.Execute(ctx, InitiatePaymentCommand{
		OrderID:        prev.OrderID(),
		PhoneNumber:    phoneNumber,
		Amount:         prev.Amount(),
		IdempotencyKey: cmd.IdempotencyKey,
	})
}
