package usecases

import (
	"context"

	"github.com/pesaflow/pesaflow/internal/domain/order"
	"github.com/pesaflow/pesaflow/internal/domain/transaction"
	"github.com/pesaflow/pesaflow/internal/shared/biztime"
	"github.com/pesaflow/pesaflow/internal/shared/db"
	apperrors "github.com/pesaflow/pesaflow/internal/shared/errors"
	"github.com/pesaflow/pesaflow/internal/shared/logger"
)

// CallbackCommand is the parsed webhook payload. ReceiptReference comes from
// the metadata items and is only present on success.
type CallbackCommand struct {
	CheckoutRequestID string
	MerchantRequestID string
	ResultCode        int
	ResultDescription string
	ReceiptReference  string
}

// HandleCallbackUseCase applies the gateway's asynchronous outcome. It is
// idempotent: replays of an already-applied outcome are dropped, and a
// callback that loses the race against a concurrent poll becomes a no-op.
type HandleCallbackUseCase struct {
	txnRepo  transaction.TransactionRepository
	resolver *transitionResolver
	logger   logger.Interface
}

func NewHandleCallbackUseCase(
	txnRepo transaction.TransactionRepository,
	orderRepo order.OrderRepository,
	txManager *db.TransactionManager,
	logger logger.Interface,
) *HandleCallbackUseCase {
	return &HandleCallbackUseCase{
		txnRepo:  txnRepo,
		resolver: newTransitionResolver(txnRepo, orderRepo, txManager, logger),
		logger:   logger,
	}
}

func (uc *HandleCallbackUseCase) Execute(ctx context.Context, cmd CallbackCommand) error {
	if cmd.CheckoutRequestID == "" {
		return apperrors.NewValidationError("checkout request ID is required")
	}

	txn, err := uc.txnRepo.GetByCheckoutRequestID(ctx, cmd.CheckoutRequestID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			uc.logger.Warnw("callback references unknown transaction, dropped",
				"checkout_request_id", cmd.CheckoutRequestID,
				"merchant_request_id", cmd.MerchantRequestID,
			)
			return apperrors.NewUnknownTransactionError("callback references unknown transaction", cmd.CheckoutRequestID)
		}
		return err
	}

	if txn.Status().IsTerminal() {
		return uc.handleLateCallback(ctx, txn, cmd)
	}

	if cmd.ResultCode == transaction.ResultCodeSuccess {
		if cmd.ReceiptReference == "" {
			// A success outcome must carry its receipt; without one the
			// completed state cannot be recorded. Leave the row active for
			// the poller and reconciliation to settle.
			uc.logger.Errorw("success callback missing receipt reference, ignored",
				"checkout_request_id", cmd.CheckoutRequestID,
			)
			return apperrors.NewValidationError("success callback missing receipt reference", cmd.CheckoutRequestID)
		}
		_, err := uc.resolver.resolveCompleted(ctx, txn, cmd.ReceiptReference)
		return err
	}

	_, err = uc.resolver.resolveFailed(ctx, txn, cmd.ResultCode, cmd.ResultDescription)
	return err
}

// handleLateCallback records an outcome that arrived after the row was
// already terminal. Replays of the same outcome are dropped silently; a
// conflicting outcome after a local TIMEOUT or CANCELLED is kept as audit
// metadata only, the status and the order are never changed automatically.
func (uc *HandleCallbackUseCase) handleLateCallback(ctx context.Context, txn *transaction.Transaction, cmd CallbackCommand) error {
	if txn.ResultCode() != nil && *txn.ResultCode() == cmd.ResultCode {
		uc.logger.Infow("duplicate callback dropped",
			"checkout_request_id", cmd.CheckoutRequestID,
			"status", txn.Status().String(),
		)
		return nil
	}

	uc.logger.Warnw("late callback after terminal state, recorded for audit",
		"checkout_request_id", cmd.CheckoutRequestID,
		"status", txn.Status().String(),
		"late_result_code", cmd.ResultCode,
	)

	txn.RecordLateCallback(cmd.ResultCode, cmd.ResultDescription, cmd.ReceiptReference, biztime.NowUTC())
	if err := uc.txnRepo.Update(ctx, txn); err != nil {
		uc.logger.Errorw("failed to persist late callback audit metadata",
			"checkout_request_id", cmd.CheckoutRequestID,
			"error", err,
		)
	}
	return nil
}
