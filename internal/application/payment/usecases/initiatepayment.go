package usecases

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pesaflow/pesaflow/internal/application/payment/gateway"
	"github.com/pesaflow/pesaflow/internal/application/payment/idempotency"
	"github.com/pesaflow/pesaflow/internal/domain/order"
	"github.com/pesaflow/pesaflow/internal/domain/transaction"
	vo "github.com/pesaflow/pesaflow/internal/domain/transaction/valueobjects"
	"github.com/pesaflow/pesaflow/internal/shared/db"
	apperrors "github.com/pesaflow/pesaflow/internal/shared/errors"
	"github.com/pesaflow/pesaflow/internal/shared/logger"
	"github.com/pesaflow/pesaflow/internal/shared/phone"
)

// InitiatePaymentCommand carries the initiation request. IdempotencyKey is
// optional; one is generated when the client does not supply its own.
// AllowReplace cancels an active attempt for the order instead of rejecting
// the new one.
type InitiatePaymentCommand struct {
	OrderID        uint
	PhoneNumber    string
	Amount         decimal.Decimal
	Description    string
	IdempotencyKey string
	AllowReplace   bool
}

// InitiatePaymentResult is the initiation outcome. Duplicate is set when the
// idempotency key matched a previous submission and the existing transaction
// was returned instead of pushing again.
type InitiatePaymentResult struct {
	Transaction *transaction.Transaction
	Duplicate   bool
}

type InitiatePaymentUseCase struct {
	txnRepo          transaction.TransactionRepository
	orderRepo        order.OrderRepository
	gateway          gateway.PushGateway
	idemStore        idempotency.Store
	txManager        *db.TransactionManager
	logger           logger.Interface
	accountReference string
	callbackURL      string
}

func NewInitiatePaymentUseCase(
	txnRepo transaction.TransactionRepository,
	orderRepo order.OrderRepository,
	pushGateway gateway.PushGateway,
	idemStore idempotency.Store,
	txManager *db.TransactionManager,
	logger logger.Interface,
	accountReference string,
	callbackURL string,
) *InitiatePaymentUseCase {
	return &InitiatePaymentUseCase{
		txnRepo:          txnRepo,
		orderRepo:        orderRepo,
		gateway:          pushGateway,
		idemStore:        idemStore,
		txManager:        txManager,
		logger:           logger,
		accountReference: accountReference,
		callbackURL:      callbackURL,
	}
}

func (uc *InitiatePaymentUseCase) Execute(ctx context.Context, cmd InitiatePaymentCommand) (*InitiatePaymentResult, error) {
	msisdn, err := phone.Normalize(cmd.PhoneNumber)
	if err != nil {
		return nil, err
	}
	if !cmd.Amount.IsPositive() {
		return nil, apperrors.NewValidationError("amount must be positive", cmd.Amount.String())
	}

	idemKey := cmd.IdempotencyKey
	if idemKey == "" {
		idemKey = uuid.NewString()
	} else {
		// A client-supplied key may be a re-submission of an attempt we
		// already accepted; hand back that attempt instead of pushing again.
		if existing, found, err := uc.idemStore.Lookup(ctx, idemKey); err != nil {
			uc.logger.Warnw("idempotency lookup failed, proceeding without dedup", "error", err)
		} else if found {
			txn, err := uc.txnRepo.GetByCheckoutRequestID(ctx, existing)
			if err != nil {
				return nil, fmt.Errorf("failed to load transaction for idempotency key: %w", err)
			}
			uc.logger.Infow("duplicate initiation absorbed by idempotency key",
				"idempotency_key", idemKey,
				"checkout_request_id", existing,
			)
			return &InitiatePaymentResult{Transaction: txn, Duplicate: true}, nil
		}
	}

	ord, err := uc.orderRepo.GetByID(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if ord.PaymentStatus == order.PaymentStatusPaid {
		return nil, apperrors.NewConflictError("order is already paid")
	}

	if err := uc.ensureNoActiveAttempt(ctx, cmd.OrderID, cmd.AllowReplace); err != nil {
		return nil, err
	}

	txn, err := transaction.NewTransaction(cmd.OrderID, msisdn, cmd.Amount, idemKey)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid payment request", err.Error())
	}

	description := cmd.Description
	if description == "" {
		description = fmt.Sprintf("Payment for order %d", cmd.OrderID)
	}

	resp, err := uc.gateway.PushPayment(ctx, gateway.PushRequest{
		PhoneNumber:      msisdn,
		Amount:           cmd.Amount,
		AccountReference: uc.accountReference,
		Description:      description,
		CallbackURL:      uc.callbackURL,
	})
	if err != nil {
		// Nothing persisted for a refused or unreachable push; the caller
		// may simply try again.
		return nil, err
	}

	if err := txn.AttachGatewayIDs(resp.CheckoutRequestID, resp.MerchantRequestID); err != nil {
		return nil, apperrors.NewInternalError("failed to record gateway identifiers", err.Error())
	}

	// Re-check the single-active-attempt rule inside the transaction so two
	// concurrent initiations for the same order cannot both persist.
	err = uc.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		active, err := uc.txnRepo.GetActiveByOrderID(txCtx, cmd.OrderID)
		if err != nil {
			return err
		}
		if active != nil {
			return apperrors.NewConflictError("an active payment attempt already exists for this order", active.CheckoutRequestID())
		}
		return uc.txnRepo.Create(txCtx, txn)
	})
	if err != nil {
		return nil, err
	}

	if winner, stored, err := uc.idemStore.Remember(ctx, idemKey, txn.CheckoutRequestID()); err != nil {
		uc.logger.Warnw("failed to record idempotency key",
			"idempotency_key", idemKey,
			"error", err,
		)
	} else if !stored {
		uc.logger.Warnw("idempotency key raced with a concurrent submission",
			"idempotency_key", idemKey,
			"winner_checkout_request_id", winner,
			"checkout_request_id", txn.CheckoutRequestID(),
		)
	}

	uc.logger.Infow("payment initiated",
		"order_id", cmd.OrderID,
		"checkout_request_id", txn.CheckoutRequestID(),
		"merchant_request_id", txn.MerchantRequestID(),
		"amount", cmd.Amount.String(),
	)

	return &InitiatePaymentResult{Transaction: txn}, nil
}

// ensureNoActiveAttempt enforces one active transaction per order. With
// AllowReplace the stale attempt is cancelled locally first; the customer may
// still see the old prompt, we just stop waiting on it.
func (uc *InitiatePaymentUseCase) ensureNoActiveAttempt(ctx context.Context, orderID uint, allowReplace bool) error {
	active, err := uc.txnRepo.GetActiveByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if active == nil {
		return nil
	}

	if !allowReplace {
		return apperrors.NewConflictError("an active payment attempt already exists for this order", active.CheckoutRequestID())
	}

	if err := active.Cancel(); err != nil {
		return err
	}
	applied, err := uc.txnRepo.UpdateIfStatusIn(ctx, active, vo.ActiveStatuses())
	if err != nil {
		return fmt.Errorf("failed to cancel previous attempt: %w", err)
	}
	if !applied {
		// The old attempt settled while we were replacing it; surface the
		// conflict so the caller re-reads the current state.
		return apperrors.NewConflictError("previous payment attempt settled concurrently", active.CheckoutRequestID())
	}

	uc.logger.Infow("cancelled previous attempt before replacement",
		"order_id", orderID,
		"checkout_request_id", active.CheckoutRequestID(),
	)
	return nil
}
