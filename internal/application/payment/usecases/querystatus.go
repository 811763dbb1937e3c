package usecases

import (
	"context"
	"time"

	"github.com/pesaflow/pesaflow/internal/application/payment/gateway"
	"github.com/pesaflow/pesaflow/internal/domain/order"
	"github.com/pesaflow/pesaflow/internal/domain/transaction"
	vo "github.com/pesaflow/pesaflow/internal/domain/transaction/valueobjects"
	"github.com/pesaflow/pesaflow/internal/shared/biztime"
	"github.com/pesaflow/pesaflow/internal/shared/db"
	"github.com/pesaflow/pesaflow/internal/shared/logger"
)

// QueryStatusUseCase answers "what is this payment's state now". The store is
// authoritative: terminal rows are returned as-is, and the gateway's query
// endpoint is only consulted for active rows past the minimum poll interval.
type QueryStatusUseCase struct {
	txnRepo         transaction.TransactionRepository
	gateway         gateway.PushGateway
	resolver        *transitionResolver
	logger          logger.Interface
	minPollInterval time.Duration

	now func() time.Time
}

func NewQueryStatusUseCase(
	txnRepo transaction.TransactionRepository,
	orderRepo order.OrderRepository,
	pushGateway gateway.PushGateway,
	txManager *db.TransactionManager,
	logger logger.Interface,
	minPollInterval time.Duration,
) *QueryStatusUseCase {
	return &QueryStatusUseCase{
		txnRepo:         txnRepo,
		gateway:         pushGateway,
		resolver:        newTransitionResolver(txnRepo, orderRepo, txManager, logger),
		logger:          logger,
		minPollInterval: minPollInterval,
		now:             biztime.NowUTC,
	}
}

func (uc *QueryStatusUseCase) Execute(ctx context.Context, checkoutRequestID string) (*transaction.Transaction, error) {
	txn, err := uc.txnRepo.GetByCheckoutRequestID(ctx, checkoutRequestID)
	if err != nil {
		return nil, err
	}

	if !txn.ShouldQueryGateway(uc.now(), uc.minPollInterval) {
		return txn, nil
	}

	result, err := uc.gateway.QueryStatus(ctx, checkoutRequestID)
	if err != nil {
		// The stored state still answers the question; the gateway being
		// unreachable must not fail a read.
		uc.logger.Warnw("gateway status query failed, returning stored state",
			"checkout_request_id", checkoutRequestID,
			"error", err,
		)
		return txn, nil
	}

	return uc.applyQueryResult(ctx, txn, result)
}

// applyQueryResult folds the gateway's answer into the stored row. Every
// write is conditional on the row still being active, so a webhook landing
// mid-query simply wins.
func (uc *QueryStatusUseCase) applyQueryResult(ctx context.Context, txn *transaction.Transaction, result *gateway.QueryResult) (*transaction.Transaction, error) {
	if result.Pending {
		if err := txn.MarkProcessing(); err != nil {
			return nil, err
		}
		txn.RecordCheck(uc.now())
		if _, err := uc.txnRepo.UpdateIfStatusIn(ctx, txn, vo.ActiveStatuses()); err != nil {
			uc.logger.Warnw("failed to record status check",
				"checkout_request_id", txn.CheckoutRequestID(),
				"error", err,
			)
		}
		return txn, nil
	}

	if result.IsSuccess() {
		if result.ReceiptReference == "" {
			// The query endpoint reported success but carries no receipt.
			// COMPLETED without a receipt is not representable, so stay
			// PROCESSING until the webhook delivers it.
			uc.logger.Infow("query reports success without receipt, awaiting webhook",
				"checkout_request_id", txn.CheckoutRequestID(),
			)
			if err := txn.MarkProcessing(); err != nil {
				return nil, err
			}
			txn.RecordCheck(uc.now())
			txn.SetMetadata("query_success_awaiting_receipt", true)
			if _, err := uc.txnRepo.UpdateIfStatusIn(ctx, txn, vo.ActiveStatuses()); err != nil {
				uc.logger.Warnw("failed to record pending-receipt state",
					"checkout_request_id", txn.CheckoutRequestID(),
					"error", err,
				)
			}
			return txn, nil
		}

		txn.RecordCheck(uc.now())
		applied, err := uc.resolver.resolveCompleted(ctx, txn, result.ReceiptReference)
		if err != nil {
			return nil, err
		}
		if !applied {
			return uc.txnRepo.GetByCheckoutRequestID(ctx, txn.CheckoutRequestID())
		}
		return txn, nil
	}

	txn.RecordCheck(uc.now())
	applied, err := uc.resolver.resolveFailed(ctx, txn, result.ResultCode, result.ResultDescription)
	if err != nil {
		return nil, err
	}
	if !applied {
		return uc.txnRepo.GetByCheckoutRequestID(ctx, txn.CheckoutRequestID())
	}
	return txn, nil
}
