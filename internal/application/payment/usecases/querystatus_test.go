package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesaflow/pesaflow/internal/application/payment/gateway"
	"github.com/pesaflow/pesaflow/internal/domain/order"
	vo "github.com/pesaflow/pesaflow/internal/domain/transaction/valueobjects"
	apperrors "github.com/pesaflow/pesaflow/internal/shared/errors"
)

func TestQueryStatus_TerminalAnsweredFromStore(t *testing.T) {
	env := newTestEnv(t)
	txn := env.initiate(t, 1)

	require.NoError(t, env.callbackUC().Execute(context.Background(), CallbackCommand{
		CheckoutRequestID: txn.CheckoutRequestID(),
		ResultCode:        0,
		ReceiptReference:  "ABC123",
	}))

	got, err := env.queryUC(2*time.Second).Execute(context.Background(), txn.CheckoutRequestID())
	require.NoError(t, err)

	assert.Equal(t, vo.StatusCompleted, got.Status())
	assert.Equal(t, 0, env.gateway.queryCalls, "terminal rows never hit the gateway")
}

func TestQueryStatus_PendingMarksProcessing(t *testing.T) {
	env := newTestEnv(t)
	txn := env.initiate(t, 1)

	got, err := env.queryUC(0).Execute(context.Background(), txn.CheckoutRequestID())
	require.NoError(t, err)

	assert.Equal(t, vo.StatusProcessing, got.Status())
	assert.Equal(t, 1, got.CheckCount())
	assert.Equal(t, 1, env.gateway.queryCalls)
	assert.Equal(t, vo.StatusProcessing, env.txnRepo.status(txn.CheckoutRequestID()))
}

func TestQueryStatus_MinIntervalThrottle(t *testing.T) {
	env := newTestEnv(t)
	txn := env.initiate(t, 1)
	uc := env.queryUC(time.Minute)

	_, err := uc.Execute(context.Background(), txn.CheckoutRequestID())
	require.NoError(t, err)
	_, err = uc.Execute(context.Background(), txn.CheckoutRequestID())
	require.NoError(t, err)

	assert.Equal(t, 1, env.gateway.queryCalls, "second read inside the interval must not hit the gateway")
}

func TestQueryStatus_SuccessWithReceiptCompletes(t *testing.T) {
	env := newTestEnv(t)
	txn := env.initiate(t, 1)
	env.gateway.queryFn = func(string) (*gateway.QueryResult, error) {
		return &gateway.QueryResult{ResultCode: 0, ResultDescription: "Success", ReceiptReference: "ABC123"}, nil
	}

	got, err := env.queryUC(0).Execute(context.Background(), txn.CheckoutRequestID())
	require.NoError(t, err)

	assert.Equal(t, vo.StatusCompleted, got.Status())
	require.NotNil(t, got.ReceiptReference())
	assert.Equal(t, "ABC123", *got.ReceiptReference())
	assert.Equal(t, order.PaymentStatusPaid, env.orderRepo.status(1))
}

func TestQueryStatus_SuccessWithoutReceiptStaysProcessing(t *testing.T) {
	env := newTestEnv(t)
	txn := env.initiate(t, 1)
	env.gateway.queryFn = func(string) (*gateway.QueryResult, error) {
		return &gateway.QueryResult{ResultCode: 0, ResultDescription: "Success"}, nil
	}

	got, err := env.queryUC(0).Execute(context.Background(), txn.CheckoutRequestID())
	require.NoError(t, err)

	assert.Equal(t, vo.StatusProcessing, got.Status(), "no receipt, no COMPLETED")
	assert.Nil(t, got.ReceiptReference())
	assert.Equal(t, true, got.Metadata()["query_success_awaiting_receipt"])
	assert.Equal(t, order.PaymentStatusUnpaid, env.orderRepo.status(1))
}

func TestQueryStatus_DeclineFails(t *testing.T) {
	env := newTestEnv(t)
	txn := env.initiate(t, 1)
	env.gateway.queryFn = func(string) (*gateway.QueryResult, error) {
		return &gateway.QueryResult{ResultCode: 1032, ResultDescription: "Request cancelled by user"}, nil
	}

	got, err := env.queryUC(0).Execute(context.Background(), txn.CheckoutRequestID())
	require.NoError(t, err)

	assert.Equal(t, vo.StatusFailed, got.Status())
	assert.Equal(t, order.PaymentStatusFailed, env.orderRepo.status(1))
}

func TestQueryStatus_GatewayFailureReturnsStoredState(t *testing.T) {
	env := newTestEnv(t)
	txn := env.initiate(t, 1)
	env.gateway.queryFn = func(string) (*gateway.QueryResult, error) {
		return nil, apperrors.NewGatewayUnreachableError("gateway unreachable")
	}

	got, err := env.queryUC(0).Execute(context.Background(), txn.CheckoutRequestID())
	require.NoError(t, err, "an unreachable gateway must not fail the read")
	assert.Equal(t, vo.StatusInitiated, got.Status())
}

func TestQueryStatus_UnknownTransaction(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.queryUC(0).Execute(context.Background(), "ws_CO_unknown")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFoundError(err))
}
