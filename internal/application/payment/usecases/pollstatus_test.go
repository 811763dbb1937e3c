package usecases

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesaflow/pesaflow/internal/application/payment/gateway"
	"github.com/pesaflow/pesaflow/internal/domain/order"
	vo "github.com/pesaflow/pesaflow/internal/domain/transaction/valueobjects"
)

func TestPollStatus_SettlesOnSuccess(t *testing.T) {
	env := newTestEnv(t)
	txn := env.initiate(t, 1)

	calls := 0
	env.gateway.queryFn = func(string) (*gateway.QueryResult, error) {
		calls++
		if calls < 3 {
			return &gateway.QueryResult{Pending: true}, nil
		}
		return &gateway.QueryResult{ResultCode: 0, ReceiptReference: "ABC123"}, nil
	}

	got, err := env.pollUC(time.Millisecond, 12).Execute(context.Background(), txn.CheckoutRequestID())
	require.NoError(t, err)

	assert.Equal(t, vo.StatusCompleted, got.Status())
	assert.Equal(t, 3, calls)
	assert.Equal(t, order.PaymentStatusPaid, env.orderRepo.status(1))
}

func TestPollStatus_BudgetExhaustedMarksTimeout(t *testing.T) {
	env := newTestEnv(t)
	txn := env.initiate(t, 1)

	got, err := env.pollUC(time.Millisecond, 4).Execute(context.Background(), txn.CheckoutRequestID())
	require.NoError(t, err)

	assert.Equal(t, vo.StatusTimeout, got.Status())
	assert.Equal(t, 4, env.gateway.queryCalls, "exactly maxAttempts checks")
	assert.Equal(t, vo.StatusTimeout, env.txnRepo.status(txn.CheckoutRequestID()))
	assert.Equal(t, order.PaymentStatusUnpaid, env.orderRepo.status(1), "timeout never flips the order")
}

func TestPollStatus_WebhookWinsMidPoll(t *testing.T) {
	env := newTestEnv(t)
	txn := env.initiate(t, 1)

	var once sync.Once
	env.gateway.queryFn = func(string) (*gateway.QueryResult, error) {
		// The webhook lands while the poller sleeps between checks.
		once.Do(func() {
			require.NoError(t, env.callbackUC().Execute(context.Background(), CallbackCommand{
				CheckoutRequestID: txn.CheckoutRequestID(),
				ResultCode:        0,
				ReceiptReference:  "ABC123",
			}))
		})
		return &gateway.QueryResult{Pending: true}, nil
	}

	got, err := env.pollUC(time.Millisecond, 12).Execute(context.Background(), txn.CheckoutRequestID())
	require.NoError(t, err)

	assert.Equal(t, vo.StatusCompleted, got.Status())
	require.NotNil(t, got.ReceiptReference())
	assert.Equal(t, "ABC123", *got.ReceiptReference())
}

func TestPollStatus_TerminalReturnsImmediately(t *testing.T) {
	env := newTestEnv(t)
	txn := env.initiate(t, 1)

	require.NoError(t, env.callbackUC().Execute(context.Background(), CallbackCommand{
		CheckoutRequestID: txn.CheckoutRequestID(),
		ResultCode:        1032,
		ResultDescription: "Request cancelled by user",
	}))

	got, err := env.pollUC(time.Hour, 12).Execute(context.Background(), txn.CheckoutRequestID())
	require.NoError(t, err)

	assert.Equal(t, vo.StatusFailed, got.Status())
	assert.Equal(t, 0, env.gateway.queryCalls)
}

func TestPollStatus_ContextCancellation(t *testing.T) {
	env := newTestEnv(t)
	txn := env.initiate(t, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	got, err := env.pollUC(time.Hour, 12).Execute(ctx, txn.CheckoutRequestID())
	require.NoError(t, err)

	assert.Equal(t, vo.StatusInitiated, got.Status(), "cancellation leaves the row active")
}

func TestPollStatus_ConcurrentWaitersShareOneLoop(t *testing.T) {
	env := newTestEnv(t)
	txn := env.initiate(t, 1)

	calls := 0
	env.gateway.queryFn = func(string) (*gateway.QueryResult, error) {
		calls++
		if calls < 3 {
			return &gateway.QueryResult{Pending: true}, nil
		}
		return &gateway.QueryResult{ResultCode: 0, ReceiptReference: "ABC123"}, nil
	}

	uc := env.pollUC(time.Millisecond, 12)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := uc.Execute(context.Background(), txn.CheckoutRequestID())
			assert.NoError(t, err)
			assert.Equal(t, vo.StatusCompleted, got.Status())
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, calls, "five waiters must share one poll loop")
}
