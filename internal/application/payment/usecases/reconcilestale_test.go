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
)

func (e *testEnv) reconcileUC() *ReconcileStaleUseCase {
	return NewReconcileStaleUseCase(e.txnRepo, e.orderRepo, e.gateway, e.txManager, e.logger)
}

func TestReconcileStale_SettlesFromGateway(t *testing.T) {
	env := newTestEnv(t)
	txn := env.initiate(t, 1)

	env.gateway.queryFn = func(string) (*gateway.QueryResult, error) {
		return &gateway.QueryResult{ResultCode: 0, ReceiptReference: "ABC123"}, nil
	}

	uc := env.reconcileUC()
	uc.now = func() time.Time { return time.Now().UTC().Add(10 * time.Minute) }

	settled, err := uc.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, settled)
	assert.Equal(t, vo.StatusCompleted, env.txnRepo.status(txn.CheckoutRequestID()))
	assert.Equal(t, order.PaymentStatusPaid, env.orderRepo.status(1))
}

func TestReconcileStale_TimesOutAbandoned(t *testing.T) {
	env := newTestEnv(t)
	txn := env.initiate(t, 1)

	uc := env.reconcileUC()
	// Far past the abandonment window, gateway still reports pending.
	uc.now = func() time.Time { return time.Now().UTC().Add(20 * time.Minute) }

	settled, err := uc.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, settled)
	assert.Equal(t, vo.StatusTimeout, env.txnRepo.status(txn.CheckoutRequestID()))
	assert.Equal(t, order.PaymentStatusUnpaid, env.orderRepo.status(1))
}

func TestReconcileStale_PendingInsideWindowLeftActive(t *testing.T) {
	env := newTestEnv(t)
	txn := env.initiate(t, 1)

	uc := env.reconcileUC()
	// Stale enough to sweep, too young to abandon.
	uc.now = func() time.Time { return time.Now().UTC().Add(7 * time.Minute) }

	settled, err := uc.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, settled)
	assert.Equal(t, vo.StatusInitiated, env.txnRepo.status(txn.CheckoutRequestID()))

	// The check was stamped, so the immediate next sweep skips the row.
	stored, err := env.txnRepo.GetByCheckoutRequestID(context.Background(), txn.CheckoutRequestID())
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CheckCount())
}

func TestReconcileStale_FreshRowsNotSwept(t *testing.T) {
	env := newTestEnv(t)
	env.initiate(t, 1)

	settled, err := env.reconcileUC().Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, settled)
	assert.Equal(t, 0, env.gateway.queryCalls, "freshly created rows are not queried")
}
