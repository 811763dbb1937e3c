package usecases

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/pesaflow/pesaflow/internal/application/payment/gateway"
	"github.com/pesaflow/pesaflow/internal/domain/order"
	"github.com/pesaflow/pesaflow/internal/domain/transaction"
	vo "github.com/pesaflow/pesaflow/internal/domain/transaction/valueobjects"
	"github.com/pesaflow/pesaflow/internal/shared/db"
	apperrors "github.com/pesaflow/pesaflow/internal/shared/errors"
	"github.com/pesaflow/pesaflow/internal/shared/logger"
)

// cloneTxn snapshots an aggregate so the fake repository behaves like a real
// store: callers never share live pointers with it.
func cloneTxn(t *transaction.Transaction) *transaction.Transaction {
	if t == nil {
		return nil
	}
	c := transaction.Reconstruct(transaction.ReconstructParams{
		ID:                t.ID(),
		CheckoutRequestID: t.CheckoutRequestID(),
		MerchantRequestID: t.MerchantRequestID(),
		OrderID:           t.OrderID(),
		IdempotencyKey:    t.IdempotencyKey(),
		PhoneNumber:       t.PhoneNumber(),
		Amount:            t.Amount(),
		Status:            t.Status(),
		ResultCode:        t.ResultCode(),
		ResultDescription: t.ResultDescription(),
		ReceiptReference:  t.ReceiptReference(),
		LastCheckedAt:     t.LastCheckedAt(),
		CheckCount:        t.CheckCount(),
		Metadata:          copyMetadata(t.Metadata()),
		Version:           t.Version(),
		CreatedAt:         t.CreatedAt(),
		UpdatedAt:         t.UpdatedAt(),
	})
	return c
}

func copyMetadata(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type fakeTxnRepo struct {
	mu         sync.Mutex
	byCheckout map[string]*transaction.Transaction
	nextID     uint
}

func newFakeTxnRepo() *fakeTxnRepo {
	return &fakeTxnRepo{byCheckout: make(map[string]*transaction.Transaction)}
}

func (r *fakeTxnRepo) Create(ctx context.Context, txn *transaction.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byCheckout[txn.CheckoutRequestID()]; exists {
		return apperrors.NewConflictError("duplicate checkout request id")
	}
	r.nextID++
	txn.SetID(r.nextID)
	r.byCheckout[txn.CheckoutRequestID()] = cloneTxn(txn)
	return nil
}

func (r *fakeTxnRepo) Update(ctx context.Context, txn *transaction.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byCheckout[txn.CheckoutRequestID()]; !exists {
		return apperrors.NewNotFoundError("transaction not found")
	}
	r.byCheckout[txn.CheckoutRequestID()] = cloneTxn(txn)
	return nil
}

func (r *fakeTxnRepo) UpdateIfStatusIn(ctx context.Context, txn *transaction.Transaction, expected []vo.TransactionStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, exists := r.byCheckout[txn.CheckoutRequestID()]
	if !exists {
		return false, nil
	}
	matched := false
	for _, s := range expected {
		if stored.Status() == s {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	r.byCheckout[txn.CheckoutRequestID()] = cloneTxn(txn)
	return true, nil
}

func (r *fakeTxnRepo) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, exists := r.byCheckout[checkoutRequestID]
	if !exists {
		return nil, apperrors.NewNotFoundError("transaction not found", checkoutRequestID)
	}
	return cloneTxn(stored), nil
}

func (r *fakeTxnRepo) GetByOrderID(ctx context.Context, orderID uint) ([]*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*transaction.Transaction
	for _, stored := range r.byCheckout {
		if stored.OrderID() == orderID {
			out = append(out, cloneTxn(stored))
		}
	}
	return out, nil
}

func (r *fakeTxnRepo) GetActiveByOrderID(ctx context.Context, orderID uint) (*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, stored := range r.byCheckout {
		if stored.OrderID() == orderID && stored.Status().IsActive() {
			return cloneTxn(stored), nil
		}
	}
	return nil, nil
}

func (r *fakeTxnRepo) ListStaleActive(ctx context.Context, olderThan time.Time, limit int) ([]*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*transaction.Transaction
	for _, stored := range r.byCheckout {
		if !stored.Status().IsActive() {
			continue
		}
		ref := stored.CreatedAt()
		if stored.LastCheckedAt() != nil {
			ref = *stored.LastCheckedAt()
		}
		if ref.Before(olderThan) {
			out = append(out, cloneTxn(stored))
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// status peeks at the stored row without going through the domain object.
func (r *fakeTxnRepo) status(checkoutRequestID string) vo.TransactionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byCheckout[checkoutRequestID].Status()
}

type fakeOrderRepo struct {
	mu       sync.Mutex
	statuses map[uint]order.PaymentStatus
}

func newFakeOrderRepo(ids ...uint) *fakeOrderRepo {
	statuses := make(map[uint]order.PaymentStatus)
	for _, id := range ids {
		statuses[id] = order.PaymentStatusUnpaid
	}
	return &fakeOrderRepo{statuses: statuses}
}

func (r *fakeOrderRepo) GetByID(ctx context.Context, id uint) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	status, exists := r.statuses[id]
	if !exists {
		return nil, apperrors.NewNotFoundError("order not found")
	}
	return &order.Order{ID: id, PaymentStatus: status}, nil
}

func (r *fakeOrderRepo) UpdatePaymentStatus(ctx context.Context, orderID uint, status order.PaymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.statuses[orderID]; !exists {
		return apperrors.NewNotFoundError("order not found")
	}
	r.statuses[orderID] = status
	return nil
}

func (r *fakeOrderRepo) status(orderID uint) order.PaymentStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statuses[orderID]
}

type fakeIdemStore struct {
	mu      sync.Mutex
	entries map[string]string
}

func newFakeIdemStore() *fakeIdemStore {
	return &fakeIdemStore{entries: make(map[string]string)}
}

func (s *fakeIdemStore) Lookup(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[key]
	return v, ok, nil
}

func (s *fakeIdemStore) Remember(ctx context.Context, key, checkoutRequestID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[key]; ok {
		return existing, false, nil
	}
	s.entries[key] = checkoutRequestID
	return checkoutRequestID, true, nil
}

type fakeGateway struct {
	mu        sync.Mutex
	pushCalls int
	pushFn    func(req gateway.PushRequest) (*gateway.PushResponse, error)

	queryCalls int
	queryFn    func(checkoutRequestID string) (*gateway.QueryResult, error)
}

func newFakeGateway() *fakeGateway {
	g := &fakeGateway{}
	g.pushFn = func(req gateway.PushRequest) (*gateway.PushResponse, error) {
		return &gateway.PushResponse{
			MerchantRequestID: fmt.Sprintf("mr_%d", g.pushCalls),
			CheckoutRequestID: fmt.Sprintf("ws_CO_%d", g.pushCalls),
			ResponseCode:      "0",
		}, nil
	}
	g.queryFn = func(checkoutRequestID string) (*gateway.QueryResult, error) {
		return &gateway.QueryResult{Pending: true}, nil
	}
	return g
}

func (g *fakeGateway) PushPayment(ctx context.Context, req gateway.PushRequest) (*gateway.PushResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pushCalls++
	return g.pushFn(req)
}

func (g *fakeGateway) QueryStatus(ctx context.Context, checkoutRequestID string) (*gateway.QueryResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queryCalls++
	return g.queryFn(checkoutRequestID)
}

// testEnv bundles the collaborating fakes behind real usecases. The
// transaction manager runs against an in-memory SQLite handle so the
// transactional paths execute real BEGIN/COMMIT pairs.
type testEnv struct {
	txnRepo   *fakeTxnRepo
	orderRepo *fakeOrderRepo
	idemStore *fakeIdemStore
	gateway   *fakeGateway
	txManager *db.TransactionManager
	logger    logger.Interface
}

func newTestEnv(t *testing.T, orderIDs ...uint) *testEnv {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormLogger.Discard,
	})
	require.NoError(t, err)

	if len(orderIDs) == 0 {
		orderIDs = []uint{1}
	}

	return &testEnv{
		txnRepo:   newFakeTxnRepo(),
		orderRepo: newFakeOrderRepo(orderIDs...),
		idemStore: newFakeIdemStore(),
		gateway:   newFakeGateway(),
		txManager: db.NewTransactionManager(gdb),
		logger:    logger.NewNop(),
	}
}

func (e *testEnv) initiateUC() *InitiatePaymentUseCase {
	return NewInitiatePaymentUseCase(
		e.txnRepo, e.orderRepo, e.gateway, e.idemStore, e.txManager, e.logger,
		"PESAFLOW", "https://example.com/callback/secret",
	)
}

func (e *testEnv) callbackUC() *HandleCallbackUseCase {
	return NewHandleCallbackUseCase(e.txnRepo, e.orderRepo, e.txManager, e.logger)
}

func (e *testEnv) queryUC(minInterval time.Duration) *QueryStatusUseCase {
	return NewQueryStatusUseCase(e.txnRepo, e.orderRepo, e.gateway, e.txManager, e.logger, minInterval)
}

func (e *testEnv) pollUC(interval time.Duration, attempts int) *PollStatusUseCase {
	return NewPollStatusUseCase(e.txnRepo, e.orderRepo, e.gateway, e.txManager, e.logger, interval, attempts, 0)
}

// initiate runs a default initiation and returns the persisted transaction.
func (e *testEnv) initiate(t *testing.T, orderID uint) *transaction.Transaction {
	t.Helper()
	result, err := e.initiateUC().Execute(context.Background(), InitiatePaymentCommand{
		OrderID:     orderID,
		PhoneNumber: "254708374149",
		Amount:      decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	require.False(t, result.Duplicate)
	return result.Transaction
}
