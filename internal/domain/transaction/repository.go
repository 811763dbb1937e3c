package transaction

import (
	"context"
	"time"

	vo "github.com/pesaflow/pesaflow/internal/domain/transaction/valueobjects"
)

// TransactionRepository persists payment attempts. Implementations must
// guarantee atomic read-modify-write per checkout request ID.
type TransactionRepository interface {
	Create(ctx context.Context, txn *Transaction) error
	Update(ctx context.Context, txn *Transaction) error

	// UpdateIfStatusIn is the compare-and-swap primitive shared by the
	// webhook path and the poll path: the write applies only while the
	// stored row's status is still one of expected. Returns false (and no
	// error) when the row moved on, so whichever racer lost observes
	// "already terminal" and becomes a no-op.
	UpdateIfStatusIn(ctx context.Context, txn *Transaction, expected []vo.TransactionStatus) (bool, error)

	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*Transaction, error)
	GetByOrderID(ctx context.Context, orderID uint) ([]*Transaction, error)

	// GetActiveByOrderID returns the at-most-one non-terminal transaction
	// for an order, or nil when none exists.
	GetActiveByOrderID(ctx context.Context, orderID uint) (*Transaction, error)

	// ListStaleActive returns active transactions whose last check (or
	// creation, when never checked) is older than the cutoff. Used by the
	// reconciliation sweep.
	ListStaleActive(ctx context.Context, olderThan time.Time, limit int) ([]*Transaction, error)
}
