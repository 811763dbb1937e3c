// Package order models the subset of the externally-owned Order the payment
// subsystem touches: its mutable payment status. The CRUD layer owns
// everything else about orders.
package order

import "context"

// PaymentStatus is the order-level payment outcome.
type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "UNPAID"
	PaymentStatusPaid   PaymentStatus = "PAID"
	PaymentStatusFailed PaymentStatus = "FAILED"
)

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusUnpaid, PaymentStatusPaid, PaymentStatusFailed:
		return true
	default:
		return false
	}
}

func (s PaymentStatus) String() string {
	return string(s)
}

// Order is the external collaborator's record as this subsystem sees it.
type Order struct {
	ID            uint
	PaymentStatus PaymentStatus
}

// OrderRepository exposes the two operations the payment subsystem needs.
// UpdatePaymentStatus participates in the callback handler's transactional
// write so the order flip and the transaction transition commit together.
type OrderRepository interface {
	GetByID(ctx context.Context, id uint) (*Order, error)
	UpdatePaymentStatus(ctx context.Context, orderID uint, status PaymentStatus) error
}
