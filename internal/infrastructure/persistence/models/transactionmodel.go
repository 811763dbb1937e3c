package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// TransactionModel is the persisted payment attempt. CheckoutRequestID is
// the primary lookup key; OrderID carries the secondary index for the
// one-active-attempt-per-order rule.
type TransactionModel struct {
	ID                uint            `gorm:"primaryKey"`
	CheckoutRequestID string          `gorm:"uniqueIndex;size:64;not null"`
	MerchantRequestID string          `gorm:"size:64;index"`
	OrderID           uint            `gorm:"index;not null"`
	IdempotencyKey    string          `gorm:"uniqueIndex;size:64;not null"`
	PhoneNumber       string          `gorm:"size:16;not null"`
	Amount            decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Status            string          `gorm:"size:20;not null;index"`
	ResultCode        *int
	ResultDescription *string `gorm:"size:255"`
	ReceiptReference  *string `gorm:"size:64"`
	LastCheckedAt     *time.Time
	CheckCount        int            `gorm:"default:0"`
	Metadata          datatypes.JSON `gorm:"type:json"`
	Version           int            `gorm:"default:0"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (TransactionModel) TableName() string {
	return "payment_transactions"
}
