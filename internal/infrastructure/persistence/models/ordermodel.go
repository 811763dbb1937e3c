package models

import "time"

// OrderModel is the slice of the externally-owned orders table this
// subsystem reads and whose payment_status it updates.
type OrderModel struct {
	ID            uint   `gorm:"primaryKey"`
	PaymentStatus string `gorm:"size:20;not null;default:'UNPAID'"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (OrderModel) TableName() string {
	return "orders"
}
