package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/pesaflow/pesaflow/internal/domain/order"
	"github.com/pesaflow/pesaflow/internal/infrastructure/persistence/models"
	"github.com/pesaflow/pesaflow/internal/shared/db"
	apperrors "github.com/pesaflow/pesaflow/internal/shared/errors"
)

type OrderRepository struct {
	db *gorm.DB
}

var _ order.OrderRepository = (*OrderRepository)(nil)

func NewOrderRepository(gdb *gorm.DB) *OrderRepository {
	return &OrderRepository{db: gdb}
}

func (r *OrderRepository) GetByID(ctx context.Context, id uint) (*order.Order, error) {
	var model models.OrderModel

	if err := db.GetTxFromContext(ctx, r.db).First(&model, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NewNotFoundError("order not found")
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return &order.Order{
		ID:            model.ID,
		PaymentStatus: order.PaymentStatus(model.PaymentStatus),
	}, nil
}

func (r *OrderRepository) UpdatePaymentStatus(ctx context.Context, orderID uint, status order.PaymentStatus) error {
	result := db.GetTxFromContext(ctx, r.db).
		Model(&models.OrderModel{}).
		Where("id = ?", orderID).
		Update("payment_status", status.String())

	if result.Error != nil {
		return fmt.Errorf("failed to update order payment status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFoundError("order not found")
	}

	return nil
}
