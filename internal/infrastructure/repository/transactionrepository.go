package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/pesaflow/pesaflow/internal/domain/transaction"
	vo "github.com/pesaflow/pesaflow/internal/domain/transaction/valueobjects"
	"github.com/pesaflow/pesaflow/internal/infrastructure/persistence/mappers"
	"github.com/pesaflow/pesaflow/internal/infrastructure/persistence/models"
	"github.com/pesaflow/pesaflow/internal/shared/db"
	apperrors "github.com/pesaflow/pesaflow/internal/shared/errors"
)

type TransactionRepository struct {
	db *gorm.DB
}

var _ transaction.TransactionRepository = (*TransactionRepository)(nil)

func NewTransactionRepository(gdb *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: gdb}
}

func (r *TransactionRepository) Create(ctx context.Context, txn *transaction.Transaction) error {
	model, err := mappers.TransactionToModel(txn)
	if err != nil {
		return err
	}

	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	// Write back the auto-generated ID to the domain object
	txn.SetID(model.ID)

	return nil
}

func (r *TransactionRepository) Update(ctx context.Context, txn *transaction.Transaction) error {
	applied, err := r.update(ctx, txn, nil)
	if err != nil {
		return err
	}
	_ = applied
	return nil
}

// UpdateIfStatusIn is the conditional-transition primitive. The UPDATE's
// WHERE clause carries the expected-state set, so the database decides the
// race between a webhook and a concurrent poll: whichever commits first
// wins, the loser's write matches zero rows.
func (r *TransactionRepository) UpdateIfStatusIn(ctx context.Context, txn *transaction.Transaction, expected []vo.TransactionStatus) (bool, error) {
	return r.update(ctx, txn, expected)
}

func (r *TransactionRepository) update(ctx context.Context, txn *transaction.Transaction, expected []vo.TransactionStatus) (bool, error) {
	model, err := mappers.TransactionToModel(txn)
	if err != nil {
		return false, err
	}

	query := db.GetTxFromContext(ctx, r.db).
		Model(&models.TransactionModel{}).
		Where("checkout_request_id = ?", model.CheckoutRequestID)

	if len(expected) > 0 {
		query = query.Where("status IN ?", statusStrings(expected))
	}

	result := query.Updates(map[string]interface{}{
		"status":             model.Status,
		"result_code":        model.ResultCode,
		"result_description": model.ResultDescription,
		"receipt_reference":  model.ReceiptReference,
		"last_checked_at":    model.LastCheckedAt,
		"check_count":        model.CheckCount,
		"metadata":           model.Metadata,
		"version":            model.Version,
		"updated_at":         model.UpdatedAt,
	})

	if result.Error != nil {
		return false, fmt.Errorf("failed to update transaction: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

func (r *TransactionRepository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*transaction.Transaction, error) {
	var model models.TransactionModel

	if err := db.GetTxFromContext(ctx, r.db).
		Where("checkout_request_id = ?", checkoutRequestID).
		First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NewNotFoundError("transaction not found", checkoutRequestID)
		}
		return nil, fmt.Errorf("failed to get transaction by checkout_request_id: %w", err)
	}

	return mappers.TransactionToDomain(&model)
}

func (r *TransactionRepository) GetByOrderID(ctx context.Context, orderID uint) ([]*transaction.Transaction, error) {
	var txnModels []models.TransactionModel

	if err := db.GetTxFromContext(ctx, r.db).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&txnModels).Error; err != nil {
		return nil, fmt.Errorf("failed to get transactions by order_id: %w", err)
	}

	return r.toDomainList(txnModels)
}

func (r *TransactionRepository) GetActiveByOrderID(ctx context.Context, orderID uint) (*transaction.Transaction, error) {
	var model models.TransactionModel

	if err := db.GetTxFromContext(ctx, r.db).
		Where("order_id = ? AND status IN ?", orderID, statusStrings(vo.ActiveStatuses())).
		Order("created_at DESC").
		First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active transaction: %w", err)
	}

	return mappers.TransactionToDomain(&model)
}

func (r *TransactionRepository) ListStaleActive(ctx context.Context, olderThan time.Time, limit int) ([]*transaction.Transaction, error) {
	var txnModels []models.TransactionModel

	if err := db.GetTxFromContext(ctx, r.db).
		Where("status IN ? AND COALESCE(last_checked_at, created_at) < ?",
			statusStrings(vo.ActiveStatuses()), olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&txnModels).Error; err != nil {
		return nil, fmt.Errorf("failed to list stale transactions: %w", err)
	}

	return r.toDomainList(txnModels)
}

func (r *TransactionRepository) toDomainList(txnModels []models.TransactionModel) ([]*transaction.Transaction, error) {
	txns := make([]*transaction.Transaction, len(txnModels))
	for i := range txnModels {
		t, err := mappers.TransactionToDomain(&txnModels[i])
		if err != nil {
			return nil, err
		}
		txns[i] = t
	}
	return txns, nil
}

func statusStrings(statuses []vo.TransactionStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = s.String()
	}
	return out
}
