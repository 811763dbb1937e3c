package mappers

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/pesaflow/pesaflow/internal/domain/transaction"
	vo "github.com/pesaflow/pesaflow/internal/domain/transaction/valueobjects"
	"github.com/pesaflow/pesaflow/internal/infrastructure/persistence/models"
)

// TransactionToModel maps the domain aggregate to its persistence model.
func TransactionToModel(t *transaction.Transaction) (*models.TransactionModel, error) {
	var metadata datatypes.JSON
	if len(t.Metadata()) > 0 {
		raw, err := json.Marshal(t.Metadata())
		if err != nil {
			return nil, fmt.Errorf("marshal transaction metadata: %w", err)
		}
		metadata = raw
	}

	return &models.TransactionModel{
		ID:                t.ID(),
		CheckoutRequestID: t.CheckoutRequestID(),
		MerchantRequestID: t.MerchantRequestID(),
		OrderID:           t.OrderID(),
		IdempotencyKey:    t.IdempotencyKey(),
		PhoneNumber:       t.PhoneNumber(),
		Amount:            t.Amount(),
		Status:            t.Status().String(),
		ResultCode:        t.ResultCode(),
		ResultDescription: t.ResultDescription(),
		ReceiptReference:  t.ReceiptReference(),
		LastCheckedAt:     t.LastCheckedAt(),
		CheckCount:        t.CheckCount(),
		Metadata:          metadata,
		Version:           t.Version(),
		CreatedAt:         t.CreatedAt(),
		UpdatedAt:         t.UpdatedAt(),
	}, nil
}

// TransactionToDomain rebuilds the aggregate from its persistence model.
func TransactionToDomain(m *models.TransactionModel) (*transaction.Transaction, error) {
	status := vo.TransactionStatus(m.Status)
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid transaction status %q", m.Status)
	}

	metadata := make(map[string]interface{})
	if len(m.Metadata) > 0 {
		if err := json.Unmarshal(m.Metadata, &metadata); err != nil {
			return nil, fmt.Errorf("unmarshal transaction metadata: %w", err)
		}
	}

	return transaction.Reconstruct(transaction.ReconstructParams{
		ID:                m.ID,
		CheckoutRequestID: m.CheckoutRequestID,
		MerchantRequestID: m.MerchantRequestID,
		OrderID:           m.OrderID,
		IdempotencyKey:    m.IdempotencyKey,
		PhoneNumber:       m.PhoneNumber,
		Amount:            m.Amount,
		Status:            status,
		ResultCode:        m.ResultCode,
		ResultDescription: m.ResultDescription,
		ReceiptReference:  m.ReceiptReference,
		LastCheckedAt:     m.LastCheckedAt,
		CheckCount:        m.CheckCount,
		Metadata:          metadata,
		Version:           m.Version,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}), nil
}
