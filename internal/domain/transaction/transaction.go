package transaction

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	vo "github.com/pesaflow/pesaflow/internal/domain/transaction/valueobjects"
	"github.com/pesaflow/pesaflow/internal/shared/biztime"
)

// ResultCodeSuccess is the gateway result code for a completed payment.
const ResultCodeSuccess = 0

// Transaction is one push payment attempt. checkoutRequestID is the
// gateway-assigned join key between initiation, the webhook, and status
// queries; it is immutable once attached. Terminal rows are permanent
// history: retries create new rows, never mutate old ones.
type Transaction struct {
	id                uint
	checkoutRequestID string
	merchantRequestID string
	orderID           uint
	idempotencyKey    string
	phoneNumber       string
	amount            decimal.Decimal
	status            vo.TransactionStatus

	resultCode        *int
	resultDescription *string
	receiptReference  *string

	lastCheckedAt *time.Time
	checkCount    int

	metadata map[string]interface{}

	version   int
	createdAt time.Time
	updatedAt time.Time
}

// NewTransaction creates a pending attempt before the gateway has accepted
// it. The gateway identifiers are attached via AttachGatewayIDs once the push
// request is accepted; only then may the transaction be persisted.
func NewTransaction(orderID uint, phoneNumber string, amount decimal.Decimal, idempotencyKey string) (*Transaction, error) {
	if orderID == 0 {
		return nil, fmt.Errorf("order ID is required")
	}
	if phoneNumber == "" {
		return nil, fmt.Errorf("phone number is required")
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive")
	}
	if idempotencyKey == "" {
		return nil, fmt.Errorf("idempotency key is required")
	}

	now := biztime.NowUTC()
	return &Transaction{
		orderID:        orderID,
		phoneNumber:    phoneNumber,
		amount:         amount,
		idempotencyKey: idempotencyKey,
		status:         vo.StatusInitiated,
		metadata:       make(map[string]interface{}),
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// AttachGatewayIDs records the identifiers the gateway assigned when it
// accepted the push request. The checkout request ID is immutable once set.
func (t *Transaction) AttachGatewayIDs(checkoutRequestID, merchantRequestID string) error {
	if checkoutRequestID == "" {
		return fmt.Errorf("checkout request ID is required")
	}
	if t.checkoutRequestID != "" {
		return fmt.Errorf("checkout request ID already assigned")
	}
	t.checkoutRequestID = checkoutRequestID
	t.merchantRequestID = merchantRequestID
	t.updatedAt = biztime.NowUTC()
	return nil
}

// MarkProcessing transitions INITIATED -> PROCESSING. Set automatically on
// the first status check or first webhook arrival. No-op when already
// PROCESSING.
func (t *Transaction) MarkProcessing() error {
	if t.status == vo.StatusProcessing {
		return nil
	}
	if t.status != vo.StatusInitiated {
		return fmt.Errorf("cannot mark transaction processing with status %s", t.status)
	}
	t.status = vo.StatusProcessing
	t.touch()
	return nil
}

// Complete applies the success transition. The receipt reference must be
// attached atomically with it; it is present if and only if the transaction
// is COMPLETED.
func (t *Transaction) Complete(receiptReference string) error {
	if t.status == vo.StatusCompleted {
		return nil
	}
	if receiptReference == "" {
		return fmt.Errorf("receipt reference is required to complete a transaction")
	}
	if t.status.IsTerminal() {
		return fmt.Errorf("cannot complete transaction with terminal status %s", t.status)
	}
	code := ResultCodeSuccess
	t.status = vo.StatusCompleted
	t.receiptReference = &receiptReference
	t.resultCode = &code
	t.touch()
	return nil
}

// Fail applies the decline transition with the gateway's result code and
// description. Declines are expected outcomes, not errors.
func (t *Transaction) Fail(resultCode int, resultDescription string) error {
	if t.status == vo.StatusFailed {
		return nil
	}
	if t.status.IsTerminal() {
		return fmt.Errorf("cannot fail transaction with terminal status %s", t.status)
	}
	t.status = vo.StatusFailed
	t.resultCode = &resultCode
	t.resultDescription = &resultDescription
	t.touch()
	return nil
}

// MarkTimeout records the local judgment that the poll budget was exhausted
// without a terminal signal. The gateway may still complete the payment
// later; a late webhook is recorded for audit only.
func (t *Transaction) MarkTimeout() error {
	if t.status == vo.StatusTimeout {
		return nil
	}
	if t.status.IsTerminal() {
		return fmt.Errorf("cannot time out transaction with terminal status %s", t.status)
	}
	t.status = vo.StatusTimeout
	t.touch()
	return nil
}

// Cancel applies the explicit user/admin cancellation. Local only: the
// gateway-side prompt is not cancelled, we just stop waiting.
func (t *Transaction) Cancel() error {
	if t.status == vo.StatusCancelled {
		return nil
	}
	if t.status.IsTerminal() {
		return fmt.Errorf("cannot cancel transaction with terminal status %s", t.status)
	}
	t.status = vo.StatusCancelled
	t.touch()
	return nil
}

// RecordCheck bounds polling: stamps the check time and bumps the counter.
func (t *Transaction) RecordCheck(at time.Time) {
	checked := at.UTC()
	t.lastCheckedAt = &checked
	t.checkCount++
	t.touch()
}

// ShouldQueryGateway reports whether the synchronous gateway query endpoint
// may be hit for this transaction: still active, and past the minimum poll
// interval since the last check.
func (t *Transaction) ShouldQueryGateway(now time.Time, minInterval time.Duration) bool {
	if !t.status.IsActive() {
		return false
	}
	if t.lastCheckedAt == nil {
		return true
	}
	return now.Sub(*t.lastCheckedAt) > minInterval
}

// RecordLateCallback attaches audit metadata for a webhook that arrived
// after the transaction was already terminal. It never changes the status
// and never flips the order to paid; that needs manual reconciliation.
func (t *Transaction) RecordLateCallback(resultCode int, resultDescription, receiptReference string, at time.Time) {
	t.SetMetadata("late_callback_result_code", resultCode)
	t.SetMetadata("late_callback_result_description", resultDescription)
	if receiptReference != "" {
		t.SetMetadata("late_callback_receipt_reference", receiptReference)
	}
	t.SetMetadata("late_callback_at", biztime.FormatMetadataTime(at.UTC()))
}

// SetMetadata sets a metadata key-value pair
func (t *Transaction) SetMetadata(key string, value interface{}) {
	if t.metadata == nil {
		t.metadata = make(map[string]interface{})
	}
	t.metadata[key] = value
	t.updatedAt = biztime.NowUTC()
}

func (t *Transaction) touch() {
	t.updatedAt = biztime.NowUTC()
	t.version++
}

func (t *Transaction) ID() uint {
	return t.id
}

func (t *Transaction) CheckoutRequestID() string {
	return t.checkoutRequestID
}

func (t *Transaction) MerchantRequestID() string {
	return t.merchantRequestID
}

func (t *Transaction) OrderID() uint {
	return t.orderID
}

func (t *Transaction) IdempotencyKey() string {
	return t.idempotencyKey
}

func (t *Transaction) PhoneNumber() string {
	return t.phoneNumber
}

func (t *Transaction) Amount() decimal.Decimal {
	return t.amount
}

func (t *Transaction) Status() vo.TransactionStatus {
	return t.status
}

func (t *Transaction) ResultCode() *int {
	return t.resultCode
}

func (t *Transaction) ResultDescription() *string {
	return t.resultDescription
}

func (t *Transaction) ReceiptReference() *string {
	return t.receiptReference
}

func (t *Transaction) LastCheckedAt() *time.Time {
	return t.lastCheckedAt
}

func (t *Transaction) CheckCount() int {
	return t.checkCount
}

func (t *Transaction) Metadata() map[string]interface{} {
	return t.metadata
}

func (t *Transaction) Version() int {
	return t.version
}

func (t *Transaction) CreatedAt() time.Time {
	return t.createdAt
}

func (t *Transaction) UpdatedAt() time.Time {
	return t.updatedAt
}

// SetID sets the transaction ID after persistence (used by repository after Create)
func (t *Transaction) SetID(id uint) {
	t.id = id
}

// ReconstructParams carries every persisted field back into the aggregate.
type ReconstructParams struct {
	ID                uint
	CheckoutRequestID string
	MerchantRequestID string
	OrderID           uint
	IdempotencyKey    string
	PhoneNumber       string
	Amount            decimal.Decimal
	Status            vo.TransactionStatus
	ResultCode        *int
	ResultDescription *string
	ReceiptReference  *string
	LastCheckedAt     *time.Time
	CheckCount        int
	Metadata          map[string]interface{}
	Version           int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Reconstruct rebuilds a Transaction from persistence.
func Reconstruct(p ReconstructParams) *Transaction {
	return &Transaction{
		id:                p.ID,
		checkoutRequestID: p.CheckoutRequestID,
		merchantRequestID: p.MerchantRequestID,
		orderID:           p.OrderID,
		idempotencyKey:    p.IdempotencyKey,
		phoneNumber:       p.PhoneNumber,
		amount:            p.Amount,
		status:            p.Status,
		resultCode:        p.ResultCode,
		resultDescription: p.ResultDescription,
		receiptReference:  p.ReceiptReference,
		lastCheckedAt:     p.LastCheckedAt,
		checkCount:        p.CheckCount,
		metadata:          p.Metadata,
		version:           p.Version,
		createdAt:         p.CreatedAt,
		updatedAt:         p.UpdatedAt,
	}
}
