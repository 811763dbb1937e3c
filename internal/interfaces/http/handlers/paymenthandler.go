package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	paymentUsecases "github.com/pesaflow/pesaflow/internal/application/payment/usecases"
	"github.com/pesaflow/pesaflow/internal/domain/transaction"
	"github.com/pesaflow/pesaflow/internal/shared/goroutine"
	"github.com/pesaflow/pesaflow/internal/shared/logger"
	"github.com/pesaflow/pesaflow/internal/shared/utils"
)

type PaymentHandler struct {
	initiateUC *paymentUsecases.InitiatePaymentUseCase
	queryUC    *paymentUsecases.QueryStatusUseCase
	pollUC     *paymentUsecases.PollStatusUseCase
	cancelUC   *paymentUsecases.CancelPaymentUseCase
	retryUC    *paymentUsecases.RetryPaymentUseCase
	logger     logger.Interface
}

func NewPaymentHandler(
	initiateUC *paymentUsecases.InitiatePaymentUseCase,
	queryUC *paymentUsecases.QueryStatusUseCase,
	pollUC *paymentUsecases.PollStatusUseCase,
	cancelUC *paymentUsecases.CancelPaymentUseCase,
	retryUC *paymentUsecases.RetryPaymentUseCase,
	logger logger.Interface,
) *PaymentHandler {
	return &PaymentHandler{
		initiateUC: initiateUC,
		queryUC:    queryUC,
		pollUC:     pollUC,
		cancelUC:   cancelUC,
		retryUC:    retryUC,
		logger:     logger,
	}
}

type InitiatePaymentRequest struct {
	OrderID        uint            `json:"orderId" validate:"required"`
	PhoneNumber    string          `json:"phoneNumber" validate:"required,msisdn"`
	Amount         decimal.Decimal `json:"amount" validate:"required"`
	Description    string          `json:"description" validate:"max=100"`
	IdempotencyKey string          `json:"idempotencyKey" validate:"max=64"`
	AllowReplace   bool            `json:"allowReplace"`
}

type TransactionResponse struct {
	CheckoutRequestID string  `json:"checkoutRequestId"`
	MerchantRequestID string  `json:"merchantRequestId,omitempty"`
	OrderID           uint    `json:"orderId"`
	PhoneNumber       string  `json:"phoneNumber"`
	Amount            string  `json:"amount"`
	Status            string  `json:"status"`
	ResultCode        *int    `json:"resultCode,omitempty"`
	ResultDescription *string `json:"resultDescription,omitempty"`
	ReceiptReference  *string `json:"receiptReference,omitempty"`
	CreatedAt         string  `json:"createdAt"`
	UpdatedAt         string  `json:"updatedAt"`
}

func toTransactionResponse(txn *transaction.Transaction) TransactionResponse {
	return TransactionResponse{
		CheckoutRequestID: txn.CheckoutRequestID(),
		MerchantRequestID: txn.MerchantRequestID(),
		OrderID:           txn.OrderID(),
		PhoneNumber:       txn.PhoneNumber(),
		Amount:            txn.Amount().String(),
		Status:            txn.Status().String(),
		ResultCode:        txn.ResultCode(),
		ResultDescription: txn.ResultDescription(),
		ReceiptReference:  txn.ReceiptReference(),
		CreatedAt:         txn.CreatedAt().Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:         txn.UpdatedAt().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// InitiatePayment pushes a payment prompt to the customer's device and
// persists the accepted attempt.
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	var req InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("failed to bind initiate request", "error", err)
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	result, err := h.initiateUC.Execute(c.Request.Context(), paymentUsecases.InitiatePaymentCommand{
		OrderID:        req.OrderID,
		PhoneNumber:    req.PhoneNumber,
		Amount:         req.Amount,
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
		AllowReplace:   req.AllowReplace,
	})
	if err != nil {
		h.logger.Warnw("failed to initiate payment", "order_id", req.OrderID, "error", err)
		utils.ErrorResponseWithError(c, err)
		return
	}

	message := "payment initiated"
	status := http.StatusCreated
	if result.Duplicate {
		message = "duplicate submission, returning existing transaction"
		status = http.StatusOK
	} else {
		h.pollInBackground(result.Transaction.CheckoutRequestID())
	}
	utils.SuccessResponse(c, status, message, toTransactionResponse(result.Transaction))
}

// pollInBackground drives the bounded poll loop detached from the request so
// the outcome settles even if the client never asks again. A waiting client
// shares this loop through the poller's singleflight group.
func (h *PaymentHandler) pollInBackground(checkoutRequestID string) {
	goroutine.SafeGo(h.logger, "payment-poll", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if _, err := h.pollUC.Execute(ctx, checkoutRequestID); err != nil {
			h.logger.Warnw("background poll loop failed",
				"checkout_request_id", checkoutRequestID,
				"error", err,
			)
		}
	})
}

// GetStatus answers from the store, consulting the gateway only for active
// rows past the minimum poll interval. With ?wait=1 it blocks on the shared
// poll loop until the transaction settles or the poll budget runs out.
func (h *PaymentHandler) GetStatus(c *gin.Context) {
	checkoutRequestID := c.Param("checkoutRequestId")

	var (
		txn *transaction.Transaction
		err error
	)
	if c.Query("wait") == "1" {
		txn, err = h.pollUC.Execute(c.Request.Context(), checkoutRequestID)
	} else {
		txn, err = h.queryUC.Execute(c.Request.Context(), checkoutRequestID)
	}
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", toTransactionResponse(txn))
}

type CancelPaymentRequest struct {
	CheckoutRequestID string `json:"checkoutRequestId" validate:"required"`
}

// CancelPayment stops waiting on an active attempt.
func (h *PaymentHandler) CancelPayment(c *gin.Context) {
	var req CancelPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	txn, err := h.cancelUC.Execute(c.Request.Context(), req.CheckoutRequestID)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "payment cancelled", toTransactionResponse(txn))
}

type RetryPaymentRequest struct {
	CheckoutRequestID string `json:"checkoutRequestId" validate:"required"`
	PhoneNumber       string `json:"phoneNumber" validate:"omitempty,msisdn"`
	IdempotencyKey    string `json:"idempotencyKey" validate:"max=64"`
}

// RetryPayment creates a fresh attempt for the order of a settled,
// non-completed transaction.
func (h *PaymentHandler) RetryPayment(c *gin.Context) {
	var req RetryPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	result, err := h.retryUC.Execute(c.Request.Context(), paymentUsecases.RetryPaymentCommand{
		CheckoutRequestID: req.CheckoutRequestID,
		PhoneNumber:       req.PhoneNumber,
		IdempotencyKey:    req.IdempotencyKey,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	if !result.Duplicate {
		h.pollInBackground(result.Transaction.CheckoutRequestID())
	}
	utils.SuccessResponse(c, http.StatusCreated, "payment retried", toTransactionResponse(result.Transaction))
}
