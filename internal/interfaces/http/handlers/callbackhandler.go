package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	paymentUsecases "github.com/pesaflow/pesaflow/internal/application/payment/usecases"
	"github.com/pesaflow/pesaflow/internal/shared/logger"
)

// CallbackHandler ingests the gateway's asynchronous outcome webhook. It
// always answers 200 with the same minimal acknowledgement: the gateway only
// needs to know we received the notification, and a malformed or unknown
// callback must not trigger its retry storm or leak what we know.
type CallbackHandler struct {
	handleCallbackUC *paymentUsecases.HandleCallbackUseCase
	logger           logger.Interface
}

func NewCallbackHandler(handleCallbackUC *paymentUsecases.HandleCallbackUseCase, logger logger.Interface) *CallbackHandler {
	return &CallbackHandler{handleCallbackUC: handleCallbackUC, logger: logger}
}

type callbackMetadataItem struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

type callbackRequest struct {
	MerchantRequestID string                 `json:"merchantRequestId"`
	CheckoutRequestID string                 `json:"checkoutRequestId"`
	ResultCode        int                    `json:"resultCode"`
	ResultDescription string                 `json:"resultDescription"`
	Metadata          []callbackMetadataItem `json:"metadata"`
}

// receiptReference extracts the proof-of-payment item from the metadata
// list. Present only on success.
func (r *callbackRequest) receiptReference() string {
	for _, item := range r.Metadata {
		if strings.EqualFold(item.Name, "receiptReference") {
			if s, ok := item.Value.(string); ok {
				return s
			}
			return fmt.Sprintf("%v", item.Value)
		}
	}
	return ""
}

// HandleCallback processes the webhook body. The response is identical for
// every business outcome.
func (h *CallbackHandler) HandleCallback(c *gin.Context) {
	var req callbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("malformed callback body", "error", err, "client_ip", c.ClientIP())
		h.ack(c)
		return
	}

	err := h.handleCallbackUC.Execute(c.Request.Context(), paymentUsecases.CallbackCommand{
		CheckoutRequestID: req.CheckoutRequestID,
		MerchantRequestID: req.MerchantRequestID,
		ResultCode:        req.ResultCode,
		ResultDescription: req.ResultDescription,
		ReceiptReference:  req.receiptReference(),
	})
	if err != nil {
		h.logger.Warnw("callback not applied",
			"checkout_request_id", req.CheckoutRequestID,
			"error", err,
		)
	}

	h.ack(c)
}

func (h *CallbackHandler) ack(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
}
