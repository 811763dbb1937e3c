// Package gateway defines the outbound port to the push payment gateway.
package gateway

import (
	"context"

	"github.com/shopspring/decimal"
)

// PushGateway is the outbound interface to the mobile-money gateway: the
// asynchronous push prompt and the synchronous status query.
type PushGateway interface {
	// PushPayment asks the gateway to prompt the customer's device. An
	// accepted request returns the gateway-assigned correlation IDs; a
	// refusal surfaces as a GatewayRejected error and nothing is persisted
	// by the caller.
	PushPayment(ctx context.Context, req PushRequest) (*PushResponse, error)

	// QueryStatus asks the gateway for the current outcome of an accepted
	// push. A still-pending payment is reported via QueryResult.Pending,
	// not an error.
	QueryStatus(ctx context.Context, checkoutRequestID string) (*QueryResult, error)
}

// PushRequest carries the normalized initiation data. PhoneNumber must
// already be in international MSISDN format.
type PushRequest struct {
	PhoneNumber      string
	Amount           decimal.Decimal
	AccountReference string
	Description      string
	CallbackURL      string
}

// PushResponse is the gateway's acceptance of a push request.
type PushResponse struct {
	MerchantRequestID   string
	CheckoutRequestID   string
	ResponseCode        string
	ResponseDescription string
}

// QueryResult is the outcome of a synchronous status query.
// ReceiptReference is set only when the gateway includes it; a success
// without a receipt must not complete the transaction (the webhook carries
// the receipt).
type QueryResult struct {
	Pending           bool
	ResultCode        int
	ResultDescription string
	ReceiptReference  string
}

// IsSuccess reports a settled, successful payment.
func (r *QueryResult) IsSuccess() bool {
	return !r.Pending && r.ResultCode == 0
}
