// Package daraja implements the outbound push payment gateway client:
// credential exchange, request signing, the push endpoint, and the
// synchronous status query endpoint.
package daraja

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/pesaflow/pesaflow/internal/application/payment/gateway"
	"github.com/pesaflow/pesaflow/internal/shared/biztime"
	sharedConfig "github.com/pesaflow/pesaflow/internal/shared/config"
	apperrors "github.com/pesaflow/pesaflow/internal/shared/errors"
	"github.com/pesaflow/pesaflow/internal/shared/logger"
)

const (
	pushPath  = "/pushpayment"
	queryPath = "/pushpayment/query"

	// errorCodePending is the gateway's "transaction is being processed"
	// signal on the query endpoint. Not a failure.
	errorCodePending = "500.001.1001"
)

// Client talks to the push payment gateway. Transport failures run through a
// circuit breaker so a flapping gateway does not pile up blocked callers;
// gateway-side rejections are mapped to typed errors and never trip the
// breaker.
type Client struct {
	cfg        sharedConfig.GatewayConfig
	creds      *CredentialManager
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	now        func() time.Time
	logger     logger.Interface
}

// Ensure Client implements the gateway port.
var _ gateway.PushGateway = (*Client)(nil)

// NewClient creates a gateway client using the shared credential manager.
func NewClient(cfg sharedConfig.GatewayConfig, creds *CredentialManager, log logger.Interface) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "push-gateway",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnw("gateway circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &Client{
		cfg:   cfg,
		creds: creds,
		httpClient: &http.Client{
			Timeout: cfg.Timeout(),
		},
		breaker: breaker,
		now:     biztime.NowUTC,
		logger:  log,
	}
}

type pushPaymentRequest struct {
	Shortcode        string `json:"shortcode"`
	Password         string `json:"password"`
	Timestamp        string `json:"timestamp"`
	TransactionType  string `json:"transactionType"`
	Amount           string `json:"amount"`
	PayerIdentifier  string `json:"payerIdentifier"`
	PayeeIdentifier  string `json:"payeeIdentifier"`
	PhoneNumber      string `json:"phoneNumber"`
	CallbackURL      string `json:"callbackUrl"`
	AccountReference string `json:"accountReference"`
	Description      string `json:"description"`
}

type pushPaymentResponse struct {
	MerchantRequestID   string `json:"merchantRequestId"`
	CheckoutRequestID   string `json:"checkoutRequestId"`
	ResponseCode        string `json:"responseCode"`
	ResponseDescription string `json:"responseDescription"`
}

type queryRequest struct {
	Shortcode         string `json:"shortcode"`
	Password          string `json:"password"`
	Timestamp         string `json:"timestamp"`
	CheckoutRequestID string `json:"checkoutRequestId"`
}

type queryResponse struct {
	ResultCode        int    `json:"resultCode"`
	ResultDescription string `json:"resultDescription"`
	ReceiptReference  string `json:"receiptReference,omitempty"`
}

type gatewayErrorBody struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// PushPayment sends the push prompt request. No retry here: initiation is
// not assumed idempotent on the gateway side.
func (c *Client) PushPayment(ctx context.Context, req gateway.PushRequest) (*gateway.PushResponse, error) {
	ts := Timestamp(c.now())
	body := pushPaymentRequest{
		Shortcode:        c.cfg.Shortcode,
		Password:         Password(c.cfg.Shortcode, c.cfg.Passkey, ts),
		Timestamp:        ts,
		TransactionType:  c.cfg.TransactionType,
		Amount:           req.Amount.String(),
		PayerIdentifier:  req.PhoneNumber,
		PayeeIdentifier:  c.cfg.Shortcode,
		PhoneNumber:      req.PhoneNumber,
		CallbackURL:      req.CallbackURL,
		AccountReference: req.AccountReference,
		Description:      req.Description,
	}

	status, respBody, err := c.post(ctx, pushPath, body)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		return nil, c.rejectionError(status, respBody)
	}

	var pr pushPaymentResponse
	if err := json.Unmarshal(respBody, &pr); err != nil {
		return nil, apperrors.NewGatewayRejectedError("malformed push response", err.Error())
	}

	if pr.ResponseCode != "0" {
		return nil, apperrors.NewGatewayRejectedError("push request refused", pr.ResponseDescription)
	}
	if pr.CheckoutRequestID == "" {
		return nil, apperrors.NewGatewayRejectedError("push response missing checkout request id")
	}

	return &gateway.PushResponse{
		MerchantRequestID:   pr.MerchantRequestID,
		CheckoutRequestID:   pr.CheckoutRequestID,
		ResponseCode:        pr.ResponseCode,
		ResponseDescription: pr.ResponseDescription,
	}, nil
}

// QueryStatus asks the gateway for the current state of an accepted push.
func (c *Client) QueryStatus(ctx context.Context, checkoutRequestID string) (*gateway.QueryResult, error) {
	ts := Timestamp(c.now())
	body := queryRequest{
		Shortcode:         c.cfg.Shortcode,
		Password:          Password(c.cfg.Shortcode, c.cfg.Passkey, ts),
		Timestamp:         ts,
		CheckoutRequestID: checkoutRequestID,
	}

	status, respBody, err := c.post(ctx, queryPath, body)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		var ge gatewayErrorBody
		if json.Unmarshal(respBody, &ge) == nil && ge.ErrorCode == errorCodePending {
			return &gateway.QueryResult{Pending: true, ResultDescription: ge.ErrorMessage}, nil
		}
		return nil, c.rejectionError(status, respBody)
	}

	var qr queryResponse
	if err := json.Unmarshal(respBody, &qr); err != nil {
		return nil, apperrors.NewGatewayRejectedError("malformed query response", err.Error())
	}

	return &gateway.QueryResult{
		ResultCode:        qr.ResultCode,
		ResultDescription: qr.ResultDescription,
		ReceiptReference:  qr.ReceiptReference,
	}, nil
}

// post sends an authenticated JSON request through the circuit breaker and
// returns the raw status and body. Only transport-level failures count
// against the breaker.
func (c *Client) post(ctx context.Context, path string, payload any) (int, []byte, error) {
	token, err := c.creds.Token(ctx)
	if err != nil {
		return 0, nil, err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal gateway request: %w", err)
	}

	type httpResult struct {
		status int
		body   []byte
	}

	result, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, err
		}
		return httpResult{status: resp.StatusCode, body: body}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return 0, nil, apperrors.NewGatewayUnreachableError("gateway circuit open", err.Error())
		}
		return 0, nil, apperrors.NewGatewayUnreachableError("gateway unreachable", err.Error())
	}

	hr := result.(httpResult)

	if hr.status == http.StatusUnauthorized {
		// Token may have been revoked before its advertised expiry.
		c.creds.Invalidate()
		return 0, nil, apperrors.NewCredentialError("gateway rejected bearer token")
	}

	return hr.status, hr.body, nil
}

func (c *Client) rejectionError(status int, body []byte) error {
	var ge gatewayErrorBody
	if json.Unmarshal(body, &ge) == nil && ge.ErrorMessage != "" {
		return apperrors.NewGatewayRejectedError("gateway rejected request", fmt.Sprintf("%s: %s", ge.ErrorCode, ge.ErrorMessage))
	}
	return apperrors.NewGatewayRejectedError("gateway rejected request", fmt.Sprintf("status %d", status))
}
