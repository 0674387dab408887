// Package esewa talks to the eSewa payment gateway: building the signed
// redirect form, confirming callback payloads, and polling transaction
// status out of band. Field names and casing on the wire are fixed by the
// gateway and must not be changed.
package esewa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"checkout-svc/circuitbreaker"
	"checkout-svc/config"
	"checkout-svc/models"

	"go.uber.org/zap"
)

const signedFieldNames = "total_amount,transaction_uuid,product_code"

// statusComplete is the gateway's terminal success status.
const statusComplete = "COMPLETE"

type statusResponse struct {
	ProductCode     string      `json:"product_code"`
	TransactionUUID string      `json:"transaction_uuid"`
	TotalAmount     json.Number `json:"total_amount"`
	Status          string      `json:"status"`
	RefID           string      `json:"ref_id"`
}

type Client struct {
	cfg     config.EsewaConfig
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewClient(cfg config.EsewaConfig, logger *zap.Logger) *Client {
	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		breaker: circuitbreaker.NewCircuitBreaker(5, 30*time.Second),
		logger:  logger,
	}
}

// Initiate builds the signed field set the shopper's browser form-POSTs to
// the gateway. The order must still be pending; callers persist a payment
// intent only after this succeeds.
func (c *Client) Initiate(ctx context.Context, order *models.Order) (*models.GatewayForm, error) {
	if order == nil || order.ID == "" {
		return nil, &InitiationError{Reason: "missing order"}
	}
	if order.Status != models.OrderStatusPending {
		return nil, &InitiationError{Reason: fmt.Sprintf("order %s is %s, not pending", order.ID, order.Status)}
	}
	if order.TotalAmount == "" {
		return nil, &InitiationError{Reason: fmt.Sprintf("order %s has no total amount", order.ID)}
	}
	if c.cfg.SecretKey == "" || c.cfg.ProductCode == "" {
		return nil, &InitiationError{Reason: "gateway credentials not configured"}
	}

	fields := map[string]string{
		"amount":                  order.TotalAmount,
		"tax_amount":              "0",
		"total_amount":            order.TotalAmount,
		"transaction_uuid":        order.ID,
		"product_code":            c.cfg.ProductCode,
		"product_service_charge":  "0",
		"product_delivery_charge": "0",
		"success_url":             c.cfg.SuccessURL,
		"failure_url":             c.cfg.FailureURL,
		"signed_field_names":      signedFieldNames,
	}
	fields["signature"] = Sign(c.cfg.SecretKey, signedFieldNames, fields)

	c.logger.Info("Payment initiated",
		zap.String("order_id", order.ID),
		zap.String("total_amount", order.TotalAmount),
	)

	return &models.GatewayForm{
		PaymentURL: c.cfg.PaymentURL,
		Fields:     fields,
	}, nil
}

// Verify is the authoritative confirmation of a callback payload: the
// signature is recomputed locally, then status and amount are confirmed
// against the gateway. A failed signature or a non-complete status is a
// rejection (confirmed=false); a transport failure is a *VerificationError
// and means the result is unknown.
func (c *Client) Verify(ctx context.Context, payload *models.CallbackPayload) (bool, string, error) {
	fieldNames := payload.SignedFieldNames
	if fieldNames == "" {
		fieldNames = signedFieldNames
	}

	values := map[string]string{
		"total_amount":       payload.TotalAmount,
		"transaction_uuid":   payload.TransactionUUID,
		"product_code":       payload.ProductCode,
		"status":             payload.Status,
		"signed_field_names": fieldNames,
	}
	if !VerifySignature(c.cfg.SecretKey, fieldNames, payload.Signature, values) {
		c.logger.Warn("Callback signature mismatch",
			zap.String("transaction_uuid", payload.TransactionUUID),
		)
		return false, "signature mismatch", nil
	}

	st, err := c.fetchStatus(ctx, payload.TransactionUUID, payload.TotalAmount)
	if err != nil {
		return false, "", &VerificationError{Op: "verification", Err: err}
	}

	if st.Status != statusComplete {
		return false, fmt.Sprintf("gateway status %s", st.Status), nil
	}
	if payload.TotalAmount != "" && !amountsEqual(payload.TotalAmount, st.TotalAmount.String()) {
		return false, "amount mismatch", nil
	}
	return true, "", nil
}

// CheckStatus is the out-of-band poll used when no callback payload made it
// back: the transaction uuid is the order id by construction.
func (c *Client) CheckStatus(ctx context.Context, orderID, totalAmount string) (bool, error) {
	st, err := c.fetchStatus(ctx, orderID, totalAmount)
	if err != nil {
		return false, &VerificationError{Op: "status check", Err: err}
	}
	return st.Status == statusComplete, nil
}

// fetchStatus goes through the circuit breaker: a repeatedly failing
// gateway opens the circuit and later calls are rejected immediately. The
// reconciler sees the same *VerificationError either way and resolves to
// its uncertain outcome without waiting out the timeout.
func (c *Client) fetchStatus(ctx context.Context, transactionUUID, totalAmount string) (*statusResponse, error) {
	var st *statusResponse
	err := c.breaker.Execute(func() error {
		var ferr error
		st, ferr = c.doFetchStatus(ctx, transactionUUID, totalAmount)
		return ferr
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (c *Client) doFetchStatus(ctx context.Context, transactionUUID, totalAmount string) (*statusResponse, error) {
	q := url.Values{}
	q.Set("product_code", c.cfg.ProductCode)
	q.Set("total_amount", totalAmount)
	q.Set("transaction_uuid", transactionUUID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.StatusURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status request returned %d", resp.StatusCode)
	}

	var st statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}
	return &st, nil
}

// amountsEqual compares decimal strings the way the gateway formats them:
// "1000", "1000.0" and "1,000.0" are the same amount.
func amountsEqual(a, b string) bool {
	return normalizeAmount(a) == normalizeAmount(b)
}

func normalizeAmount(s string) string {
	s = strings.ReplaceAll(s, ",", "")
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}
