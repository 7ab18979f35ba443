package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"server/internal/backend"
)

// CheckoutGateway fronts the hosted checkout provider through the backend's
// serverless functions: order creation and payment verification each run
// server-side so the widget key secret never reaches the browser.
type CheckoutGateway struct {
	functions *backend.Functions
	keyID     string
	keySecret string

	loadOnce sync.Once
	loadErr  error
}

type GatewayOptions struct {
	Functions *backend.Functions
	KeyID     string
	KeySecret string
}

func NewCheckoutGateway(opts GatewayOptions) (*CheckoutGateway, error) {
	if opts.Functions == nil {
		return nil, errors.New("functions client is required")
	}
	return &CheckoutGateway{
		functions: opts.Functions,
		keyID:     strings.TrimSpace(opts.KeyID),
		keySecret: strings.TrimSpace(opts.KeySecret),
	}, nil
}

// EnsureLoaded validates the widget configuration once per process, the
// server-side analogue of the one-time script injection.
func (g *CheckoutGateway) EnsureLoaded(_ context.Context) error {
	g.loadOnce.Do(func() {
		if g.keyID == "" {
			g.loadErr = errors.New("checkout key id is not configured")
		}
	})
	return g.loadErr
}

type createOrderRequest struct {
	Plan     string `json:"plan"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type createOrderResponse struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// CreateOrder asks the create-order function for a provider order.
func (g *CheckoutGateway) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	currency := req.Currency
	if currency == "" {
		currency = "INR"
	}
	payload := createOrderRequest{Plan: req.Plan, Amount: req.AmountINR, Currency: currency, Receipt: req.Receipt}
	var out createOrderResponse
	if err := g.functions.Invoke(ctx, "", "create-order", payload, &out); err != nil {
		return nil, err
	}
	if out.OrderID == "" {
		return nil, errors.New("create-order returned no order id")
	}
	amount := out.Amount
	if amount == 0 {
		amount = req.AmountINR
	}
	return &Order{ID: out.OrderID, AmountINR: amount, Currency: currency, KeyID: g.keyID, Receipt: req.Receipt}, nil
}

type verifyRequest struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

type verifyResponse struct {
	Verified bool `json:"verified"`
}

// Verify checks the completion signature locally when the key secret is
// configured, then defers to the verify-payment function as the authority.
func (g *CheckoutGateway) Verify(ctx context.Context, c Completion) error {
	if c.OrderID == "" || c.PaymentID == "" {
		return errors.New("incomplete payment identifiers")
	}
	if g.keySecret != "" && !g.signatureValid(c) {
		return errors.New("payment signature mismatch")
	}
	var out verifyResponse
	if err := g.functions.Invoke(ctx, "", "verify-payment", verifyRequest{
		OrderID: c.OrderID, PaymentID: c.PaymentID, Signature: c.Signature,
	}, &out); err != nil {
		return err
	}
	if !out.Verified {
		return errors.New("verification rejected")
	}
	return nil
}

func (g *CheckoutGateway) signatureValid(c Completion) bool {
	mac := hmac.New(sha256.New, []byte(g.keySecret))
	fmt.Fprintf(mac, "%s|%s", c.OrderID, c.PaymentID)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(c.Signature))
}

var _ Gateway = (*CheckoutGateway)(nil)
