// Package payment drives a purchase through the checkout gateway as an
// explicit state machine: idle → script-loading → order-created →
// checkout-open → verifying → settled. The checkout widget itself runs in the
// browser; this side creates the order before it opens and verifies the
// completion it reports. No failure is retried automatically, and every
// failure path releases the in-flight flag.
package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

type State int

const (
	StateIdle State = iota
	StateScriptLoading
	StateOrderCreated
	StateCheckoutOpen
	StateVerifying
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScriptLoading:
		return "script_loading"
	case StateOrderCreated:
		return "order_created"
	case StateCheckoutOpen:
		return "checkout_open"
	case StateVerifying:
		return "verifying"
	case StateSettled:
		return "settled"
	default:
		return "unknown"
	}
}

var (
	ErrPurchaseInFlight = errors.New("a purchase is already in flight")
	ErrNoOpenCheckout   = errors.New("no checkout is open")
	ErrVerifyFailed     = errors.New("payment verification failed")
)

// OrderRequest describes the purchase being initiated.
type OrderRequest struct {
	Plan      string
	AmountINR int64
	Currency  string
	Receipt   string
}

// Order is the gateway's created payment order, handed to the checkout
// widget.
type Order struct {
	ID        string `json:"order_id"`
	AmountINR int64  `json:"amount_inr"`
	Currency  string `json:"currency"`
	KeyID     string `json:"key_id"`
	Receipt   string `json:"receipt"`
}

// Outcome is what the checkout widget reported.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeCancelled
	OutcomeFailed
)

// Completion carries the payment identifiers the widget's completion handler
// emits.
type Completion struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

// CheckoutResult is the widget's terminal report: completed with identifiers,
// cancelled by the user, or failed with a reason.
type CheckoutResult struct {
	Outcome    Outcome
	Completion Completion
	Reason     string
}

// Gateway abstracts the checkout provider. EnsureLoaded is the one-time
// script/config bootstrap; CreateOrder and Verify are server round-trips.
type Gateway interface {
	EnsureLoaded(ctx context.Context) error
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	Verify(ctx context.Context, c Completion) error
}

type Orchestrator struct {
	gateway Gateway
	logger  zerolog.Logger

	mu     sync.Mutex
	state  State
	busy   bool
	loaded bool
	order  *Order
}

func NewOrchestrator(gateway Gateway, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{gateway: gateway, logger: logger, state: StateIdle}
}

// State reports the machine's current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Begin runs idle → script-loading → order-created → checkout-open and
// returns the order the widget must be opened with. Any failure returns the
// machine to idle.
func (o *Orchestrator) Begin(ctx context.Context, req OrderRequest) (*Order, error) {
	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		return nil, ErrPurchaseInFlight
	}
	o.busy = true
	o.state = StateScriptLoading
	loaded := o.loaded
	o.mu.Unlock()

	fail := func(err error) (*Order, error) {
		o.mu.Lock()
		o.state = StateIdle
		o.busy = false
		o.order = nil
		o.mu.Unlock()
		return nil, err
	}

	if !loaded {
		if err := o.gateway.EnsureLoaded(ctx); err != nil {
			return fail(fmt.Errorf("load checkout: %w", err))
		}
		o.mu.Lock()
		o.loaded = true
		o.mu.Unlock()
	}

	order, err := o.gateway.CreateOrder(ctx, req)
	if err != nil {
		return fail(fmt.Errorf("create order: %w", err))
	}

	o.mu.Lock()
	o.state = StateCheckoutOpen
	o.order = order
	o.mu.Unlock()
	o.logger.Info().Str("order_id", order.ID).Int64("amount_inr", order.AmountINR).Msg("checkout opened")
	return order, nil
}

// Complete consumes the widget's terminal report. A cancel returns to idle
// with no side effects; a completion moves through verifying, and on
// verification success the caller's continuation runs (it performs the plan
// upgrade write). Verification failure settles the machine without invoking
// the continuation.
func (o *Orchestrator) Complete(ctx context.Context, res CheckoutResult, onSuccess func(context.Context) error) error {
	o.mu.Lock()
	if o.state != StateCheckoutOpen {
		o.mu.Unlock()
		return ErrNoOpenCheckout
	}
	switch res.Outcome {
	case OutcomeCancelled:
		o.state = StateIdle
		o.busy = false
		o.order = nil
		o.mu.Unlock()
		o.logger.Info().Msg("checkout cancelled")
		return nil
	case OutcomeFailed:
		o.state = StateIdle
		o.busy = false
		o.order = nil
		o.mu.Unlock()
		o.logger.Warn().Str("reason", res.Reason).Msg("checkout failed")
		return fmt.Errorf("checkout failed: %s", res.Reason)
	}
	o.state = StateVerifying
	o.mu.Unlock()

	settle := func() {
		o.mu.Lock()
		o.state = StateSettled
		o.busy = false
		o.order = nil
		o.mu.Unlock()
	}

	if err := o.gateway.Verify(ctx, res.Completion); err != nil {
		settle()
		o.logger.Warn().Err(err).Str("order_id", res.Completion.OrderID).Msg("payment verification failed")
		return fmt.Errorf("%w: %v", ErrVerifyFailed, err)
	}
	if onSuccess != nil {
		if err := onSuccess(ctx); err != nil {
			settle()
			return fmt.Errorf("post-payment update: %w", err)
		}
	}
	settle()
	o.logger.Info().Str("order_id", res.Completion.OrderID).Msg("payment settled")
	return nil
}

// Cancel abandons an open checkout, as when the user dismisses the widget
// without the completion handler firing.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateCheckoutOpen || o.state == StateSettled {
		o.state = StateIdle
		o.busy = false
		o.order = nil
	}
}

// Purchase drives a full cycle in one call for flows where the checkout
// result is produced in-process (tests, simulated upgrades).
func (o *Orchestrator) Purchase(ctx context.Context, req OrderRequest, open func(*Order) CheckoutResult, onSuccess func(context.Context) error) error {
	order, err := o.Begin(ctx, req)
	if err != nil {
		return err
	}
	return o.Complete(ctx, open(order), onSuccess)
}
