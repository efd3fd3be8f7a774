// Package payment defines the trusted boundary to the payment provider and
// the session-verification logic built on top of it.
//
// The core workflow never talks to the provider SDK directly: it consumes the
// Provider interface, which exposes exactly the capability set the
// reconciliation needs (create a checkout session, read a session, read a
// payment intent) against a named connected account. Errors crossing the
// boundary are classified into three kinds the callers care about:
//
//   - not found: the provider does not know the id — a terminal failure,
//     pointless to retry (IsNotFound).
//   - transient: the provider did not answer usefully (network failure, 5xx,
//     timeout) — safe to retry with backoff (IsTransient).
//   - unsettled: the session exists but the payment has not completed — not
//     an error at all; Session.Settled is simply false.
package payment

import (
	"context"
	"errors"
	"fmt"
)

// Payment statuses echoed from the provider for a checkout session.
const (
	StatusPaid              = "paid"
	StatusUnpaid            = "unpaid"
	StatusNoPaymentRequired = "no_payment_required"
)

// Session is the provider's view of one checkout session.
type Session struct {
	ID              string
	PaymentStatus   string // paid | unpaid | no_payment_required
	PaymentIntentID string
	AmountTotal     int64
	Currency        string
	CustomerEmail   string
}

// Settled reports whether the session reached a terminal paid state.
func (s *Session) Settled() bool {
	return s.PaymentStatus == StatusPaid || s.PaymentStatus == StatusNoPaymentRequired
}

// Intent is the provider's view of one payment intent.
type Intent struct {
	ID       string
	Status   string
	Amount   int64
	Currency string
}

// Succeeded reports whether the intent cleared.
func (i *Intent) Succeeded() bool { return i.Status == "succeeded" }

// CheckoutParams carries the inputs for creating a hosted checkout session on
// a beneficiary's connected account.
type CheckoutParams struct {
	AccountRef string // connected account the funds settle on
	PriceRef   string // provider-side price identifier
	BuyerEmail string
	SuccessURL string
	CancelURL  string
}

// CreatedSession is the result of CreateCheckoutSession: the opaque session
// id the ledger keys on, and the hosted URL the buyer is redirected to.
type CreatedSession struct {
	ID  string
	URL string
}

// Provider is the minimal capability set the workflow requires from a payment
// provider. All calls are read-only against provider state except
// CreateCheckoutSession. Implementations must be safe for concurrent use.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CreatedSession, error)
	GetSession(ctx context.Context, accountRef, sessionID string) (*Session, error)
	GetPaymentIntent(ctx context.Context, accountRef, intentID string) (*Intent, error)
}

// ErrNotFound is returned when the provider does not recognize the requested
// session or intent id. Callers treat it as terminal.
var ErrNotFound = errors.New("payment: session not found")

// TransientError wraps provider failures that are safe to retry: network
// errors, provider 5xx responses, and verification timeouts.
type TransientError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *TransientError) Error() string {
	return fmt.Sprintf("payment: transient failure in %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *TransientError) Unwrap() error { return e.Err }

// IsNotFound reports whether err means the provider does not know the id.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsTransient reports whether err is worth retrying with backoff.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
