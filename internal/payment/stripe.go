package payment

import (
	"context"
	"errors"
	"net"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// StripeProvider implements Provider on top of the Stripe API. Each call is
// issued against the beneficiary's connected account via the Stripe-Account
// header, so session and intent ids are resolved in the right namespace.
type StripeProvider struct {
	api *client.API
}

// NewStripeProvider builds a provider bound to the given secret key.
func NewStripeProvider(secretKey string) *StripeProvider {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeProvider{api: api}
}

// CreateCheckoutSession opens a hosted checkout session on the connected
// account named by p.AccountRef.
func (s *StripeProvider) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CreatedSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(p.PriceRef), Quantity: stripe.Int64(1)},
		},
		SuccessURL:    stripe.String(p.SuccessURL),
		CancelURL:     stripe.String(p.CancelURL),
		CustomerEmail: stripe.String(p.BuyerEmail),
	}
	params.Context = ctx
	params.SetStripeAccount(p.AccountRef)

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, classifyStripeErr("create_checkout_session", err)
	}
	return &CreatedSession{ID: sess.ID, URL: sess.URL}, nil
}

// GetSession reads one checkout session from the connected account.
func (s *StripeProvider) GetSession(ctx context.Context, accountRef, sessionID string) (*Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.SetStripeAccount(accountRef)

	sess, err := s.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, classifyStripeErr("get_session", err)
	}
	out := &Session{
		ID:            sess.ID,
		PaymentStatus: string(sess.PaymentStatus),
		AmountTotal:   sess.AmountTotal,
		Currency:      string(sess.Currency),
		CustomerEmail: sess.CustomerEmail,
	}
	if sess.PaymentIntent != nil {
		out.PaymentIntentID = sess.PaymentIntent.ID
	}
	return out, nil
}

// GetPaymentIntent reads one payment intent from the connected account.
func (s *StripeProvider) GetPaymentIntent(ctx context.Context, accountRef, intentID string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.SetStripeAccount(accountRef)

	pi, err := s.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		return nil, classifyStripeErr("get_payment_intent", err)
	}
	return &Intent{
		ID:       pi.ID,
		Status:   string(pi.Status),
		Amount:   pi.Amount,
		Currency: string(pi.Currency),
	}, nil
}

// classifyStripeErr maps SDK errors into the boundary's three error kinds.
// A missing resource becomes ErrNotFound; connection failures, timeouts and
// provider 5xx become TransientError; everything else passes through.
func classifyStripeErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &TransientError{Op: op, Err: err}
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch {
		case stripeErr.Code == stripe.ErrorCodeResourceMissing,
			stripeErr.HTTPStatusCode == 404:
			return ErrNotFound
		case stripeErr.HTTPStatusCode >= 500,
			stripeErr.HTTPStatusCode == 429:
			return &TransientError{Op: op, Err: err}
		}
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &TransientError{Op: op, Err: err}
	}
	return &TransientError{Op: op, Err: err}
}
