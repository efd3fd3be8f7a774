// Package services – Reconciler
//
// This file drives the end-to-end settlement pipeline for one checkout
// session: verify against the provider, transition the ledger, activate the
// purchased grant, dispatch notifications. Every step is idempotent, so the
// pipeline can be replayed from a client poll, a background sweep, or both
// concurrently, and always converges on the same final state.
package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mentorhub/go-mentorship-backend/internal/domain"
	"github.com/mentorhub/go-mentorship-backend/internal/payment"
)

// Outcome states reported to callers.
const (
	OutcomeSucceeded  = "succeeded"
	OutcomeProcessing = "processing"
	OutcomeFailed     = "failed"
)

// Failure reasons recorded on the ledger.
const (
	reasonSessionNotFound = "session_not_found"
	reasonSessionExpired  = "session_expired"
)

// Outcome is the result of reconciling one session. Degraded marks a
// succeeded outcome whose notification email could not be delivered; the
// grant is active regardless, and a later reconciliation retries the email.
type Outcome struct {
	Status      string              `json:"status"`
	Degraded    bool                `json:"degraded,omitempty"`
	Transaction *domain.Transaction `json:"transaction,omitempty"`
	Fulfillment *Fulfillment        `json:"-"`
}

// SessionVerifier abstracts the payment.Verifier for testability.
type SessionVerifier interface {
	Verify(ctx context.Context, accountRef, sessionID string) payment.Verdict
}

// PollPolicy bounds the reconciliation polling loop.
type PollPolicy struct {
	// MaxAttempts caps verification attempts per Poll call.
	MaxAttempts int
	// Interval is the initial delay between attempts.
	Interval time.Duration
	// BackoffFactor multiplies the delay after each attempt; 1 disables
	// backoff. Values below 1 are treated as 1.
	BackoffFactor float64
	// MaxInterval caps the grown delay.
	MaxInterval time.Duration
}

// DefaultPollPolicy mirrors the checkout page's tolerance: roughly a minute
// of polling with gentle backoff.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		MaxAttempts:   10,
		Interval:      2 * time.Second,
		BackoffFactor: 1.5,
		MaxInterval:   15 * time.Second,
	}
}

// Reconciler coordinates verification, ledger transitions, activation and
// notification dispatch.
type Reconciler struct {
	Verifier   SessionVerifier
	Ledger     *LedgerService
	Activator  *ActivationService
	Dispatcher *DispatcherService
	Inflight   *InflightCache
	Policy     PollPolicy
}

// NewReconciler wires the pipeline with the default poll policy.
func NewReconciler(v SessionVerifier, l *LedgerService, a *ActivationService, d *DispatcherService, c *InflightCache) *Reconciler {
	return &Reconciler{
		Verifier:   v,
		Ledger:     l,
		Activator:  a,
		Dispatcher: d,
		Inflight:   c,
		Policy:     DefaultPollPolicy(),
	}
}

// Reconcile runs one pass of the pipeline for sessionID.
//
// The decision table:
//   - ledger row missing            -> ErrTransactionNotFound
//   - already succeeded             -> replay fulfillment, return succeeded
//   - provider verdict settled      -> mark succeeded, fulfill, dispatch
//   - provider verdict not found    -> mark failed, return failed
//   - provider verdict transient    -> return processing, nothing recorded
//   - provider verdict unsettled    -> return processing; a failed row is
//     reopened, since the session being open proves the failure premature
func (r *Reconciler) Reconcile(ctx context.Context, sessionID string) (Outcome, error) {
	tr := otel.Tracer("services/Reconciler")
	ctx, span := tr.Start(ctx, "Reconcile",
		trace.WithAttributes(
			attribute.String("checkout.session_id", sessionID),
		),
	)
	defer span.End()

	tx, err := r.Ledger.BySession(ctx, sessionID)
	if err != nil {
		return Outcome{}, err
	}

	// A settled ledger row short-circuits verification entirely: replay
	// fulfillment (idempotent) in case an earlier run crashed mid-pipeline.
	if tx.Status == domain.TxSucceeded {
		return r.fulfill(ctx, tx)
	}

	if tx.Status == domain.TxPending && r.Inflight.RecentlyOpen(sessionID) {
		return Outcome{Status: OutcomeProcessing, Transaction: tx}, nil
	}

	verdict := r.Verifier.Verify(ctx, tx.AccountRef, sessionID)
	switch verdict.Kind {
	case payment.VerdictSettled:
		r.Inflight.Forget(sessionID)
		if verdict.Session.PaymentIntentID == "" &&
			verdict.Session.PaymentStatus != payment.StatusNoPaymentRequired {
			return Outcome{}, ErrPreconditionFailed
		}
		amount := verdict.Session.AmountTotal
		if amount == 0 {
			amount = tx.Amount
		}
		if _, err := r.Ledger.MarkSucceeded(ctx, tx.ID, verdict.Session.PaymentIntentID, amount); err != nil {
			return Outcome{}, err
		}
		// Fresh re-read: fulfillment must see the terminal row, not the
		// pre-transition snapshot this pass started from.
		tx, err = r.Ledger.BySession(ctx, sessionID)
		if err != nil {
			return Outcome{}, err
		}
		return r.fulfill(ctx, tx)

	case payment.VerdictNotFound:
		r.Inflight.Forget(sessionID)
		if _, err := r.Ledger.MarkFailed(ctx, tx.ID, reasonSessionNotFound); err != nil {
			return Outcome{}, err
		}
		tx, err = r.Ledger.BySession(ctx, sessionID)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Status: OutcomeFailed, Transaction: tx}, nil

	case payment.VerdictTransient:
		log.Ctx(ctx).Warn().Err(verdict.Err).
			Str("session_id", sessionID).
			Msg("session verification unavailable, will retry")
		return Outcome{Status: OutcomeProcessing, Transaction: tx}, nil

	default: // unsettled
		r.Inflight.MarkOpen(sessionID)
		if tx.Status == domain.TxFailed {
			// The session is demonstrably still open, so the earlier
			// failure verdict was premature.
			if reopened, err := r.Ledger.Reopen(ctx, tx.ID); err != nil {
				return Outcome{}, err
			} else if reopened {
				log.Ctx(ctx).Info().
					Str("session_id", sessionID).
					Str("transaction_id", tx.ID).
					Msg("reopened failed transaction, session still open")
				tx, err = r.Ledger.BySession(ctx, sessionID)
				if err != nil {
					return Outcome{}, err
				}
			}
		}
		return Outcome{Status: OutcomeProcessing, Transaction: tx}, nil
	}
}

// fulfill activates the grant for a succeeded transaction and dispatches its
// notifications. Email failure degrades the outcome without failing it.
func (r *Reconciler) fulfill(ctx context.Context, tx *domain.Transaction) (Outcome, error) {
	f, err := r.Activator.Activate(ctx, tx)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Status: OutcomeSucceeded, Transaction: tx, Fulfillment: f}
	if _, err := r.Dispatcher.Dispatch(ctx, f); err != nil {
		log.Ctx(ctx).Error().Err(err).
			Str("transaction_id", tx.ID).
			Str("grant_id", f.GrantID).
			Msg("notification dispatch failed, grant stays active")
		out.Degraded = true
	}
	return out, nil
}

// Poll reconciles sessionID repeatedly until it reaches a terminal outcome,
// the attempt budget runs out, or ctx is cancelled. On budget exhaustion the
// last outcome (processing) is returned.
func (r *Reconciler) Poll(ctx context.Context, sessionID string) (Outcome, error) {
	tr := otel.Tracer("services/Reconciler")
	ctx, span := tr.Start(ctx, "Poll",
		trace.WithAttributes(
			attribute.String("checkout.session_id", sessionID),
		),
	)
	defer span.End()

	policy := r.Policy
	if policy.MaxAttempts <= 0 {
		policy = DefaultPollPolicy()
	}
	if policy.BackoffFactor < 1 {
		policy.BackoffFactor = 1
	}

	delay := policy.Interval
	var out Outcome
	var err error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		out, err = r.Reconcile(ctx, sessionID)
		if err != nil {
			return out, err
		}
		if out.Status != OutcomeProcessing {
			return out, nil
		}
		if attempt == policy.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * policy.BackoffFactor)
		if policy.MaxInterval > 0 && delay > policy.MaxInterval {
			delay = policy.MaxInterval
		}
	}
	return out, nil
}

// Sweep reconciles every open transaction created within the lookback
// window. Sessions older than the window are marked failed as expired;
// per-session errors are logged and do not stop the sweep.
func (r *Reconciler) Sweep(ctx context.Context, lookback time.Duration) {
	tr := otel.Tracer("services/Reconciler")
	ctx, span := tr.Start(ctx, "Sweep",
		trace.WithAttributes(
			attribute.String("lookback", lookback.String()),
		),
	)
	defer span.End()

	cutoff := time.Now().UTC().Add(-lookback)
	open, err := r.Ledger.OpenSince(ctx, cutoff)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("sweep: listing open transactions failed")
		return
	}
	for _, tx := range open {
		if ctx.Err() != nil {
			return
		}
		out, err := r.Reconcile(ctx, tx.SessionID)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).
				Str("session_id", tx.SessionID).
				Msg("sweep: reconcile failed")
			continue
		}
		if out.Status != OutcomeProcessing {
			log.Ctx(ctx).Info().
				Str("session_id", tx.SessionID).
				Str("status", out.Status).
				Bool("degraded", out.Degraded).
				Msg("sweep: session settled")
		}
	}
}

// ExpireStale marks pending transactions older than maxAge as failed when
// the provider no longer knows the session. It piggybacks on Reconcile for
// the provider check, so a still-open old session keeps polling eligibility.
func (r *Reconciler) ExpireStale(ctx context.Context, maxAge time.Duration) {
	cutoff := time.Now().UTC().Add(-maxAge)
	stale, err := r.Ledger.OpenSince(ctx, time.Time{})
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("expire: listing open transactions failed")
		return
	}
	for _, tx := range stale {
		if ctx.Err() != nil {
			return
		}
		if tx.Status != domain.TxPending || !tx.CreatedAt.Before(cutoff) {
			continue
		}
		verdict := r.Verifier.Verify(ctx, tx.AccountRef, tx.SessionID)
		if verdict.Kind == payment.VerdictUnsettled && verdict.Session != nil {
			continue
		}
		if verdict.Kind == payment.VerdictTransient {
			continue
		}
		if verdict.Kind == payment.VerdictSettled {
			if _, err := r.Reconcile(ctx, tx.SessionID); err != nil {
				log.Ctx(ctx).Error().Err(err).
					Str("session_id", tx.SessionID).
					Msg("expire: late settlement failed")
			}
			continue
		}
		if _, err := r.Ledger.MarkFailed(ctx, tx.ID, reasonSessionExpired); err != nil {
			log.Ctx(ctx).Error().Err(err).
				Str("session_id", tx.SessionID).
				Msg("expire: marking failed")
		}
	}
}
