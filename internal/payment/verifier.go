package payment

import (
	"context"
	"time"
)

// VerdictKind classifies the outcome of a session verification.
type VerdictKind int

// Verification outcomes, in order of increasing certainty of failure.
const (
	VerdictSettled   VerdictKind = iota // payment completed, safe to fulfill
	VerdictUnsettled                    // session exists but not paid yet
	VerdictTransient                    // provider unreachable, retry later
	VerdictNotFound                     // provider does not know the session
)

// Verdict is the result of a single verification attempt. Session is set for
// Settled and Unsettled verdicts; Err carries the cause for Transient ones.
type Verdict struct {
	Kind    VerdictKind
	Session *Session
	Err     error
}

// Verifier answers the single question the ledger transition hinges on: has
// this checkout session settled. Every attempt runs under a hard deadline so
// a hung provider call degrades into a retriable verdict instead of stalling
// the caller.
type Verifier struct {
	provider Provider
	timeout  time.Duration
}

// NewVerifier wraps a provider with a per-attempt deadline. A non-positive
// timeout falls back to 10 seconds.
func NewVerifier(p Provider, timeout time.Duration) *Verifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Verifier{provider: p, timeout: timeout}
}

// Verify performs one bounded verification attempt against the connected
// account. Deadline overruns are reported as Transient, never as NotFound.
func (v *Verifier) Verify(ctx context.Context, accountRef, sessionID string) Verdict {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	sess, err := v.provider.GetSession(ctx, accountRef, sessionID)
	switch {
	case err == nil:
		if sess.Settled() {
			return Verdict{Kind: VerdictSettled, Session: sess}
		}
		return Verdict{Kind: VerdictUnsettled, Session: sess}
	case IsNotFound(err):
		return Verdict{Kind: VerdictNotFound, Err: err}
	default:
		return Verdict{Kind: VerdictTransient, Err: err}
	}
}
