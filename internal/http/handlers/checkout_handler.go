// Checkout HTTP handlers.
//
// This file exposes REST endpoints for opening checkouts and settling their
// sessions:
//   - POST /checkout/courses                       (open a course checkout)
//   - GET  /checkout/sessions/{session_id}         (one reconciliation pass)
//   - POST /checkout/sessions/{session_id}/poll    (bounded settlement poll)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mentorhub/go-mentorship-backend/internal/domain"
	"github.com/mentorhub/go-mentorship-backend/internal/http/middleware"
	"github.com/mentorhub/go-mentorship-backend/internal/repo"
	"github.com/mentorhub/go-mentorship-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// BookingService defines checkout and booking operations consumed by HTTP
// handlers. Implementations should be safe for concurrent use and must honor
// the provided context for cancellation and timeouts.
type BookingService interface {
	// StartCourseCheckout opens a checkout session for a course purchase.
	StartCourseCheckout(ctx context.Context, buyerID, courseID string) (*services.Checkout, error)
	// BookAppointment opens a checkout session for a mentoring slot.
	BookAppointment(ctx context.Context, req services.AppointmentRequest) (*services.Checkout, error)
	// CancelAppointment cancels a scheduled appointment for a participant.
	CancelAppointment(ctx context.Context, userID, appointmentID, reason string) (*domain.Appointment, error)
	// SendWelcome delivers the account welcome email.
	SendWelcome(ctx context.Context, userID string) error
	// Notifications lists a user's in-app notifications.
	Notifications(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error)
	// Transactions lists a user's ledger rows in the requested role.
	Transactions(ctx context.Context, userID, role string) ([]domain.Transaction, error)
}

// ReconcileService defines the settlement operations consumed by HTTP
// handlers.
type ReconcileService interface {
	// Reconcile runs one settlement pass for a checkout session.
	Reconcile(ctx context.Context, sessionID string) (services.Outcome, error)
	// Poll reconciles repeatedly until terminal, budget exhaustion or
	// context cancellation.
	Poll(ctx context.Context, sessionID string) (services.Outcome, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for checkouts, appointments, transactions
// and notifications. It depends on abstract service interfaces to keep
// transport concerns separate from business logic.
type Handlers struct {
	booking   BookingService
	reconcile ReconcileService
}

// New constructs a Handlers instance bound to the given services.
func New(booking BookingService, reconcile ReconcileService) *Handlers {
	return &Handlers{booking: booking, reconcile: reconcile}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

// idempotencyTTL bounds how long a checkout-start Idempotency-Key replays.
const idempotencyTTL = 24 * time.Hour

// replayCheckout answers a repeated checkout-start request from its
// idempotency record, rebuilding the original response from the ledger row it
// points at. The scope string stands in for a session id on routes that do
// not have one yet. Reports whether a replay was written. Requires the
// concrete booking service for repository access; interface stubs skip it.
func (h *Handlers) replayCheckout(c *gin.Context, scope string) bool {
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if idemKey == "" {
		return false
	}
	svc, okSvc := h.booking.(*services.BookingService)
	if !okSvc || svc.DB == nil {
		return false
	}
	ctx := c.Request.Context()
	rec, err := repo.GetIdempotency(ctx, svc.DB, userID(c), scope, idemKey, time.Now().UTC())
	if err != nil || rec == nil {
		return false
	}
	tx, err := repo.GetTransaction(ctx, svc.DB, rec.TransactionID)
	if err != nil {
		return false
	}
	url, _ := tx.Metadata["checkout_url"].(string)
	c.Header("Idempotency-Replayed", "true")
	ok(c, http.StatusOK, services.Checkout{URL: url, SessionID: tx.SessionID, Transaction: tx})
	return true
}

// rememberCheckout records the idempotency key behind a successfully opened
// checkout so a retried request replays it instead of opening a second
// provider session. Best effort.
func (h *Handlers) rememberCheckout(c *gin.Context, scope, transactionID string) {
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if idemKey == "" {
		return
	}
	svc, okSvc := h.booking.(*services.BookingService)
	if !okSvc || svc.DB == nil {
		return
	}
	_, _ = repo.CreateIdempotency(c.Request.Context(), svc.DB, userID(c), scope, idemKey, transactionID, http.StatusCreated, idempotencyTTL)
}

//
// DTOs
//

// StartCourseCheckoutRequest is the JSON payload for opening a course
// checkout.
type StartCourseCheckoutRequest struct {
	// CourseID names the course being purchased.
	CourseID string `json:"course_id" binding:"required" example:"7d3c2f8a-9f1e-4a1c-9a64-0f6f4c2b1ab9"`
}

// OutcomeResponse reports the settlement state of one checkout session.
type OutcomeResponse struct {
	Status      string              `json:"status" example:"succeeded"`
	Degraded    bool                `json:"degraded,omitempty"`
	Transaction *domain.Transaction `json:"transaction,omitempty"`
}

func outcomeBody(out services.Outcome) OutcomeResponse {
	return OutcomeResponse{
		Status:      out.Status,
		Degraded:    out.Degraded,
		Transaction: out.Transaction,
	}
}

//
// Handlers
//

// StartCourseCheckout godoc
// @ID          startCourseCheckout
// @Summary     Open a course checkout
// @Description Creates a hosted checkout session on the course owner's connected account and records a pending transaction.
// @Tags        Checkout
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header  string  false "Replays the original response on retry"
// @Param       body             body    handlers.StartCourseCheckoutRequest  true  "Checkout payload"
//
// @Success     201  {object}  services.Checkout
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Course or owner not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /checkout/courses [post]
func (h *Handlers) StartCourseCheckout(c *gin.Context) {
	var req StartCourseCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "course_id is required")
		return
	}

	scope := "course:" + req.CourseID
	if h.replayCheckout(c, scope) {
		return
	}

	out, err := h.booking.StartCourseCheckout(c.Request.Context(), userID(c), req.CourseID)
	switch {
	case err == nil:
		if out.Transaction != nil {
			h.rememberCheckout(c, scope, out.Transaction.ID)
		}
		ok(c, http.StatusCreated, out)
	case errors.Is(err, services.ErrDependencyLookup):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "course or owner not found")
	case errors.Is(err, services.ErrSessionExists):
		fail(c, http.StatusConflict, ErrCodeConflict, "checkout session already tracked")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeCheckoutFailed, "could not open checkout")
	}
}

// GetCheckoutSession godoc
// @ID          getCheckoutSession
// @Summary     Reconcile a checkout session once
// @Description Runs a single verification pass for the session and returns the resulting settlement state.
// @Tags        Checkout
// @Produce     json
//
// @Param       X-User-ID   header  string  false "User ID (demo header)"  example(user123)
// @Param       session_id  path    string  true  "Checkout session ID"
//
// @Success     200  {object}  handlers.OutcomeResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown session"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /checkout/sessions/{session_id} [get]
func (h *Handlers) GetCheckoutSession(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("session_id"))
	if sessionID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session_id is required")
		return
	}

	out, err := h.reconcile.Reconcile(c.Request.Context(), sessionID)
	switch {
	case err == nil:
		middleware.ObserveReconciliation(out.Status, out.Degraded)
		ok(c, http.StatusOK, outcomeBody(out))
	case errors.Is(err, services.ErrTransactionNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "transaction not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeReconcileFailed, "could not reconcile session")
	}
}

// PollCheckoutSession godoc
// @ID          pollCheckoutSession
// @Summary     Poll a checkout session until settled
// @Description Reconciles the session repeatedly with backoff until it settles, fails, or the attempt budget runs out.
// @Tags        Checkout
// @Produce     json
//
// @Param       X-User-ID   header  string  false "User ID (demo header)"  example(user123)
// @Param       session_id  path    string  true  "Checkout session ID"
//
// @Success     200  {object}  handlers.OutcomeResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown session"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /checkout/sessions/{session_id}/poll [post]
func (h *Handlers) PollCheckoutSession(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("session_id"))
	if sessionID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session_id is required")
		return
	}

	out, err := h.reconcile.Poll(c.Request.Context(), sessionID)
	switch {
	case err == nil:
		middleware.ObserveReconciliation(out.Status, out.Degraded)
		ok(c, http.StatusOK, outcomeBody(out))
	case errors.Is(err, services.ErrTransactionNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "transaction not found")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// The client went away mid-poll; report the last known state.
		ok(c, http.StatusOK, outcomeBody(out))
	default:
		fail(c, http.StatusInternalServerError, ErrCodeReconcileFailed, "could not reconcile session")
	}
}
