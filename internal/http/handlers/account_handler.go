// Account HTTP handlers.
//
// This file exposes the read-side and mail endpoints around the payment
// workflow:
//   - GET  /transactions    (current user's ledger rows, by role)
//   - GET  /notifications   (current user's in-app notifications)
//   - POST /emails/welcome  (account welcome email)
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mentorhub/go-mentorship-backend/internal/domain"
	"github.com/mentorhub/go-mentorship-backend/internal/services"
	"github.com/mentorhub/go-mentorship-backend/internal/utils"
)

// ListTransactionsResponse wraps the user's ledger rows.
type ListTransactionsResponse struct {
	Transactions []domain.Transaction `json:"transactions"`
}

// ListNotificationsResponse wraps the user's in-app notifications.
type ListNotificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
}

// WelcomeEmailRequest is the JSON payload for triggering a welcome email.
type WelcomeEmailRequest struct {
	// UserID optionally targets another profile; defaults to the caller.
	UserID string `json:"user_id" example:"4f0a4cf6-2a8e-4f75-8f27-1d7a13a9f111"`
}

// ListTransactions godoc
// @ID          listTransactions
// @Summary     List the user's transactions
// @Description Returns the caller's ledger rows, as buyer by default or as beneficiary with role=mentor.
// @Tags        Transactions
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       role       query   string  false "buyer|mentor"  default(buyer)
//
// @Success     200  {object}  handlers.ListTransactionsResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /transactions [get]
func (h *Handlers) ListTransactions(c *gin.Context) {
	role := strings.ToLower(strings.TrimSpace(c.DefaultQuery("role", "buyer")))
	if role != "buyer" && role != "mentor" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "role must be buyer or mentor")
		return
	}

	items, err := h.booking.Transactions(c.Request.Context(), userID(c), role)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list transactions")
		return
	}
	if items == nil {
		items = []domain.Transaction{}
	}
	ok(c, http.StatusOK, ListTransactionsResponse{Transactions: items})
}

// ListNotifications godoc
// @ID          listNotifications
// @Summary     List the user's notifications
// @Description Returns the caller's in-app notifications, newest first.
// @Tags        Notifications
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       unread     query   bool    false "Only unread notifications"
// @Param       limit      query   int     false "Cap the number of rows returned"
//
// @Success     200  {object}  handlers.ListNotificationsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /notifications [get]
func (h *Handlers) ListNotifications(c *gin.Context) {
	unreadOnly := strings.EqualFold(c.Query("unread"), "true")

	items, err := h.booking.Notifications(c.Request.Context(), userID(c), unreadOnly)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list notifications")
		return
	}
	if items == nil {
		items = []domain.Notification{}
	}
	if limit := utils.AtoiDefault(c.Query("limit"), 0); limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	ok(c, http.StatusOK, ListNotificationsResponse{Notifications: items})
}

// SendWelcomeEmail godoc
// @ID          sendWelcomeEmail
// @Summary     Send the account welcome email
// @Description Delivers the welcome email for a profile, with the mentor variant for mentors.
// @Tags        Emails
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.WelcomeEmailRequest  false "Target profile"
//
// @Success     204  "Email accepted"
// @Failure     404  {object}  handlers.ErrorResponse  "Profile not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Mail provider failure"
// @Router      /emails/welcome [post]
func (h *Handlers) SendWelcomeEmail(c *gin.Context) {
	var req WelcomeEmailRequest
	_ = c.ShouldBindJSON(&req) // body is optional
	target := strings.TrimSpace(req.UserID)
	if target == "" {
		target = userID(c)
	}

	err := h.booking.SendWelcome(c.Request.Context(), target)
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, services.ErrDependencyLookup):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "profile not found")
	default:
		fail(c, http.StatusBadGateway, ErrCodeMailFailed, "could not send welcome email")
	}
}
