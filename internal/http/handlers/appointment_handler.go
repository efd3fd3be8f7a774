// Appointment HTTP handlers.
//
// This file exposes REST endpoints for the booking surface:
//   - POST /appointments               (open an appointment checkout)
//   - POST /appointments/{id}/cancel   (cancel a scheduled appointment)
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mentorhub/go-mentorship-backend/internal/services"
)

// BookAppointmentRequest is the JSON payload for booking a mentoring slot.
type BookAppointmentRequest struct {
	// MentorID is the mentor whose calendar is being booked.
	MentorID string `json:"mentor_id" binding:"required" example:"4f0a4cf6-2a8e-4f75-8f27-1d7a13a9f111"`
	// ScheduledDate is the appointment date, formatted 2006-01-02.
	ScheduledDate string `json:"scheduled_date" binding:"required" example:"2026-09-10"`
	// StartTime and EndTime are wall-clock times, formatted 15:04.
	StartTime string `json:"start_time" binding:"required" example:"14:00"`
	EndTime   string `json:"end_time"   binding:"required" example:"15:00"`
	// Timezone is optional; defaults to America/Sao_Paulo.
	Timezone string `json:"timezone" example:"America/Sao_Paulo"`
	// Notes are passed to the mentor with the booking confirmation.
	Notes string `json:"notes" example:"I'd like to review my study plan"`
	// Price is the slot price in minor units.
	Price int64 `json:"price" binding:"required,min=1" example:"8000"`
	// PriceRef is the provider-side price identifier.
	PriceRef string `json:"price_ref" binding:"required" example:"price_1PqrStUvWxYz"`
}

// CancelAppointmentRequest is the JSON payload for cancelling an appointment.
type CancelAppointmentRequest struct {
	// Reason is optional free text relayed to the counterpart.
	Reason string `json:"reason" example:"schedule conflict"`
}

// BookAppointment godoc
// @ID          bookAppointment
// @Summary     Book a mentoring slot
// @Description Verifies the slot is free and opens a checkout session on the mentor's connected account. The appointment itself is created when the payment settles.
// @Tags        Appointments
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header  string  false "Replays the original response on retry"
// @Param       body             body    handlers.BookAppointmentRequest  true  "Booking payload"
//
// @Success     201  {object}  services.Checkout
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Mentor not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Slot unavailable"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /appointments [post]
func (h *Handlers) BookAppointment(c *gin.Context) {
	var req BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid booking payload")
		return
	}

	scope := "appointment:" + req.MentorID + ":" + req.ScheduledDate + ":" + req.StartTime
	if h.replayCheckout(c, scope) {
		return
	}

	out, err := h.booking.BookAppointment(c.Request.Context(), services.AppointmentRequest{
		MenteeID:      userID(c),
		MentorID:      req.MentorID,
		ScheduledDate: req.ScheduledDate,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		Timezone:      req.Timezone,
		Notes:         req.Notes,
		Price:         req.Price,
		PriceRef:      req.PriceRef,
	})
	switch {
	case err == nil:
		if out.Transaction != nil {
			h.rememberCheckout(c, scope, out.Transaction.ID)
		}
		ok(c, http.StatusCreated, out)
	case errors.Is(err, services.ErrSlotUnavailable):
		fail(c, http.StatusConflict, ErrCodeSlotUnavailable, "time slot unavailable")
	case errors.Is(err, services.ErrDependencyLookup):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "mentor not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeCheckoutFailed, "could not open checkout")
	}
}

// CancelAppointment godoc
// @ID          cancelAppointment
// @Summary     Cancel an appointment
// @Description Cancels a scheduled appointment on behalf of one of its participants and notifies the counterpart.
// @Tags        Appointments
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Appointment ID"
// @Param       body       body    handlers.CancelAppointmentRequest  false "Cancellation payload"
//
// @Success     200  {object}  domain.Appointment
// @Failure     403  {object}  handlers.ErrorResponse  "Not a participant"
// @Failure     404  {object}  handlers.ErrorResponse  "Appointment not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Not cancellable"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /appointments/{id}/cancel [post]
func (h *Handlers) CancelAppointment(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "appointment id is required")
		return
	}
	var req CancelAppointmentRequest
	_ = c.ShouldBindJSON(&req) // body is optional

	a, err := h.booking.CancelAppointment(c.Request.Context(), userID(c), id, req.Reason)
	switch {
	case err == nil:
		ok(c, http.StatusOK, a)
	case errors.Is(err, services.ErrAppointmentNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "appointment not found")
	case errors.Is(err, services.ErrNotParticipant):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "not a participant of this appointment")
	case errors.Is(err, services.ErrAlreadyCancelled):
		fail(c, http.StatusConflict, ErrCodeConflict, "appointment is not cancellable")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not cancel appointment")
	}
}
