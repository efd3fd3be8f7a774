// Package services implements the business logic of the marketplace payment
// workflow: opening checkouts, reconciling checkout sessions against the
// provider, activating the purchased access grants, and dispatching the
// one-shot notifications that follow a settled sale.
//
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers. Mapping to
// user-facing messages or HTTP status codes happens at the handler layer.
package services

import "errors"

// Ledger and reconciliation errors.
var (
	// ErrTransactionNotFound indicates no ledger row exists for the
	// requested transaction or checkout session.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrSessionExists is returned when a checkout session id is already
	// tracked by another ledger row.
	ErrSessionExists = errors.New("checkout session already tracked")

	// ErrPreconditionFailed is returned when a settled session carries no
	// payment-intent reference, leaving nothing to key fulfillment on.
	ErrPreconditionFailed = errors.New("settled session has no payment intent")
)

// Booking errors.
var (
	// ErrAppointmentNotFound indicates the requested appointment does not
	// exist.
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotUnavailable is returned when a requested appointment slot
	// overlaps an existing non-cancelled appointment of the same mentor.
	ErrSlotUnavailable = errors.New("time slot unavailable")

	// ErrDependencyLookup indicates a referenced profile or course could
	// not be loaded while assembling a checkout or fulfillment.
	ErrDependencyLookup = errors.New("dependency lookup failed")

	// ErrNotParticipant is returned when a user acts on an appointment
	// they are neither the mentor nor the mentee of.
	ErrNotParticipant = errors.New("user is not a participant of this appointment")

	// ErrAlreadyCancelled is returned when cancelling an appointment that
	// is not in the scheduled state.
	ErrAlreadyCancelled = errors.New("appointment is not cancellable")
)
