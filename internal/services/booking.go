// Package services – BookingService
//
// This file opens checkouts and manages the booking surface around them:
// creating the provider session and its pending ledger row, guarding mentor
// calendars against double-booking, cancelling appointments, and sending the
// account welcome email. Settlement of the sessions opened here is handled by
// the Reconciler.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/mentorhub/go-mentorship-backend/internal/domain"
	"github.com/mentorhub/go-mentorship-backend/internal/mail"
	"github.com/mentorhub/go-mentorship-backend/internal/payment"
	"github.com/mentorhub/go-mentorship-backend/internal/repo"
)

// BookingStore defines the repository contract required by BookingService.
type BookingStore interface {
	GetProfile(ctx context.Context, db *gorm.DB, id string) (*domain.Profile, error)
	GetCourse(ctx context.Context, db *gorm.DB, id string) (*domain.Course, error)
	UpsertPlaceholderEnrollment(ctx context.Context, db *gorm.DB, courseID, studentID, studentName, ownerID, ownerName string) error
	HasAppointmentConflict(ctx context.Context, db *gorm.DB, mentorID, date, startTime, endTime string) (bool, error)
	GetAppointment(ctx context.Context, db *gorm.DB, id string) (*domain.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, db *gorm.DB, id, status string) error
	CreateNotification(ctx context.Context, db *gorm.DB, n *domain.Notification) (*domain.Notification, error)
	ListNotifications(ctx context.Context, db *gorm.DB, receiverID string, unreadOnly bool) ([]domain.Notification, error)
}

// CheckoutURLs are the redirect targets handed to the provider when a
// session is created. SuccessURL should contain the provider's session-id
// placeholder so the frontend can poll the right session on return.
type CheckoutURLs struct {
	SuccessURL string
	CancelURL  string
	LoginURL   string
}

// AppointmentRequest is the input for booking a mentoring slot.
type AppointmentRequest struct {
	MenteeID      string
	MentorID      string
	ScheduledDate string // 2006-01-02
	StartTime     string // 15:04
	EndTime       string // 15:04
	Timezone      string
	Notes         string
	Price         int64 // minor units
	PriceRef      string
}

// Checkout is the result of opening a checkout: the hosted payment URL and
// the ledger row tracking it.
type Checkout struct {
	URL         string              `json:"url"`
	SessionID   string              `json:"session_id"`
	Transaction *domain.Transaction `json:"transaction"`
}

// BookingService opens checkouts and manages appointments outside the
// settlement path.
type BookingService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Store is the repository used by this service.
	Store BookingStore
	// Provider creates hosted checkout sessions.
	Provider payment.Provider
	// Ledger records the pending transactions behind each session.
	Ledger *LedgerService
	// Mailer delivers cancellation and welcome email.
	Mailer mail.Mailer
	// URLs are the provider redirect targets.
	URLs CheckoutURLs
}

// NewBookingService constructs a BookingService.
func NewBookingService(db *gorm.DB, store BookingStore, provider payment.Provider, ledger *LedgerService, mailer mail.Mailer, urls CheckoutURLs) *BookingService {
	return &BookingService{DB: db, Store: store, Provider: provider, Ledger: ledger, Mailer: mailer, URLs: urls}
}

// StartCourseCheckout opens a checkout session for a course purchase. The
// charge settles on the course owner's connected account; a pending ledger
// row and an inactive placeholder enrollment are recorded before returning.
func (s *BookingService) StartCourseCheckout(ctx context.Context, buyerID, courseID string) (*Checkout, error) {
	tr := otel.Tracer("services/BookingService")
	ctx, span := tr.Start(ctx, "StartCourseCheckout",
		trace.WithAttributes(
			attribute.String("user.id", buyerID),
			attribute.String("course.id", courseID),
		),
	)
	defer span.End()

	buyer, err := s.Store.GetProfile(ctx, s.DB, buyerID)
	if err != nil {
		return nil, lookupErr(err)
	}
	course, err := s.Store.GetCourse(ctx, s.DB, courseID)
	if err != nil {
		return nil, lookupErr(err)
	}
	owner, err := s.Store.GetProfile(ctx, s.DB, course.MentorID)
	if err != nil {
		return nil, lookupErr(err)
	}
	if owner.AccountRef == "" {
		return nil, fmt.Errorf("%w: course owner %s has no connected account", ErrDependencyLookup, owner.ID)
	}

	created, err := s.Provider.CreateCheckoutSession(ctx, payment.CheckoutParams{
		AccountRef: owner.AccountRef,
		PriceRef:   course.PriceRef,
		BuyerEmail: buyer.Email,
		SuccessURL: s.URLs.SuccessURL,
		CancelURL:  s.URLs.CancelURL,
	})
	if err != nil {
		return nil, err
	}

	tx, err := s.Ledger.Open(ctx, repo.TransactionDraft{
		SessionID:  created.ID,
		BuyerID:    buyer.ID,
		MentorID:   owner.ID,
		Kind:       domain.KindCourse,
		CourseID:   &course.ID,
		AccountRef: owner.AccountRef,
		Amount:     course.Price,
		Metadata: map[string]interface{}{
			"course_title": course.Title,
			"checkout_url": created.URL,
		},
	})
	if err != nil {
		return nil, err
	}

	// Best effort: the placeholder gives the activator a natural-key row to
	// reactivate, but activation inserts its own if this insert loses.
	if err := s.Store.UpsertPlaceholderEnrollment(ctx, s.DB, course.ID, buyer.ID, buyer.FullName, owner.ID, owner.FullName); err != nil && !errors.Is(err, repo.ErrDuplicate) {
		log.Ctx(ctx).Warn().Err(err).
			Str("course_id", course.ID).
			Str("student_id", buyer.ID).
			Msg("placeholder enrollment insert failed")
	}

	return &Checkout{URL: created.URL, SessionID: created.ID, Transaction: tx}, nil
}

// BookAppointment opens a checkout session for a mentoring slot after
// verifying the slot is free. The slot's natural key travels in the ledger
// row's metadata; the appointment row itself is only inserted once the
// payment settles.
func (s *BookingService) BookAppointment(ctx context.Context, req AppointmentRequest) (*Checkout, error) {
	tr := otel.Tracer("services/BookingService")
	ctx, span := tr.Start(ctx, "BookAppointment",
		trace.WithAttributes(
			attribute.String("mentor.id", req.MentorID),
			attribute.String("user.id", req.MenteeID),
		),
	)
	defer span.End()

	if req.ScheduledDate == "" || req.StartTime == "" || req.EndTime == "" || req.StartTime >= req.EndTime {
		return nil, fmt.Errorf("%w: malformed slot", ErrSlotUnavailable)
	}
	mentee, err := s.Store.GetProfile(ctx, s.DB, req.MenteeID)
	if err != nil {
		return nil, lookupErr(err)
	}
	mentor, err := s.Store.GetProfile(ctx, s.DB, req.MentorID)
	if err != nil {
		return nil, lookupErr(err)
	}
	if mentor.AccountRef == "" {
		return nil, fmt.Errorf("%w: mentor %s has no connected account", ErrDependencyLookup, mentor.ID)
	}

	busy, err := s.Store.HasAppointmentConflict(ctx, s.DB, mentor.ID, req.ScheduledDate, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	if busy {
		return nil, ErrSlotUnavailable
	}

	created, err := s.Provider.CreateCheckoutSession(ctx, payment.CheckoutParams{
		AccountRef: mentor.AccountRef,
		PriceRef:   req.PriceRef,
		BuyerEmail: mentee.Email,
		SuccessURL: s.URLs.SuccessURL,
		CancelURL:  s.URLs.CancelURL,
	})
	if err != nil {
		return nil, err
	}

	timezone := req.Timezone
	if timezone == "" {
		timezone = "America/Sao_Paulo"
	}
	tx, err := s.Ledger.Open(ctx, repo.TransactionDraft{
		SessionID:  created.ID,
		BuyerID:    mentee.ID,
		MentorID:   mentor.ID,
		Kind:       domain.KindAppointment,
		AccountRef: mentor.AccountRef,
		Amount:     req.Price,
		Metadata: map[string]interface{}{
			"scheduled_date": req.ScheduledDate,
			"start_time":     req.StartTime,
			"end_time":       req.EndTime,
			"timezone":       timezone,
			"notes":          req.Notes,
			"checkout_url":   created.URL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &Checkout{URL: created.URL, SessionID: created.ID, Transaction: tx}, nil
}

// CancelAppointment cancels a scheduled appointment on behalf of one of its
// participants and notifies the counterpart by email and in-app row. The
// cancellation itself always wins: notification failures are logged, not
// returned.
func (s *BookingService) CancelAppointment(ctx context.Context, userID, appointmentID, reason string) (*domain.Appointment, error) {
	a, err := s.Store.GetAppointment(ctx, s.DB, appointmentID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, err
	}
	if userID != a.MentorID && userID != a.MenteeID {
		return nil, ErrNotParticipant
	}
	if a.Status != domain.AppointmentScheduled {
		return nil, ErrAlreadyCancelled
	}

	if err := s.Store.UpdateAppointmentStatus(ctx, s.DB, a.ID, domain.AppointmentCancelled); err != nil {
		return nil, err
	}
	a.Status = domain.AppointmentCancelled

	counterpartID := a.MentorID
	counterpartName := a.MentorName
	cancellerName := a.MenteeName
	if userID == a.MentorID {
		counterpartID = a.MenteeID
		counterpartName = a.MenteeName
		cancellerName = a.MentorName
	}
	s.notifyCancellation(ctx, a, counterpartID, counterpartName, cancellerName, reason)
	return a, nil
}

func (s *BookingService) notifyCancellation(ctx context.Context, a *domain.Appointment, counterpartID, counterpartName, cancellerName, reason string) {
	counterpart, err := s.Store.GetProfile(ctx, s.DB, counterpartID)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).
			Str("appointment_id", a.ID).
			Msg("cancellation notice skipped, counterpart lookup failed")
		return
	}

	params := mail.CancelParams{
		RecipientName: counterpartName,
		CancellerName: cancellerName,
		Date:          a.ScheduledDate,
		StartTime:     a.StartTime,
		Reason:        reason,
	}
	msg, err := mail.RenderMessage(mail.TemplateCancel, params.Params(), counterpart.Email, counterpartName)
	if err == nil {
		err = s.Mailer.Send(ctx, msg)
	}
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).
			Str("appointment_id", a.ID).
			Msg("cancellation email failed")
	}

	if _, err := s.Store.CreateNotification(ctx, s.DB, &domain.Notification{
		ReceiverID:   counterpartID,
		ReceiverName: counterpartName,
		Type:         domain.NotificationCancellation,
		Title:        "Appointment cancelled",
		Message:      fmt.Sprintf("%s cancelled your appointment on %s at %s.", cancellerName, a.ScheduledDate, a.StartTime),
	}); err != nil {
		log.Ctx(ctx).Warn().Err(err).
			Str("appointment_id", a.ID).
			Msg("cancellation notification insert failed")
	}
}

// SendWelcome delivers the account welcome email for a profile, with the
// mentor variant when the profile is a mentor.
func (s *BookingService) SendWelcome(ctx context.Context, userID string) error {
	p, err := s.Store.GetProfile(ctx, s.DB, userID)
	if err != nil {
		return lookupErr(err)
	}
	params := mail.WelcomeParams{
		UserName: p.FullName,
		LoginURL: s.URLs.LoginURL,
		IsMentor: p.Role == domain.RoleMentor,
	}
	msg, err := mail.RenderMessage(mail.TemplateWelcome, params.Params(), p.Email, p.FullName)
	if err != nil {
		return err
	}
	return s.Mailer.Send(ctx, msg)
}

// Notifications lists a user's in-app notifications, optionally unread only.
func (s *BookingService) Notifications(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error) {
	return s.Store.ListNotifications(ctx, s.DB, userID, unreadOnly)
}

// Transactions lists the user's ledger rows in the requested role.
func (s *BookingService) Transactions(ctx context.Context, userID, role string) ([]domain.Transaction, error) {
	return s.Ledger.ListByUser(ctx, userID, role)
}
