// Package services – DispatcherService
//
// This file fires the side effects of a fulfilled sale: the transactional
// email to the beneficiary and the in-app notification row. Delivery is
// at-most-once per grant, gated on the grant's notified marker: the email is
// sent first, and only a successful send flips the marker and inserts the
// notification, both inside one database transaction. The conditional
// marker update serializes concurrent dispatchers — whoever flips it owns
// the in-app insert, everyone else backs off.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/mentorhub/go-mentorship-backend/internal/domain"
	"github.com/mentorhub/go-mentorship-backend/internal/mail"
	"github.com/mentorhub/go-mentorship-backend/internal/utils"
)

// NotifyStore defines the repository contract required by DispatcherService.
type NotifyStore interface {
	MarkEnrollmentNotified(ctx context.Context, db *gorm.DB, id string, at time.Time) (int64, error)
	MarkAppointmentNotified(ctx context.Context, db *gorm.DB, id string, at time.Time) (int64, error)
	CreateNotification(ctx context.Context, db *gorm.DB, n *domain.Notification) (*domain.Notification, error)
}

// DispatcherService delivers the one-shot notifications for fulfilled sales.
type DispatcherService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Store is the notification repository used by this service.
	Store NotifyStore
	// Mailer delivers transactional email.
	Mailer mail.Mailer
	// CourseURL is the link embedded in the buyer's enrollment confirmation.
	CourseURL string
	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// NewDispatcherService constructs a DispatcherService.
func NewDispatcherService(db *gorm.DB, store NotifyStore, mailer mail.Mailer) *DispatcherService {
	return &DispatcherService{DB: db, Store: store, Mailer: mailer, Now: time.Now}
}

// Dispatch notifies both sides of a fulfilled sale about f. It reports
// whether this call performed the delivery; (false, nil) means another
// dispatcher already did, or the marker was set before this reconciliation
// ran. A send failure on the beneficiary notice leaves the marker untouched
// so a later reconciliation retries. A render failure is deterministic, so
// the marker still flips to avoid wedging the grant in a notify loop, but
// the error is returned so the caller flags the outcome as degraded. The
// buyer confirmation rides along best-effort and never blocks the marker.
func (s *DispatcherService) Dispatch(ctx context.Context, f *Fulfillment) (bool, error) {
	if f.Notified {
		return false, nil
	}

	var renderErr error
	msg, err := s.buildMessage(f)
	switch {
	case err == nil:
		if err := s.Mailer.Send(ctx, msg); err != nil {
			return false, err
		}
	default:
		var re *mail.RenderError
		if !errors.As(err, &re) {
			return false, err
		}
		log.Ctx(ctx).Error().Err(err).
			Str("grant_id", f.GrantID).
			Str("kind", f.Kind).
			Msg("notification template failed to render, skipping email")
		renderErr = err
	}

	if renderErr == nil {
		s.sendConfirmation(ctx, f)
	}

	notif := s.buildNotification(f)
	won := false
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		var err error
		switch f.Kind {
		case domain.KindCourse:
			n, err = s.Store.MarkEnrollmentNotified(ctx, tx, f.GrantID, s.Now().UTC())
		case domain.KindAppointment:
			n, err = s.Store.MarkAppointmentNotified(ctx, tx, f.GrantID, s.Now().UTC())
		default:
			return fmt.Errorf("services: unknown fulfillment kind %q", f.Kind)
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		won = true
		_, err = s.Store.CreateNotification(ctx, tx, notif)
		return err
	})
	if err != nil {
		return false, err
	}
	return won, renderErr
}

// sendConfirmation emails the buyer their side of a course sale. Appointment
// confirmations go out at booking time, so only enrollments are handled here.
// Failure is logged and swallowed; the beneficiary notice already anchors the
// at-most-once marker.
func (s *DispatcherService) sendConfirmation(ctx context.Context, f *Fulfillment) {
	if f.Kind != domain.KindCourse {
		return
	}
	params := mail.EnrollmentParams{
		StudentName: f.Buyer.FullName,
		CourseName:  f.Course.Title,
		OwnerName:   f.Mentor.FullName,
		CourseURL:   s.CourseURL,
	}
	msg, err := mail.RenderMessage(mail.TemplateEnrollment, params.Params(), f.Buyer.Email, f.Buyer.FullName)
	if err == nil {
		err = s.Mailer.Send(ctx, msg)
	}
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).
			Str("grant_id", f.GrantID).
			Msg("enrollment confirmation email failed")
	}
}

// buildMessage renders the beneficiary email for f.
func (s *DispatcherService) buildMessage(f *Fulfillment) (mail.Message, error) {
	switch f.Kind {
	case domain.KindCourse:
		params := mail.CourseSaleParams{
			OwnerName:   f.Mentor.FullName,
			StudentName: f.Buyer.FullName,
			CourseName:  f.Course.Title,
			Price:       utils.FormatMinorUnits(f.Amount, "brl"),
		}
		return mail.RenderMessage(mail.TemplateCourseSale, params.Params(), f.Mentor.Email, f.Mentor.FullName)
	case domain.KindAppointment:
		a := f.Appointment
		params := mail.NewScheduleParams{
			MentorName: f.Mentor.FullName,
			MenteeName: f.Buyer.FullName,
			Date:       a.ScheduledDate,
			StartTime:  a.StartTime,
			EndTime:    a.EndTime,
			Timezone:   a.Timezone,
			Notes:      a.Notes,
			MeetLink:   a.MeetLink,
		}
		return mail.RenderMessage(mail.TemplateNewSchedule, params.Params(), f.Mentor.Email, f.Mentor.FullName)
	default:
		return mail.Message{}, fmt.Errorf("services: unknown fulfillment kind %q", f.Kind)
	}
}

// buildNotification assembles the in-app row mirroring the email.
func (s *DispatcherService) buildNotification(f *Fulfillment) *domain.Notification {
	n := &domain.Notification{
		ReceiverID:   f.Mentor.ID,
		ReceiverName: f.Mentor.FullName,
		SenderID:     &f.Buyer.ID,
		SenderName:   &f.Buyer.FullName,
	}
	switch f.Kind {
	case domain.KindCourse:
		n.Type = domain.NotificationCourseSale
		n.Title = "New course sale"
		n.Message = fmt.Sprintf("%s enrolled in %s for %s.",
			f.Buyer.FullName, f.Course.Title, utils.FormatMinorUnits(f.Amount, "brl"))
	case domain.KindAppointment:
		n.Type = domain.NotificationNewAppointment
		n.Title = "New appointment booked"
		n.Message = fmt.Sprintf("%s booked %s at %s (%s).",
			f.Buyer.FullName, f.Appointment.ScheduledDate, f.Appointment.StartTime, f.Appointment.Timezone)
	}
	return n
}
