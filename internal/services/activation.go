// Package services – ActivationService
//
// This file activates the access grant a settled transaction paid for: a
// course enrollment or a mentoring appointment. Activation is idempotent via
// a three-tier lookup chain keyed on progressively weaker identifiers:
//
//  1. payment-intent id — the strongest axis; a hit means this exact payment
//     was already fulfilled and the call is a no-op. Skipped when the
//     settlement carries no intent (fully discounted sessions settle as
//     no_payment_required without one).
//  2. natural key — (course, student) or (mentor, mentee, date, start); a hit
//     that is already active is returned as-is, anything else is reactivated
//     and backfilled with the payment reference instead of duplicated.
//  3. insert — a fresh grant; a unique violation here means a concurrent
//     reconciler won the race, and the row it inserted is refetched and
//     returned as this call's result.
package services

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/mentorhub/go-mentorship-backend/internal/domain"
	"github.com/mentorhub/go-mentorship-backend/internal/repo"
)

// GrantStore defines the repository contract required by ActivationService.
type GrantStore interface {
	GetEnrollmentByPaymentIntent(ctx context.Context, db *gorm.DB, paymentIntentID string) (*domain.Enrollment, error)
	GetEnrollment(ctx context.Context, db *gorm.DB, courseID, studentID string) (*domain.Enrollment, error)
	CreateEnrollment(ctx context.Context, db *gorm.DB, e *domain.Enrollment) (*domain.Enrollment, error)
	ActivateEnrollment(ctx context.Context, db *gorm.DB, id string, fill repo.EnrollmentFill) error

	GetAppointmentByPaymentIntent(ctx context.Context, db *gorm.DB, paymentIntentID string) (*domain.Appointment, error)
	GetAppointmentByNaturalKey(ctx context.Context, db *gorm.DB, mentorID, menteeID, date, startTime string) (*domain.Appointment, error)
	CreateAppointment(ctx context.Context, db *gorm.DB, a *domain.Appointment) (*domain.Appointment, error)
	BackfillAppointment(ctx context.Context, db *gorm.DB, id string, fill repo.AppointmentFill) error
	UpdateAppointmentStatus(ctx context.Context, db *gorm.DB, id, status string) error

	GetProfile(ctx context.Context, db *gorm.DB, id string) (*domain.Profile, error)
	GetCourse(ctx context.Context, db *gorm.DB, id string) (*domain.Course, error)
}

// Fulfillment describes the grant a settled transaction produced, with the
// denormalized context the notification dispatcher needs. Notified mirrors
// the grant's at-most-once marker at activation time; Created is true only
// when this call inserted the grant, so re-runs and race losers report the
// existing row without claiming it.
type Fulfillment struct {
	Kind        string // course | appointment
	GrantID     string
	Created     bool
	Notified    bool
	Buyer       *domain.Profile
	Mentor      *domain.Profile
	Course      *domain.Course      // set for course fulfillments
	Appointment *domain.Appointment // set for appointment fulfillments
	Amount      int64
}

// ActivationService turns settled transactions into active access grants.
type ActivationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Store is the grant repository used by this service.
	Store GrantStore

	// NameLocale drives display-name title casing.
	NameLocale language.Tag
}

// NewActivationService constructs an ActivationService with English casing.
func NewActivationService(db *gorm.DB, store GrantStore) *ActivationService {
	return &ActivationService{DB: db, Store: store, NameLocale: language.English}
}

// Activate fulfills tx. The transaction must be succeeded; a missing payment
// intent is allowed (fully discounted sessions never mint one) and simply
// drops the tier-1 lookup, leaving the natural key to carry idempotency.
func (s *ActivationService) Activate(ctx context.Context, tx *domain.Transaction) (*Fulfillment, error) {
	if tx.Status != domain.TxSucceeded {
		return nil, ErrPreconditionFailed
	}

	buyer, err := s.Store.GetProfile(ctx, s.DB, tx.BuyerID)
	if err != nil {
		return nil, lookupErr(err)
	}
	mentor, err := s.Store.GetProfile(ctx, s.DB, tx.MentorID)
	if err != nil {
		return nil, lookupErr(err)
	}

	switch tx.Kind {
	case domain.KindCourse:
		return s.activateEnrollment(ctx, tx, buyer, mentor)
	case domain.KindAppointment:
		return s.activateAppointment(ctx, tx, buyer, mentor)
	default:
		return nil, ErrPreconditionFailed
	}
}

func (s *ActivationService) activateEnrollment(ctx context.Context, tx *domain.Transaction, buyer, mentor *domain.Profile) (*Fulfillment, error) {
	if tx.CourseID == nil {
		return nil, ErrPreconditionFailed
	}
	course, err := s.Store.GetCourse(ctx, s.DB, *tx.CourseID)
	if err != nil {
		return nil, lookupErr(err)
	}

	result := func(e *domain.Enrollment, created bool) *Fulfillment {
		return &Fulfillment{
			Kind:     domain.KindCourse,
			GrantID:  e.ID,
			Created:  created,
			Notified: e.Notified,
			Buyer:    buyer,
			Mentor:   mentor,
			Course:   course,
			Amount:   tx.Amount,
		}
	}
	intent := paymentIntent(tx)
	fill := repo.EnrollmentFill{
		StudentName:     s.displayName(buyer.FullName),
		OwnerID:         mentor.ID,
		OwnerName:       s.displayName(mentor.FullName),
		Price:           tx.Amount,
		PaymentIntentID: intent,
	}

	// Tier 1: this payment was already fulfilled.
	if intent != nil {
		if e, err := s.Store.GetEnrollmentByPaymentIntent(ctx, s.DB, *intent); err == nil {
			return result(e, false), nil
		} else if !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
	}

	// Tier 2: a row for this (course, student) pre-exists. An active row is
	// the grant itself and stays untouched; anything else is reactivated and
	// backfilled with this settlement's payment reference.
	if e, err := s.Store.GetEnrollment(ctx, s.DB, *tx.CourseID, tx.BuyerID); err == nil {
		if e.Status == domain.EnrollmentActive {
			return result(e, false), nil
		}
		if err := s.Store.ActivateEnrollment(ctx, s.DB, e.ID, fill); err != nil {
			return nil, err
		}
		e, err = s.Store.GetEnrollment(ctx, s.DB, *tx.CourseID, tx.BuyerID)
		if err != nil {
			return nil, err
		}
		return result(e, false), nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	// Tier 3: insert, tolerating a concurrent winner.
	e, err := s.Store.CreateEnrollment(ctx, s.DB, &domain.Enrollment{
		CourseID:        *tx.CourseID,
		StudentID:       tx.BuyerID,
		Status:          domain.EnrollmentActive,
		StudentName:     fill.StudentName,
		CourseOwnerID:   fill.OwnerID,
		CourseOwnerName: fill.OwnerName,
		Price:           fill.Price,
		PaymentIntentID: fill.PaymentIntentID,
	})
	if errors.Is(err, repo.ErrDuplicate) {
		e, err = s.Store.GetEnrollment(ctx, s.DB, *tx.CourseID, tx.BuyerID)
		if err != nil {
			return nil, err
		}
		return result(e, false), nil
	}
	if err != nil {
		return nil, err
	}
	return result(e, true), nil
}

func (s *ActivationService) activateAppointment(ctx context.Context, tx *domain.Transaction, buyer, mentor *domain.Profile) (*Fulfillment, error) {
	slot, err := slotFromMetadata(tx.Metadata)
	if err != nil {
		return nil, err
	}

	result := func(a *domain.Appointment, created bool) *Fulfillment {
		return &Fulfillment{
			Kind:        domain.KindAppointment,
			GrantID:     a.ID,
			Created:     created,
			Notified:    a.Notified,
			Buyer:       buyer,
			Mentor:      mentor,
			Appointment: a,
			Amount:      tx.Amount,
		}
	}
	intent := paymentIntent(tx)
	fill := repo.AppointmentFill{
		MentorName:      s.displayName(mentor.FullName),
		MenteeName:      s.displayName(buyer.FullName),
		Price:           tx.Amount,
		PaymentIntentID: intent,
		TransactionID:   &tx.ID,
	}

	// Tier 1: this payment was already fulfilled.
	if intent != nil {
		if a, err := s.Store.GetAppointmentByPaymentIntent(ctx, s.DB, *intent); err == nil {
			return result(a, false), nil
		} else if !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
	}

	// Tier 2: a row for this slot pre-exists. A live booking is returned
	// as-is; only a cancelled row is revived and backfilled so a stale
	// cancellation does not shadow the paid booking.
	reuse := func(a *domain.Appointment) (*Fulfillment, error) {
		if a.Status != domain.AppointmentCancelled {
			return result(a, false), nil
		}
		if err := s.Store.BackfillAppointment(ctx, s.DB, a.ID, fill); err != nil {
			return nil, err
		}
		if err := s.Store.UpdateAppointmentStatus(ctx, s.DB, a.ID, domain.AppointmentScheduled); err != nil {
			return nil, err
		}
		a, err := s.Store.GetAppointmentByNaturalKey(ctx, s.DB, tx.MentorID, tx.BuyerID, slot.date, slot.start)
		if err != nil {
			return nil, err
		}
		return result(a, false), nil
	}
	if a, err := s.Store.GetAppointmentByNaturalKey(ctx, s.DB, tx.MentorID, tx.BuyerID, slot.date, slot.start); err == nil {
		return reuse(a)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	// Tier 3: insert, tolerating a concurrent winner.
	a, err := s.Store.CreateAppointment(ctx, s.DB, &domain.Appointment{
		MentorID:        tx.MentorID,
		MenteeID:        tx.BuyerID,
		ScheduledDate:   slot.date,
		StartTime:       slot.start,
		EndTime:         slot.end,
		Timezone:        slot.timezone,
		Status:          domain.AppointmentScheduled,
		PaymentIntentID: intent,
		TransactionID:   &tx.ID,
		MentorName:      fill.MentorName,
		MenteeName:      fill.MenteeName,
		Price:           tx.Amount,
		Notes:           slot.notes,
	})
	if errors.Is(err, repo.ErrDuplicate) {
		if a, err := s.Store.GetAppointmentByNaturalKey(ctx, s.DB, tx.MentorID, tx.BuyerID, slot.date, slot.start); err == nil {
			return reuse(a)
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return result(a, true), nil
}

// paymentIntent normalizes the transaction's payment reference: a nil pointer
// and an empty string both mean the settlement minted no intent.
func paymentIntent(tx *domain.Transaction) *string {
	if tx.PaymentIntentID == nil || *tx.PaymentIntentID == "" {
		return nil
	}
	return tx.PaymentIntentID
}

// displayName trims and title-cases a profile name for denormalized storage
// and email greetings.
func (s *ActivationService) displayName(name string) string {
	tag := s.NameLocale
	if tag == language.Und {
		tag = language.English
	}
	return cases.Title(tag).String(strings.TrimSpace(name))
}

// slot is the appointment natural key plus booking context, carried in the
// funding transaction's metadata between checkout and settlement.
type slot struct {
	date, start, end, timezone, notes string
}

func slotFromMetadata(meta map[string]interface{}) (slot, error) {
	sl := slot{
		date:     metaString(meta, "scheduled_date"),
		start:    metaString(meta, "start_time"),
		end:      metaString(meta, "end_time"),
		timezone: metaString(meta, "timezone"),
		notes:    metaString(meta, "notes"),
	}
	if sl.date == "" || sl.start == "" || sl.end == "" {
		return slot{}, ErrPreconditionFailed
	}
	if sl.timezone == "" {
		sl.timezone = "America/Sao_Paulo"
	}
	return sl, nil
}

func metaString(meta map[string]interface{}, key string) string {
	if meta == nil {
		return ""
	}
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}

func lookupErr(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return ErrDependencyLookup
	}
	return err
}
