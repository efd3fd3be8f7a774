// Package repo – appointment persistence.
//
// Appointments are the slot-shaped access grants. Besides the activation
// lookups (payment-intent id, then mentor+mentee+date+start natural key) this
// file owns the slot-overlap query the booking flow uses to reject
// conflicting reservations.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mentorhub/go-mentorship-backend/internal/domain"
)

// GetAppointmentByPaymentIntent fetches the appointment funded by a specific
// payment intent, or ErrNotFound.
func GetAppointmentByPaymentIntent(ctx context.Context, db *gorm.DB, paymentIntentID string) (*domain.Appointment, error) {
	var a domain.Appointment
	err := db.WithContext(ctx).
		Where("payment_intent_id = ?", paymentIntentID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAppointmentByNaturalKey fetches the appointment for
// (mentor, mentee, date, start), or ErrNotFound.
func GetAppointmentByNaturalKey(ctx context.Context, db *gorm.DB, mentorID, menteeID, date, startTime string) (*domain.Appointment, error) {
	var a domain.Appointment
	err := db.WithContext(ctx).
		Where("mentor_id = ? AND mentee_id = ? AND scheduled_date = ? AND start_time = ?",
			mentorID, menteeID, date, startTime).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAppointment fetches an appointment by ID, or ErrNotFound.
func GetAppointment(ctx context.Context, db *gorm.DB, id string) (*domain.Appointment, error) {
	var a domain.Appointment
	if err := db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAppointment inserts a new appointment row. Uniqueness violations map
// to ErrDuplicate for the activation race fallback.
func CreateAppointment(ctx context.Context, db *gorm.DB, a *domain.Appointment) (*domain.Appointment, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = domain.AppointmentScheduled
	}
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return a, nil
}

// HasAppointmentConflict reports whether the mentor already holds a
// non-cancelled appointment on the date that overlaps [startTime, endTime).
// Two slots overlap when existing.start < new.end AND existing.end > new.start;
// times are "15:04" strings so lexicographic comparison is chronological.
func HasAppointmentConflict(ctx context.Context, db *gorm.DB, mentorID, date, startTime, endTime string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Appointment{}).
		Where("mentor_id = ? AND scheduled_date = ? AND status <> ?", mentorID, date, domain.AppointmentCancelled).
		Where("start_time < ? AND end_time > ?", endTime, startTime).
		Count(&n).Error
	return n > 0, err
}

// UpdateAppointmentStatus transitions an appointment's lifecycle state.
// Returns ErrNotFound when no row matched.
func UpdateAppointmentStatus(ctx context.Context, db *gorm.DB, id, status string) error {
	res := db.WithContext(ctx).
		Model(&domain.Appointment{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// BackfillAppointment writes the funding references and denormalized display
// fields onto an existing row (used when activation finds a natural-key match
// that predates payment confirmation).
func BackfillAppointment(ctx context.Context, db *gorm.DB, id string, fill AppointmentFill) error {
	res := db.WithContext(ctx).
		Model(&domain.Appointment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":            domain.AppointmentScheduled,
			"mentor_name":       fill.MentorName,
			"mentee_name":       fill.MenteeName,
			"price":             fill.Price,
			"payment_intent_id": fill.PaymentIntentID,
			"transaction_id":    fill.TransactionID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AppointmentFill carries the denormalized fields written on activation.
type AppointmentFill struct {
	MentorName      string
	MenteeName      string
	Price           int64
	PaymentIntentID *string
	TransactionID   *string
}

// MarkAppointmentNotified flips the at-most-once notification marker; same
// conditional-update contract as MarkEnrollmentNotified.
func MarkAppointmentNotified(ctx context.Context, db *gorm.DB, id string, at time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Appointment{}).
		Where("id = ? AND notified = ?", id, false).
		Updates(map[string]interface{}{
			"notified":    true,
			"notified_at": at,
		})
	return res.RowsAffected, res.Error
}
