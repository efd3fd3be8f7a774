// Package repo – enrollment persistence.
//
// Enrollments are the course-shaped access grants. The activation service
// layers its idempotency policy on top of these lookups; this file only
// exposes the raw uniqueness axes (payment-intent id, course+student natural
// key) and the state transitions.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mentorhub/go-mentorship-backend/internal/domain"
)

// GetEnrollmentByPaymentIntent fetches the enrollment funded by a specific
// payment intent, or ErrNotFound. One payment intent funds at most one grant.
func GetEnrollmentByPaymentIntent(ctx context.Context, db *gorm.DB, paymentIntentID string) (*domain.Enrollment, error) {
	var e domain.Enrollment
	err := db.WithContext(ctx).
		Where("payment_intent_id = ?", paymentIntentID).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetEnrollment fetches the enrollment for (courseID, studentID), the natural
// business key, or ErrNotFound.
func GetEnrollment(ctx context.Context, db *gorm.DB, courseID, studentID string) (*domain.Enrollment, error) {
	var e domain.Enrollment
	err := db.WithContext(ctx).
		Where("course_id = ? AND student_id = ?", courseID, studentID).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// CreateEnrollment inserts a new enrollment row. A uniqueness violation on
// (course_id, student_id) maps to ErrDuplicate so the caller can re-fetch
// the winner instead of failing.
func CreateEnrollment(ctx context.Context, db *gorm.DB, e *domain.Enrollment) (*domain.Enrollment, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.EnrolledAt.IsZero() {
		e.EnrolledAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return e, nil
}

// UpsertPlaceholderEnrollment makes sure an inactive placeholder row exists
// for (courseID, studentID) when checkout begins. An existing row — active or
// inactive — is left untouched; activation is the reconciler's job.
func UpsertPlaceholderEnrollment(ctx context.Context, db *gorm.DB, courseID, studentID, studentName, ownerID, ownerName string) error {
	_, err := GetEnrollment(ctx, db, courseID, studentID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	_, err = CreateEnrollment(ctx, db, &domain.Enrollment{
		CourseID:        courseID,
		StudentID:       studentID,
		Status:          domain.EnrollmentInactive,
		StudentName:     studentName,
		CourseOwnerID:   ownerID,
		CourseOwnerName: ownerName,
	})
	if errors.Is(err, ErrDuplicate) {
		// Lost a race with a concurrent checkout for the same pair; the
		// existing row serves equally well as a placeholder.
		return nil
	}
	return err
}

// ActivateEnrollment transitions a row to active and backfills the
// denormalized display fields plus the funding payment-intent id.
func ActivateEnrollment(ctx context.Context, db *gorm.DB, id string, fill EnrollmentFill) error {
	res := db.WithContext(ctx).
		Model(&domain.Enrollment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":            domain.EnrollmentActive,
			"enrolled_at":       time.Now().UTC(),
			"student_name":      fill.StudentName,
			"course_owner_id":   fill.OwnerID,
			"course_owner_name": fill.OwnerName,
			"price":             fill.Price,
			"payment_intent_id": fill.PaymentIntentID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// EnrollmentFill carries the denormalized fields written on activation.
type EnrollmentFill struct {
	StudentName     string
	OwnerID         string
	OwnerName       string
	Price           int64
	PaymentIntentID *string
}

// MarkEnrollmentNotified flips the at-most-once notification marker. The
// conditional WHERE notified = 0 serializes concurrent dispatchers: exactly
// one caller observes RowsAffected == 1.
func MarkEnrollmentNotified(ctx context.Context, db *gorm.DB, id string, at time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Enrollment{}).
		Where("id = ? AND notified = ?", id, false).
		Updates(map[string]interface{}{
			"notified":    true,
			"notified_at": at,
		})
	return res.RowsAffected, res.Error
}
