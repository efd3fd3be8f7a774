package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mentorhub/go-mentorship-backend/internal/domain"
)

func TestCreateEnrollment_DuplicateNaturalKey(t *testing.T) {
	db := newRepoDB(t, &domain.Enrollment{})
	ctx := context.Background()

	_, err := CreateEnrollment(ctx, db, &domain.Enrollment{
		CourseID: "c1", StudentID: "s1", Status: domain.EnrollmentInactive,
	})
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err = CreateEnrollment(ctx, db, &domain.Enrollment{
		CourseID: "c1", StudentID: "s1", Status: domain.EnrollmentActive,
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestUpsertPlaceholderEnrollment_LeavesExistingUntouched(t *testing.T) {
	db := newRepoDB(t, &domain.Enrollment{})
	ctx := context.Background()

	if err := UpsertPlaceholderEnrollment(ctx, db, "c1", "s1", "Ana", "m1", "Bruno"); err != nil {
		t.Fatalf("upsert (insert path): %v", err)
	}
	e, err := GetEnrollment(ctx, db, "c1", "s1")
	if err != nil || e.Status != domain.EnrollmentInactive {
		t.Fatalf("placeholder not inactive: %+v err=%v", e, err)
	}

	// Activating then re-upserting must not reset the row.
	pi := "pi_1"
	if err := ActivateEnrollment(ctx, db, e.ID, EnrollmentFill{
		StudentName: "Ana", OwnerID: "m1", OwnerName: "Bruno", Price: 5000, PaymentIntentID: &pi,
	}); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := UpsertPlaceholderEnrollment(ctx, db, "c1", "s1", "Ana", "m1", "Bruno"); err != nil {
		t.Fatalf("upsert (existing path): %v", err)
	}
	e, _ = GetEnrollment(ctx, db, "c1", "s1")
	if e.Status != domain.EnrollmentActive || e.PaymentIntentID == nil {
		t.Fatalf("placeholder upsert clobbered active row: %+v", e)
	}
}

func TestGetEnrollmentByPaymentIntent(t *testing.T) {
	db := newRepoDB(t, &domain.Enrollment{})
	ctx := context.Background()

	pi := "pi_lookup"
	_, err := CreateEnrollment(ctx, db, &domain.Enrollment{
		CourseID: "c2", StudentID: "s2", Status: domain.EnrollmentActive, PaymentIntentID: &pi,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	e, err := GetEnrollmentByPaymentIntent(ctx, db, "pi_lookup")
	if err != nil || e.CourseID != "c2" {
		t.Fatalf("lookup by intent: %+v err=%v", e, err)
	}
	if _, err := GetEnrollmentByPaymentIntent(ctx, db, "pi_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkEnrollmentNotified_SecondCallNoop(t *testing.T) {
	db := newRepoDB(t, &domain.Enrollment{})
	ctx := context.Background()

	e, _ := CreateEnrollment(ctx, db, &domain.Enrollment{
		CourseID: "c3", StudentID: "s3", Status: domain.EnrollmentActive,
	})

	now := time.Now().UTC()
	n, err := MarkEnrollmentNotified(ctx, db, e.ID, now)
	if err != nil || n != 1 {
		t.Fatalf("first mark: n=%d err=%v", n, err)
	}
	n, err = MarkEnrollmentNotified(ctx, db, e.ID, now.Add(time.Minute))
	if err != nil || n != 0 {
		t.Fatalf("second mark must be a no-op: n=%d err=%v", n, err)
	}

	got, _ := GetEnrollment(ctx, db, "c3", "s3")
	if !got.Notified || got.NotifiedAt == nil {
		t.Fatalf("marker not persisted: %+v", got)
	}
}
