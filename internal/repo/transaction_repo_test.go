package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mentorhub/go-mentorship-backend/internal/domain"
)

func newRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func courseDraft(sessionID string) TransactionDraft {
	cid := "course-1"
	return TransactionDraft{
		SessionID:  sessionID,
		BuyerID:    "buyer-1",
		MentorID:   "mentor-1",
		Kind:       domain.KindCourse,
		CourseID:   &cid,
		AccountRef: "acct_123",
		Amount:     5000,
		Currency:   "brl",
		Metadata:   map[string]interface{}{"buyer_email": "b@example.com"},
	}
}

func TestCreateTransaction_SetsPendingAndDefaults(t *testing.T) {
	db := newRepoDB(t, &domain.Transaction{})

	tx, err := CreateTransaction(context.Background(), db, courseDraft("sess_1"))
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if tx.ID == "" || tx.Status != domain.TxPending {
		t.Fatalf("unexpected fields: %+v", tx)
	}
	if tx.CompletedAt != nil {
		t.Fatalf("pending transaction must not carry CompletedAt")
	}

	got, err := GetTransactionBySession(context.Background(), db, "sess_1")
	if err != nil {
		t.Fatalf("GetTransactionBySession: %v", err)
	}
	if got.ID != tx.ID || got.Amount != 5000 {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
}

func TestCreateTransaction_DuplicateSession(t *testing.T) {
	db := newRepoDB(t, &domain.Transaction{})

	if _, err := CreateTransaction(context.Background(), db, courseDraft("sess_dup")); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := CreateTransaction(context.Background(), db, courseDraft("sess_dup"))
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestMarkTransactionSucceeded_OnlyFromPending(t *testing.T) {
	db := newRepoDB(t, &domain.Transaction{})
	tx, _ := CreateTransaction(context.Background(), db, courseDraft("sess_2"))

	n, err := MarkTransactionSucceeded(context.Background(), db, tx.ID, "pi_1", 5000)
	if err != nil || n != 1 {
		t.Fatalf("first transition: n=%d err=%v", n, err)
	}

	// Second attempt is a no-op: the row is terminal.
	n, err = MarkTransactionSucceeded(context.Background(), db, tx.ID, "pi_other", 9999)
	if err != nil || n != 0 {
		t.Fatalf("terminal row mutated: n=%d err=%v", n, err)
	}

	got, _ := GetTransaction(context.Background(), db, tx.ID)
	if got.Status != domain.TxSucceeded || got.PaymentIntentID == nil || *got.PaymentIntentID != "pi_1" {
		t.Fatalf("terminal state corrupted: %+v", got)
	}
	if got.CompletedAt == nil {
		t.Fatalf("CompletedAt must be set on success")
	}
}

func TestMarkTransactionFailed_ThenReopen(t *testing.T) {
	db := newRepoDB(t, &domain.Transaction{})
	tx, _ := CreateTransaction(context.Background(), db, courseDraft("sess_3"))

	if n, err := MarkTransactionFailed(context.Background(), db, tx.ID, "session expired"); err != nil || n != 1 {
		t.Fatalf("fail: n=%d err=%v", n, err)
	}
	// failed -> succeeded must not happen via the pending-guarded update.
	if n, _ := MarkTransactionSucceeded(context.Background(), db, tx.ID, "pi_x", 1); n != 0 {
		t.Fatalf("failed row transitioned to succeeded")
	}
	// but the sweep may reopen a failed row whose session is still live.
	if n, err := ReopenTransaction(context.Background(), db, tx.ID); err != nil || n != 1 {
		t.Fatalf("reopen: n=%d err=%v", n, err)
	}
	got, _ := GetTransaction(context.Background(), db, tx.ID)
	if got.Status != domain.TxPending {
		t.Fatalf("expected pending after reopen, got %s", got.Status)
	}
}

func TestEnrichTransactionMetadata_MergesOnTerminalRow(t *testing.T) {
	db := newRepoDB(t, &domain.Transaction{})
	tx, _ := CreateTransaction(context.Background(), db, courseDraft("sess_4"))
	_, _ = MarkTransactionSucceeded(context.Background(), db, tx.ID, "pi_4", 5000)

	err := EnrichTransactionMetadata(context.Background(), db, tx.ID, map[string]interface{}{
		"payment_intent_verified_at": "2025-05-01T10:00:00Z",
	})
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	got, _ := GetTransaction(context.Background(), db, tx.ID)
	if got.Metadata["buyer_email"] != "b@example.com" {
		t.Fatalf("original metadata lost: %+v", got.Metadata)
	}
	if got.Metadata["payment_intent_verified_at"] == nil {
		t.Fatalf("new metadata missing: %+v", got.Metadata)
	}
}

func TestListOpenTransactionsSince_FiltersStatusAndCutoff(t *testing.T) {
	db := newRepoDB(t, &domain.Transaction{})
	ctx := context.Background()

	old, _ := CreateTransaction(ctx, db, courseDraft("sess_old"))
	db.Model(&domain.Transaction{}).Where("id = ?", old.ID).
		Update("created_at", time.Now().UTC().Add(-3*time.Hour))

	fresh, _ := CreateTransaction(ctx, db, courseDraft("sess_fresh"))
	done, _ := CreateTransaction(ctx, db, courseDraft("sess_done"))
	_, _ = MarkTransactionSucceeded(ctx, db, done.ID, "pi_done", 5000)

	failed, _ := CreateTransaction(ctx, db, courseDraft("sess_failed"))
	_, _ = MarkTransactionFailed(ctx, db, failed.ID, "x")

	cutoff := time.Now().UTC().Add(-2 * time.Hour)
	open, err := ListOpenTransactionsSince(ctx, db, cutoff)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	ids := map[string]bool{}
	for _, tx := range open {
		ids[tx.SessionID] = true
	}
	if !ids["sess_fresh"] || !ids["sess_failed"] {
		t.Fatalf("expected fresh pending and failed rows, got %v", ids)
	}
	if ids["sess_old"] || ids["sess_done"] {
		t.Fatalf("cutoff/status filters leaked: %v", ids)
	}
	_ = fresh
}

func TestListTransactionsByUser_Roles(t *testing.T) {
	db := newRepoDB(t, &domain.Transaction{})
	ctx := context.Background()

	_, _ = CreateTransaction(ctx, db, courseDraft("sess_a"))
	other := courseDraft("sess_b")
	other.BuyerID = "buyer-2"
	_, _ = CreateTransaction(ctx, db, other)

	asBuyer, err := ListTransactionsByUser(ctx, db, "buyer-1", domain.RoleMentee)
	if err != nil || len(asBuyer) != 1 {
		t.Fatalf("buyer list: n=%d err=%v", len(asBuyer), err)
	}
	asMentor, err := ListTransactionsByUser(ctx, db, "mentor-1", domain.RoleMentor)
	if err != nil || len(asMentor) != 2 {
		t.Fatalf("mentor list: n=%d err=%v", len(asMentor), err)
	}
}
