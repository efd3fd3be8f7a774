// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Transaction
// ledger.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition. Status-transition policy (idempotent
// no-ops on terminal rows) lives in services.LedgerService.
//
// Error semantics:
//   - When a transaction is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On unique violations for the session id, CreateTransaction returns
//     ErrDuplicate.
//   - On other DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mentorhub/go-mentorship-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that an insert hit a uniqueness constraint
// (session id, natural key, or payment-intent id, depending on the caller).
var ErrDuplicate = errors.New("duplicate")

// isUniqueViolation detects unique-constraint violations across drivers that
// may not map to gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// glebarez/sqlite often returns plain-text errors for UNIQUE violations;
	// Postgres says "duplicate key value violates unique constraint".
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}

// TransactionDraft carries the caller-supplied fields for a new ledger row.
type TransactionDraft struct {
	SessionID  string
	BuyerID    string
	MentorID   string
	Kind       string
	CourseID   *string
	AccountRef string
	Amount     int64
	Currency   string
	Metadata   map[string]interface{}
}

// CreateTransaction inserts a new pending Transaction for the draft. The row
// ID is a randomly generated UUID and CreatedAt is set to UTC. A uniqueness
// violation on the session id maps to ErrDuplicate.
func CreateTransaction(ctx context.Context, db *gorm.DB, draft TransactionDraft) (*domain.Transaction, error) {
	tx := &domain.Transaction{
		ID:         uuid.NewString(),
		SessionID:  draft.SessionID,
		BuyerID:    draft.BuyerID,
		MentorID:   draft.MentorID,
		Kind:       draft.Kind,
		CourseID:   draft.CourseID,
		AccountRef: draft.AccountRef,
		Amount:     draft.Amount,
		Currency:   draft.Currency,
		Status:     domain.TxPending,
		Metadata:   draft.Metadata,
		CreatedAt:  time.Now().UTC(),
	}
	if tx.Currency == "" {
		tx.Currency = "brl"
	}
	if err := db.WithContext(ctx).Create(tx).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return tx, nil
}

// GetTransaction fetches a single transaction by its internal ID, or
// ErrNotFound if missing.
func GetTransaction(ctx context.Context, db *gorm.DB, id string) (*domain.Transaction, error) {
	var tx domain.Transaction
	if err := db.WithContext(ctx).Where("id = ?", id).First(&tx).Error; err != nil {
		return nil, err
	}
	return &tx, nil
}

// GetTransactionBySession fetches a single transaction by its external
// checkout-session id, or ErrNotFound if missing.
func GetTransactionBySession(ctx context.Context, db *gorm.DB, sessionID string) (*domain.Transaction, error) {
	var tx domain.Transaction
	if err := db.WithContext(ctx).Where("session_id = ?", sessionID).First(&tx).Error; err != nil {
		return nil, err
	}
	return &tx, nil
}

// MarkTransactionSucceeded sets the terminal succeeded status, payment-intent
// id, settled amount, and completion timestamp — but only when the row is
// still pending. It returns the number of rows affected so the caller can
// distinguish a real transition (1) from a lost race or an already-terminal
// row (0).
//
// The conditional WHERE status = 'pending' is what makes duplicate
// webhook/redirect deliveries harmless at the storage level.
func MarkTransactionSucceeded(ctx context.Context, db *gorm.DB, id, paymentIntentID string, amount int64) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Transaction{}).
		Where("id = ? AND status = ?", id, domain.TxPending).
		Updates(map[string]interface{}{
			"status":            domain.TxSucceeded,
			"payment_intent_id": paymentIntentID,
			"amount":            amount,
			"completed_at":      time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

// MarkTransactionFailed sets the terminal failed status and reason, only when
// the row is still pending. See MarkTransactionSucceeded for the RowsAffected
// contract.
func MarkTransactionFailed(ctx context.Context, db *gorm.DB, id, reason string) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Transaction{}).
		Where("id = ? AND status = ?", id, domain.TxPending).
		Updates(map[string]interface{}{
			"status":         domain.TxFailed,
			"failure_reason": reason,
		})
	return res.RowsAffected, res.Error
}

// ReopenTransaction moves a failed transaction back to pending. The sweep
// uses it when the provider reports the session as still open, matching how
// the original flow un-fails transactions whose sessions had not expired.
func ReopenTransaction(ctx context.Context, db *gorm.DB, id string) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Transaction{}).
		Where("id = ? AND status = ?", id, domain.TxFailed).
		Updates(map[string]interface{}{
			"status":         domain.TxPending,
			"failure_reason": nil,
		})
	return res.RowsAffected, res.Error
}

// EnrichTransactionMetadata merges extra keys into the metadata bag. Allowed
// on terminal rows; metadata is the one field the immutability rule exempts.
func EnrichTransactionMetadata(ctx context.Context, db *gorm.DB, id string, extra map[string]interface{}) error {
	tx, err := GetTransaction(ctx, db, id)
	if err != nil {
		return err
	}
	merged := map[string]interface{}{}
	for k, v := range tx.Metadata {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return db.WithContext(ctx).
		Model(&domain.Transaction{}).
		Where("id = ?", id).
		Update("metadata", datatypes.JSONMap(merged)).Error
}

// ListOpenTransactionsSince returns pending and failed transactions created
// after the cutoff, most recent first. The reconciliation sweep re-checks
// both: a "failed" row may belong to a session the provider still considers
// open.
func ListOpenTransactionsSince(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]domain.Transaction, error) {
	var out []domain.Transaction
	err := db.WithContext(ctx).
		Where("status IN ? AND created_at >= ?", []string{domain.TxPending, domain.TxFailed}, cutoff).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// ListTransactionsByUser returns the user's transactions as buyer or as
// mentor, most recent first.
func ListTransactionsByUser(ctx context.Context, db *gorm.DB, userID, role string) ([]domain.Transaction, error) {
	q := db.WithContext(ctx).Order("created_at desc")
	if role == domain.RoleMentor {
		q = q.Where("mentor_id = ?", userID)
	} else {
		q = q.Where("buyer_id = ?", userID)
	}
	var out []domain.Transaction
	err := q.Find(&out).Error
	return out, err
}
