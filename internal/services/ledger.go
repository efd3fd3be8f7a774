// Package services – LedgerService
//
// This file implements the transaction ledger: one row per checkout session,
// created pending and transitioned exactly once to succeeded or failed.
// Terminal rows are immutable except for metadata enrichment; repeated marks
// of an already-terminal row are deliberate no-ops so reconciliation can be
// replayed any number of times.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mentorhub/go-mentorship-backend/internal/domain"
	"github.com/mentorhub/go-mentorship-backend/internal/repo"
)

// LedgerStore defines the repository contract required by LedgerService.
type LedgerStore interface {
	CreateTransaction(ctx context.Context, db *gorm.DB, draft repo.TransactionDraft) (*domain.Transaction, error)
	GetTransaction(ctx context.Context, db *gorm.DB, id string) (*domain.Transaction, error)
	GetTransactionBySession(ctx context.Context, db *gorm.DB, sessionID string) (*domain.Transaction, error)
	MarkTransactionSucceeded(ctx context.Context, db *gorm.DB, id, paymentIntentID string, amount int64) (int64, error)
	MarkTransactionFailed(ctx context.Context, db *gorm.DB, id, reason string) (int64, error)
	ReopenTransaction(ctx context.Context, db *gorm.DB, id string) (int64, error)
	EnrichTransactionMetadata(ctx context.Context, db *gorm.DB, id string, extra map[string]interface{}) error
	ListOpenTransactionsSince(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]domain.Transaction, error)
	ListTransactionsByUser(ctx context.Context, db *gorm.DB, userID, role string) ([]domain.Transaction, error)
}

// LedgerService owns the transaction rows that track every checkout session
// from creation to settlement.
type LedgerService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Store is the ledger repository used by this service.
	Store LedgerStore
}

// NewLedgerService constructs a LedgerService on the given handle.
func NewLedgerService(db *gorm.DB, store LedgerStore) *LedgerService {
	return &LedgerService{DB: db, Store: store}
}

// Open records a new pending transaction for a freshly created checkout
// session. A duplicate session id maps to ErrSessionExists.
func (s *LedgerService) Open(ctx context.Context, draft repo.TransactionDraft) (*domain.Transaction, error) {
	tx, err := s.Store.CreateTransaction(ctx, s.DB, draft)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, ErrSessionExists
	}
	return tx, err
}

// BySession loads the ledger row for a checkout session.
func (s *LedgerService) BySession(ctx context.Context, sessionID string) (*domain.Transaction, error) {
	tx, err := s.Store.GetTransactionBySession(ctx, s.DB, sessionID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrTransactionNotFound
	}
	return tx, err
}

// MarkSucceeded transitions a pending transaction to succeeded, recording the
// payment intent, the settled amount, and the completion time. The returned
// bool reports whether this call performed the transition; false with a nil
// error means the row was already terminal and nothing changed.
func (s *LedgerService) MarkSucceeded(ctx context.Context, id, paymentIntentID string, amount int64) (bool, error) {
	n, err := s.Store.MarkTransactionSucceeded(ctx, s.DB, id, paymentIntentID, amount)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	return false, s.requireExists(ctx, id)
}

// MarkFailed transitions a pending transaction to failed with a reason.
// Same no-op contract as MarkSucceeded for terminal rows.
func (s *LedgerService) MarkFailed(ctx context.Context, id, reason string) (bool, error) {
	n, err := s.Store.MarkTransactionFailed(ctx, s.DB, id, reason)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	return false, s.requireExists(ctx, id)
}

// Reopen moves a failed transaction back to pending. Used when the provider
// reports the underlying session is still open, so an earlier failure verdict
// was premature. Succeeded rows are never reopened.
func (s *LedgerService) Reopen(ctx context.Context, id string) (bool, error) {
	n, err := s.Store.ReopenTransaction(ctx, s.DB, id)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Enrich merges extra keys into the transaction's metadata bag. Allowed on
// terminal rows; metadata is the one mutable field after settlement.
func (s *LedgerService) Enrich(ctx context.Context, id string, extra map[string]interface{}) error {
	err := s.Store.EnrichTransactionMetadata(ctx, s.DB, id, extra)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrTransactionNotFound
	}
	return err
}

// OpenSince lists pending and failed transactions created at or after cutoff,
// the sweep's work queue.
func (s *LedgerService) OpenSince(ctx context.Context, cutoff time.Time) ([]domain.Transaction, error) {
	return s.Store.ListOpenTransactionsSince(ctx, s.DB, cutoff)
}

// ListByUser returns the user's transactions, as buyer or as beneficiary
// depending on role.
func (s *LedgerService) ListByUser(ctx context.Context, userID, role string) ([]domain.Transaction, error) {
	return s.Store.ListTransactionsByUser(ctx, s.DB, userID, role)
}

// requireExists distinguishes "terminal no-op" from "row missing" after a
// conditional update touched zero rows.
func (s *LedgerService) requireExists(ctx context.Context, id string) error {
	_, err := s.Store.GetTransaction(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrTransactionNotFound
	}
	return err
}
