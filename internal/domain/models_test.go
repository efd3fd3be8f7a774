package domain

import (
	"testing"
	"time"
)

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		Transaction{}.TableName():  "transactions",
		Enrollment{}.TableName():   "enrollments",
		Appointment{}.TableName():  "appointments",
		Notification{}.TableName(): "notifications",
		Profile{}.TableName():      "profiles",
		Course{}.TableName():       "courses",
		Idempotency{}.TableName():  "idempotency",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("table name mismatch: got %q want %q", got, want)
		}
	}
}

func TestTransaction_Terminal(t *testing.T) {
	tx := &Transaction{Status: TxPending}
	if tx.Terminal() {
		t.Fatalf("pending must not be terminal")
	}
	tx.Status = TxSucceeded
	if !tx.Terminal() {
		t.Fatalf("succeeded must be terminal")
	}
	tx.Status = TxFailed
	if !tx.Terminal() {
		t.Fatalf("failed must be terminal")
	}
}

func TestTransaction_CompletedAtPairsWithSucceeded(t *testing.T) {
	// CompletedAt is only ever written together with the succeeded
	// transition; a fresh row must carry neither.
	tx := &Transaction{Status: TxPending}
	if tx.CompletedAt != nil {
		t.Fatalf("pending transaction must not have CompletedAt")
	}
	now := time.Now().UTC()
	tx.Status = TxSucceeded
	tx.CompletedAt = &now
	if tx.CompletedAt == nil || !tx.Terminal() {
		t.Fatalf("succeeded transaction must carry CompletedAt")
	}
}
