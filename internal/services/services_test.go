package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mentorhub/go-mentorship-backend/internal/domain"
	"github.com/mentorhub/go-mentorship-backend/internal/mail"
	"github.com/mentorhub/go-mentorship-backend/internal/payment"
	"github.com/mentorhub/go-mentorship-backend/internal/repo"
)

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
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
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// storeShim adapts the repository free functions to the service store
// interfaces, same wiring the router uses in production.
type storeShim struct{}

func (storeShim) CreateTransaction(ctx context.Context, db *gorm.DB, draft repo.TransactionDraft) (*domain.Transaction, error) {
	return repo.CreateTransaction(ctx, db, draft)
}
func (storeShim) GetTransaction(ctx context.Context, db *gorm.DB, id string) (*domain.Transaction, error) {
	return repo.GetTransaction(ctx, db, id)
}
func (storeShim) GetTransactionBySession(ctx context.Context, db *gorm.DB, sessionID string) (*domain.Transaction, error) {
	return repo.GetTransactionBySession(ctx, db, sessionID)
}
func (storeShim) MarkTransactionSucceeded(ctx context.Context, db *gorm.DB, id, paymentIntentID string, amount int64) (int64, error) {
	return repo.MarkTransactionSucceeded(ctx, db, id, paymentIntentID, amount)
}
func (storeShim) MarkTransactionFailed(ctx context.Context, db *gorm.DB, id, reason string) (int64, error) {
	return repo.MarkTransactionFailed(ctx, db, id, reason)
}
func (storeShim) ReopenTransaction(ctx context.Context, db *gorm.DB, id string) (int64, error) {
	return repo.ReopenTransaction(ctx, db, id)
}
func (storeShim) EnrichTransactionMetadata(ctx context.Context, db *gorm.DB, id string, extra map[string]interface{}) error {
	return repo.EnrichTransactionMetadata(ctx, db, id, extra)
}
func (storeShim) ListOpenTransactionsSince(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]domain.Transaction, error) {
	return repo.ListOpenTransactionsSince(ctx, db, cutoff)
}
func (storeShim) ListTransactionsByUser(ctx context.Context, db *gorm.DB, userID, role string) ([]domain.Transaction, error) {
	return repo.ListTransactionsByUser(ctx, db, userID, role)
}
func (storeShim) GetEnrollmentByPaymentIntent(ctx context.Context, db *gorm.DB, paymentIntentID string) (*domain.Enrollment, error) {
	return repo.GetEnrollmentByPaymentIntent(ctx, db, paymentIntentID)
}
func (storeShim) GetEnrollment(ctx context.Context, db *gorm.DB, courseID, studentID string) (*domain.Enrollment, error) {
	return repo.GetEnrollment(ctx, db, courseID, studentID)
}
func (storeShim) CreateEnrollment(ctx context.Context, db *gorm.DB, e *domain.Enrollment) (*domain.Enrollment, error) {
	return repo.CreateEnrollment(ctx, db, e)
}
func (storeShim) ActivateEnrollment(ctx context.Context, db *gorm.DB, id string, fill repo.EnrollmentFill) error {
	return repo.ActivateEnrollment(ctx, db, id, fill)
}
func (storeShim) UpsertPlaceholderEnrollment(ctx context.Context, db *gorm.DB, courseID, studentID, studentName, ownerID, ownerName string) error {
	return repo.UpsertPlaceholderEnrollment(ctx, db, courseID, studentID, studentName, ownerID, ownerName)
}
func (storeShim) GetAppointmentByPaymentIntent(ctx context.Context, db *gorm.DB, paymentIntentID string) (*domain.Appointment, error) {
	return repo.GetAppointmentByPaymentIntent(ctx, db, paymentIntentID)
}
func (storeShim) GetAppointmentByNaturalKey(ctx context.Context, db *gorm.DB, mentorID, menteeID, date, startTime string) (*domain.Appointment, error) {
	return repo.GetAppointmentByNaturalKey(ctx, db, mentorID, menteeID, date, startTime)
}
func (storeShim) GetAppointment(ctx context.Context, db *gorm.DB, id string) (*domain.Appointment, error) {
	return repo.GetAppointment(ctx, db, id)
}
func (storeShim) CreateAppointment(ctx context.Context, db *gorm.DB, a *domain.Appointment) (*domain.Appointment, error) {
	return repo.CreateAppointment(ctx, db, a)
}
func (storeShim) HasAppointmentConflict(ctx context.Context, db *gorm.DB, mentorID, date, startTime, endTime string) (bool, error) {
	return repo.HasAppointmentConflict(ctx, db, mentorID, date, startTime, endTime)
}
func (storeShim) BackfillAppointment(ctx context.Context, db *gorm.DB, id string, fill repo.AppointmentFill) error {
	return repo.BackfillAppointment(ctx, db, id, fill)
}
func (storeShim) UpdateAppointmentStatus(ctx context.Context, db *gorm.DB, id, status string) error {
	return repo.UpdateAppointmentStatus(ctx, db, id, status)
}
func (storeShim) MarkEnrollmentNotified(ctx context.Context, db *gorm.DB, id string, at time.Time) (int64, error) {
	return repo.MarkEnrollmentNotified(ctx, db, id, at)
}
func (storeShim) MarkAppointmentNotified(ctx context.Context, db *gorm.DB, id string, at time.Time) (int64, error) {
	return repo.MarkAppointmentNotified(ctx, db, id, at)
}
func (storeShim) CreateNotification(ctx context.Context, db *gorm.DB, n *domain.Notification) (*domain.Notification, error) {
	return repo.CreateNotification(ctx, db, n)
}
func (storeShim) ListNotifications(ctx context.Context, db *gorm.DB, receiverID string, unreadOnly bool) ([]domain.Notification, error) {
	return repo.ListNotifications(ctx, db, receiverID, unreadOnly)
}
func (storeShim) GetProfile(ctx context.Context, db *gorm.DB, id string) (*domain.Profile, error) {
	return repo.GetProfile(ctx, db, id)
}
func (storeShim) GetCourse(ctx context.Context, db *gorm.DB, id string) (*domain.Course, error) {
	return repo.GetCourse(ctx, db, id)
}

// recordingMailer captures sends and fails on demand.
type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	fail error
}

func (m *recordingMailer) Send(ctx context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *recordingMailer) setFail(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

// scriptedVerifier returns verdicts in order, repeating the last one,
// counting calls.
type scriptedVerifier struct {
	mu       sync.Mutex
	verdicts []payment.Verdict
	calls    int
}

func (v *scriptedVerifier) Verify(ctx context.Context, accountRef, sessionID string) payment.Verdict {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	if len(v.verdicts) == 0 {
		return payment.Verdict{Kind: payment.VerdictTransient, Err: errors.New("unscripted")}
	}
	out := v.verdicts[0]
	if len(v.verdicts) > 1 {
		v.verdicts = v.verdicts[1:]
	}
	return out
}

func (v *scriptedVerifier) callCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

// stubProvider implements payment.Provider for booking tests.
type stubProvider struct {
	nextID  string
	nextURL string
	err     error
	created []payment.CheckoutParams
}

func (p *stubProvider) CreateCheckoutSession(ctx context.Context, params payment.CheckoutParams) (*payment.CreatedSession, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.created = append(p.created, params)
	id := p.nextID
	if id == "" {
		id = "sess_" + uuid.NewString()
	}
	url := p.nextURL
	if url == "" {
		url = "https://pay.example/" + id
	}
	return &payment.CreatedSession{ID: id, URL: url}, nil
}

func (p *stubProvider) GetSession(ctx context.Context, accountRef, sessionID string) (*payment.Session, error) {
	return nil, payment.ErrNotFound
}

func (p *stubProvider) GetPaymentIntent(ctx context.Context, accountRef, intentID string) (*payment.Intent, error) {
	return nil, payment.ErrNotFound
}

func seedProfiles(t *testing.T, db *gorm.DB) (buyer, mentor domain.Profile) {
	t.Helper()
	buyer = domain.Profile{
		ID:       "buyer-1",
		FullName: "ana souza",
		Email:    "ana@example.com",
		Role:     domain.RoleMentee,
	}
	mentor = domain.Profile{
		ID:         "mentor-1",
		FullName:   "bia lima",
		Email:      "bia@example.com",
		Role:       domain.RoleMentor,
		AccountRef: "acct_123",
	}
	if err := db.Create(&buyer).Error; err != nil {
		t.Fatalf("seed buyer: %v", err)
	}
	if err := db.Create(&mentor).Error; err != nil {
		t.Fatalf("seed mentor: %v", err)
	}
	return buyer, mentor
}

func seedCourse(t *testing.T, db *gorm.DB, mentorID string) domain.Course {
	t.Helper()
	c := domain.Course{
		ID:       "course-1",
		MentorID: mentorID,
		Title:    "Practical Go",
		Price:    5000,
		PriceRef: "price_abc",
	}
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("seed course: %v", err)
	}
	return c
}
