package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mentorhub/go-mentorship-backend/internal/domain"
	"github.com/mentorhub/go-mentorship-backend/internal/http/middleware"
	"github.com/mentorhub/go-mentorship-backend/internal/mail"
	"github.com/mentorhub/go-mentorship-backend/internal/payment"
	"github.com/mentorhub/go-mentorship-backend/internal/repo"
	"github.com/mentorhub/go-mentorship-backend/internal/services"
)

// bookingShim proxies the repository free functions for the concrete booking
// service, the same wiring the router installs.
type bookingShim struct{}

func (bookingShim) GetProfile(ctx context.Context, db *gorm.DB, id string) (*domain.Profile, error) {
	return repo.GetProfile(ctx, db, id)
}
func (bookingShim) GetCourse(ctx context.Context, db *gorm.DB, id string) (*domain.Course, error) {
	return repo.GetCourse(ctx, db, id)
}
func (bookingShim) UpsertPlaceholderEnrollment(ctx context.Context, db *gorm.DB, courseID, studentID, studentName, ownerID, ownerName string) error {
	return repo.UpsertPlaceholderEnrollment(ctx, db, courseID, studentID, studentName, ownerID, ownerName)
}
func (bookingShim) HasAppointmentConflict(ctx context.Context, db *gorm.DB, mentorID, date, startTime, endTime string) (bool, error) {
	return repo.HasAppointmentConflict(ctx, db, mentorID, date, startTime, endTime)
}
func (bookingShim) GetAppointment(ctx context.Context, db *gorm.DB, id string) (*domain.Appointment, error) {
	return repo.GetAppointment(ctx, db, id)
}
func (bookingShim) UpdateAppointmentStatus(ctx context.Context, db *gorm.DB, id, status string) error {
	return repo.UpdateAppointmentStatus(ctx, db, id, status)
}
func (bookingShim) CreateNotification(ctx context.Context, db *gorm.DB, n *domain.Notification) (*domain.Notification, error) {
	return repo.CreateNotification(ctx, db, n)
}
func (bookingShim) ListNotifications(ctx context.Context, db *gorm.DB, receiverID string, unreadOnly bool) ([]domain.Notification, error) {
	return repo.ListNotifications(ctx, db, receiverID, unreadOnly)
}
func (bookingShim) CreateTransaction(ctx context.Context, db *gorm.DB, draft repo.TransactionDraft) (*domain.Transaction, error) {
	return repo.CreateTransaction(ctx, db, draft)
}
func (bookingShim) GetTransaction(ctx context.Context, db *gorm.DB, id string) (*domain.Transaction, error) {
	return repo.GetTransaction(ctx, db, id)
}
func (bookingShim) GetTransactionBySession(ctx context.Context, db *gorm.DB, sessionID string) (*domain.Transaction, error) {
	return repo.GetTransactionBySession(ctx, db, sessionID)
}
func (bookingShim) MarkTransactionSucceeded(ctx context.Context, db *gorm.DB, id, paymentIntentID string, amount int64) (int64, error) {
	return repo.MarkTransactionSucceeded(ctx, db, id, paymentIntentID, amount)
}
func (bookingShim) MarkTransactionFailed(ctx context.Context, db *gorm.DB, id, reason string) (int64, error) {
	return repo.MarkTransactionFailed(ctx, db, id, reason)
}
func (bookingShim) ReopenTransaction(ctx context.Context, db *gorm.DB, id string) (int64, error) {
	return repo.ReopenTransaction(ctx, db, id)
}
func (bookingShim) EnrichTransactionMetadata(ctx context.Context, db *gorm.DB, id string, extra map[string]interface{}) error {
	return repo.EnrichTransactionMetadata(ctx, db, id, extra)
}
func (bookingShim) ListOpenTransactionsSince(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]domain.Transaction, error) {
	return repo.ListOpenTransactionsSince(ctx, db, cutoff)
}
func (bookingShim) ListTransactionsByUser(ctx context.Context, db *gorm.DB, userID, role string) ([]domain.Transaction, error) {
	return repo.ListTransactionsByUser(ctx, db, userID, role)
}

// countingProvider mints a fresh session per call so the test can tell a
// replay from a second checkout.
type countingProvider struct {
	calls atomic.Int64
}

func (p *countingProvider) CreateCheckoutSession(ctx context.Context, _ payment.CheckoutParams) (*payment.CreatedSession, error) {
	n := p.calls.Add(1)
	id := fmt.Sprintf("cs_%d", n)
	return &payment.CreatedSession{ID: id, URL: "https://checkout.example/s/" + id}, nil
}

func (p *countingProvider) GetSession(ctx context.Context, accountRef, sessionID string) (*payment.Session, error) {
	return nil, payment.ErrNotFound
}

func (p *countingProvider) GetPaymentIntent(ctx context.Context, accountRef, intentID string) (*payment.Intent, error) {
	return nil, payment.ErrNotFound
}

type discardMailer struct{}

func (discardMailer) Send(ctx context.Context, msg mail.Message) error { return nil }

func newIdemDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:idem_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedIdemFixtures(t *testing.T, db *gorm.DB) {
	t.Helper()
	rows := []domain.Profile{
		{ID: "u1", FullName: "ana souza", Email: "ana@example.com", Role: domain.RoleMentee},
		{ID: "mentor-1", FullName: "bia lima", Email: "bia@example.com", Role: domain.RoleMentor, AccountRef: "acct_123"},
	}
	for i := range rows {
		if err := db.Create(&rows[i]).Error; err != nil {
			t.Fatalf("seed profile: %v", err)
		}
	}
	course := domain.Course{ID: "course-1", MentorID: "mentor-1", Title: "Practical Go", Price: 5000, PriceRef: "price_abc"}
	if err := db.Create(&course).Error; err != nil {
		t.Fatalf("seed course: %v", err)
	}
}

func newIdemRouter(t *testing.T, db *gorm.DB, provider *countingProvider) *gin.Engine {
	t.Helper()
	booking := services.NewBookingService(db, bookingShim{}, provider,
		services.NewLedgerService(db, bookingShim{}), discardMailer{}, services.CheckoutURLs{})
	h := New(booking, stubReconcileSvc{})

	r := gin.New()
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil))
	r.POST("/checkout/courses", h.StartCourseCheckout)
	r.POST("/appointments", h.BookAppointment)
	return r
}

func TestStartCourseCheckout_IdempotencyKeyReplaysSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newIdemDB(t)
	seedIdemFixtures(t, db)
	provider := &countingProvider{}
	r := newIdemRouter(t, db, provider)

	post := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/checkout/courses",
			bytes.NewBufferString(`{"course_id":"course-1"}`))
		req.Header.Set("X-User-ID", "u1")
		req.Header.Set(middleware.HeaderIdempotencyKey, "retry-abc-1")
		r.ServeHTTP(w, req)
		return w
	}

	first := post()
	if first.Code != http.StatusCreated {
		t.Fatalf("first -> %d body=%s", first.Code, first.Body.String())
	}
	var opened services.Checkout
	if err := json.Unmarshal(first.Body.Bytes(), &opened); err != nil {
		t.Fatalf("json: %v", err)
	}

	second := post()
	if second.Code != http.StatusOK {
		t.Fatalf("replay -> %d body=%s", second.Code, second.Body.String())
	}
	if second.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatal("replay header not set")
	}
	var replayed services.Checkout
	if err := json.Unmarshal(second.Body.Bytes(), &replayed); err != nil {
		t.Fatalf("json: %v", err)
	}
	if replayed.SessionID != opened.SessionID {
		t.Fatalf("session = %q, want the original %q", replayed.SessionID, opened.SessionID)
	}
	if replayed.URL != opened.URL {
		t.Fatalf("url = %q, want the original %q", replayed.URL, opened.URL)
	}
	if replayed.Transaction == nil || replayed.Transaction.ID != opened.Transaction.ID {
		t.Fatalf("transaction = %+v, want the original row", replayed.Transaction)
	}

	if n := provider.calls.Load(); n != 1 {
		t.Fatalf("provider sessions = %d, a retry must not open a second checkout", n)
	}
	var txRows int64
	db.Model(&domain.Transaction{}).Count(&txRows)
	if txRows != 1 {
		t.Fatalf("transactions = %d, want 1", txRows)
	}
}

func TestStartCourseCheckout_DistinctKeysOpenDistinctSessions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newIdemDB(t)
	seedIdemFixtures(t, db)
	provider := &countingProvider{}
	r := newIdemRouter(t, db, provider)

	post := func(key string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/checkout/courses",
			bytes.NewBufferString(`{"course_id":"course-1"}`))
		req.Header.Set("X-User-ID", "u1")
		if key != "" {
			req.Header.Set(middleware.HeaderIdempotencyKey, key)
		}
		r.ServeHTTP(w, req)
		return w
	}

	if w := post("key-one"); w.Code != http.StatusCreated {
		t.Fatalf("first -> %d", w.Code)
	}
	if w := post("key-two"); w.Code != http.StatusCreated {
		t.Fatalf("second key -> %d", w.Code)
	}
	if w := post(""); w.Code != http.StatusCreated {
		t.Fatalf("keyless -> %d", w.Code)
	}
	if n := provider.calls.Load(); n != 3 {
		t.Fatalf("provider sessions = %d, want 3", n)
	}
}

func TestBookAppointment_IdempotencyKeyReplaysSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newIdemDB(t)
	seedIdemFixtures(t, db)
	provider := &countingProvider{}
	r := newIdemRouter(t, db, provider)

	body := `{"mentor_id":"mentor-1","scheduled_date":"2026-09-10","start_time":"14:00","end_time":"15:00","price":8000,"price_ref":"price_slot"}`
	post := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewBufferString(body))
		req.Header.Set("X-User-ID", "u1")
		req.Header.Set(middleware.HeaderIdempotencyKey, "retry-slot-1")
		r.ServeHTTP(w, req)
		return w
	}

	first := post()
	if first.Code != http.StatusCreated {
		t.Fatalf("first -> %d body=%s", first.Code, first.Body.String())
	}
	var opened services.Checkout
	if err := json.Unmarshal(first.Body.Bytes(), &opened); err != nil {
		t.Fatalf("json: %v", err)
	}

	second := post()
	if second.Code != http.StatusOK {
		t.Fatalf("replay -> %d body=%s", second.Code, second.Body.String())
	}
	if second.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatal("replay header not set")
	}
	var replayed services.Checkout
	if err := json.Unmarshal(second.Body.Bytes(), &replayed); err != nil {
		t.Fatalf("json: %v", err)
	}
	if replayed.SessionID != opened.SessionID || replayed.URL != opened.URL {
		t.Fatalf("replay = %+v, want the original checkout", replayed)
	}
	if n := provider.calls.Load(); n != 1 {
		t.Fatalf("provider sessions = %d, want 1", n)
	}
}
