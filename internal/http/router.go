// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mentorhub/go-mentorship-backend/internal/config"
	"github.com/mentorhub/go-mentorship-backend/internal/domain"
	"github.com/mentorhub/go-mentorship-backend/internal/http/handlers"
	"github.com/mentorhub/go-mentorship-backend/internal/http/middleware"
	"github.com/mentorhub/go-mentorship-backend/internal/mail"
	"github.com/mentorhub/go-mentorship-backend/internal/payment"
	"github.com/mentorhub/go-mentorship-backend/internal/repo"
	"github.com/mentorhub/go-mentorship-backend/internal/services"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"
)

// repoShim adapts the repository free functions to the store interfaces the
// services expect (LedgerStore, GrantStore, NotifyStore, BookingStore). This
// keeps services decoupled from the concrete repo package while reusing
// existing functions; the overlapping methods mean one shim satisfies all
// four interfaces.
type repoShim struct{}

// CreateTransaction proxies repo.CreateTransaction.
func (repoShim) CreateTransaction(ctx context.Context, db *gorm.DB, draft repo.TransactionDraft) (*domain.Transaction, error) {
	return repo.CreateTransaction(ctx, db, draft)
}

// GetTransaction proxies repo.GetTransaction.
func (repoShim) GetTransaction(ctx context.Context, db *gorm.DB, id string) (*domain.Transaction, error) {
	return repo.GetTransaction(ctx, db, id)
}

// GetTransactionBySession proxies repo.GetTransactionBySession.
func (repoShim) GetTransactionBySession(ctx context.Context, db *gorm.DB, sessionID string) (*domain.Transaction, error) {
	return repo.GetTransactionBySession(ctx, db, sessionID)
}

// MarkTransactionSucceeded proxies repo.MarkTransactionSucceeded.
func (repoShim) MarkTransactionSucceeded(ctx context.Context, db *gorm.DB, id, paymentIntentID string, amount int64) (int64, error) {
	return repo.MarkTransactionSucceeded(ctx, db, id, paymentIntentID, amount)
}

// MarkTransactionFailed proxies repo.MarkTransactionFailed.
func (repoShim) MarkTransactionFailed(ctx context.Context, db *gorm.DB, id, reason string) (int64, error) {
	return repo.MarkTransactionFailed(ctx, db, id, reason)
}

// ReopenTransaction proxies repo.ReopenTransaction.
func (repoShim) ReopenTransaction(ctx context.Context, db *gorm.DB, id string) (int64, error) {
	return repo.ReopenTransaction(ctx, db, id)
}

// EnrichTransactionMetadata proxies repo.EnrichTransactionMetadata.
func (repoShim) EnrichTransactionMetadata(ctx context.Context, db *gorm.DB, id string, extra map[string]interface{}) error {
	return repo.EnrichTransactionMetadata(ctx, db, id, extra)
}

// ListOpenTransactionsSince proxies repo.ListOpenTransactionsSince.
func (repoShim) ListOpenTransactionsSince(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]domain.Transaction, error) {
	return repo.ListOpenTransactionsSince(ctx, db, cutoff)
}

// ListTransactionsByUser proxies repo.ListTransactionsByUser.
func (repoShim) ListTransactionsByUser(ctx context.Context, db *gorm.DB, userID, role string) ([]domain.Transaction, error) {
	return repo.ListTransactionsByUser(ctx, db, userID, role)
}

// GetEnrollmentByPaymentIntent proxies repo.GetEnrollmentByPaymentIntent.
func (repoShim) GetEnrollmentByPaymentIntent(ctx context.Context, db *gorm.DB, paymentIntentID string) (*domain.Enrollment, error) {
	return repo.GetEnrollmentByPaymentIntent(ctx, db, paymentIntentID)
}

// GetEnrollment proxies repo.GetEnrollment.
func (repoShim) GetEnrollment(ctx context.Context, db *gorm.DB, courseID, studentID string) (*domain.Enrollment, error) {
	return repo.GetEnrollment(ctx, db, courseID, studentID)
}

// CreateEnrollment proxies repo.CreateEnrollment.
func (repoShim) CreateEnrollment(ctx context.Context, db *gorm.DB, e *domain.Enrollment) (*domain.Enrollment, error) {
	return repo.CreateEnrollment(ctx, db, e)
}

// ActivateEnrollment proxies repo.ActivateEnrollment.
func (repoShim) ActivateEnrollment(ctx context.Context, db *gorm.DB, id string, fill repo.EnrollmentFill) error {
	return repo.ActivateEnrollment(ctx, db, id, fill)
}

// UpsertPlaceholderEnrollment proxies repo.UpsertPlaceholderEnrollment.
func (repoShim) UpsertPlaceholderEnrollment(ctx context.Context, db *gorm.DB, courseID, studentID, studentName, ownerID, ownerName string) error {
	return repo.UpsertPlaceholderEnrollment(ctx, db, courseID, studentID, studentName, ownerID, ownerName)
}

// MarkEnrollmentNotified proxies repo.MarkEnrollmentNotified.
func (repoShim) MarkEnrollmentNotified(ctx context.Context, db *gorm.DB, id string, at time.Time) (int64, error) {
	return repo.MarkEnrollmentNotified(ctx, db, id, at)
}

// GetAppointmentByPaymentIntent proxies repo.GetAppointmentByPaymentIntent.
func (repoShim) GetAppointmentByPaymentIntent(ctx context.Context, db *gorm.DB, paymentIntentID string) (*domain.Appointment, error) {
	return repo.GetAppointmentByPaymentIntent(ctx, db, paymentIntentID)
}

// GetAppointmentByNaturalKey proxies repo.GetAppointmentByNaturalKey.
func (repoShim) GetAppointmentByNaturalKey(ctx context.Context, db *gorm.DB, mentorID, menteeID, date, startTime string) (*domain.Appointment, error) {
	return repo.GetAppointmentByNaturalKey(ctx, db, mentorID, menteeID, date, startTime)
}

// GetAppointment proxies repo.GetAppointment.
func (repoShim) GetAppointment(ctx context.Context, db *gorm.DB, id string) (*domain.Appointment, error) {
	return repo.GetAppointment(ctx, db, id)
}

// CreateAppointment proxies repo.CreateAppointment.
func (repoShim) CreateAppointment(ctx context.Context, db *gorm.DB, a *domain.Appointment) (*domain.Appointment, error) {
	return repo.CreateAppointment(ctx, db, a)
}

// BackfillAppointment proxies repo.BackfillAppointment.
func (repoShim) BackfillAppointment(ctx context.Context, db *gorm.DB, id string, fill repo.AppointmentFill) error {
	return repo.BackfillAppointment(ctx, db, id, fill)
}

// UpdateAppointmentStatus proxies repo.UpdateAppointmentStatus.
func (repoShim) UpdateAppointmentStatus(ctx context.Context, db *gorm.DB, id, status string) error {
	return repo.UpdateAppointmentStatus(ctx, db, id, status)
}

// HasAppointmentConflict proxies repo.HasAppointmentConflict.
func (repoShim) HasAppointmentConflict(ctx context.Context, db *gorm.DB, mentorID, date, startTime, endTime string) (bool, error) {
	return repo.HasAppointmentConflict(ctx, db, mentorID, date, startTime, endTime)
}

// MarkAppointmentNotified proxies repo.MarkAppointmentNotified.
func (repoShim) MarkAppointmentNotified(ctx context.Context, db *gorm.DB, id string, at time.Time) (int64, error) {
	return repo.MarkAppointmentNotified(ctx, db, id, at)
}

// CreateNotification proxies repo.CreateNotification.
func (repoShim) CreateNotification(ctx context.Context, db *gorm.DB, n *domain.Notification) (*domain.Notification, error) {
	return repo.CreateNotification(ctx, db, n)
}

// ListNotifications proxies repo.ListNotifications.
func (repoShim) ListNotifications(ctx context.Context, db *gorm.DB, receiverID string, unreadOnly bool) ([]domain.Notification, error) {
	return repo.ListNotifications(ctx, db, receiverID, unreadOnly)
}

// GetProfile proxies repo.GetProfile.
func (repoShim) GetProfile(ctx context.Context, db *gorm.DB, id string) (*domain.Profile, error) {
	return repo.GetProfile(ctx, db, id)
}

// GetCourse proxies repo.GetCourse.
func (repoShim) GetCourse(ctx context.Context, db *gorm.DB, id string) (*domain.Course, error) {
	return repo.GetCourse(ctx, db, id)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the versioned public API under /api/v*. It returns the Reconciler so
// the caller can run background sweeps over the same pipeline the poll
// endpoints use.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per user/IP, bypass on replay)
//  9. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) *services.Reconciler {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"Authorization", // bearer tokens from the frontend session
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, userID, sessionID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, sessionID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 8) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS).
	// NoStore: every endpoint returns per-user payment or notification data.
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← provider/mailer/repo/db
	provider := payment.NewStripeProvider(cfg.Stripe.SecretKey)
	verifier := payment.NewVerifier(provider, cfg.Reconcile.VerifyTimeout)
	mailer := mail.NewBrevoMailer(cfg.Brevo.APIKey, cfg.Brevo.SenderName, cfg.Brevo.SenderEmail)

	ledger := services.NewLedgerService(db, repoShim{})
	activator := services.NewActivationService(db, repoShim{})
	dispatcher := services.NewDispatcherService(db, repoShim{}, mailer)
	dispatcher.CourseURL = cfg.LoginURL
	reconciler := services.NewReconciler(verifier, ledger, activator, dispatcher,
		services.NewInflightCache(cfg.Reconcile.InflightTTL))
	reconciler.Policy = services.PollPolicy{
		MaxAttempts:   cfg.Reconcile.PollAttempts,
		Interval:      cfg.Reconcile.PollInterval,
		BackoffFactor: cfg.Reconcile.PollBackoff,
		MaxInterval:   cfg.Reconcile.PollMaxDelay,
	}
	booking := services.NewBookingService(db, repoShim{}, provider, ledger, mailer, services.CheckoutURLs{
		SuccessURL: cfg.Stripe.SuccessURL,
		CancelURL:  cfg.Stripe.CancelURL,
		LoginURL:   cfg.LoginURL,
	})

	h := handlers.New(booking, reconciler)

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Checkout
		api.POST("/checkout/courses", h.StartCourseCheckout)
		api.GET("/checkout/sessions/:session_id", h.GetCheckoutSession)
		api.POST("/checkout/sessions/:session_id/poll", h.PollCheckoutSession)

		// Appointments
		api.POST("/appointments", h.BookAppointment)
		api.POST("/appointments/:id/cancel", h.CancelAppointment)

		// Account
		api.GET("/transactions", h.ListTransactions)
		api.GET("/notifications", h.ListNotifications)
		api.POST("/emails/welcome", h.SendWelcomeEmail)
	}

	return reconciler
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
