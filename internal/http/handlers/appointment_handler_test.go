package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mentorhub/go-mentorship-backend/internal/domain"
	"github.com/mentorhub/go-mentorship-backend/internal/services"
)

const bookingBody = `{
	"mentor_id": "mentor-1",
	"scheduled_date": "2026-09-10",
	"start_time": "14:00",
	"end_time": "15:00",
	"price": 8000,
	"price_ref": "price_abc",
	"notes": "study plan review"
}`

func TestBookAppointment_Statuses(t *testing.T) {
	gin.SetMode(gin.TestMode)

	post := func(h *Handlers, body string) *httptest.ResponseRecorder {
		r := gin.New()
		r.POST("/appointments", h.BookAppointment)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewBufferString(body))
		req.Header.Set("X-User-ID", "mentee-1")
		r.ServeHTTP(w, req)
		return w
	}

	// Bad JSON -> 400
	{
		h := New(stubBookingSvc{}, stubReconcileSvc{})
		if w := post(h, "{bad"); w.Code != http.StatusBadRequest {
			t.Fatalf("bad json -> %d", w.Code)
		}
	}

	// Missing required fields -> 400
	{
		h := New(stubBookingSvc{}, stubReconcileSvc{})
		if w := post(h, `{"mentor_id":"mentor-1"}`); w.Code != http.StatusBadRequest {
			t.Fatalf("missing fields -> %d", w.Code)
		}
	}

	// Zero price fails validation -> 400
	{
		h := New(stubBookingSvc{}, stubReconcileSvc{})
		body := `{"mentor_id":"m","scheduled_date":"2026-09-10","start_time":"14:00","end_time":"15:00","price":0,"price_ref":"price_abc"}`
		if w := post(h, body); w.Code != http.StatusBadRequest {
			t.Fatalf("zero price -> %d", w.Code)
		}
	}

	// Success -> 201, mentee taken from header
	{
		h := New(stubBookingSvc{
			book: func(ctx context.Context, req services.AppointmentRequest) (*services.Checkout, error) {
				if req.MenteeID != "mentee-1" || req.MentorID != "mentor-1" {
					t.Fatalf("unexpected participants: %q %q", req.MenteeID, req.MentorID)
				}
				if req.ScheduledDate != "2026-09-10" || req.StartTime != "14:00" {
					t.Fatalf("unexpected slot: %+v", req)
				}
				return &services.Checkout{URL: "https://checkout.example/s/cs_3", SessionID: "cs_3"}, nil
			},
		}, stubReconcileSvc{})
		w := post(h, bookingBody)
		if w.Code != http.StatusCreated {
			t.Fatalf("book -> %d body=%s", w.Code, w.Body.String())
		}
		var out services.Checkout
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("json: %v", err)
		}
		if out.SessionID != "cs_3" {
			t.Fatalf("unexpected checkout: %#v", out)
		}
	}

	// Overlapping slot -> 409 slot_unavailable
	{
		h := New(stubBookingSvc{
			book: func(ctx context.Context, _ services.AppointmentRequest) (*services.Checkout, error) {
				return nil, services.ErrSlotUnavailable
			},
		}, stubReconcileSvc{})
		w := post(h, bookingBody)
		if w.Code != http.StatusConflict {
			t.Fatalf("conflict -> %d", w.Code)
		}
		var er ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
			t.Fatalf("json: %v", err)
		}
		if er.Code != ErrCodeSlotUnavailable {
			t.Fatalf("code = %q", er.Code)
		}
	}

	// Unknown mentor -> 404
	{
		h := New(stubBookingSvc{
			book: func(ctx context.Context, _ services.AppointmentRequest) (*services.Checkout, error) {
				return nil, services.ErrDependencyLookup
			},
		}, stubReconcileSvc{})
		if w := post(h, bookingBody); w.Code != http.StatusNotFound {
			t.Fatalf("missing mentor -> %d", w.Code)
		}
	}

	// Provider failure -> 500
	{
		h := New(stubBookingSvc{
			book: func(ctx context.Context, _ services.AppointmentRequest) (*services.Checkout, error) {
				return nil, gorm.ErrInvalidDB
			},
		}, stubReconcileSvc{})
		if w := post(h, bookingBody); w.Code != http.StatusInternalServerError {
			t.Fatalf("internal -> %d", w.Code)
		}
	}
}

func TestCancelAppointment_Statuses(t *testing.T) {
	gin.SetMode(gin.TestMode)

	post := func(h *Handlers, path, body string) *httptest.ResponseRecorder {
		r := gin.New()
		r.POST("/appointments/:id/cancel", h.CancelAppointment)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
		req.Header.Set("X-User-ID", "mentee-1")
		r.ServeHTTP(w, req)
		return w
	}

	// Success -> 200 with cancelled appointment; reason forwarded
	{
		h := New(stubBookingSvc{
			cancel: func(ctx context.Context, userID, id, reason string) (*domain.Appointment, error) {
				if userID != "mentee-1" || id != "appt-1" || reason != "schedule conflict" {
					t.Fatalf("unexpected args: %q %q %q", userID, id, reason)
				}
				return &domain.Appointment{ID: id, Status: domain.AppointmentCancelled}, nil
			},
		}, stubReconcileSvc{})
		w := post(h, "/appointments/appt-1/cancel", `{"reason":"schedule conflict"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("cancel -> %d body=%s", w.Code, w.Body.String())
		}
		var out domain.Appointment
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("json: %v", err)
		}
		if out.Status != domain.AppointmentCancelled {
			t.Fatalf("status = %q", out.Status)
		}
	}

	// Empty body is allowed
	{
		h := New(stubBookingSvc{}, stubReconcileSvc{})
		if w := post(h, "/appointments/appt-1/cancel", ""); w.Code != http.StatusOK {
			t.Fatalf("empty body -> %d", w.Code)
		}
	}

	// Stranger -> 403
	{
		h := New(stubBookingSvc{
			cancel: func(ctx context.Context, _, _, _ string) (*domain.Appointment, error) {
				return nil, services.ErrNotParticipant
			},
		}, stubReconcileSvc{})
		if w := post(h, "/appointments/appt-1/cancel", "{}"); w.Code != http.StatusForbidden {
			t.Fatalf("stranger -> %d", w.Code)
		}
	}

	// Unknown appointment -> 404
	{
		h := New(stubBookingSvc{
			cancel: func(ctx context.Context, _, _, _ string) (*domain.Appointment, error) {
				return nil, services.ErrAppointmentNotFound
			},
		}, stubReconcileSvc{})
		if w := post(h, "/appointments/appt-x/cancel", "{}"); w.Code != http.StatusNotFound {
			t.Fatalf("missing -> %d", w.Code)
		}
	}

	// Already cancelled -> 409
	{
		h := New(stubBookingSvc{
			cancel: func(ctx context.Context, _, _, _ string) (*domain.Appointment, error) {
				return nil, services.ErrAlreadyCancelled
			},
		}, stubReconcileSvc{})
		if w := post(h, "/appointments/appt-1/cancel", "{}"); w.Code != http.StatusConflict {
			t.Fatalf("cancelled twice -> %d", w.Code)
		}
	}

	// Storage failure -> 500
	{
		h := New(stubBookingSvc{
			cancel: func(ctx context.Context, _, _, _ string) (*domain.Appointment, error) {
				return nil, gorm.ErrInvalidDB
			},
		}, stubReconcileSvc{})
		if w := post(h, "/appointments/appt-1/cancel", "{}"); w.Code != http.StatusInternalServerError {
			t.Fatalf("internal -> %d", w.Code)
		}
	}
}
