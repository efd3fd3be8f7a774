// Package domain defines the persistence models for the payment ledger,
// access grants (course enrollments and appointments), notifications, and
// the user/course catalog rows they denormalize from. These types are mapped
// with GORM and form the core data layer of the mentorship marketplace
// backend.
package domain

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Transaction statuses. A transaction is created pending and transitions
// exactly once, to succeeded or failed. Terminal rows are immutable except
// for metadata enrichment.
const (
	TxPending   = "pending"
	TxSucceeded = "succeeded"
	TxFailed    = "failed"
)

// Transaction kinds distinguish which grant a succeeded transaction funds.
const (
	KindCourse      = "course"
	KindAppointment = "appointment"
)

// Transaction is the ledger row for one purchase attempt, keyed by the
// payment provider's opaque checkout-session id.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - SessionID: external checkout-session id; unique across all rows.
//   - PaymentIntentID: assigned once the payment clears; nil until then.
//   - BuyerID / MentorID: the paying and the beneficiary profile.
//   - Kind: "course" or "appointment".
//   - CourseID: subject reference for course purchases.
//   - AccountRef: connected provider account the session lives on.
//   - Amount: minor-unit integer (centavos); Currency: ISO code.
//   - Status: pending | succeeded | failed.
//   - FailureReason: populated on the failed transition.
//   - CompletedAt: set if and only if Status is succeeded.
//   - Metadata: open key/value bag for provider echo-back and debugging.
type Transaction struct {
	ID              string            `json:"id"                gorm:"type:char(36);primaryKey"`
	SessionID       string            `json:"session_id"        gorm:"type:varchar(255);not null;uniqueIndex:ux_tx_session"`
	PaymentIntentID *string           `json:"payment_intent_id" gorm:"type:varchar(255);index"`
	BuyerID         string            `json:"buyer_id"          gorm:"type:char(36);not null;index:idx_tx_buyer"`
	MentorID        string            `json:"mentor_id"         gorm:"type:char(36);not null;index:idx_tx_mentor"`
	Kind            string            `json:"kind"              gorm:"type:varchar(16);not null;check:kind IN ('course','appointment')"`
	CourseID        *string           `json:"course_id,omitempty" gorm:"type:char(36);index"`
	AccountRef      string            `json:"account_ref"       gorm:"type:varchar(255);not null"`
	Amount          int64             `json:"amount"            gorm:"not null"`
	Currency        string            `json:"currency"          gorm:"type:varchar(8);not null;default:'brl'"`
	Status          string            `json:"status"            gorm:"type:varchar(16);not null;default:'pending';check:status IN ('pending','succeeded','failed');index"`
	FailureReason   *string           `json:"failure_reason,omitempty" gorm:"type:text"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
	Metadata        datatypes.JSONMap `json:"metadata"          gorm:"type:json"`
	CreatedAt       time.Time         `json:"created_at"        gorm:"index"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// TableName returns the database table name for Transaction.
func (Transaction) TableName() string { return "transactions" }

// Terminal reports whether the transaction has reached a final status.
func (t *Transaction) Terminal() bool {
	return t.Status == TxSucceeded || t.Status == TxFailed
}

// Enrollment statuses. An enrollment may be created inactive when checkout
// begins and is activated exactly once when the funding transaction succeeds.
const (
	EnrollmentActive   = "active"
	EnrollmentInactive = "inactive"
)

// Enrollment is the durable access grant for a purchased course. At most one
// row exists per (course, student) pair; reactivating an inactive row is
// preferred over inserting a duplicate.
//
// The notified/notified_at pair is the at-most-once marker for the sale
// notification: once notified is true the dispatcher must never fire again
// for this row.
type Enrollment struct {
	ID              string         `json:"id"               gorm:"type:char(36);primaryKey"`
	CourseID        string         `json:"course_id"        gorm:"type:char(36);not null;uniqueIndex:ux_enroll_course_student,priority:1"`
	StudentID       string         `json:"student_id"       gorm:"type:char(36);not null;uniqueIndex:ux_enroll_course_student,priority:2"`
	Status          string         `json:"status"           gorm:"type:varchar(16);not null;default:'inactive';check:status IN ('active','inactive')"`
	EnrolledAt      time.Time      `json:"enrolled_at"`
	ProgressPercent float64        `json:"progress_percent" gorm:"not null;default:0"`
	StudentName     string         `json:"student_name"     gorm:"type:varchar(255)"`
	CourseOwnerID   string         `json:"course_owner_id"  gorm:"type:char(36);index"`
	CourseOwnerName string         `json:"course_owner_name" gorm:"type:varchar(255)"`
	Price           int64          `json:"price"`
	PaymentIntentID *string        `json:"payment_intent_id,omitempty" gorm:"type:varchar(255);index"`
	Notified        bool           `json:"notified"         gorm:"not null;default:false"`
	NotifiedAt      *time.Time     `json:"notified_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-"                gorm:"index"`
}

// TableName returns the database table name for Enrollment.
func (Enrollment) TableName() string { return "enrollments" }

// Appointment lifecycle states.
const (
	AppointmentScheduled = "scheduled"
	AppointmentCompleted = "completed"
	AppointmentCancelled = "cancelled"
)

// Appointment is the durable access grant for a booked mentoring slot.
// Its natural key is (mentor, mentee, scheduled date, start time); the
// payment-intent id is the strongest uniqueness axis when present.
//
// ScheduledDate is a calendar date ("2006-01-02"); StartTime and EndTime are
// wall-clock times ("15:04") in the appointment's timezone, mirroring how
// mentor calendars store slots.
type Appointment struct {
	ID              string         `json:"id"             gorm:"type:char(36);primaryKey"`
	MentorID        string         `json:"mentor_id"      gorm:"type:char(36);not null;index:idx_appt_mentor_date,priority:1"`
	MenteeID        string         `json:"mentee_id"      gorm:"type:char(36);not null;index"`
	ScheduledDate   string         `json:"scheduled_date" gorm:"type:varchar(10);not null;index:idx_appt_mentor_date,priority:2"`
	StartTime       string         `json:"start_time"     gorm:"type:varchar(5);not null"`
	EndTime         string         `json:"end_time"       gorm:"type:varchar(5);not null"`
	Timezone        string         `json:"timezone"       gorm:"type:varchar(64);not null;default:'America/Sao_Paulo'"`
	Status          string         `json:"status"         gorm:"type:varchar(16);not null;default:'scheduled';check:status IN ('scheduled','completed','cancelled')"`
	PaymentIntentID *string        `json:"payment_intent_id,omitempty" gorm:"type:varchar(255);index"`
	TransactionID   *string        `json:"transaction_id,omitempty" gorm:"type:char(36);index"`
	MentorName      string         `json:"mentor_name"    gorm:"type:varchar(255)"`
	MenteeName      string         `json:"mentee_name"    gorm:"type:varchar(255)"`
	Price           int64          `json:"price"`
	Notes           string         `json:"notes"          gorm:"type:text"`
	MeetLink        string         `json:"meet_link"      gorm:"type:varchar(512)"`
	Notified        bool           `json:"notified"       gorm:"not null;default:false"`
	NotifiedAt      *time.Time     `json:"notified_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-"              gorm:"index"`
}

// TableName returns the database table name for Appointment.
func (Appointment) TableName() string { return "appointments" }

// Notification types used by the dispatcher and booking flow.
const (
	NotificationCourseSale     = "course_sale"
	NotificationNewAppointment = "new_appointment"
	NotificationCancellation   = "appointment_cancelled"
)

// Notification is an in-app notification row. Inserts are fire-and-forget;
// the dispatcher gates them on the owning grant's notified marker.
type Notification struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	ReceiverID   string    `json:"receiver_id"   gorm:"type:char(36);not null;index:idx_notif_receiver"`
	ReceiverName string    `json:"receiver_name" gorm:"type:varchar(255)"`
	SenderID     *string   `json:"sender_id,omitempty"   gorm:"type:char(36)"`
	SenderName   *string   `json:"sender_name,omitempty" gorm:"type:varchar(255)"`
	Type         string    `json:"type"          gorm:"type:varchar(32);not null"`
	Title        string    `json:"title"         gorm:"type:varchar(255);not null"`
	Message      string    `json:"message"       gorm:"type:text;not null"`
	Read         bool      `json:"read"          gorm:"not null;default:false"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string { return "notifications" }

// Profile roles.
const (
	RoleMentor = "mentor"
	RoleMentee = "mentorado"
)

// Profile is the user record the workflow denormalizes display data from.
// AccountRef is the mentor's connected payment-provider account.
type Profile struct {
	ID         string         `json:"id"          gorm:"type:char(36);primaryKey"`
	FullName   string         `json:"full_name"   gorm:"type:varchar(255);not null"`
	Email      string         `json:"email"       gorm:"type:varchar(255);not null;uniqueIndex"`
	Role       string         `json:"role"        gorm:"type:varchar(16);not null;check:role IN ('mentor','mentorado')"`
	AccountRef string         `json:"account_ref" gorm:"type:varchar(255)"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-"           gorm:"index"`
}

// TableName returns the database table name for Profile.
func (Profile) TableName() string { return "profiles" }

// Course is a catalog entry owned by a mentor. PriceRef is the provider-side
// price identifier used when creating checkout sessions.
type Course struct {
	ID        string         `json:"id"        gorm:"type:char(36);primaryKey"`
	MentorID  string         `json:"mentor_id" gorm:"type:char(36);not null;index"`
	Title     string         `json:"title"     gorm:"type:varchar(255);not null"`
	Price     int64          `json:"price"     gorm:"not null"`
	PriceRef  string         `json:"price_ref" gorm:"type:varchar(255)"`
	ImageURL  string         `json:"image_url" gorm:"type:varchar(512)"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"         gorm:"index"`
}

// TableName returns the database table name for Course.
func (Course) TableName() string { return "courses" }
