// Package repo – notification and catalog persistence.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mentorhub/go-mentorship-backend/internal/domain"
)

// CreateNotification inserts an in-app notification row. The boundary is
// fire-and-forget: callers only care about success/failure.
func CreateNotification(ctx context.Context, db *gorm.DB, n *domain.Notification) (*domain.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, err
	}
	return n, nil
}

// ListNotifications returns the receiver's notifications, most recent first.
// When unreadOnly is set, read rows are filtered out.
func ListNotifications(ctx context.Context, db *gorm.DB, receiverID string, unreadOnly bool) ([]domain.Notification, error) {
	q := db.WithContext(ctx).
		Where("receiver_id = ?", receiverID).
		Order("created_at desc")
	if unreadOnly {
		q = q.Where("read = ?", false)
	}
	var out []domain.Notification
	err := q.Find(&out).Error
	return out, err
}

// GetProfile fetches a profile by ID, or ErrNotFound.
func GetProfile(ctx context.Context, db *gorm.DB, id string) (*domain.Profile, error) {
	var p domain.Profile
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// GetCourse fetches a course by ID, or ErrNotFound.
func GetCourse(ctx context.Context, db *gorm.DB, id string) (*domain.Course, error) {
	var c domain.Course
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}
