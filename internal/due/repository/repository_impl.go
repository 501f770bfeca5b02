package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/seatfee/internal/due/domain"
	pkgdb "github.com/smallbiznis/seatfee/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tracker *domain.DueTracker) error {
	return db.WithContext(ctx).Create(tracker).Error
}

func (r *repo) Save(ctx context.Context, db *gorm.DB, tracker *domain.DueTracker) error {
	return db.WithContext(ctx).Save(tracker).Error
}

func (r *repo) FindOpen(ctx context.Context, db *gorm.DB, subscriberID snowflake.ID) (*domain.DueTracker, error) {
	var tracker domain.DueTracker
	err := db.WithContext(ctx).
		Where("subscriber_id = ? AND resolved = ?", subscriberID, false).
		Take(&tracker).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tracker, nil
}

func (r *repo) LockByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.DueTracker, error) {
	var tracker domain.DueTracker
	err := pkgdb.ForUpdateSkipLocked(db.WithContext(ctx)).
		Where("id = ? AND resolved = ?", id, false).
		Take(&tracker).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tracker, nil
}

func (r *repo) ListReminderDue(ctx context.Context, db *gorm.DB, now time.Time, afterID snowflake.ID, limit int) ([]*domain.DueTracker, error) {
	var trackers []*domain.DueTracker
	err := db.WithContext(ctx).
		Model(&domain.DueTracker{}).
		Where("resolved = ?", false).
		Where("next_reminder_due IS NOT NULL AND next_reminder_due <= ?", now).
		Where("id > ?", afterID).
		Order("id asc").
		Limit(limit).
		Find(&trackers).Error
	if err != nil {
		return nil, err
	}
	return trackers, nil
}
