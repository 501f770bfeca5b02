package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/seatfee/internal/subscriber/domain"
	pkgdb "github.com/smallbiznis/seatfee/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Directory {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, subscriber *domain.Subscriber) error {
	return db.WithContext(ctx).Create(subscriber).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Subscriber, error) {
	var subscriber domain.Subscriber
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, base_fee, billing_anchor_day, next_billing_date, active, created_at, updated_at
		 FROM subscribers WHERE id = ?`,
		id,
	).Scan(&subscriber).Error
	if err != nil {
		return nil, err
	}
	if subscriber.ID == 0 {
		return nil, nil
	}
	return &subscriber, nil
}

func (r *repo) LockForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Subscriber, error) {
	var subscriber domain.Subscriber
	err := pkgdb.ForUpdate(db.WithContext(ctx)).
		Where("id = ?", id).
		Take(&subscriber).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &subscriber, nil
}

func (r *repo) ListDueForBilling(ctx context.Context, db *gorm.DB, now time.Time, afterID snowflake.ID, limit int) ([]*domain.Subscriber, error) {
	var subscribers []*domain.Subscriber
	err := db.WithContext(ctx).
		Model(&domain.Subscriber{}).
		Where("active = ?", true).
		Where("next_billing_date <= ?", now).
		Where("id > ?", afterID).
		Order("id asc").
		Limit(limit).
		Find(&subscribers).Error
	if err != nil {
		return nil, err
	}
	return subscribers, nil
}

func (r *repo) UpdateNextBillingDate(ctx context.Context, db *gorm.DB, id snowflake.ID, next time.Time, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscribers SET next_billing_date = ?, updated_at = ? WHERE id = ?`,
		next,
		updatedAt,
		id,
	).Error
}
