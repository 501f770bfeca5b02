package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/seatfee/internal/advance/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindBalance(ctx context.Context, db *gorm.DB, subscriberID snowflake.ID) (*domain.AdvanceBalance, error) {
	var balance domain.AdvanceBalance
	err := db.WithContext(ctx).
		Where("subscriber_id = ?", subscriberID).
		Take(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

func (r *repo) InsertBalance(ctx context.Context, db *gorm.DB, balance *domain.AdvanceBalance) error {
	return db.WithContext(ctx).Create(balance).Error
}

func (r *repo) SaveBalance(ctx context.Context, db *gorm.DB, balance *domain.AdvanceBalance) error {
	return db.WithContext(ctx).Exec(
		`UPDATE advance_balances SET total_amount = ?, remaining_amount = ?, updated_at = ? WHERE id = ?`,
		balance.TotalAmount,
		balance.RemainingAmount,
		balance.UpdatedAt,
		balance.ID,
	).Error
}

func (r *repo) FindApplication(ctx context.Context, db *gorm.DB, subscriberID snowflake.ID, period string) (*domain.AdvanceApplication, error) {
	var application domain.AdvanceApplication
	err := db.WithContext(ctx).
		Where("subscriber_id = ? AND period = ?", subscriberID, period).
		Take(&application).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &application, nil
}

func (r *repo) InsertApplication(ctx context.Context, db *gorm.DB, application *domain.AdvanceApplication) error {
	return db.WithContext(ctx).Create(application).Error
}

func (r *repo) ListApplications(ctx context.Context, db *gorm.DB, subscriberID snowflake.ID) ([]domain.AdvanceApplication, error) {
	var applications []domain.AdvanceApplication
	err := db.WithContext(ctx).
		Where("subscriber_id = ?", subscriberID).
		Order("period asc").
		Find(&applications).Error
	if err != nil {
		return nil, err
	}
	return applications, nil
}
