package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/seatfee/internal/ledger/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.LedgerRecord) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "subscriber_id"}, {Name: "period"}},
			DoNothing: true,
		}).
		Create(record)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindByPeriod(ctx context.Context, db *gorm.DB, subscriberID snowflake.ID, period string) (*domain.LedgerRecord, error) {
	var record domain.LedgerRecord
	err := db.WithContext(ctx).
		Where("subscriber_id = ? AND period = ?", subscriberID, period).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repo) FindLatest(ctx context.Context, db *gorm.DB, subscriberID snowflake.ID) (*domain.LedgerRecord, error) {
	var records []domain.LedgerRecord
	err := db.WithContext(ctx).
		Where("subscriber_id = ?", subscriberID).
		Order("period desc").
		Limit(1).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, record *domain.LedgerRecord) error {
	result := db.WithContext(ctx).
		Model(&domain.LedgerRecord{}).
		Where("id = ? AND locked = ?", record.ID, false).
		Updates(map[string]any{
			"due_carried_forward": record.DueCarriedForward,
			"paid_amount":         record.PaidAmount,
			"advance_applied":     record.AdvanceApplied,
			"carried_forward_out": record.CarriedForwardOut,
			"status":              record.Status,
			"covered_by_advance":  record.CoveredByAdvance,
			"locked":              record.Locked,
			"paid_at":             record.PaidAt,
			"updated_at":          record.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrRecordLocked
	}
	return nil
}

func (r *repo) ListPendingDueBefore(ctx context.Context, db *gorm.DB, dueBefore time.Time, afterID snowflake.ID, limit int) ([]*domain.LedgerRecord, error) {
	var records []*domain.LedgerRecord
	err := db.WithContext(ctx).
		Model(&domain.LedgerRecord{}).
		Where("status = ? AND locked = ?", domain.StatusPending, false).
		Where("due_date < ?", dueBefore).
		Where("id > ?", afterID).
		Order("id asc").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
