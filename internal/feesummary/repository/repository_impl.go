package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/seatfee/internal/feesummary/domain"
	ledgerdomain "github.com/smallbiznis/seatfee/internal/ledger/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) ListRecords(ctx context.Context, db *gorm.DB, subscriberID snowflake.ID, beforePeriod string, limit int) ([]*ledgerdomain.LedgerRecord, error) {
	var records []*ledgerdomain.LedgerRecord
	stmt := db.WithContext(ctx).
		Model(&ledgerdomain.LedgerRecord{}).
		Where("subscriber_id = ?", subscriberID)
	if beforePeriod != "" {
		stmt = stmt.Where("period < ?", beforePeriod)
	}
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Order("period desc").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
