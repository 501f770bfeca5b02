package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/seatfee/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO fee_payments (
			id, subscriber_id, ledger_record_id, period, amount, applied_amount,
			surplus_amount, residual_due, method, outcome, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.SubscriberID,
		payment.LedgerRecordID,
		payment.Period,
		payment.Amount,
		payment.AppliedAmount,
		payment.SurplusAmount,
		payment.ResidualDue,
		payment.Method,
		payment.Outcome,
		payment.CreatedAt,
	).Error
}

func (r *repo) ListBySubscriber(ctx context.Context, db *gorm.DB, subscriberID snowflake.ID, limit int) ([]domain.Payment, error) {
	var payments []domain.Payment
	stmt := db.WithContext(ctx).
		Where("subscriber_id = ?", subscriberID).
		Order("id desc")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}
