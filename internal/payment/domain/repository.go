package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	ListBySubscriber(ctx context.Context, db *gorm.DB, subscriberID snowflake.ID, limit int) ([]Payment, error)
}
