package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindBalance(ctx context.Context, db *gorm.DB, subscriberID snowflake.ID) (*AdvanceBalance, error)
	InsertBalance(ctx context.Context, db *gorm.DB, balance *AdvanceBalance) error
	SaveBalance(ctx context.Context, db *gorm.DB, balance *AdvanceBalance) error
	FindApplication(ctx context.Context, db *gorm.DB, subscriberID snowflake.ID, period string) (*AdvanceApplication, error)
	InsertApplication(ctx context.Context, db *gorm.DB, application *AdvanceApplication) error
	ListApplications(ctx context.Context, db *gorm.DB, subscriberID snowflake.ID) ([]AdvanceApplication, error)
}
