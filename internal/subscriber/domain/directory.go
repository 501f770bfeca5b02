package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/seatfee/pkg/errs"
	"gorm.io/gorm"
)

// Directory is the narrow view of the subscriber store that billing needs.
type Directory interface {
	Insert(ctx context.Context, db *gorm.DB, subscriber *Subscriber) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscriber, error)
	// LockForUpdate loads the subscriber and holds its row lock until the
	// surrounding transaction ends. Every money-mutating path takes it first.
	LockForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscriber, error)
	ListDueForBilling(ctx context.Context, db *gorm.DB, now time.Time, afterID snowflake.ID, limit int) ([]*Subscriber, error)
	UpdateNextBillingDate(ctx context.Context, db *gorm.DB, id snowflake.ID, next time.Time, updatedAt time.Time) error
}

var (
	ErrSubscriberNotFound = errs.NotFound("subscriber_not_found")
	ErrInvalidSubscriber  = errs.Validation("invalid_subscriber_id")
)
