package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Insert creates the record unless one already exists for the same
	// subscriber and period. It reports whether a row was written.
	Insert(ctx context.Context, db *gorm.DB, record *LedgerRecord) (bool, error)
	FindByPeriod(ctx context.Context, db *gorm.DB, subscriberID snowflake.ID, period string) (*LedgerRecord, error)
	FindLatest(ctx context.Context, db *gorm.DB, subscriberID snowflake.ID) (*LedgerRecord, error)
	// Update persists a mutable record. Locked rows are left untouched and
	// reported through ErrRecordLocked.
	Update(ctx context.Context, db *gorm.DB, record *LedgerRecord) error
	ListPendingDueBefore(ctx context.Context, db *gorm.DB, dueBefore time.Time, afterID snowflake.ID, limit int) ([]*LedgerRecord, error)
}
