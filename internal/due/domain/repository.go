package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, tracker *DueTracker) error
	Save(ctx context.Context, db *gorm.DB, tracker *DueTracker) error
	FindOpen(ctx context.Context, db *gorm.DB, subscriberID snowflake.ID) (*DueTracker, error)
	// LockByID loads an unresolved tracker for update, skipping rows another
	// worker holds. It returns nil when the row is resolved or busy.
	LockByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*DueTracker, error)
	ListReminderDue(ctx context.Context, db *gorm.DB, now time.Time, afterID snowflake.ID, limit int) ([]*DueTracker, error)
}
