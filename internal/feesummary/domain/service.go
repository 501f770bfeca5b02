package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/smallbiznis/seatfee/internal/ledger/domain"
	"github.com/smallbiznis/seatfee/pkg/errs"
	"gorm.io/gorm"
)

// Repository holds the summary's own typed queries. Everything else is read
// through the owning feature's repository.
type Repository interface {
	// ListRecords returns records newest first, strictly older than
	// beforePeriod when it is set.
	ListRecords(ctx context.Context, db *gorm.DB, subscriberID snowflake.ID, beforePeriod string, limit int) ([]*ledgerdomain.LedgerRecord, error)
}

type Service interface {
	GetFeeSummary(ctx context.Context, subscriberID string) (FeeSummary, error)
	ListRecords(ctx context.Context, req ListRecordsRequest) (ListRecordsResponse, error)
	// Invalidate drops the cached summary of a subscriber.
	Invalidate(ctx context.Context, subscriberID snowflake.ID)
}

var ErrInvalidPageToken = errs.Validation("invalid_page_token")
