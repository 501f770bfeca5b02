package domain

import (
	"context"
	"time"

	"github.com/smallbiznis/seatfee/pkg/errs"
)

// CycleResult summarizes one billing cycle run.
type CycleResult struct {
	Generated      int                   `json:"generated"`
	Skipped        int                   `json:"skipped"`
	Promoted       int                   `json:"promoted"`
	AdvanceApplied int                   `json:"advance_applied"`
	Errors         []errs.BatchItemError `json:"errors"`
}

type Service interface {
	// RunCycle bills every active subscriber whose next billing date is at
	// or before now, catching up missed cycles, then promotes PENDING
	// records whose grace window has passed. Running it twice with the same
	// now generates nothing the second time.
	RunCycle(ctx context.Context, now time.Time) (CycleResult, error)
}
