// Package period models the monthly billing cycle key ("2006-01") and the
// calendar arithmetic around billing anchor days.
package period

import (
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/seatfee/pkg/errs"
)

var ErrInvalidPeriod = errs.Validation("invalid_period")

const periodLayout = "2006-01"

// Period identifies one monthly billing cycle.
type Period struct {
	Year  int
	Month time.Month
}

func Of(t time.Time) Period {
	t = t.UTC()
	return Period{Year: t.Year(), Month: t.Month()}
}

func Parse(value string) (Period, error) {
	t, err := time.Parse(periodLayout, strings.TrimSpace(value))
	if err != nil {
		return Period{}, ErrInvalidPeriod
	}
	return Of(t), nil
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

// Start is midnight UTC on the first day of the period.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

func (p Period) Next() Period {
	return Of(p.Start().AddDate(0, 1, 0))
}

func (p Period) Prev() Period {
	return Of(p.Start().AddDate(0, -1, 0))
}

func (p Period) Before(other Period) bool {
	if p.Year != other.Year {
		return p.Year < other.Year
	}
	return p.Month < other.Month
}

func (p Period) After(other Period) bool {
	return other.Before(p)
}
