package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const dateOnlyLayout = "2006-01-02"

func subscriberParam(c *gin.Context) string {
	return strings.TrimSpace(c.Param("id"))
}

func periodParam(c *gin.Context) string {
	return strings.TrimSpace(c.Param("period"))
}

// parseOptionalDate accepts RFC3339 or a bare date, which is read as UTC
// midnight.
func parseOptionalDate(value string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		utc := parsed.UTC()
		return &utc, nil
	}
	parsed, err := time.ParseInLocation(dateOnlyLayout, trimmed, time.UTC)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseAmount(value string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(value))
}
