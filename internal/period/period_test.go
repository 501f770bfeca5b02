package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndString(t *testing.T) {
	p, err := Parse("2025-01")
	require.NoError(t, err)
	assert.Equal(t, Period{Year: 2025, Month: time.January}, p)
	assert.Equal(t, "2025-01", p.String())

	_, err = Parse("2025-13")
	assert.ErrorIs(t, err, ErrInvalidPeriod)
	_, err = Parse("")
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestNextPrevAcrossYear(t *testing.T) {
	dec := Period{Year: 2024, Month: time.December}
	assert.Equal(t, Period{Year: 2025, Month: time.January}, dec.Next())
	assert.Equal(t, dec, dec.Next().Prev())
	assert.True(t, dec.Before(dec.Next()))
	assert.True(t, dec.Next().After(dec))
	assert.False(t, dec.Before(dec))
}

func TestAddMonthClamped(t *testing.T) {
	cases := []struct {
		name   string
		from   time.Time
		anchor int
		want   time.Time
	}{
		{"jan 31 to feb 28", date(2025, 1, 31), 31, date(2025, 2, 28)},
		{"feb 28 back to mar 31", date(2025, 2, 28), 31, date(2025, 3, 31)},
		{"leap year", date(2024, 1, 31), 31, date(2024, 2, 29)},
		{"nov 30 to dec 31", date(2024, 11, 30), 31, date(2024, 12, 31)},
		{"plain day", date(2025, 5, 15), 15, date(2025, 6, 15)},
		{"anchor 30 in feb", date(2025, 1, 30), 30, date(2025, 2, 28)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, AddMonthClamped(tc.from, tc.anchor))
		})
	}
}

func TestAnchorDate(t *testing.T) {
	assert.Equal(t, date(2025, 2, 28), AnchorDate(Period{Year: 2025, Month: time.February}, 31))
	assert.Equal(t, date(2025, 4, 10), AnchorDate(Period{Year: 2025, Month: time.April}, 10))
	assert.Equal(t, 29, DaysIn(2024, time.February))
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
