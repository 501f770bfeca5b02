package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct{ period string }

func TestTrimBuildsNextToken(t *testing.T) {
	rows := []*row{{"2025-03"}, {"2025-02"}, {"2025-01"}}

	page, info, err := Trim(rows, 2, func(r *row) Cursor { return Cursor{Period: r.period} })
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.True(t, info.HasMore)

	cursor, err := DecodeCursor(info.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, "2025-02", cursor.Period)
}

func TestTrimLastPage(t *testing.T) {
	rows := []*row{{"2025-01"}}
	page, info, err := Trim(rows, 2, func(r *row) Cursor { return Cursor{Period: r.period} })
	require.NoError(t, err)
	assert.Len(t, page, 1)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("%%%")
	assert.Error(t, err)
}
