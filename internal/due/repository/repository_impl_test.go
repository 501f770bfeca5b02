package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func mockPostgres(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestLockByIDSkipsLockedRows(t *testing.T) {
	db, mock := mockPostgres(t)
	dueSince := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "subscriber_id", "periods", "total_due_amount", "due_since", "escalation_level", "resolved"}).
		AddRow(int64(9), int64(42), []byte(`["2025-01","2025-02"]`), "1000.00", dueSince, 2, false)
	mock.ExpectQuery(`SELECT \* FROM "due_trackers" WHERE .*id = \$1.*FOR UPDATE SKIP LOCKED`).
		WillReturnRows(rows)

	tracker, err := Provide().LockByID(context.Background(), db, snowflake.ID(9))
	require.NoError(t, err)
	require.NotNil(t, tracker)
	assert.Equal(t, []string{"2025-01", "2025-02"}, []string(tracker.Periods))
	assert.Equal(t, 2, tracker.EscalationLevel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockByIDBusyRowIsNil(t *testing.T) {
	db, mock := mockPostgres(t)

	mock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	tracker, err := Provide().LockByID(context.Background(), db, snowflake.ID(9))
	require.NoError(t, err)
	assert.Nil(t, tracker)
	assert.NoError(t, mock.ExpectationsWereMet())
}
