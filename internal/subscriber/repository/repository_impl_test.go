package repository

import (
	"context"
	"regexp"
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

func TestLockForUpdateTakesRowLockOnPostgres(t *testing.T) {
	db, mock := mockPostgres(t)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "name", "base_fee", "billing_anchor_day", "next_billing_date", "active", "created_at", "updated_at"}).
		AddRow(int64(42), "north", "500.00", 31, now, true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "subscribers" WHERE id = $1`) + `.*FOR UPDATE`).
		WillReturnRows(rows)

	subscriber, err := Provide().LockForUpdate(context.Background(), db, snowflake.ID(42))
	require.NoError(t, err)
	require.NotNil(t, subscriber)
	assert.Equal(t, 31, subscriber.BillingAnchorDay)
	assert.Equal(t, "500", subscriber.BaseFee.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockForUpdateMissingRowIsNil(t *testing.T) {
	db, mock := mockPostgres(t)

	mock.ExpectQuery(`FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	subscriber, err := Provide().LockForUpdate(context.Background(), db, snowflake.ID(7))
	require.NoError(t, err)
	assert.Nil(t, subscriber)
	assert.NoError(t, mock.ExpectationsWereMet())
}
