package db

import (
	"testing"

	"github.com/smallbiznis/seatfee/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSNTagsPostgresSessionsWithServiceName(t *testing.T) {
	cfg := config.Config{
		AppName:   "seatfee worker",
		DBType:    "postgres",
		DBHost:    "db",
		DBPort:    "5432",
		DBUser:    "fees",
		DBName:    "seatfee",
		DBSSLMode: "disable",
	}

	dsn, err := DSN(cfg)
	require.NoError(t, err)
	assert.Contains(t, dsn, "application_name=seatfee_worker")
	assert.Contains(t, dsn, "TimeZone=UTC")

	cfg.AppName = "  "
	dsn, err = DSN(cfg)
	require.NoError(t, err)
	assert.Contains(t, dsn, "application_name=seatfee")
}

func TestDSNSerialisesSQLiteWriters(t *testing.T) {
	dsn, err := DSN(config.Config{DBType: "sqlite", DBName: "fees"})
	require.NoError(t, err)
	assert.Equal(t, "file:fees.db?_busy_timeout=5000&_foreign_keys=1&_txlock=immediate", dsn)
}

func TestDialectRejectsUnknownType(t *testing.T) {
	_, err := Dialect(config.Config{DBType: "oracle"})
	assert.EqualError(t, err, "unsupported oracle type")
}
