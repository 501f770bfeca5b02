package db

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/smallbiznis/seatfee/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	defaultApplicationName = "seatfee"
	sqliteBusyTimeoutMS    = 5000
)

func Dialect(cfg config.Config) (gorm.Dialector, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	switch cfg.DBType {
	case "mysql":
		return mysql.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	default:
		return sqlite.Open(dsn), nil
	}
}

// DSN builds the connection string for cfg.DBType. Postgres sessions carry
// the service name so lock waits on subscriber rows show up by application
// in pg_stat_activity. SQLite has no row locks, so every transaction starts
// IMMEDIATE and waits on the write lock instead of failing with SQLITE_BUSY.
func DSN(cfg config.Config) (string, error) {
	switch cfg.DBType {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBHost,
			cfg.DBPort,
			cfg.DBName,
		), nil
	case "postgres":
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC application_name=%s",
			cfg.DBHost,
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBName,
			cfg.DBPort,
			cfg.DBSSLMode,
			applicationName(cfg.AppName),
		), nil
	case "sqlite":
		params := url.Values{}
		params.Set("_busy_timeout", fmt.Sprint(sqliteBusyTimeoutMS))
		params.Set("_foreign_keys", "1")
		params.Set("_txlock", "immediate")
		return "file:" + cfg.DBName + ".db?" + params.Encode(), nil
	default:
		return "", fmt.Errorf("unsupported %s type", cfg.DBType)
	}
}

func applicationName(name string) string {
	name = strings.Join(strings.Fields(name), "_")
	if name == "" {
		return defaultApplicationName
	}
	return name
}
