package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// SchedulerLeaseEnabled guards each scheduled job with a Redis lease so
	// only one replica runs it at a time.
	SchedulerLeaseEnabled bool
	MigrateOnStart        bool
	NotifyWebhookURL      string
	SnowflakeNode         int64
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:               getenv("APP_SERVICE", "seatfee"),
		AppVersion:            getenv("APP_VERSION", "0.1.0"),
		Environment:           getenv("ENVIRONMENT", "development"),
		HTTPAddr:              getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint:          getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:                getenv("DATABASE_TYPE", "postgres"),
		DBHost:                getenv("DATABASE_HOST", "localhost"),
		DBPort:                getenv("DATABASE_PORT", "5432"),
		DBName:                getenv("DATABASE_NAME", "seatfee"),
		DBUser:                getenv("DATABASE_USER", "postgres"),
		DBPassword:            getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:             getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:         getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:         getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime:     getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime:     getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		RedisAddr:             strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword:         getenv("REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("REDIS_DB", 0),
		SchedulerLeaseEnabled: getenvBool("SCHEDULER_LEASE_ENABLED", false),
		MigrateOnStart:        getenvBool("MIGRATE_ON_START", true),
		NotifyWebhookURL:      strings.TrimSpace(getenv("NOTIFY_WEBHOOK_URL", "")),
		SnowflakeNode:         int64(getenvInt("SNOWFLAKE_NODE", 1)),
	}
}

func (c Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
