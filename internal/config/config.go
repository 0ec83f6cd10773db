package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv          string
	Port            string
	AllowedOrigin   string
	DefaultTenantID string
	DefaultStoreID  string
	QuotaLockTTL    time.Duration
	Database        DatabaseConfig
	Redis           RedisConfig
	Log             LogConfig
}

type DatabaseConfig struct {
	URL          string
	AutoMigrate  bool
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LogConfig struct {
	Development       bool
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

func Load() Config {
	appEnv := getEnv("APP_ENV", "production")
	development := appEnv == "development" || appEnv == "dev"

	defaultEncoding := "json"
	defaultLevel := "info"
	if development {
		defaultEncoding = "console"
		defaultLevel = "debug"
	}

	lockTTL := getEnvInt("QUOTA_LOCK_TTL_SECONDS", 5)
	if lockTTL < 1 {
		lockTTL = 5
	}

	return Config{
		AppEnv:          appEnv,
		Port:            getEnv("PORT", "8080"),
		AllowedOrigin:   getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DefaultTenantID: getEnv("DEFAULT_TENANT_ID", "default"),
		DefaultStoreID:  getEnv("DEFAULT_STORE_ID", "main-store"),
		QuotaLockTTL:    time.Duration(lockTTL) * time.Second,
		Database: DatabaseConfig{
			URL:          strings.TrimSpace(os.Getenv("DATABASE_URL")),
			AutoMigrate:  getEnvBool("DB_AUTO_MIGRATE", true),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Log: LogConfig{
			Development:       development,
			Level:             getEnv("LOG_LEVEL", defaultLevel),
			Encoding:          getEnv("LOG_ENCODING", defaultEncoding),
			DisableCaller:     getEnvBool("LOG_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOG_DISABLE_STACKTRACE", !development),
		},
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	return val
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}
