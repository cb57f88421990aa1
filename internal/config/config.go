package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env                    string
	LogLevel               string
	HTTPAddr               string
	DatabaseURL            string
	MigrateOnBoot          bool
	RedisAddr              string
	RedisPassword          string
	RedisDB                int
	CacheTTL               time.Duration
	JWTSecret              string
	JWTTTLMinutes          int
	AllowedOrigins         []string
	MaxBodyBytes           int64
	PrinterAddr            string
	PrinterTimeout         time.Duration
	BootstrapAdminUsername string
	BootstrapAdminPassword string
	SeedAdminPassword      string
	SeedManagerPassword    string
	SeedCashierPassword    string
}

// Load reads configuration from the environment, with an optional .env
// file in the working directory. Environment variables win.
func Load() Config {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig()
	v.AutomaticEnv()

	cacheTTL := positive(getInt(v, "CACHE_TTL_SECONDS", 300), 300)
	printerTimeout := positive(getInt(v, "PRINTER_TIMEOUT_MS", 2000), 2000)
	maxBody := positive(getInt(v, "MAX_BODY_BYTES", 1<<20), 1<<20)

	return Config{
		Env:                    strings.ToLower(getString(v, "APP_ENV", "development")),
		LogLevel:               getString(v, "LOG_LEVEL", "info"),
		HTTPAddr:               getString(v, "HTTP_ADDR", ":8080"),
		DatabaseURL:            getString(v, "DATABASE_URL", ""),
		MigrateOnBoot:          getBool(v, "DB_MIGRATE", true),
		RedisAddr:              getString(v, "REDIS_ADDR", ""),
		RedisPassword:          getString(v, "REDIS_PASSWORD", ""),
		RedisDB:                getInt(v, "REDIS_DB", 0),
		CacheTTL:               time.Duration(cacheTTL) * time.Second,
		JWTSecret:              getString(v, "JWT_SECRET", ""),
		JWTTTLMinutes:          positive(getInt(v, "JWT_TTL_MINUTES", 480), 480),
		AllowedOrigins:         splitList(getString(v, "CORS_ALLOWED_ORIGINS", "")),
		MaxBodyBytes:           int64(maxBody),
		PrinterAddr:            getString(v, "PRINTER_ADDR", ""),
		PrinterTimeout:         time.Duration(printerTimeout) * time.Millisecond,
		BootstrapAdminUsername: getString(v, "BOOTSTRAP_ADMIN_USERNAME", ""),
		BootstrapAdminPassword: getString(v, "BOOTSTRAP_ADMIN_PASSWORD", ""),
		SeedAdminPassword:      getString(v, "SEED_ADMIN_PASSWORD", ""),
		SeedManagerPassword:    getString(v, "SEED_MANAGER_PASSWORD", ""),
		SeedCashierPassword:    getString(v, "SEED_CASHIER_PASSWORD", ""),
	}
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return strings.TrimSpace(v.GetString(key))
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if !v.IsSet(key) {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return def
	}
	return n
}

func getBool(v *viper.Viper, key string, def bool) bool {
	if !v.IsSet(key) {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return def
	}
	return b
}

func positive(n, fallback int) int {
	if n < 1 {
		return fallback
	}
	return n
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
