package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	AuthSecret            string
	AccessTokenTTLMinutes int
	SeedAdminPassword     string
	MaxQtyPerProduct      int
	LowStockThreshold     int
	ReportCacheTTLSeconds int
	LogLevel              string
	LogFormat             string
}

var defaults = map[string]any{
	"PORT":                     "8080",
	"ALLOWED_ORIGIN":           "http://127.0.0.1:3000",
	"REDIS_DB":                 0,
	"ACCESS_TOKEN_TTL_MINUTES": 480,
	"MAX_QTY_PER_PRODUCT":      10,
	"LOW_STOCK_THRESHOLD":      5,
	"REPORT_CACHE_TTL_SECONDS": 60,
	"LOG_LEVEL":                "info",
	"LOG_FORMAT":               "json",
}

// Load reads settings from the environment. When BAKERYPOS_CONFIG_FILE names
// a file (.env, yaml, toml...) its values are used for keys the environment
// does not set.
func Load() (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if file := strings.TrimSpace(v.GetString("BAKERYPOS_CONFIG_FILE")); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	cfg := Config{
		Port:                  v.GetString("PORT"),
		AllowedOrigin:         v.GetString("ALLOWED_ORIGIN"),
		DatabaseURL:           strings.TrimSpace(v.GetString("DATABASE_URL")),
		RedisAddr:             strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RedisPassword:         v.GetString("REDIS_PASSWORD"),
		RedisDB:               v.GetInt("REDIS_DB"),
		AuthSecret:            strings.TrimSpace(v.GetString("AUTH_SECRET")),
		AccessTokenTTLMinutes: positiveOr(v.GetInt("ACCESS_TOKEN_TTL_MINUTES"), 480),
		SeedAdminPassword:     v.GetString("SEED_ADMIN_PASSWORD"),
		MaxQtyPerProduct:      positiveOr(v.GetInt("MAX_QTY_PER_PRODUCT"), 10),
		LowStockThreshold:     max(0, v.GetInt("LOW_STOCK_THRESHOLD")),
		ReportCacheTTLSeconds: positiveOr(v.GetInt("REPORT_CACHE_TTL_SECONDS"), 60),
		LogLevel:              strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:             strings.ToLower(v.GetString("LOG_FORMAT")),
	}

	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func positiveOr(val int, fallback int) int {
	if val < 1 {
		return fallback
	}
	return val
}
