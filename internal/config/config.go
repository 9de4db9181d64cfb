// Package config loads environment-driven settings for the service binaries.
// The pipeline stages themselves never read the environment; they receive an
// explicit pipeline.Config built here.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/BraPil/Electric-Load-Predictor/internal/pipeline"
)

// Config holds runtime configuration for the pipeline and API services.
type Config struct {
	// DatabaseURL is required by the API service and by the pipeline
	// unless the database load step is skipped.
	DatabaseURL string

	Port         int
	BearerToken  string
	DefaultLimit int

	GapFillLimit          int
	CompletenessThreshold float64
	VoltageMin            float64
	VoltageMax            float64
	MaxMissingRatio       float64

	LagHours        []int
	RollingWindows  []int
	IncludeCalendar bool
	IncludeCyclical bool
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file

	defaults := pipeline.DefaultConfig()
	cfg := Config{
		Port:                  8080,
		DefaultLimit:          200,
		GapFillLimit:          defaults.Transform.GapFillLimit,
		CompletenessThreshold: defaults.Transform.CompletenessThreshold,
		VoltageMin:            defaults.Transform.VoltageMin,
		VoltageMax:            defaults.Transform.VoltageMax,
		MaxMissingRatio:       defaults.Validate.MaxMissingRatio,
		LagHours:              defaults.Features.LagHours,
		RollingWindows:        defaults.Features.RollingWindows,
		IncludeCalendar:       defaults.Features.IncludeCalendar,
		IncludeCyclical:       defaults.Features.IncludeCyclical,
	}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.BearerToken = os.Getenv("API_BEARER_TOKEN")

	if portStr := os.Getenv("PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 {
			return cfg, fmt.Errorf("invalid PORT: %s", portStr)
		}
		cfg.Port = port
	}

	if limitStr := os.Getenv("API_DEFAULT_LIMIT"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			return cfg, fmt.Errorf("invalid API_DEFAULT_LIMIT: %s", limitStr)
		}
		cfg.DefaultLimit = limit
	}

	var err error
	if cfg.GapFillLimit, err = intEnv("ETL_GAP_FILL_LIMIT", cfg.GapFillLimit); err != nil {
		return cfg, err
	}
	if cfg.CompletenessThreshold, err = floatEnv("ETL_COMPLETENESS_THRESHOLD", cfg.CompletenessThreshold); err != nil {
		return cfg, err
	}
	if cfg.VoltageMin, err = floatEnv("ETL_VOLTAGE_MIN", cfg.VoltageMin); err != nil {
		return cfg, err
	}
	if cfg.VoltageMax, err = floatEnv("ETL_VOLTAGE_MAX", cfg.VoltageMax); err != nil {
		return cfg, err
	}
	if cfg.MaxMissingRatio, err = floatEnv("ETL_MAX_MISSING_RATIO", cfg.MaxMissingRatio); err != nil {
		return cfg, err
	}
	if cfg.LagHours, err = intListEnv("ETL_LAG_HOURS", cfg.LagHours); err != nil {
		return cfg, err
	}
	if cfg.RollingWindows, err = intListEnv("ETL_ROLLING_WINDOWS", cfg.RollingWindows); err != nil {
		return cfg, err
	}
	cfg.IncludeCalendar = boolEnv("ETL_INCLUDE_CALENDAR", cfg.IncludeCalendar)
	cfg.IncludeCyclical = boolEnv("ETL_INCLUDE_CYCLICAL", cfg.IncludeCyclical)

	return cfg, nil
}

// Pipeline builds the explicit stage configuration from the loaded settings.
func (c Config) Pipeline() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.Transform.GapFillLimit = c.GapFillLimit
	cfg.Transform.CompletenessThreshold = c.CompletenessThreshold
	cfg.Transform.VoltageMin = c.VoltageMin
	cfg.Transform.VoltageMax = c.VoltageMax
	cfg.Validate.MaxMissingRatio = c.MaxMissingRatio
	cfg.Features.LagHours = c.LagHours
	cfg.Features.RollingWindows = c.RollingWindows
	cfg.Features.IncludeCalendar = c.IncludeCalendar
	cfg.Features.IncludeCyclical = c.IncludeCyclical
	return cfg
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func intEnv(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %s", key, v)
	}
	return n, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %s", key, v)
	}
	return f, nil
}

func boolEnv(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v == "1" || strings.EqualFold(v, "true")
}

func intListEnv(key string, fallback []int) ([]int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	parts := strings.Split(v, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n <= 0 {
			return fallback, fmt.Errorf("invalid %s: %s", key, v)
		}
		out = append(out, n)
	}
	return out, nil
}
