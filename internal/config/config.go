// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package config handles application configuration loading from environment
// variables. It provides a centralized Config struct used across the application.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration values loaded from the environment.
type Config struct {
	// Server settings
	Host string
	Port string
	Env  string // "development", "production", "testing"

	// PostgreSQL connection
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Valkey (Redis-compatible cache)
	ValkeyHost     string
	ValkeyPort     string
	ValkeyPassword string

	// Site date handling. Formats are strftime patterns.
	SiteTimezone string
	DateFormat   string
	TimeFormat   string

	// Proposed publish date feature
	ProposedDateTypes         []string // content types that accept a proposal
	ProposedDatePanelStatuses []string // statuses that show the editor panel

	// Editor bundle assets
	AssetManifest string // filesystem path of asset-manifest.json
	StaticURL     string // URL prefix for relative manifest entries

	// Scheduled publishing of "future" content (cron spec)
	PublishSchedule string

	// Login attempts allowed per minute per client IP
	LoginRatePerMin int
}

// Load reads configuration from environment variables, applying defaults
// for development where appropriate. Returns an error if critical values
// are missing or malformed.
func Load() (*Config, error) {
	cfg := &Config{
		Host: envOrDefault("APP_HOST", "0.0.0.0"),
		Port: envOrDefault("APP_PORT", "8080"),
		Env:  envOrDefault("APP_ENV", "development"),

		DBHost:     envOrDefault("POSTGRES_HOST", "localhost"),
		DBPort:     envOrDefault("POSTGRES_PORT", "5432"),
		DBUser:     envOrDefault("POSTGRES_USER", "proposepress"),
		DBPassword: envOrDefault("POSTGRES_PASSWORD", "changeme"),
		DBName:     envOrDefault("POSTGRES_DB", "proposepress"),

		ValkeyHost:     envOrDefault("VALKEY_HOST", "localhost"),
		ValkeyPort:     envOrDefault("VALKEY_PORT", "6379"),
		ValkeyPassword: os.Getenv("VALKEY_PASSWORD"),

		SiteTimezone: envOrDefault("SITE_TIMEZONE", "UTC"),
		DateFormat:   envOrDefault("DATE_FORMAT", "%B %d, %Y"),
		TimeFormat:   envOrDefault("TIME_FORMAT", "%H:%M"),

		ProposedDateTypes:         envList("PROPOSED_DATE_TYPES", []string{"post", "page"}),
		ProposedDatePanelStatuses: envList("PROPOSED_DATE_PANEL_STATUSES", []string{"auto-draft", "draft", "future"}),

		AssetManifest: envOrDefault("ASSET_MANIFEST", "web/static/build/asset-manifest.json"),
		StaticURL:     envOrDefault("STATIC_URL", "/static/build"),

		PublishSchedule: envOrDefault("PUBLISH_SCHEDULE", "@every 1m"),
	}

	rate, err := strconv.Atoi(envOrDefault("LOGIN_RATE_PER_MIN", "10"))
	if err != nil || rate <= 0 {
		return nil, fmt.Errorf("LOGIN_RATE_PER_MIN must be a positive integer")
	}
	cfg.LoginRatePerMin = rate

	if _, err := time.LoadLocation(cfg.SiteTimezone); err != nil {
		return nil, fmt.Errorf("SITE_TIMEZONE %q: %w", cfg.SiteTimezone, err)
	}

	if cfg.Env == "production" {
		if cfg.DBPassword == "changeme" {
			return nil, fmt.Errorf("POSTGRES_PASSWORD must be set in production")
		}
	}

	return cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Location returns the site's time zone. Load has already validated the
// name, so the UTC fallback only applies to hand-built configs.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.SiteTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// envOrDefault reads an environment variable, returning a fallback if unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envList reads a comma-separated environment variable. Blank entries are
// dropped; an unset or all-blank value yields the fallback.
func envList(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
