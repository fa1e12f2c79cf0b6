// Dosentrack - Real-Time Campus Presence and Location Broadcasting
// Copyright 2026 Dosentrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dosentrack/dosentrack

// Package config loads and validates the Dosentrack configuration.
// Values are layered: struct defaults, then an optional YAML file,
// then DOSENTRACK_-prefixed environment variables.
package config

import "time"

// Config is the complete application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Database DatabaseConfig `koanf:"database"`
	Engine   EngineConfig   `koanf:"engine"`
	Geofence GeofenceConfig `koanf:"geofence"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// SecurityConfig holds authentication settings.
type SecurityConfig struct {
	// JWTSecret signs bearer tokens. Minimum 32 characters.
	JWTSecret string `koanf:"jwt_secret" validate:"required,min=32"`

	// SessionTimeout is the issued token lifetime.
	SessionTimeout time.Duration `koanf:"session_timeout" validate:"required"`

	// LoginRateLimit caps login attempts per client IP per window.
	LoginRateLimit  int           `koanf:"login_rate_limit" validate:"min=1"`
	LoginRateWindow time.Duration `koanf:"login_rate_window" validate:"required"`
}

// DatabaseConfig holds the SQLite store settings.
type DatabaseConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// EngineConfig holds the broadcast engine throttles and timeouts.
type EngineConfig struct {
	// PersistInterval is the minimum time between two latest-location
	// writes for the same lecturer.
	PersistInterval time.Duration `koanf:"persist_interval" validate:"required"`

	// HistoryInterval is the quiet window between two same-zone
	// history records in one day bucket.
	HistoryInterval time.Duration `koanf:"history_interval" validate:"required"`

	// InactivityTimeout force-disconnects a lecturer connection that
	// has sent nothing for this long.
	InactivityTimeout time.Duration `koanf:"inactivity_timeout" validate:"required"`
}

// GeofenceConfig holds the ordered zone list and the masked fallback
// location. Zone order is significant: classification is
// first-match-wins.
type GeofenceConfig struct {
	Zones           []ZoneConfig `koanf:"zones" validate:"dive"`
	MaskedLatitude  float64      `koanf:"masked_latitude" validate:"latitude"`
	MaskedLongitude float64      `koanf:"masked_longitude" validate:"longitude"`
	MaskedZoneName  string       `koanf:"masked_zone_name" validate:"required"`
}

// ZoneConfig is one circular geofence zone.
type ZoneConfig struct {
	Name      string  `koanf:"name" validate:"required"`
	Latitude  float64 `koanf:"latitude" validate:"latitude"`
	Longitude float64 `koanf:"longitude" validate:"longitude"`
	RadiusKm  float64 `koanf:"radius_km" validate:"gt=0"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns the built-in defaults, overridden by file and
// environment layers.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Security: SecurityConfig{
			JWTSecret:       "",
			SessionTimeout:  24 * time.Hour,
			LoginRateLimit:  5,
			LoginRateWindow: 5 * time.Minute,
		},
		Database: DatabaseConfig{
			Path: "/data/dosentrack.db",
		},
		Engine: EngineConfig{
			PersistInterval:   60 * time.Second,
			HistoryInterval:   time.Hour,
			InactivityTimeout: 10 * time.Minute,
		},
		Geofence: GeofenceConfig{
			Zones: []ZoneConfig{
				{Name: "Campus A", Latitude: -3.219741, Longitude: 104.651220, RadiusKm: 0.5},
				{Name: "Campus B", Latitude: -3.224175, Longitude: 104.645913, RadiusKm: 0.5},
			},
			MaskedLatitude:  -2.990934,
			MaskedLongitude: 104.756554,
			MaskedZoneName:  "Outside",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
