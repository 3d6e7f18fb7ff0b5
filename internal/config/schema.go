// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config handles HJSON configuration loading for the session engine.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration structure for Roost.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Worker   WorkerConfig   `json:"worker"`
	Sessions SessionsConfig `json:"sessions"`
	Events   EventsConfig   `json:"events"`
}

// ServerConfig configures the daemon's HTTP API.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// WorkerConfig configures the backend worker processes.
type WorkerConfig struct {
	// Command overrides the resolved worker executable path (plus args).
	Command []string `json:"command"`
	// Disabled skips spawning entirely; Start returns DefaultPort so an
	// externally managed worker can be used during development.
	Disabled bool `json:"disabled"`
	// DefaultPort is returned in pass-through mode.
	DefaultPort int `json:"default_port"`
	// PreferredPort seeds the scanning allocator for development parity.
	// Zero means per-session loopback allocation.
	PreferredPort int `json:"preferred_port"`
}

// SessionsConfig configures session persistence and listing.
type SessionsConfig struct {
	Dir           string `json:"dir"`            // session log directory; empty = per-user default
	RetentionDays int    `json:"retention_days"` // files older than this are ignored
	DirListLimit  int    `json:"dir_list_limit"` // cap for directory-scoped listings
	RecentLimit   int    `json:"recent_limit"`   // cap for global recent listings
	CombinedLimit int    `json:"combined_limit"` // cap for the merged view
}

// EventsConfig configures the event bus.
type EventsConfig struct {
	History EventHistoryConfig `json:"history"`
}

// EventHistoryConfig configures event history retention.
type EventHistoryConfig struct {
	MaxEvents int    `json:"max_events"`
	MaxAge    string `json:"max_age"` // duration string, e.g. "1h"
}

// applyDefaults fills in default values for unset fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3111
	}
	if cfg.Worker.DefaultPort == 0 {
		cfg.Worker.DefaultPort = 3284
	}
	if cfg.Sessions.Dir == "" {
		cfg.Sessions.Dir = DefaultSessionsDir()
	}
	if cfg.Sessions.RetentionDays == 0 {
		cfg.Sessions.RetentionDays = 10
	}
	if cfg.Sessions.DirListLimit == 0 {
		cfg.Sessions.DirListLimit = 4
	}
	if cfg.Sessions.RecentLimit == 0 {
		cfg.Sessions.RecentLimit = 20
	}
	if cfg.Sessions.CombinedLimit == 0 {
		cfg.Sessions.CombinedLimit = 5
	}
	if cfg.Events.History.MaxEvents == 0 {
		cfg.Events.History.MaxEvents = 10000
	}
	if cfg.Events.History.MaxAge == "" {
		cfg.Events.History.MaxAge = "1h"
	}
}

// DefaultSessionsDir returns the per-user session log directory.
func DefaultSessionsDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return filepath.Join(".", "roost", "sessions")
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "roost", "sessions")
}

// ParseDuration parses a duration string, falling back to def on error
// or empty input.
func ParseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
