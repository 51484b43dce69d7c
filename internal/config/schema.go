// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config handles HJSON configuration loading and validation.
package config

import (
	"time"
)

// Config is the root configuration structure for Logharbor.
type Config struct {
	Version   string          `json:"version"`
	Server    ServerConfig    `json:"server"`
	Store     StoreConfig     `json:"store"`
	Index     IndexConfig     `json:"index"`
	Scheduler SchedulerConfig `json:"scheduler"`
	SSH       SSHConfig       `json:"ssh"`
	Ingest    IngestConfig    `json:"ingest"`
	Events    EventsConfig    `json:"events"`
	Logging   LoggingConfig   `json:"logging"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port    int    `json:"port"`
	Host    string `json:"host"`
	TLSCert string `json:"tls_cert"` // Path to TLS certificate file (enables HTTPS if both cert and key set)
	TLSKey  string `json:"tls_key"`  // Path to TLS private key file
}

// StoreConfig configures the metadata store.
type StoreConfig struct {
	Path string `json:"path"` // SQLite database file path
}

// IndexConfig configures the per-watcher index store.
type IndexConfig struct {
	Dir                   string `json:"dir"`                     // Root directory for per-watcher indexes
	UseDeflateCompression bool   `json:"use_deflate_compression"` // Prefer the best-compression store profile
}

// SchedulerConfig configures the discovery/ingestion cadences.
type SchedulerConfig struct {
	DiscoveryCadence int `json:"discovery_cadence"` // Minutes between discovery runs
	IngestionCadence int `json:"ingestion_cadence"` // Minutes between ingestion runs
}

// SSHConfig configures SSH transport behavior.
type SSHConfig struct {
	Timeout      string `json:"timeout"`       // Dial/exec timeout (duration string, e.g. "30s")
	CacheClients bool   `json:"cache_clients"` // Reuse authenticated clients across operations
}

// IngestConfig configures the ingestion pipeline.
type IngestConfig struct {
	MaxParallelism int `json:"max_parallelism"` // Upper bound on per-watcher workers
}

// EventsConfig configures the event bus.
type EventsConfig struct {
	History HistoryConfig `json:"history"`
}

// HistoryConfig configures event history retention.
type HistoryConfig struct {
	MaxEvents int    `json:"max_events"`
	MaxAge    string `json:"max_age"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level string `json:"level"`
}

// SSHTimeout returns the parsed SSH timeout, or the default on parse failure.
func (c *Config) SSHTimeout() time.Duration {
	if c.SSH.Timeout != "" {
		if d, err := time.ParseDuration(c.SSH.Timeout); err == nil && d > 0 {
			return d
		}
	}
	return 30 * time.Second
}

// DiscoveryInterval returns the discovery cadence as a duration.
func (c *Config) DiscoveryInterval() time.Duration {
	return time.Duration(c.Scheduler.DiscoveryCadence) * time.Minute
}

// IngestionInterval returns the ingestion cadence as a duration.
func (c *Config) IngestionInterval() time.Duration {
	return time.Duration(c.Scheduler.IngestionCadence) * time.Minute
}

// EventHistoryMaxAge returns the parsed history max age, or the default.
func (c *Config) EventHistoryMaxAge() time.Duration {
	if c.Events.History.MaxAge != "" {
		if d, err := time.ParseDuration(c.Events.History.MaxAge); err == nil && d > 0 {
			return d
		}
	}
	return time.Hour
}
