// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"time"
)

// ValidationError describes a single config validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a list of validation failures.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msg := "config validation failed:"
	for _, err := range e {
		msg += "\n  " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors. Defaults should already be
// applied; a zero value that has a default is reported as invalid.
func Validate(cfg *Config) error {
	var errs ValidationErrors

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, ValidationError{"server.port", fmt.Sprintf("must be 1-65535, got %d", cfg.Server.Port)})
	}
	if (cfg.Server.TLSCert == "") != (cfg.Server.TLSKey == "") {
		errs = append(errs, ValidationError{"server.tls_cert", "tls_cert and tls_key must be set together"})
	}

	if cfg.Store.Path == "" {
		errs = append(errs, ValidationError{"store.path", "must not be empty"})
	}
	if cfg.Index.Dir == "" {
		errs = append(errs, ValidationError{"index.dir", "must not be empty"})
	}

	if cfg.Scheduler.DiscoveryCadence < 1 {
		errs = append(errs, ValidationError{"scheduler.discovery_cadence", "must be at least 1 minute"})
	}
	if cfg.Scheduler.IngestionCadence < 1 {
		errs = append(errs, ValidationError{"scheduler.ingestion_cadence", "must be at least 1 minute"})
	}

	if cfg.SSH.Timeout != "" {
		if d, err := time.ParseDuration(cfg.SSH.Timeout); err != nil {
			errs = append(errs, ValidationError{"ssh.timeout", "invalid duration: " + cfg.SSH.Timeout})
		} else if d <= 0 {
			errs = append(errs, ValidationError{"ssh.timeout", "must be positive"})
		}
	}

	if cfg.Ingest.MaxParallelism < 0 {
		errs = append(errs, ValidationError{"ingest.max_parallelism", "must not be negative"})
	}

	if cfg.Events.History.MaxAge != "" {
		if _, err := time.ParseDuration(cfg.Events.History.MaxAge); err != nil {
			errs = append(errs, ValidationError{"events.history.max_age", "invalid duration: " + cfg.Events.History.MaxAge})
		}
	}

	switch cfg.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{"logging.level", "must be one of debug, info, warn, error"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
