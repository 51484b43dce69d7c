// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package events provides the event bus for Logharbor.
package events

import (
	"context"
	"time"
)

// Event represents an immutable event record.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Watcher   string                 `json:"watcher,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// Handler processes received events.
type Handler func(ctx context.Context, event Event) error

// SubscriptionID uniquely identifies a subscription.
type SubscriptionID string

// Filter for querying event history.
type Filter struct {
	Types   []string  // Event types to match (supports trailing-* wildcards)
	Watcher string    // Filter by watcher name
	Since   time.Time // Events after this time
	Until   time.Time // Events before this time
	Limit   int       // Maximum events to return
}

// Bus is the core event pub/sub system.
type Bus interface {
	// Publish emits an event to all matching subscribers.
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a synchronous handler for events matching pattern.
	Subscribe(pattern string, handler Handler) (SubscriptionID, error)

	// SubscribeAsync registers an async handler with a buffered channel.
	SubscribeAsync(pattern string, handler Handler, bufferSize int) (SubscriptionID, error)

	// Unsubscribe removes a subscription.
	Unsubscribe(id SubscriptionID) error

	// History retrieves past events matching filter.
	History(filter Filter) ([]Event, error)

	// Close shuts down the event bus gracefully.
	Close() error
}

// Common event types
const (
	// Discovery run events
	EventDiscoveryStarted  = "discovery.started"
	EventDiscoveryFinished = "discovery.finished"

	// Ingestion run events
	EventIngestStarted  = "ingest.started"
	EventIngestFinished = "ingest.finished"

	// Per-record outcomes
	EventRecordIndexed = "record.indexed"
	EventRecordError   = "record.error"

	// Per-watcher failures (bad config, auth, transport)
	EventWatcherError = "watcher.error"

	// Configuration reloads
	EventConfigReloaded = "config.reloaded"
)
