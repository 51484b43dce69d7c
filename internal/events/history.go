// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"sync"
	"time"
)

// HistoryConfig configures event history retention.
type HistoryConfig struct {
	MaxEvents int
	MaxAge    time.Duration
}

// History manages event retention.
type History struct {
	mu        sync.RWMutex
	events    []Event
	maxEvents int
	maxAge    time.Duration
}

// NewHistory creates a new event history.
func NewHistory(cfg HistoryConfig) *History {
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = 10000
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = time.Hour
	}

	return &History{
		events:    make([]Event, 0),
		maxEvents: cfg.MaxEvents,
		maxAge:    cfg.MaxAge,
	}
}

// Add stores an event in history, evicting the oldest past the size limit.
func (h *History) Add(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.events = append(h.events, event)
	if len(h.events) > h.maxEvents {
		h.events = h.events[len(h.events)-h.maxEvents:]
	}
}

// Query retrieves events matching filter, oldest first.
func (h *History) Query(filter Filter) ([]Event, error) {
	var patterns []Pattern
	for _, t := range filter.Types {
		p, err := CompilePattern(t)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []Event
	for _, ev := range h.events {
		if filter.Watcher != "" && ev.Watcher != filter.Watcher {
			continue
		}
		if !filter.Since.IsZero() && !ev.Timestamp.After(filter.Since) {
			continue
		}
		if !filter.Until.IsZero() && !ev.Timestamp.Before(filter.Until) {
			continue
		}
		if len(patterns) > 0 {
			matched := false
			for _, p := range patterns {
				if p.Match(ev.Type) {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		out = append(out, ev)
	}

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out, nil
}

// Prune drops events older than the max age.
func (h *History) Prune() {
	cutoff := time.Now().Add(-h.maxAge)

	h.mu.Lock()
	defer h.mu.Unlock()

	idx := 0
	for idx < len(h.events) && h.events[idx].Timestamp.Before(cutoff) {
		idx++
	}
	if idx > 0 {
		h.events = h.events[idx:]
	}
}

// Len returns the number of retained events.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.events)
}
