// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"errors"
	"strings"
)

// ErrInvalidPattern is returned for patterns with an interior wildcard.
var ErrInvalidPattern = errors.New("invalid event pattern")

// Pattern matches event types. Supported forms: exact ("ingest.started"),
// prefix ("record.*"), and match-all ("*").
type Pattern struct {
	exact  string
	prefix string
	all    bool
}

// CompilePattern parses a pattern string.
func CompilePattern(pattern string) (Pattern, error) {
	if pattern == "" || pattern == "*" {
		return Pattern{all: true}, nil
	}
	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		if strings.Contains(prefix, "*") {
			return Pattern{}, ErrInvalidPattern
		}
		return Pattern{prefix: prefix}, nil
	}
	if strings.Contains(pattern, "*") {
		return Pattern{}, ErrInvalidPattern
	}
	return Pattern{exact: pattern}, nil
}

// Match reports whether the event type matches this pattern.
func (p Pattern) Match(eventType string) bool {
	switch {
	case p.all:
		return true
	case p.prefix != "":
		return strings.HasPrefix(eventType, p.prefix)
	default:
		return eventType == p.exact
	}
}
