// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrParse marks an event whose timestamp prefix cannot be interpreted.
var ErrParse = errors.New("unparseable timestamp")

// timestampRe matches the start of a new log event:
// a date, a time with milliseconds, then anything.
var timestampRe = regexp.MustCompile(`^\d{4}[-/]\d{2}[-/]\d{2}\s\d{2}:\d{2}:\d{2}\.\d{3}`)

// timestampPrefixLen is the length of the matched date-time prefix.
const timestampPrefixLen = 23

// EmitFunc receives one grouped event: its raw timestamp prefix (empty for a
// leading line with no timestamp) and the full event content.
type EmitFunc func(timestamp, content string) error

// Split reads lines from r and groups them into events. A line matching the
// timestamp pattern starts a new event; following non-matching lines are
// continuations (stack traces, reports). Lines before the first timestamp are
// emitted as standalone events with an empty timestamp.
func Split(r io.Reader, emit EmitFunc) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var current strings.Builder
	var currentTS string

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case timestampRe.MatchString(line):
			if current.Len() > 0 {
				if err := emit(currentTS, current.String()); err != nil {
					return err
				}
				current.Reset()
			}
			current.WriteString(line)
			currentTS = line[:timestampPrefixLen]

		case current.Len() > 0:
			current.WriteByte('\n')
			current.WriteString(line)

		default:
			// File starts with a non-timestamp line.
			if err := emit("", line); err != nil {
				return err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read lines: %w", err)
	}

	if current.Len() > 0 {
		return emit(currentTS, current.String())
	}
	return nil
}

// ParseTimestamp interprets a 23-character timestamp prefix in the given zone
// and returns the absolute instant. The prefix is split on tab, space, and the
// punctuation the supported formats use; the components are year, month, day,
// hour, minute, second, millisecond.
func ParseTimestamp(prefix string, loc *time.Location) (time.Time, error) {
	if !timestampRe.MatchString(prefix) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrParse, prefix)
	}

	fields := strings.FieldsFunc(prefix, func(r rune) bool {
		switch r {
		case '\t', ' ', '.', ':', '-', '/':
			return true
		}
		return false
	})
	if len(fields) != 7 {
		return time.Time{}, fmt.Errorf("%w: %q has %d components", ErrParse, prefix, len(fields))
	}

	nums := make([]int, 7)
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrParse, prefix)
		}
		nums[i] = n
	}

	return time.Date(nums[0], time.Month(nums[1]), nums[2], nums[3], nums[4], nums[5],
		nums[6]*int(time.Millisecond), loc), nil
}
