// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type splitEvent struct {
	ts      string
	content string
}

func collect(t *testing.T, input string) []splitEvent {
	t.Helper()
	var got []splitEvent
	err := Split(strings.NewReader(input), func(ts, content string) error {
		got = append(got, splitEvent{ts, content})
		return nil
	})
	require.NoError(t, err)
	return got
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []splitEvent
	}{
		{
			name:  "empty",
			input: "",
			want:  nil,
		},
		{
			name:  "single event",
			input: "2025-07-30 12:49:20.168 INFO starting\n",
			want: []splitEvent{
				{"2025-07-30 12:49:20.168", "2025-07-30 12:49:20.168 INFO starting"},
			},
		},
		{
			name: "slash dates",
			input: "2025/07/30 12:49:20.168 INFO a\n" +
				"2025/07/30 12:49:21.000 INFO b\n",
			want: []splitEvent{
				{"2025/07/30 12:49:20.168", "2025/07/30 12:49:20.168 INFO a"},
				{"2025/07/30 12:49:21.000", "2025/07/30 12:49:21.000 INFO b"},
			},
		},
		{
			name: "continuation lines join with newline",
			input: "2025-07-30 12:49:20.168 ERROR boom\n" +
				"java.lang.IllegalStateException\n" +
				"\tat com.example.Main(Main.java:10)\n" +
				"2025-07-30 12:49:21.500 INFO recovered\n",
			want: []splitEvent{
				{
					"2025-07-30 12:49:20.168",
					"2025-07-30 12:49:20.168 ERROR boom\njava.lang.IllegalStateException\n\tat com.example.Main(Main.java:10)",
				},
				{"2025-07-30 12:49:21.500", "2025-07-30 12:49:21.500 INFO recovered"},
			},
		},
		{
			name: "leading lines without timestamps are standalone",
			input: "===== report header =====\n" +
				"generated nightly\n" +
				"2025-07-30 00:00:01.000 INFO report done\n",
			want: []splitEvent{
				{"", "===== report header ====="},
				{"", "generated nightly"},
				{"2025-07-30 00:00:01.000", "2025-07-30 00:00:01.000 INFO report done"},
			},
		},
		{
			name:  "no trailing newline still emits",
			input: "2025-07-30 12:49:20.168 INFO tail",
			want: []splitEvent{
				{"2025-07-30 12:49:20.168", "2025-07-30 12:49:20.168 INFO tail"},
			},
		},
		{
			name: "timestamp mid-line does not start an event",
			input: "2025-07-30 12:49:20.168 INFO at 2025-07-30 12:00:00.000 we saw it\n" +
				"  detail line\n",
			want: []splitEvent{
				{
					"2025-07-30 12:49:20.168",
					"2025-07-30 12:49:20.168 INFO at 2025-07-30 12:00:00.000 we saw it\n  detail line",
				},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, collect(t, tc.input))
		})
	}
}

func TestSplitEmitError(t *testing.T) {
	input := "2025-07-30 12:49:20.168 a\n2025-07-30 12:49:21.168 b\n"
	calls := 0
	err := Split(strings.NewReader(input), func(ts, content string) error {
		calls++
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, calls)
}

func TestParseTimestamp(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	tests := []struct {
		name   string
		prefix string
		loc    *time.Location
		want   time.Time
		fail   bool
	}{
		{
			name:   "dash format UTC",
			prefix: "2025-07-30 12:49:20.168",
			loc:    time.UTC,
			want:   time.Date(2025, 7, 30, 12, 49, 20, 168_000_000, time.UTC),
		},
		{
			name:   "slash format UTC",
			prefix: "2025/07/30 12:49:20.168",
			loc:    time.UTC,
			want:   time.Date(2025, 7, 30, 12, 49, 20, 168_000_000, time.UTC),
		},
		{
			name:   "watcher zone applied",
			prefix: "2025-01-15 08:30:00.500",
			loc:    ny,
			want:   time.Date(2025, 1, 15, 8, 30, 0, 500_000_000, ny),
		},
		{name: "empty", prefix: "", loc: time.UTC, fail: true},
		{name: "no millis", prefix: "2025-07-30 12:49:20", loc: time.UTC, fail: true},
		{name: "garbage", prefix: "not a timestamp at all!!", loc: time.UTC, fail: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseTimestamp(tc.prefix, tc.loc)
			if tc.fail {
				assert.ErrorIs(t, err, ErrParse)
				return
			}
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "want %v got %v", tc.want, got)
		})
	}
}

func TestParseTimestampZoneChangesInstant(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	utc, err := ParseTimestamp("2025-01-15 08:30:00.000", time.UTC)
	require.NoError(t, err)
	local, err := ParseTimestamp("2025-01-15 08:30:00.000", ny)
	require.NoError(t, err)

	// Same wall clock, five hours apart in winter.
	assert.Equal(t, 5*time.Hour, local.Sub(utc))
}
