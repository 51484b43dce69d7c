// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/logharbor/internal/index"
	"github.com/wingedpig/logharbor/internal/store"
)

func testEngine(t *testing.T) (*Engine, *store.Store, *index.Manager) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	indexes := index.NewManager(t.TempDir(), false)
	t.Cleanup(func() { indexes.CloseAll() })

	return New(st, indexes), st, indexes
}

func seedWatcher(t *testing.T, st *store.Store, name, tz string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, st.Watchers.Insert(context.Background(), &store.Watcher{
		Name: name, SSHConfigName: "prod", WatchDir: "/logs", RecurDepth: 1,
		Enabled: true, TimeZoneID: tz, CreatedAt: now, UpdatedAt: now,
	}))
}

func seedEvents(t *testing.T, indexes *index.Manager, watcher string, evs []index.Event) {
	t.Helper()
	idx, err := indexes.Writer(watcher)
	require.NoError(t, err)
	w := index.NewRecordWriter(idx)
	for _, ev := range evs {
		require.NoError(t, w.Upsert(ev))
	}
	_, err = w.Commit()
	require.NoError(t, err)
}

func at(t *testing.T, loc *time.Location, s string) int64 {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02 15:04:05.000", s, loc)
	require.NoError(t, err)
	return ts.UnixMilli()
}

func sampleEvents(t *testing.T) []index.Event {
	return []index.Event{
		{
			MD5ID:         "e1",
			StrTimestamp:  "2025-07-30 08:00:00.000",
			LongTimestamp: at(t, time.UTC, "2025-07-30 08:00:00.000"),
			LogPath:       "/logs/App.log",
			Content:       "2025-07-30 08:00:00.000 INFO Server Started on port 9220",
		},
		{
			MD5ID:         "e2",
			StrTimestamp:  "2025-07-30 09:15:00.000",
			LongTimestamp: at(t, time.UTC, "2025-07-30 09:15:00.000"),
			LogPath:       "/logs/App.log",
			Content:       "2025-07-30 09:15:00.000 ERROR database connection refused",
		},
		{
			MD5ID:         "e3",
			StrTimestamp:  "2025-07-30 10:30:00.000",
			LongTimestamp: at(t, time.UTC, "2025-07-30 10:30:00.000"),
			LogPath:       "/logs/worker.log",
			Content:       "2025-07-30 10:30:00.000 WARN database retry scheduled",
		},
	}
}

func TestSearchCaseInsensitive(t *testing.T) {
	e, st, indexes := testEngine(t)
	seedWatcher(t, st, "w1", "")
	seedEvents(t, indexes, "w1", sampleEvents(t))

	for _, term := range []string{"DATABASE", "database", "DataBase"} {
		res, err := e.Search(context.Background(), Query{WatcherName: "w1", ContentQ: term})
		require.NoError(t, err)
		assert.Equal(t, uint64(2), res.TotalHits, "term %q", term)
	}

	// Stored content keeps its original case.
	res, err := e.Search(context.Background(), Query{WatcherName: "w1", ContentQ: "server"})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Contains(t, res.Results[0].Content, "Server Started")
}

func TestSearchSubstring(t *testing.T) {
	e, st, indexes := testEngine(t)
	seedWatcher(t, st, "w1", "")
	seedEvents(t, indexes, "w1", sampleEvents(t))

	// Mid-token match inside "database".
	res, err := e.Search(context.Background(), Query{WatcherName: "w1", ContentQ: "tabas"})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.TotalHits)
}

func TestSearchFieldsAndOperators(t *testing.T) {
	e, st, indexes := testEngine(t)
	seedWatcher(t, st, "w1", "")
	seedEvents(t, indexes, "w1", sampleEvents(t))

	// Both clauses must match the same document under AND.
	res, err := e.Search(context.Background(), Query{
		WatcherName: "w1", ContentQ: "database", LogPathQ: "worker", Operator: OpAnd,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.TotalHits)

	// OR widens to either clause.
	res, err = e.Search(context.Background(), Query{
		WatcherName: "w1", ContentQ: "started", LogPathQ: "worker", Operator: OpOr,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.TotalHits)

	// Timestamp text matches the logStrTimestamp field.
	res, err = e.Search(context.Background(), Query{WatcherName: "w1", TimestampQ: "09:15"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.TotalHits)
}

func TestSearchFilePathExact(t *testing.T) {
	e, st, indexes := testEngine(t)
	seedWatcher(t, st, "w1", "")
	seedEvents(t, indexes, "w1", sampleEvents(t))

	// Exact path, case-insensitively.
	res, err := e.Search(context.Background(), Query{WatcherName: "w1", FilePath: "/logs/app.log"})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.TotalHits)

	// A path prefix is not a match.
	res, err = e.Search(context.Background(), Query{WatcherName: "w1", FilePath: "/logs/App"})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), res.TotalHits)

	// The filter restricts even under OR.
	res, err = e.Search(context.Background(), Query{
		WatcherName: "w1", ContentQ: "database", FilePath: "/logs/App.log", Operator: OpOr,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.TotalHits)
}

func TestSearchDateRange(t *testing.T) {
	e, st, indexes := testEngine(t)
	seedWatcher(t, st, "w1", "")
	seedEvents(t, indexes, "w1", sampleEvents(t))

	res, err := e.Search(context.Background(), Query{
		WatcherName: "w1", StartDate: "2025-07-30T09:00:00", EndDate: "2025-07-30T10:00:00",
	})
	require.NoError(t, err)
	require.Equal(t, uint64(1), res.TotalHits)
	assert.Equal(t, "2025-07-30 09:15:00.000", res.Results[0].Timestamp)

	// Open-ended lower bound.
	res, err = e.Search(context.Background(), Query{WatcherName: "w1", StartDate: "2025-07-30T09:00:00"})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.TotalHits)

	_, err = e.Search(context.Background(), Query{
		WatcherName: "w1", StartDate: "2025-07-30T10:00:00", EndDate: "2025-07-30T09:00:00",
	})
	assert.Error(t, err)
}

func TestSearchRangeUsesWatcherZone(t *testing.T) {
	e, st, indexes := testEngine(t)
	seedWatcher(t, st, "w1", "America/New_York")

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	seedEvents(t, indexes, "w1", []index.Event{{
		MD5ID:         "e1",
		StrTimestamp:  "2025-01-15 08:30:00.000",
		LongTimestamp: at(t, ny, "2025-01-15 08:30:00.000"),
		LogPath:       "/logs/app.log",
		Content:       "2025-01-15 08:30:00.000 INFO local morning",
	}})

	// The wall-clock window, interpreted in the watcher's zone, brackets the
	// event; in UTC it would not.
	res, err := e.Search(context.Background(), Query{
		WatcherName: "w1", StartDate: "2025-01-15T08:00:00", EndDate: "2025-01-15T09:00:00",
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.TotalHits)
}

func TestSearchPaginationAndOrder(t *testing.T) {
	e, st, indexes := testEngine(t)
	seedWatcher(t, st, "w1", "")

	evs := make([]index.Event, 0, 25)
	base := at(t, time.UTC, "2025-07-30 00:00:00.000")
	for i := 0; i < 25; i++ {
		evs = append(evs, index.Event{
			MD5ID:         fmt.Sprintf("e%02d", i),
			StrTimestamp:  fmt.Sprintf("2025-07-30 00:%02d:00.000", i),
			LongTimestamp: base + int64(i)*60_000,
			LogPath:       "/logs/app.log",
			Content:       fmt.Sprintf("INFO event %d", i),
		})
	}
	seedEvents(t, indexes, "w1", evs)

	var seen []string
	for page := 1; page <= 3; page++ {
		res, err := e.Search(context.Background(), Query{
			WatcherName: "w1", ContentQ: "event", Page: page, PageSize: 10,
		})
		require.NoError(t, err)
		assert.Equal(t, uint64(25), res.TotalHits)
		for _, h := range res.Results {
			seen = append(seen, h.Timestamp)
		}
	}

	require.Len(t, seen, 25)
	for i := 1; i < len(seen); i++ {
		assert.Less(t, seen[i-1], seen[i], "hits ordered by timestamp")
	}
}

func TestSearchMissingIndexEmpty(t *testing.T) {
	e, st, _ := testEngine(t)
	seedWatcher(t, st, "w1", "")

	res, err := e.Search(context.Background(), Query{WatcherName: "w1", ContentQ: "anything"})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), res.TotalHits)
	assert.Empty(t, res.Results)
}

func TestSearchNoCriteriaEmpty(t *testing.T) {
	e, st, indexes := testEngine(t)
	seedWatcher(t, st, "w1", "")
	seedEvents(t, indexes, "w1", sampleEvents(t))

	res, err := e.Search(context.Background(), Query{WatcherName: "w1", ContentQ: "  "})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), res.TotalHits)
}

func TestSearchRequiresWatcher(t *testing.T) {
	e, _, _ := testEngine(t)
	_, err := e.Search(context.Background(), Query{ContentQ: "x"})
	assert.Error(t, err)
}
