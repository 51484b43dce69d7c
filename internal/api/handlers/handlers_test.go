// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/logharbor/internal/index"
	"github.com/wingedpig/logharbor/internal/scheduler"
	"github.com/wingedpig/logharbor/internal/search"
	"github.com/wingedpig/logharbor/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func testRouter(t *testing.T, st *store.Store) *mux.Router {
	t.Helper()
	r := mux.NewRouter()

	configHandler := NewConfigHandler(st)
	r.HandleFunc("/configs", configHandler.List).Methods("GET")
	r.HandleFunc("/configs", configHandler.Create).Methods("POST")
	r.HandleFunc("/configs/{name}", configHandler.Get).Methods("GET")
	r.HandleFunc("/configs/{name}", configHandler.Update).Methods("PUT")
	r.HandleFunc("/configs/{name}", configHandler.Delete).Methods("DELETE")

	watcherHandler := NewWatcherHandler(st)
	r.HandleFunc("/watchers", watcherHandler.List).Methods("GET")
	r.HandleFunc("/watchers", watcherHandler.Create).Methods("POST")
	r.HandleFunc("/watchers/{name}", watcherHandler.Get).Methods("GET")
	r.HandleFunc("/watchers/{name}", watcherHandler.Update).Methods("PUT")
	r.HandleFunc("/watchers/{name}", watcherHandler.Delete).Methods("DELETE")

	recordHandler := NewRecordHandler(st)
	r.HandleFunc("/records", recordHandler.List).Methods("GET")

	return r
}

func do(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NoError(t, json.Unmarshal(resp.Data, out))
}

func validConfig() map[string]interface{} {
	return map[string]interface{}{
		"name":       "prod",
		"serverHost": "logs.example.com",
		"port":       22,
		"username":   "reader",
		"password":   "secret",
	}
}

func validWatcher() map[string]interface{} {
	return map[string]interface{}{
		"name":           "app-logs",
		"sshConfigName":  "prod",
		"watchDir":       "/var/log/app",
		"recurDepth":     2,
		"filePrefix":     "app-",
		"filePostfix":    ".log",
		"enabled":        true,
		"javaTimeZoneId": "America/New_York",
	}
}

func TestConfigCRUD(t *testing.T) {
	st := testStore(t)
	r := testRouter(t, st)

	rec := do(t, r, "POST", "/configs", validConfig())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Duplicate name conflicts.
	rec = do(t, r, "POST", "/configs", validConfig())
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, r, "GET", "/configs/prod", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg store.SSHConfig
	decodeData(t, rec, &cfg)
	assert.Equal(t, "logs.example.com", cfg.ServerHost)

	update := validConfig()
	update["serverHost"] = "logs2.example.com"
	rec = do(t, r, "PUT", "/configs/prod", update)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeData(t, rec, &cfg)
	assert.Equal(t, "logs2.example.com", cfg.ServerHost)

	rec = do(t, r, "GET", "/configs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []store.SSHConfig
	decodeData(t, rec, &list)
	assert.Len(t, list, 1)

	rec = do(t, r, "DELETE", "/configs/prod", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, r, "GET", "/configs/prod", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConfigValidation(t *testing.T) {
	st := testStore(t)
	r := testRouter(t, st)

	tests := []struct {
		name  string
		patch func(m map[string]interface{})
	}{
		{"missing name", func(m map[string]interface{}) { delete(m, "name") }},
		{"missing host", func(m map[string]interface{}) { delete(m, "serverHost") }},
		{"missing username", func(m map[string]interface{}) { delete(m, "username") }},
		{"bad port", func(m map[string]interface{}) { m["port"] = 70000 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			body := validConfig()
			tc.patch(body)
			rec := do(t, r, "POST", "/configs", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestWatcherCRUD(t *testing.T) {
	st := testStore(t)
	r := testRouter(t, st)

	require.Equal(t, http.StatusCreated, do(t, r, "POST", "/configs", validConfig()).Code)

	rec := do(t, r, "POST", "/watchers", validWatcher())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, r, "GET", "/watchers/app-logs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var watcher store.Watcher
	decodeData(t, rec, &watcher)
	assert.Equal(t, "/var/log/app", watcher.WatchDir)
	assert.True(t, watcher.Enabled)

	update := validWatcher()
	update["enabled"] = false
	rec = do(t, r, "PUT", "/watchers/app-logs", update)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeData(t, rec, &watcher)
	assert.False(t, watcher.Enabled)

	rec = do(t, r, "DELETE", "/watchers/app-logs", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, "GET", "/watchers/app-logs", nil).Code)
}

func TestWatcherRequiresKnownSSHConfig(t *testing.T) {
	st := testStore(t)
	r := testRouter(t, st)

	rec := do(t, r, "POST", "/watchers", validWatcher())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ssh config not found")
}

func TestWatcherRejectsUnknownZone(t *testing.T) {
	st := testStore(t)
	r := testRouter(t, st)
	require.Equal(t, http.StatusCreated, do(t, r, "POST", "/configs", validConfig()).Code)

	body := validWatcher()
	body["javaTimeZoneId"] = "Mars/Olympus_Mons"
	rec := do(t, r, "POST", "/watchers", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateNameMismatch(t *testing.T) {
	st := testStore(t)
	r := testRouter(t, st)
	require.Equal(t, http.StatusCreated, do(t, r, "POST", "/configs", validConfig()).Code)

	body := validConfig()
	body["name"] = "other"
	rec := do(t, r, "PUT", "/configs/prod", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordListFilters(t *testing.T) {
	st := testStore(t)
	r := testRouter(t, st)

	now := time.Now().UTC()
	seed := func(watcher string, status store.ConsumptionStatus) {
		require.NoError(t, st.Records.Insert(context.Background(), &store.DiscoveryRecord{
			WatcherName: watcher, FullFilePath: "/logs/x.log", FileSize: 1,
			CTime: now, FileHash: "h", CreatedTime: now, UpdatedTime: now, Status: status,
		}))
	}
	seed("w1", store.StatusNew)
	seed("w1", store.StatusIndexed)
	seed("w2", store.StatusNew)

	var records []store.DiscoveryRecord

	rec := do(t, r, "GET", "/records?watcherName=w1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &records)
	assert.Len(t, records, 2)

	rec = do(t, r, "GET", "/records?watcherName=w1&status=NEW", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &records)
	assert.Len(t, records, 1)

	rec = do(t, r, "GET", "/records?status=NEW", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &records)
	assert.Len(t, records, 2)

	assert.Equal(t, http.StatusBadRequest, do(t, r, "GET", "/records?status=BOGUS", nil).Code)
}

func TestSearchHandler(t *testing.T) {
	st := testStore(t)

	now := time.Now().UTC()
	require.NoError(t, st.Watchers.Insert(context.Background(), &store.Watcher{
		Name: "w1", SSHConfigName: "prod", WatchDir: "/logs", RecurDepth: 1,
		Enabled: true, CreatedAt: now, UpdatedAt: now,
	}))

	indexes := index.NewManager(t.TempDir(), false)
	t.Cleanup(func() { indexes.CloseAll() })
	idx, err := indexes.Writer("w1")
	require.NoError(t, err)
	w := index.NewRecordWriter(idx)
	require.NoError(t, w.Upsert(index.Event{
		MD5ID:         "e1",
		StrTimestamp:  "2025-07-30 08:00:00.000",
		LongTimestamp: 1753862400000,
		LogPath:       "/logs/app.log",
		Content:       "2025-07-30 08:00:00.000 ERROR database connection refused",
	}))
	_, err = w.Commit()
	require.NoError(t, err)

	r := mux.NewRouter()
	r.HandleFunc("/search", NewSearchHandler(search.New(st, indexes)).Search).Methods("GET")

	rec := do(t, r, "GET", "/search?watcherName=w1&contentQuery=DATABASE", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result search.Result
	decodeData(t, rec, &result)
	assert.Equal(t, uint64(1), result.TotalHits)
	require.Len(t, result.Results, 1)
	assert.Equal(t, "/logs/app.log", result.Results[0].FilePath)

	// An oversized pageSize is clamped, not executed as requested.
	rec = do(t, r, "GET", "/search?watcherName=w1&contentQuery=database&pageSize=1000000", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeData(t, rec, &result)
	assert.Equal(t, maxPageSize, result.PageSize)
	assert.Equal(t, uint64(1), result.TotalHits)

	assert.Equal(t, http.StatusBadRequest, do(t, r, "GET", "/search?contentQuery=x", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, "GET", "/search?watcherName=w1&operator=XOR", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, "GET", "/search?watcherName=w1&page=0", nil).Code)
}

type fakeTrigger struct {
	busy bool
}

func (f *fakeTrigger) RunDiscovery(ctx context.Context) bool { return !f.busy }
func (f *fakeTrigger) RunIngestion(ctx context.Context) bool { return !f.busy }
func (f *fakeTrigger) Status() map[string]scheduler.PhaseStatus {
	return map[string]scheduler.PhaseStatus{"discovery": {}, "ingestion": {}}
}

func TestStatusAndRuns(t *testing.T) {
	st := testStore(t)

	now := time.Now().UTC()
	require.NoError(t, st.Watchers.Insert(context.Background(), &store.Watcher{
		Name: "w1", SSHConfigName: "prod", WatchDir: "/logs", RecurDepth: 1,
		Enabled: true, CreatedAt: now, UpdatedAt: now,
	}))

	trigger := &fakeTrigger{}
	h := NewStatusHandler(st, "/tmp/indexes", "1.2.3", trigger)

	r := mux.NewRouter()
	r.HandleFunc("/status", h.Status).Methods("GET")
	r.HandleFunc("/runs/discovery", h.RunDiscovery).Methods("POST")
	r.HandleFunc("/runs/ingestion", h.RunIngestion).Methods("POST")

	rec := do(t, r, "GET", "/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status map[string]interface{}
	decodeData(t, rec, &status)
	assert.Equal(t, "1.2.3", status["version"])
	assert.Equal(t, "ok", status["store"])

	assert.Equal(t, http.StatusAccepted, do(t, r, "POST", "/runs/discovery", nil).Code)
	assert.Equal(t, http.StatusAccepted, do(t, r, "POST", "/runs/ingestion", nil).Code)

	trigger.busy = true
	assert.Equal(t, http.StatusConflict, do(t, r, "POST", "/runs/discovery", nil).Code)
}
