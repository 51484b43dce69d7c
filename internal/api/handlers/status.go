// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"net/http"

	"github.com/wingedpig/logharbor/internal/scheduler"
	"github.com/wingedpig/logharbor/internal/store"
)

// RunTrigger starts a phase outside its schedule and reports run outcomes.
// Run methods return false when a run of that phase is already in flight.
type RunTrigger interface {
	RunDiscovery(ctx context.Context) bool
	RunIngestion(ctx context.Context) bool
	Status() map[string]scheduler.PhaseStatus
}

// StatusHandler reports subsystem status and triggers manual runs.
type StatusHandler struct {
	store    *store.Store
	indexDir string
	version  string
	trigger  RunTrigger
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(st *store.Store, indexDir, version string, trigger RunTrigger) *StatusHandler {
	return &StatusHandler{store: st, indexDir: indexDir, version: version, trigger: trigger}
}

// Status returns per-subsystem health and counters.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	storeStatus := "ok"
	if err := h.store.Ping(ctx); err != nil {
		storeStatus = err.Error()
	}

	watchers, err := h.store.Watchers.FindAll(ctx)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	enabled := 0
	for _, watcher := range watchers {
		if watcher.Enabled {
			enabled++
		}
	}

	records := map[string]int{}
	for _, status := range []store.ConsumptionStatus{
		store.StatusNew, store.StatusIndexed, store.StatusDuplicated, store.StatusError,
	} {
		recs, err := h.store.RecordsByStatus(ctx, status)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
			return
		}
		records[string(status)] = len(recs)
	}

	body := map[string]interface{}{
		"version": h.version,
		"store":   storeStatus,
		"index":   map[string]string{"dir": h.indexDir},
		"watchers": map[string]int{
			"total":   len(watchers),
			"enabled": enabled,
		},
		"records": records,
	}
	if h.trigger != nil {
		body["runs"] = h.trigger.Status()
	}

	WriteJSON(w, http.StatusOK, body)
}

// RunDiscovery triggers a discovery pass now.
func (h *StatusHandler) RunDiscovery(w http.ResponseWriter, r *http.Request) {
	if h.trigger == nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, "scheduler not running")
		return
	}
	if !h.trigger.RunDiscovery(context.Background()) {
		WriteError(w, http.StatusConflict, ErrConflict, "discovery already running")
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{"started": "discovery"})
}

// RunIngestion triggers an ingestion pass now.
func (h *StatusHandler) RunIngestion(w http.ResponseWriter, r *http.Request) {
	if h.trigger == nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, "scheduler not running")
		return
	}
	if !h.trigger.RunIngestion(context.Background()) {
		WriteError(w, http.StatusConflict, ErrConflict, "ingestion already running")
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{"started": "ingestion"})
}
