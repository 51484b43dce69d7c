// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/wingedpig/logharbor/internal/store"
)

// WatcherHandler handles watcher API requests.
type WatcherHandler struct {
	store *store.Store
}

// NewWatcherHandler creates a new watcher handler.
func NewWatcherHandler(st *store.Store) *WatcherHandler {
	return &WatcherHandler{store: st}
}

// List returns all watchers.
func (h *WatcherHandler) List(w http.ResponseWriter, r *http.Request) {
	watchers, err := h.store.Watchers.FindAll(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, watchers)
}

// Get returns a single watcher by name.
func (h *WatcherHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	watcher, err := h.store.Watchers.FindByKey(r.Context(), name)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	if watcher == nil {
		WriteError(w, http.StatusNotFound, ErrNotFound, "watcher not found")
		return
	}
	WriteJSON(w, http.StatusOK, watcher)
}

// Create stores a new watcher. The referenced SSH config must exist.
func (h *WatcherHandler) Create(w http.ResponseWriter, r *http.Request) {
	var watcher store.Watcher
	if err := json.NewDecoder(r.Body).Decode(&watcher); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := h.validateWatcher(r, &watcher); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, err.Error())
		return
	}

	now := time.Now().UTC()
	watcher.CreatedAt = now
	watcher.UpdatedAt = now

	if err := h.store.Watchers.Insert(r.Context(), &watcher); err != nil {
		if errors.Is(err, store.ErrConflict) {
			WriteError(w, http.StatusConflict, ErrConflict, "watcher already exists")
			return
		}
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusCreated, watcher)
}

// Update replaces a watcher.
func (h *WatcherHandler) Update(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	existing, err := h.store.Watchers.FindByKey(r.Context(), name)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	if existing == nil {
		WriteError(w, http.StatusNotFound, ErrNotFound, "watcher not found")
		return
	}

	var watcher store.Watcher
	if err := json.NewDecoder(r.Body).Decode(&watcher); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if watcher.Name != "" && watcher.Name != name {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "name in body does not match URL")
		return
	}
	watcher.Name = name
	if err := h.validateWatcher(r, &watcher); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, err.Error())
		return
	}

	watcher.CreatedAt = existing.CreatedAt
	watcher.UpdatedAt = time.Now().UTC()

	if err := h.store.Watchers.Update(r.Context(), &watcher); err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, watcher)
}

// Delete removes a watcher. Its discovery records and index are left in
// place; records keep their history and the index stays searchable.
func (h *WatcherHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	watcher, err := h.store.Watchers.FindByKey(r.Context(), name)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	if watcher == nil {
		WriteError(w, http.StatusNotFound, ErrNotFound, "watcher not found")
		return
	}

	if err := h.store.Watchers.Delete(r.Context(), watcher); err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"deleted": name})
}

func (h *WatcherHandler) validateWatcher(r *http.Request, watcher *store.Watcher) error {
	switch {
	case watcher.Name == "":
		return errors.New("name is required")
	case watcher.SSHConfigName == "":
		return errors.New("sshConfigName is required")
	case watcher.WatchDir == "":
		return errors.New("watchDir is required")
	case watcher.RecurDepth < 0:
		return errors.New("recurDepth must not be negative")
	}

	if watcher.TimeZoneID != "" {
		if _, err := time.LoadLocation(watcher.TimeZoneID); err != nil {
			return errors.New("unknown time zone: " + watcher.TimeZoneID)
		}
	}

	cfg, err := h.store.SSHConfigs.FindByKey(r.Context(), watcher.SSHConfigName)
	if err != nil {
		return err
	}
	if cfg == nil {
		return errors.New("ssh config not found: " + watcher.SSHConfigName)
	}
	return nil
}
