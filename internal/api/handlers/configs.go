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

// ConfigHandler handles SSH config API requests.
type ConfigHandler struct {
	store *store.Store
}

// NewConfigHandler creates a new SSH config handler.
func NewConfigHandler(st *store.Store) *ConfigHandler {
	return &ConfigHandler{store: st}
}

// List returns all SSH configs.
func (h *ConfigHandler) List(w http.ResponseWriter, r *http.Request) {
	configs, err := h.store.SSHConfigs.FindAll(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, configs)
}

// Get returns a single SSH config by name.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	cfg, err := h.store.SSHConfigs.FindByKey(r.Context(), name)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	if cfg == nil {
		WriteError(w, http.StatusNotFound, ErrNotFound, "ssh config not found")
		return
	}
	WriteJSON(w, http.StatusOK, cfg)
}

// Create stores a new SSH config.
func (h *ConfigHandler) Create(w http.ResponseWriter, r *http.Request) {
	var cfg store.SSHConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := validateSSHConfig(&cfg); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, err.Error())
		return
	}

	now := time.Now().UTC()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now

	if err := h.store.SSHConfigs.Insert(r.Context(), &cfg); err != nil {
		if errors.Is(err, store.ErrConflict) {
			WriteError(w, http.StatusConflict, ErrConflict, "ssh config already exists")
			return
		}
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusCreated, cfg)
}

// Update replaces an SSH config. The name comes from the URL; a differing
// name in the body is rejected.
func (h *ConfigHandler) Update(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	existing, err := h.store.SSHConfigs.FindByKey(r.Context(), name)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	if existing == nil {
		WriteError(w, http.StatusNotFound, ErrNotFound, "ssh config not found")
		return
	}

	var cfg store.SSHConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if cfg.Name != "" && cfg.Name != name {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "name in body does not match URL")
		return
	}
	cfg.Name = name
	if err := validateSSHConfig(&cfg); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, err.Error())
		return
	}

	cfg.CreatedAt = existing.CreatedAt
	cfg.UpdatedAt = time.Now().UTC()

	if err := h.store.SSHConfigs.Update(r.Context(), &cfg); err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, cfg)
}

// Delete removes an SSH config.
func (h *ConfigHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	cfg, err := h.store.SSHConfigs.FindByKey(r.Context(), name)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	if cfg == nil {
		WriteError(w, http.StatusNotFound, ErrNotFound, "ssh config not found")
		return
	}

	if err := h.store.SSHConfigs.Delete(r.Context(), cfg); err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"deleted": name})
}

func validateSSHConfig(cfg *store.SSHConfig) error {
	switch {
	case cfg.Name == "":
		return errors.New("name is required")
	case cfg.ServerHost == "":
		return errors.New("serverHost is required")
	case cfg.Username == "":
		return errors.New("username is required")
	case cfg.Port < 0 || cfg.Port > 65535:
		return errors.New("port must be 0-65535")
	}
	return nil
}
