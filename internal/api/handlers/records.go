// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"

	"github.com/wingedpig/logharbor/internal/store"
)

// RecordHandler handles discovery record API requests.
type RecordHandler struct {
	store *store.Store
}

// NewRecordHandler creates a new record handler.
func NewRecordHandler(st *store.Store) *RecordHandler {
	return &RecordHandler{store: st}
}

// List returns discovery records, filtered by watcherName and/or status.
func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	where := map[string]any{}

	if name := query.Get("watcherName"); name != "" {
		where["sshLogWatcherName"] = name
	}
	if status := query.Get("status"); status != "" {
		switch store.ConsumptionStatus(status) {
		case store.StatusNew, store.StatusIndexed, store.StatusDuplicated, store.StatusError:
			where["consumptionStatus"] = status
		default:
			WriteError(w, http.StatusBadRequest, ErrBadRequest, "unknown status: "+status)
			return
		}
	}

	records, err := h.store.Records.FindBy(r.Context(), where)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, records)
}
