// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"
	"strconv"

	"github.com/wingedpig/logharbor/internal/search"
)

// maxPageSize bounds how many documents one request can collect; deep pages
// cost page*pageSize doc-ids in the index searcher.
const maxPageSize = 500

// SearchHandler handles log search API requests.
type SearchHandler struct {
	engine *search.Engine
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(engine *search.Engine) *SearchHandler {
	return &SearchHandler{engine: engine}
}

// Search runs one query against a watcher's index.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	q := search.Query{
		WatcherName: query.Get("watcherName"),
		ContentQ:    query.Get("contentQuery"),
		TimestampQ:  query.Get("timestampQuery"),
		LogPathQ:    query.Get("logPathQuery"),
		FilePath:    query.Get("filePath"),
		StartDate:   query.Get("startDate"),
		EndDate:     query.Get("endDate"),
	}

	switch op := query.Get("operator"); op {
	case "", string(search.OpAnd):
		q.Operator = search.OpAnd
	case string(search.OpOr):
		q.Operator = search.OpOr
	default:
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "operator must be AND or OR")
		return
	}

	if q.WatcherName == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "watcherName is required")
		return
	}

	if s := query.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			WriteError(w, http.StatusBadRequest, ErrBadRequest, "page must be a positive integer")
			return
		}
		q.Page = n
	}
	if s := query.Get("pageSize"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			WriteError(w, http.StatusBadRequest, ErrBadRequest, "pageSize must be a positive integer")
			return
		}
		if n > maxPageSize {
			n = maxPageSize
		}
		q.PageSize = n
	}

	result, err := h.engine.Search(r.Context(), q)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrSearchError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, result)
}
