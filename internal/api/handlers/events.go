// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wingedpig/logharbor/internal/events"
)

const (
	wsWriteBuffer = 1024
	wsPongWait    = 60 * time.Second
	wsPingPeriod  = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsWriteBuffer,
	WriteBufferSize: wsWriteBuffer,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// EventHandler serves the event history and the live event stream.
type EventHandler struct {
	bus events.Bus
}

// NewEventHandler creates a new event handler.
func NewEventHandler(bus events.Bus) *EventHandler {
	return &EventHandler{bus: bus}
}

// historyFilter builds an events.Filter from the request query string.
// Malformed time or limit values are ignored rather than rejected; the
// history endpoint is a diagnostic surface.
func historyFilter(r *http.Request) events.Filter {
	q := r.URL.Query()

	f := events.Filter{
		Types:   q["type"],
		Watcher: q.Get("watcher"),
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		f.Limit = n
	}
	if t, err := time.Parse(time.RFC3339, q.Get("since")); err == nil {
		f.Since = t
	}
	if t, err := time.Parse(time.RFC3339, q.Get("until")); err == nil {
		f.Until = t
	}
	return f
}

// History returns retained events, newest last, optionally filtered by type,
// watcher, and time window.
func (h *EventHandler) History(w http.ResponseWriter, r *http.Request) {
	eventList, err := h.bus.History(historyFilter(r))
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, eventList)
}

// WebSocket streams events matching the pattern query parameter in real time.
// A slow consumer loses events rather than stalling the bus.
func (h *EventHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		pattern = "*"
	}

	eventCh := make(chan events.Event, 100)
	done := make(chan struct{})

	subID, err := h.bus.SubscribeAsync(pattern, func(_ context.Context, event events.Event) error {
		select {
		case eventCh <- event:
		case <-done:
		default:
		}
		return nil
	}, 100)
	if err != nil {
		conn.WriteJSON(map[string]string{"error": err.Error()})
		return
	}
	defer h.bus.Unsubscribe(subID)

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	// Drain the read side so close frames and pongs are processed.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case event := <-eventCh:
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
