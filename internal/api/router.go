// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package api serves the administrative HTTP surface.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/wingedpig/logharbor/internal/api/handlers"
	"github.com/wingedpig/logharbor/internal/api/middleware"
	"github.com/wingedpig/logharbor/internal/events"
	"github.com/wingedpig/logharbor/internal/search"
	"github.com/wingedpig/logharbor/internal/store"
)

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Host    string
	Port    int
	TLSCert string // Path to TLS certificate file
	TLSKey  string // Path to TLS private key file
}

// Dependencies holds all dependencies for API handlers.
type Dependencies struct {
	Store    *store.Store
	Search   *search.Engine
	EventBus events.Bus
	Trigger  handlers.RunTrigger
	IndexDir string
	Version  string
}

// NewRouter creates the API router.
func NewRouter(deps Dependencies) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS)

	api := r.PathPrefix("/api/v1").Subrouter()

	configHandler := handlers.NewConfigHandler(deps.Store)
	api.HandleFunc("/configs", configHandler.List).Methods("GET")
	api.HandleFunc("/configs", configHandler.Create).Methods("POST")
	api.HandleFunc("/configs/{name}", configHandler.Get).Methods("GET")
	api.HandleFunc("/configs/{name}", configHandler.Update).Methods("PUT")
	api.HandleFunc("/configs/{name}", configHandler.Delete).Methods("DELETE")

	watcherHandler := handlers.NewWatcherHandler(deps.Store)
	api.HandleFunc("/watchers", watcherHandler.List).Methods("GET")
	api.HandleFunc("/watchers", watcherHandler.Create).Methods("POST")
	api.HandleFunc("/watchers/{name}", watcherHandler.Get).Methods("GET")
	api.HandleFunc("/watchers/{name}", watcherHandler.Update).Methods("PUT")
	api.HandleFunc("/watchers/{name}", watcherHandler.Delete).Methods("DELETE")

	recordHandler := handlers.NewRecordHandler(deps.Store)
	api.HandleFunc("/records", recordHandler.List).Methods("GET")

	searchHandler := handlers.NewSearchHandler(deps.Search)
	api.HandleFunc("/search", searchHandler.Search).Methods("GET")

	eventHandler := handlers.NewEventHandler(deps.EventBus)
	api.HandleFunc("/events", eventHandler.History).Methods("GET")
	api.HandleFunc("/events/ws", eventHandler.WebSocket).Methods("GET")

	statusHandler := handlers.NewStatusHandler(deps.Store, deps.IndexDir, deps.Version, deps.Trigger)
	api.HandleFunc("/status", statusHandler.Status).Methods("GET")
	api.HandleFunc("/runs/discovery", statusHandler.RunDiscovery).Methods("POST")
	api.HandleFunc("/runs/ingestion", statusHandler.RunIngestion).Methods("POST")

	// Debug/profiling endpoints
	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	return r
}

// Server represents the API server.
type Server struct {
	router *mux.Router
	cfg    ServerConfig
	server *http.Server
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig, deps Dependencies) *Server {
	return &Server{
		router: NewRouter(deps),
		cfg:    cfg,
	}
}

// Router returns the underlying router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// ListenAndServe starts the server. If TLS is configured (tls_cert and
// tls_key), serves HTTPS.
func (s *Server) ListenAndServe() error {
	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	tlsEnabled, err := CheckTLSConfig(s.cfg.TLSCert, s.cfg.TLSKey)
	if err != nil {
		return fmt.Errorf("TLS configuration error: %w", err)
	}

	if tlsEnabled {
		certPath := expandPath(s.cfg.TLSCert)
		keyPath := expandPath(s.cfg.TLSKey)
		log.Printf("API server listening on https://%s (TLS enabled)", addr)
		return s.server.ListenAndServeTLS(certPath, keyPath)
	}

	log.Printf("API server listening on http://%s", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	log.Println("Shutting down API server...")

	shutdownCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	return s.server.Shutdown(shutdownCtx)
}
