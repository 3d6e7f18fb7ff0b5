// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package api wires the HTTP surface of the Roost daemon.
package api

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/roosthq/roost/internal/api/handlers"
	"github.com/roosthq/roost/internal/api/middleware"
	"github.com/roosthq/roost/internal/events"
	"github.com/roosthq/roost/internal/session"
	"github.com/roosthq/roost/internal/stream"
	"github.com/roosthq/roost/internal/worker"
)

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Host string
	Port int
}

// Dependencies holds all dependencies for API handlers.
type Dependencies struct {
	Supervisor    *worker.Supervisor
	Conversations *stream.Conversations
	SessionStore  *session.Store
	SessionIndex  *session.Index
	EventBus      events.Bus
}

// NewRouter creates the API router.
func NewRouter(deps Dependencies) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS)

	api := r.PathPrefix("/api/v1").Subrouter()

	workerHandler := handlers.NewWorkerHandler(deps.Supervisor)
	api.HandleFunc("/workers", workerHandler.Start).Methods("POST")
	api.HandleFunc("/workers", workerHandler.List).Methods("GET")
	api.HandleFunc("/workers", workerHandler.Stop).Methods("DELETE")
	api.HandleFunc("/workers/status", workerHandler.Status).Methods("GET")
	api.HandleFunc("/workers/logs", workerHandler.Logs).Methods("GET")

	convHandler := handlers.NewConversationHandler(deps.Conversations, deps.SessionStore)
	api.HandleFunc("/conversations", convHandler.Open).Methods("POST")
	api.HandleFunc("/conversations", convHandler.List).Methods("GET")
	api.HandleFunc("/conversations/{id}", convHandler.Get).Methods("GET")
	api.HandleFunc("/conversations/{id}", convHandler.Close).Methods("DELETE")
	api.HandleFunc("/conversations/{id}/turns", convHandler.Turn).Methods("POST")
	api.HandleFunc("/conversations/{id}/stop", convHandler.Stop).Methods("POST")
	api.HandleFunc("/conversations/{id}/save", convHandler.Save).Methods("POST")

	sessionHandler := handlers.NewSessionHandler(deps.SessionStore, deps.SessionIndex)
	api.HandleFunc("/sessions", sessionHandler.List).Methods("GET")
	api.HandleFunc("/sessions", sessionHandler.Clear).Methods("DELETE")
	api.HandleFunc("/sessions/combined", sessionHandler.Combined).Methods("GET")
	api.HandleFunc("/sessions/{name}", sessionHandler.Get).Methods("GET")

	eventHandler := handlers.NewEventHandler(deps.EventBus)
	api.HandleFunc("/events", eventHandler.History).Methods("GET")
	api.HandleFunc("/events/ws", eventHandler.WebSocket).Methods("GET")

	return r
}

// Server is the daemon's HTTP server.
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

// ListenAndServe starts the server.
func (s *Server) ListenAndServe() error {
	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
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
