// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roosthq/roost/internal/config"
	"github.com/roosthq/roost/internal/events"
	"github.com/roosthq/roost/internal/netport"
	"github.com/roosthq/roost/internal/session"
	"github.com/roosthq/roost/internal/stream"
	"github.com/roosthq/roost/internal/worker"
)

func testRouterDeps(t *testing.T) Dependencies {
	t.Helper()
	bus := events.NewMemoryBus(events.MemoryBusConfig{})
	t.Cleanup(func() { bus.Close() })

	sup := worker.NewSupervisor(config.WorkerConfig{Disabled: true, DefaultPort: 3284}, bus, netport.New())
	codec := session.NewCodec(bus)
	dir := t.TempDir()

	return Dependencies{
		Supervisor:    sup,
		Conversations: stream.NewConversations(sup, stream.NewClient(), bus),
		SessionStore:  session.NewStore(dir, codec, bus),
		SessionIndex:  session.NewIndex(config.SessionsConfig{Dir: dir, RetentionDays: 10, DirListLimit: 4, RecentLimit: 20, CombinedLimit: 5}, codec),
		EventBus:      bus,
	}
}

func TestRouter_Routes(t *testing.T) {
	router := NewRouter(testRouterDeps(t))

	tests := []struct {
		method string
		path   string
		status int
	}{
		{"GET", "/api/v1/workers", http.StatusOK},
		{"GET", "/api/v1/conversations", http.StatusOK},
		{"GET", "/api/v1/sessions", http.StatusOK},
		{"GET", "/api/v1/sessions/combined", http.StatusOK},
		{"GET", "/api/v1/events", http.StatusOK},
		{"GET", "/api/v1/conversations/unknown", http.StatusNotFound},
		{"GET", "/api/v1/nope", http.StatusNotFound},
		{"POST", "/api/v1/sessions", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, tt.status, rec.Code, "%s %s", tt.method, tt.path)
	}
}

func TestRouter_CORSApplied(t *testing.T) {
	router := NewRouter(testRouterDeps(t))

	req := httptest.NewRequest("GET", "/api/v1/workers", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
