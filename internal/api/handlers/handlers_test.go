// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roosthq/roost/internal/config"
	"github.com/roosthq/roost/internal/events"
	"github.com/roosthq/roost/internal/message"
	"github.com/roosthq/roost/internal/netport"
	"github.com/roosthq/roost/internal/session"
	"github.com/roosthq/roost/internal/stream"
	"github.com/roosthq/roost/internal/worker"
)

// fakeWorkerPort serves the given stream frames and returns the port
// it listens on.
func fakeWorkerPort(t *testing.T, frames []string) int {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		for _, frame := range frames {
			fmt.Fprintln(w, frame)
		}
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	var port int
	fmt.Sscanf(u.Port(), "%d", &port)
	return port
}

func newTestConversations(t *testing.T, frames []string) *stream.Conversations {
	t.Helper()
	port := fakeWorkerPort(t, frames)
	cfg := config.WorkerConfig{Disabled: true, DefaultPort: port}
	sup := worker.NewSupervisor(cfg, nil, netport.New())
	return stream.NewConversations(sup, stream.NewClient(), nil)
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok, "expected object data, got %T", resp.Data)
	return data
}

func TestWorkerHandler_StartAndStatus(t *testing.T) {
	cfg := config.WorkerConfig{Disabled: true, DefaultPort: 3284}
	sup := worker.NewSupervisor(cfg, nil, netport.New())
	h := NewWorkerHandler(sup)

	dir := t.TempDir()
	body, _ := json.Marshal(map[string]string{"working_dir": dir})
	req := httptest.NewRequest("POST", "/api/v1/workers", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Start(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, float64(3284), data["port"])
	assert.Equal(t, dir, data["working_dir"])

	// Pass-through workers are not tracked, so status reports not found.
	req = httptest.NewRequest("GET", "/api/v1/workers/status?dir="+url.QueryEscape(dir), nil)
	rec = httptest.NewRecorder()
	h.Status(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWorkerHandler_StartBadBody(t *testing.T) {
	h := NewWorkerHandler(worker.NewSupervisor(config.WorkerConfig{}, nil, netport.New()))

	req := httptest.NewRequest("POST", "/api/v1/workers", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.Start(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), ErrBadRequest)
}

func TestWorkerHandler_StatusUnknownDir(t *testing.T) {
	h := NewWorkerHandler(worker.NewSupervisor(config.WorkerConfig{}, nil, netport.New()))

	req := httptest.NewRequest("GET", "/api/v1/workers/status?dir=/nowhere", nil)
	rec := httptest.NewRecorder()
	h.Status(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConversationHandler_OpenTurnGet(t *testing.T) {
	convs := newTestConversations(t, []string{
		`0:"hello from the worker"`,
		`d:{"finishReason":"stop","usage":{"promptTokens":1,"completionTokens":2}}`,
	})
	store := session.NewStore(t.TempDir(), session.NewCodec(nil), nil)
	h := NewConversationHandler(convs, store)

	// Open
	body, _ := json.Marshal(map[string]string{"working_dir": t.TempDir()})
	req := httptest.NewRequest("POST", "/api/v1/conversations", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Open(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	id := decodeData(t, rec)["id"].(string)
	require.NotEmpty(t, id)

	// Turn
	body, _ = json.Marshal(map[string]string{"content": "hi"})
	req = httptest.NewRequest("POST", "/api/v1/conversations/"+id+"/turns", bytes.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"id": id})
	rec = httptest.NewRecorder()
	h.Turn(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	msgs := decodeData(t, rec)["messages"].([]any)
	require.Len(t, msgs, 2)
	last := msgs[1].(map[string]any)
	assert.Equal(t, "assistant", last["role"])
	assert.Equal(t, "hello from the worker", last["content"])

	// Get
	req = httptest.NewRequest("GET", "/api/v1/conversations/"+id, nil)
	req = mux.SetURLVars(req, map[string]string{"id": id})
	rec = httptest.NewRecorder()
	h.Get(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeData(t, rec)["messages"].([]any), 2)
}

func TestConversationHandler_TurnMissingContent(t *testing.T) {
	convs := newTestConversations(t, nil)
	h := NewConversationHandler(convs, session.NewStore(t.TempDir(), session.NewCodec(nil), nil))

	conv, err := convs.Open(context.Background(), t.TempDir())
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/v1/conversations/"+conv.ID+"/turns", strings.NewReader(`{}`))
	req = mux.SetURLVars(req, map[string]string{"id": conv.ID})
	rec := httptest.NewRecorder()
	h.Turn(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConversationHandler_TurnUnknownConversation(t *testing.T) {
	convs := newTestConversations(t, nil)
	h := NewConversationHandler(convs, session.NewStore(t.TempDir(), session.NewCodec(nil), nil))

	req := httptest.NewRequest("POST", "/api/v1/conversations/nope/turns", strings.NewReader(`{"content":"x"}`))
	req = mux.SetURLVars(req, map[string]string{"id": "nope"})
	rec := httptest.NewRecorder()
	h.Turn(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConversationHandler_SaveAndResume(t *testing.T) {
	convs := newTestConversations(t, []string{`0:"saved reply"`, `d:{"finishReason":"stop"}`})
	store := session.NewStore(t.TempDir(), session.NewCodec(nil), nil)
	h := NewConversationHandler(convs, store)

	workDir := t.TempDir()
	conv, err := convs.Open(context.Background(), workDir)
	require.NoError(t, err)
	require.NoError(t, convs.Turn(context.Background(), conv.ID, "please save this conversation"))

	// Save
	req := httptest.NewRequest("POST", "/api/v1/conversations/"+conv.ID+"/save", nil)
	req = mux.SetURLVars(req, map[string]string{"id": conv.ID})
	rec := httptest.NewRecorder()
	h.Save(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	name := data["name"].(string)
	assert.Equal(t, "please save this conversation", name)

	// Resume into a fresh conversation
	body, _ := json.Marshal(map[string]string{"session": name})
	req = httptest.NewRequest("POST", "/api/v1/conversations", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	h.Open(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	resumedID := decodeData(t, rec)["id"].(string)
	resumed, err := convs.Get(resumedID)
	require.NoError(t, err)
	assert.Equal(t, workDir, resumed.WorkingDir)
	assert.Len(t, resumed.Messages(), 2)
}

func TestConversationHandler_ResumeUnknownSession(t *testing.T) {
	convs := newTestConversations(t, nil)
	h := NewConversationHandler(convs, session.NewStore(t.TempDir(), session.NewCodec(nil), nil))

	req := httptest.NewRequest("POST", "/api/v1/conversations", strings.NewReader(`{"session":"never saved"}`))
	rec := httptest.NewRecorder()
	h.Open(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionHandler_ListAndClear(t *testing.T) {
	dir := t.TempDir()
	codec := session.NewCodec(nil)
	store := session.NewStore(dir, codec, nil)
	index := session.NewIndex(config.SessionsConfig{
		Dir: dir, RetentionDays: 10, DirListLimit: 4, RecentLimit: 20, CombinedLimit: 5,
	}, codec)
	h := NewSessionHandler(store, index)

	_, _, err := store.Save([]message.Message{message.NewUser("first session here")}, "/work/a")
	require.NoError(t, err)
	_, _, err = store.Save([]message.Message{message.NewUser("second session here")}, "/work/b")
	require.NoError(t, err)

	// Global list
	req := httptest.NewRequest("GET", "/api/v1/sessions", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data.([]any), 2)

	// Directory-scoped list
	req = httptest.NewRequest("GET", "/api/v1/sessions?dir="+url.QueryEscape("/work/a"), nil)
	rec = httptest.NewRecorder()
	h.List(rec, req)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data.([]any), 1)

	// Clear
	req = httptest.NewRequest("DELETE", "/api/v1/sessions", nil)
	rec = httptest.NewRecorder()
	h.Clear(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest("GET", "/api/v1/sessions", nil)
	rec = httptest.NewRecorder()
	h.List(rec, req)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Data)
}

func TestSessionHandler_GetMissing(t *testing.T) {
	dir := t.TempDir()
	codec := session.NewCodec(nil)
	h := NewSessionHandler(session.NewStore(dir, codec, nil), session.NewIndex(config.SessionsConfig{Dir: dir, RetentionDays: 10}, codec))

	req := httptest.NewRequest("GET", "/api/v1/sessions/ghost", nil)
	req = mux.SetURLVars(req, map[string]string{"name": "ghost"})
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEventHandler_History(t *testing.T) {
	bus := events.NewMemoryBus(events.MemoryBusConfig{})
	defer bus.Close()
	h := NewEventHandler(bus)

	require.NoError(t, bus.Publish(context.Background(), events.Event{Type: events.EventWorkerStarted}))
	require.NoError(t, bus.Publish(context.Background(), events.Event{Type: events.EventTurnStarted}))

	req := httptest.NewRequest("GET", "/api/v1/events?type=worker.*", nil)
	rec := httptest.NewRecorder()
	h.History(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	list := resp.Data.([]any)
	require.Len(t, list, 1)
	assert.Equal(t, events.EventWorkerStarted, list[0].(map[string]any)["type"])
}
