// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/roosthq/roost/internal/session"
	"github.com/roosthq/roost/internal/stream"
	"github.com/roosthq/roost/internal/worker"
)

// ConversationHandler handles conversation API requests.
type ConversationHandler struct {
	convs *stream.Conversations
	store *session.Store
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(convs *stream.Conversations, store *session.Store) *ConversationHandler {
	return &ConversationHandler{convs: convs, store: store}
}

type openConversationRequest struct {
	WorkingDir string `json:"working_dir"`
	// Session optionally names a saved session to resume from.
	Session string `json:"session,omitempty"`
}

type turnRequest struct {
	Content string `json:"content"`
}

// Open creates a conversation for a working directory, starting its
// worker. With a session name it seeds the conversation from the saved
// message history.
func (h *ConversationHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req openConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid request body")
		return
	}

	if req.Session != "" {
		sess, err := h.store.Load(req.Session)
		if err != nil {
			WriteError(w, http.StatusNotFound, ErrNotFound, err.Error())
			return
		}
		dir := req.WorkingDir
		if dir == "" {
			dir = sess.Directory
		}
		conv, err := h.convs.Resume(r.Context(), dir, sess.Messages)
		if err != nil {
			h.writeOpenError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, conversationView(conv))
		return
	}

	conv, err := h.convs.Open(r.Context(), req.WorkingDir)
	if err != nil {
		h.writeOpenError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, conversationView(conv))
}

func (h *ConversationHandler) writeOpenError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, worker.ErrExecutableMissing) {
		status = http.StatusServiceUnavailable
	}
	WriteError(w, status, ErrWorkerError, err.Error())
}

// List returns all open conversations.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	convs := h.convs.List()
	out := make([]map[string]any, 0, len(convs))
	for _, conv := range convs {
		out = append(out, conversationView(conv))
	}
	WriteJSON(w, http.StatusOK, out)
}

// Get returns the conversation's current message list.
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	conv, err := h.convs.Get(mux.Vars(r)["id"])
	if err != nil {
		WriteError(w, http.StatusNotFound, ErrNotFound, err.Error())
		return
	}

	view := conversationView(conv)
	view["messages"] = conv.Messages()
	if lastErr := conv.LastError(); lastErr != "" {
		view["error"] = lastErr
	}
	WriteJSON(w, http.StatusOK, view)
}

// Turn runs one conversation turn. The request blocks until the worker
// stream finishes; the reduced message list is fetched via Get.
func (h *ConversationHandler) Turn(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "content is required")
		return
	}

	err := h.convs.Turn(r.Context(), id, req.Content)
	switch {
	case err == nil:
	case errors.Is(err, stream.ErrConversationNotFound):
		WriteError(w, http.StatusNotFound, ErrNotFound, err.Error())
		return
	case errors.Is(err, stream.ErrTurnInFlight):
		WriteError(w, http.StatusConflict, ErrConflict, err.Error())
		return
	default:
		WriteError(w, http.StatusBadGateway, ErrTurnError, err.Error())
		return
	}

	conv, err := h.convs.Get(id)
	if err != nil {
		WriteError(w, http.StatusNotFound, ErrNotFound, err.Error())
		return
	}
	view := conversationView(conv)
	view["messages"] = conv.Messages()
	WriteJSON(w, http.StatusOK, view)
}

// Stop cancels the in-flight turn, if any. Output streamed so far is
// kept.
func (h *ConversationHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.convs.StopTurn(mux.Vars(r)["id"]); err != nil {
		WriteError(w, http.StatusNotFound, ErrNotFound, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "stopping"})
}

// Save persists the conversation to the sessions directory.
func (h *ConversationHandler) Save(w http.ResponseWriter, r *http.Request) {
	conv, err := h.convs.Get(mux.Vars(r)["id"])
	if err != nil {
		WriteError(w, http.StatusNotFound, ErrNotFound, err.Error())
		return
	}

	name, path, err := h.store.Save(conv.Messages(), conv.WorkingDir)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrSessionError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"name": name, "path": path})
}

// Close removes the conversation from the registry.
func (h *ConversationHandler) Close(w http.ResponseWriter, r *http.Request) {
	if err := h.convs.Close(mux.Vars(r)["id"]); err != nil {
		WriteError(w, http.StatusNotFound, ErrNotFound, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

func conversationView(conv *stream.Conversation) map[string]any {
	return map[string]any{
		"id":          conv.ID,
		"working_dir": conv.WorkingDir,
		"port":        conv.Port,
		"phase":       conv.Phase(),
	}
}
