// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/roosthq/roost/internal/session"
)

// SessionHandler handles saved-session API requests.
type SessionHandler struct {
	store *session.Store
	index *session.Index
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(store *session.Store, index *session.Index) *SessionHandler {
	return &SessionHandler{store: store, index: index}
}

// List returns saved sessions. With ?dir= it is scoped to sessions
// recorded for that working directory; without it, the most recent
// sessions across all directories.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("dir")
	if dir != "" {
		WriteJSON(w, http.StatusOK, h.index.List(dir))
		return
	}
	WriteJSON(w, http.StatusOK, h.index.ListRecent())
}

// Combined returns the merged directory-scoped plus global-recent view.
func (h *SessionHandler) Combined(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.index.Combined(r.URL.Query().Get("dir")))
}

// Get returns one decoded session, messages included, for resume.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.store.Load(mux.Vars(r)["name"])
	if err != nil {
		WriteError(w, http.StatusNotFound, ErrNotFound, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, sess)
}

// Clear wipes the sessions directory.
func (h *SessionHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.store.ClearAll(); err != nil {
		WriteError(w, http.StatusInternalServerError, ErrSessionError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
