// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/roosthq/roost/internal/worker"
)

// WorkerHandler handles worker lifecycle API requests.
type WorkerHandler struct {
	sup *worker.Supervisor
}

// NewWorkerHandler creates a new worker handler.
func NewWorkerHandler(sup *worker.Supervisor) *WorkerHandler {
	return &WorkerHandler{sup: sup}
}

type startWorkerRequest struct {
	WorkingDir string `json:"working_dir"`
}

// Start spawns (or reuses) the worker for a working directory.
func (h *WorkerHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startWorkerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid request body")
		return
	}

	result, err := h.sup.Start(r.Context(), req.WorkingDir)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, worker.ErrExecutableMissing) {
			status = http.StatusServiceUnavailable
		}
		WriteError(w, status, ErrWorkerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// List returns handles for all known workers.
func (h *WorkerHandler) List(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.sup.List())
}

// Status returns the handle for one working directory's worker.
func (h *WorkerHandler) Status(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("dir")
	handle, err := h.sup.Status(dir)
	if err != nil {
		WriteError(w, http.StatusNotFound, ErrNotFound, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, handle)
}

// Stop terminates the worker for a working directory. Termination is
// fire-and-forget; the response does not wait for process exit.
func (h *WorkerHandler) Stop(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("dir")
	if err := h.sup.Stop(dir); err != nil {
		WriteError(w, http.StatusNotFound, ErrNotFound, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "stopping"})
}

// Logs returns recent captured output for a worker.
func (h *WorkerHandler) Logs(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("dir")
	n := 100
	if s := r.URL.Query().Get("lines"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			n = v
		}
	}

	lines, err := h.sup.Logs(dir, n)
	if err != nil {
		WriteError(w, http.StatusNotFound, ErrNotFound, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"lines": lines})
}
