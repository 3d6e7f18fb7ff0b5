// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// WorkerClient manages backend worker processes.
//
// Access this client through [Client.Workers]:
//
//	res, err := client.Workers.Start(ctx, "/work/project")
type WorkerClient struct {
	c *Client
}

// Start ensures a worker is running for the working directory and
// returns its connection parameters. Starting is idempotent per
// directory.
func (w *WorkerClient) Start(ctx context.Context, workingDir string) (*StartResult, error) {
	data, err := w.c.postJSON(ctx, "/api/v1/workers", map[string]string{"working_dir": workingDir})
	if err != nil {
		return nil, err
	}

	var result StartResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse start result: %w", err)
	}
	return &result, nil
}

// List returns all tracked workers.
func (w *WorkerClient) List(ctx context.Context) ([]Worker, error) {
	data, err := w.c.get(ctx, "/api/v1/workers")
	if err != nil {
		return nil, err
	}

	var workers []Worker
	if err := json.Unmarshal(data, &workers); err != nil {
		return nil, fmt.Errorf("failed to parse workers: %w", err)
	}
	return workers, nil
}

// Status returns the worker handle for one working directory.
func (w *WorkerClient) Status(ctx context.Context, workingDir string) (*Worker, error) {
	data, err := w.c.get(ctx, "/api/v1/workers/status?dir="+url.QueryEscape(workingDir))
	if err != nil {
		return nil, err
	}

	var worker Worker
	if err := json.Unmarshal(data, &worker); err != nil {
		return nil, fmt.Errorf("failed to parse worker: %w", err)
	}
	return &worker, nil
}

// Stop requests termination of the worker for a working directory.
// Termination is fire-and-forget; the call returns before the process
// exits.
func (w *WorkerClient) Stop(ctx context.Context, workingDir string) error {
	_, err := w.c.delete(ctx, "/api/v1/workers?dir="+url.QueryEscape(workingDir))
	return err
}

// Logs returns the most recent captured output lines for a worker.
func (w *WorkerClient) Logs(ctx context.Context, workingDir string, lines int) ([]string, error) {
	path := fmt.Sprintf("/api/v1/workers/logs?dir=%s&lines=%d", url.QueryEscape(workingDir), lines)
	data, err := w.c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var result struct {
		Lines []string `json:"lines"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse logs: %w", err)
	}
	return result.Lines, nil
}
