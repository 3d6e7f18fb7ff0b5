// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import "time"

// Worker describes a supervised backend worker process.
type Worker struct {
	// Key is the working directory the worker serves.
	Key string `json:"key"`

	// Port the worker's HTTP endpoint listens on.
	Port int `json:"port"`

	// WorkingDir is the worker's process working directory.
	WorkingDir string `json:"working_dir"`

	// PID of the running process. Zero before spawn completes.
	PID int `json:"pid"`

	// State is "starting", "running", or "exited".
	State string `json:"state"`

	// ExitCode from the last exit. Only meaningful when State is "exited".
	ExitCode int `json:"exit_code"`

	// StartedAt is when the process was spawned.
	StartedAt time.Time `json:"started_at"`

	// StoppedAt is when the process exited, if it has.
	StoppedAt time.Time `json:"stopped_at,omitempty"`
}

// StartResult is returned from starting a worker.
type StartResult struct {
	Port       int    `json:"port"`
	WorkingDir string `json:"working_dir"`
}

// Message is one turn of a conversation.
type Message struct {
	ID              string           `json:"id"`
	Role            string           `json:"role"`
	Content         string           `json:"content"`
	ToolInvocations []ToolInvocation `json:"toolInvocations,omitempty"`
}

// ToolInvocation is a correlated tool call/result pair within a message.
type ToolInvocation struct {
	ToolCallID string         `json:"toolCallId"`
	ToolName   string         `json:"toolName"`
	Args       map[string]any `json:"args,omitempty"`

	// State is "call" or "running" while pending, "result" once resolved.
	State string `json:"state"`

	// Result holds the tool output once State is "result".
	Result any `json:"result,omitempty"`
}

// Conversation describes an open conversation.
type Conversation struct {
	ID         string `json:"id"`
	WorkingDir string `json:"working_dir"`
	Port       int    `json:"port"`

	// Phase is the reducer phase: "idle", "streaming-text",
	// "tool-call-pending", or "tool-result-received".
	Phase string `json:"phase"`

	// Messages is populated by Get and Turn responses.
	Messages []Message `json:"messages,omitempty"`

	// Error carries the last transport error, if the previous turn
	// failed.
	Error string `json:"error,omitempty"`
}

// SaveResult names the session a conversation was saved as.
type SaveResult struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Session is a saved session as reported by the index.
type Session struct {
	Name      string    `json:"name"`
	Directory string    `json:"directory,omitempty"`
	Path      string    `json:"path"`
	Modified  time.Time `json:"modified"`

	// Latest marks entries contributed by the global recent list in
	// the combined view.
	Latest bool `json:"latest,omitempty"`

	// Messages is populated when loading a single session.
	Messages []Message `json:"messages,omitempty"`
}

// Event is one event from the daemon's event log.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Window    string         `json:"window,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}
