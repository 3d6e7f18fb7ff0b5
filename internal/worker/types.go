// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package worker supervises backend worker processes, one per open
// window/working-directory. Each worker is an HTTP server the engine
// streams conversation turns from.
package worker

import "time"

// State represents the lifecycle state of a worker process.
type State int

const (
	StateStarting State = iota
	StateRunning
	StateExited
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler to output the string representation.
func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Handle is the in-memory record of a running worker. It is owned
// exclusively by the Supervisor and copied out on query.
type Handle struct {
	Key        string    `json:"key"` // working directory the worker serves
	Port       int       `json:"port"`
	WorkingDir string    `json:"working_dir"`
	PID        int       `json:"pid"`
	State      State     `json:"state"`
	ExitCode   int       `json:"exit_code"`
	StartedAt  time.Time `json:"started_at"`
	StoppedAt  time.Time `json:"stopped_at,omitempty"`
}

// StartResult is returned from Supervisor.Start.
type StartResult struct {
	Port       int    `json:"port"`
	WorkingDir string `json:"working_dir"`
}
