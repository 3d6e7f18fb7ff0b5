// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package events provides the in-process event bus for the session engine.
// Worker lifecycle, turn progress, and session persistence all announce
// themselves here; the desktop shell subscribes over a websocket.
package events

import (
	"context"
	"strings"
	"time"
)

// Event is an immutable event record.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	// Window identifies the owning conversation window, when known.
	Window  string         `json:"window,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Handler processes received events.
type Handler func(ctx context.Context, event Event) error

// SubscriptionID uniquely identifies a subscription.
type SubscriptionID string

// Filter selects events from history.
type Filter struct {
	Types  []string  // event type patterns (wildcards allowed)
	Window string    // filter by window
	Since  time.Time // events after this time
	Limit  int       // maximum events to return
}

// Bus is the pub/sub interface used across the engine.
type Bus interface {
	// Publish emits an event to all matching subscribers.
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a synchronous handler for events matching pattern.
	Subscribe(pattern string, handler Handler) (SubscriptionID, error)

	// SubscribeChan registers a buffered channel subscription. Slow
	// consumers drop events rather than blocking publishers.
	SubscribeChan(pattern string, buffer int) (SubscriptionID, <-chan Event, error)

	// Unsubscribe removes a subscription.
	Unsubscribe(id SubscriptionID) error

	// History retrieves past events matching filter.
	History(filter Filter) []Event

	// Close shuts down the bus.
	Close() error
}

// Event types published by the engine.
const (
	EventWorkerStarted = "worker.started"
	EventWorkerExited  = "worker.exited"

	EventTurnStarted  = "turn.started"
	EventTurnFinished = "turn.finished"
	EventTurnError    = "turn.error"

	EventSessionSaved         = "session.saved"
	EventSessionCleared       = "session.cleared"
	EventSessionDecodeSkipped = "session.decode.skipped"
)

// MatchPattern checks an event type against a subscription pattern.
// Patterns support a trailing wildcard ("worker.*"), a leading wildcard
// ("*.exited"), and the match-all pattern "*".
func MatchPattern(eventType, pattern string) bool {
	if pattern == "" || eventType == "" {
		return false
	}
	if pattern == "*" || pattern == eventType {
		return true
	}
	if strings.HasSuffix(pattern, ".*") {
		prefix := strings.TrimSuffix(pattern, ".*")
		return strings.HasPrefix(eventType, prefix+".")
	}
	if strings.HasPrefix(pattern, "*.") {
		suffix := strings.TrimPrefix(pattern, "*.")
		return strings.HasSuffix(eventType, "."+suffix)
	}
	return false
}
