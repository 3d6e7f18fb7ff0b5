// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"sync"

	"github.com/roosthq/roost/internal/message"
)

// Phase is the reducer's position within the current turn. Purely
// observational; transitions happen only through Apply.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseStreaming   Phase = "streaming-text"
	PhaseToolPending Phase = "tool-call-pending"
	PhaseToolResult  Phase = "tool-result-received"
)

// FinishInfo is completion metadata recorded for observability. It is
// not part of the persisted message shape.
type FinishInfo struct {
	Reason string `json:"reason"`
	Usage  Usage  `json:"usage"`
}

// Reducer turns a worker's event stream into an ordered, append-only
// message list. One instance per open conversation. Events are applied
// synchronously as they arrive; the message list is the single source of
// truth the UI re-renders from.
type Reducer struct {
	mu       sync.RWMutex
	messages []message.Message
	current  int // index of the in-progress assistant message, -1 when idle
	phase    Phase
	lastErr  string
	finish   *FinishInfo
	onChange func()
}

// NewReducer creates an empty reducer.
func NewReducer() *Reducer {
	return &Reducer{current: -1, phase: PhaseIdle}
}

// SetOnChange registers a hook fired after every applied event, for UI
// re-render. Must be set before the first Apply.
func (r *Reducer) SetOnChange(fn func()) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// Seed replaces the message list, used when resuming a saved session.
// Only valid while no turn is in flight.
func (r *Reducer) Seed(msgs []message.Message) {
	r.mu.Lock()
	r.messages = append([]message.Message(nil), msgs...)
	r.current = -1
	r.phase = PhaseIdle
	r.mu.Unlock()
}

// AppendUser appends a user message, starting a new turn.
func (r *Reducer) AppendUser(content string) message.Message {
	msg := message.NewUser(content)
	r.mu.Lock()
	r.messages = append(r.messages, msg)
	r.current = -1
	r.finish = nil
	r.lastErr = ""
	r.mu.Unlock()
	return msg
}

// Apply processes one protocol event. Never blocks.
func (r *Reducer) Apply(ev Event) {
	r.mu.Lock()

	switch e := ev.(type) {
	case TextDelta:
		cur := r.ensureCurrent()
		cur.Content += e.Text
		r.phase = PhaseStreaming

	case ToolCall:
		cur := r.ensureCurrent()
		cur.ToolInvocations = append(cur.ToolInvocations, message.ToolInvocation{
			ToolCallID: e.ToolCallID,
			ToolName:   e.ToolName,
			Args:       e.Args,
			State:      message.StateCall,
		})
		r.phase = PhaseToolPending

	case ToolResult:
		cur := r.ensureCurrent()
		if inv := cur.Invocation(e.ToolCallID); inv != nil {
			inv.State = message.StateResult
			inv.Result = e.Result
		} else {
			// Result with no matching call in this turn: record it
			// directly in result state rather than dropping it.
			cur.ToolInvocations = append(cur.ToolInvocations, message.ToolInvocation{
				ToolCallID: e.ToolCallID,
				State:      message.StateResult,
				Result:     e.Result,
			})
		}
		r.phase = PhaseToolResult

	case Finish:
		r.finish = &FinishInfo{Reason: e.Reason, Usage: e.Usage}
		r.current = -1
		r.phase = PhaseIdle

	case StreamError:
		// The in-progress message stays as-is; the error is a side
		// channel, never a message in the list.
		r.lastErr = e.Message
		r.current = -1
		r.phase = PhaseIdle
	}

	onChange := r.onChange
	r.mu.Unlock()

	if onChange != nil {
		onChange()
	}
}

// EndTurn closes out an in-flight turn without a finish event, used
// when the transport is cancelled. Partial output is preserved.
func (r *Reducer) EndTurn() {
	r.mu.Lock()
	r.current = -1
	r.phase = PhaseIdle
	r.mu.Unlock()
}

// Messages returns a copy of the current message list.
func (r *Reducer) Messages() []message.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]message.Message, len(r.messages))
	copy(out, r.messages)
	for i := range out {
		if len(out[i].ToolInvocations) > 0 {
			out[i].ToolInvocations = append([]message.ToolInvocation(nil), out[i].ToolInvocations...)
		}
	}
	return out
}

// Phase returns the current turn phase.
func (r *Reducer) Phase() Phase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.phase
}

// LastError returns the most recent turn error, or "" when none.
func (r *Reducer) LastError() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

// Finish returns completion metadata for the most recent finished turn.
func (r *Reducer) Finish() *FinishInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.finish == nil {
		return nil
	}
	f := *r.finish
	return &f
}

// ensureCurrent lazily opens the assistant message for this turn.
// Callers must hold r.mu.
func (r *Reducer) ensureCurrent() *message.Message {
	if r.current >= 0 {
		return &r.messages[r.current]
	}
	r.messages = append(r.messages, message.NewAssistant())
	r.current = len(r.messages) - 1
	return &r.messages[r.current]
}
