// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package stream consumes the worker's incremental response protocol and
// reduces it into conversation state.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// The worker replies with newline-delimited frames of the form
// "<code>:<json>". Each code maps to one Event variant below.
const (
	frameText       = "0" // JSON string fragment of assistant text
	frameError      = "3" // JSON string error message
	frameToolCall   = "9" // {toolCallId, toolName, args}
	frameToolResult = "a" // {toolCallId, result}
	frameFinish     = "d" // {finishReason, usage}
)

// ErrUnknownFrame is returned for frames with an unrecognized code.
// Callers skip these with a warning rather than failing the turn.
var ErrUnknownFrame = errors.New("unknown stream frame")

// Event is one decoded protocol event. The set of variants is closed so
// reducer transitions can be checked exhaustively.
type Event interface {
	isEvent()
}

// TextDelta is a fragment of assistant text.
type TextDelta struct {
	Text string
}

// ToolCall announces a tool invocation request.
type ToolCall struct {
	ToolCallID string         `json:"toolCallId"`
	ToolName   string         `json:"toolName"`
	Args       map[string]any `json:"args"`
}

// ToolResult carries the outcome of a prior tool call.
type ToolResult struct {
	ToolCallID string `json:"toolCallId"`
	Result     any    `json:"result"`
}

// Usage is token accounting reported at the end of a turn.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

// Finish closes a turn.
type Finish struct {
	Reason string `json:"finishReason"`
	Usage  Usage  `json:"usage"`
}

// StreamError is an error reported in-band by the worker.
type StreamError struct {
	Message string
}

func (TextDelta) isEvent()   {}
func (ToolCall) isEvent()    {}
func (ToolResult) isEvent()  {}
func (Finish) isEvent()      {}
func (StreamError) isEvent() {}

// ParseLine decodes a single wire frame. Empty lines yield (nil, nil).
func ParseLine(line string) (Event, error) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return nil, nil
	}

	code, payload, found := strings.Cut(line, ":")
	if !found {
		return nil, fmt.Errorf("%w: no code separator in %q", ErrUnknownFrame, truncate(line, 40))
	}

	switch code {
	case frameText:
		var text string
		if err := json.Unmarshal([]byte(payload), &text); err != nil {
			return nil, fmt.Errorf("decode text frame: %w", err)
		}
		return TextDelta{Text: text}, nil

	case frameError:
		var msg string
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			// Some workers send bare text here
			msg = payload
		}
		return StreamError{Message: msg}, nil

	case frameToolCall:
		var call ToolCall
		if err := json.Unmarshal([]byte(payload), &call); err != nil {
			return nil, fmt.Errorf("decode tool-call frame: %w", err)
		}
		return call, nil

	case frameToolResult:
		var result ToolResult
		if err := json.Unmarshal([]byte(payload), &result); err != nil {
			return nil, fmt.Errorf("decode tool-result frame: %w", err)
		}
		return result, nil

	case frameFinish:
		var finish Finish
		if err := json.Unmarshal([]byte(payload), &finish); err != nil {
			return nil, fmt.Errorf("decode finish frame: %w", err)
		}
		return finish, nil

	default:
		return nil, fmt.Errorf("%w: code %q", ErrUnknownFrame, code)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
