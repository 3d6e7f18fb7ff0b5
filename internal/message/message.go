// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package message defines the conversation data model shared by the
// reducer, the session codec, and the HTTP API.
package message

import (
	"strings"

	"github.com/google/uuid"
)

// Role identifies the author of a message. The set is closed; anything
// else coming off the wire is rejected at decode time.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
	RoleFunction  Role = "function"
	RoleData      Role = "data"
)

// Valid reports whether r is a member of the closed role enumeration.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool, RoleFunction, RoleData:
		return true
	}
	return false
}

// InvocationState tracks the lifecycle of a tool invocation.
type InvocationState string

const (
	// StateCall means only the invocation request has been observed.
	StateCall InvocationState = "call"
	// StateRunning is the decoded form of an invocation whose result has
	// not been seen yet. Semantically equivalent to StateCall; kept
	// distinct because the on-disk logs use it.
	StateRunning InvocationState = "running"
	// StateResult means a matching result record has arrived.
	StateResult InvocationState = "result"
)

// Open reports whether the invocation is still awaiting its result.
func (s InvocationState) Open() bool {
	return s == StateCall || s == StateRunning
}

// ResultContent is one item of a structured tool result.
type ResultContent struct {
	Type     string   `json:"type"` // "text" or "image"
	Text     string   `json:"text,omitempty"`
	MimeType string   `json:"mimeType,omitempty"`
	Data     string   `json:"data,omitempty"`
	Audience []string `json:"audience,omitempty"`
}

// ToolInvocation is a correlated call/result pair within a message.
type ToolInvocation struct {
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Args       map[string]any  `json:"args,omitempty"`
	State      InvocationState `json:"state"`
	// Result is present once State is StateResult. It is either a plain
	// string or a []ResultContent, matching what the worker produced.
	Result any `json:"result,omitempty"`
}

// DisplayName returns the user-facing tool name: the suffix after the
// last "__" separator, or the full name when there is none.
func (t ToolInvocation) DisplayName() string {
	if i := strings.LastIndex(t.ToolName, "__"); i >= 0 {
		return t.ToolName[i+2:]
	}
	return t.ToolName
}

// Message is one turn in a conversation. Tool invocations are ordered by
// the order their originating tool-use records appeared in the stream.
type Message struct {
	ID              string           `json:"id"`
	Role            Role             `json:"role"`
	Content         string           `json:"content"`
	ToolInvocations []ToolInvocation `json:"toolInvocations,omitempty"`
}

// NewUser creates a user message with a fresh id.
func NewUser(content string) Message {
	return Message{ID: uuid.NewString(), Role: RoleUser, Content: content}
}

// NewAssistant creates an empty assistant message with a fresh id.
func NewAssistant() Message {
	return Message{ID: uuid.NewString(), Role: RoleAssistant}
}

// Invocation returns a pointer to the invocation with the given call id,
// or nil if the message has none.
func (m *Message) Invocation(callID string) *ToolInvocation {
	for i := range m.ToolInvocations {
		if m.ToolInvocations[i].ToolCallID == callID {
			return &m.ToolInvocations[i]
		}
	}
	return nil
}

// ResultText flattens a tool invocation result into readable text. A
// string result is returned as-is; structured results contribute their
// text items joined by newlines.
func ResultText(result any) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	case []ResultContent:
		var parts []string
		for _, item := range v {
			if item.Type == "text" && item.Text != "" {
				parts = append(parts, item.Text)
			}
		}
		return strings.Join(parts, "\n")
	case []any:
		// Decoded from JSON without a concrete type.
		var parts []string
		for _, raw := range v {
			item, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			if item["type"] == "text" {
				if text, ok := item["text"].(string); ok && text != "" {
					parts = append(parts, text)
				}
			}
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}
