// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole_Valid(t *testing.T) {
	for _, r := range []Role{RoleUser, RoleAssistant, RoleSystem, RoleTool, RoleFunction, RoleData} {
		assert.True(t, r.Valid(), "role %q should be valid", r)
	}
	assert.False(t, Role("moderator").Valid())
	assert.False(t, Role("").Valid())
}

func TestToolInvocation_DisplayName(t *testing.T) {
	tests := []struct {
		name     string
		toolName string
		want     string
	}{
		{"namespaced", "fs__list", "list"},
		{"double namespace", "developer__shell__run", "run"},
		{"plain", "search", "search"},
		{"trailing separator", "fs__", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := ToolInvocation{ToolName: tt.toolName}
			assert.Equal(t, tt.want, inv.DisplayName())
		})
	}
}

func TestMessage_Invocation(t *testing.T) {
	msg := NewAssistant()
	msg.ToolInvocations = []ToolInvocation{
		{ToolCallID: "a", ToolName: "fs__list", State: StateCall},
		{ToolCallID: "b", ToolName: "fs__read", State: StateResult},
	}

	inv := msg.Invocation("b")
	require.NotNil(t, inv)
	assert.Equal(t, "fs__read", inv.ToolName)

	// Returned pointer mutates the message in place.
	inv.State = StateCall
	assert.Equal(t, StateCall, msg.ToolInvocations[1].State)

	assert.Nil(t, msg.Invocation("missing"))
}

func TestResultText(t *testing.T) {
	assert.Equal(t, "", ResultText(nil))
	assert.Equal(t, "a.txt\nb.txt", ResultText("a.txt\nb.txt"))

	structured := []ResultContent{
		{Type: "text", Text: "first"},
		{Type: "image", Data: "base64..."},
		{Type: "text", Text: "second"},
	}
	assert.Equal(t, "first\nsecond", ResultText(structured))

	// Shape produced by json.Unmarshal into any.
	decoded := []any{
		map[string]any{"type": "text", "text": "hello"},
		map[string]any{"type": "image", "data": "x"},
	}
	assert.Equal(t, "hello", ResultText(decoded))
}

func TestInvocationState_Open(t *testing.T) {
	assert.True(t, StateCall.Open())
	assert.True(t, StateRunning.Open())
	assert.False(t, StateResult.Open())
}

func TestNewMessages(t *testing.T) {
	u := NewUser("hi")
	a := NewAssistant()
	assert.Equal(t, RoleUser, u.Role)
	assert.Equal(t, "hi", u.Content)
	assert.Equal(t, RoleAssistant, a.Role)
	assert.NotEmpty(t, u.ID)
	assert.NotEqual(t, u.ID, a.ID)
}
