// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roosthq/roost/internal/message"
)

func TestDeriveName(t *testing.T) {
	tests := []struct {
		name string
		msgs []message.Message
		want string
	}{
		{
			name: "first five words",
			msgs: []message.Message{message.NewUser("please help me fix the broken build")},
			want: "please help me fix the",
		},
		{
			name: "shorter than five words",
			msgs: []message.Message{message.NewUser("hello there")},
			want: "hello there",
		},
		{
			name: "no messages",
			msgs: nil,
			want: "New Session",
		},
		{
			name: "empty first message falls through",
			msgs: []message.Message{
				{ID: "m1", Role: message.RoleUser, Content: "   "},
				{ID: "m2", Role: message.RoleUser, Content: "second message wins here"},
			},
			want: "second message wins here",
		},
		{
			name: "whitespace collapsed",
			msgs: []message.Message{message.NewUser("a  b\tc\nd")},
			want: "a b c d",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveName(tt.msgs))
		})
	}
}

func TestFileStem(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"hello world", "hello_world"},
		{"fix the build!", "fix_the_build"},
		{"  spaced  out  ", "spaced_out"},
		{"what's up?", "what_s_up"},
		{"a//b\\c", "a_b_c"},
		{"___", "New_Session"},
		{"", "New_Session"},
		{"already_clean", "already_clean"},
		{"MixedCase Kept", "MixedCase_Kept"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FileStem(tt.in), "input %q", tt.in)
	}
}

func TestFileStem_LengthCap(t *testing.T) {
	long := "word word word word word word word word word word word word"
	stem := FileStem(long)
	assert.LessOrEqual(t, len(stem), 50)
	assert.NotEqual(t, byte('_'), stem[len(stem)-1], "no trailing underscore after truncation")
}
