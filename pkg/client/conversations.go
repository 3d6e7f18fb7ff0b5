// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
)

// ConversationClient opens conversations and runs streaming turns.
//
// Access this client through [Client.Conversations]:
//
//	conv, err := client.Conversations.Open(ctx, "/work/project")
//	conv, err = client.Conversations.Turn(ctx, conv.ID, "hello")
type ConversationClient struct {
	c *Client
}

// Open creates a conversation for a working directory, starting its
// backend worker if needed.
func (cc *ConversationClient) Open(ctx context.Context, workingDir string) (*Conversation, error) {
	return cc.open(ctx, map[string]string{"working_dir": workingDir})
}

// Resume creates a conversation seeded from a saved session. When
// workingDir is empty, the session's stored directory is used.
func (cc *ConversationClient) Resume(ctx context.Context, sessionName, workingDir string) (*Conversation, error) {
	return cc.open(ctx, map[string]string{"session": sessionName, "working_dir": workingDir})
}

func (cc *ConversationClient) open(ctx context.Context, body map[string]string) (*Conversation, error) {
	data, err := cc.c.postJSON(ctx, "/api/v1/conversations", body)
	if err != nil {
		return nil, err
	}

	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("failed to parse conversation: %w", err)
	}
	return &conv, nil
}

// List returns all open conversations.
func (cc *ConversationClient) List(ctx context.Context) ([]Conversation, error) {
	data, err := cc.c.get(ctx, "/api/v1/conversations")
	if err != nil {
		return nil, err
	}

	var convs []Conversation
	if err := json.Unmarshal(data, &convs); err != nil {
		return nil, fmt.Errorf("failed to parse conversations: %w", err)
	}
	return convs, nil
}

// Get returns a conversation with its current message list.
func (cc *ConversationClient) Get(ctx context.Context, id string) (*Conversation, error) {
	data, err := cc.c.get(ctx, "/api/v1/conversations/"+id)
	if err != nil {
		return nil, err
	}

	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("failed to parse conversation: %w", err)
	}
	return &conv, nil
}

// Turn sends a user message and blocks until the worker's streamed
// response finishes. The returned conversation includes the updated
// message list. Use a generous client timeout; turns run as long as
// the model takes.
func (cc *ConversationClient) Turn(ctx context.Context, id, content string) (*Conversation, error) {
	data, err := cc.c.postJSON(ctx, "/api/v1/conversations/"+id+"/turns", map[string]string{"content": content})
	if err != nil {
		return nil, err
	}

	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("failed to parse conversation: %w", err)
	}
	return &conv, nil
}

// Stop cancels the conversation's in-flight turn. Output streamed so
// far is kept.
func (cc *ConversationClient) Stop(ctx context.Context, id string) error {
	_, err := cc.c.post(ctx, "/api/v1/conversations/"+id+"/stop")
	return err
}

// Save persists the conversation to the sessions directory and
// returns the derived session name.
func (cc *ConversationClient) Save(ctx context.Context, id string) (*SaveResult, error) {
	data, err := cc.c.post(ctx, "/api/v1/conversations/"+id+"/save")
	if err != nil {
		return nil, err
	}

	var result SaveResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse save result: %w", err)
	}
	return &result, nil
}

// Close removes the conversation from the daemon's registry.
func (cc *ConversationClient) Close(ctx context.Context, id string) error {
	_, err := cc.c.delete(ctx, "/api/v1/conversations/"+id)
	return err
}
