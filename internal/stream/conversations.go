// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/roosthq/roost/internal/events"
	"github.com/roosthq/roost/internal/message"
	"github.com/roosthq/roost/internal/worker"
)

// ErrConversationNotFound is returned for unknown conversation ids.
var ErrConversationNotFound = errors.New("conversation not found")

// ErrTurnInFlight is returned when a turn is requested while another is
// still streaming for the same conversation.
var ErrTurnInFlight = errors.New("turn already in flight")

// Conversation is one open conversation: a reducer plus the worker
// connection it streams from.
type Conversation struct {
	ID         string
	WorkingDir string
	Port       int

	reducer *Reducer

	mu     sync.Mutex
	cancel context.CancelFunc // in-flight turn, nil when idle
}

// Messages returns the conversation's current message list.
func (c *Conversation) Messages() []message.Message {
	return c.reducer.Messages()
}

// Phase returns the reducer phase.
func (c *Conversation) Phase() Phase {
	return c.reducer.Phase()
}

// LastError returns the reducer's error side channel.
func (c *Conversation) LastError() string {
	return c.reducer.LastError()
}

// Conversations is the registry of open conversations. It drives turns
// against the supervisor's workers and publishes turn events.
type Conversations struct {
	sup    *worker.Supervisor
	client *Client
	bus    events.Bus

	mu   sync.RWMutex
	byID map[string]*Conversation
}

// NewConversations creates the conversation registry.
func NewConversations(sup *worker.Supervisor, client *Client, bus events.Bus) *Conversations {
	return &Conversations{
		sup:    sup,
		client: client,
		bus:    bus,
		byID:   make(map[string]*Conversation),
	}
}

// Open starts (or reuses) the worker for workingDir and registers a new
// conversation against it.
func (m *Conversations) Open(ctx context.Context, workingDir string) (*Conversation, error) {
	res, err := m.sup.Start(ctx, workingDir)
	if err != nil {
		return nil, err
	}

	conv := &Conversation{
		ID:         uuid.NewString(),
		WorkingDir: res.WorkingDir,
		Port:       res.Port,
		reducer:    NewReducer(),
	}

	m.mu.Lock()
	m.byID[conv.ID] = conv
	m.mu.Unlock()
	return conv, nil
}

// Resume opens a conversation seeded with previously persisted messages.
func (m *Conversations) Resume(ctx context.Context, workingDir string, msgs []message.Message) (*Conversation, error) {
	conv, err := m.Open(ctx, workingDir)
	if err != nil {
		return nil, err
	}
	conv.reducer.Seed(msgs)
	return conv, nil
}

// Get looks up a conversation by id.
func (m *Conversations) Get(id string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conv, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	return conv, nil
}

// Turn appends a user message and streams the worker's response into the
// conversation's reducer. It blocks until the stream ends or is stopped;
// partially streamed output is preserved either way.
func (m *Conversations) Turn(ctx context.Context, id, content string) error {
	conv, err := m.Get(id)
	if err != nil {
		return err
	}

	turnCtx, cancel := context.WithCancel(ctx)
	conv.mu.Lock()
	if conv.cancel != nil {
		conv.mu.Unlock()
		cancel()
		return ErrTurnInFlight
	}
	conv.cancel = cancel
	conv.mu.Unlock()

	defer func() {
		conv.mu.Lock()
		conv.cancel = nil
		conv.mu.Unlock()
		cancel()
	}()

	conv.reducer.AppendUser(content)
	m.publish(events.EventTurnStarted, conv, nil)

	err = m.client.StreamTurn(turnCtx, conv.Port, conv.reducer.Messages(), conv.reducer.Apply)
	if err != nil {
		conv.reducer.EndTurn()
		if errors.Is(err, context.Canceled) {
			// Explicit stop: keep what streamed, no error surfaced
			log.Printf("Turn stopped for conversation %s", conv.ID)
			m.publish(events.EventTurnFinished, conv, map[string]any{"stopped": true})
			return nil
		}
		conv.reducer.Apply(StreamError{Message: err.Error()})
		m.publish(events.EventTurnError, conv, map[string]any{"error": err.Error()})
		return err
	}

	payload := map[string]any{}
	if fin := conv.reducer.Finish(); fin != nil {
		payload["reason"] = fin.Reason
		payload["prompt_tokens"] = fin.Usage.PromptTokens
		payload["completion_tokens"] = fin.Usage.CompletionTokens
	}
	m.publish(events.EventTurnFinished, conv, payload)
	return nil
}

// StopTurn aborts the in-flight turn's transport. Already-reduced state
// is not rolled back. No-op when the conversation is idle.
func (m *Conversations) StopTurn(id string) error {
	conv, err := m.Get(id)
	if err != nil {
		return err
	}

	conv.mu.Lock()
	cancel := conv.cancel
	conv.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

// Close removes a conversation from the registry, cancelling any
// in-flight turn first.
func (m *Conversations) Close(id string) error {
	conv, err := m.Get(id)
	if err != nil {
		return err
	}

	conv.mu.Lock()
	cancel := conv.cancel
	conv.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	m.mu.Lock()
	delete(m.byID, id)
	m.mu.Unlock()
	return nil
}

// List returns all open conversations.
func (m *Conversations) List() []*Conversation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Conversation, 0, len(m.byID))
	for _, conv := range m.byID {
		out = append(out, conv)
	}
	return out
}

func (m *Conversations) publish(eventType string, conv *Conversation, payload map[string]any) {
	if m.bus == nil {
		return
	}
	if payload == nil {
		payload = map[string]any{}
	}
	payload["conversation_id"] = conv.ID
	payload["working_dir"] = conv.WorkingDir
	m.bus.Publish(context.Background(), events.Event{
		Type:    eventType,
		Window:  conv.WorkingDir,
		Payload: payload,
	})
}
