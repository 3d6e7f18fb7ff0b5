// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package session persists conversations to the per-user sessions
// directory and answers listing queries over it. Two on-disk formats
// coexist: the JSONL log format the backend worker emits (one message
// record per line, content as typed parts) and the snapshot format the
// desktop app writes (a single JSON document with name, messages, and
// working directory). Readers handle both; writers produce snapshots.
package session

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/roosthq/roost/internal/events"
	"github.com/roosthq/roost/internal/message"
)

// Content part types used by the log format.
const (
	partText       = "Text"
	partToolUse    = "ToolUse"
	partToolResult = "ToolResult"
)

// part is one typed content part of a log record.
type part struct {
	Type       string         `json:"type"`
	Text       string         `json:"text,omitempty"`
	Name       string         `json:"name,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Output     any            `json:"output,omitempty"`
}

// logRecord is one line of a JSONL session log. IDs appear as both
// strings and bare numbers in the wild, so they are normalized lazily.
type logRecord struct {
	ID      json.RawMessage `json:"id"`
	Role    message.Role    `json:"role"`
	Content []part          `json:"content"`
}

// Snapshot is the single-document session format: the full message
// list plus the metadata the index filters on.
type Snapshot struct {
	Name      string            `json:"name"`
	Messages  []message.Message `json:"messages"`
	Directory string            `json:"directory,omitempty"`
}

// Session is a decoded session file together with its on-disk metadata.
type Session struct {
	Name      string    `json:"name"`
	Directory string    `json:"directory,omitempty"`
	Path      string    `json:"path"`
	Modified  time.Time `json:"modified"`
	// Latest marks entries contributed by the global recent list in the
	// combined view.
	Latest   bool              `json:"latest,omitempty"`
	Messages []message.Message `json:"messages,omitempty"`
}

// Codec encodes and decodes session files. Decode problems below file
// granularity are reported on the event bus rather than as errors.
type Codec struct {
	bus events.Bus
}

// NewCodec creates a codec. bus may be nil when no decode reporting is
// wanted.
func NewCodec(bus events.Bus) *Codec {
	return &Codec{bus: bus}
}

// EncodeLog renders messages in the JSONL log format: one record per
// line, message text as a Text part, each invocation as ToolUse plus,
// when resolved, ToolResult.
func (c *Codec) EncodeLog(msgs []message.Message) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, msg := range msgs {
		rec := logRecord{
			ID:   json.RawMessage(fmt.Sprintf("%q", msg.ID)),
			Role: msg.Role,
		}
		if msg.Content != "" {
			rec.Content = append(rec.Content, part{Type: partText, Text: msg.Content})
		}
		for _, inv := range msg.ToolInvocations {
			rec.Content = append(rec.Content, part{
				Type:       partToolUse,
				Name:       inv.ToolName,
				Parameters: inv.Args,
			})
			if inv.State == message.StateResult {
				rec.Content = append(rec.Content, part{Type: partToolResult, Output: inv.Result})
			}
		}
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("encode message %s: %w", msg.ID, err)
		}
	}
	return buf.Bytes(), nil
}

// EncodeSnapshot renders the snapshot document.
func (c *Codec) EncodeSnapshot(snap Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// DecodeLog parses JSONL log data. Decoding is best-effort: a line
// that fails to parse is skipped with a warning, never fatal, so a
// truncated tail from an interrupted write costs one record at most.
// source names the file in warnings.
func (c *Codec) DecodeLog(source string, data []byte) []message.Message {
	var msgs []message.Message
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec logRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			c.skipLine(source, lineNo, err)
			continue
		}
		msgs = append(msgs, recordToMessage(rec))
	}
	return msgs
}

// Decode parses session file data in whichever format it is in.
// Single-document snapshots that fail to parse are an error; the caller
// skips the whole file. Log data never errors, even when its first line
// is corrupt.
func (c *Codec) Decode(path string, data []byte) (*Session, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return &Session{Path: path}, nil
	}

	// Legacy array format: the bare message list.
	if trimmed[0] == '[' {
		var msgs []message.Message
		if err := json.Unmarshal(trimmed, &msgs); err != nil {
			return nil, fmt.Errorf("parse session file %s: %w", path, err)
		}
		return &Session{Path: path, Messages: msgs}, nil
	}

	// Log records carry a role at the top level; snapshots do not.
	firstLine, _, _ := bytes.Cut(trimmed, []byte{'\n'})
	var probe struct {
		Role json.RawMessage `json:"role"`
	}
	if err := json.Unmarshal(firstLine, &probe); err == nil && probe.Role != nil {
		return &Session{Path: path, Messages: c.DecodeLog(path, trimmed)}, nil
	}

	var snap Snapshot
	if err := json.Unmarshal(trimmed, &snap); err != nil {
		// A log whose first line is corrupt sniffs as a snapshot.
		// Multi-line data that fails the snapshot parse gets the
		// per-line treatment so the intact records survive.
		if bytes.ContainsRune(trimmed, '\n') {
			return &Session{Path: path, Messages: c.DecodeLog(path, trimmed)}, nil
		}
		return nil, fmt.Errorf("parse session file %s: %w", path, err)
	}
	return &Session{
		Name:      snap.Name,
		Directory: snap.Directory,
		Path:      path,
		Messages:  snap.Messages,
	}, nil
}

// DecodeFile reads and decodes one session file.
func (c *Codec) DecodeFile(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	sess, err := c.Decode(path, data)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(path); err == nil {
		sess.Modified = info.ModTime()
	}
	return sess, nil
}

func (c *Codec) skipLine(source string, line int, err error) {
	log.Printf("Skipping unparseable session line %d in %s: %v", line, source, err)
	if c.bus == nil {
		return
	}
	c.bus.Publish(context.Background(), events.Event{
		Type: events.EventSessionDecodeSkipped,
		Payload: map[string]any{
			"path":  source,
			"line":  line,
			"error": err.Error(),
		},
	})
}

// recordToMessage reconstructs a message from its flat part sequence.
// Text parts accumulate into Content. A ToolUse part opens a pending
// invocation; a ToolResult part closes the most recently opened one
// and appends the rendered output to Content as a transcript fallback.
// At most one invocation is open per message at a time.
func recordToMessage(rec logRecord) message.Message {
	msg := message.Message{
		ID:   normalizeID(rec.ID),
		Role: rec.Role,
	}
	var texts []string
	for _, p := range rec.Content {
		switch p.Type {
		case partText:
			if p.Text != "" {
				texts = append(texts, p.Text)
			}
		case partToolUse:
			msg.ToolInvocations = append(msg.ToolInvocations, message.ToolInvocation{
				ToolCallID: fmt.Sprintf("tool-%s-%d", msg.ID, len(msg.ToolInvocations)),
				ToolName:   p.Name,
				Args:       p.Parameters,
				State:      message.StateRunning,
			})
		case partToolResult:
			inv := lastOpenInvocation(&msg)
			if inv == nil {
				// Result with no preceding call. Keep the output visible
				// anyway.
				msg.ToolInvocations = append(msg.ToolInvocations, message.ToolInvocation{
					ToolCallID: fmt.Sprintf("tool-%s-%d", msg.ID, len(msg.ToolInvocations)),
					State:      message.StateResult,
					Result:     p.Output,
				})
			} else {
				inv.State = message.StateResult
				inv.Result = p.Output
			}
			if rendered := message.ResultText(p.Output); rendered != "" {
				texts = append(texts, rendered)
			}
		}
	}
	msg.Content = strings.Join(texts, "\n")
	return msg
}

func lastOpenInvocation(msg *message.Message) *message.ToolInvocation {
	for i := len(msg.ToolInvocations) - 1; i >= 0; i-- {
		if msg.ToolInvocations[i].State.Open() {
			return &msg.ToolInvocations[i]
		}
	}
	return nil
}

// normalizeID renders a raw JSON id (string or number) as a string.
func normalizeID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}
