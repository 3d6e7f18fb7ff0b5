// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/roosthq/roost/internal/message"
)

// maxFrameSize bounds a single protocol frame; large tool outputs can
// produce long lines.
const maxFrameSize = 10 * 1024 * 1024

// Client opens turn requests against a worker and feeds decoded events
// to a callback. One outstanding request per turn; timeouts and
// cancellation belong to the caller's context.
type Client struct {
	httpClient *http.Client
	host       string
}

// NewClient creates a turn client for workers on loopback.
func NewClient() *Client {
	// No client timeout: a turn streams for as long as the worker runs
	// tools. Cancellation comes from the context.
	return &Client{
		httpClient: &http.Client{},
		host:       "127.0.0.1",
	}
}

type replyRequest struct {
	Messages []message.Message `json:"messages"`
}

// StreamTurn posts the conversation history to the worker on the given
// port and applies each decoded event in arrival order. It returns when
// the stream ends, the context is cancelled, or the transport fails.
// Undecodable frames are skipped with a warning.
func (c *Client) StreamTurn(ctx context.Context, port int, history []message.Message, apply func(Event)) error {
	body, err := json.Marshal(replyRequest{Messages: history})
	if err != nil {
		return fmt.Errorf("encode turn request: %w", err)
	}

	url := fmt.Sprintf("http://%s:%d/reply", c.host, port)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build turn request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("open turn stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("worker returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)

	for scanner.Scan() {
		ev, err := ParseLine(scanner.Text())
		if err != nil {
			if errors.Is(err, ErrUnknownFrame) {
				log.Printf("stream: skipping frame: %v", err)
				continue
			}
			return fmt.Errorf("decode stream: %w", err)
		}
		if ev == nil {
			continue
		}
		apply(ev)
	}

	if err := scanner.Err(); err != nil {
		// Distinguish a caller-initiated stop from a transport failure
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("read stream: %w", err)
	}
	return nil
}
