// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// EventClient reads the daemon's event history.
//
// Access this client through [Client.Events]:
//
//	events, err := client.Events.List(ctx, &EventListOptions{Types: []string{"worker.*"}})
type EventClient struct {
	c *Client
}

// EventListOptions filters an event history query. The zero value
// returns the full retained history.
type EventListOptions struct {
	// Types restricts results to matching event types. Patterns may
	// use a trailing wildcard, such as "worker.*".
	Types []string

	// Window restricts results to events newer than the given
	// duration, such as "5m" or "1h".
	Window string

	// Since restricts results to events published after this time.
	Since time.Time

	// Limit caps the number of returned events, newest kept.
	Limit int
}

// List returns retained events matching the given options. A nil
// options value returns everything still in the history buffer.
func (e *EventClient) List(ctx context.Context, opts *EventListOptions) ([]Event, error) {
	path := "/api/v1/events"
	if opts != nil {
		q := url.Values{}
		for _, t := range opts.Types {
			q.Add("type", t)
		}
		if opts.Window != "" {
			q.Set("window", opts.Window)
		}
		if !opts.Since.IsZero() {
			q.Set("since", opts.Since.Format(time.RFC3339))
		}
		if opts.Limit > 0 {
			q.Set("limit", strconv.Itoa(opts.Limit))
		}
		if len(q) > 0 {
			path += "?" + q.Encode()
		}
	}

	data, err := e.c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var events []Event
	if len(data) > 0 {
		if err := json.Unmarshal(data, &events); err != nil {
			return nil, fmt.Errorf("failed to parse events: %w", err)
		}
	}
	return events, nil
}
