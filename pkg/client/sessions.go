// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// SessionClient lists, loads, and clears saved sessions.
//
// Access this client through [Client.Sessions]:
//
//	sessions, err := client.Sessions.List(ctx, "/work/project")
type SessionClient struct {
	c *Client
}

// List returns saved sessions. With a working directory it returns
// sessions recorded for that directory; with an empty string it
// returns the most recent sessions across all directories.
func (s *SessionClient) List(ctx context.Context, workingDir string) ([]Session, error) {
	path := "/api/v1/sessions"
	if workingDir != "" {
		path += "?dir=" + url.QueryEscape(workingDir)
	}
	return s.list(ctx, path)
}

// Combined returns the merged directory-scoped plus global-recent view
// used by the session picker.
func (s *SessionClient) Combined(ctx context.Context, workingDir string) ([]Session, error) {
	return s.list(ctx, "/api/v1/sessions/combined?dir="+url.QueryEscape(workingDir))
}

func (s *SessionClient) list(ctx context.Context, path string) ([]Session, error) {
	data, err := s.c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var sessions []Session
	if len(data) > 0 {
		if err := json.Unmarshal(data, &sessions); err != nil {
			return nil, fmt.Errorf("failed to parse sessions: %w", err)
		}
	}
	return sessions, nil
}

// Get loads one saved session by name, messages included.
func (s *SessionClient) Get(ctx context.Context, name string) (*Session, error) {
	data, err := s.c.get(ctx, "/api/v1/sessions/"+url.PathEscape(name))
	if err != nil {
		return nil, err
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}
	return &sess, nil
}

// Clear removes every saved session.
func (s *SessionClient) Clear(ctx context.Context) error {
	_, err := s.c.delete(ctx, "/api/v1/sessions")
	return err
}
