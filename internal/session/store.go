// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/roosthq/roost/internal/events"
	"github.com/roosthq/roost/internal/message"
)

// Store writes session files to the sessions directory. Writes are
// atomic (temp file plus rename) so a reader racing a save never sees
// a partial snapshot.
type Store struct {
	dir   string
	codec *Codec
	bus   events.Bus
}

// NewStore creates a store rooted at dir.
func NewStore(dir string, codec *Codec, bus events.Bus) *Store {
	return &Store{dir: dir, codec: codec, bus: bus}
}

// Dir returns the sessions directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save persists a conversation as a snapshot named after its first
// message. It returns the derived session name and the file path.
func (s *Store) Save(msgs []message.Message, workingDir string) (string, string, error) {
	name := DeriveName(msgs)
	data, err := s.codec.EncodeSnapshot(Snapshot{
		Name:      name,
		Messages:  msgs,
		Directory: workingDir,
	})
	if err != nil {
		return "", "", err
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", "", fmt.Errorf("create sessions dir: %w", err)
	}

	path := filepath.Join(s.dir, FileStem(name)+".json")
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return "", "", fmt.Errorf("write temp session file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", "", fmt.Errorf("rename session file: %w", err)
	}

	log.Printf("Saved session %q to %s", name, path)
	s.publish(events.EventSessionSaved, map[string]any{
		"name":        name,
		"path":        path,
		"working_dir": workingDir,
	})
	return name, path, nil
}

// Load finds a session by name and decodes it. The name may be the
// original session name or the file stem; both codec variants are
// tried.
func (s *Store) Load(name string) (*Session, error) {
	stem := FileStem(name)
	for _, ext := range []string{".json", ".jsonl"} {
		path := filepath.Join(s.dir, stem+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		sess, err := s.codec.DecodeFile(path)
		if err != nil {
			return nil, err
		}
		if sess.Name == "" {
			sess.Name = name
		}
		return sess, nil
	}
	return nil, fmt.Errorf("session %q not found", name)
}

// ClearAll removes every session file in the directory. A missing
// directory is not an error.
func (s *Store) ClearAll() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read sessions dir: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !sessionFile(entry.Name()) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			log.Printf("Failed to remove session file %s: %v", path, err)
			continue
		}
		removed++
	}

	log.Printf("Cleared %d session files from %s", removed, s.dir)
	s.publish(events.EventSessionCleared, map[string]any{
		"dir":     s.dir,
		"removed": removed,
	})
	return nil
}

func (s *Store) publish(eventType string, payload map[string]any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(context.Background(), events.Event{
		Type:    eventType,
		Payload: payload,
	})
}

// sessionFile reports whether a directory entry looks like a session
// file. Temp files from in-flight atomic writes are excluded.
func sessionFile(name string) bool {
	if strings.HasSuffix(name, ".tmp") {
		return false
	}
	ext := filepath.Ext(name)
	return ext == ".json" || ext == ".jsonl"
}
