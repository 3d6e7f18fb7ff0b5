// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roosthq/roost/internal/events"
	"github.com/roosthq/roost/internal/message"
)

func TestStore_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	bus := events.NewMemoryBus(events.MemoryBusConfig{})
	defer bus.Close()

	store := NewStore(dir, NewCodec(nil), bus)
	msgs := []message.Message{
		{ID: "m1", Role: message.RoleUser, Content: "refactor the parser module today"},
		{ID: "m2", Role: message.RoleAssistant, Content: "on it"},
	}

	name, path, err := store.Save(msgs, "/work/proj")
	require.NoError(t, err)
	assert.Equal(t, "refactor the parser module today", name)
	assert.Equal(t, filepath.Join(dir, "refactor_the_parser_module_today.json"), path)

	// No temp file left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	sess, err := store.Load(name)
	require.NoError(t, err)
	assert.Equal(t, name, sess.Name)
	assert.Equal(t, "/work/proj", sess.Directory)
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, "on it", sess.Messages[1].Content)

	history := bus.History(events.Filter{Types: []string{events.EventSessionSaved}})
	require.Len(t, history, 1)
	assert.Equal(t, name, history[0].Payload["name"])
}

func TestStore_SameNameOverwrites(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, NewCodec(nil), nil)

	first := []message.Message{{ID: "a", Role: message.RoleUser, Content: "do the thing"}}
	second := []message.Message{
		{ID: "b", Role: message.RoleUser, Content: "do the thing"},
		{ID: "c", Role: message.RoleAssistant, Content: "done"},
	}

	_, _, err := store.Save(first, "/w")
	require.NoError(t, err)
	_, _, err = store.Save(second, "/w")
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "same derived name reuses the file")

	sess, err := store.Load("do the thing")
	require.NoError(t, err)
	assert.Len(t, sess.Messages, 2, "last write wins")
}

func TestStore_LoadLogFormat(t *testing.T) {
	dir := t.TempDir()
	log := `{"id":"m1","role":"user","content":[{"type":"Text","text":"hi"}]}` + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old_log.jsonl"), []byte(log), 0644))

	store := NewStore(dir, NewCodec(nil), nil)
	sess, err := store.Load("old log")
	require.NoError(t, err)
	require.Len(t, sess.Messages, 1)
	assert.Equal(t, "hi", sess.Messages[0].Content)
}

func TestStore_LoadMissing(t *testing.T) {
	store := NewStore(t.TempDir(), NewCodec(nil), nil)
	_, err := store.Load("never saved")
	assert.Error(t, err)
}

func TestStore_ClearAll(t *testing.T) {
	dir := t.TempDir()
	bus := events.NewMemoryBus(events.MemoryBusConfig{})
	defer bus.Close()

	store := NewStore(dir, NewCodec(nil), bus)
	_, _, err := store.Save([]message.Message{message.NewUser("one")}, "/w")
	require.NoError(t, err)
	_, _, err = store.Save([]message.Message{message.NewUser("two")}, "/w")
	require.NoError(t, err)

	// Non-session files survive a clear.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0644))

	require.NoError(t, store.ClearAll())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "notes.txt", entries[0].Name())

	history := bus.History(events.Filter{Types: []string{events.EventSessionCleared}})
	require.Len(t, history, 1)
	assert.Equal(t, 2, history[0].Payload["removed"])
}

func TestStore_ClearAllMissingDir(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nope"), NewCodec(nil), nil)
	assert.NoError(t, store.ClearAll())
}
