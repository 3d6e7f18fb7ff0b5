// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roosthq/roost/internal/config"
	"github.com/roosthq/roost/internal/message"
)

func testSessionsConfig(dir string) config.SessionsConfig {
	return config.SessionsConfig{
		Dir:           dir,
		RetentionDays: 10,
		DirListLimit:  4,
		RecentLimit:   20,
		CombinedLimit: 5,
	}
}

// writeSnapshot drops a snapshot session file with a controlled mtime.
func writeSnapshot(t *testing.T, dir, name, workDir string, age time.Duration) string {
	t.Helper()
	codec := NewCodec(nil)
	data, err := codec.EncodeSnapshot(Snapshot{
		Name:      name,
		Directory: workDir,
		Messages:  []message.Message{{ID: "m1", Role: message.RoleUser, Content: name}},
	})
	require.NoError(t, err)

	path := filepath.Join(dir, FileStem(name)+".json")
	require.NoError(t, os.WriteFile(path, data, 0644))
	mtime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func TestIndex_ListFiltersByDirectory(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, "alpha", "/work/a", time.Hour)
	writeSnapshot(t, dir, "beta", "/work/b", 2*time.Hour)
	writeSnapshot(t, dir, "gamma", "/work/a", 3*time.Hour)

	idx := NewIndex(testSessionsConfig(dir), NewCodec(nil))

	got := idx.List("/work/a")
	require.Len(t, got, 2)
	assert.Equal(t, "alpha", got[0].Name, "newest first")
	assert.Equal(t, "gamma", got[1].Name)

	assert.Empty(t, idx.List("/work/unrelated"))
}

func TestIndex_ListCap(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 6; i++ {
		writeSnapshot(t, dir, fmt.Sprintf("session number %d", i), "/w", time.Duration(i)*time.Hour)
	}

	idx := NewIndex(testSessionsConfig(dir), NewCodec(nil))
	got := idx.List("/w")
	require.Len(t, got, 4)
	assert.Equal(t, "session number 0", got[0].Name)
}

func TestIndex_ListRecentAcrossDirectories(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, "one", "/a", time.Hour)
	writeSnapshot(t, dir, "two", "/b", 2*time.Hour)

	idx := NewIndex(testSessionsConfig(dir), NewCodec(nil))
	got := idx.ListRecent()
	require.Len(t, got, 2)
	assert.Equal(t, "one", got[0].Name)
	assert.Equal(t, "two", got[1].Name)
}

func TestIndex_RetentionExcludesOldFiles(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, "fresh", "/w", time.Hour)
	writeSnapshot(t, dir, "stale", "/w", 11*24*time.Hour)

	idx := NewIndex(testSessionsConfig(dir), NewCodec(nil))
	got := idx.ListRecent()
	require.Len(t, got, 1)
	assert.Equal(t, "fresh", got[0].Name)
}

func TestIndex_MissingDirectoryYieldsEmpty(t *testing.T) {
	idx := NewIndex(testSessionsConfig(filepath.Join(t.TempDir(), "nonexistent")), NewCodec(nil))
	assert.Equal(t, []Session{}, idx.ListRecent())
	assert.Equal(t, []Session{}, idx.List("/w"))
}

func TestIndex_UnreadableFileSkippedWhole(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, "good", "/w", time.Hour)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{"name": "tr`), 0644))

	idx := NewIndex(testSessionsConfig(dir), NewCodec(nil))
	got := idx.ListRecent()
	require.Len(t, got, 1)
	assert.Equal(t, "good", got[0].Name)
}

func TestIndex_LogFileNamedAfterStem(t *testing.T) {
	dir := t.TempDir()
	log := `{"id":"m1","role":"user","content":[{"type":"Text","text":"hi"}]}` + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "worker_log.jsonl"), []byte(log), 0644))

	idx := NewIndex(testSessionsConfig(dir), NewCodec(nil))
	got := idx.ListRecent()
	require.Len(t, got, 1)
	assert.Equal(t, "worker_log", got[0].Name)
	assert.Empty(t, got[0].Directory)
}

func TestIndex_CombinedDedupByName(t *testing.T) {
	dir := t.TempDir()
	// Same name in the working dir and elsewhere; the dir-scoped entry
	// wins the dedup.
	writeSnapshot(t, dir, "shared name", "/work/a", time.Hour)
	writeSnapshot(t, dir, "only global", "/work/b", 2*time.Hour)
	writeSnapshot(t, dir, "only local", "/work/a", 3*time.Hour)

	idx := NewIndex(testSessionsConfig(dir), NewCodec(nil))
	got := idx.Combined("/work/a")
	require.Len(t, got, 3)

	assert.Equal(t, "shared name", got[0].Name)
	assert.False(t, got[0].Latest)
	assert.Equal(t, "only local", got[1].Name)
	assert.False(t, got[1].Latest)
	assert.Equal(t, "only global", got[2].Name)
	assert.True(t, got[2].Latest, "global entries marked latest")
}

func TestIndex_CombinedCap(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 4; i++ {
		writeSnapshot(t, dir, fmt.Sprintf("local %d", i), "/w", time.Duration(i)*time.Hour)
	}
	for i := 0; i < 4; i++ {
		writeSnapshot(t, dir, fmt.Sprintf("global %d", i), "/elsewhere", time.Duration(10+i)*time.Hour)
	}

	idx := NewIndex(testSessionsConfig(dir), NewCodec(nil))
	got := idx.Combined("/w")
	assert.Len(t, got, 5)
}

func TestIndex_WatcherInvalidatesCache(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, "first", "/w", time.Hour)

	idx := NewIndex(testSessionsConfig(dir), NewCodec(nil))
	require.NoError(t, idx.Watch())
	defer idx.Close()

	require.Len(t, idx.ListRecent(), 1)

	writeSnapshot(t, dir, "second", "/w", 0)

	// The new file shows up regardless of watcher timing; the watcher
	// only drops cached decodes.
	assert.Eventually(t, func() bool {
		return len(idx.ListRecent()) == 2
	}, 2*time.Second, 50*time.Millisecond)
}
