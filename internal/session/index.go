// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/roosthq/roost/internal/config"
)

// Index answers listing queries over the sessions directory. File
// decodes are cached by path and modification time; an fsnotify
// watcher drops the cache when the directory changes. Age filtering
// happens before decode so stale files never cost a parse.
type Index struct {
	dir   string
	codec *Codec
	cfg   config.SessionsConfig

	mu    sync.Mutex
	cache map[string]cacheEntry

	watcher *fsnotify.Watcher
	closeCh chan struct{}
	wg      sync.WaitGroup
}

type cacheEntry struct {
	modTime time.Time
	sess    *Session
}

// NewIndex creates an index over the configured sessions directory.
func NewIndex(cfg config.SessionsConfig, codec *Codec) *Index {
	return &Index{
		dir:     cfg.Dir,
		codec:   codec,
		cfg:     cfg,
		cache:   make(map[string]cacheEntry),
		closeCh: make(chan struct{}),
	}
}

// Watch starts invalidating the decode cache on directory changes.
// Listing works without it; callers that never Watch just decode from
// the modtime-checked cache.
func (x *Index) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(x.dir); err != nil {
		w.Close()
		return err
	}
	x.watcher = w
	x.wg.Add(1)
	go x.processEvents()
	return nil
}

// Close stops the watcher, if started.
func (x *Index) Close() error {
	close(x.closeCh)
	if x.watcher != nil {
		x.watcher.Close()
	}
	x.wg.Wait()
	return nil
}

func (x *Index) processEvents() {
	defer x.wg.Done()
	for {
		select {
		case <-x.closeCh:
			return
		case event, ok := <-x.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				x.mu.Lock()
				x.cache = make(map[string]cacheEntry)
				x.mu.Unlock()
			}
		case err, ok := <-x.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Session watcher error: %v", err)
		}
	}
}

// List returns sessions whose stored directory equals workingDir,
// newest first, capped to the directory-scoped limit.
func (x *Index) List(workingDir string) []Session {
	out := []Session{}
	for _, sess := range x.scan() {
		if sess.Directory != workingDir {
			continue
		}
		out = append(out, sess)
		if len(out) >= x.cfg.DirListLimit {
			break
		}
	}
	return out
}

// ListRecent returns the most recent sessions across all directories,
// capped to the global limit.
func (x *Index) ListRecent() []Session {
	all := x.scan()
	if len(all) > x.cfg.RecentLimit {
		all = all[:x.cfg.RecentLimit]
	}
	return all
}

// Combined merges the directory-scoped list with the global recent
// list for compact presentation: directory entries first, then global
// entries whose names are not already present, marked as latest. The
// result is capped to the combined limit.
func (x *Index) Combined(workingDir string) []Session {
	out := x.List(workingDir)
	seen := make(map[string]bool, len(out))
	for _, sess := range out {
		seen[sess.Name] = true
	}
	for _, sess := range x.ListRecent() {
		if len(out) >= x.cfg.CombinedLimit {
			break
		}
		if seen[sess.Name] {
			continue
		}
		seen[sess.Name] = true
		sess.Latest = true
		out = append(out, sess)
	}
	if len(out) > x.cfg.CombinedLimit {
		out = out[:x.cfg.CombinedLimit]
	}
	return out
}

// scan enumerates the sessions directory, newest first, dropping files
// older than the retention window before decoding them. A missing or
// unreadable directory yields an empty slice, never an error.
func (x *Index) scan() []Session {
	entries, err := os.ReadDir(x.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Failed to read sessions dir %s: %v", x.dir, err)
		}
		return []Session{}
	}

	cutoff := time.Now().AddDate(0, 0, -x.cfg.RetentionDays)
	out := []Session{}
	for _, entry := range entries {
		if entry.IsDir() || !sessionFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(x.dir, entry.Name())
		sess := x.decode(path, info.ModTime())
		if sess == nil {
			continue
		}
		out = append(out, *sess)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Modified.After(out[j].Modified)
	})
	return out
}

// decode parses one session file through the cache. Unreadable files
// are skipped whole.
func (x *Index) decode(path string, modTime time.Time) *Session {
	x.mu.Lock()
	if entry, ok := x.cache[path]; ok && entry.modTime.Equal(modTime) {
		x.mu.Unlock()
		return entry.sess
	}
	x.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("Skipping unreadable session file %s: %v", path, err)
		return nil
	}
	sess, err := x.codec.Decode(path, data)
	if err != nil {
		log.Printf("Skipping session file %s: %v", path, err)
		return nil
	}
	sess.Modified = modTime
	if sess.Name == "" {
		// Log-format files carry no stored name; fall back to the stem.
		sess.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	x.mu.Lock()
	x.cache[path] = cacheEntry{modTime: modTime, sess: sess}
	x.mu.Unlock()
	return sess
}
