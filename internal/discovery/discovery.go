// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package discovery lists remote files for enabled watchers and reconciles
// them with stored discovery records.
package discovery

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/wingedpig/logharbor/internal/events"
	"github.com/wingedpig/logharbor/internal/store"
)

// Runner executes remote listing commands. Satisfied by *sshx.Client.
type Runner interface {
	ExecCapture(command string) (stdout, stderr []byte, exitCode int, err error)
	Close() error
}

// DialFunc opens a Runner for the given SSH config.
type DialFunc func(cfg *store.SSHConfig) (Runner, error)

// Engine discovers remote log files for all enabled watchers.
type Engine struct {
	store *store.Store
	dial  DialFunc
	bus   events.Bus
	now   func() time.Time
}

// New creates a discovery engine.
func New(st *store.Store, dial DialFunc, bus events.Bus) *Engine {
	return &Engine{store: st, dial: dial, bus: bus, now: time.Now}
}

// FileHash derives the content-addressed identity of a remote file from its
// watcher, base name, size, and ctime. Files agreeing on all four are the same
// logical artifact regardless of path.
func FileHash(watcherName, fileName string, size int64, ctime time.Time) string {
	sum := md5.Sum([]byte(watcherName + fileName + "-" + strconv.FormatInt(size, 10) + "-" +
		strconv.FormatInt(ctime.UnixMilli(), 10)))
	return hex.EncodeToString(sum[:])
}

// ProcessWatchers runs one discovery pass over every enabled watcher. Watchers
// are processed in sequence; per-watcher failures are logged and isolated.
// Only a store failure loading the watcher list aborts the pass.
func (e *Engine) ProcessWatchers(ctx context.Context) error {
	watchers, err := e.store.Watchers.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("load watchers: %w", err)
	}

	e.emit(ctx, events.Event{Type: events.EventDiscoveryStarted})

	var processed, failed int
	for _, w := range watchers {
		if !w.Enabled {
			continue
		}
		if err := e.processWatcher(ctx, w); err != nil {
			failed++
			log.Printf("discovery: watcher %s: %v", w.Name, err)
			e.emit(ctx, events.Event{
				Type:    events.EventWatcherError,
				Watcher: w.Name,
				Payload: map[string]interface{}{"phase": "discovery", "error": err.Error()},
			})
			continue
		}
		processed++
	}

	e.emit(ctx, events.Event{
		Type:    events.EventDiscoveryFinished,
		Payload: map[string]interface{}{"watchers": processed, "failed": failed},
	})
	return nil
}

func (e *Engine) processWatcher(ctx context.Context, w *store.Watcher) error {
	cfg, err := e.store.SSHConfigs.FindByKey(ctx, w.SSHConfigName)
	if err != nil {
		return fmt.Errorf("load ssh config %s: %w", w.SSHConfigName, err)
	}
	if cfg == nil {
		return fmt.Errorf("ssh config %s not found", w.SSHConfigName)
	}

	client, err := e.dial(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	cmd := FindCommand(w)
	stdout, stderr, exit, err := client.ExecCapture(cmd)
	if err != nil {
		// find exits 1 when a subdirectory is unreadable but still lists
		// what it could; only treat an empty listing as fatal.
		if exit <= 0 || len(stdout) == 0 {
			return fmt.Errorf("listing %s: %w (stderr: %s)", w.WatchDir, err, stderr)
		}
		log.Printf("discovery: watcher %s: partial listing (exit %d): %s", w.Name, exit, stderr)
	}

	files := ParseListing(stdout)
	log.Printf("discovery: watcher %s: %d files match %s under %s", w.Name, len(files), w.GlobPattern(), w.WatchDir)

	for _, f := range files {
		if err := e.reconcile(ctx, w, f); err != nil {
			return fmt.Errorf("reconcile %s: %w", f.Path, err)
		}
	}
	return nil
}

// reconcile applies one remote file observation to the record set:
// an exact (hash, path) match bumps updatedTime; a hash seen under another
// path becomes a DUPLICATED row; anything else becomes a NEW row.
func (e *Engine) reconcile(ctx context.Context, w *store.Watcher, f RemoteFile) error {
	hash := FileHash(w.Name, f.FileName(), f.Size, f.CTime)

	existing, err := e.store.RecordsByHash(ctx, w.Name, hash)
	if err != nil {
		return err
	}

	now := e.now().UTC()

	for _, rec := range existing {
		if rec.FullFilePath == f.Path {
			rec.UpdatedTime = now
			return e.store.Records.Update(ctx, rec)
		}
	}

	rec := &store.DiscoveryRecord{
		WatcherName:  w.Name,
		FullFilePath: f.Path,
		FileSize:     f.Size,
		CTime:        f.CTime,
		FileHash:     hash,
		CreatedTime:  now,
		UpdatedTime:  now,
		Status:       store.StatusNew,
		FileName:     f.FileName(),
	}

	if len(existing) > 0 {
		rec.Status = store.StatusDuplicated
		rec.DuplicatedFile = firstSeenPath(existing)
		log.Printf("discovery: watcher %s: %s duplicates %s", w.Name, f.Path, rec.DuplicatedFile)
	}

	return e.store.Records.Insert(ctx, rec)
}

// firstSeenPath picks the original among records sharing a hash: the row that
// is not itself a duplicate, falling back to the oldest row.
func firstSeenPath(recs []*store.DiscoveryRecord) string {
	oldest := recs[0]
	for _, rec := range recs {
		if rec.Status != store.StatusDuplicated {
			return rec.FullFilePath
		}
		if rec.CreatedTime.Before(oldest.CreatedTime) {
			oldest = rec
		}
	}
	return oldest.FullFilePath
}

func (e *Engine) emit(ctx context.Context, ev events.Event) {
	if e.bus == nil {
		return
	}
	if err := e.bus.Publish(ctx, ev); err != nil {
		log.Printf("discovery: publish %s: %v", ev.Type, err)
	}
}
