// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package watcher reloads the service configuration when its file changes.
package watcher

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wingedpig/logharbor/internal/config"
	"github.com/wingedpig/logharbor/internal/events"
)

// ReloadFunc receives each successfully loaded and validated config.
type ReloadFunc func(cfg *config.Config)

// ConfigWatcher watches the config file and calls back on valid changes.
// Invalid edits are logged and skipped; the previous config stays in effect.
type ConfigWatcher struct {
	path      string
	loader    *config.Loader
	bus       events.Bus
	onReload  ReloadFunc
	watcher   *fsnotify.Watcher
	debouncer *Debouncer

	mu      sync.Mutex
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// NewConfigWatcher starts watching path. The containing directory is watched
// rather than the file itself, so editors that replace the file atomically
// (write to temp, rename over) keep triggering reloads.
func NewConfigWatcher(path string, loader *config.Loader, bus events.Bus, onReload ReloadFunc) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsWatcher.Add(filepath.Dir(abs)); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("watch config dir: %w", err)
	}

	w := &ConfigWatcher{
		path:      abs,
		loader:    loader,
		bus:       bus,
		onReload:  onReload,
		watcher:   fsWatcher,
		debouncer: NewDebouncer(250 * time.Millisecond),
		closeCh:   make(chan struct{}),
	}

	w.wg.Add(1)
	go w.processEvents()

	return w, nil
}

// Close stops watching. Pending debounced reloads are cancelled.
func (w *ConfigWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	w.debouncer.Stop()
	w.watcher.Close()
	w.wg.Wait()
	return nil
}

func (w *ConfigWatcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("config watcher: %v", err)
		}
	}
}

func (w *ConfigWatcher) handleEvent(event fsnotify.Event) {
	// Creates and renames cover atomic replacement; chmod is noise.
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}
	if filepath.Clean(event.Name) != w.path {
		return
	}
	w.debouncer.Debounce(w.path, w.reload)
}

func (w *ConfigWatcher) reload() {
	ctx := context.Background()

	cfg, err := w.loader.LoadWithDefaults(ctx, w.path)
	if err != nil {
		log.Printf("config watcher: reload skipped: %v", err)
		return
	}
	if err := config.Validate(cfg); err != nil {
		log.Printf("config watcher: reload skipped, invalid config: %v", err)
		return
	}

	log.Printf("config watcher: %s reloaded", w.path)
	if w.onReload != nil {
		w.onReload(cfg)
	}
	if w.bus != nil {
		if err := w.bus.Publish(ctx, events.Event{
			Type:    events.EventConfigReloaded,
			Payload: map[string]interface{}{"path": w.path},
		}); err != nil {
			log.Printf("config watcher: publish reload event: %v", err)
		}
	}
}
