// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package index provides the per-watcher inverted index store.
package index

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// ErrNoIndex is returned when opening an index that has never been written.
var ErrNoIndex = errors.New("index does not exist")

// Event is one log event document.
type Event struct {
	MD5ID         string
	StrTimestamp  string
	LongTimestamp int64
	LogPath       string
	Content       string
}

func (e Event) document() map[string]interface{} {
	return map[string]interface{}{
		FieldMD5ID:         e.MD5ID,
		FieldStrTimestamp:  e.StrTimestamp,
		FieldLongTimestamp: e.LongTimestamp,
		FieldLogPath:       e.LogPath,
		FieldContent:       e.Content,
	}
}

// Manager owns the process-wide map of open per-watcher indexes. Ingestion
// and search share one handle per watcher; each acquisition through Writer or
// Open holds a reference until Release. CloseAll closes idle handles right
// away and marks busy ones, which then close on their final Release, so an
// ingestion pass ending cannot pull an index out from under an in-flight
// search.
type Manager struct {
	root    string
	deflate bool

	mu      sync.Mutex
	indexes map[string]*managedIndex
}

type managedIndex struct {
	idx     bleve.Index
	refs    int
	closing bool
}

// NewManager creates an index manager rooted at dir. deflate requests the
// best-compression store profile; bleve's scorch backend always compresses
// stored fields, so the flag is accepted for config compatibility and logged.
func NewManager(dir string, deflate bool) *Manager {
	if deflate {
		log.Printf("index: best-compression requested; scorch stored-field compression applies")
	}
	return &Manager{
		root:    dir,
		deflate: deflate,
		indexes: make(map[string]*managedIndex),
	}
}

// Path returns the on-disk directory of a watcher's index.
func (m *Manager) Path(watcherName string) string {
	return filepath.Join(m.root, watcherName)
}

// validName rejects watcher names that would escape the index root.
func validName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("invalid watcher name %q", name)
	}
	return nil
}

// acquire bumps the reference count of an already-open handle. Re-acquiring a
// handle that CloseAll marked keeps it alive; there is only ever one live
// handle per directory.
func (m *Manager) acquire(watcherName string) (bleve.Index, bool) {
	if mi, ok := m.indexes[watcherName]; ok {
		mi.refs++
		mi.closing = false
		return mi.idx, true
	}
	return nil, false
}

// Writer returns the open index for a watcher, creating the index on first
// use. The caller holds a reference until Release(watcherName).
func (m *Manager) Writer(watcherName string) (bleve.Index, error) {
	if err := validName(watcherName); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if idx, ok := m.acquire(watcherName); ok {
		return idx, nil
	}

	path := m.Path(watcherName)
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		if mkErr := os.MkdirAll(m.root, 0o755); mkErr != nil {
			return nil, fmt.Errorf("create index root: %w", mkErr)
		}
		im, mapErr := buildMapping()
		if mapErr != nil {
			return nil, fmt.Errorf("index mapping: %w", mapErr)
		}
		idx, err = bleve.New(path, im)
	}
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", watcherName, err)
	}

	m.indexes[watcherName] = &managedIndex{idx: idx, refs: 1}
	return idx, nil
}

// Open returns the index for a watcher only if it already exists on disk.
// Returns ErrNoIndex when the watcher has never been ingested. The caller
// holds a reference until Release(watcherName).
func (m *Manager) Open(watcherName string) (bleve.Index, error) {
	if err := validName(watcherName); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if idx, ok := m.acquire(watcherName); ok {
		return idx, nil
	}

	path := m.Path(watcherName)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoIndex, watcherName)
	}

	idx, err := bleve.Open(path)
	if err != nil {
		if err == bleve.ErrorIndexPathDoesNotExist {
			return nil, fmt.Errorf("%w: %s", ErrNoIndex, watcherName)
		}
		return nil, fmt.Errorf("open index %s: %w", watcherName, err)
	}

	m.indexes[watcherName] = &managedIndex{idx: idx, refs: 1}
	return idx, nil
}

// Release gives back one Writer/Open acquisition. The handle closes once it
// is both marked by CloseAll and no longer referenced.
func (m *Manager) Release(watcherName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mi, ok := m.indexes[watcherName]
	if !ok {
		return
	}
	if mi.refs > 0 {
		mi.refs--
	}
	if mi.closing && mi.refs == 0 {
		if err := mi.idx.Close(); err != nil {
			log.Printf("index: close %s: %v", watcherName, err)
		}
		delete(m.indexes, watcherName)
	}
}

// CloseAll closes every idle index and marks the busy ones, which close on
// their final Release. Called at the end of an ingestion run and at shutdown.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for name, mi := range m.indexes {
		if mi.refs > 0 {
			mi.closing = true
			continue
		}
		if err := mi.idx.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close index %s: %w", name, err)
		}
		delete(m.indexes, name)
	}
	return firstErr
}

// RecordWriter accumulates one record's events and commits them as batches.
// Batches are flushed every flushEvery documents and on Commit, so a single
// huge file does not hold its whole document set in memory.
type RecordWriter struct {
	idx   bleve.Index
	batch *bleve.Batch
	count int64
}

const flushEvery = 1000

// NewRecordWriter starts a batched writer over a shared index handle.
func NewRecordWriter(idx bleve.Index) *RecordWriter {
	return &RecordWriter{idx: idx, batch: idx.NewBatch()}
}

// Upsert adds an event; a prior document with the same md5Id is replaced.
func (w *RecordWriter) Upsert(ev Event) error {
	if err := w.batch.Index(ev.MD5ID, ev.document()); err != nil {
		return fmt.Errorf("index event: %w", err)
	}
	w.count++

	if w.batch.Size() >= flushEvery {
		return w.flush()
	}
	return nil
}

func (w *RecordWriter) flush() error {
	if w.batch.Size() == 0 {
		return nil
	}
	if err := w.idx.Batch(w.batch); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	w.batch = w.idx.NewBatch()
	return nil
}

// Commit flushes any buffered documents and returns the total upserted.
func (w *RecordWriter) Commit() (int64, error) {
	if err := w.flush(); err != nil {
		return w.count, err
	}
	return w.count, nil
}
