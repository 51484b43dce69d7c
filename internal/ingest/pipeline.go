// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package ingest pulls NEW discovery records' file bytes over SSH, splits them
// into timestamped events, and writes them to the per-watcher indexes.
package ingest

import (
	"compress/gzip"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"path"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"golang.org/x/sync/errgroup"

	"github.com/wingedpig/logharbor/internal/events"
	"github.com/wingedpig/logharbor/internal/index"
	"github.com/wingedpig/logharbor/internal/store"
)

// Streamer opens read streams over remote files. Satisfied by *sshx.Client.
type Streamer interface {
	OpenFileStream(path string) (io.ReadCloser, error)
	Close() error
}

// DialFunc opens a Streamer for the given SSH config.
type DialFunc func(cfg *store.SSHConfig) (Streamer, error)

// Pipeline is the ingestion pipeline. Watchers run in parallel with isolated
// failure domains; records within a watcher run on a bounded worker pool.
type Pipeline struct {
	store   *store.Store
	dial    DialFunc
	indexes *index.Manager
	bus     events.Bus
	now     func() time.Time

	mu             sync.Mutex
	maxParallelism int
}

// New creates an ingestion pipeline. maxParallelism bounds per-watcher workers
// (0 means the CPU count).
func New(st *store.Store, dial DialFunc, indexes *index.Manager, bus events.Bus, maxParallelism int) *Pipeline {
	return &Pipeline{
		store:          st,
		dial:           dial,
		indexes:        indexes,
		bus:            bus,
		maxParallelism: maxParallelism,
		now:            time.Now,
	}
}

// EventID derives the content-addressed identity of one indexed event.
// Reingesting the same event produces the same id, so the index upsert
// replaces rather than duplicates.
func EventID(serverHost, sshConfigName, fileName, content, timestamp string) string {
	sum := md5.Sum([]byte(serverHost + "|" + sshConfigName + fileName + content + "|" + timestamp + "|"))
	return hex.EncodeToString(sum[:])
}

// MaxParallelism returns the current per-watcher worker bound.
func (p *Pipeline) MaxParallelism() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxParallelism
}

// SetMaxParallelism changes the per-watcher worker bound. Takes effect on the
// next ingestion pass.
func (p *Pipeline) SetMaxParallelism(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maxParallelism = n
}

// IngestRecords runs one ingestion pass over every NEW discovery record.
// Only the initial record load can fail the pass; watcher and record failures
// are contained and reflected in each record's consumptionStatus.
func (p *Pipeline) IngestRecords(ctx context.Context) error {
	records, err := p.store.RecordsByStatus(ctx, store.StatusNew)
	if err != nil {
		return fmt.Errorf("load NEW records: %w", err)
	}
	if len(records) == 0 {
		log.Printf("ingest: no NEW records")
		return nil
	}

	p.emit(ctx, events.Event{
		Type:    events.EventIngestStarted,
		Payload: map[string]interface{}{"records": len(records)},
	})

	groups := make(map[string][]*store.DiscoveryRecord)
	for _, rec := range records {
		groups[rec.WatcherName] = append(groups[rec.WatcherName], rec)
	}

	// One task per watcher, supervisor-style: a watcher's failure never
	// cancels its peers, so a plain WaitGroup joins them.
	var wg sync.WaitGroup
	for name, recs := range groups {
		wg.Add(1)
		go func(name string, recs []*store.DiscoveryRecord) {
			defer wg.Done()
			p.ingestWatcher(ctx, name, recs)
		}(name, recs)
	}
	wg.Wait()

	closeErr := p.indexes.CloseAll()
	if closeErr != nil {
		log.Printf("ingest: closing indexes: %v", closeErr)
	}

	p.emit(ctx, events.Event{
		Type:    events.EventIngestFinished,
		Payload: map[string]interface{}{"records": len(records), "watchers": len(groups)},
	})
	return closeErr
}

// ingestWatcher processes one watcher's NEW records. Setup failures (missing
// watcher or config, auth, dial) mark every record ERROR.
func (p *Pipeline) ingestWatcher(ctx context.Context, name string, recs []*store.DiscoveryRecord) {
	w, err := p.store.Watchers.FindByKey(ctx, name)
	if err == nil && w == nil {
		err = fmt.Errorf("watcher %s not found", name)
	}

	var cfg *store.SSHConfig
	if err == nil {
		cfg, err = p.store.SSHConfigs.FindByKey(ctx, w.SSHConfigName)
		if err == nil && cfg == nil {
			err = fmt.Errorf("ssh config %s not found", w.SSHConfigName)
		}
	}

	var client Streamer
	if err == nil {
		client, err = p.dial(cfg)
	}
	if err != nil {
		log.Printf("ingest: watcher %s: %v", name, err)
		p.emit(ctx, events.Event{
			Type:    events.EventWatcherError,
			Watcher: name,
			Payload: map[string]interface{}{"phase": "ingest", "error": err.Error()},
		})
		for _, rec := range recs {
			p.markError(ctx, rec)
		}
		return
	}
	defer client.Close()

	handle, err := p.indexes.Writer(name)
	if err != nil {
		log.Printf("ingest: watcher %s: open index: %v", name, err)
		for _, rec := range recs {
			p.markError(ctx, rec)
		}
		return
	}
	defer p.indexes.Release(name)

	workers := len(recs)
	if n := runtime.NumCPU(); workers > n {
		workers = n
	}
	if limit := p.MaxParallelism(); limit > 0 && workers > limit {
		workers = limit
	}
	if workers < 1 {
		workers = 1
	}

	log.Printf("ingest: watcher %s: %d records, %d workers", name, len(recs), workers)

	var g errgroup.Group
	g.SetLimit(workers)
	for _, rec := range recs {
		rec := rec
		g.Go(func() error {
			if err := p.ingestRecord(ctx, w, cfg, client, handle, rec); err != nil {
				log.Printf("ingest: watcher %s: record %d (%s): %v", name, rec.ID, rec.FullFilePath, err)
				p.emit(ctx, events.Event{
					Type:    events.EventRecordError,
					Watcher: name,
					Payload: map[string]interface{}{"path": rec.FullFilePath, "error": err.Error()},
				})
				p.markError(ctx, rec)
			}
			// Record failures are contained; peers continue.
			return nil
		})
	}
	g.Wait()
}

// ingestRecord streams one file, splits it into events, and commits them.
// The upsert, commit, and status-update ordering is what external observers
// rely on: a record is INDEXED only after its documents are committed.
func (p *Pipeline) ingestRecord(ctx context.Context, w *store.Watcher, cfg *store.SSHConfig,
	client Streamer, handle bleve.Index, rec *store.DiscoveryRecord) error {

	stream, err := client.OpenFileStream(rec.FullFilePath)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer stream.Close()

	var r io.Reader = stream
	if strings.HasSuffix(rec.FullFilePath, ".gz") {
		gz, err := gzip.NewReader(stream)
		if err != nil {
			return fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	fileName := rec.FileName
	if fileName == "" {
		fileName = path.Base(rec.FullFilePath)
	}

	loc := w.Location()
	writer := index.NewRecordWriter(handle)
	var skipped int64

	err = Split(r, func(ts, content string) error {
		instant, perr := ParseTimestamp(ts, loc)
		if perr != nil {
			skipped++
			return nil
		}
		return writer.Upsert(index.Event{
			MD5ID:         EventID(cfg.ServerHost, w.SSHConfigName, fileName, content, ts),
			StrTimestamp:  ts,
			LongTimestamp: instant.UnixMilli(),
			LogPath:       rec.FullFilePath,
			Content:       content,
		})
	})
	if err != nil {
		return err
	}

	count, err := writer.Commit()
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	if count == 0 && skipped > 0 {
		return fmt.Errorf("%w: no parseable events (%d skipped)", ErrParse, skipped)
	}
	if skipped > 0 {
		log.Printf("ingest: %s: %d events skipped with unparseable timestamps", rec.FullFilePath, skipped)
	}

	rec.Status = store.StatusIndexed
	rec.IndexedDocuments = count
	rec.UpdatedTime = p.now().UTC()
	p.updateRecord(ctx, rec)

	p.emit(ctx, events.Event{
		Type:    events.EventRecordIndexed,
		Watcher: w.Name,
		Payload: map[string]interface{}{"path": rec.FullFilePath, "documents": count},
	})
	return nil
}

// markError transitions a record to ERROR with zero indexed documents.
func (p *Pipeline) markError(ctx context.Context, rec *store.DiscoveryRecord) {
	rec.Status = store.StatusError
	rec.IndexedDocuments = 0
	rec.UpdatedTime = p.now().UTC()
	p.updateRecord(ctx, rec)
}

// updateRecord persists a record's status, retrying once on store failure.
func (p *Pipeline) updateRecord(ctx context.Context, rec *store.DiscoveryRecord) {
	if err := p.store.Records.Update(ctx, rec); err != nil {
		log.Printf("ingest: update record %d failed, retrying: %v", rec.ID, err)
		if err := p.store.Records.Update(ctx, rec); err != nil {
			log.Printf("ingest: update record %d failed permanently: %v", rec.ID, err)
		}
	}
}

func (p *Pipeline) emit(ctx context.Context, ev events.Event) {
	if p.bus == nil {
		return
	}
	if err := p.bus.Publish(ctx, ev); err != nil {
		log.Printf("ingest: publish %s: %v", ev.Type, err)
	}
}
