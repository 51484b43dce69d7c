// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS "sshConfig" (
	"name"       TEXT PRIMARY KEY,
	"serverHost" TEXT NOT NULL,
	"port"       INTEGER NOT NULL,
	"username"   TEXT NOT NULL,
	"password"   TEXT NOT NULL,
	"createdAt"  TIMESTAMP NOT NULL,
	"updatedAt"  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS "SSHLogWatcher" (
	"name"           TEXT PRIMARY KEY,
	"sshConfigName"  TEXT NOT NULL,
	"watchDir"       TEXT NOT NULL,
	"recurDepth"     INTEGER NOT NULL,
	"filePrefix"     TEXT NOT NULL DEFAULT '',
	"fileContains"   TEXT NOT NULL DEFAULT '',
	"filePostfix"    TEXT NOT NULL DEFAULT '',
	"archivedLogs"   BOOLEAN NOT NULL DEFAULT 0,
	"enabled"        BOOLEAN NOT NULL DEFAULT 1,
	"javaTimeZoneId" TEXT NOT NULL DEFAULT '',
	"createdAt"      TIMESTAMP NOT NULL,
	"updatedAt"      TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS "SSHLogWatcherRecord" (
	"id"                   INTEGER PRIMARY KEY AUTOINCREMENT,
	"sshLogWatcherName"    TEXT NOT NULL,
	"fullFilePath"         TEXT NOT NULL,
	"fileSize"             INTEGER NOT NULL,
	"cTime"                TIMESTAMP NOT NULL,
	"fileHash"             TEXT NOT NULL,
	"createdTime"          TIMESTAMP NOT NULL,
	"updatedTime"          TIMESTAMP NOT NULL,
	"consumptionStatus"    TEXT NOT NULL,
	"duplicatedFile"       TEXT NOT NULL DEFAULT '',
	"fileName"             TEXT NOT NULL DEFAULT '',
	"noOfIndexedDocuments" INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS "idxRecordWatcher" ON "SSHLogWatcherRecord" ("sshLogWatcherName");
CREATE INDEX IF NOT EXISTS "idxRecordStatus" ON "SSHLogWatcherRecord" ("consumptionStatus");
CREATE INDEX IF NOT EXISTS "idxRecordHash" ON "SSHLogWatcherRecord" ("fileHash");
`

// Store bundles the metadata repositories over one SQLite database. The
// underlying pool is safe for concurrent use from ingestion workers.
type Store struct {
	db *sql.DB

	SSHConfigs *Repo[SSHConfig]
	Watchers   *Repo[Watcher]
	Records    *Repo[DiscoveryRecord]
}

// Open opens (creating if necessary) the metadata database at path.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_loc=UTC", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{
		db:         db,
		SSHConfigs: NewRepo(db, sshConfigKind),
		Watchers:   NewRepo(db, watcherKind),
		Records:    NewRepo(db, recordKind),
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RecordsByStatus returns all discovery records in the given state.
func (s *Store) RecordsByStatus(ctx context.Context, status ConsumptionStatus) ([]*DiscoveryRecord, error) {
	return s.Records.FindBy(ctx, map[string]any{"consumptionStatus": string(status)})
}

// RecordsForWatcher returns all discovery records belonging to a watcher.
func (s *Store) RecordsForWatcher(ctx context.Context, watcher string) ([]*DiscoveryRecord, error) {
	return s.Records.FindBy(ctx, map[string]any{"sshLogWatcherName": watcher})
}

// RecordsByHash returns a watcher's records carrying the given file hash.
func (s *Store) RecordsByHash(ctx context.Context, watcher, hash string) ([]*DiscoveryRecord, error) {
	return s.Records.FindBy(ctx, map[string]any{
		"sshLogWatcherName": watcher,
		"fileHash":          hash,
	})
}
