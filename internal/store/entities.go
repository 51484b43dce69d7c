// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package store provides the metadata store: SSH connection configs, watchers,
// and discovery records persisted in an embedded SQL database.
package store

import (
	"strconv"
	"time"
)

// ConsumptionStatus is the processing state of a discovery record.
type ConsumptionStatus string

const (
	StatusNew        ConsumptionStatus = "NEW"
	StatusIndexed    ConsumptionStatus = "INDEXED"
	StatusDuplicated ConsumptionStatus = "DUPLICATED"
	StatusError      ConsumptionStatus = "ERROR"
)

// SSHConfig is a connection descriptor for a remote host.
type SSHConfig struct {
	Name       string    `json:"name"`
	ServerHost string    `json:"serverHost"`
	Port       int       `json:"port"`
	Username   string    `json:"username"`
	Password   string    `json:"password"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Addr returns the host:port dial address.
func (c *SSHConfig) Addr() string {
	port := c.Port
	if port == 0 {
		port = 22
	}
	return c.ServerHost + ":" + strconv.Itoa(port)
}

// Watcher is a harvesting rule bound to a single SSHConfig.
type Watcher struct {
	Name          string    `json:"name"`
	SSHConfigName string    `json:"sshConfigName"`
	WatchDir      string    `json:"watchDir"`
	RecurDepth    int       `json:"recurDepth"`
	FilePrefix    string    `json:"filePrefix"`
	FileContains  string    `json:"fileContains"`
	FilePostfix   string    `json:"filePostfix"`
	ArchivedLogs  bool      `json:"archivedLogs"`
	Enabled       bool      `json:"enabled"`
	TimeZoneID    string    `json:"javaTimeZoneId"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// GlobPattern assembles the file match pattern from prefix/contains/postfix,
// substituting "*" for empty components.
func (w *Watcher) GlobPattern() string {
	part := func(s string) string {
		if s == "" {
			return "*"
		}
		return s
	}
	return part(w.FilePrefix) + "*" + part(w.FileContains) + "*" + part(w.FilePostfix)
}

// Location resolves the watcher's IANA time zone, defaulting to UTC when the
// zone id is empty or unknown.
func (w *Watcher) Location() *time.Location {
	if w.TimeZoneID != "" {
		if loc, err := time.LoadLocation(w.TimeZoneID); err == nil {
			return loc
		}
	}
	return time.UTC
}

// DiscoveryRecord is one (watcher, discovered file path) observation.
type DiscoveryRecord struct {
	ID               int64             `json:"id"`
	WatcherName      string            `json:"sshLogWatcherName"`
	FullFilePath     string            `json:"fullFilePath"`
	FileSize         int64             `json:"fileSize"`
	CTime            time.Time         `json:"cTime"`
	FileHash         string            `json:"fileHash"`
	CreatedTime      time.Time         `json:"createdTime"`
	UpdatedTime      time.Time         `json:"updatedTime"`
	Status           ConsumptionStatus `json:"consumptionStatus"`
	DuplicatedFile   string            `json:"duplicatedFile,omitempty"`
	FileName         string            `json:"fileName,omitempty"`
	IndexedDocuments int64             `json:"noOfIndexedDocuments"`
}

// sshConfigKind maps SSHConfig to its table. Column names are case-preserving
// per the store contract; the key column is the first entry.
var sshConfigKind = Kind[SSHConfig]{
	Table: "sshConfig",
	Key:   "name",
	Cols: []string{
		"name", "serverHost", "port", "username", "password", "createdAt", "updatedAt",
	},
	Values: func(c *SSHConfig) []any {
		return []any{c.Name, c.ServerHost, c.Port, c.Username, c.Password, c.CreatedAt, c.UpdatedAt}
	},
	Dest: func(c *SSHConfig) []any {
		return []any{&c.Name, &c.ServerHost, &c.Port, &c.Username, &c.Password, &c.CreatedAt, &c.UpdatedAt}
	},
}

var watcherKind = Kind[Watcher]{
	Table: "SSHLogWatcher",
	Key:   "name",
	Cols: []string{
		"name", "sshConfigName", "watchDir", "recurDepth", "filePrefix", "fileContains",
		"filePostfix", "archivedLogs", "enabled", "javaTimeZoneId", "createdAt", "updatedAt",
	},
	Values: func(w *Watcher) []any {
		return []any{
			w.Name, w.SSHConfigName, w.WatchDir, w.RecurDepth, w.FilePrefix, w.FileContains,
			w.FilePostfix, w.ArchivedLogs, w.Enabled, w.TimeZoneID, w.CreatedAt, w.UpdatedAt,
		}
	},
	Dest: func(w *Watcher) []any {
		return []any{
			&w.Name, &w.SSHConfigName, &w.WatchDir, &w.RecurDepth, &w.FilePrefix, &w.FileContains,
			&w.FilePostfix, &w.ArchivedLogs, &w.Enabled, &w.TimeZoneID, &w.CreatedAt, &w.UpdatedAt,
		}
	},
}

var recordKind = Kind[DiscoveryRecord]{
	Table:   "SSHLogWatcherRecord",
	Key:     "id",
	AutoKey: true,
	Cols: []string{
		"id", "sshLogWatcherName", "fullFilePath", "fileSize", "cTime", "fileHash",
		"createdTime", "updatedTime", "consumptionStatus", "duplicatedFile", "fileName",
		"noOfIndexedDocuments",
	},
	Values: func(r *DiscoveryRecord) []any {
		return []any{
			r.ID, r.WatcherName, r.FullFilePath, r.FileSize, r.CTime, r.FileHash,
			r.CreatedTime, r.UpdatedTime, string(r.Status), r.DuplicatedFile, r.FileName,
			r.IndexedDocuments,
		}
	},
	Dest: func(r *DiscoveryRecord) []any {
		return []any{
			&r.ID, &r.WatcherName, &r.FullFilePath, &r.FileSize, &r.CTime, &r.FileHash,
			&r.CreatedTime, &r.UpdatedTime, (*string)(&r.Status), &r.DuplicatedFile, &r.FileName,
			&r.IndexedDocuments,
		}
	},
	SetKey: func(r *DiscoveryRecord, id int64) { r.ID = id },
}
