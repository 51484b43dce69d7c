// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package discovery

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/wingedpig/logharbor/internal/sshx"
	"github.com/wingedpig/logharbor/internal/store"
)

// RemoteFile is one (path, size, ctime) tuple from a remote listing.
type RemoteFile struct {
	Path  string
	Size  int64
	CTime time.Time
}

// FindCommand builds the remote listing command for a watcher: a find bounded
// by recurDepth, matching the assembled glob, printing path|size|ctime lines.
func FindCommand(w *store.Watcher) string {
	depth := w.RecurDepth
	if depth < 1 {
		depth = 1
	}

	glob := w.GlobPattern()
	match := fmt.Sprintf("-name %s", sshx.ShellQuote(glob))
	if w.ArchivedLogs && !strings.HasSuffix(glob, ".gz") {
		match = fmt.Sprintf(`\( -name %s -o -name %s \)`, sshx.ShellQuote(glob), sshx.ShellQuote(glob+".gz"))
	}

	return fmt.Sprintf(`find %s -maxdepth %d -type f %s -printf '%%p|%%s|%%C@\n'`,
		sshx.ShellQuote(w.WatchDir), depth, match)
}

// ParseListing parses find output into file tuples. Malformed lines are
// skipped; find prints them only when something raced the listing.
func ParseListing(output []byte) []RemoteFile {
	var files []RemoteFile

	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// Split from the right: the path may contain '|'.
		ctimeIdx := strings.LastIndexByte(line, '|')
		if ctimeIdx < 0 {
			continue
		}
		sizeIdx := strings.LastIndexByte(line[:ctimeIdx], '|')
		if sizeIdx < 0 {
			continue
		}

		filePath := line[:sizeIdx]
		size, err := strconv.ParseInt(line[sizeIdx+1:ctimeIdx], 10, 64)
		if err != nil {
			continue
		}
		ctime, err := parseEpoch(line[ctimeIdx+1:])
		if err != nil {
			continue
		}

		files = append(files, RemoteFile{Path: filePath, Size: size, CTime: ctime})
	}

	return files
}

// parseEpoch parses find's %C@ output ("seconds.fraction" since epoch).
func parseEpoch(s string) (time.Time, error) {
	secStr, fracStr, _ := strings.Cut(s, ".")
	sec, err := strconv.ParseInt(secStr, 10, 64)
	if err != nil {
		return time.Time{}, err
	}

	var nsec int64
	if fracStr != "" {
		// Right-pad to nanosecond precision.
		if len(fracStr) > 9 {
			fracStr = fracStr[:9]
		}
		frac, err := strconv.ParseInt(fracStr+strings.Repeat("0", 9-len(fracStr)), 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		nsec = frac
	}

	return time.Unix(sec, nsec).UTC(), nil
}

// FileName returns the base name of a remote path.
func (f RemoteFile) FileName() string {
	return path.Base(f.Path)
}
