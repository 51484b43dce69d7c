// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"fmt"
	"os"
	"strings"
)

// CheckTLSConfig reports whether TLS should be enabled for the given cert and
// key paths. Setting only one of the pair is a configuration error, as is
// pointing at files that do not exist.
func CheckTLSConfig(certPath, keyPath string) (bool, error) {
	if certPath == "" && keyPath == "" {
		return false, nil
	}
	if certPath == "" || keyPath == "" {
		return false, fmt.Errorf("tls_cert and tls_key must be set together (cert=%q key=%q)", certPath, keyPath)
	}

	for name, p := range map[string]string{"tls_cert": certPath, "tls_key": keyPath} {
		if _, err := os.Stat(expandPath(p)); err != nil {
			return false, fmt.Errorf("%s: %w", name, err)
		}
	}
	return true, nil
}

// expandPath resolves a leading ~ against the current user's home directory.
func expandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return home + path[1:]
}
