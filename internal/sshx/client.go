// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package sshx provides the SSH transport: authenticated sessions to remote
// hosts, command execution, and streaming reads of remote files.
package sshx

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/wingedpig/logharbor/internal/store"
)

// Error taxonomy for transport failures. Callers distinguish these with
// errors.Is; the wrapped messages carry host and command detail.
var (
	ErrAuth     = errors.New("ssh authentication failed")
	ErrNetwork  = errors.New("ssh transport failure")
	ErrNotFound = errors.New("remote file not found")
	ErrCommand  = errors.New("remote command failed")
)

// Dialer opens authenticated SSH clients from stored connection configs.
type Dialer struct {
	timeout time.Duration
	cache   *clientCache
}

// NewDialer creates a dialer with the given transport timeout. When cache is
// true, authenticated clients are reused across operations and evicted on any
// failure.
func NewDialer(timeout time.Duration, cache bool) *Dialer {
	d := &Dialer{timeout: timeout}
	if cache {
		d.cache = newClientCache()
	}
	return d
}

// Dial opens (or reuses) an authenticated client for the given config. Every
// successful Dial is balanced by one Close; a cached client's connection stays
// up until its last user releases it and the cache evicts it.
func (d *Dialer) Dial(cfg *store.SSHConfig) (*Client, error) {
	if d.cache != nil {
		if c := d.cache.get(cfg.Name); c != nil && c.acquire() {
			return c, nil
		}
	}

	clientCfg := &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(cfg.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         d.timeout,
	}

	conn, err := ssh.Dial("tcp", cfg.Addr(), clientCfg)
	if err != nil {
		if strings.Contains(err.Error(), "unable to authenticate") ||
			strings.Contains(err.Error(), "permission denied") {
			return nil, fmt.Errorf("%w: %s@%s: %v", ErrAuth, cfg.Username, cfg.Addr(), err)
		}
		return nil, fmt.Errorf("%w: dial %s: %v", ErrNetwork, cfg.Addr(), err)
	}

	client := &Client{name: cfg.Name, host: cfg.ServerHost, conn: conn, dialer: d, refs: 1}
	if d.cache != nil {
		client.cached = true
		d.cache.put(cfg.Name, client)
	}
	return client, nil
}

// Client is an authenticated connection to one remote host. It is safe for
// concurrent use; each operation runs in its own session. Dial hands the same
// client to concurrent callers when caching is on, so the connection is
// reference counted: Close releases one Dial, and the connection itself goes
// down only once the last user is gone and the cache no longer holds it.
type Client struct {
	name   string
	host   string
	conn   *ssh.Client
	dialer *Dialer

	mu     sync.Mutex
	refs   int
	cached bool
	closed bool
}

// Host returns the remote host name.
func (c *Client) Host() string { return c.host }

// acquire registers one more user. Fails on a client whose connection is
// already torn down; the caller redials.
func (c *Client) acquire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.refs++
	return true
}

// Close releases one Dial. The connection closes only when no other user holds
// the client and it is not retained by the cache.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refs > 0 {
		c.refs--
	}
	if c.refs > 0 || c.cached || c.closed {
		return nil
	}
	c.closed = true
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// detach removes the cache's retention of the client. With no users left the
// connection closes now; otherwise the last Close closes it.
func (c *Client) detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = false
	if c.refs > 0 || c.closed {
		return
	}
	c.closed = true
	if c.conn != nil {
		c.conn.Close()
	}
}

// fail evicts a cached client after a transport failure so the next Dial
// reconnects. In-flight users keep the old connection until they Close.
func (c *Client) fail() {
	if c.dialer != nil && c.dialer.cache != nil {
		c.dialer.cache.drop(c.name, c)
	}
	c.detach()
}

// ExecCapture runs a shell command and returns its stdout, stderr, and exit
// code once finished.
func (c *Client) ExecCapture(command string) (stdout, stderr []byte, exitCode int, err error) {
	sess, err := c.conn.NewSession()
	if err != nil {
		c.fail()
		return nil, nil, -1, fmt.Errorf("%w: session on %s: %v", ErrNetwork, c.host, err)
	}
	defer sess.Close()

	var outBuf, errBuf bytes.Buffer
	sess.Stdout = &outBuf
	sess.Stderr = &errBuf

	if err := sess.Run(command); err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return outBuf.Bytes(), errBuf.Bytes(), exitErr.ExitStatus(),
				fmt.Errorf("%w: %q exited %d on %s: %s", ErrCommand, command,
					exitErr.ExitStatus(), c.host, strings.TrimSpace(errBuf.String()))
		}
		c.fail()
		return outBuf.Bytes(), errBuf.Bytes(), -1, fmt.Errorf("%w: %q on %s: %v", ErrNetwork, command, c.host, err)
	}

	return outBuf.Bytes(), errBuf.Bytes(), 0, nil
}

// OpenFileStream returns a streaming read over a remote file.
func (c *Client) OpenFileStream(path string) (io.ReadCloser, error) {
	return c.openStream(fmt.Sprintf("cat -- %s", ShellQuote(path)))
}

// OpenFileStreamRange returns a byte-range read of a remote file, starting at
// offset and limited to maxBytes. Used for identity sampling of file heads.
func (c *Client) OpenFileStreamRange(path string, offset, maxBytes int64) (io.ReadCloser, error) {
	return c.openStream(rangeCommand(path, offset, maxBytes))
}

// rangeCommand builds the remote pipeline for a byte-range read. tail -c +N
// is 1-based.
func rangeCommand(path string, offset, maxBytes int64) string {
	return fmt.Sprintf("tail -c +%d -- %s | head -c %d", offset+1, ShellQuote(path), maxBytes)
}

func (c *Client) openStream(command string) (io.ReadCloser, error) {
	sess, err := c.conn.NewSession()
	if err != nil {
		c.fail()
		return nil, fmt.Errorf("%w: session on %s: %v", ErrNetwork, c.host, err)
	}

	stderr := &bytes.Buffer{}
	sess.Stderr = stderr

	pipe, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("%w: stdout pipe on %s: %v", ErrNetwork, c.host, err)
	}

	if err := sess.Start(command); err != nil {
		sess.Close()
		c.fail()
		return nil, fmt.Errorf("%w: start %q on %s: %v", ErrNetwork, command, c.host, err)
	}

	return &remoteStream{r: pipe, sess: sess, stderr: stderr, host: c.host}, nil
}

// remoteStream wraps a session's stdout. EOF is only reported after the remote
// command exits cleanly; a non-zero exit surfaces as an error from Read so
// callers cannot mistake a failed cat for an empty file.
type remoteStream struct {
	r      io.Reader
	sess   *ssh.Session
	stderr *bytes.Buffer
	host   string

	waited  bool
	waitErr error
}

func (s *remoteStream) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err == io.EOF {
		if werr := s.wait(); werr != nil {
			return n, werr
		}
	}
	return n, err
}

func (s *remoteStream) wait() error {
	if s.waited {
		return s.waitErr
	}
	s.waited = true

	if err := s.sess.Wait(); err != nil {
		msg := strings.TrimSpace(s.stderr.String())
		if strings.Contains(msg, "No such file or directory") {
			s.waitErr = fmt.Errorf("%w: %s: %s", ErrNotFound, s.host, msg)
		} else {
			s.waitErr = fmt.Errorf("%w: %s: %v: %s", ErrCommand, s.host, err, msg)
		}
	}
	return s.waitErr
}

func (s *remoteStream) Close() error {
	err := s.wait()
	s.sess.Close()
	return err
}

// ShellQuote wraps s in single quotes, escaping embedded quotes, so remote
// paths and patterns survive the remote shell.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
