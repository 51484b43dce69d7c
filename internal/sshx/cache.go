// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package sshx

import (
	"sync"
)

// clientCache holds one authenticated client per config name. Entries are
// dropped on any transport failure so the next Dial reconnects. Eviction only
// detaches; an evicted client's connection lives on until its last user
// releases it.
type clientCache struct {
	mu      sync.Mutex
	clients map[string]*Client
}

func newClientCache() *clientCache {
	return &clientCache{clients: make(map[string]*Client)}
}

func (c *clientCache) get(name string) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clients[name]
}

func (c *clientCache) put(name string, client *Client) {
	c.mu.Lock()
	old := c.clients[name]
	c.clients[name] = client
	c.mu.Unlock()

	if old != nil && old != client {
		old.detach()
	}
}

// drop removes the entry only if it still refers to the same client, so a
// stale failure cannot evict a fresh reconnection.
func (c *clientCache) drop(name string, client *Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clients[name] == client {
		delete(c.clients, name)
	}
}

// closeAll evicts every cached client. Idle connections close immediately;
// in-flight ones close on their users' final Close.
func (c *clientCache) closeAll() {
	c.mu.Lock()
	clients := make([]*Client, 0, len(c.clients))
	for name, client := range c.clients {
		clients = append(clients, client)
		delete(c.clients, name)
	}
	c.mu.Unlock()

	for _, client := range clients {
		client.detach()
	}
}

// CloseAll closes any cached clients held by the dialer.
func (d *Dialer) CloseAll() {
	if d.cache != nil {
		d.cache.closeAll()
	}
}
