// zhmc-go - IBM Z Hardware Management Console (HMC) Web Services API client
// Copyright 2026 zhmc-go contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package resource

import (
	"strings"
	"sync"
	"time"

	"github.com/zhmcclient/zhmc-go/internal/metrics"
)

// uriCacheEntry is a node in the name->URI cache's doubly-linked list,
// adapted from internal/cache/lru.go's LRUEntry: the cached value is
// generalized from a bare time.Time to the (uri, expiresAt) pair the
// name->URI cache actually needs.
type uriCacheEntry struct {
	key       string
	uri       string
	expiresAt time.Time
	prev      *uriCacheEntry
	next      *uriCacheEntry
}

// URICache is a per-resource-class name->URI cache with TTL and LRU
// eviction, directly adapted from internal/cache/lru.go's doubly-linked-
// list LRU with lazy expiration (spec.md 4.F, SPEC_FULL.md 4.F).
type URICache struct {
	mu    sync.Mutex
	class string
	ttl   time.Duration
	cap   int
	items map[string]*uriCacheEntry
	head  *uriCacheEntry
	tail  *uriCacheEntry
}

// NewURICache creates a cache for one resource class. capacity<=0 means
// unbounded (no LRU eviction, only TTL expiry).
func NewURICache(class string, ttl time.Duration, capacity int) *URICache {
	c := &URICache{
		class: class,
		ttl:   ttl,
		cap:   capacity,
		items: make(map[string]*uriCacheEntry),
		head:  &uriCacheEntry{},
		tail:  &uriCacheEntry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

func normalizeName(name string) string { return strings.ToLower(name) }

// Get looks up name, honoring expiry. A hit moves the entry to the front.
func (c *URICache) Get(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := normalizeName(name)
	entry, ok := c.items[key]
	if !ok {
		metrics.CacheMissesTotal.WithLabelValues(c.class).Inc()
		return "", false
	}
	if time.Now().After(entry.expiresAt) {
		c.removeEntry(entry)
		metrics.CacheMissesTotal.WithLabelValues(c.class).Inc()
		return "", false
	}
	c.moveToFront(entry)
	metrics.CacheHitsTotal.WithLabelValues(c.class).Inc()
	return entry.uri, true
}

// Set inserts or refreshes name -> uri.
func (c *URICache) Set(name, uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := normalizeName(name)
	expiresAt := time.Now().Add(c.ttl)
	if entry, ok := c.items[key]; ok {
		entry.uri = uri
		entry.expiresAt = expiresAt
		c.moveToFront(entry)
		return
	}

	entry := &uriCacheEntry{key: key, uri: uri, expiresAt: expiresAt}
	c.addToFront(entry)
	c.items[key] = entry

	if c.cap > 0 {
		for len(c.items) > c.cap {
			c.evictOldest()
		}
	}
	metrics.CacheSize.WithLabelValues(c.class).Set(float64(len(c.items)))
}

// Invalidate drops the entry for name, if any.
func (c *URICache) Invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.items[normalizeName(name)]; ok {
		c.removeEntry(entry)
		metrics.CacheSize.WithLabelValues(c.class).Set(float64(len(c.items)))
	}
}

// InvalidateAll drops every entry (ResourceManager.invalidate_cache()).
func (c *URICache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*uriCacheEntry)
	c.head.next = c.tail
	c.tail.prev = c.head
	metrics.CacheSize.WithLabelValues(c.class).Set(0)
}

func (c *URICache) addToFront(e *uriCacheEntry) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *URICache) moveToFront(e *uriCacheEntry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	c.addToFront(e)
}

func (c *URICache) removeEntry(e *uriCacheEntry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	delete(c.items, e.key)
}

func (c *URICache) evictOldest() {
	oldest := c.tail.prev
	if oldest == c.head {
		return
	}
	c.removeEntry(oldest)
}
