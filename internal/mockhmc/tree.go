// zhmc-go - IBM Z Hardware Management Console (HMC) Web Services API client
// Copyright 2026 zhmc-go contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package mockhmc implements an in-memory fake of the HMC's REST surface
// and notification bus (spec.md 4.H): a resource tree with auto-generated
// URIs, a URI-to-handler table mirroring the real API's status/reason
// codes and 202/job flow, precondition enforcement on state-changing
// operations, and synthetic notification publication for exercising the
// auto-update engine (component G) without a live HMC.
package mockhmc

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// node is one resource in the mock's in-memory tree.
type node struct {
	mu         sync.Mutex
	class      string
	uri        string
	parentURI  string
	properties map[string]any
}

func newNode(class, parentURI string, properties map[string]any) *node {
	id := uuid.NewString()
	n := &node{
		class:      class,
		uri:        fmt.Sprintf("/api/%ss/%s", class, id),
		parentURI:  parentURI,
		properties: make(map[string]any, len(properties)+1),
	}
	for k, v := range properties {
		n.properties[k] = v
	}
	n.properties["object-uri"] = n.uri
	n.properties["class"] = class
	return n
}

func (n *node) snapshot() map[string]any {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[string]any, len(n.properties))
	for k, v := range n.properties {
		out[k] = v
	}
	return out
}

func (n *node) get(key string) (any, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	v, ok := n.properties[key]
	return v, ok
}

func (n *node) set(key string, value any) {
	n.mu.Lock()
	n.properties[key] = value
	n.mu.Unlock()
}

func (n *node) update(changes map[string]any) {
	n.mu.Lock()
	for k, v := range changes {
		n.properties[k] = v
	}
	n.mu.Unlock()
}

// tree is the mock HMC's resource store: a flat map keyed by URI plus an
// index of child URIs by parent, so list endpoints are O(children) rather
// than a full scan.
type tree struct {
	mu       sync.RWMutex
	byURI    map[string]*node
	children map[string][]string // parentURI -> child URIs, insertion order
}

func newTree() *tree {
	return &tree{
		byURI:    make(map[string]*node),
		children: make(map[string][]string),
	}
}

func (t *tree) add(n *node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byURI[n.uri] = n
	t.children[n.parentURI] = append(t.children[n.parentURI], n.uri)
}

func (t *tree) remove(uri string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.byURI[uri]
	if !ok {
		return
	}
	delete(t.byURI, uri)
	siblings := t.children[n.parentURI]
	for i, u := range siblings {
		if u == uri {
			t.children[n.parentURI] = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
}

func (t *tree) get(uri string) (*node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.byURI[uri]
	return n, ok
}

func (t *tree) listChildren(parentURI, class string) []*node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []*node
	for _, uri := range t.children[parentURI] {
		if n := t.byURI[uri]; n != nil && (class == "" || n.class == class) {
			out = append(out, n)
		}
	}
	return out
}
