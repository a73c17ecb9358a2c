// zhmc-go - IBM Z Hardware Management Console (HMC) Web Services API client
// Copyright 2026 zhmc-go contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package resource

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	zhmcerrors "github.com/zhmcclient/zhmc-go/internal/errors"
	"github.com/zhmcclient/zhmc-go/internal/retry"
	"github.com/zhmcclient/zhmc-go/internal/session"
)

// FilterArgs is a map of property-name -> match-value pairs (spec.md 4.F:
// list/find/findall accept filter arguments; a property absent from a
// resource's properties never matches). It keeps no order: the order in
// which arguments are applied or sent as query parameters is not defined.
type FilterArgs map[string]Value

// serverFilterable names the well-known HMC list query parameters that
// the real API accepts server-side, one per resource class family; any
// filter argument not in this set is applied client-side after the list
// response comes back. This mirrors the reference implementation's
// split between "query parms built into the URI" and "filter-patterns
// applied in Python after the fact".
var serverFilterable = map[string]bool{
	"name":   true,
	"status": true,
}

// Manager maintains the list of known Resources of one class under a
// parent URI (e.g. all partitions of one CPC), the name->URI cache for
// that class, and (once auto-update is enabled) a live list kept
// current by inventory-change notifications (spec.md 4.F).
type Manager struct {
	mu         sync.RWMutex
	class      string
	listURI    string // e.g. "/api/partitions" or "/api/cpcs/1/partitions"
	memberKey  string // JSON array key in the list response, e.g. "partitions"
	session    *session.Session
	cache      *URICache
	resources  map[string]*Resource // by URI
	autoUpdate bool
}

// NewManager creates a Manager for one resource class. The name->URI
// cache's TTL is taken from the session's configured retry/timeout
// policy (spec.md 4.B's NameURICacheTTL); a nil session (used in tests
// that never dial out) falls back to the policy default.
func NewManager(sess *session.Session, class, listURI, memberKey string) *Manager {
	ttl := retry.DefaultPolicy().NameURICacheTTL
	if sess != nil {
		ttl = sess.Policy().NameURICacheTTL
	}
	return &Manager{
		class:     class,
		listURI:   listURI,
		memberKey: memberKey,
		session:   sess,
		cache:     NewURICache(class, ttl, 0),
		resources: make(map[string]*Resource),
	}
}

// List returns every resource of this manager's class, applying filter
// arguments server-side where possible and client-side for the rest.
// When auto-update is enabled the live list is returned directly
// instead of re-querying the HMC (spec.md 4.F).
func (m *Manager) List(ctx context.Context, filters FilterArgs) ([]*Resource, error) {
	if m.autoUpdateEnabled() {
		return m.filterLive(filters)
	}
	return m.queryAndFilter(ctx, filters)
}

// Find returns exactly one resource matching filters, using the
// name->URI cache when filters is a single "name" equality filter. A
// cache hit resolves the resource with a single GET <uri> instead of a
// full list query; a stale cached URI (e.g. the resource was deleted
// out of band) invalidates the entry and falls through to List.
func (m *Manager) Find(ctx context.Context, filters FilterArgs) (*Resource, error) {
	if len(filters) == 1 {
		if nameVal, ok := filters["name"]; ok {
			if name, ok := nameVal.AsString(); ok {
				if uri, ok := m.cache.Get(name); ok {
					if r, ok := m.getCachedResource(uri); ok {
						return r, nil
					}
					r := NewResource(m.session, m.class, uri, nil)
					if err := r.PullFullProperties(ctx); err == nil {
						return r, nil
					}
					m.cache.Invalidate(name)
				}
			}
		}
	}

	results, err := m.List(ctx, filters)
	if err != nil {
		return nil, err
	}
	switch len(results) {
	case 0:
		return nil, &zhmcerrors.NotFound{ManagerClass: m.class, Filter: filterArgsToAny(filters)}
	case 1:
		return results[0], nil
	default:
		uris := make([]string, len(results))
		for i, r := range results {
			uris[i] = r.URI()
		}
		return nil, &zhmcerrors.NoUniqueMatch{ManagerClass: m.class, Filter: filterArgsToAny(filters), URIs: uris}
	}
}

func filterArgsToAny(filters FilterArgs) map[string]any {
	out := make(map[string]any, len(filters))
	for k, v := range filters {
		out[k] = v.ToAny()
	}
	return out
}

// FindAll returns every resource matching filters (Find without the
// exactly-one constraint); equivalent to List when auto-update is on.
func (m *Manager) FindAll(ctx context.Context, filters FilterArgs) ([]*Resource, error) {
	return m.List(ctx, filters)
}

// InvalidateCache drops every name->URI cache entry for this manager's
// class (spec.md 4.F: called after out-of-band changes the client
// cannot observe, e.g. another client renaming a resource).
func (m *Manager) InvalidateCache() {
	m.cache.InvalidateAll()
}

// EnableAutoUpdate switches the manager to a live, notification-
// maintained list. The autoupdate engine (component G) is responsible
// for calling ApplyInventoryChange as add/remove notifications arrive;
// this just flips the mode and seeds the live list with a fresh query.
func (m *Manager) EnableAutoUpdate(ctx context.Context) error {
	resources, err := m.queryAndFilter(ctx, nil)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.autoUpdate = true
	for _, r := range resources {
		m.resources[r.URI()] = r
	}
	m.mu.Unlock()
	return nil
}

// DisableAutoUpdate switches the manager back to query-on-demand mode.
func (m *Manager) DisableAutoUpdate() {
	m.mu.Lock()
	m.autoUpdate = false
	m.mu.Unlock()
}

func (m *Manager) autoUpdateEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.autoUpdate
}

func (m *Manager) getCachedResource(uri string) (*Resource, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.resources[uri]
	return r, ok
}

// ApplyPropertyChange merges changes into the live-list resource with uri,
// if this manager holds it. The autoupdate engine does not call it; it
// applies property-change notifications to subscribed Resources only.
func (m *Manager) ApplyPropertyChange(uri string, changes map[string]Value) {
	m.mu.RLock()
	r, ok := m.resources[uri]
	m.mu.RUnlock()
	if ok {
		r.ApplyPropertyChange(changes)
	}
}

// ApplyInventoryChange is invoked by the autoupdate engine on an
// inventory-change-add/remove notification.
func (m *Manager) ApplyInventoryChange(added []*Resource, removedURIs []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range added {
		m.resources[r.URI()] = r
		if name, ok := r.Prop("name"); ok {
			if s, ok := name.AsString(); ok {
				m.cache.Set(s, r.URI())
			}
		}
	}
	for _, uri := range removedURIs {
		if r, ok := m.resources[uri]; ok {
			r.MarkCeased()
			delete(m.resources, uri)
		}
	}
}

func (m *Manager) filterLive(filters FilterArgs) ([]*Resource, error) {
	m.mu.RLock()
	candidates := make([]*Resource, 0, len(m.resources))
	for _, r := range m.resources {
		candidates = append(candidates, r)
	}
	m.mu.RUnlock()
	return applyClientFilters(candidates, filters)
}

func (m *Manager) queryAndFilter(ctx context.Context, filters FilterArgs) ([]*Resource, error) {
	serverFilters, clientFilters := splitFilters(filters)

	uri := m.listURI
	if q := buildQuery(serverFilters); q != "" {
		uri = uri + "?" + q
	}

	body, err := m.session.Get(ctx, uri)
	if err != nil {
		return nil, err
	}

	members, _ := body[m.memberKey].([]any)
	resources := make([]*Resource, 0, len(members))
	for _, member := range members {
		props, ok := member.(map[string]any)
		if !ok {
			continue
		}
		uriVal, _ := props["object-uri"].(string)
		if uriVal == "" {
			uriVal, _ = props["element-uri"].(string)
		}
		r := NewResource(m.session, m.class, uriVal, props)
		resources = append(resources, r)
		if name, ok := r.Prop("name"); ok {
			if s, ok := name.AsString(); ok {
				m.cache.Set(s, uriVal)
			}
		}
	}

	return applyClientFilters(resources, clientFilters)
}

func splitFilters(filters FilterArgs) (server, client FilterArgs) {
	server = FilterArgs{}
	client = FilterArgs{}
	for name, match := range filters {
		if serverFilterable[name] {
			server[name] = match
		} else {
			client[name] = match
		}
	}
	return server, client
}

func buildQuery(filters FilterArgs) string {
	values := url.Values{}
	for name, match := range filters {
		if s, ok := match.AsString(); ok {
			values.Set(name, s)
		} else {
			values.Set(name, fmt.Sprintf("%v", match.ToAny()))
		}
	}
	return values.Encode()
}

func applyClientFilters(candidates []*Resource, filters FilterArgs) ([]*Resource, error) {
	if len(filters) == 0 {
		return candidates, nil
	}
	out := make([]*Resource, 0, len(candidates))
	for _, r := range candidates {
		match, err := matchesAll(r, filters)
		if err != nil {
			return nil, err
		}
		if match {
			out = append(out, r)
		}
	}
	return out, nil
}

func matchesAll(r *Resource, filters FilterArgs) (bool, error) {
	for name, want := range filters {
		got, ok := r.Prop(name)
		if !ok {
			// A property absent from the resource never matches
			// (spec.md 4.F).
			return false, nil
		}
		ok, err := got.MatchFilter(want)
		if err != nil {
			return false, &zhmcerrors.FilterConversionError{Property: name, Value: want.ToAny(), WantType: got.Kind().String()}
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// classPathFromURI extracts the resource class segment from a URI such
// as "/api/partitions/<oid>", used when constructing Resources from
// notification payloads that only carry a URI (component G).
func classPathFromURI(uri string) string {
	parts := strings.Split(strings.Trim(uri, "/"), "/")
	if len(parts) >= 2 {
		return parts[1]
	}
	return ""
}
