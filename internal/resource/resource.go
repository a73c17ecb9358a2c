// zhmc-go - IBM Z Hardware Management Console (HMC) Web Services API client
// Copyright 2026 zhmc-go contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package resource

import (
	"context"
	"fmt"
	"sync"

	zhmcerrors "github.com/zhmcclient/zhmc-go/internal/errors"
	"github.com/zhmcclient/zhmc-go/internal/session"
)

// Life is a Resource's position in its exists/ceased state machine
// (spec.md 4.F): NewResource starts a Resource in LifeExists (LifeFresh is
// not assigned by this package), and it stays there until an
// inventory-change notification or a local Delete() reports it ceased,
// after which PullFullProperties, UpdateProperties and Delete fail with
// CeasedExistence.
type Life int

const (
	LifeFresh Life = iota
	LifeExists
	LifeCeased
)

// AutoUpdateState is a Resource's position in its auto-update
// enabled/disabled state machine, independent of Life.
type AutoUpdateState int

const (
	AutoUpdateDisabled AutoUpdateState = iota
	AutoUpdateEnabled
)

// Resource is a single HMC resource instance: a URI, its resource
// class, and a cached view of its properties (spec.md 4.F). The property
// map is guarded by the Resource's lock: PullFullProperties replaces it,
// while UpdateProperties and auto-update property-change events merge
// into it in place, and Properties() hands out a copy.
type Resource struct {
	mu         sync.RWMutex
	uri        string
	class      string
	session    *session.Session
	properties map[string]Value
	life       Life
	autoUpdate AutoUpdateState
}

// NewResource wraps a URI as a Resource with the given initial
// properties (typically just the name and object-uri returned from a
// List() or Find() call).
func NewResource(sess *session.Session, class, uri string, initial map[string]any) *Resource {
	props := make(map[string]Value, len(initial))
	for k, v := range initial {
		props[k] = FromAny(v)
	}
	return &Resource{
		uri:        uri,
		class:      class,
		session:    sess,
		properties: props,
		life:       LifeExists,
	}
}

// URI returns the resource's object URI.
func (r *Resource) URI() string { return r.uri }

// Class returns the resource's class name (e.g. "cpc", "partition").
func (r *Resource) Class() string { return r.class }

// Properties returns an immutable snapshot of the resource's locally
// known properties. The returned map is never mutated by the Resource
// afterward, so callers may retain and range over it without locking.
func (r *Resource) Properties() map[string]Value {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot := make(map[string]Value, len(r.properties))
	for k, v := range r.properties {
		snapshot[k] = v
	}
	return snapshot
}

// Prop returns a single locally known property, or the zero Value
// (KindNull) and false if it has not been pulled or cached yet.
func (r *Resource) Prop(name string) (Value, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.properties[name]
	return v, ok
}

// GetProperty returns a single property, pulling full properties from
// the HMC first if it is not already locally known (spec.md 4.F).
func (r *Resource) GetProperty(ctx context.Context, name string) (Value, error) {
	if v, ok := r.Prop(name); ok {
		return v, nil
	}
	if err := r.PullFullProperties(ctx); err != nil {
		return Value{}, err
	}
	v, ok := r.Prop(name)
	if !ok {
		return Value{}, fmt.Errorf("resource %s has no property %q", r.uri, name)
	}
	return v, nil
}

// PullFullProperties issues GET <uri> and replaces the resource's
// locally cached properties wholesale with the response.
func (r *Resource) PullFullProperties(ctx context.Context) error {
	if err := r.checkAlive(); err != nil {
		return err
	}
	body, err := r.session.Get(ctx, r.uri)
	if err != nil {
		return err
	}
	props := make(map[string]Value, len(body))
	for k, v := range body {
		props[k] = FromAny(v)
	}
	r.mu.Lock()
	r.properties = props
	r.life = LifeExists
	r.mu.Unlock()
	return nil
}

// UpdateProperties issues POST <uri> with the given property updates
// and, on success, merges them into the locally cached properties
// (spec.md 4.F: a successful update is reflected locally without
// requiring a follow-up PullFullProperties).
func (r *Resource) UpdateProperties(ctx context.Context, updates map[string]Value) error {
	if err := r.checkAlive(); err != nil {
		return err
	}
	body := make(map[string]any, len(updates))
	for k, v := range updates {
		body[k] = v.ToAny()
	}
	_, err := r.session.Post(ctx, r.uri, session.PostOptions{Body: body})
	if err != nil {
		return err
	}
	r.mu.Lock()
	for k, v := range updates {
		r.properties[k] = v
	}
	r.mu.Unlock()
	return nil
}

// Delete issues DELETE <uri> and, on success, marks the Resource
// ceased: further PullFullProperties, UpdateProperties and Delete calls
// fail with CeasedExistence.
func (r *Resource) Delete(ctx context.Context) error {
	if err := r.checkAlive(); err != nil {
		return err
	}
	if err := r.session.Delete(ctx, r.uri); err != nil {
		return err
	}
	r.mu.Lock()
	r.life = LifeCeased
	r.mu.Unlock()
	return nil
}

// EnableAutoUpdate marks the resource as subscribed to property-change
// and status-change notifications. Actual subscription bookkeeping is
// owned by the autoupdate engine (SPEC_FULL.md 4.G); this flag records
// the Resource's own view of its state for IsAutoUpdateEnabled().
func (r *Resource) EnableAutoUpdate() {
	r.mu.Lock()
	r.autoUpdate = AutoUpdateEnabled
	r.mu.Unlock()
}

// DisableAutoUpdate clears the auto-update subscription flag.
func (r *Resource) DisableAutoUpdate() {
	r.mu.Lock()
	r.autoUpdate = AutoUpdateDisabled
	r.mu.Unlock()
}

// IsAutoUpdateEnabled reports the resource's current auto-update flag.
func (r *Resource) IsAutoUpdateEnabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.autoUpdate == AutoUpdateEnabled
}

// Life reports the resource's current exists/ceased state.
func (r *Resource) Life() Life {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.life
}

// ApplyPropertyChange merges a property-change notification's payload
// into the locally cached properties, called by the autoupdate engine.
func (r *Resource) ApplyPropertyChange(changes map[string]Value) {
	r.mu.Lock()
	for k, v := range changes {
		r.properties[k] = v
	}
	r.mu.Unlock()
}

// MarkCeased marks the resource ceased in response to an
// inventory-change-remove notification, called by the autoupdate engine.
func (r *Resource) MarkCeased() {
	r.mu.Lock()
	r.life = LifeCeased
	r.mu.Unlock()
}

func (r *Resource) checkAlive() error {
	if r.Life() == LifeCeased {
		return &zhmcerrors.CeasedExistence{ResourceURI: r.uri}
	}
	return nil
}
