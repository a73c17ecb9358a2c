// zhmc-go - IBM Z Hardware Management Console (HMC) Web Services API client
// Copyright 2026 zhmc-go contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package autoupdate implements the auto-update engine (spec.md 4.G): a
// per-Session singleton that owns a dedicated notification receiver for
// the Session's built-in object-notification topic, maintains the
// resource-URI->Resources and resource-class->Managers registries, and
// applies property-change/status-change/inventory-change notifications
// to whichever subscribers opted in. Subscribed-count tracking is
// grounded on internal/sync/event_publisher.go's publishWg/atomic-counter
// style of keeping async work observable; the dispatch loop itself is a
// suture.Service run under supervisor.SessionTree.AddAutoUpdateService.
package autoupdate

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/zhmcclient/zhmc-go/internal/logging"
	"github.com/zhmcclient/zhmc-go/internal/metrics"
	"github.com/zhmcclient/zhmc-go/internal/notify"
	"github.com/zhmcclient/zhmc-go/internal/resource"
)

// Engine is the per-Session auto-update singleton. Construct one per
// Session on the first enable_auto_update call; Serve runs its dispatch
// loop as a suture.Service.
type Engine struct {
	receiver *notify.Receiver
	logger   zerolog.Logger

	mu        sync.Mutex
	resources map[string]map[*resource.Resource]struct{} // resource URI -> subscribers
	managers  map[string]map[*resource.Manager]struct{}  // resource class -> subscribers
}

// NewEngine creates an Engine bound to a notification receiver already
// subscribed to the Session's object-notification topic.
func NewEngine(receiver *notify.Receiver) *Engine {
	return &Engine{
		receiver:  receiver,
		logger:    logging.Logger().With().Str("component", "autoupdate").Logger(),
		resources: make(map[string]map[*resource.Resource]struct{}),
		managers:  make(map[string]map[*resource.Manager]struct{}),
	}
}

// SubscribeResource registers r to receive property-change/status-change/
// inventory-change-remove notifications for its URI.
func (e *Engine) SubscribeResource(r *resource.Resource) {
	e.mu.Lock()
	defer e.mu.Unlock()
	set, ok := e.resources[r.URI()]
	if !ok {
		set = make(map[*resource.Resource]struct{})
		e.resources[r.URI()] = set
	}
	set[r] = struct{}{}
	r.EnableAutoUpdate()
	e.updateSubscriberGauge()
}

// UnsubscribeResource removes r's subscription.
func (e *Engine) UnsubscribeResource(r *resource.Resource) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if set, ok := e.resources[r.URI()]; ok {
		delete(set, r)
		if len(set) == 0 {
			delete(e.resources, r.URI())
		}
	}
	r.DisableAutoUpdate()
	e.updateSubscriberGauge()
}

// SubscribeManager registers m to receive inventory-change notifications
// for its resource class.
func (e *Engine) SubscribeManager(class string, m *resource.Manager) {
	e.mu.Lock()
	defer e.mu.Unlock()
	set, ok := e.managers[class]
	if !ok {
		set = make(map[*resource.Manager]struct{})
		e.managers[class] = set
	}
	set[m] = struct{}{}
	e.updateSubscriberGauge()
}

// UnsubscribeManager removes m's subscription.
func (e *Engine) UnsubscribeManager(class string, m *resource.Manager) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if set, ok := e.managers[class]; ok {
		delete(set, m)
		if len(set) == 0 {
			delete(e.managers, class)
		}
	}
	e.updateSubscriberGauge()
}

// Empty reports whether the engine has no subscribers left, the signal
// its owning Session uses to tear the engine (and its receiver) down.
func (e *Engine) Empty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.resources) == 0 && len(e.managers) == 0
}

func (e *Engine) updateSubscriberGauge() {
	count := 0
	for _, set := range e.resources {
		count += len(set)
	}
	for _, set := range e.managers {
		count += len(set)
	}
	metrics.AutoUpdateSubscribers.Set(float64(count))
}

// Serve implements suture.Service: it drains the receiver's notification
// channel and applies each one to subscribed Resources/Managers until ctx
// is canceled or that channel is closed (spec.md 4.G, 5). Receiver.Close
// does not close the channel, so after Close Serve returns via ctx.
func (e *Engine) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-e.receiver.Notifications():
			if !ok {
				return nil
			}
			e.Apply(n)
		}
	}
}

// Apply dispatches a single decoded notification to subscribed
// Resources/Managers, the same path Serve uses for every frame it reads
// off the receiver. Exported so mock-HMC-backed end-to-end tests can feed
// synthetic notifications straight in without a live STOMP connection.
func (e *Engine) Apply(n notify.Notification) {
	if n.Err != nil {
		e.logger.Warn().Err(n.Err).Str("topic", n.Topic).Msg("notification error, continuing")
		return
	}

	switch n.Type {
	case "property-change", "status-change":
		e.applyPropertyOrStatusChange(n)
	case "inventory-change":
		e.applyInventoryChange(n)
	default:
		// os-message, job-completion, and anything else carry no
		// resource-model state to apply (spec.md 4.G: ignored without
		// error for unsubscribed notification types).
	}
	metrics.AutoUpdateEventsAppliedTotal.WithLabelValues(n.Type).Inc()
}

func (e *Engine) applyPropertyOrStatusChange(n notify.Notification) {
	uri, _ := n.Body["element-uri"].(string)
	if uri == "" {
		uri, _ = n.Body["object-uri"].(string)
	}
	if uri == "" {
		return
	}

	changeReports, _ := n.Body["change-reports"].([]any)
	changes := make(map[string]resource.Value)
	for _, raw := range changeReports {
		report, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := report["property-name"].(string)
		if name == "" {
			continue
		}
		changes[name] = resource.FromAny(report["new-value"])
	}
	if len(changes) == 0 {
		return
	}

	e.mu.Lock()
	subs := e.resources[uri]
	targets := make([]*resource.Resource, 0, len(subs))
	for r := range subs {
		targets = append(targets, r)
	}
	e.mu.Unlock()

	for _, r := range targets {
		r.ApplyPropertyChange(changes)
	}
}

func (e *Engine) applyInventoryChange(n notify.Notification) {
	changeType, _ := n.Body["notification-change-type"].(string)
	uri, _ := n.Body["element-uri"].(string)
	if uri == "" {
		uri, _ = n.Body["object-uri"].(string)
	}
	class, _ := n.Body["class"].(string)
	if uri == "" || class == "" {
		return
	}

	e.mu.Lock()
	managers := e.managers[class]
	targets := make([]*resource.Manager, 0, len(managers))
	for m := range managers {
		targets = append(targets, m)
	}
	resourceSubs := e.resources[uri]
	resourceTargets := make([]*resource.Resource, 0, len(resourceSubs))
	for r := range resourceSubs {
		resourceTargets = append(resourceTargets, r)
	}
	e.mu.Unlock()

	switch changeType {
	case "add":
		for _, m := range targets {
			m.ApplyInventoryChange([]*resource.Resource{resource.NewResource(nil, class, uri, n.Body)}, nil)
		}
	case "remove":
		for _, m := range targets {
			m.ApplyInventoryChange(nil, []string{uri})
			m.InvalidateCache()
		}
		for _, r := range resourceTargets {
			r.MarkCeased()
		}
	}
}
