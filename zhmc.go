// zhmc-go - IBM Z Hardware Management Console (HMC) Web Services API client
// Copyright 2026 zhmc-go contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package zhmc is a client library for the IBM Z Hardware Management
// Console (HMC) Web Services API: HTTPS/REST request-response against the
// HMC's resource tree plus a STOMP-based notification bus, wrapped in a
// Session/Resource/Manager model that keeps an in-memory view coherent
// with the server (spec.md section 1).
//
// The package's exported surface is a thin facade over internal/session,
// internal/resource, internal/notify, internal/autoupdate and
// internal/supervisor: those packages hold the implementation, this file
// holds the stable public API a caller outside this module can import.
package zhmc

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/zhmcclient/zhmc-go/internal/autoupdate"
	"github.com/zhmcclient/zhmc-go/internal/logging"
	"github.com/zhmcclient/zhmc-go/internal/notify"
	"github.com/zhmcclient/zhmc-go/internal/resource"
	"github.com/zhmcclient/zhmc-go/internal/retry"
	"github.com/zhmcclient/zhmc-go/internal/session"
	"github.com/zhmcclient/zhmc-go/internal/supervisor"
	"github.com/zhmcclient/zhmc-go/internal/transport"
)

// Re-exported types: the public API is these aliases plus the Client
// below. Aliasing (not wrapping) keeps the exported identity identical to
// the internal type, so e.g. a *Resource returned by a Manager built
// through Client is the same type a caller can type-assert against
// errors.As results from either package.
type (
	Session  = session.Session
	Resource = resource.Resource
	Manager  = resource.Manager
	Value    = resource.Value
	Kind     = resource.Kind

	FilterArgs = resource.FilterArgs

	CertVerify = transport.CertVerify
	Policy     = retry.Policy

	SessionConfig = session.Config
)

const (
	CertVerifyOff      = transport.CertVerifyOff
	CertVerifyPlatform = transport.CertVerifyPlatform
	CertVerifyCustomCA = transport.CertVerifyCustomCA
)

var (
	DefaultPolicy = retry.DefaultPolicy

	StringValue  = resource.String
	Int64Value   = resource.Int64
	Float64Value = resource.Float64
	BoolValue    = resource.Bool
	ListValue    = resource.List
	MapValue     = resource.Map
	NullValue    = resource.Null
)

// NewSession constructs a Session without logging on (spec.md 4.D).
func NewSession(cfg SessionConfig) (*Session, error) {
	return session.New(cfg)
}

// Client bundles a logged-on Session with its Manager registry, its
// notification/auto-update supervisor tree, and the auto-update engine
// singleton lifecycle (spec.md 4.G: "per-Session singleton created on
// first enable_auto_update, destroyed when subscriber set becomes
// empty"). Managers are created through Client.Manager so every one of
// them shares the Client's auto-update engine.
type Client struct {
	session *session.Session

	mu         sync.Mutex
	managers   map[string]*resource.Manager // by list URI, so repeat calls reuse one Manager
	engine     *autoupdate.Engine
	receiver   *notify.Receiver
	cancelTree context.CancelFunc
	cfg        SessionConfig
}

// NewClient constructs a Client around a fresh Session. Logon is not
// performed until the first request (or an explicit call to Logon).
func NewClient(cfg SessionConfig) (*Client, error) {
	sess, err := session.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{
		session:  sess,
		managers: make(map[string]*resource.Manager),
		cfg:      cfg,
	}, nil
}

// Session returns the underlying Session, for callers that need direct
// Get/Post/Delete access alongside the Resource/Manager model.
func (c *Client) Session() *Session { return c.session }

// Logon authenticates against the first reachable candidate host.
func (c *Client) Logon(ctx context.Context) error { return c.session.Logon(ctx) }

// Logoff tears down the session token and, if running, the auto-update
// engine and its supervisor tree.
func (c *Client) Logoff(ctx context.Context) error {
	c.stopEngine()
	return c.session.Logoff(ctx)
}

// Manager returns (creating on first use) the generic Manager for one
// resource class. class is the resource class name (e.g. "partition"),
// listURI the HMC list endpoint, memberKey the JSON array key in the list
// response (spec.md 4.F; concrete resource-type catalogs are a Non-goal —
// callers name their own class/listURI/memberKey triples).
func (c *Client) Manager(class, listURI, memberKey string) *resource.Manager {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.managers[listURI]; ok {
		return m
	}
	m := resource.NewManager(c.session, class, listURI, memberKey)
	c.managers[listURI] = m
	return m
}

// EnableAutoUpdate subscribes r to live property/status updates,
// lazily starting the per-Client auto-update engine and its dedicated
// notification receiver on the Session's built-in object-notification
// topic on first use (spec.md 4.G).
func (c *Client) EnableAutoUpdate(ctx context.Context, r *resource.Resource) error {
	eng, err := c.ensureEngine(ctx)
	if err != nil {
		return err
	}
	eng.SubscribeResource(r)
	return nil
}

// DisableAutoUpdate unsubscribes r; when no Resource or Manager remains
// subscribed the engine and its receiver are torn down (spec.md 4.G).
func (c *Client) DisableAutoUpdate(r *resource.Resource) {
	c.mu.Lock()
	eng := c.engine
	c.mu.Unlock()
	if eng == nil {
		return
	}
	eng.UnsubscribeResource(r)
	c.teardownEngineIfEmpty()
}

// EnableManagerAutoUpdate switches m to a live, notification-maintained
// list and subscribes it to inventory-change notifications for class.
func (c *Client) EnableManagerAutoUpdate(ctx context.Context, class string, m *resource.Manager) error {
	eng, err := c.ensureEngine(ctx)
	if err != nil {
		return err
	}
	if err := m.EnableAutoUpdate(ctx); err != nil {
		return err
	}
	eng.SubscribeManager(class, m)
	return nil
}

// DisableManagerAutoUpdate unsubscribes m and switches it back to
// query-on-demand mode.
func (c *Client) DisableManagerAutoUpdate(class string, m *resource.Manager) {
	c.mu.Lock()
	eng := c.engine
	c.mu.Unlock()
	m.DisableAutoUpdate()
	if eng == nil {
		return
	}
	eng.UnsubscribeManager(class, m)
	c.teardownEngineIfEmpty()
}

func (c *Client) ensureEngine(ctx context.Context) (*autoupdate.Engine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.engine != nil {
		return c.engine, nil
	}

	if err := c.session.Logon(ctx); err != nil {
		return nil, err
	}
	topic := c.session.NotificationTopic()
	if topic == "" {
		return nil, fmt.Errorf("zhmc: session did not report a notification topic at logon")
	}

	recv := notify.NewReceiver(notify.Config{
		Host:       hostOnly(c.session.Host()),
		Userid:     c.cfg.Userid,
		Password:   c.cfg.Password,
		Topics:     []string{topic},
		CertVerify: c.cfg.CertVerify,
		CACertPath: c.cfg.CACertPath,
	})

	tree := supervisor.NewSessionTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddNotifyService(recv)
	eng := autoupdate.NewEngine(recv)
	tree.AddAutoUpdateService(eng)

	treeCtx, cancel := context.WithCancel(context.Background())
	bg := tree.ServeBackground(treeCtx)
	go func() {
		if err := <-bg; err != nil {
			logging.Logger().Warn().Err(err).Msg("auto-update supervisor tree stopped")
		}
	}()

	c.receiver = recv
	c.cancelTree = cancel
	c.engine = eng
	return eng, nil
}

// teardownEngineIfEmpty stops the engine's receiver and supervisor tree
// once the last subscriber has gone, per spec.md 4.G.
func (c *Client) teardownEngineIfEmpty() {
	c.mu.Lock()
	if c.engine == nil || !c.engine.Empty() {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.stopEngine()
}

// stopEngine unconditionally closes the receiver and cancels the
// supervisor tree, clearing engine state. Safe to call when no engine is
// running.
func (c *Client) stopEngine() {
	c.mu.Lock()
	recv := c.receiver
	cancel := c.cancelTree
	c.engine = nil
	c.receiver = nil
	c.cancelTree = nil
	c.mu.Unlock()

	if recv != nil {
		recv.Close()
	}
	if cancel != nil {
		cancel()
	}
}

// hostOnly strips a "https://host:port" Session host into the bare
// hostname notify.Config expects for its own STOMP-port dial.
func hostOnly(host string) string {
	if u, err := url.Parse(host); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return strings.TrimPrefix(strings.TrimPrefix(host, "https://"), "http://")
}
