// zhmc-go - IBM Z Hardware Management Console (HMC) Web Services API client
// Copyright 2026 zhmc-go contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package supervisor builds the suture-supervised tree that runs a
// Session's background services: the notification receiver's frame-reader
// and the auto-update engine's dispatch loop (SPEC_FULL.md 4.E, 4.G). A
// panic or connection loss in either is contained and the service restarts
// with backoff instead of silently taking the Session down.
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig holds supervisor tree configuration.
type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	FailureThreshold float64

	// FailureDecay is the rate at which failures decay, in seconds.
	FailureDecay float64

	// FailureBackoff is the duration to wait when the threshold is exceeded.
	FailureBackoff time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns suture's own built-in defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// SessionTree is the supervisor tree owned by a single Session. It has two
// child supervisors:
//   - notify: the notification receiver's STOMP frame-reader
//   - autoupdate: the auto-update engine's dispatch loop
//
// A crash in notification dispatch never takes down the Session's
// synchronous request path, which runs entirely outside this tree.
type SessionTree struct {
	root       *suture.Supervisor
	notify     *suture.Supervisor
	autoupdate *suture.Supervisor
	config     TreeConfig
}

// NewSessionTree creates a new supervisor tree for one Session. logger is
// typically logging.NewSlogLogger(), bridging sutureslog's event hook to
// the Session's zerolog logger.
func NewSessionTree(logger *slog.Logger, config TreeConfig) *SessionTree {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5.0
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = 30.0
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = 15 * time.Second
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 10 * time.Second
	}

	handler := &sutureslog.Handler{Logger: logger}
	eventHook := handler.MustHook()

	rootSpec := suture.Spec{
		EventHook:        eventHook,
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}
	childSpec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	root := suture.New("zhmc-session", rootSpec)
	notify := suture.New("notify", childSpec)
	autoupdate := suture.New("autoupdate", childSpec)

	root.Add(notify)
	root.Add(autoupdate)

	return &SessionTree{root: root, notify: notify, autoupdate: autoupdate, config: config}
}

// AddNotifyService adds a service (the STOMP frame-reader) to the notify
// layer.
func (t *SessionTree) AddNotifyService(svc suture.Service) suture.ServiceToken {
	return t.notify.Add(svc)
}

// AddAutoUpdateService adds a service (the dispatch loop) to the
// auto-update layer.
func (t *SessionTree) AddAutoUpdateService(svc suture.Service) suture.ServiceToken {
	return t.autoupdate.Add(svc)
}

// Serve starts the supervisor tree and blocks until ctx is canceled.
func (t *SessionTree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground starts the supervisor tree in a background goroutine,
// returning a channel that receives the terminal error (or nil).
func (t *SessionTree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// Remove removes a previously added service by its token.
func (t *SessionTree) Remove(token suture.ServiceToken) error {
	return t.root.Remove(token)
}

// RemoveAndWait removes a service and waits up to timeout for it to stop.
func (t *SessionTree) RemoveAndWait(token suture.ServiceToken, timeout time.Duration) error {
	return t.root.RemoveAndWait(token, timeout)
}

// UnstoppedServiceReport reports services that failed to stop within the
// configured shutdown timeout.
func (t *SessionTree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
