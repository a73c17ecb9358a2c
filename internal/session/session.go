// zhmc-go - IBM Z Hardware Management Console (HMC) Web Services API client
// Copyright 2026 zhmc-go contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session implements the zhmc-go Session (spec.md 4.D): logon,
// logoff, transparent re-logon on token expiry, host failover at logon
// time, and the thin get/post/delete wrappers around package transport
// that interpose session-token handling and busy-retry.
//
// Grounded on internal/sync/tautulli_client.go's "thin wrapper around an
// HTTP client with resilience bolted on" shape and
// internal/sync/circuit_breaker.go's optional breaker interposition.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	zhmcerrors "github.com/zhmcclient/zhmc-go/internal/errors"
	"github.com/zhmcclient/zhmc-go/internal/logging"
	"github.com/zhmcclient/zhmc-go/internal/metrics"
	"github.com/zhmcclient/zhmc-go/internal/retry"
	"github.com/zhmcclient/zhmc-go/internal/transport"
)

// Config configures a Session.
type Config struct {
	// Hosts lists candidate HMC hosts (e.g. "https://9.1.2.3:6794"), tried
	// in order at logon; the Session pins to the first that succeeds.
	Hosts []string

	Userid   string
	Password string
	// Token, if set, is used instead of Userid/Password: Logon installs it
	// directly without an HTTP Basic round trip (spec.md 4.D allows a
	// pre-obtained token).
	Token string

	CertVerify transport.CertVerify
	CACertPath string
	Policy     retry.Policy

	// CircuitBreaker, if non-nil, wraps get/post/delete in a
	// gobreaker.CircuitBreaker per SPEC_FULL.md 4.D.
	CircuitBreaker *gobreaker.Settings
}

// Job is a handle to an asynchronous HMC operation (spec.md 4.C: a 202
// response carrying a job-uri).
type Job struct {
	URI string
}

// Session is a logged-on connection to one HMC host.
type Session struct {
	cfg   Config
	tr    *transport.Transport
	cb    *gobreaker.CircuitBreaker[any]
	host  string // the pinned host, set on successful logon
	mu    sync.Mutex
	token string
	// notificationTopic is the HMC-assigned object-notification-topic
	// discovered from the logon response, consumed by package autoupdate.
	notificationTopic string
	loggedOn          bool
}

// New constructs a Session without logging on.
func New(cfg Config) (*Session, error) {
	if len(cfg.Hosts) == 0 {
		return nil, &zhmcerrors.ConfigError{Field: "hosts", Message: "at least one host is required"}
	}
	cfg.Policy = cfg.Policy.WithDefaults()
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}

	s := &Session{cfg: cfg}
	if cfg.CircuitBreaker != nil {
		settings := *cfg.CircuitBreaker
		if settings.Name == "" {
			settings.Name = "zhmc-session"
		}
		origOnStateChange := settings.OnStateChange
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			if origOnStateChange != nil {
				origOnStateChange(name, from, to)
			}
		}
		s.cb = gobreaker.NewCircuitBreaker[any](settings)
	}
	return s, nil
}

func breakerStateFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// IsLoggedOn reports whether Logon has succeeded and Logoff has not since
// been called.
func (s *Session) IsLoggedOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loggedOn
}

// Logon authenticates against the first reachable candidate host. Connect
// timeout, connect refusal, and certificate failures advance to the next
// candidate; once a host yields a session token the Session is pinned to
// it until Logoff (spec.md 4.D).
func (s *Session) Logon(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loggedOn {
		return nil
	}

	var lastErr error
	for _, host := range s.cfg.Hosts {
		tr, err := transport.New(transport.Config{
			Host:       host,
			CertVerify: s.cfg.CertVerify,
			CACertPath: s.cfg.CACertPath,
			Policy:     s.cfg.Policy,
		})
		if err != nil {
			lastErr = err
			continue
		}

		if s.cfg.Token != "" {
			s.tr = tr
			s.host = host
			s.token = s.cfg.Token
			s.loggedOn = true
			metrics.SessionLogonsTotal.Inc()
			return nil
		}

		resp, err := tr.Do(ctx, "POST", "/api/sessions", nil, "", transport.BasicAuth{
			Userid:   s.cfg.Userid,
			Password: s.cfg.Password,
		})
		if err != nil {
			logging.Ctx(ctx).Warn().
				Str("host", host).
				Str("error", logging.SanitizeError(err.Error())).
				Msg("logon attempt failed, trying next candidate host")
			lastErr = err
			continue
		}

		token, _ := resp.JSON["api-session"].(string)
		if token == "" {
			lastErr = &zhmcerrors.ServerAuthError{Host: host, Message: "logon response missing api-session"}
			continue
		}

		s.tr = tr
		s.host = host
		s.token = token
		s.notificationTopic, _ = resp.JSON["notification-topic"].(string)
		s.loggedOn = true
		metrics.SessionLogonsTotal.Inc()
		return nil
	}

	if lastErr == nil {
		lastErr = &zhmcerrors.ConfigError{Field: "hosts", Message: "no candidate hosts configured"}
	}
	return lastErr
}

// Logoff tears down the session token. It is idempotent.
func (s *Session) Logoff(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loggedOn {
		return nil
	}
	_, err := s.tr.Do(ctx, "DELETE", "/api/sessions/this-session", nil, "", transport.TokenAuth{Token: s.token})
	s.loggedOn = false
	s.token = ""
	return err
}

// NotificationTopic returns the HMC-assigned object-notification-topic
// discovered at logon, used by package autoupdate.
func (s *Session) NotificationTopic() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notificationTopic
}

// Host returns the pinned host this Session is logged on to, or "" before
// a successful Logon.
func (s *Session) Host() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.host
}

// Policy returns the retry/timeout policy this Session was configured
// with (spec.md 4.B), defaults already applied.
func (s *Session) Policy() retry.Policy {
	return s.cfg.Policy
}

// Get performs an authenticated GET, logging on first if necessary and
// transparently re-logging on if the token has expired.
func (s *Session) Get(ctx context.Context, uri string) (map[string]any, error) {
	resp, err := s.request(ctx, "GET", uri, nil, "", busyOptions{})
	if err != nil {
		return nil, err
	}
	return resp.JSON, nil
}

// PostOptions controls POST semantics: synchronous job-waiting and
// server-busy retry (spec.md 4.C, 4.D).
type PostOptions struct {
	Body              any // marshaled as JSON unless BinaryBody is set
	BinaryBody        []byte
	ContentType       string // required with BinaryBody
	WaitForCompletion bool
	OperationTimeout  time.Duration
	BusyRetries       int
	BusyWait          time.Duration
}

// PostResult is the outcome of a POST: either a decoded synchronous
// result, an async Job handle, or nothing (bodiless 202).
type PostResult struct {
	Job     *Job
	Results map[string]any
}

// Post performs an authenticated POST, per PostOptions.
func (s *Session) Post(ctx context.Context, uri string, opts PostOptions) (*PostResult, error) {
	var body []byte
	contentType := opts.ContentType
	if opts.BinaryBody != nil {
		body = opts.BinaryBody
	} else if opts.Body != nil {
		b, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		body = b
		contentType = "application/json"
	}

	resp, err := s.request(ctx, "POST", uri, body, contentType, busyOptions{retries: opts.BusyRetries, wait: opts.BusyWait})
	if err != nil {
		return nil, err
	}

	switch {
	case resp.JobURI != "":
		job := &Job{URI: resp.JobURI}
		if !opts.WaitForCompletion {
			return &PostResult{Job: job}, nil
		}
		results, err := s.WaitForCompletion(ctx, job, opts.OperationTimeout)
		if err != nil {
			return nil, err
		}
		return &PostResult{Results: results}, nil
	case resp.Async:
		return &PostResult{}, nil
	default:
		return &PostResult{Results: resp.JSON}, nil
	}
}

// Delete performs an authenticated DELETE.
func (s *Session) Delete(ctx context.Context, uri string) error {
	_, err := s.request(ctx, "DELETE", uri, nil, "", busyOptions{})
	return err
}

type busyOptions struct {
	retries int
	wait    time.Duration
}

// request is the common path for Get/Post/Delete: logon-if-needed,
// dispatch, transparent re-logon on 403.5, busy-retry on 409.1/409.2.
func (s *Session) request(ctx context.Context, method, uri string, body []byte, contentType string, busy busyOptions) (*transport.Response, error) {
	if err := s.Logon(ctx); err != nil {
		return nil, err
	}

	for {
		tokenUsed := s.currentToken()
		resp, err := s.doOnce(ctx, method, uri, body, contentType, tokenUsed)

		var httpErr *zhmcerrors.HTTPError
		if asHTTPError(err, &httpErr) {
			if httpErr.IsTokenExpired() {
				if relogonErr := s.reLogon(ctx, tokenUsed); relogonErr != nil {
					return nil, relogonErr
				}
				resp, err = s.doOnce(ctx, method, uri, body, contentType, s.currentToken())
				var retryHTTPErr *zhmcerrors.HTTPError
				if asHTTPError(err, &retryHTTPErr) && retryHTTPErr.IsTokenExpired() {
					// Two consecutive 403.5 responses: the HMC itself is
					// rejecting re-logon, not just an expired token
					// (spec.md §8 property 6).
					return nil, &zhmcerrors.ServerAuthError{Host: s.host, Message: "session token expired again immediately after re-logon"}
				}
				return resp, err
			}
			if httpErr.IsServerBusy() && (method == "POST" || method == "DELETE") && busy.retries > 0 {
				metrics.SessionBusyRetriesTotal.Inc()
				select {
				case <-time.After(busy.wait):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				busy.retries--
				continue
			}
		}
		return resp, err
	}
}

func (s *Session) currentToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *Session) doOnce(ctx context.Context, method, uri string, body []byte, contentType string, token string) (*transport.Response, error) {
	s.mu.Lock()
	tr := s.tr
	s.mu.Unlock()

	call := func() (any, error) {
		return tr.Do(ctx, method, uri, body, contentType, transport.TokenAuth{Token: token})
	}

	if s.cb == nil {
		result, err := call()
		if err != nil {
			return nil, err
		}
		return result.(*transport.Response), nil
	}

	result, err := s.cb.Execute(call)
	if err != nil {
		return nil, err
	}
	return result.(*transport.Response), nil
}

// reLogon implements spec.md 4.D's 403.5 recovery: acquire the lock; if
// another goroutine already refreshed the token since tokenUsed (the value
// this caller's failed request was sent with) was observed, just proceed;
// otherwise re-logon with the stored credentials and install the new
// token.
func (s *Session) reLogon(ctx context.Context, tokenUsed string) error {
	s.mu.Lock()
	if s.token != tokenUsed {
		s.mu.Unlock()
		return nil
	}
	tr := s.tr
	s.mu.Unlock()

	if s.cfg.Token != "" {
		return &zhmcerrors.ServerAuthError{Host: s.host, Message: "session token expired and no credentials configured for re-logon"}
	}

	resp, err := tr.Do(ctx, "POST", "/api/sessions", nil, "", transport.BasicAuth{
		Userid:   s.cfg.Userid,
		Password: s.cfg.Password,
	})
	if err != nil {
		return err
	}
	token, _ := resp.JSON["api-session"].(string)
	if token == "" {
		return &zhmcerrors.ServerAuthError{Host: s.host, Message: "re-logon response missing api-session"}
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	metrics.SessionRelogonsTotal.Inc()
	return nil
}

func asHTTPError(err error, target **zhmcerrors.HTTPError) bool {
	he, ok := err.(*zhmcerrors.HTTPError)
	if ok {
		*target = he
	}
	return ok
}
