// zhmc-go - IBM Z Hardware Management Console (HMC) Web Services API client
// Copyright 2026 zhmc-go contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport implements the HTTP transport to a single HMC host
// (spec.md 4.C): request construction, response classification, redirect
// capping, and connect/read retries. It knows nothing about sessions,
// logon, or re-logon — that sits in package session (component D), which
// interposes on top of a Transport the way the teacher's
// CircuitBreakerClient interposes on top of its wrapped client (grounded
// on internal/sync/circuit_breaker.go).
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	zhmcerrors "github.com/zhmcclient/zhmc-go/internal/errors"
	"github.com/zhmcclient/zhmc-go/internal/logging"
	"github.com/zhmcclient/zhmc-go/internal/metrics"
	"github.com/zhmcclient/zhmc-go/internal/retry"
)

// CertVerify is the tri-state certificate verification policy (spec.md 4.D).
type CertVerify int

const (
	// CertVerifyOff disables certificate verification entirely. Discouraged;
	// only useful against a lab HMC with a self-signed cert and no CA bundle.
	CertVerifyOff CertVerify = iota
	// CertVerifyPlatform verifies against the platform trust store.
	CertVerifyPlatform
	// CertVerifyCustomCA verifies against a caller-supplied PEM file or
	// directory of PEM files.
	CertVerifyCustomCA
)

// Config configures a Transport bound to one HMC host.
type Config struct {
	// Host is the HMC's base URL, e.g. "https://9.1.2.3:6794".
	Host string
	CertVerify CertVerify
	// CACertPath is a PEM file or a directory of PEM files, required when
	// CertVerify is CertVerifyCustomCA.
	CACertPath string
	Policy     retry.Policy
}

// Transport issues requests against one HMC host.
type Transport struct {
	cfg    Config
	client *http.Client
	logger zerolog.Logger
}

func New(cfg Config) (*Transport, error) {
	cfg.Policy = cfg.Policy.WithDefaults()

	tlsConfig, err := BuildTLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	redirects := 0
	httpTransport := &http.Transport{
		TLSClientConfig: tlsConfig,
		DialContext: (&net.Dialer{
			Timeout: cfg.Policy.ConnectTimeout,
		}).DialContext,
	}

	client := &http.Client{
		Transport: httpTransport,
		Timeout:   cfg.Policy.ConnectTimeout + cfg.Policy.ReadTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			redirects = len(via)
			if redirects >= cfg.Policy.MaxRedirects {
				return errTooManyRedirects
			}
			return nil
		},
	}

	return &Transport{
		cfg:    cfg,
		client: client,
		logger: logging.Logger().With().Str("host", cfg.Host).Logger(),
	}, nil
}

var errTooManyRedirects = errors.New("too many redirects")

// BuildTLSConfig builds a *tls.Config from the tri-state CertVerify policy
// (spec.md 4.D); exported so package notify can apply the same policy to
// its own TLS-dialed STOMP connection.
func BuildTLSConfig(cfg Config) (*tls.Config, error) {
	switch cfg.CertVerify {
	case CertVerifyOff:
		return &tls.Config{InsecureSkipVerify: true}, nil //nolint:gosec
	case CertVerifyPlatform:
		return &tls.Config{}, nil
	case CertVerifyCustomCA:
		pool, err := loadCAPool(cfg.CACertPath)
		if err != nil {
			return nil, err
		}
		return &tls.Config{RootCAs: pool}, nil
	default:
		return &tls.Config{}, nil
	}
}

func loadCAPool(path string) (*x509.CertPool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &zhmcerrors.ClientAuthError{Message: "ca_cert_path not found", Cause: err}
	}

	pool := x509.NewCertPool()
	addFile := func(p string) error {
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		if !pool.AppendCertsFromPEM(data) {
			return fmt.Errorf("no PEM certificates found in %s", p)
		}
		return nil
	}

	if !info.IsDir() {
		if err := addFile(path); err != nil {
			return nil, &zhmcerrors.ClientAuthError{Message: "invalid CA bundle", Cause: err}
		}
		return pool, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, &zhmcerrors.ClientAuthError{Message: "cannot read ca_cert_path directory", Cause: err}
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := addFile(filepath.Join(path, e.Name())); err != nil {
			return nil, &zhmcerrors.ClientAuthError{Message: "invalid CA bundle entry", Cause: err}
		}
	}
	return pool, nil
}

// Do issues one request and returns its classified Response, retrying
// connect failures up to Policy.ConnectRetries times and, for GET only,
// read failures up to Policy.ReadRetries times. body is nil for GET/DELETE.
func (t *Transport) Do(ctx context.Context, method, uri string, body []byte, contentType string, auth Auth) (*Response, error) {
	fullURL := t.cfg.Host + uri

	maxConnectAttempts := t.cfg.Policy.ConnectRetries + 1
	maxReadAttempts := 1
	if method == http.MethodGet {
		maxReadAttempts = t.cfg.Policy.ReadRetries + 1
	}

	var lastErr error
	for connectAttempt := 0; connectAttempt < maxConnectAttempts; connectAttempt++ {
		for readAttempt := 0; readAttempt < maxReadAttempts; readAttempt++ {
			resp, raw, err := t.attempt(ctx, method, fullURL, body, contentType, auth)
			if err == nil {
				classified, classifyErr := classify(method, uri, resp, raw)
				t.recordMetrics(method, resp.StatusCode)
				return classified, classifyErr
			}

			if errors.Is(err, errTooManyRedirects) {
				return nil, &zhmcerrors.RetriesExceeded{Operation: "redirect", Attempts: t.cfg.Policy.MaxRedirects, Cause: err}
			}

			lastErr = err
			if isConnectError(err) {
				metrics.HTTPRetriesTotal.WithLabelValues("connect").Inc()
				break // fall through to outer connect-retry loop
			}
			metrics.HTTPRetriesTotal.WithLabelValues("read").Inc()
			if readAttempt == maxReadAttempts-1 {
				break
			}
		}
		if lastErr == nil {
			break
		}
		if !isConnectError(lastErr) {
			break
		}
		if connectAttempt < maxConnectAttempts-1 {
			t.logger.Warn().Err(lastErr).Int("attempt", connectAttempt+1).Msg("connect attempt failed, retrying")
		}
	}

	if lastErr == nil {
		return nil, nil
	}
	if isConnectError(lastErr) {
		if errors.Is(lastErr, context.DeadlineExceeded) {
			return nil, &zhmcerrors.ConnectTimeout{Host: t.cfg.Host, Timeout: t.cfg.Policy.ConnectTimeout, Cause: lastErr}
		}
		return nil, &zhmcerrors.RetriesExceeded{Operation: "connect", Attempts: maxConnectAttempts, Cause: lastErr}
	}
	return nil, &zhmcerrors.ReadTimeout{Host: t.cfg.Host, Timeout: t.cfg.Policy.ReadTimeout, Cause: lastErr}
}

func (t *Transport) attempt(ctx context.Context, method, fullURL string, body []byte, contentType string, auth Auth) (*http.Response, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, nil, err
	}

	if basic, ok := auth.(BasicAuth); ok {
		req.SetBasicAuth(basic.Userid, basic.Password)
	} else {
		auth.apply(req.Header.Set)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	t.logRequest(req)
	resp, err := t.client.Do(req)
	duration := time.Since(start)
	metrics.HTTPRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
	if err != nil {
		t.logger.Warn().Str("error", logging.SanitizeError(err.Error())).Str("method", method).Str("uri", req.URL.Path).Msg("request failed")
		return nil, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyReadBytes))
	if err != nil {
		return nil, nil, err
	}
	t.logResponse(req, resp, duration)
	return resp, raw, nil
}

const maxBodyReadBytes = 64 << 20 // 64MiB, generous for property-list bodies and ISO metadata

func (t *Transport) logRequest(req *http.Request) {
	t.logger.Debug().
		Str("method", req.Method).
		Str("uri", req.URL.Path).
		Str("authorization", logging.RedactHeader("Authorization", req.Header.Get("Authorization"))).
		Str("x-api-session", logging.RedactHeader("X-Api-Session", req.Header.Get(SessionHeader))).
		Msg("hmc request")
}

func (t *Transport) logResponse(req *http.Request, resp *http.Response, duration time.Duration) {
	t.logger.Debug().
		Str("method", req.Method).
		Str("uri", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Msg("hmc response")
}

func (t *Transport) recordMetrics(method string, status int) {
	metrics.HTTPRequestsTotal.WithLabelValues(method, metrics.StatusClass(status)).Inc()
}

// isConnectError reports whether err represents a failure to establish the
// connection (dial timeout, refusal, TLS handshake failure) as opposed to a
// failure reading an established connection's response.
func isConnectError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			return opErr.Op == "dial"
		}
		return netErr.Timeout()
	}
	return false
}
