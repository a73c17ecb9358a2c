// zhmc-go - IBM Z Hardware Management Console (HMC) Web Services API client
// Copyright 2026 zhmc-go contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"time"

	zhmcerrors "github.com/zhmcclient/zhmc-go/internal/errors"
	"github.com/zhmcclient/zhmc-go/internal/metrics"
	"github.com/zhmcclient/zhmc-go/internal/transport"
)

// defaultPollInterval matches the reference implementation's 10s job-status
// polling interval (spec.md 4.D).
const defaultPollInterval = 10 * time.Second

// WaitForCompletion polls GET <job-uri> until the job's status is
// terminal, honoring operationTimeout (falling back to the Session's
// configured OperationTimeout when zero). On success it returns the
// job-results value (nil if absent); on a non-"complete" terminal status it
// raises an *zhmcerrors.HTTPError synthesized from job-reason-code /
// job-status-code / job-results.message, matching spec.md 4.C.
func (s *Session) WaitForCompletion(ctx context.Context, job *Job, operationTimeout time.Duration) (map[string]any, error) {
	if operationTimeout == 0 {
		operationTimeout = s.cfg.Policy.OperationTimeout
	}
	deadline := time.Now().Add(operationTimeout)

	for {
		status, err := s.Get(ctx, job.URI)
		if err != nil {
			return nil, err
		}

		jobStatus, _ := status["status"].(string)
		metrics.JobPollsTotal.WithLabelValues(jobStatus).Inc()

		switch jobStatus {
		case "complete":
			results, _ := status["job-results"].(map[string]any)
			if reasonCode, ok := status["job-reason-code"]; ok && reasonCode != nil {
				return results, synthesizeJobError(job.URI, status)
			}
			return results, nil
		case "", "running":
			// not yet terminal, keep polling
		default:
			// any other terminal status (e.g. "cancelled") is a failure
			return nil, synthesizeJobError(job.URI, status)
		}

		if time.Now().After(deadline) {
			return nil, &zhmcerrors.OperationTimeout{JobURI: job.URI, Timeout: operationTimeout}
		}

		// never sleep past the deadline
		wait := defaultPollInterval
		if remaining := time.Until(deadline); remaining < wait {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func synthesizeJobError(jobURI string, status map[string]any) error {
	reasonCode := asInt(status["job-reason-code"])
	statusCode := asInt(status["job-status-code"])
	message := "job failed"
	if results, ok := status["job-results"].(map[string]any); ok {
		if m, ok := results["message"].(string); ok && m != "" {
			message = m
		}
	}
	return &zhmcerrors.HTTPError{
		HTTPStatus:    statusCode,
		ReasonCode:    reasonCode,
		Message:       message,
		RequestMethod: "GET",
		RequestURI:    jobURI,
	}
}

func asInt(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	default:
		return 0
	}
}

// WaitForAvailable repeatedly probes the HMC's version endpoint until a
// valid response is produced, for use after an HMC restart (spec.md 4.D).
func (s *Session) WaitForAvailable(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		s.mu.Lock()
		tr := s.tr
		s.mu.Unlock()

		if tr != nil {
			if _, err := tr.Do(ctx, "GET", "/api/version", nil, "", transport.NoAuth{}); err == nil {
				return nil
			}
		}

		if time.Now().After(deadline) {
			return &zhmcerrors.OperationTimeout{JobURI: "/api/version", Timeout: timeout}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}
