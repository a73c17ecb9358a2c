// zhmc-go - IBM Z Hardware Management Console (HMC) Web Services API client
// Copyright 2026 zhmc-go contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package mockhmc

import (
	"sync"

	"github.com/google/uuid"
)

// jobStatus mirrors the terminal/non-terminal status vocabulary spec.md
// 6 names for the real HMC's async job polling contract.
type jobStatus string

const (
	jobStatusRunning            jobStatus = "running"
	jobStatusComplete           jobStatus = "complete"
	jobStatusCompleteWithError  jobStatus = "complete-with-error"
	jobStatusCanceled           jobStatus = "canceled"
)

// job is a deferred mock operation: a handler that runs once and sets the
// job's terminal status, polled via GET <job-uri>.
type job struct {
	mu         sync.Mutex
	uri        string
	status     jobStatus
	reasonCode int
	statusCode int
	message    string
	results    map[string]any
}

// jobTable tracks every job the mock has issued, keyed by URI.
type jobTable struct {
	mu   sync.Mutex
	jobs map[string]*job
}

func newJobTable() *jobTable {
	return &jobTable{jobs: make(map[string]*job)}
}

// create runs fn to decide a new job's outcome and registers the job with
// that terminal status already set. The mock resolves jobs synchronously (no real asynchrony to
// simulate correctness bugs in) but still requires a poll of the job URI
// before the caller observes the terminal status, matching spec.md 4.C's
// 202/job-uri/poll contract.
func (t *jobTable) create(fn func() (ok bool, message string, results map[string]any)) *job {
	j := &job{
		uri:    "/api/jobs/" + uuid.NewString(),
		status: jobStatusComplete,
	}
	ok, message, results := fn()
	if !ok {
		j.status = jobStatusCompleteWithError
		j.reasonCode = 1
		j.statusCode = 409
	}
	j.message = message
	j.results = results

	t.mu.Lock()
	t.jobs[j.uri] = j
	t.mu.Unlock()
	return j
}

func (t *jobTable) get(uri string) (*job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[uri]
	return j, ok
}

func (j *job) snapshot() map[string]any {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := map[string]any{
		"job-uri": j.uri,
		"status":  string(j.status),
	}
	if j.status == jobStatusCompleteWithError {
		out["job-reason-code"] = j.reasonCode
		out["job-status-code"] = j.statusCode
		out["job-results"] = map[string]any{"message": j.message}
	} else if j.results != nil {
		out["job-results"] = j.results
	}
	return out
}
