// zhmc-go - IBM Z Hardware Management Console (HMC) Web Services API client
// Copyright 2026 zhmc-go contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	zhmcerrors "github.com/zhmcclient/zhmc-go/internal/errors"
)

// Response is the classified result of a request (spec.md 4.C).
type Response struct {
	StatusCode int
	// JSON holds the decoded 2xx response body, or nil for a 204/empty body.
	JSON map[string]any
	// JobURI is set when the response was 202 with a job-uri body; the
	// caller (Session) decides whether to poll it based on
	// wait_for_completion.
	JobURI string
	// Async is true for a 202 with no body at all (whole-HMC operations).
	Async bool
}

// classify turns a completed HTTP round trip into a *Response or a typed
// zhmc-go error, per spec.md 4.C's response-handling rules.
func classify(method, uri string, resp *http.Response, body []byte) (*Response, error) {
	status := resp.StatusCode

	switch {
	case status == http.StatusAccepted:
		return classifyAccepted(body)
	case status >= 200 && status < 300:
		return classifySuccess(status, body)
	default:
		return nil, classifyError(method, uri, status, resp.Header.Get("Content-Type"), body)
	}
}

func classifySuccess(status int, body []byte) (*Response, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return &Response{StatusCode: status}, nil
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &zhmcerrors.ParseError{ContentType: "application/json", Cause: err}
	}
	return &Response{StatusCode: status, JSON: decoded}, nil
}

func classifyAccepted(body []byte) (*Response, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return &Response{StatusCode: http.StatusAccepted, Async: true}, nil
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &zhmcerrors.ParseError{ContentType: "application/json", Cause: err}
	}
	jobURI, _ := decoded["job-uri"].(string)
	return &Response{StatusCode: http.StatusAccepted, JSON: decoded, JobURI: jobURI}, nil
}

// classifyError builds the *zhmcerrors.HTTPError for a 4xx/5xx response,
// applying the HTML-vs-JSON-body heuristic from spec.md 4.C.
func classifyError(method, uri string, status int, contentType string, body []byte) error {
	if looksLikeJSON(contentType, body) {
		var decoded map[string]any
		if err := json.Unmarshal(body, &decoded); err == nil {
			return &zhmcerrors.HTTPError{
				HTTPStatus:    status,
				ReasonCode:    asInt(decoded["reason"]),
				Message:       asString(decoded["message"]),
				RequestMethod: method,
				RequestURI:    uri,
				Stack:         asString(decoded["stack"]),
				Body:          zhmcerrors.TruncateBody(body),
			}
		}
	}

	reason := zhmcerrors.ReasonNonJSONBody
	if looksLikeHTML(contentType, body) {
		reason = zhmcerrors.ReasonHTMLBody
	}
	return &zhmcerrors.HTTPError{
		HTTPStatus:    status,
		ReasonCode:    reason,
		Message:       "non-JSON error body from HMC",
		RequestMethod: method,
		RequestURI:    uri,
		Body:          zhmcerrors.TruncateBody(body),
	}
}

func looksLikeJSON(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "json") {
		return true
	}
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

func looksLikeHTML(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "html") {
		return true
	}
	trimmed := bytes.TrimSpace(bytes.ToLower(body))
	return bytes.HasPrefix(trimmed, []byte("<!doctype html")) || bytes.HasPrefix(trimmed, []byte("<html"))
}

func asInt(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	case string:
		n, _ := strconv.Atoi(t)
		return n
	default:
		return 0
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
