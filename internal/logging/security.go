// zhmc-go - IBM Z Hardware Management Console (HMC) Web Services API client
// Copyright 2026 zhmc-go contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import "strings"

// SanitizeToken masks a session token or password, showing only the first
// and last few characters so logs stay correlatable without leaking the
// secret itself. spec.md 4.C requires credentials and session-token values
// be elided from all log output.
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizeUserID masks an HMC userid for logs.
func SanitizeUserID(userid string) string {
	if userid == "" {
		return ""
	}
	if len(userid) <= 4 {
		return "***"
	}
	return userid[:2] + "***"
}

// SanitizeError strips an error message down to a generic form when it
// appears to carry a credential or token, so a badly-worded transport error
// can never leak a password into a log line.
func SanitizeError(err string) string {
	lower := strings.ToLower(err)
	for _, pattern := range []string{"password", "secret", "token", "authorization", "x-api-session"} {
		if strings.Contains(lower, pattern) {
			return "authentication error (details redacted)"
		}
	}
	return truncateString(err, 500)
}

// RedactHeader returns "***" for header names known to carry credentials
// (Authorization, X-API-Session), and the value unchanged otherwise.
func RedactHeader(name, value string) string {
	switch strings.ToLower(name) {
	case "authorization", "x-api-session":
		return "***"
	default:
		return value
	}
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
