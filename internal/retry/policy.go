// zhmc-go - IBM Z Hardware Management Console (HMC) Web Services API client
// Copyright 2026 zhmc-go contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package retry holds the retry/timeout policy (spec section 4.B) that a
// Session is constructed with and that individual call sites may override.
package retry

import (
	"time"

	validator "github.com/go-playground/validator/v10"

	zhmcerrors "github.com/zhmcclient/zhmc-go/internal/errors"
)

// Policy configures connect/read/retry/redirect/operation/status timeouts
// and the name->URI cache TTL. Zero-value fields are filled with defaults by
// WithDefaults.
type Policy struct {
	ConnectTimeout time.Duration `validate:"min=0"`
	ConnectRetries int           `validate:"min=0"`
	ReadTimeout    time.Duration `validate:"min=0"`
	// ReadRetries: only idempotent (GET-family) calls may honor this.
	ReadRetries      int           `validate:"min=0"`
	MaxRedirects     int           `validate:"min=0"`
	OperationTimeout time.Duration `validate:"min=0"`
	StatusTimeout    time.Duration `validate:"min=0"`
	NameURICacheTTL  time.Duration `validate:"min=0"`
}

// DefaultPolicy returns the spec-mandated defaults (section 4.B).
func DefaultPolicy() Policy {
	return Policy{
		ConnectTimeout:   30 * time.Second,
		ConnectRetries:   3,
		ReadTimeout:      3600 * time.Second,
		ReadRetries:      0,
		MaxRedirects:     30,
		OperationTimeout: 3600 * time.Second,
		StatusTimeout:    900 * time.Second,
		NameURICacheTTL:  300 * time.Second,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the policy's fields are within allowed bounds, returning a
// *zhmcerrors.ConfigError naming the first offending field. This is an
// ambient concern (SPEC_FULL.md 4.B); it never substitutes for a spec.md
// taxonomy error.
func (p Policy) Validate() error {
	if err := validate.Struct(p); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return &zhmcerrors.ConfigError{Field: fe.Field(), Message: "must be >= 0"}
		}
		return &zhmcerrors.ConfigError{Field: "policy", Message: err.Error()}
	}
	return nil
}

// WithDefaults fills zero-value fields of p with DefaultPolicy's values and
// returns the result; p itself is untouched.
func (p Policy) WithDefaults() Policy {
	d := DefaultPolicy()
	if p.ConnectTimeout == 0 {
		p.ConnectTimeout = d.ConnectTimeout
	}
	if p.ConnectRetries == 0 {
		p.ConnectRetries = d.ConnectRetries
	}
	if p.ReadTimeout == 0 {
		p.ReadTimeout = d.ReadTimeout
	}
	if p.MaxRedirects == 0 {
		p.MaxRedirects = d.MaxRedirects
	}
	if p.OperationTimeout == 0 {
		p.OperationTimeout = d.OperationTimeout
	}
	if p.StatusTimeout == 0 {
		p.StatusTimeout = d.StatusTimeout
	}
	if p.NameURICacheTTL == 0 {
		p.NameURICacheTTL = d.NameURICacheTTL
	}
	return p
}
