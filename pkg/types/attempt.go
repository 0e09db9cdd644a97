// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for patent-jump.
package types

import (
	"net/http"
	"strconv"
	"time"
)

// SearchAttempt records one outbound search call made while acquiring a
// token. It lives only for the duration of a single resolution.
type SearchAttempt struct {
	// Step names the acquisition strategy that issued the call
	// (e.g. "seeded", "placeholder", "bare").
	Step string `json:"step" yaml:"step"`

	// SentToken reports whether a credential header was attached.
	SentToken bool `json:"sent_token" yaml:"sent_token"`

	// Status is the HTTP status code, or 0 when the call failed in transport.
	Status int `json:"status" yaml:"status"`

	// ObservedToken is the token found in the response headers, if any.
	// It is never serialized; use MaskToken for display.
	ObservedToken string `json:"-" yaml:"-"`

	// Header holds the full response headers.
	Header http.Header `json:"headers,omitempty" yaml:"headers,omitempty"`

	// BodySnippet is the leading part of the response body.
	BodySnippet string `json:"body_snippet,omitempty" yaml:"body_snippet,omitempty"`

	// Err is the transport error message, if the call never got a response.
	Err string `json:"error,omitempty" yaml:"error,omitempty"`

	// Duration is the wall time spent on the call.
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Succeeded reports whether the upstream answered with a 2xx status.
func (a SearchAttempt) Succeeded() bool {
	return a.Status >= 200 && a.Status < 300
}

// MaskToken returns a display-safe form of a token: its first four
// characters followed by its length. Short tokens are fully masked.
func MaskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "…(" + strconv.Itoa(len(token)) + ")"
}

// Redacted returns a copy of the attempt whose headers carry the token
// header masked, suitable for logs and diagnostic responses.
func (a SearchAttempt) Redacted(tokenHeader string) SearchAttempt {
	if a.Header == nil {
		return a
	}
	a.Header = a.Header.Clone()
	if vals := a.Header.Values(tokenHeader); len(vals) > 0 {
		masked := make([]string, len(vals))
		for i, v := range vals {
			masked[i] = MaskToken(v)
		}
		a.Header[http.CanonicalHeaderKey(tokenHeader)] = masked
	}
	return a
}
