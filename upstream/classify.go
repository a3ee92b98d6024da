// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package upstream

import (
	"fmt"
	"net/http"
	"strings"
)

// Category names one bucket of the gateway's error taxonomy. Every
// failed exchange maps to exactly one category, and the category is the
// sole source of the caller-visible status and message. Operations never
// second-guess the classifier.
type Category string

const (
	// CategoryBadRequest covers caller-side validation failures detected
	// before any network exchange.
	CategoryBadRequest Category = "bad_request"
	// CategoryNotFoundOrUnauthorized covers references to records that
	// are absent or owned by someone else. The two cases are deliberately
	// indistinguishable to the caller.
	CategoryNotFoundOrUnauthorized Category = "not_found_or_unauthorized"
	// CategoryUpstreamUnreachable means no response was received at all:
	// connection refused, DNS failure, or timeout.
	CategoryUpstreamUnreachable Category = "upstream_unreachable"
	// CategoryPortConflict is a 403 whose Server header carries the
	// fingerprint of a local service squatting on the engine's port.
	CategoryPortConflict Category = "port_conflict"
	// CategoryUpstreamAccessDenied is any other 403 from the engine.
	CategoryUpstreamAccessDenied Category = "upstream_access_denied"
	// CategoryUpstreamRejectedInput is a 4xx from the engine.
	CategoryUpstreamRejectedInput Category = "upstream_rejected_input"
	// CategoryUpstreamInternalError is a 5xx from the engine.
	CategoryUpstreamInternalError Category = "upstream_internal_error"
	// CategoryUpstreamLogicalFailure is an HTTP success whose envelope
	// reports success=false, or a success envelope missing the fields the
	// operation needs.
	CategoryUpstreamLogicalFailure Category = "upstream_logical_failure"
)

// Error is the normalized outcome of a failed gateway operation.
// Message is what the caller sees; Detail is operator diagnostics only
// and must never be included in a response body.
type Error struct {
	Category   Category
	HTTPStatus int
	Message    string
	Detail     string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Category, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// BadRequest builds a local validation error. Fail fast: these are
// produced before any upstream round trip.
func BadRequest(msg string) *Error {
	return &Error{Category: CategoryBadRequest, HTTPStatus: http.StatusBadRequest, Message: msg}
}

// NotFoundOrUnauthorized builds the shared absent-or-not-yours error.
func NotFoundOrUnauthorized(msg string) *Error {
	return &Error{Category: CategoryNotFoundOrUnauthorized, HTTPStatus: http.StatusNotFound, Message: msg}
}

// LogicalFailure builds an UpstreamLogicalFailure with the engine's own
// message when it supplied one.
func LogicalFailure(msg, detail string) *Error {
	if msg == "" {
		msg = "processing service returned failure"
	}
	return &Error{
		Category:   CategoryUpstreamLogicalFailure,
		HTTPStatus: http.StatusInternalServerError,
		Message:    msg,
		Detail:     detail,
	}
}

// portHijackSignatures fingerprint the macOS AirPlay Receiver, which
// binds port 5000 (and 7000) on the loopback "localhost" name and
// answers 403 to anything it does not understand. Matching on banner
// text is fragile, which is exactly why it lives in this one rule and
// nowhere in the transport code.
var portHijackSignatures = []string{"AirTunes", "AirPlay"}

const portConflictMessage = "the processing service port is answered by the macOS AirPlay Receiver " +
	"(AirTunes), not the document engine; point DOCENGINE_URL at the 127.0.0.1 loopback address " +
	"instead of localhost, or disable AirPlay Receiver in System Settings"

// Classify maps one exchange outcome onto the taxonomy. It is total:
// every combination of transport error, status, header, and body lands
// in exactly one category. A nil return means the exchange succeeded
// end to end (HTTP success and, when an envelope is present,
// success=true).
func Classify(res *Result, transportErr error) *Error {
	if transportErr != nil || res == nil {
		detail := "no response received"
		if transportErr != nil {
			detail = transportErr.Error()
		}
		return &Error{
			Category:   CategoryUpstreamUnreachable,
			HTTPStatus: http.StatusServiceUnavailable,
			Message:    "cannot reach the document processing service",
			Detail:     detail,
		}
	}

	switch {
	case res.StatusCode == http.StatusBadRequest:
		return &Error{
			Category:   CategoryUpstreamRejectedInput,
			HTTPStatus: http.StatusBadRequest,
			Message:    envelopeMessage(res, "invalid request"),
			Detail:     bodyDetail(res),
		}

	case res.StatusCode == http.StatusForbidden:
		if hasPortHijackFingerprint(res.Header) {
			return &Error{
				Category:   CategoryPortConflict,
				HTTPStatus: http.StatusServiceUnavailable,
				Message:    portConflictMessage,
				Detail:     "Server: " + res.Header.Get("Server"),
			}
		}
		return &Error{
			Category:   CategoryUpstreamAccessDenied,
			HTTPStatus: http.StatusServiceUnavailable,
			Message:    "processing service denied access",
			Detail:     bodyDetail(res),
		}

	case res.StatusCode >= http.StatusInternalServerError:
		return &Error{
			Category:   CategoryUpstreamInternalError,
			HTTPStatus: http.StatusBadGateway,
			Message:    "processing service error, retry later",
			Detail:     fmt.Sprintf("status %d: %s", res.StatusCode, bodyDetail(res)),
		}

	case res.StatusCode >= 300 || res.StatusCode < 200:
		// Any remaining non-success below 500: echo the engine's status.
		return &Error{
			Category:   CategoryUpstreamRejectedInput,
			HTTPStatus: res.StatusCode,
			Message:    envelopeMessage(res, "invalid request"),
			Detail:     bodyDetail(res),
		}

	case res.Envelope != nil && !res.Envelope.Success:
		return LogicalFailure(res.Envelope.Message, bodyDetail(res))
	}

	return nil
}

func hasPortHijackFingerprint(header http.Header) bool {
	server := header.Get("Server")
	if server == "" {
		return false
	}
	for _, sig := range portHijackSignatures {
		if strings.Contains(server, sig) {
			return true
		}
	}
	return false
}

// envelopeMessage prefers the engine's own message when it sent one.
func envelopeMessage(res *Result, fallback string) string {
	if res.Envelope != nil && res.Envelope.Message != "" {
		return res.Envelope.Message
	}
	return fallback
}

// bodyDetail truncates the raw body for diagnostics. Never shown to the
// caller.
func bodyDetail(res *Result) string {
	const maxDetail = 512
	if len(res.Body) > maxDetail {
		return string(res.Body[:maxDetail]) + "...(truncated)"
	}
	return string(res.Body)
}
