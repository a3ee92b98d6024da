// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package upstream talks to the document engine on behalf of one user at
// a time. The engine is a cooperating but independently evolving service
// that keeps per-user context in memory, addressed by an HTTP session
// cookie, so every exchange runs a fixed two-hook pipeline:
//
//	read credential from the session store
//	   │
//	   ▼
//	attach Cookie header ── send ── receive
//	                                   │
//	                                   ▼
//	                        capture Set-Cookie (success or failure alike)
//	                                   │
//	                                   ▼
//	                        write credential to the session store
//
// The hooks are explicit steps of Exchange rather than registered
// interceptors, so the ordering is fixed by construction and there is no
// hidden hook-list state. No lock is held across the network call; the
// credential read and the credential write are each one atomic store
// operation, and last-write-wins semantics are inherited from the store.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/AleutianAI/DocBridge/session"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("docbridge.upstream")

// TimeoutClass selects which of the two exchange deadlines applies.
// Control calls (query, reset) finish fast; transfer calls push a whole
// document body through the engine's parser and embedder.
type TimeoutClass int

const (
	ClassControl TimeoutClass = iota
	ClassTransfer
)

const (
	// DefaultControlTimeout bounds query/reset round trips.
	DefaultControlTimeout = 30 * time.Second
	// DefaultTransferTimeout bounds document uploads, which block on the
	// engine's parse+embed pass. Matches what we allow the RAG proxy path.
	DefaultTransferTimeout = 4 * time.Minute
)

// Envelope is the engine's standard JSON response wrapper. Data is left
// raw; each operation decodes the part it understands.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Request describes one call to the engine.
type Request struct {
	// Path is the engine endpoint, e.g. "/upload".
	Path string
	// Body may be nil for endpoints that take no payload.
	Body io.Reader
	// ContentType is required when Body is non-nil.
	ContentType string
	// Class picks the timeout bound for this call.
	Class TimeoutClass
}

// Result carries one exchange's outcome to the classifier and the
// operation that issued it. It is transient; nothing persists it.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Envelope is the decoded response wrapper, or nil when the body was
	// not a JSON object (the reset endpoint returns arbitrary shapes).
	Envelope *Envelope
}

// OK reports whether the exchange succeeded both at the HTTP layer and
// inside the engine's own envelope.
func (r *Result) OK() bool {
	if r.StatusCode < 200 || r.StatusCode >= 300 {
		return false
	}
	return r.Envelope == nil || r.Envelope.Success
}

// Factory builds per-user clients bound to one engine endpoint. The
// factory is cheap and safe to share; the session, not the transport
// object, is the unit of per-user state.
type Factory struct {
	baseURL  string
	sessions session.Store
	control  *http.Client
	transfer *http.Client
}

// Option customizes a Factory.
type Option func(*Factory)

// WithControlTimeout overrides the control-call deadline.
func WithControlTimeout(d time.Duration) Option {
	return func(f *Factory) { f.control.Timeout = d }
}

// WithTransferTimeout overrides the transfer-call deadline.
func WithTransferTimeout(d time.Duration) Option {
	return func(f *Factory) { f.transfer.Timeout = d }
}

// NewFactory creates a client factory for the engine at baseURL.
// Trailing slashes on baseURL are tolerated.
func NewFactory(baseURL string, sessions session.Store, opts ...Option) *Factory {
	f := &Factory{
		baseURL:  strings.TrimRight(baseURL, "/"),
		sessions: sessions,
		control:  &http.Client{Timeout: DefaultControlTimeout},
		transfer: &http.Client{Timeout: DefaultTransferTimeout},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// BaseURL returns the engine endpoint this factory targets.
func (f *Factory) BaseURL() string { return f.baseURL }

// ClientFor returns a client whose exchanges carry userID's session.
// Construction is trivial on purpose; nothing is cached per user beyond
// the credential in the session store.
func (f *Factory) ClientFor(userID string) *Client {
	return &Client{factory: f, userID: userID}
}

// Client performs exchanges for exactly one user.
type Client struct {
	factory *Factory
	userID  string
}

// Exchange runs one POST against the engine with the fixed
// inject-then-capture credential pipeline. A non-2xx response is not an
// error here; callers hand the Result to Classify. The returned error is
// non-nil only when no response was received at all.
func (c *Client) Exchange(ctx context.Context, req Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "upstream.Exchange")
	defer span.End()
	span.SetAttributes(
		attribute.String("upstream.path", req.Path),
		attribute.Bool("upstream.transfer_class", req.Class == ClassTransfer),
	)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.factory.baseURL+req.Path, req.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to build engine request for %s: %w", req.Path, err)
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}

	// Hook 1: inject the user's current credential, if any. Absence just
	// means this user has not authenticated with the engine yet; the
	// response below will establish the session.
	if cred, ok := c.factory.sessions.Get(c.userID); ok {
		httpReq.Header.Set("Cookie", cred)
	}

	httpClient := c.factory.control
	if req.Class == ClassTransfer {
		httpClient = c.factory.transfer
	}

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	// Hook 2: capture any session-establishing header, on failures too.
	// The engine refreshes cookies on error responses as well, and a
	// stale credential is worse than one captured from a 4xx.
	if cookies := resp.Header.Values("Set-Cookie"); len(cookies) > 0 {
		c.factory.sessions.Put(c.userID, joinCookies(cookies))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to read engine response from %s: %w", req.Path, err)
	}

	result := &Result{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}
	var env Envelope
	if len(body) > 0 && json.Unmarshal(body, &env) == nil {
		result.Envelope = &env
	}

	span.SetAttributes(attribute.Int("upstream.status_code", resp.StatusCode))
	slog.Debug("Engine exchange complete",
		"path", req.Path, "status", resp.StatusCode, "body_bytes", len(body))
	return result, nil
}

// joinCookies folds the cookie pairs from multiple Set-Cookie headers
// into the single Cookie header value we echo back. Attributes like
// Path/HttpOnly are dropped; only the name=value pair matters to the
// engine.
func joinCookies(setCookies []string) string {
	pairs := make([]string, 0, len(setCookies))
	for _, sc := range setCookies {
		pair := sc
		if i := strings.Index(sc, ";"); i >= 0 {
			pair = sc[:i]
		}
		pair = strings.TrimSpace(pair)
		if pair != "" {
			pairs = append(pairs, pair)
		}
	}
	return strings.Join(pairs, "; ")
}
