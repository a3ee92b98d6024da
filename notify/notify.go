// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package notify delivers outbound one-time-code emails without ever
// blocking a gateway operation. Enqueue is non-blocking; a single
// background worker drains the queue with its own per-attempt timeout,
// bounded retries, and send pacing. A delivery failure is the
// notification's problem, never the triggering request's.
package notify

import (
	"context"
	"errors"
	"time"
)

// ErrQueueFull is returned by Enqueue when the bounded queue has no
// room. Callers log it and move on; notifications are best-effort.
var ErrQueueFull = errors.New("notification queue is full")

// ErrNotConfigured is returned when no delivery channel is configured
// for the process (e.g. SMTP credentials absent). Only the operation
// that wanted the notification fails; the process keeps serving.
var ErrNotConfigured = errors.New("notification channel not configured")

// Message is one outbound notification.
type Message struct {
	Recipient  string
	Subject    string
	Body       string
	EnqueuedAt time.Time

	// attempts counts delivery tries; managed by the dispatcher.
	attempts int
}

// Sender delivers a single message over some channel. Implementations
// must be safe for sequential reuse; the dispatcher calls Send from one
// worker goroutine.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NopSender is used when no channel is configured; it reports
// ErrNotConfigured for every send so misconfiguration is visible in
// logs rather than silently swallowed.
type NopSender struct{}

func (NopSender) Send(context.Context, Message) error { return ErrNotConfigured }
