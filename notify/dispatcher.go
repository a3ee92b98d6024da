// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/DocBridge/observability"
	"golang.org/x/time/rate"
)

// DispatcherConfig holds configuration for the background dispatcher.
//
//   - QueueSize: capacity of the pending-message buffer.
//   - MaxAttempts: delivery tries per message before it is dropped.
//   - AttemptTimeout: deadline for one Send call.
//   - RetryBackoff: wait between attempts for the same message.
//   - SendsPerMinute: pacing cap across all messages; most SMTP relays
//     throttle well below this.
type DispatcherConfig struct {
	QueueSize      int
	MaxAttempts    int
	AttemptTimeout time.Duration
	RetryBackoff   time.Duration
	SendsPerMinute int
}

// DefaultDispatcherConfig returns production defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		QueueSize:      256,
		MaxAttempts:    3,
		AttemptTimeout: 15 * time.Second,
		RetryBackoff:   30 * time.Second,
		SendsPerMinute: 30,
	}
}

// Dispatcher owns the outbound queue and its worker goroutine. Uses the
// same start/stop shape as the rest of our background workers: mutex
// guarded running flag, done channel, Start spawns exactly one loop.
type Dispatcher struct {
	sender  Sender
	config  DispatcherConfig
	limiter *rate.Limiter
	metrics *observability.GatewayMetrics

	queue chan Message
	done  chan struct{}

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher that delivers through sender.
func NewDispatcher(sender Sender, config DispatcherConfig) *Dispatcher {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultDispatcherConfig().QueueSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	perMinute := config.SendsPerMinute
	if perMinute <= 0 {
		perMinute = DefaultDispatcherConfig().SendsPerMinute
	}
	return &Dispatcher{
		sender:  sender,
		config:  config,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		queue:   make(chan Message, config.QueueSize),
		done:    make(chan struct{}),
	}
}

// WithMetrics attaches delivery-outcome counters. Call before Start.
func (d *Dispatcher) WithMetrics(m *observability.GatewayMetrics) *Dispatcher {
	d.metrics = m
	return d
}

// Enqueue hands a message to the background worker. Never blocks: when
// the queue is full the message is rejected with ErrQueueFull.
func (d *Dispatcher) Enqueue(msg Message) error {
	msg.EnqueuedAt = time.Now()
	select {
	case d.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the worker goroutine. Returns an error if the
// dispatcher is already running.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher is already running")
	}
	d.running = true
	d.done = make(chan struct{})
	d.mu.Unlock()

	slog.Info("Notification dispatcher starting",
		"queue_size", d.config.QueueSize,
		"max_attempts", d.config.MaxAttempts,
		"sends_per_minute", d.config.SendsPerMinute,
	)

	d.wg.Add(1)
	go d.runLoop(ctx)
	return nil
}

// Stop signals the worker to exit and waits for it. Messages still in
// the queue are dropped; this channel is best-effort by design. Safe to
// call more than once.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	slog.Info("Notification dispatcher stopping")
	close(d.done)
	d.running = false
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) runLoop(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.done:
			return
		case msg := <-d.queue:
			d.deliver(ctx, msg)
		}
	}
}

// deliver runs the bounded retry loop for one message. Each attempt
// gets its own timeout; the backoff between attempts is interruptible
// by shutdown.
func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	for {
		if err := d.limiter.Wait(ctx); err != nil {
			return
		}

		msg.attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, d.config.AttemptTimeout)
		err := d.sender.Send(attemptCtx, msg)
		cancel()

		if err == nil {
			d.metrics.RecordNotification("delivered")
			slog.Info("Notification delivered",
				"recipient", msg.Recipient, "attempts", msg.attempts,
				"queued_for", time.Since(msg.EnqueuedAt).String())
			return
		}

		if msg.attempts >= d.config.MaxAttempts {
			d.metrics.RecordNotification("dropped")
			slog.Error("Notification dropped after exhausting attempts",
				"recipient", msg.Recipient, "attempts", msg.attempts, "error", err)
			return
		}

		slog.Warn("Notification attempt failed, will retry",
			"recipient", msg.Recipient, "attempt", msg.attempts, "error", err)

		select {
		case <-ctx.Done():
			return
		case <-d.done:
			return
		case <-time.After(d.config.RetryBackoff):
		}
	}
}
