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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AleutianAI/DocBridge/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSender captures sends and can be told to fail the first N
// attempts per recipient.
type recordingSender struct {
	mu        sync.Mutex
	sent      []Message
	failFirst int
	attempts  map[string]int
}

func newRecordingSender(failFirst int) *recordingSender {
	return &recordingSender{failFirst: failFirst, attempts: map[string]int{}}
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[msg.Recipient]++
	if s.attempts[msg.Recipient] <= s.failFirst {
		return errors.New("relay unavailable")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) delivered() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}

func fastConfig() DispatcherConfig {
	return DispatcherConfig{
		QueueSize:      4,
		MaxAttempts:    3,
		AttemptTimeout: time.Second,
		RetryBackoff:   5 * time.Millisecond,
		SendsPerMinute: 60000, // effectively unpaced in tests
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestDispatcher_DeliversEnqueuedMessage(t *testing.T) {
	sender := newRecordingSender(0)
	d := NewDispatcher(sender, fastConfig())
	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()

	require.NoError(t, d.Enqueue(Message{Recipient: "alice@example.com", Subject: "Your access code", Body: "123456"}))

	waitFor(t, func() bool { return len(sender.delivered()) == 1 })
	got := sender.delivered()[0]
	assert.Equal(t, "alice@example.com", got.Recipient)
	assert.Equal(t, "123456", got.Body)
	assert.False(t, got.EnqueuedAt.IsZero())
}

func TestDispatcher_RetriesThenSucceeds(t *testing.T) {
	sender := newRecordingSender(2) // fail twice, succeed on third
	d := NewDispatcher(sender, fastConfig())
	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()

	require.NoError(t, d.Enqueue(Message{Recipient: "bob@example.com"}))

	waitFor(t, func() bool { return len(sender.delivered()) == 1 })
	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Equal(t, 3, sender.attempts["bob@example.com"])
}

func TestDispatcher_DropsAfterMaxAttempts(t *testing.T) {
	sender := newRecordingSender(10) // never succeeds within 3 attempts
	d := NewDispatcher(sender, fastConfig())
	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()

	require.NoError(t, d.Enqueue(Message{Recipient: "carol@example.com"}))

	waitFor(t, func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return sender.attempts["carol@example.com"] == 3
	})
	// Give it a moment to prove no fourth attempt happens.
	time.Sleep(30 * time.Millisecond)
	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Equal(t, 3, sender.attempts["carol@example.com"])
	assert.Empty(t, sender.sent)
}

func TestDispatcher_EnqueueRejectsWhenFull(t *testing.T) {
	sender := newRecordingSender(0)
	cfg := fastConfig()
	cfg.QueueSize = 1
	d := NewDispatcher(sender, cfg)
	// Not started: nothing drains the queue.

	require.NoError(t, d.Enqueue(Message{Recipient: "a@example.com"}))
	err := d.Enqueue(Message{Recipient: "b@example.com"})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestDispatcher_StartTwiceFails(t *testing.T) {
	d := NewDispatcher(newRecordingSender(0), fastConfig())
	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()

	assert.Error(t, d.Start(context.Background()))
}

func TestDispatcher_StopIsIdempotent(t *testing.T) {
	d := NewDispatcher(newRecordingSender(0), fastConfig())
	require.NoError(t, d.Start(context.Background()))
	d.Stop()
	d.Stop()
}

func TestDispatcher_CountsDeliveryOutcomes(t *testing.T) {
	metrics := observability.NewGatewayMetricsForTesting()
	sender := newRecordingSender(10) // first message is dropped
	d := NewDispatcher(sender, fastConfig()).WithMetrics(metrics)
	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()

	require.NoError(t, d.Enqueue(Message{Recipient: "carol@example.com"}))
	waitFor(t, func() bool {
		return testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues("dropped")) == 1
	})

	sender.mu.Lock()
	sender.failFirst = 0
	sender.mu.Unlock()
	require.NoError(t, d.Enqueue(Message{Recipient: "dave@example.com"}))
	waitFor(t, func() bool {
		return testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues("delivered")) == 1
	})
}

func TestNopSender_ReportsNotConfigured(t *testing.T) {
	err := NopSender{}.Send(context.Background(), Message{Recipient: "x@example.com"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
