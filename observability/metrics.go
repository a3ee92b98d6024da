// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the gateway.
//
// # Description
//
// Exposes counters and histograms for the session-affinity gateway:
//   - Exchange counters by operation (upload, query, reset) and outcome
//     (success or error-taxonomy category)
//   - Exchange latency histograms by operation
//   - Notification queue counters (enqueued, rejected, delivered, dropped)
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "docbridge"

// Subsystem for gateway exchange metrics
const gatewaySubsystem = "gateway"

// GatewayMetrics holds all Prometheus metrics for gateway operations.
// A nil *GatewayMetrics is valid; every recording method is a no-op on
// nil, so wiring metrics stays optional in tests and lightweight mode.
type GatewayMetrics struct {
	// ExchangesTotal counts gateway operations by operation and outcome.
	// Labels: operation (upload, query, reset), outcome (success or an
	// error-taxonomy category such as upstream_unreachable)
	ExchangesTotal *prometheus.CounterVec

	// ExchangeDurationSeconds measures end-to-end operation latency.
	// Labels: operation
	ExchangeDurationSeconds *prometheus.HistogramVec

	// NotificationsTotal counts notification outcomes.
	// Labels: outcome (enqueued, rejected, delivered, dropped)
	NotificationsTotal *prometheus.CounterVec
}

// NewGatewayMetrics registers the gateway metrics on the default
// registry. Call once at startup.
func NewGatewayMetrics() *GatewayMetrics {
	return newGatewayMetricsWith(prometheus.DefaultRegisterer)
}

// NewGatewayMetricsForTesting registers on a private registry so tests
// can instantiate metrics repeatedly without duplicate-registration
// panics.
func NewGatewayMetricsForTesting() *GatewayMetrics {
	return newGatewayMetricsWith(prometheus.NewRegistry())
}

func newGatewayMetricsWith(reg prometheus.Registerer) *GatewayMetrics {
	factory := promauto.With(reg)
	return &GatewayMetrics{
		ExchangesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: gatewaySubsystem,
			Name:      "exchanges_total",
			Help:      "Gateway operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		ExchangeDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: gatewaySubsystem,
			Name:      "exchange_duration_seconds",
			Help:      "End-to-end gateway operation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"operation"}),
		NotificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "notify",
			Name:      "notifications_total",
			Help:      "Notification messages by outcome.",
		}, []string{"outcome"}),
	}
}

// RecordExchange counts one finished operation. outcome is "success" or
// an error-taxonomy category string.
func (m *GatewayMetrics) RecordExchange(operation, outcome string) {
	if m == nil {
		return
	}
	m.ExchangesTotal.WithLabelValues(operation, outcome).Inc()
}

// ObserveExchangeDuration records one operation's latency.
func (m *GatewayMetrics) ObserveExchangeDuration(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.ExchangeDurationSeconds.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordNotification counts one notification outcome.
func (m *GatewayMetrics) RecordNotification(outcome string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(outcome).Inc()
}
