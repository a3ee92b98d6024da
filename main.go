// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/AleutianAI/DocBridge/gateway"
	"github.com/AleutianAI/DocBridge/notify"
	"github.com/AleutianAI/DocBridge/observability"
	"github.com/AleutianAI/DocBridge/pkg/logging"
	"github.com/AleutianAI/DocBridge/records"
	"github.com/AleutianAI/DocBridge/routes"
	"github.com/AleutianAI/DocBridge/session"
	"github.com/AleutianAI/DocBridge/upstream"
	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"google.golang.org/grpc/credentials/insecure"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
)

// envValue reads an environment variable and strips quotes and
// whitespace that container runtimes sometimes pass through literally.
func envValue(key, fallback string) string {
	v := strings.Trim(os.Getenv(key), "\"' ")
	if v == "" {
		return fallback
	}
	return v
}

// initTracer wires the OTLP trace exporter. Returns a nil cleanup and
// nil error when no collector endpoint is configured; tracing then
// stays on the default no-op provider.
func initTracer() (func(context.Context), error) {
	otelEndpoint := envValue("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	if otelEndpoint == "" {
		slog.Info("OTEL_EXPORTER_OTLP_ENDPOINT not set, tracing disabled")
		return nil, nil
	}

	ctx := context.Background()
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("docbridge-gateway")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// recordStore picks the artifact/history store. A reachable Weaviate
// gives durable records; anything else falls back to in-memory
// lightweight mode.
func recordStore() records.Store {
	weaviateURL := envValue("WEAVIATE_SERVICE_URL", "")
	if weaviateURL == "" || !strings.Contains(weaviateURL, "http") {
		slog.Info("WEAVIATE_SERVICE_URL not set or empty. Running in lightweight mode (in-memory records).")
		return records.NewMemoryStore()
	}

	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		slog.Warn("WEAVIATE_SERVICE_URL is invalid. Running in lightweight mode.",
			"url", weaviateURL, "error", err)
		return records.NewMemoryStore()
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
	if err != nil {
		slog.Error("Failed to create Weaviate client, running in lightweight mode", "error", err)
		return records.NewMemoryStore()
	}

	records.EnsureSchema(client)
	return records.NewWeaviateStore(client)
}

func main() {
	port := envValue("GATEWAY_PORT", "12230")

	logger := logging.New(logging.Config{
		Level:   slog.LevelInfo,
		LogDir:  envValue("DOCBRIDGE_LOG_DIR", ""),
		Service: "docbridge",
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	if cleanup != nil {
		defer cleanup(context.Background())
	}

	engineURL := envValue("DOCENGINE_URL", "http://localhost:5000")
	slog.Info("Forwarding to document engine", "url", engineURL)

	recs := recordStore()
	metrics := observability.NewGatewayMetrics()

	factory := upstream.NewFactory(engineURL, session.NewMemoryStore())
	svc := gateway.New(factory, recs, metrics)

	// Notification dispatch: real SMTP when configured, otherwise a
	// sender that refuses so enqueue failures surface in the response
	// flag instead of silently vanishing.
	var sender notify.Sender = notify.NopSender{}
	if smtpConfig, ok := notify.SMTPConfigFromEnv(); ok {
		sender = notify.NewSMTPSender(smtpConfig)
		slog.Info("SMTP notifications enabled", "host", smtpConfig.Host)
	} else {
		slog.Info("SMTP not configured, access-code notifications disabled")
	}
	dispatcher := notify.NewDispatcher(sender, notify.DefaultDispatcherConfig()).WithMetrics(metrics)
	if err := dispatcher.Start(context.Background()); err != nil {
		log.Fatalf("failed to start the notification dispatcher: %v", err)
	}
	defer dispatcher.Stop()

	router := gin.Default()
	router.Use(otelgin.Middleware("docbridge-gateway"))

	routes.SetupRoutes(router, svc, recs, dispatcher, metrics)

	slog.Info("Starting the gateway", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
