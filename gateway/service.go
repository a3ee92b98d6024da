// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gateway implements the three operations the service exists
// for: submit an artifact, submit a question, reset upstream state.
// Each is the same thin shape: validate locally (fail fast, no wasted
// round trip), obtain a session-bound client, run exactly one exchange,
// classify the outcome once, persist on success, return a normalized
// result. No operation retries; retrying is the caller's decision.
package gateway

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/AleutianAI/DocBridge/observability"
	"github.com/AleutianAI/DocBridge/records"
	"github.com/AleutianAI/DocBridge/upstream"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("docbridge.gateway")

// uploadFieldName is the multipart field the engine's /upload endpoint
// reads the document from.
const uploadFieldName = "file"

// Service orchestrates gateway operations. Safe for concurrent use;
// the only shared mutable state lives behind the session store inside
// the upstream factory.
type Service struct {
	engine  *upstream.Factory
	records records.Store
	metrics *observability.GatewayMetrics
}

// New wires a gateway service. metrics may be nil.
func New(engine *upstream.Factory, recs records.Store, metrics *observability.GatewayMetrics) *Service {
	return &Service{engine: engine, records: recs, metrics: metrics}
}

// UploadResult is the normalized success payload of SubmitArtifact.
type UploadResult struct {
	RecordID     string          `json:"record_id"`
	StoredName   string          `json:"stored_name"`
	OriginalName string          `json:"original_name"`
	UpstreamAck  json.RawMessage `json:"upstream_ack,omitempty"`
}

// QuestionResult is the normalized success payload of SubmitQuestion.
type QuestionResult struct {
	Answer              string          `json:"answer"`
	ConversationHistory json.RawMessage `json:"conversation_history,omitempty"`
}

// answerEnvelope is the shape the engine's /query endpoint puts in the
// success envelope's data field.
type answerEnvelope struct {
	Answer              *string         `json:"answer"`
	ConversationHistory json.RawMessage `json:"conversation_history"`
}

// SubmitArtifact pushes one document to the engine's ingest endpoint as
// a multipart body and records the artifact for the caller on success.
func (s *Service) SubmitArtifact(ctx context.Context, userID, filename string, content io.Reader) (*UploadResult, error) {
	ctx, span := tracer.Start(ctx, "gateway.SubmitArtifact")
	defer span.End()
	span.SetAttributes(attribute.String("gateway.user_id", userID))

	start := time.Now()
	defer func() { s.metrics.ObserveExchangeDuration("upload", time.Since(start)) }()

	if filename == "" || content == nil {
		return nil, s.fail(span, "upload", upstream.BadRequest("an artifact file is required"))
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, s.fail(span, "upload", upstream.BadRequest("could not read the supplied artifact"))
	}
	if len(data) == 0 {
		return nil, s.fail(span, "upload", upstream.BadRequest("an artifact file is required"))
	}

	originalName := filepath.Base(filename)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(uploadFieldName, originalName)
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	client := s.engine.ClientFor(userID)
	res, exchangeErr := client.Exchange(ctx, upstream.Request{
		Path:        "/upload",
		Body:        &body,
		ContentType: writer.FormDataContentType(),
		Class:       upstream.ClassTransfer,
	})
	if gwErr := upstream.Classify(res, exchangeErr); gwErr != nil {
		return nil, s.fail(span, "upload", gwErr)
	}

	// Deterministic id from the content hash: re-uploading the same
	// bytes yields the same record id instead of a duplicate row.
	hash := sha256.Sum256(append([]byte(userID+":"), data...))
	recordUUID, _ := uuid.FromBytes(hash[:16])

	artifact := &records.Artifact{
		ID:           recordUUID.String(),
		OwnerID:      userID,
		StoredName:   storedName(originalName),
		OriginalName: originalName,
		UploadedAt:   time.Now(),
	}
	if err := s.records.SaveArtifact(ctx, artifact); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Failed to persist artifact record", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to record artifact: %w", err)
	}

	s.metrics.RecordExchange("upload", "success")
	slog.Info("Artifact submitted", "user_id", userID,
		"record_id", artifact.ID, "original_name", originalName, "bytes", len(data))

	result := &UploadResult{
		RecordID:     artifact.ID,
		StoredName:   artifact.StoredName,
		OriginalName: artifact.OriginalName,
	}
	if res.Envelope != nil && len(res.Envelope.Data) > 0 {
		result.UpstreamAck = res.Envelope.Data
	} else if json.Valid(res.Body) {
		result.UpstreamAck = res.Body
	}
	return result, nil
}

// SubmitQuestion runs one question against the caller's loaded document
// context and records the turn on success. The artifact reference must
// exist and belong to the caller; that check happens before any network
// exchange.
func (s *Service) SubmitQuestion(ctx context.Context, userID, artifactID, question string) (*QuestionResult, error) {
	ctx, span := tracer.Start(ctx, "gateway.SubmitQuestion")
	defer span.End()
	span.SetAttributes(
		attribute.String("gateway.user_id", userID),
		attribute.String("gateway.artifact_id", artifactID),
	)

	start := time.Now()
	defer func() { s.metrics.ObserveExchangeDuration("query", time.Since(start)) }()

	if strings.TrimSpace(question) == "" {
		return nil, s.fail(span, "query", upstream.BadRequest("question text is required"))
	}
	if artifactID == "" {
		return nil, s.fail(span, "query", upstream.BadRequest("an artifact reference is required"))
	}

	artifact, err := s.records.GetArtifact(ctx, artifactID)
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			return nil, s.fail(span, "query", upstream.NotFoundOrUnauthorized("artifact not found"))
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to look up artifact: %w", err)
	}
	if artifact.OwnerID != userID {
		// Indistinguishable from absent on purpose: the caller learns
		// nothing about other users' artifacts.
		return nil, s.fail(span, "query", upstream.NotFoundOrUnauthorized("artifact not found"))
	}

	form := url.Values{}
	form.Set("query", question)

	client := s.engine.ClientFor(userID)
	res, exchangeErr := client.Exchange(ctx, upstream.Request{
		Path:        "/query",
		Body:        strings.NewReader(form.Encode()),
		ContentType: "application/x-www-form-urlencoded",
		Class:       upstream.ClassControl,
	})
	if gwErr := upstream.Classify(res, exchangeErr); gwErr != nil {
		return nil, s.fail(span, "query", gwErr)
	}

	answer, history, gwErr := decodeAnswer(res)
	if gwErr != nil {
		return nil, s.fail(span, "query", gwErr)
	}

	turn := &records.QueryRecord{
		ID:         uuid.NewString(),
		OwnerID:    userID,
		ArtifactID: artifactID,
		Question:   question,
		Answer:     answer,
		AskedAt:    time.Now(),
	}
	if err := s.records.SaveQuery(ctx, turn); err != nil {
		// The caller still gets the answer; history is best-effort.
		slog.Error("Failed to persist query record", "user_id", userID, "artifact_id", artifactID, "error", err)
	}

	s.metrics.RecordExchange("query", "success")
	slog.Info("Question answered", "user_id", userID, "artifact_id", artifactID,
		"answer_length", len(answer))

	return &QuestionResult{Answer: answer, ConversationHistory: history}, nil
}

// ResetState asks the engine to drop the caller's loaded document
// context. The engine's acknowledgement is passed through whatever its
// shape; only failures are normalized.
func (s *Service) ResetState(ctx context.Context, userID string) (json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "gateway.ResetState")
	defer span.End()
	span.SetAttributes(attribute.String("gateway.user_id", userID))

	start := time.Now()
	defer func() { s.metrics.ObserveExchangeDuration("reset", time.Since(start)) }()

	client := s.engine.ClientFor(userID)
	res, exchangeErr := client.Exchange(ctx, upstream.Request{
		Path:  "/clear-vector-data",
		Class: upstream.ClassControl,
	})
	if gwErr := upstream.Classify(res, exchangeErr); gwErr != nil {
		return nil, s.fail(span, "reset", gwErr)
	}

	s.metrics.RecordExchange("reset", "success")
	slog.Info("Upstream state reset", "user_id", userID)

	if json.Valid(res.Body) && len(res.Body) > 0 {
		return json.RawMessage(res.Body), nil
	}
	ack, _ := json.Marshal(string(res.Body))
	return ack, nil
}

// decodeAnswer validates the success envelope of /query. A success
// without a well-formed answer field is a logical failure, not a
// partial success.
func decodeAnswer(res *upstream.Result) (string, json.RawMessage, *upstream.Error) {
	if res.Envelope == nil || len(res.Envelope.Data) == 0 {
		return "", nil, upstream.LogicalFailure(
			"processing service returned a malformed answer", string(res.Body))
	}
	var env answerEnvelope
	if err := json.Unmarshal(res.Envelope.Data, &env); err != nil || env.Answer == nil {
		return "", nil, upstream.LogicalFailure(
			"processing service returned a malformed answer", string(res.Envelope.Data))
	}
	return *env.Answer, env.ConversationHistory, nil
}

// fail records the classified outcome once: span, metric, log. The
// classifier's output is the single source of caller-visible truth.
func (s *Service) fail(span trace.Span, op string, gwErr *upstream.Error) error {
	span.RecordError(gwErr)
	span.SetStatus(codes.Error, string(gwErr.Category))
	s.metrics.RecordExchange(op, string(gwErr.Category))
	slog.Warn("Gateway operation failed",
		"operation", op, "category", gwErr.Category, "status", gwErr.HTTPStatus,
		"message", gwErr.Message, "detail", gwErr.Detail)
	return gwErr
}

func storedName(originalName string) string {
	ext := filepath.Ext(originalName)
	base := strings.TrimSuffix(originalName, ext)
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	return base + ext
}
