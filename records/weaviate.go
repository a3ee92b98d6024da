// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package records

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

const (
	artifactClass = "Artifact"
	queryClass    = "QueryHistory"
)

// WeaviateStore persists records as Weaviate objects, one class per
// record type. Artifacts and history rows carry no vectors; Weaviate is
// used here purely as the product's shared object store.
type WeaviateStore struct {
	client *weaviate.Client
}

// NewWeaviateStore wraps an already-connected client.
func NewWeaviateStore(client *weaviate.Client) *WeaviateStore {
	return &WeaviateStore{client: client}
}

func getArtifactSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       artifactClass,
		Description: "An uploaded document tracked by the gateway; content lives in the document engine.",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{
				Name:            "owner_id",
				DataType:        []string{"text"},
				Description:     "Stable user identifier of the uploader.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:         "stored_name",
				DataType:     []string{"text"},
				Description:  "Name the artifact was stored under.",
				Tokenization: "field",
			},
			{
				Name:         "original_name",
				DataType:     []string{"text"},
				Description:  "Filename as supplied by the uploader.",
				Tokenization: "field",
			},
			{
				Name:            "uploaded_at",
				DataType:        []string{"number"},
				Description:     "Timestamp (Unix ms) of the upload.",
				IndexFilterable: indexFilterable,
			},
		},
	}
}

func getQueryHistorySchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       queryClass,
		Description: "One question/answer turn against an artifact.",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{
				Name:            "owner_id",
				DataType:        []string{"text"},
				Description:     "Stable user identifier of the asker.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "artifact_id",
				DataType:        []string{"text"},
				Description:     "The artifact this question ran against.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:        "question",
				DataType:    []string{"text"},
				Description: "The user's question text.",
			},
			{
				Name:        "answer",
				DataType:    []string{"text"},
				Description: "The engine's answer text.",
			},
			{
				Name:            "asked_at",
				DataType:        []string{"number"},
				Description:     "Timestamp (Unix ms) of the question.",
				IndexFilterable: indexFilterable,
			},
		},
	}
}

// EnsureSchema creates the Artifact and QueryHistory classes if they do
// not exist yet. Failure to create a missing class is fatal; the service
// cannot run against a store it cannot write to.
func EnsureSchema(client *weaviate.Client) {
	for _, getSchema := range []func() *models.Class{getArtifactSchema, getQueryHistorySchema} {
		class := getSchema()
		slog.Info("Checking schema", "class", class.Class)

		_, err := client.Schema().ClassGetter().WithClassName(class.Class).Do(context.Background())
		if err != nil {
			slog.Info("Schema not found, creating it...", "class", class.Class)
			if err := client.Schema().ClassCreator().WithClass(class).Do(context.Background()); err != nil {
				log.Fatalf("Failed to create schema for class %s: %v", class.Class, err)
			}
			slog.Info("Successfully created schema", "class", class.Class)
		} else {
			slog.Info("Schema already exists", "class", class.Class)
		}
	}
}

func (s *WeaviateStore) SaveArtifact(ctx context.Context, a *Artifact) error {
	// Weaviate object ids must be UUIDs; the gateway derives them from a
	// content hash, so a malformed id is a programming error worth
	// catching before the round trip.
	if !strfmt.IsUUID(a.ID) {
		return fmt.Errorf("artifact id %q is not a valid UUID", a.ID)
	}
	properties := map[string]interface{}{
		"owner_id":      a.OwnerID,
		"stored_name":   a.StoredName,
		"original_name": a.OriginalName,
		"uploaded_at":   a.UploadedAt.UnixMilli(),
	}

	_, err := s.client.Data().Creator().
		WithClassName(artifactClass).
		WithID(a.ID).
		WithProperties(properties).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to save Artifact object to Weaviate: %w", err)
	}
	return nil
}

// artifactQueryResponse mirrors the GraphQL shape for the Artifact class.
type artifactQueryResponse struct {
	Get struct {
		Artifact []artifactResult `json:"Artifact"`
	} `json:"Get"`
}

type artifactResult struct {
	OwnerID      string `json:"owner_id"`
	StoredName   string `json:"stored_name"`
	OriginalName string `json:"original_name"`
	UploadedAt   int64  `json:"uploaded_at"`
	Additional   struct {
		ID string `json:"id"`
	} `json:"_additional"`
}

var artifactFields = []graphql.Field{
	{Name: "owner_id"},
	{Name: "stored_name"},
	{Name: "original_name"},
	{Name: "uploaded_at"},
	{Name: "_additional", Fields: []graphql.Field{{Name: "id"}}},
}

func (s *WeaviateStore) GetArtifact(ctx context.Context, id string) (*Artifact, error) {
	where := filters.Where().
		WithPath([]string{"id"}).
		WithOperator(filters.Equal).
		WithValueString(id)

	resp, err := s.client.GraphQL().Get().
		WithClassName(artifactClass).
		WithWhere(where).
		WithFields(artifactFields...).
		WithLimit(1).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("error querying for artifact: %w", err)
	}

	parsed, err := parseGraphQLResponse[artifactQueryResponse](resp)
	if err != nil {
		return nil, fmt.Errorf("error parsing artifact query response: %w", err)
	}
	if len(parsed.Get.Artifact) == 0 {
		return nil, ErrNotFound
	}
	return toArtifact(parsed.Get.Artifact[0]), nil
}

func (s *WeaviateStore) ListArtifacts(ctx context.Context, ownerID string) ([]Artifact, error) {
	where := filters.Where().
		WithPath([]string{"owner_id"}).
		WithOperator(filters.Equal).
		WithValueString(ownerID)

	resp, err := s.client.GraphQL().Get().
		WithClassName(artifactClass).
		WithWhere(where).
		WithFields(artifactFields...).
		WithSort(graphql.Sort{Path: []string{"uploaded_at"}, Order: graphql.Asc}).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing artifacts: %w", err)
	}

	parsed, err := parseGraphQLResponse[artifactQueryResponse](resp)
	if err != nil {
		return nil, fmt.Errorf("error parsing artifact list response: %w", err)
	}

	out := make([]Artifact, 0, len(parsed.Get.Artifact))
	for _, r := range parsed.Get.Artifact {
		out = append(out, *toArtifact(r))
	}
	return out, nil
}

func (s *WeaviateStore) DeleteArtifact(ctx context.Context, id string) error {
	if _, err := s.GetArtifact(ctx, id); err != nil {
		return err
	}

	// History rows first, then the artifact object itself.
	historyFilter := filters.Where().
		WithPath([]string{"artifact_id"}).
		WithOperator(filters.Equal).
		WithValueString(id)

	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(queryClass).
		WithOutput("minimal").
		WithWhere(historyFilter).
		Do(ctx)
	if err != nil {
		slog.Error("failed to delete query history for artifact", "artifact_id", id, "error", err)
	}

	if err := s.client.Data().Deleter().
		WithClassName(artifactClass).
		WithID(id).
		Do(ctx); err != nil {
		return fmt.Errorf("failed to delete artifact object: %w", err)
	}
	return nil
}

func (s *WeaviateStore) SaveQuery(ctx context.Context, q *QueryRecord) error {
	properties := map[string]interface{}{
		"owner_id":    q.OwnerID,
		"artifact_id": q.ArtifactID,
		"question":    q.Question,
		"answer":      q.Answer,
		"asked_at":    q.AskedAt.UnixMilli(),
	}

	_, err := s.client.Data().Creator().
		WithClassName(queryClass).
		WithID(q.ID).
		WithProperties(properties).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to save QueryHistory object to Weaviate: %w", err)
	}
	return nil
}

type queryHistoryResponse struct {
	Get struct {
		QueryHistory []queryResult `json:"QueryHistory"`
	} `json:"Get"`
}

type queryResult struct {
	OwnerID    string `json:"owner_id"`
	ArtifactID string `json:"artifact_id"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	AskedAt    int64  `json:"asked_at"`
	Additional struct {
		ID string `json:"id"`
	} `json:"_additional"`
}

func (s *WeaviateStore) ListQueries(ctx context.Context, ownerID, artifactID string) ([]QueryRecord, error) {
	ownerFilter := filters.Where().
		WithPath([]string{"owner_id"}).
		WithOperator(filters.Equal).
		WithValueString(ownerID)

	where := ownerFilter
	if artifactID != "" {
		where = filters.Where().WithOperator(filters.And).WithOperands([]*filters.WhereBuilder{
			ownerFilter,
			filters.Where().
				WithPath([]string{"artifact_id"}).
				WithOperator(filters.Equal).
				WithValueString(artifactID),
		})
	}

	fields := []graphql.Field{
		{Name: "owner_id"},
		{Name: "artifact_id"},
		{Name: "question"},
		{Name: "answer"},
		{Name: "asked_at"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "id"}}},
	}

	resp, err := s.client.GraphQL().Get().
		WithClassName(queryClass).
		WithWhere(where).
		WithFields(fields...).
		WithSort(graphql.Sort{Path: []string{"asked_at"}, Order: graphql.Asc}).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing query history: %w", err)
	}

	parsed, err := parseGraphQLResponse[queryHistoryResponse](resp)
	if err != nil {
		return nil, fmt.Errorf("error parsing query history response: %w", err)
	}

	out := make([]QueryRecord, 0, len(parsed.Get.QueryHistory))
	for _, r := range parsed.Get.QueryHistory {
		out = append(out, QueryRecord{
			ID:         r.Additional.ID,
			OwnerID:    r.OwnerID,
			ArtifactID: r.ArtifactID,
			Question:   r.Question,
			Answer:     r.Answer,
			AskedAt:    time.UnixMilli(r.AskedAt),
		})
	}
	return out, nil
}

func toArtifact(r artifactResult) *Artifact {
	return &Artifact{
		ID:           r.Additional.ID,
		OwnerID:      r.OwnerID,
		StoredName:   r.StoredName,
		OriginalName: r.OriginalName,
		UploadedAt:   time.UnixMilli(r.UploadedAt),
	}
}

// parseGraphQLResponse round-trips resp.Data through JSON into a typed
// shape, since the client hands back map[string]models.JSONObject.
func parseGraphQLResponse[T any](resp *models.GraphQLResponse) (*T, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}
	respBytes, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GraphQL response data: %w", err)
	}
	var result T
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into target type: %w", err)
	}
	return &result, nil
}
