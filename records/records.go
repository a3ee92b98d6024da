// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package records persists what the gateway needs to remember about
// uploads and questions: which artifacts exist, who owns them, and the
// question/answer history per artifact. The store holds plain records
// and enforces nothing; ownership checks are the gateway's job.
package records

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("record not found")

// Artifact is one uploaded document as the gateway tracks it. The
// document's content lives in the upstream engine, not here.
type Artifact struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	StoredName   string    `json:"stored_name"`
	OriginalName string    `json:"original_name"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// QueryRecord is one question/answer turn against an artifact.
type QueryRecord struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	ArtifactID string    `json:"artifact_id"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	AskedAt    time.Time `json:"asked_at"`
}

// Store is the record-store collaborator contract.
type Store interface {
	SaveArtifact(ctx context.Context, a *Artifact) error
	// GetArtifact returns ErrNotFound when id is unknown.
	GetArtifact(ctx context.Context, id string) (*Artifact, error)
	ListArtifacts(ctx context.Context, ownerID string) ([]Artifact, error)
	// DeleteArtifact removes the artifact and its query history.
	DeleteArtifact(ctx context.Context, id string) error

	SaveQuery(ctx context.Context, q *QueryRecord) error
	// ListQueries returns ownerID's history, optionally narrowed to one
	// artifact when artifactID is non-empty, oldest first.
	ListQueries(ctx context.Context, ownerID, artifactID string) ([]QueryRecord, error)
}
