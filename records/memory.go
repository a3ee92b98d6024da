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
	"sort"
	"sync"
)

// MemoryStore is the Store used in tests and in lightweight mode, when
// no Weaviate endpoint is configured. Records do not survive a restart.
type MemoryStore struct {
	mu        sync.RWMutex
	artifacts map[string]Artifact
	queries   map[string]QueryRecord
}

// NewMemoryStore returns an empty in-memory record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		artifacts: make(map[string]Artifact),
		queries:   make(map[string]QueryRecord),
	}
}

func (s *MemoryStore) SaveArtifact(_ context.Context, a *Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[a.ID] = *a
	return nil
}

func (s *MemoryStore) GetArtifact(_ context.Context, id string) (*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.artifacts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (s *MemoryStore) ListArtifacts(_ context.Context, ownerID string) ([]Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Artifact
	for _, a := range s.artifacts {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.Before(out[j].UploadedAt) })
	return out, nil
}

func (s *MemoryStore) DeleteArtifact(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.artifacts[id]; !ok {
		return ErrNotFound
	}
	delete(s.artifacts, id)
	for qid, q := range s.queries {
		if q.ArtifactID == id {
			delete(s.queries, qid)
		}
	}
	return nil
}

func (s *MemoryStore) SaveQuery(_ context.Context, q *QueryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries[q.ID] = *q
	return nil
}

func (s *MemoryStore) ListQueries(_ context.Context, ownerID, artifactID string) ([]QueryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []QueryRecord
	for _, q := range s.queries {
		if q.OwnerID != ownerID {
			continue
		}
		if artifactID != "" && q.ArtifactID != artifactID {
			continue
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AskedAt.Before(out[j].AskedAt) })
	return out, nil
}
