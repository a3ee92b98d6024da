// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session keeps the per-user upstream session credentials the
// document engine hands back as cookies. The engine holds user context
// (loaded embeddings) server-side, keyed by that cookie, so the gateway
// must present the same credential on every exchange for the same user.
//
// # Semantics
//
// At most one credential is held per user id. Put is last-write-wins:
// when two exchanges for the same user race, whichever response arrives
// last determines the stored credential. That is intentional and must
// stay that way; upstream sessions for one user are used near-serially
// in practice, and adding serialization here would change observable
// behavior without fixing anything.
//
// The in-memory store never evicts. Growth is bounded by the product's
// active user population, not the open Internet; the Store interface
// exists so an evicting implementation can be swapped in later without
// touching callers.
package session

import (
	"sync"
	"time"
)

// Store is the contract the gateway depends on for session credentials.
//
// Implementations must support concurrent Get/Put from independent
// users without interference, and a single Put must be atomic: a reader
// never observes a partially written credential.
type Store interface {
	// Get returns the current credential for userID, or ok=false when the
	// user has not yet established an upstream session. Absence is not an
	// error; the first exchange establishes the session.
	Get(userID string) (credential string, ok bool)

	// Put records the credential captured from the most recent upstream
	// response for userID, replacing any prior value.
	Put(userID, credential string)
}

// Record is one captured credential plus its capture time. CapturedAt is
// diagnostic only; nothing expires on it.
type Record struct {
	Credential string
	CapturedAt time.Time
}

// MemoryStore is the process-lifetime Store implementation. State is
// lost on restart, which is fine: the upstream will simply issue a fresh
// session on the next exchange.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Record
}

// NewMemoryStore returns an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Record)}
}

func (s *MemoryStore) Get(userID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sessions[userID]
	if !ok {
		return "", false
	}
	return rec.Credential, true
}

func (s *MemoryStore) Put(userID, credential string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = Record{Credential: credential, CapturedAt: time.Now()}
}

// Len reports how many users currently hold a credential. Exposed for
// diagnostics and tests.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
