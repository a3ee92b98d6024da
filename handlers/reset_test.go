// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetState_PassesEngineAckThrough(t *testing.T) {
	stack := newTestStack(t, func(w http.ResponseWriter, r *http.Request) {
		drainBody(r)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": true, "message": "vector data cleared"}`))
	})
	stack.router.POST("/v1/reset", ResetState(stack.service))

	w := performJSON(stack.router, "POST", "/v1/reset", "alice", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success": true, "message": "vector data cleared"}`, w.Body.String())
}

func TestResetState_PortConflictIsClassified(t *testing.T) {
	stack := newTestStack(t, func(w http.ResponseWriter, r *http.Request) {
		drainBody(r)
		w.Header().Set("Server", "AirTunes/845.5.1")
		w.WriteHeader(http.StatusForbidden)
	})
	stack.router.POST("/v1/reset", ResetState(stack.service))

	w := performJSON(stack.router, "POST", "/v1/reset", "alice", nil)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "port_conflict", body["category"])
	assert.Contains(t, body["error"], "127.0.0.1")
}

func TestHealthCheck(t *testing.T) {
	// Health is public; no identity middleware involved.
	router := gin.New()
	router.GET("/health", HealthCheck)

	w := performJSON(router, "GET", "/health", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "ok"}`, w.Body.String())
}
