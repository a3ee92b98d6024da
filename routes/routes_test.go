// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AleutianAI/DocBridge/gateway"
	"github.com/AleutianAI/DocBridge/middleware"
	"github.com/AleutianAI/DocBridge/records"
	"github.com/AleutianAI/DocBridge/session"
	"github.com/AleutianAI/DocBridge/upstream"
	"github.com/gin-gonic/gin"
)

// ============================================================================
// Test Setup
// ============================================================================

func init() {
	// Set Gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": true}`))
	}))
	t.Cleanup(srv.Close)

	recs := records.NewMemoryStore()
	factory := upstream.NewFactory(srv.URL, session.NewMemoryStore())
	svc := gateway.New(factory, recs, nil)

	router := gin.New()
	SetupRoutes(router, svc, recs, nil, nil)
	return router
}

// ============================================================================
// Route Registration Tests
// ============================================================================

func TestSetupRoutes_RegistersAllRoutes(t *testing.T) {
	router := newRouter(t)

	expected := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/metrics"},
		{"POST", "/v1/artifacts"},
		{"GET", "/v1/artifacts"},
		{"DELETE", "/v1/artifacts/:artifactId"},
		{"POST", "/v1/questions"},
		{"GET", "/v1/questions"},
		{"POST", "/v1/reset"},
	}

	routes := router.Routes()
	for _, want := range expected {
		found := false
		for _, r := range routes {
			if r.Method == want.method && r.Path == want.path {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected route %s %s not found", want.method, want.path)
		}
	}
}

func TestSetupRoutes_HealthEndpoint(t *testing.T) {
	router := newRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Health endpoint returned %d, want %d", w.Code, http.StatusOK)
	}
}

func TestSetupRoutes_MetricsEndpoint(t *testing.T) {
	router := newRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/metrics", nil)
	router.ServeHTTP(w, req)

	// Prometheus metrics endpoint should return 200
	if w.Code != http.StatusOK {
		t.Errorf("Metrics endpoint returned %d, want %d", w.Code, http.StatusOK)
	}
	if w.Header().Get("Content-Type") == "" {
		t.Error("Metrics endpoint should return Content-Type header")
	}
}

// ============================================================================
// Identity Enforcement Tests
// ============================================================================

func TestSetupRoutes_V1RequiresIdentity(t *testing.T) {
	router := newRouter(t)

	protected := []struct {
		method string
		path   string
	}{
		{"GET", "/v1/artifacts"},
		{"GET", "/v1/questions"},
		{"POST", "/v1/reset"},
	}

	for _, route := range protected {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(route.method, route.path, nil)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without identity returned %d, want %d",
				route.method, route.path, w.Code, http.StatusUnauthorized)
		}
	}
}

func TestSetupRoutes_PublicRoutesSkipIdentity(t *testing.T) {
	router := newRouter(t)

	for _, path := range []string{"/health", "/metrics"} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", path, nil)
		router.ServeHTTP(w, req)

		if w.Code == http.StatusUnauthorized {
			t.Errorf("GET %s should not require identity", path)
		}
	}
}

func TestSetupRoutes_IdentifiedRequestReachesHandlers(t *testing.T) {
	router := newRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/artifacts", nil)
	req.Header.Set(middleware.UserHeader, "alice")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Identified list returned %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
}
