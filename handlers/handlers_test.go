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
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
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

// =============================================================================
// Test Setup
// =============================================================================

func init() {
	// Set Gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

// testStack bundles the full wiring behind a handler under test.
type testStack struct {
	router   *gin.Engine
	service  *gateway.Service
	records  *records.MemoryStore
	sessions *session.MemoryStore
}

// newTestStack builds a gateway backed by the given engine handler and
// returns a router the tests register routes on. The identity
// middleware is installed; requests authenticate via the user header.
func newTestStack(t *testing.T, engine http.HandlerFunc) *testStack {
	t.Helper()
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)

	sessions := session.NewMemoryStore()
	recs := records.NewMemoryStore()
	factory := upstream.NewFactory(srv.URL, sessions)

	router := gin.New()
	router.Use(middleware.Identity())
	return &testStack{
		router:   router,
		service:  gateway.New(factory, recs, nil),
		records:  recs,
		sessions: sessions,
	}
}

// performJSON executes a JSON request as the given user.
func performJSON(router *gin.Engine, method, path, user string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(middleware.UserHeader, user)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// performUpload executes a multipart upload as the given user.
// extraFields become plain form fields alongside the file part.
func performUpload(router *gin.Engine, path, user, filename string, content []byte,
	extraFields map[string]string) *httptest.ResponseRecorder {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if filename != "" {
		part, _ := writer.CreateFormFile("document", filename)
		_, _ = part.Write(content)
	}
	for k, v := range extraFields {
		_ = writer.WriteField(k, v)
	}
	_ = writer.Close()

	req, _ := http.NewRequest("POST", path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if user != "" {
		req.Header.Set(middleware.UserHeader, user)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("response body is not JSON: %v\n%s", err, w.Body.String())
	}
	return out
}

// drainBody is a tiny helper for engine doubles that must consume the
// request before answering.
func drainBody(r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)
}
