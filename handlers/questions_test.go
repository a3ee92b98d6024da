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
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/AleutianAI/DocBridge/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func answerEngine(answer string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": true, "data": {"answer": "` + answer + `"}}`))
	}
}

func seedArtifact(t *testing.T, recs records.Store, id, owner string) {
	t.Helper()
	require.NoError(t, recs.SaveArtifact(context.Background(), &records.Artifact{
		ID: id, OwnerID: owner, StoredName: "doc.pdf", OriginalName: "doc.pdf", UploadedAt: time.Now(),
	}))
}

func TestSubmitQuestion_Success(t *testing.T) {
	stack := newTestStack(t, answerEngine("net revenue was flat"))
	stack.router.POST("/v1/questions", SubmitQuestion(stack.service))
	seedArtifact(t, stack.records, "a-1", "alice")

	w := performJSON(stack.router, "POST", "/v1/questions", "alice", map[string]string{
		"artifact_id": "a-1",
		"question":    "What was net revenue?",
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, "net revenue was flat", body["answer"])
}

func TestSubmitQuestion_MalformedBody(t *testing.T) {
	stack := newTestStack(t, answerEngine("unused"))
	stack.router.POST("/v1/questions", SubmitQuestion(stack.service))

	for name, body := range map[string]interface{}{
		"missing question":    map[string]string{"artifact_id": "a-1"},
		"missing artifact id": map[string]string{"question": "anything"},
		"empty body":          nil,
	} {
		t.Run(name, func(t *testing.T) {
			w := performJSON(stack.router, "POST", "/v1/questions", "alice", body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			resp := decodeBody(t, w)
			assert.Equal(t, "bad_request", resp["category"])
		})
	}
}

func TestSubmitQuestion_UnknownArtifact(t *testing.T) {
	stack := newTestStack(t, answerEngine("unused"))
	stack.router.POST("/v1/questions", SubmitQuestion(stack.service))

	w := performJSON(stack.router, "POST", "/v1/questions", "alice", map[string]string{
		"artifact_id": "no-such-artifact",
		"question":    "anything",
	})

	require.Equal(t, http.StatusNotFound, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "not_found_or_unauthorized", body["category"])
}

func TestSubmitQuestion_LogicalFailureSurfacesEngineMessage(t *testing.T) {
	stack := newTestStack(t, func(w http.ResponseWriter, r *http.Request) {
		drainBody(r)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": false, "message": "index not built"}`))
	})
	stack.router.POST("/v1/questions", SubmitQuestion(stack.service))
	seedArtifact(t, stack.records, "a-1", "alice")

	w := performJSON(stack.router, "POST", "/v1/questions", "alice", map[string]string{
		"artifact_id": "a-1",
		"question":    "anything",
	})

	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "upstream_logical_failure", body["category"])
	assert.Contains(t, body["error"], "index not built")
}

func TestListQuestions_NarrowsByArtifact(t *testing.T) {
	stack := newTestStack(t, answerEngine("unused"))
	stack.router.GET("/v1/questions", ListQuestions(stack.records))

	ctx := context.Background()
	require.NoError(t, stack.records.SaveQuery(ctx, &records.QueryRecord{
		ID: "q-1", OwnerID: "alice", ArtifactID: "a-1", Question: "first?", Answer: "yes", AskedAt: time.Now(),
	}))
	require.NoError(t, stack.records.SaveQuery(ctx, &records.QueryRecord{
		ID: "q-2", OwnerID: "alice", ArtifactID: "a-2", Question: "second?", Answer: "no", AskedAt: time.Now(),
	}))

	all := performJSON(stack.router, "GET", "/v1/questions", "alice", nil)
	narrowed := performJSON(stack.router, "GET", "/v1/questions?artifact_id=a-2", "alice", nil)

	require.Equal(t, http.StatusOK, all.Code)
	require.Equal(t, http.StatusOK, narrowed.Code)

	assert.Len(t, decodeBody(t, all)["questions"], 2)
	narrowedList := decodeBody(t, narrowed)["questions"].([]interface{})
	require.Len(t, narrowedList, 1)
	assert.Equal(t, "q-2", narrowedList[0].(map[string]interface{})["id"])
}

func TestListQuestions_EmptyIsAList(t *testing.T) {
	stack := newTestStack(t, answerEngine("unused"))
	stack.router.GET("/v1/questions", ListQuestions(stack.records))

	w := performJSON(stack.router, "GET", "/v1/questions", "alice", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"questions": []}`, w.Body.String())
}
