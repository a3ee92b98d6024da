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
	"log/slog"
	"net/http"

	"github.com/AleutianAI/DocBridge/datatypes"
	"github.com/AleutianAI/DocBridge/gateway"
	"github.com/AleutianAI/DocBridge/middleware"
	"github.com/AleutianAI/DocBridge/records"
	"github.com/gin-gonic/gin"
)

// SubmitQuestion runs one question against a loaded artifact.
func SubmitQuestion(svc *gateway.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		var req datatypes.QuestionRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
				Error:    "invalid request body",
				Category: "bad_request",
			})
			return
		}

		result, err := svc.SubmitQuestion(c.Request.Context(), userID, req.ArtifactID, req.Question)
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, datatypes.QuestionResponse{
			Answer:              result.Answer,
			ConversationHistory: result.ConversationHistory,
		})
	}
}

// ListQuestions returns the caller's question history, optionally
// narrowed to one artifact via ?artifact_id=.
func ListQuestions(recs records.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		artifactID := c.Query("artifact_id")

		history, err := recs.ListQueries(c.Request.Context(), userID, artifactID)
		if err != nil {
			slog.Error("Failed to list query history", "user_id", userID, "error", err)
			c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{Error: "failed to list question history"})
			return
		}
		if history == nil {
			history = []records.QueryRecord{}
		}
		c.JSON(http.StatusOK, gin.H{"questions": history})
	}
}
