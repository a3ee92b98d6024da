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
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/DocBridge/datatypes"
	"github.com/AleutianAI/DocBridge/gateway"
	"github.com/AleutianAI/DocBridge/middleware"
	"github.com/AleutianAI/DocBridge/notify"
	"github.com/AleutianAI/DocBridge/observability"
	"github.com/AleutianAI/DocBridge/records"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// uploadFormField is the multipart field the gateway's own boundary
// reads the document from. Distinct from the field name the engine
// expects; the gateway owns this contract.
const uploadFormField = "document"

// SubmitArtifact receives a document upload and forwards it to the
// engine through the gateway. When the uploader supplies a
// notify_email field, a one-time access code for the artifact is
// queued for delivery; queue failures never fail the upload.
func SubmitArtifact(svc *gateway.Service, dispatcher *notify.Dispatcher,
	metrics *observability.GatewayMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		fileHeader, err := c.FormFile(uploadFormField)
		if err != nil {
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
				Error:    "an artifact file is required",
				Category: "bad_request",
			})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			slog.Error("Failed to open uploaded file", "user_id", userID, "error", err)
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
				Error:    "could not read the supplied artifact",
				Category: "bad_request",
			})
			return
		}
		defer file.Close()

		result, err := svc.SubmitArtifact(c.Request.Context(), userID, fileHeader.Filename, file)
		if err != nil {
			writeError(c, err)
			return
		}

		resp := datatypes.UploadResponse{
			RecordID:     result.RecordID,
			Filename:     result.StoredName,
			OriginalName: result.OriginalName,
			UpstreamAck:  result.UpstreamAck,
		}

		if email := c.PostForm("notify_email"); email != "" && dispatcher != nil {
			resp.NotificationQueued = queueAccessCode(dispatcher, metrics, email, result)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// queueAccessCode enqueues the share-code email for an upload.
// Best-effort: a full queue is logged and reported in the response
// flag, nothing more.
func queueAccessCode(dispatcher *notify.Dispatcher, metrics *observability.GatewayMetrics,
	email string, result *gateway.UploadResult) bool {
	code := uuid.NewString()[:8]
	err := dispatcher.Enqueue(notify.Message{
		Recipient: email,
		Subject:   "Your document access code",
		Body: fmt.Sprintf("Document %q is ready. Your one-time access code is %s.",
			result.OriginalName, code),
	})
	if err != nil {
		metrics.RecordNotification("rejected")
		slog.Warn("Access-code notification rejected", "recipient", email, "error", err)
		return false
	}
	metrics.RecordNotification("enqueued")
	return true
}

// ListArtifacts returns the caller's artifacts, oldest first.
func ListArtifacts(recs records.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		artifacts, err := recs.ListArtifacts(c.Request.Context(), userID)
		if err != nil {
			slog.Error("Failed to list artifacts", "user_id", userID, "error", err)
			c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{Error: "failed to list artifacts"})
			return
		}
		if artifacts == nil {
			artifacts = []records.Artifact{}
		}
		c.JSON(http.StatusOK, gin.H{"artifacts": artifacts})
	}
}

// DeleteArtifact removes one of the caller's artifacts and its query
// history. Someone else's artifact id behaves exactly like a missing
// one.
func DeleteArtifact(recs records.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		artifactID := c.Param("artifactId")

		artifact, err := recs.GetArtifact(c.Request.Context(), artifactID)
		if err != nil && !errors.Is(err, records.ErrNotFound) {
			slog.Error("Failed to look up artifact for delete", "artifact_id", artifactID, "error", err)
			c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{Error: "failed to delete artifact"})
			return
		}
		if err != nil || artifact.OwnerID != userID {
			c.JSON(http.StatusNotFound, datatypes.ErrorResponse{
				Error:    "artifact not found",
				Category: "not_found_or_unauthorized",
			})
			return
		}

		if err := recs.DeleteArtifact(c.Request.Context(), artifactID); err != nil {
			slog.Error("Failed to delete artifact", "artifact_id", artifactID, "error", err)
			c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{Error: "failed to delete artifact"})
			return
		}

		slog.Info("Artifact deleted", "user_id", userID, "artifact_id", artifactID)
		c.JSON(http.StatusOK, gin.H{"status": "success", "deleted_artifact_id": artifactID})
	}
}
