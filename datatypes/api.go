// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the request and response shapes of the
// gateway's own HTTP boundary.
package datatypes

import "encoding/json"

// QuestionRequest is the JSON body of POST /v1/questions.
type QuestionRequest struct {
	ArtifactID string `json:"artifact_id" binding:"required"`
	Question   string `json:"question" binding:"required"`
}

// QuestionResponse is the success payload of POST /v1/questions.
type QuestionResponse struct {
	Answer              string          `json:"answer"`
	ConversationHistory json.RawMessage `json:"conversation_history,omitempty"`
}

// UploadResponse is the success payload of POST /v1/artifacts.
type UploadResponse struct {
	RecordID     string          `json:"record_id"`
	Filename     string          `json:"filename"`
	OriginalName string          `json:"original_filename"`
	UpstreamAck  json.RawMessage `json:"upstream_ack,omitempty"`
	// NotificationQueued reports whether a share-code email was accepted
	// for delivery. Best-effort; false does not mean the upload failed.
	NotificationQueued bool `json:"notification_queued"`
}

// ErrorResponse is the uniform error body for every classified failure.
type ErrorResponse struct {
	Error    string `json:"error"`
	Category string `json:"category,omitempty"`
}
