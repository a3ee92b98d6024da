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

	"github.com/AleutianAI/DocBridge/gateway"
	"github.com/AleutianAI/DocBridge/middleware"
	"github.com/gin-gonic/gin"
)

// ResetState asks the engine to drop the caller's loaded document
// context. The engine's acknowledgement is passed through as-is.
func ResetState(svc *gateway.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		ack, err := svc.ResetState(c.Request.Context(), userID)
		if err != nil {
			writeError(c, err)
			return
		}

		c.Data(http.StatusOK, "application/json", ack)
	}
}
