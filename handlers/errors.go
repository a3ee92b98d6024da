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
	"log/slog"
	"net/http"

	"github.com/AleutianAI/DocBridge/datatypes"
	"github.com/AleutianAI/DocBridge/upstream"
	"github.com/gin-gonic/gin"
)

// writeError translates a gateway failure into the response the caller
// sees. Classified errors carry their own status and message; anything
// else is an internal fault and stays generic. Diagnostic detail never
// leaves the log.
func writeError(c *gin.Context, err error) {
	var gwErr *upstream.Error
	if errors.As(err, &gwErr) {
		c.JSON(gwErr.HTTPStatus, datatypes.ErrorResponse{
			Error:    gwErr.Message,
			Category: string(gwErr.Category),
		})
		return
	}
	slog.Error("Unclassified handler error", "error", err)
	c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{Error: "internal error"})
}
