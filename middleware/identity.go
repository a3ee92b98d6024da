// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the gateway.
//
// # Identity Flow
//
// Authentication mechanics live in the fronting auth layer, which is
// trusted to put a stable user identifier on every proxied request. The
// identity middleware extracts that identifier and stores it in the Gin
// context for handlers:
//
//	Request
//	   │
//	   ▼
//	Identity middleware
//	   │
//	   ├─► Read "X-Aleutian-User" header
//	   │
//	   ├─► Missing → 401, request aborted
//	   │
//	   └─► Store user id in context
//	           │
//	           ▼
//	       Handler (retrieves via GetUserID)
//
// Everything downstream keys per-user state (upstream sessions, record
// ownership) on this identifier, so a request without one is useless
// and is rejected before any handler runs.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// UserHeader is the header the fronting auth layer sets on every
// authenticated request.
const UserHeader = "X-Aleutian-User"

// userIDKey is the context key for the caller's user id.
// Using a typed key string prevents collisions with other context values.
const userIDKey = "docbridge_user_id"

// SetUserID stores the authenticated caller's id in the Gin context.
// Exposed for tests that drive handlers directly.
func SetUserID(c *gin.Context, userID string) {
	c.Set(userIDKey, userID)
}

// GetUserID retrieves the authenticated caller's id, or "" when the
// identity middleware did not run.
func GetUserID(c *gin.Context) string {
	if v, exists := c.Get(userIDKey); exists {
		if userID, ok := v.(string); ok {
			return userID
		}
	}
	return ""
}

// Identity creates the middleware that binds each request to its
// caller. The gateway trusts the identifier; validating it is the
// fronting layer's job.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(UserHeader))
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing user identity",
			})
			return
		}
		SetUserID(c, userID)
		c.Next()
	}
}
