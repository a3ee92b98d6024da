// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func identityRouter() (*gin.Engine, *string) {
	router := gin.New()
	var seenUser string
	router.GET("/whoami", Identity(), func(c *gin.Context) {
		seenUser = GetUserID(c)
		c.JSON(http.StatusOK, gin.H{"user": seenUser})
	})
	return router, &seenUser
}

func TestIdentity_PassesUserThrough(t *testing.T) {
	router, seenUser := identityRouter()

	req, _ := http.NewRequest("GET", "/whoami", nil)
	req.Header.Set(UserHeader, "alice")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", *seenUser)
}

func TestIdentity_RejectsMissingHeader(t *testing.T) {
	router, seenUser := identityRouter()

	req, _ := http.NewRequest("GET", "/whoami", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, *seenUser)
}

func TestIdentity_RejectsBlankHeader(t *testing.T) {
	router, _ := identityRouter()

	req, _ := http.NewRequest("GET", "/whoami", nil)
	req.Header.Set(UserHeader, "   ")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetUserID_WithoutMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Empty(t, GetUserID(c))

	SetUserID(c, "bob")
	assert.Equal(t, "bob", GetUserID(c))
}
