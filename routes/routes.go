// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/AleutianAI/DocBridge/gateway"
	"github.com/AleutianAI/DocBridge/handlers"
	"github.com/AleutianAI/DocBridge/middleware"
	"github.com/AleutianAI/DocBridge/notify"
	"github.com/AleutianAI/DocBridge/observability"
	"github.com/AleutianAI/DocBridge/records"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes registers the gateway's HTTP surface. /health and
// /metrics are public; everything under /v1 requires a caller
// identity.
func SetupRoutes(router *gin.Engine, svc *gateway.Service, recs records.Store,
	dispatcher *notify.Dispatcher, metrics *observability.GatewayMetrics) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	v1.Use(middleware.Identity())
	{
		artifacts := v1.Group("/artifacts")
		{
			artifacts.POST("", handlers.SubmitArtifact(svc, dispatcher, metrics))
			artifacts.GET("", handlers.ListArtifacts(recs))
			artifacts.DELETE("/:artifactId", handlers.DeleteArtifact(recs))
		}
		v1.POST("/questions", handlers.SubmitQuestion(svc))
		v1.GET("/questions", handlers.ListQuestions(recs))
		v1.POST("/reset", handlers.ResetState(svc))
	}
}
