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
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/CarbonFrame/services/impact_engine/handlers"
	"github.com/AleutianAI/CarbonFrame/services/impact_engine/middleware"
)

// SetupRoutes registers the impact engine's endpoints.
//
// Health and metrics stay outside the authenticated group so probes and
// scrapers need no webhook secret. Everything under /v1 requires it.
func SetupRoutes(router *gin.Engine, store handlers.StorePinger, executor handlers.RunExecutor,
	hub *handlers.EventHub, verifier middleware.SecretVerifier, limiter *middleware.ClientRateLimiter) {

	router.GET("/health", handlers.HealthCheck(store))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(verifier))
	{
		runs := v1.Group("/runs")
		{
			runs.POST("", limiter.Middleware(), handlers.TriggerRun(executor, hub))
			runs.GET("/events", handlers.HandleRunEvents(hub))
		}
	}
}
