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
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/CarbonFrame/services/impact_engine/modelstore"
)

// storePingTimeout bounds the health check's store probe.
const storePingTimeout = 5 * time.Second

// StorePinger reports model store connectivity. *modelstore.Client
// satisfies it.
type StorePinger interface {
	Ping(ctx context.Context) error
}

var _ StorePinger = (*modelstore.Client)(nil)

// HealthCheck handles GET /health.
//
// The endpoint always answers 200 so orchestration keeps the service
// alive through a store outage; the body distinguishes "ok" from
// "degraded" and names the store state.
func HealthCheck(store StorePinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok", "store": "unconfigured"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storePingTimeout)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			slog.Warn("Health check could not reach the model store", "error", err)
			c.JSON(http.StatusOK, gin.H{"status": "degraded", "store": "unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "store": "ok"})
	}
}
