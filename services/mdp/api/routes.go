// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// requestDuration tracks handler latency.
//
// Labels:
//   - route: matched route template
//   - status: HTTP status code
var requestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "aleutian",
		Subsystem: "mdp_api",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route and status",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"route", "status"},
)

// RegisterRoutes registers all mdp endpoints under rg.
//
// Endpoints:
//
//	GET    /mdp/health     - Health check
//	GET    /mdp/examples   - List canned specifications
//	POST   /mdp/validate   - Validate a specification
//	POST   /mdp/solve      - Solve for optimal values and policy
//	POST   /mdp/simulate   - Run episodes of a policy
//	POST   /mdp/specs      - Store a document in the catalog
//	GET    /mdp/specs      - List catalog entries
//	GET    /mdp/specs/:id  - Fetch one catalog entry
//	DELETE /mdp/specs/:id  - Delete one catalog entry
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	mdp := rg.Group("/mdp")
	{
		mdp.GET("/health", h.HandleHealth)
		mdp.GET("/examples", h.HandleExamples)

		mdp.POST("/validate", h.HandleValidate)
		mdp.POST("/solve", h.HandleSolve)
		mdp.POST("/simulate", h.HandleSimulate)

		specs := mdp.Group("/specs")
		{
			specs.POST("", h.HandlePutSpec)
			specs.GET("", h.HandleListSpecs)
			specs.GET("/:id", h.HandleGetSpec)
			specs.DELETE("/:id", h.HandleDeleteSpec)
		}
	}
}

// NewRouter builds the gin engine with middleware, /metrics, and the /v1
// routes.
//
// Inputs:
//   - h: Route handlers.
//   - maxBodyBytes: Request body limit. Zero disables the limit.
//   - metrics: /metrics handler. Nil uses the default Prometheus registry.
func NewRouter(h *Handlers, maxBodyBytes int64, metrics http.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("mdp"))
	router.Use(observe())
	if maxBodyBytes > 0 {
		router.Use(limitBody(maxBodyBytes))
	}

	if metrics == nil {
		metrics = promhttp.Handler()
	}
	router.GET("/metrics", gin.WrapH(metrics))

	RegisterRoutes(router.Group("/v1"), h)
	return router
}

// observe records request counts through OpenTelemetry and latency through
// Prometheus.
func observe() gin.HandlerFunc {
	counter, err := otel.Meter("mdp_api").Int64Counter("mdp.api.requests",
		metric.WithDescription("HTTP requests by route and status"))
	if err != nil {
		otel.Handle(err)
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		requestDuration.WithLabelValues(route, status).Observe(time.Since(start).Seconds())
		if counter != nil {
			counter.Add(c.Request.Context(), 1, metric.WithAttributes(
				attribute.String("route", route),
				attribute.String("status", status),
			))
		}
	}
}

func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}
