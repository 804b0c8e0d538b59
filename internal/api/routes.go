package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/feedguard/internal/telemetry"
)

// HealthChecker probes the upstream classification service.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// RegisterRoutes wires all endpoints onto the engine.
func RegisterRoutes(engine *gin.Engine, h *Handler, checker HealthChecker) {
	engine.GET("/health", healthHandler(checker))
	engine.GET("/metrics", gin.WrapH(telemetry.Handler()))

	v1 := engine.Group("/api/v1")
	{
		v1.POST("/scan", h.Scan)
		v1.POST("/clicks", h.Click)
		v1.GET("/flagged", h.Flagged)
		v1.GET("/queues", h.Queues)

		posts := v1.Group("/posts")
		{
			posts.GET("/:id", h.GetPost)
			posts.POST("/:id/safe", h.ReportSafe)
			posts.POST("/:id/malicious", h.ReportMalicious)
			posts.POST("/:id/confirm-safe", h.ConfirmSafe)
			posts.POST("/:id/recheck", h.Recheck)
		}
	}
}

// healthHandler reports liveness plus the reachability of the
// classification service. An unreachable classifier degrades the
// status without failing the probe, since the agent keeps working in
// fail-open mode.
func healthHandler(checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		classifier := "ok"
		if err := checker.Health(c.Request.Context()); err != nil {
			classifier = "unreachable"
		}

		c.JSON(http.StatusOK, gin.H{
			"status":     "healthy",
			"classifier": classifier,
		})
	}
}
