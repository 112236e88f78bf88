package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JJJJun123/boss-automation-sub000/coordinator"
	"github.com/JJJJun123/boss-automation-sub000/models"
)

// Health returns a handler for GET /api/v1/health.
func Health(coord *coordinator.Coordinator, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.HealthResponse{
			Status:        "healthy",
			Version:       "0.1.0",
			UptimeSeconds: int64(time.Since(startTime).Seconds()),
			ActiveTasks:   coord.Active(),
			QueuedTasks:   coord.Queued(),
		})
	}
}
