package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JJJJun123/boss-automation-sub000/coordinator"
	"github.com/JJJJun123/boss-automation-sub000/models"
)

// PostSearch returns a handler for POST /api/v1/search.
//
// Async by default: the response is a task ID to poll. With
// "wait": true the handler blocks (bounded by wait_seconds) and
// returns the finished records directly.
func PostSearch(coord *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		req.Defaults()

		taskID, err := coord.Submit(req)
		if err != nil {
			respondError(c, err)
			return
		}

		if !req.Wait {
			c.JSON(http.StatusAccepted, models.TaskAccepted{
				TaskID: taskID,
				Status: models.TaskPending,
			})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(),
			time.Duration(req.WaitSeconds)*time.Second)
		defer cancel()

		records, err := coord.Result(ctx, taskID)
		if errors.Is(err, context.DeadlineExceeded) {
			// Still running; hand back the task ID so the client can
			// keep polling.
			c.JSON(http.StatusAccepted, models.TaskAccepted{
				TaskID: taskID,
				Status: models.TaskRunning,
			})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}

		task, _ := coord.Status(taskID)
		c.JSON(http.StatusOK, models.SearchResponse{
			Task:    &task,
			Records: records,
		})
	}
}

// GetTask returns a handler for GET /api/v1/tasks/:id. Finished tasks
// include their records.
func GetTask(coord *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID := c.Param("id")
		task, ok := coord.Status(taskID)
		if !ok {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeTaskNotFound,
					Message: "task not found: " + taskID,
				},
			})
			return
		}

		if task.Status != models.TaskCompleted {
			c.JSON(http.StatusOK, models.SearchResponse{Task: &task})
			return
		}

		records, err := coord.Result(c.Request.Context(), taskID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SearchResponse{
			Task:    &task,
			Records: records,
		})
	}
}

// respondError maps a CrawlError to the correct HTTP status code and
// writes a structured JSON error response.
func respondError(c *gin.Context, err error) {
	var crawlErr *models.CrawlError
	if !errors.As(err, &crawlErr) {
		crawlErr = models.NewCrawlError(models.ErrCodeInternal, err.Error(), err)
	}
	c.JSON(mapErrorToStatus(crawlErr), models.ErrorResponse{
		Error: crawlErr.ToDetail(),
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.CrawlError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation, models.ErrCodeNetwork:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeAuthRequired, models.ErrCodeVerification:
		return http.StatusConflict // 409: operator action needed
	case models.ErrCodeTaskNotFound:
		return http.StatusNotFound // 404
	default:
		return http.StatusInternalServerError // 500
	}
}
