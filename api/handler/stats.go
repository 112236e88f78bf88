package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/JJJJun123/boss-automation-sub000/cache"
	"github.com/JJJJun123/boss-automation-sub000/retry"
	"github.com/JJJJun123/boss-automation-sub000/scraper"
	"github.com/JJJJun123/boss-automation-sub000/session"
)

// Stats returns a handler for GET /api/v1/stats: cache counters, retry
// outcomes, learned selector history, pool usage, and saved sessions.
// It is an operator's debugging window, not a stable contract.
func Stats(sc *scraper.Scraper, results *cache.Cache, runner *retry.Runner, sessions *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload := gin.H{
			"pool":      sc.Stats(),
			"selectors": sc.SelectorStats(),
			"retry":     runner.Snapshot(),
		}
		if results != nil {
			payload["cache"] = results.Stats()
		}
		if sessions != nil {
			if domains, err := sessions.List(); err == nil {
				payload["sessions"] = domains
			}
		}
		c.JSON(http.StatusOK, payload)
	}
}
