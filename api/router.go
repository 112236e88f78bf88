package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JJJJun123/boss-automation-sub000/api/handler"
	"github.com/JJJJun123/boss-automation-sub000/api/middleware"
	"github.com/JJJJun123/boss-automation-sub000/cache"
	"github.com/JJJJun123/boss-automation-sub000/config"
	"github.com/JJJJun123/boss-automation-sub000/coordinator"
	"github.com/JJJJun123/boss-automation-sub000/retry"
	"github.com/JJJJun123/boss-automation-sub000/scraper"
	"github.com/JJJJun123/boss-automation-sub000/session"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     RateLimit
//
// Health endpoint sits outside the rate limiter so monitoring probes
// always work.
func NewRouter(coord *coordinator.Coordinator, sc *scraper.Scraper, results *cache.Cache, runner *retry.Runner, sessions *session.Store, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	v1.GET("/health", handler.Health(coord, startTime))

	limited := v1.Group("")
	limited.Use(middleware.RateLimit(cfg.RateLimit))

	limited.POST("/search", handler.PostSearch(coord))
	limited.GET("/tasks/:id", handler.GetTask(coord))
	limited.GET("/stats", handler.Stats(sc, results, runner, sessions))

	return r
}
