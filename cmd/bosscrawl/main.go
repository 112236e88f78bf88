package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JJJJun123/boss-automation-sub000/api"
	"github.com/JJJJun123/boss-automation-sub000/cache"
	"github.com/JJJJun123/boss-automation-sub000/config"
	"github.com/JJJJun123/boss-automation-sub000/coordinator"
	"github.com/JJJJun123/boss-automation-sub000/retry"
	"github.com/JJJJun123/boss-automation-sub000/scraper"
	"github.com/JJJJun123/boss-automation-sub000/session"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	log := slog.Default()
	log.Info("bosscrawl starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"headless", cfg.Browser.Headless,
		"workers", cfg.Coordinator.Workers,
	)

	// ── 3. Session store (persisted logins) ─────────────────────────
	sessions, err := session.NewStore(log, cfg.Session.Dir, cfg.Session.TTL)
	if err != nil {
		log.Error("failed to initialise session store", "error", err)
		os.Exit(1)
	}

	// ── 4. Result cache ─────────────────────────────────────────────
	results, err := cache.New(log, cfg.Cache.Dir, cfg.Cache.MaxEntries, cfg.Cache.TTL)
	if err != nil {
		log.Error("failed to initialise result cache", "error", err)
		os.Exit(1)
	}
	defer results.Stop()

	// ── 5. Scraper (launches browser) ───────────────────────────────
	sc, err := scraper.NewScraper(log, cfg, sessions)
	if err != nil {
		log.Error("failed to initialise scraper", "error", err)
		os.Exit(1)
	}
	defer sc.Close()

	// ── 6. Coordinator (task queue + worker pool) ───────────────────
	runner := retry.NewRunner(log)
	coord := coordinator.New(log, cfg.Coordinator, cfg.Retry, cfg.Crawler.DefaultTimeout, sc, results, runner)
	defer coord.Stop()

	// ── 7. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(coord, sc, results, runner, sessions, cfg, startTime)

	// ── 8. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 9. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutdown signal received", "signal", sig.String())

	// In-flight requests get 5 seconds to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("HTTP server forced shutdown", "error", err)
	} else {
		log.Info("HTTP server drained gracefully")
	}

	// Deferred cleanups run in reverse order: coordinator drains its
	// workers first, then the browser closes, then the cache flushes.
	log.Info("bosscrawl stopped")
}

// initLogger installs the process-wide slog handler from config.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
