// Package scraper owns the browser lifecycle: launching Chromium with
// anti-detection flags, pooling pages, restoring login sessions, and
// running searches end to end against the live site.
package scraper

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"

	"github.com/JJJJun123/boss-automation-sub000/config"
	"github.com/JJJJun123/boss-automation-sub000/crawl"
	"github.com/JJJJun123/boss-automation-sub000/models"
	"github.com/JJJJun123/boss-automation-sub000/selector"
	"github.com/JJJJun123/boss-automation-sub000/session"
)

// Scraper manages the global browser lifecycle and the page pool.
// It is safe for concurrent use.
type Scraper struct {
	log        *slog.Logger
	browser    *rod.Browser
	pagePool   rod.Pool[rod.Page]
	browserCfg config.BrowserConfig
	crawlerCfg config.CrawlerConfig

	selectors *selector.Engine
	extractor *crawl.Extractor
	loader    *crawl.Loader
	sessions  *session.Store
	loginWait time.Duration

	activePages atomic.Int32
	startTime   time.Time
}

// PoolStats is a snapshot of page pool usage.
type PoolStats struct {
	MaxPages    int `json:"max_pages"`
	ActivePages int `json:"active_pages"`
}

// NewScraper launches the browser and initialises the reusable page
// pool. The browser defaults to headful because first-time login is
// manual; set BOSS_HEADLESS=true once a session file exists.
func NewScraper(log *slog.Logger, cfg *config.Config, sessions *session.Store) (*Scraper, error) {
	if log == nil {
		log = slog.Default()
	}

	l := launcher.New().
		Headless(cfg.Browser.Headless).
		NoSandbox(cfg.Browser.NoSandbox)

	if cfg.Browser.BrowserBin != "" {
		l = l.Bin(cfg.Browser.BrowserBin)
	}
	if cfg.Browser.DefaultProxy != "" {
		l = l.Proxy(cfg.Browser.DefaultProxy)
	}

	// Anti-detection flags. The target fingerprints automation hard;
	// the blink flag alone is what most of its checks look at.
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("lang"), "zh-CN")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewCrawlError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	log.Info("browser launched", "controlURL", controlURL, "headless", cfg.Browser.Headless)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewCrawlError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	pool := rod.NewPagePool(cfg.Browser.MaxPages)
	log.Info("page pool created", "maxPages", cfg.Browser.MaxPages)

	selectors := selector.NewEngine(log)
	return &Scraper{
		log:        log,
		browser:    browser,
		pagePool:   pool,
		browserCfg: cfg.Browser,
		crawlerCfg: cfg.Crawler,
		selectors:  selectors,
		extractor:  crawl.NewExtractor(log, selectors),
		loader:     crawl.NewLoader(log, cfg.Crawler),
		sessions:   sessions,
		loginWait:  cfg.Session.LoginWait,
		startTime:  time.Now(),
	}, nil
}

// Stats returns a snapshot of the pool's current state.
func (s *Scraper) Stats() PoolStats {
	return PoolStats{
		MaxPages:    s.browserCfg.MaxPages,
		ActivePages: int(s.activePages.Load()),
	}
}

// SelectorStats exports the selector engine's learned history.
func (s *Scraper) SelectorStats() []selector.SelectorStats {
	return s.selectors.Snapshot()
}

// largeScaleThreshold is the requested record count above which a
// search needs the scroll loader, not just the first page.
func (s *Scraper) largeScaleThreshold() int {
	if s.crawlerCfg.LargeScaleThreshold > 0 {
		return s.crawlerCfg.LargeScaleThreshold
	}
	return 30
}

// Close drains the page pool and kills the browser process.
// Call this on graceful shutdown to prevent zombie Chrome processes.
func (s *Scraper) Close() {
	s.log.Info("scraper shutting down: draining page pool")
	s.pagePool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	s.log.Info("scraper shutting down: closing browser")
	s.browser.MustClose()
	s.log.Info("scraper shutdown complete")
}
