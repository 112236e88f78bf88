package crawl

import (
	"context"
	"log/slog"
	"time"

	"github.com/JJJJun123/boss-automation-sub000/config"
)

// Loader drives incremental list loading by scrolling. The site mixes
// infinite scroll with an occasional "load more" button, so after a
// few stale rounds the loader switches strategies before giving up.
type Loader struct {
	log           *slog.Logger
	maxAttempts   int
	delay         time.Duration
	challengeWait time.Duration
}

const (
	// staleAlternative is the consecutive no-growth count that
	// triggers alternative loading strategies.
	staleAlternative = 3
	// staleStop is the consecutive no-growth count that ends the loop.
	staleStop = 5
	// attemptCap bounds the scaled attempt ceiling for large targets.
	attemptCap = 30
)

var loadMoreSelectors = []string{
	".load-more", ".more-job-btn", "a[ka='search_list_more']", ".page-next",
}

// NewLoader creates a Loader. A nil logger uses slog.Default.
func NewLoader(log *slog.Logger, cfg config.CrawlerConfig) *Loader {
	if log == nil {
		log = slog.Default()
	}
	maxAttempts := cfg.MaxScrollAttempts
	if maxAttempts <= 0 {
		maxAttempts = 15
	}
	delay := cfg.ScrollDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}
	challengeWait := cfg.ChallengeWait
	if challengeWait <= 0 {
		challengeWait = 5 * time.Second
	}
	return &Loader{log: log, maxAttempts: maxAttempts, delay: delay, challengeWait: challengeWait}
}

// LoadAll scrolls until the page holds at least target containers,
// growth plateaus, or the attempt budget runs out. It returns the
// final container count.
func (l *Loader) LoadAll(ctx context.Context, page LivePage, countSelectors []string, target int) (int, error) {
	count := l.count(page, countSelectors)
	stale := 0
	maxAttempts := l.ceiling(target)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if count >= target {
			l.log.Debug("target reached", "count", count, "target", target)
			return count, nil
		}
		if err := ctx.Err(); err != nil {
			return count, err
		}

		// A captcha can drop in mid-scroll. It cannot be solved
		// here, so log and pause; a challenge that stays up stops
		// the loop through the stale counter, and extraction returns
		// whatever loaded before the wall.
		if anyVisible(page, captchaSelectors) {
			l.log.Warn("verification challenge appeared mid-scroll, pausing", "count", count)
			if err := sleep(ctx, l.challengeWait); err != nil {
				return count, err
			}
		}

		if stale >= staleAlternative {
			if err := l.alternative(ctx, page, stale-staleAlternative); err != nil {
				return count, err
			}
		} else if err := page.ScrollBottom(); err != nil {
			l.log.Warn("scroll failed", "attempt", attempt, "error", err)
		}

		if err := sleep(ctx, l.delay); err != nil {
			return count, err
		}

		next := l.count(page, countSelectors)
		if next > count {
			stale = 0
		} else {
			stale++
			if stale >= staleStop {
				l.log.Info("list growth plateaued, stopping",
					"count", next, "target", target, "stale_rounds", stale)
				return next, nil
			}
		}
		count = next
	}

	l.log.Info("scroll budget exhausted", "count", count, "target", target)
	return count, nil
}

// ceiling scales the attempt limit with the target: one extra attempt
// per ten records past fifty, capped.
func (l *Loader) ceiling(target int) int {
	max := l.maxAttempts
	if target > 50 {
		max += (target - 50) / 10
	}
	if max > attemptCap {
		max = attemptCap
	}
	return max
}

// count returns the highest container count across the selectors so a
// partially broken selector cannot under-report growth.
func (l *Loader) count(page LivePage, sels []string) int {
	best := 0
	for _, sel := range sels {
		els, err := page.QueryAll(sel)
		if err != nil {
			continue
		}
		if len(els) > best {
			best = len(els)
		}
	}
	return best
}

// alternative rotates through recovery strategies: segmented
// scrolling to re-trigger lazy loading, a "load more" click, and an
// End keypress.
func (l *Loader) alternative(ctx context.Context, page LivePage, round int) error {
	switch round % 3 {
	case 0:
		l.log.Debug("alternative strategy: segmented scroll")
		height, err := page.Height()
		if err != nil || height <= 0 {
			return page.ScrollBottom()
		}
		for i := 1; i <= 4; i++ {
			if err := page.ScrollTo(height * i / 4); err != nil {
				return err
			}
			if err := sleep(ctx, 300*time.Millisecond); err != nil {
				return err
			}
		}
	case 1:
		l.log.Debug("alternative strategy: load-more click")
		for _, sel := range loadMoreSelectors {
			if err := page.Click(sel); err == nil {
				return nil
			}
		}
		return page.ScrollBottom()
	default:
		l.log.Debug("alternative strategy: End key")
		return page.PressEnd()
	}
	return nil
}
