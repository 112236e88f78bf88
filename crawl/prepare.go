package crawl

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/JJJJun123/boss-automation-sub000/models"
)

// Page readiness. The job list renders client-side, so navigation
// success says nothing about content: wait for real containers,
// outlast skeleton screens, and surface blocking overlays as typed
// errors instead of extracting garbage.

var (
	contentSelectors = []string{
		".job-list-box",
		"li.job-card-wrapper",
		".search-job-result",
	}
	skeletonSelectors = []string{
		".loading", ".skeleton", "[class*='placeholder']",
	}
	captchaSelectors = []string{
		".verify-slider-wrap", ".geetest_panel", "#captcha", "[class*='verify-wrap']",
	}
	loginDialogSelectors = []string{
		".login-dialog", ".boss-login-dialog", "[class*='login-card']",
	}
	dialogCloseSelectors = []string{
		".boss-popup__close", ".dialog-close", ".close", "[class*='close-icon']",
	}
)

const (
	contentWait  = 5 * time.Second
	skeletonWait = 8 * time.Second
)

// Prepare waits until the page is extractable. It returns
// VERIFICATION_REQUIRED when a captcha blocks the page and
// AUTH_REQUIRED when the page forces login.
func Prepare(ctx context.Context, log *slog.Logger, page LivePage) error {
	if err := checkOverlays(log, page); err != nil {
		return err
	}

	for _, sel := range contentSelectors {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := page.WaitVisible(sel, contentWait); err == nil {
			log.Debug("content marker visible", "selector", sel)
			return checkOverlays(log, page)
		}
	}

	// No content marker: the page may still be on a skeleton screen.
	for _, sel := range skeletonSelectors {
		if err := page.WaitHidden(sel, skeletonWait); err != nil {
			log.Warn("skeleton still visible after wait", "selector", sel)
		}
	}
	if err := checkOverlays(log, page); err != nil {
		return err
	}

	if strings.Contains(page.URL(), "/login") {
		return models.NewCrawlError(models.ErrCodeAuthRequired,
			"page redirected to login", nil)
	}
	// Content never appeared; let extraction report what it finds.
	log.Warn("no content marker appeared, proceeding to extraction", "url", page.URL())
	return nil
}

// checkOverlays detects blocking layers. Captchas abort; login
// dialogs get one close attempt because anonymous browsing still
// shows partial listings.
func checkOverlays(log *slog.Logger, page LivePage) error {
	if anyVisible(page, captchaSelectors) {
		return models.NewCrawlError(models.ErrCodeVerification,
			"captcha overlay detected", nil)
	}
	if anyVisible(page, loginDialogSelectors) {
		log.Warn("login dialog detected, attempting to close")
		for _, sel := range dialogCloseSelectors {
			if err := page.Click(sel); err == nil {
				return nil
			}
		}
		return models.NewCrawlError(models.ErrCodeAuthRequired,
			"login dialog could not be dismissed", nil)
	}
	return nil
}

func anyVisible(page LivePage, sels []string) bool {
	for _, sel := range sels {
		els, err := page.QueryAll(sel)
		if err != nil {
			continue
		}
		for _, el := range els {
			if visible, err := el.Visible(); err == nil && visible {
				return true
			}
		}
	}
	return false
}
