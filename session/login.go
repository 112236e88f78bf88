package session

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/JJJJun123/boss-automation-sub000/models"
	"github.com/JJJJun123/boss-automation-sub000/selector"
)

// Page is the surface login detection needs.
type Page interface {
	selector.Page
	URL() string
}

// Detection selectors, layered. Identity markers only render for
// logged-in users; login buttons only for anonymous ones.
var (
	identitySelectors = []string{
		".user-nav .nav-figure", ".header-avatar", "[class*='user-avatar']",
		"a[href*='/web/geek/chat']",
	}
	loginButtonSelectors = []string{
		".header-login-btn", "a[href*='/web/user/?ka=header-login']", ".btn-login",
	}
)

// IsLoggedIn checks login state in layers: visible identity markers
// mean logged in, a visible login button or a login URL means not.
// When no signal is present at all the answer defaults to logged in,
// so a working session is never discarded on a quiet page.
func IsLoggedIn(page Page) bool {
	if anyVisible(page, identitySelectors) {
		return true
	}
	if anyVisible(page, loginButtonSelectors) {
		return false
	}
	if strings.Contains(page.URL(), "/login") {
		return false
	}
	return true
}

// WaitForLogin polls until the user completes a manual login in the
// headful browser, or the timeout elapses.
func WaitForLogin(ctx context.Context, log *slog.Logger, page Page, timeout time.Duration) error {
	if log == nil {
		log = slog.Default()
	}
	deadline := time.Now().Add(timeout)
	log.Info("waiting for manual login", "timeout", timeout.String())

	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()
	for {
		if anyVisible(page, identitySelectors) {
			log.Info("login detected")
			return nil
		}
		if time.Now().After(deadline) {
			return models.NewCrawlError(models.ErrCodeAuthRequired,
				"manual login not completed in time", nil)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func anyVisible(page Page, sels []string) bool {
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
