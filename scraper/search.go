package scraper

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/JJJJun123/boss-automation-sub000/crawl"
	"github.com/JJJJun123/boss-automation-sub000/models"
	"github.com/JJJJun123/boss-automation-sub000/selector"
	"github.com/JJJJun123/boss-automation-sub000/session"
)

const (
	siteDomain = "zhipin.com"
	siteBase   = "https://www.zhipin.com"
)

// cityCodes maps city names to the site's numeric city identifiers.
var cityCodes = map[string]string{
	"shanghai": "101020100",
	"上海":       "101020100",
	"beijing":  "101010100",
	"北京":       "101010100",
	"shenzhen": "101280100",
	"深圳":       "101280100",
	"hangzhou": "101210100",
	"杭州":       "101210100",
}

// SearchURL builds the job search URL for a keyword and city. Unknown
// cities fall back to Shanghai.
func SearchURL(keyword, location string) string {
	code, ok := cityCodes[strings.ToLower(strings.TrimSpace(location))]
	if !ok {
		code = cityCodes["shanghai"]
	}
	return siteBase + "/web/geek/job?query=" + url.QueryEscape(keyword) + "&city=" + code
}

// SearchJobs runs one search end to end: acquire a page, restore the
// saved session, navigate, ensure login, load the list, and extract
// records. It implements coordinator.Fetcher.
//
// Lifecycle (ordering constraints):
//   - Stealth JS and the hijack router must be installed before
//     Navigate; they only apply to subsequent navigations.
//   - Cleanup navigates the ORIGINAL page reference to about:blank so
//     the pool gets a blank tab back even when ctx already expired.
func (s *Scraper) SearchJobs(ctx context.Context, keyword, location string, limit int) ([]models.JobRecord, error) {
	s.activePages.Add(1)
	defer s.activePages.Add(-1)

	page, acquireErr := s.pagePool.Get(func() (*rod.Page, error) {
		return s.browser.Page(proto.TargetCreateTarget{})
	})
	if acquireErr != nil {
		return nil, models.NewCrawlError(
			models.ErrCodeBrowserCrash,
			"failed to acquire page from pool",
			acquireErr,
		)
	}
	defer func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			s.log.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
		}
		s.pagePool.Put(page)
	}()

	if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
		s.log.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
	}

	_ = proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(map[string]string{
			"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
			"Referer":         siteBase + "/",
		}),
	}.Call(page)

	s.restoreSession(page)

	router := setupHijack(page, s.crawlerCfg.BlockedResourceTypes)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	p := page.Context(ctx)
	target := SearchURL(keyword, location)
	s.log.Info("navigating to search", "keyword", keyword, "location", location, "url", target)

	nav := p
	if s.crawlerCfg.NavigationTimeout > 0 {
		nav = p.Timeout(s.crawlerCfg.NavigationTimeout)
	}
	if navErr := nav.Navigate(target); navErr != nil {
		return nil, categorizeError(navErr, "navigation to search page failed")
	}
	if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		s.log.Debug("WaitDOMStable did not converge, proceeding with current DOM",
			"error", stableErr)
	}

	lp := &livePage{p: p}
	if err := s.ensureLogin(ctx, p, lp, target); err != nil {
		return nil, err
	}

	if err := crawl.Prepare(ctx, s.log, lp); err != nil {
		return nil, err
	}

	if limit > s.largeScaleThreshold() {
		count, err := s.loader.LoadAll(ctx, lp, containerCountSelectors(), limit)
		if err != nil {
			return nil, categorizeError(err, "list loading failed")
		}
		s.log.Info("list loaded", "containers", count, "limit", limit)
	}

	records, err := s.extractor.Extract(ctx, lp, limit)
	if err != nil {
		return nil, err
	}

	// Cookies rotate during browsing; refresh the saved session while
	// it is known-good.
	s.saveSession(page, lp.URL())
	return records, nil
}

// ensureLogin verifies the session is logged in, waiting for a manual
// login when the browser is headful.
func (s *Scraper) ensureLogin(ctx context.Context, p *rod.Page, lp *livePage, target string) error {
	if session.IsLoggedIn(lp) {
		return nil
	}
	if s.browserCfg.Headless {
		return models.NewCrawlError(models.ErrCodeAuthRequired,
			"no valid session and browser is headless; run headful once to log in", nil)
	}

	if err := session.WaitForLogin(ctx, s.log, lp, s.loginWait); err != nil {
		return err
	}
	s.saveSession(p, lp.URL())

	// Back to the search results; login may have redirected anywhere.
	if navErr := p.Navigate(target); navErr != nil {
		return categorizeError(navErr, "navigation after login failed")
	}
	if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		s.log.Debug("WaitDOMStable did not converge after login", "error", stableErr)
	}
	return nil
}

// restoreSession sets saved cookies on the page before navigation.
func (s *Scraper) restoreSession(page *rod.Page) {
	if s.sessions == nil {
		return
	}
	state, err := s.sessions.Load(siteDomain)
	if err != nil {
		s.log.Warn("session load failed", "error", err)
		return
	}
	if state == nil {
		s.log.Info("no saved session, starting anonymous")
		return
	}
	restored := 0
	for _, c := range state.Cookies {
		set := proto.NetworkSetCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if set.Domain == "" {
			set.Domain = "." + siteDomain
		}
		if set.Path == "" {
			set.Path = "/"
		}
		if c.Expires > 0 {
			set.Expires = proto.TimeSinceEpoch(c.Expires)
		}
		if _, err := set.Call(page); err == nil {
			restored++
		}
	}
	s.log.Info("session restored", "cookies", restored, "saved_at", state.SavedAt)
}

// saveSession persists the page's current cookies, best-effort.
func (s *Scraper) saveSession(page *rod.Page, pageURL string) {
	if s.sessions == nil {
		return
	}
	cookies, err := page.Cookies(nil)
	if err != nil {
		s.log.Warn("cookie read failed, session not saved", "error", err)
		return
	}
	out := make([]session.Cookie, 0, len(cookies))
	for _, c := range cookies {
		if !strings.Contains(c.Domain, siteDomain) {
			continue
		}
		out = append(out, session.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  float64(c.Expires),
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: string(c.SameSite),
		})
	}
	if err := s.sessions.Save(siteDomain, out, nil, pageURL); err != nil {
		s.log.Warn("session save failed", "error", err)
	}
}

// containerCountSelectors are the selectors the loader counts list
// growth with.
func containerCountSelectors() []string {
	cands := selector.Candidates(selector.FieldContainer)
	out := make([]string, 0, len(cands))
	for _, c := range cands {
		if c.Tier != selector.TierGeneric {
			out = append(out, c.Query)
		}
	}
	return out
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders
// type (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw errors into typed CrawlErrors so the
// retry classifier and the API layer see structured codes.
func categorizeError(err error, msg string) error {
	var ce *models.CrawlError
	if errors.As(err, &ce) {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewCrawlError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewCrawlError(models.ErrCodeTimeout, "request canceled", err)
	case strings.Contains(err.Error(), "net::"):
		return models.NewCrawlError(models.ErrCodeNetwork, msg, err)
	default:
		return models.NewCrawlError(models.ErrCodeNavigation, msg, err)
	}
}
