package scraper

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/JJJJun123/boss-automation-sub000/models"
)

func TestSearchURL(t *testing.T) {
	tests := []struct {
		keyword, location string
		wantQuery         string
		wantCity          string
	}{
		{"市场风险管理", "shanghai", "query=%E5%B8%82%E5%9C%BA%E9%A3%8E%E9%99%A9%E7%AE%A1%E7%90%86", "city=101020100"},
		{"risk", "北京", "query=risk", "city=101010100"},
		{"risk", "Shenzhen", "query=risk", "city=101280100"},
		{"risk", "unknown-city", "query=risk", "city=101020100"},
		{"risk", "", "query=risk", "city=101020100"},
	}
	for _, tt := range tests {
		got := SearchURL(tt.keyword, tt.location)
		if !strings.HasPrefix(got, "https://www.zhipin.com/web/geek/job?") {
			t.Errorf("SearchURL(%q, %q) = %q", tt.keyword, tt.location, got)
		}
		if !strings.Contains(got, tt.wantQuery) || !strings.Contains(got, tt.wantCity) {
			t.Errorf("SearchURL(%q, %q) = %q, want %q and %q", tt.keyword, tt.location, got, tt.wantQuery, tt.wantCity)
		}
	}
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"deadline", context.DeadlineExceeded, models.ErrCodeTimeout},
		{"canceled", context.Canceled, models.ErrCodeTimeout},
		{"net error", errors.New("net::ERR_CONNECTION_RESET"), models.ErrCodeNetwork},
		{"other", errors.New("boom"), models.ErrCodeNavigation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := categorizeError(tt.err, "msg")
			var ce *models.CrawlError
			if !errors.As(got, &ce) || ce.Code != tt.code {
				t.Errorf("categorizeError(%v) = %v, want code %s", tt.err, got, tt.code)
			}
		})
	}
}

func TestCategorizeErrorKeepsTypedErrors(t *testing.T) {
	in := models.NewCrawlError(models.ErrCodeVerification, "captcha", nil)
	if got := categorizeError(in, "msg"); got != in {
		t.Errorf("typed error was re-wrapped: %v", got)
	}
}

func TestIsTrackerDomain(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"hm.baidu.com", true},
		{"sub.hm.baidu.com", true},
		{"www.baidu.com", false},
		{"www.google-analytics.com", true},
		{"www.zhipin.com", false},
	}
	for _, tt := range tests {
		if got := isTrackerDomain(tt.host); got != tt.want {
			t.Errorf("isTrackerDomain(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}

func TestContainerCountSelectorsSkipGeneric(t *testing.T) {
	sels := containerCountSelectors()
	if len(sels) == 0 {
		t.Fatal("no count selectors")
	}
	for _, sel := range sels {
		if strings.Contains(sel, "*=") && strings.HasPrefix(sel, "div") {
			t.Errorf("generic selector %q should not be used for counting", sel)
		}
	}
}
