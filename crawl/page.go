// Package crawl turns a rendered job-list page into normalized
// JobRecords: it prepares the page, drives incremental loading, and
// extracts and cleans fields with selector fallback.
package crawl

import (
	"context"
	"time"

	"github.com/JJJJun123/boss-automation-sub000/selector"
)

// LivePage is the browser-backed page surface needed for preparation
// and incremental loading. Extraction itself only needs the embedded
// selector.Page, which keeps it testable against static snapshots.
type LivePage interface {
	selector.Page

	URL() string
	WaitVisible(sel string, timeout time.Duration) error
	WaitHidden(sel string, timeout time.Duration) error
	ScrollTo(y int) error
	ScrollBottom() error
	PressEnd() error
	Click(sel string) error
	Height() (int, error)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
