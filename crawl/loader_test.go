package crawl

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/JJJJun123/boss-automation-sub000/config"
	"github.com/JJJJun123/boss-automation-sub000/selector"
	"github.com/JJJJun123/boss-automation-sub000/snapshot"
)

// fakePage simulates an infinite-scroll page as a sequence of
// snapshots; every scroll action advances to the next stage.
type fakePage struct {
	stages []*snapshot.Page
	idx    int

	scrolls int
	clicks  []string
	endKeys int
}

func newFakePage(t *testing.T, stages ...string) *fakePage {
	t.Helper()
	f := &fakePage{}
	for _, raw := range stages {
		p, err := snapshot.Parse(raw)
		if err != nil {
			t.Fatal(err)
		}
		f.stages = append(f.stages, p)
	}
	return f
}

func (f *fakePage) current() *snapshot.Page { return f.stages[f.idx] }

func (f *fakePage) advance() {
	if f.idx < len(f.stages)-1 {
		f.idx++
	}
}

func (f *fakePage) QueryAll(sel string) ([]selector.Element, error) {
	return f.current().QueryAll(sel)
}

func (f *fakePage) URL() string { return "https://www.zhipin.com/web/geek/job?query=test" }

func (f *fakePage) WaitVisible(string, time.Duration) error { return nil }
func (f *fakePage) WaitHidden(string, time.Duration) error  { return nil }

func (f *fakePage) ScrollTo(int) error { return nil }

func (f *fakePage) ScrollBottom() error {
	f.scrolls++
	f.advance()
	return nil
}

func (f *fakePage) PressEnd() error {
	f.endKeys++
	f.advance()
	return nil
}

func (f *fakePage) Click(sel string) error {
	f.clicks = append(f.clicks, sel)
	return errors.New("no such element")
}

func (f *fakePage) Height() (int, error) { return 4000, nil }

func stageWithCards(n int) string {
	var b strings.Builder
	b.WriteString(`<html><body><ul class="job-list-box">`)
	for i := 0; i < n; i++ {
		b.WriteString(`<li class="job-card-wrapper"><span class="job-name">岗位</span></li>`)
	}
	b.WriteString(`</ul></body></html>`)
	return b.String()
}

func fastLoader() *Loader {
	return NewLoader(nil, config.CrawlerConfig{
		MaxScrollAttempts: 15,
		ScrollDelay:       time.Millisecond,
		ChallengeWait:     time.Millisecond,
	})
}

var countSelectors = []string{"li.job-card-wrapper"}

func TestLoadAllReachesTarget(t *testing.T) {
	page := newFakePage(t,
		stageWithCards(10),
		stageWithCards(20),
		stageWithCards(30),
		stageWithCards(40),
	)
	count, err := fastLoader().LoadAll(context.Background(), page, countSelectors, 30)
	if err != nil {
		t.Fatal(err)
	}
	if count < 30 {
		t.Errorf("count = %d, want >= 30", count)
	}
	if page.idx == len(page.stages)-1 && count > 40 {
		t.Errorf("overshot available stages: count = %d", count)
	}
}

func TestLoadAllStopsOnPlateau(t *testing.T) {
	// One stage that never grows: the loader must terminate on the
	// stale counter, well before the attempt budget.
	page := newFakePage(t, stageWithCards(7))
	count, err := fastLoader().LoadAll(context.Background(), page, countSelectors, 100)
	if err != nil {
		t.Fatal(err)
	}
	if count != 7 {
		t.Errorf("count = %d, want 7", count)
	}
	if page.scrolls >= 15 {
		t.Errorf("loader used %d scrolls, should stop on plateau first", page.scrolls)
	}
}

func TestLoadAllTriesAlternativeStrategies(t *testing.T) {
	page := newFakePage(t, stageWithCards(5))
	if _, err := fastLoader().LoadAll(context.Background(), page, countSelectors, 100); err != nil {
		t.Fatal(err)
	}
	// After three stale rounds the loader must stop plain scrolling
	// and rotate through recovery strategies.
	if page.scrolls == 0 {
		t.Error("expected at least one plain scroll")
	}
	if len(page.clicks) == 0 && page.endKeys == 0 && page.scrolls >= 5 {
		t.Error("expected an alternative strategy before giving up")
	}
}

func TestLoadAllZeroTargetReturnsImmediately(t *testing.T) {
	page := newFakePage(t, stageWithCards(3))
	count, err := fastLoader().LoadAll(context.Background(), page, countSelectors, 3)
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
	if page.scrolls != 0 {
		t.Errorf("no scrolling needed, got %d scrolls", page.scrolls)
	}
}

func TestCeilingScalesWithTarget(t *testing.T) {
	l := fastLoader()
	cases := []struct {
		target int
		want   int
	}{
		{20, 15},
		{50, 15},
		{60, 16},
		{100, 20},
		{500, 30}, // capped
	}
	for _, tc := range cases {
		if got := l.ceiling(tc.target); got != tc.want {
			t.Errorf("ceiling(%d) = %d, want %d", tc.target, got, tc.want)
		}
	}
}

func TestLoadAllPausesOnChallenge(t *testing.T) {
	// A captcha panel appears after the first scroll and stays. The
	// loader must keep running and terminate normally, not error.
	withCaptcha := `<html><body><ul class="job-list-box">` +
		`<li class="job-card-wrapper"><span class="job-name">岗位</span></li>` +
		`</ul><div class="geetest_panel">验证</div></body></html>`
	page := newFakePage(t, stageWithCards(1), withCaptcha)

	count, err := fastLoader().LoadAll(context.Background(), page, countSelectors, 50)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestLoadAllHonorsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	page := newFakePage(t, stageWithCards(1))
	if _, err := fastLoader().LoadAll(ctx, page, countSelectors, 100); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
