package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JJJJun123/boss-automation-sub000/cache"
	"github.com/JJJJun123/boss-automation-sub000/config"
	"github.com/JJJJun123/boss-automation-sub000/models"
	"github.com/JJJJun123/boss-automation-sub000/webhook"
)

// fakeFetcher counts calls and can block until released.
type fakeFetcher struct {
	calls   atomic.Int32
	maxSeen atomic.Int32
	active  atomic.Int32
	delay   time.Duration
	err     error

	mu      sync.Mutex
	release chan struct{}
}

func (f *fakeFetcher) SearchJobs(ctx context.Context, keyword, location string, limit int) ([]models.JobRecord, error) {
	f.calls.Add(1)
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		old := f.maxSeen.Load()
		if n <= old || f.maxSeen.CompareAndSwap(old, n) {
			break
		}
	}

	f.mu.Lock()
	release := f.release
	f.mu.Unlock()
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return []models.JobRecord{
		{Title: keyword + "岗位", Company: "测试公司", WorkLocation: location},
	}, nil
}

func testConfig() config.CoordinatorConfig {
	return config.CoordinatorConfig{Workers: 3, MaxSessions: 2, QueueSize: 16, TaskTTL: time.Hour}
}

func newTestCoordinator(t *testing.T, f Fetcher, results *cache.Cache) *Coordinator {
	t.Helper()
	c := New(nil, testConfig(), config.RetryConfig{}, 5*time.Second, f, results, nil)
	t.Cleanup(c.Stop)
	return c
}

func submit(t *testing.T, c *Coordinator, keyword string) string {
	t.Helper()
	id, err := c.Submit(models.SearchRequest{Keyword: keyword})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestSubmitAndResult(t *testing.T) {
	f := &fakeFetcher{}
	c := newTestCoordinator(t, f, nil)

	id := submit(t, c, "风控")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	records, err := c.Result(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Title != "风控岗位" {
		t.Errorf("records = %+v", records)
	}

	st, ok := c.Status(id)
	if !ok || st.Status != models.TaskCompleted || st.RecordCount != 1 {
		t.Errorf("status = %+v", st)
	}
}

func TestSubmitRequiresKeyword(t *testing.T) {
	c := newTestCoordinator(t, &fakeFetcher{}, nil)
	if _, err := c.Submit(models.SearchRequest{}); err == nil {
		t.Error("expected invalid input error")
	}
}

func TestDuplicateSubmissionsShareOneFetch(t *testing.T) {
	f := &fakeFetcher{release: make(chan struct{})}
	c := newTestCoordinator(t, f, nil)

	id1 := submit(t, c, "风控")
	// Give the worker a moment to pick the task up and block inside
	// the fetcher, so the second submit sees it in flight.
	time.Sleep(50 * time.Millisecond)
	id2 := submit(t, c, "风控")
	if id1 == id2 {
		t.Fatal("attached task should get its own ID")
	}
	close(f.release)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r1, err1 := c.Result(ctx, id1)
	r2, err2 := c.Result(ctx, id2)
	if err1 != nil || err2 != nil {
		t.Fatal(err1, err2)
	}
	if len(r1) != 1 || len(r2) != 1 {
		t.Errorf("results = %d/%d records", len(r1), len(r2))
	}
	if got := f.calls.Load(); got != 1 {
		t.Errorf("fetcher called %d times, want 1", got)
	}
}

func TestCacheHitSkipsFetcher(t *testing.T) {
	results, err := cache.New(nil, "", 10, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(results.Stop)
	f := &fakeFetcher{}
	c := newTestCoordinator(t, f, results)

	id1 := submit(t, c, "风控")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := c.Result(ctx, id1); err != nil {
		t.Fatal(err)
	}

	id2 := submit(t, c, "风控")
	records, err := c.Result(ctx, id2)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Errorf("cached records = %d", len(records))
	}
	st, _ := c.Status(id2)
	if !st.FromCache {
		t.Error("second task should be marked from cache")
	}
	if got := f.calls.Load(); got != 1 {
		t.Errorf("fetcher called %d times, want 1", got)
	}
}

func TestSessionSemaphoreCapsConcurrency(t *testing.T) {
	f := &fakeFetcher{delay: 100 * time.Millisecond}
	c := newTestCoordinator(t, f, nil)

	ids := []string{
		submit(t, c, "风控"),
		submit(t, c, "数据分析"),
		submit(t, c, "合规"),
		submit(t, c, "审计"),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, id := range ids {
		if _, err := c.Result(ctx, id); err != nil {
			t.Fatal(err)
		}
	}
	if max := f.maxSeen.Load(); max > 2 {
		t.Errorf("saw %d concurrent fetches, semaphore caps at 2", max)
	}
}

func TestFailedTaskReportsError(t *testing.T) {
	f := &fakeFetcher{err: models.NewCrawlError(models.ErrCodeAuthRequired, "not logged in", nil)}
	c := newTestCoordinator(t, f, nil)

	id := submit(t, c, "风控")
	// Auth failures take a short grace wait inside the retry runner
	// before propagating, so give the result wait room for it.
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	_, err := c.Result(ctx, id)
	if err == nil {
		t.Fatal("expected task failure")
	}
	var ce *models.CrawlError
	if !errors.As(err, &ce) || ce.Code != models.ErrCodeAuthRequired {
		t.Errorf("err = %v", err)
	}
	st, _ := c.Status(id)
	if st.Status != models.TaskFailed || st.Error == "" {
		t.Errorf("status = %+v", st)
	}
	// Auth errors are not retryable, so exactly one attempt.
	if got := f.calls.Load(); got != 1 {
		t.Errorf("fetcher called %d times, want 1", got)
	}
}

func TestCallbackFiresOnCompletion(t *testing.T) {
	f := &fakeFetcher{}
	c := newTestCoordinator(t, f, nil)

	events := make(chan webhook.Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev webhook.Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err == nil {
			events <- ev
		}
	}))
	defer srv.Close()

	id, err := c.Submit(models.SearchRequest{Keyword: "风控", CallbackURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-events:
		if ev.Type != webhook.EventSearchCompleted {
			t.Errorf("event type = %q", ev.Type)
		}
		if ev.TaskID != id {
			t.Errorf("event task_id = %q, want %q", ev.TaskID, id)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("callback never delivered")
	}
}

func TestResultUnknownTask(t *testing.T) {
	c := newTestCoordinator(t, &fakeFetcher{}, nil)
	_, err := c.Result(context.Background(), "nope")
	var ce *models.CrawlError
	if !errors.As(err, &ce) || ce.Code != models.ErrCodeTaskNotFound {
		t.Errorf("err = %v", err)
	}
}

func TestConfiguredRetryPolicyIsApplied(t *testing.T) {
	f := &fakeFetcher{err: models.NewCrawlError(models.ErrCodeNetwork, "connection reset", nil)}
	retryCfg := config.RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond}
	c := New(nil, testConfig(), retryCfg, 5*time.Second, f, nil, nil)
	t.Cleanup(c.Stop)

	id := submit(t, c, "风控")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := c.Result(ctx, id); err == nil {
		t.Fatal("expected task failure")
	}
	// The default network policy allows 5 attempts; the override caps
	// retries at 2.
	if got := f.calls.Load(); got != 2 {
		t.Errorf("fetcher called %d times, want 2", got)
	}
}

func TestStopFailsQueuedTasks(t *testing.T) {
	f := &fakeFetcher{release: make(chan struct{})}
	c := New(nil, testConfig(), config.RetryConfig{}, 5*time.Second, f, nil, nil)

	ids := make([]string, 0, 4)
	for _, kw := range []string{"风控", "合规", "反欺诈", "建模"} {
		ids = append(ids, submit(t, c, kw))
	}

	stopped := make(chan struct{})
	go func() { c.Stop(); close(stopped) }()
	close(f.release)

	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not return")
	}

	// Every task must be resolved after Stop; a queued task must not
	// stay pending with Result waiters hanging.
	for _, id := range ids {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_, err := c.Result(ctx, id)
		cancel()
		if errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("task %s unresolved after Stop", id)
		}
		st, ok := c.Status(id)
		if !ok || st.Status == models.TaskPending || st.Status == models.TaskRunning {
			t.Errorf("task %s status = %q after Stop", id, st.Status)
		}
	}
}

func TestSubmitQueueFull(t *testing.T) {
	f := &fakeFetcher{release: make(chan struct{})}
	cfg := config.CoordinatorConfig{Workers: 1, MaxSessions: 1, QueueSize: 1, TaskTTL: time.Hour}
	c := New(nil, cfg, config.RetryConfig{}, 5*time.Second, f, nil, nil)
	defer c.Stop()
	defer close(f.release)

	submit(t, c, "风控")
	// Wait for the worker to block inside the fetcher so the next
	// submission lands in the queue.
	deadline := time.Now().Add(2 * time.Second)
	for f.active.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("worker never picked up the task")
		}
		time.Sleep(5 * time.Millisecond)
	}
	submit(t, c, "合规")

	_, err := c.Submit(models.SearchRequest{Keyword: "反欺诈"})
	var ce *models.CrawlError
	if !errors.As(err, &ce) || ce.Code != models.ErrCodeRateLimited {
		t.Fatalf("err = %v, want RATE_LIMITED", err)
	}
	// The rejection must clear all state for that key: a retry sees
	// the same full queue instead of attaching to a ghost task.
	if _, err := c.Submit(models.SearchRequest{Keyword: "反欺诈"}); err == nil {
		t.Fatal("retry attached to leftover in-flight state")
	}
}
