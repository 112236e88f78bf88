// Package coordinator owns the crawl task lifecycle: a bounded queue
// feeding a worker pool, a session semaphore that caps concurrent
// browser work below the worker count, cache integration, and
// in-flight deduplication so identical searches share one fetch.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JJJJun123/boss-automation-sub000/cache"
	"github.com/JJJJun123/boss-automation-sub000/config"
	"github.com/JJJJun123/boss-automation-sub000/models"
	"github.com/JJJJun123/boss-automation-sub000/retry"
	"github.com/JJJJun123/boss-automation-sub000/webhook"
)

// Fetcher runs one real search against the site. Implemented by the
// scraper; faked in tests.
type Fetcher interface {
	SearchJobs(ctx context.Context, keyword, location string, limit int) ([]models.JobRecord, error)
}

// task is the coordinator's internal task state. followers are tasks
// that attached to this one's in-flight fetch and complete with it.
type task struct {
	state       models.CrawlTask
	useCache    bool
	callbackURL string

	followers []*task
	done      chan struct{}
	records   []models.JobRecord
	err       error
}

// Coordinator is safe for concurrent use.
type Coordinator struct {
	log      *slog.Logger
	cfg      config.CoordinatorConfig
	retryCfg config.RetryConfig
	timeout  time.Duration
	fetcher  Fetcher
	cache    *cache.Cache
	retry    *retry.Runner
	notifier *webhook.Notifier

	queue    chan *task
	sessions chan struct{}

	mu       sync.Mutex
	tasks    map[string]*task // by task ID
	inflight map[string]*task // by cache key

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New starts the worker pool. taskTimeout bounds one search including
// retries; retryCfg tunes the search retry policy (zero values keep
// the network policy defaults); results is optional (nil disables
// caching entirely).
func New(log *slog.Logger, cfg config.CoordinatorConfig, retryCfg config.RetryConfig, taskTimeout time.Duration, fetcher Fetcher, results *cache.Cache, runner *retry.Runner) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.TaskTTL <= 0 {
		cfg.TaskTTL = time.Hour
	}
	if taskTimeout <= 0 {
		taskTimeout = 2 * time.Minute
	}
	if runner == nil {
		runner = retry.NewRunner(log)
	}

	c := &Coordinator{
		log:      log,
		cfg:      cfg,
		retryCfg: retryCfg,
		timeout:  taskTimeout,
		fetcher:  fetcher,
		cache:    results,
		retry:    runner,
		notifier: webhook.NewNotifier(log, cfg.WebhookSecret),
		queue:    make(chan *task, cfg.QueueSize),
		sessions: make(chan struct{}, cfg.MaxSessions),
		tasks:    make(map[string]*task),
		inflight: make(map[string]*task),
		done:     make(chan struct{}),
	}

	for i := 0; i < cfg.Workers; i++ {
		c.wg.Add(1)
		go c.worker(i)
	}
	c.wg.Add(1)
	go c.reaper()
	return c
}

// Submit queues a search and returns its task ID. Cache hits complete
// immediately; a submission matching an in-flight identical search
// attaches to it instead of queueing new browser work.
func (c *Coordinator) Submit(req models.SearchRequest) (string, error) {
	req.Defaults()
	if req.Keyword == "" {
		return "", models.NewCrawlError(models.ErrCodeInvalidInput, "keyword is required", nil)
	}

	t := &task{
		state: models.CrawlTask{
			ID:          uuid.NewString(),
			Keyword:     req.Keyword,
			Location:    req.Location,
			Limit:       req.Limit,
			Priority:    req.Priority,
			Status:      models.TaskPending,
			SubmittedAt: time.Now(),
		},
		useCache:    *req.UseCache,
		callbackURL: req.CallbackURL,
		done:        make(chan struct{}),
	}
	key := cache.Key(req.Keyword, req.Location, req.Limit)

	if t.useCache && c.cache != nil {
		if records, ok := c.cache.Get(key); ok {
			t.records = records
			t.state.Status = models.TaskCompleted
			t.state.FromCache = true
			t.state.RecordCount = len(records)
			t.state.FinishedAt = time.Now()
			close(t.done)

			c.mu.Lock()
			c.tasks[t.state.ID] = t
			c.mu.Unlock()
			c.log.Info("task answered from cache", "task_id", t.state.ID, "keyword", req.Keyword)
			c.notify(t)
			return t.state.ID, nil
		}
	}

	c.mu.Lock()
	if primary, ok := c.inflight[key]; ok {
		primary.followers = append(primary.followers, t)
		c.tasks[t.state.ID] = t
		c.mu.Unlock()
		c.log.Info("task attached to in-flight search",
			"task_id", t.state.ID, "primary_id", primary.state.ID, "keyword", req.Keyword)
		return t.state.ID, nil
	}
	c.inflight[key] = t
	c.tasks[t.state.ID] = t
	c.mu.Unlock()

	select {
	case c.queue <- t:
		c.log.Info("task queued", "task_id", t.state.ID, "keyword", req.Keyword, "limit", req.Limit)
		return t.state.ID, nil
	default:
		// Followers may have attached while the task was registered
		// as in-flight; finish resolves them along with the primary.
		err := models.NewCrawlError(models.ErrCodeRateLimited, "task queue is full", nil)
		c.finish(t, nil, err)
		c.mu.Lock()
		delete(c.tasks, t.state.ID)
		c.mu.Unlock()
		return "", err
	}
}

// Status returns a copy of the task's current state.
func (c *Coordinator) Status(taskID string) (models.CrawlTask, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tasks[taskID]
	if !ok {
		return models.CrawlTask{}, false
	}
	return t.state, true
}

// Result blocks until the task finishes or ctx ends, then returns its
// records.
func (c *Coordinator) Result(ctx context.Context, taskID string) ([]models.JobRecord, error) {
	c.mu.Lock()
	t, ok := c.tasks[taskID]
	c.mu.Unlock()
	if !ok {
		return nil, models.NewCrawlError(models.ErrCodeTaskNotFound,
			fmt.Sprintf("task %s not found", taskID), nil)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.done:
	}

	c.mu.Lock()
	records, err := t.records, t.err
	c.mu.Unlock()
	return records, err
}

// Queued returns the number of tasks waiting for a worker.
func (c *Coordinator) Queued() int { return len(c.queue) }

// Active returns the number of sessions currently held.
func (c *Coordinator) Active() int { return len(c.sessions) }

// Stop drains the workers. Queued tasks fail with a shutdown error.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() { close(c.done) })
	c.wg.Wait()

	// Workers are gone. Anything still sitting in the queue fails now
	// so Result waiters are released instead of hanging.
	for {
		select {
		case t := <-c.queue:
			c.finish(t, nil, models.NewCrawlError(models.ErrCodeInternal, "coordinator stopped", nil))
		default:
			return
		}
	}
}

func (c *Coordinator) worker(id int) {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case t := <-c.queue:
			c.run(id, t)
		}
	}
}

func (c *Coordinator) run(workerID int, t *task) {
	// Session semaphore: workers beyond MaxSessions wait here.
	select {
	case <-c.done:
		c.finish(t, nil, models.NewCrawlError(models.ErrCodeInternal, "coordinator stopped", nil))
		return
	case c.sessions <- struct{}{}:
	}
	defer func() { <-c.sessions }()

	c.mu.Lock()
	t.state.Status = models.TaskRunning
	t.state.StartedAt = time.Now()
	keyword, location, limit := t.state.Keyword, t.state.Location, t.state.Limit
	c.mu.Unlock()

	c.log.Info("task started", "worker", workerID, "task_id", t.state.ID, "keyword", keyword)

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	var records []models.JobRecord
	attempts := 0
	err := c.retry.Do(ctx, "search_jobs", c.searchPolicy(), func(ctx context.Context) error {
		attempts++
		var ferr error
		records, ferr = c.fetcher.SearchJobs(ctx, keyword, location, limit)
		return ferr
	})

	c.mu.Lock()
	t.state.Attempts = attempts
	c.mu.Unlock()

	if err == nil && t.useCache && c.cache != nil && len(records) > 0 {
		if cerr := c.cache.Set(keyword, location, limit, records); cerr != nil {
			c.log.Warn("result cache write failed", "task_id", t.state.ID, "error", cerr)
		}
	}
	c.finish(t, records, err)
}

// searchPolicy is the network policy with the configured attempt and
// delay overrides applied.
func (c *Coordinator) searchPolicy() retry.Policy {
	p := retry.NetworkPolicy
	if c.retryCfg.MaxAttempts > 0 {
		p.MaxAttempts = c.retryCfg.MaxAttempts
	}
	if c.retryCfg.BaseDelay > 0 {
		p.BaseDelay = c.retryCfg.BaseDelay
	}
	return p
}

// finish completes the task and every follower attached to it.
func (c *Coordinator) finish(t *task, records []models.JobRecord, err error) {
	now := time.Now()
	key := cache.Key(t.state.Keyword, t.state.Location, t.state.Limit)

	c.mu.Lock()
	delete(c.inflight, key)
	all := append([]*task{t}, t.followers...)
	for _, ft := range all {
		ft.records = records
		ft.err = err
		ft.state.FinishedAt = now
		ft.state.RecordCount = len(records)
		if err != nil {
			ft.state.Status = models.TaskFailed
			ft.state.Error = err.Error()
		} else {
			ft.state.Status = models.TaskCompleted
		}
		if ft != t {
			ft.state.Attempts = t.state.Attempts
		}
		close(ft.done)
	}
	c.mu.Unlock()

	for _, ft := range all {
		c.notify(ft)
	}

	if err != nil {
		c.log.Error("task failed", "task_id", t.state.ID, "followers", len(t.followers), "error", err)
	} else {
		c.log.Info("task completed",
			"task_id", t.state.ID, "followers", len(t.followers), "records", len(records))
	}
}

// notify fires the task's callback webhook, if one was requested.
// Delivery is asynchronous with its own retry schedule.
func (c *Coordinator) notify(t *task) {
	if t.callbackURL == "" {
		return
	}

	c.mu.Lock()
	state := t.state
	records := t.records
	c.mu.Unlock()

	event := webhook.Event{TaskID: state.ID}
	if state.Status == models.TaskFailed {
		event.Type = webhook.EventSearchFailed
		event.Data = models.SearchResponse{Task: &state}
	} else {
		event.Type = webhook.EventSearchCompleted
		event.Data = models.SearchResponse{Task: &state, Records: records}
	}
	c.notifier.Notify(t.callbackURL, event)
}

// reaper drops finished tasks after the retention TTL so the task map
// does not grow without bound.
func (c *Coordinator) reaper() {
	defer c.wg.Done()
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-c.cfg.TaskTTL)
			c.mu.Lock()
			for id, t := range c.tasks {
				finished := t.state.Status == models.TaskCompleted || t.state.Status == models.TaskFailed
				if finished && t.state.FinishedAt.Before(cutoff) {
					delete(c.tasks, id)
				}
			}
			c.mu.Unlock()
		}
	}
}
