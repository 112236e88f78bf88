// Package retry classifies crawl errors and re-runs operations under
// named policies with backoff.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// Backoff selects how the delay grows between attempts.
type Backoff string

const (
	BackoffExponential Backoff = "exponential"
	BackoffLinear      Backoff = "linear"
	BackoffFixed       Backoff = "fixed"
)

// Policy describes how many times an operation may run and how long
// to wait between attempts.
type Policy struct {
	Name        string
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Backoff     Backoff

	// Retryable lists the error kinds this policy will retry. A nil
	// map means the default retryable set.
	Retryable map[Kind]bool
}

// defaultRetryable covers transient failures worth another attempt.
// Auth and captcha failures need human intervention and parsing
// failures are deterministic, so none of those are in the set.
var defaultRetryable = map[Kind]bool{
	KindNetwork:         true,
	KindTimeout:         true,
	KindPageLoad:        true,
	KindElementNotFound: true,
	KindRateLimit:       true,
}

// Named policies matching the operations they are tuned for.
var (
	NetworkPolicy = Policy{
		Name:        "network",
		MaxAttempts: 5,
		BaseDelay:   2 * time.Second,
		MaxDelay:    60 * time.Second,
		Backoff:     BackoffExponential,
	}
	ParsingPolicy = Policy{
		Name:        "parsing",
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Backoff:     BackoffLinear,
		Retryable:   map[Kind]bool{KindParsing: true, KindElementNotFound: true},
	}
	RateLimitPolicy = Policy{
		Name:        "rate_limit",
		MaxAttempts: 3,
		BaseDelay:   30 * time.Second,
		MaxDelay:    90 * time.Second,
		Backoff:     BackoffLinear,
	}
	NoRetry = Policy{
		Name:        "no_retry",
		MaxAttempts: 1,
	}
)

func (p Policy) retryable(k Kind) bool {
	if p.MaxAttempts <= 1 {
		return false
	}
	if p.Retryable != nil {
		return p.Retryable[k]
	}
	return defaultRetryable[k]
}

// Delay returns the wait before the given attempt (1-based: the delay
// taken after attempt n failed), with ±10% jitter applied.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	var d time.Duration
	switch p.Backoff {
	case BackoffLinear:
		d = p.BaseDelay * time.Duration(attempt)
	case BackoffFixed:
		d = p.BaseDelay
	default:
		d = p.BaseDelay << uint(attempt-1)
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	// ±10% jitter so synchronized workers do not retry in lockstep.
	jitter := 0.9 + 0.2*rand.Float64()
	return time.Duration(float64(d) * jitter)
}

// cooldown returns an extra pre-retry wait for kinds that need the
// remote side to calm down before another attempt is worth making.
func cooldown(k Kind, attempt int) time.Duration {
	switch k {
	case KindRateLimit:
		s := attempt * 10
		if s > 30 {
			s = 30
		}
		return time.Duration(s) * time.Second
	case KindCaptcha:
		return 5 * time.Second
	case KindAuth:
		return 3 * time.Second
	case KindBrowser:
		return 2 * time.Second
	}
	return 0
}

// Stats aggregates retry outcomes per operation name.
type Stats struct {
	Attempts  int `json:"attempts"`
	Successes int `json:"successes"`
	Failures  int `json:"failures"`
	Retries   int `json:"retries"`

	// SuccessAfterRetry counts operations that failed at least once
	// and then succeeded, i.e. retries that paid off.
	SuccessAfterRetry int `json:"success_after_retry"`

	ByKind map[Kind]int `json:"by_kind,omitempty"`
}

// Runner executes operations under retry policies and records stats.
type Runner struct {
	log *slog.Logger

	mu    sync.Mutex
	stats map[string]*Stats
}

// NewRunner creates a Runner. A nil logger uses slog.Default.
func NewRunner(log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{log: log, stats: make(map[string]*Stats)}
}

// Do runs fn under the policy until it succeeds, the error is not
// retryable, attempts run out, or ctx is canceled. The returned error
// is the last attempt's error.
func (r *Runner) Do(ctx context.Context, op string, p Policy, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	performed := 0
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		performed++
		err := fn(ctx)
		if err == nil {
			r.record(op, attempt, KindUnknown, true)
			return nil
		}
		lastErr = err

		kind := Classify(err)
		r.record(op, attempt, kind, false)

		if !p.retryable(kind) {
			// Auth and captcha walls get one short wait before the
			// error propagates, so a quick manual fix lands before
			// the caller resubmits.
			if kind == KindAuth || kind == KindCaptcha {
				_ = sleep(ctx, cooldown(kind, attempt))
			}
			break
		}
		if attempt == attempts {
			break
		}

		wait := p.Delay(attempt) + cooldown(kind, attempt)
		r.log.Warn("operation failed, retrying",
			"op", op,
			"attempt", attempt,
			"max_attempts", attempts,
			"kind", string(kind),
			"wait", wait.String(),
			"error", err.Error(),
		)
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}

	return fmt.Errorf("%s failed after %d attempt(s): %w", op, performed, lastErr)
}

func (r *Runner) record(op string, attempt int, kind Kind, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stats[op]
	if !ok {
		s = &Stats{ByKind: make(map[Kind]int)}
		r.stats[op] = s
	}
	s.Attempts++
	if success {
		s.Successes++
		if attempt > 1 {
			s.SuccessAfterRetry++
		}
	} else {
		s.Failures++
		s.ByKind[kind]++
	}
	if attempt > 1 {
		s.Retries++
	}
}

// Snapshot returns a copy of all per-operation stats.
func (r *Runner) Snapshot() map[string]Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Stats, len(r.stats))
	for op, s := range r.stats {
		cp := *s
		cp.ByKind = make(map[Kind]int, len(s.ByKind))
		for k, v := range s.ByKind {
			cp.ByKind[k] = v
		}
		out[op] = cp
	}
	return out
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
