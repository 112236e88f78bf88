package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JJJJun123/boss-automation-sub000/models"
)

func TestClassifyKeywords(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"connection refused", errors.New("dial tcp: connection refused"), KindNetwork},
		{"timeout", errors.New("navigation timed out after 20s"), KindTimeout},
		{"captcha zh", errors.New("检测到安全验证页面"), KindCaptcha},
		{"login", errors.New("redirected to login page"), KindAuth},
		{"rate limit", errors.New("HTTP 429 too many requests"), KindRateLimit},
		{"element", errors.New("element not found: .job-list-box"), KindElementNotFound},
		{"parse", errors.New("failed to parse salary text"), KindParsing},
		{"browser", errors.New("websocket: close 1006"), KindBrowser},
		{"unknown", errors.New("something odd"), KindUnknown},
		{"nil", nil, KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassifyTypedErrorWins(t *testing.T) {
	// The code mapping must win over keywords in the message.
	err := models.NewCrawlError(models.ErrCodeVerification, "slider check", errors.New("connection reset"))
	if got := Classify(err); got != KindCaptcha {
		t.Fatalf("Classify = %q, want %q", got, KindCaptcha)
	}
}

func TestClassifyDeadlineExceeded(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()
	if got := Classify(ctx.Err()); got != KindTimeout {
		t.Fatalf("Classify = %q, want %q", got, KindTimeout)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	r := NewRunner(nil)
	p := Policy{Name: "test", MaxAttempts: 4, BaseDelay: time.Millisecond, Backoff: BackoffFixed}

	calls := 0
	err := r.Do(context.Background(), "op", p, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}

	stats := r.Snapshot()["op"]
	if stats.Attempts != 3 || stats.Successes != 1 || stats.Failures != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.SuccessAfterRetry != 1 {
		t.Errorf("success_after_retry = %d, want 1", stats.SuccessAfterRetry)
	}
}

func TestDoNonRetryableFailsOnce(t *testing.T) {
	r := NewRunner(nil)
	p := Policy{Name: "test", MaxAttempts: 5, BaseDelay: time.Millisecond}

	// Auth errors take one short grace wait before propagating; the
	// deadline cuts it so the test stays fast.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	calls := 0
	err := r.Do(ctx, "op", p, func(context.Context) error {
		calls++
		return models.NewCrawlError(models.ErrCodeAuthRequired, "not logged in", nil)
	})
	if err == nil {
		t.Fatal("Do should have failed")
	}
	var ce *models.CrawlError
	if !errors.As(err, &ce) || ce.Code != models.ErrCodeAuthRequired {
		t.Errorf("err = %v, want wrapped auth error", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (auth errors are not retryable)", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	r := NewRunner(nil)
	p := Policy{Name: "test", MaxAttempts: 3, BaseDelay: time.Millisecond, Backoff: BackoffFixed}

	calls := 0
	sentinel := errors.New("connection refused")
	err := r.Do(context.Background(), "op", p, func(context.Context) error {
		calls++
		return sentinel
	})
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("final error should wrap the last attempt error, got %v", err)
	}
}

func TestDoRespectsContextCancel(t *testing.T) {
	r := NewRunner(nil)
	p := Policy{Name: "test", MaxAttempts: 10, BaseDelay: time.Hour, Backoff: BackoffFixed}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := r.Do(ctx, "op", p, func(context.Context) error {
		calls++
		return errors.New("timeout")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestExponentialDelaysNonDecreasing(t *testing.T) {
	p := NetworkPolicy
	prev := time.Duration(0)
	for attempt := 1; attempt <= 6; attempt++ {
		d := p.Delay(attempt)
		// Jitter is ±10%, so allow the floor of the previous step.
		if float64(d) < float64(prev)*0.8 {
			t.Errorf("delay(%d) = %v dropped below delay(%d) = %v", attempt, d, attempt-1, prev)
		}
		if p.MaxDelay > 0 && float64(d) > float64(p.MaxDelay)*1.1 {
			t.Errorf("delay(%d) = %v exceeds cap %v", attempt, d, p.MaxDelay)
		}
		prev = d
	}
}

func TestCooldownRateLimitCapped(t *testing.T) {
	if got := cooldown(KindRateLimit, 1); got != 10*time.Second {
		t.Errorf("cooldown(rate_limit, 1) = %v, want 10s", got)
	}
	if got := cooldown(KindRateLimit, 5); got != 30*time.Second {
		t.Errorf("cooldown(rate_limit, 5) = %v, want 30s", got)
	}
}
