package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"harvest/scraper/internal/domain"

	log "github.com/sirupsen/logrus"
)

// Decision is the outcome of classifying one failure.
type Decision struct {
	Retryable bool
	Delay     time.Duration // Delay hint for the next attempt, zero when fatal
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryPolicy decides which failures are worth another attempt and how long to wait.
type RetryPolicy struct {
	BaseDelay         time.Duration
	MaxAttempts       int
	RetryableStatuses []int // Non-2xx statuses besides 429 the caller wants retried
	Sleep             SleepFunc
}

// Backoff returns BaseDelay * 2^(attempt-1), attempt counted from 1.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.BaseDelay << (attempt - 1)
}

// Classify tells whether err is retryable. The delay hint is the first-attempt backoff.
func (p RetryPolicy) Classify(err error) Decision {
	if p.retryable(err) {
		return Decision{Retryable: true, Delay: p.Backoff(1)}
	}
	return Decision{}
}

func (p RetryPolicy) retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, domain.ErrUnexpectedShape):
		return false
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, domain.ErrRateLimited):
		return true
	case errors.Is(err, domain.ErrNetwork), errors.Is(err, domain.ErrTimeout):
		return true
	}

	var fetchErr *domain.FetchError
	if errors.As(err, &fetchErr) && fetchErr.Kind == domain.KindHTTPStatus {
		return slices.Contains(p.RetryableStatuses, fetchErr.StatusCode)
	}
	return false
}

// Do runs op until it succeeds, fails fatally or uses up MaxAttempts. Retryable
// failures on the last attempt come back wrapped with domain.ErrExhausted.
func (p RetryPolicy) Do(ctx context.Context, label string, op func(ctx context.Context) error) error {
	maxAttempts := max(p.MaxAttempts, 1)
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		if !p.retryable(err) {
			return err
		}

		if attempt >= maxAttempts {
			return fmt.Errorf("%w after %d attempts: %w", domain.ErrExhausted, attempt, err)
		}

		delay := p.Backoff(attempt)
		log.Warnf("🔄 %s failed (attempt %d/%d), retrying in %v: %v", label, attempt, maxAttempts, delay, err)

		if err := sleep(ctx, delay); err != nil {
			return fmt.Errorf("retry of %s interrupted: %w", label, err)
		}
	}
}

// Sleep waits for d unless ctx is cancelled first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// FetchDocument fetches url and turns non-2xx statuses into classified errors.
func FetchDocument(ctx context.Context, fetcher Fetcher, url string, headers map[string]string) ([]byte, error) {
	resp, err := fetcher.Fetch(ctx, url, headers)
	if err != nil {
		return nil, err
	}

	if !resp.OK() {
		return nil, domain.StatusError(url, resp.Status)
	}

	return resp.Body, nil
}
