package service

import (
	"time"

	config "github.com/maheshrc27/postpilot/configs"
)

// RetryPolicy decides what happens after a transient posting failure. It is
// pure decision logic; callers persist the outcome.
type RetryPolicy struct {
	MaxRetries int
	Base       time.Duration
	Cap        time.Duration
}

func NewRetryPolicy(cfg config.Scheduler) RetryPolicy {
	return RetryPolicy{
		MaxRetries: cfg.MaxRetries,
		Base:       cfg.BackoffBase,
		Cap:        cfg.BackoffCap,
	}
}

// Next takes the retry count after incrementing for the current failure and
// returns the backoff delay before the next attempt. ok is false once the
// count exceeds MaxRetries, at which point the post is terminally failed.
func (p RetryPolicy) Next(retryCount int) (time.Duration, bool) {
	if retryCount > p.MaxRetries {
		return 0, false
	}
	return p.Backoff(retryCount), true
}

// Backoff is min(base * 2^n, cap).
func (p RetryPolicy) Backoff(retryCount int) time.Duration {
	delay := p.Base
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= p.Cap {
			return p.Cap
		}
	}
	if delay > p.Cap {
		return p.Cap
	}
	return delay
}
