package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicyBackoffDoublesUpToCap(t *testing.T) {
	p := RetryPolicy{MaxRetries: 5, Base: 2 * time.Minute, Cap: 6 * time.Hour}

	assert.Equal(t, 4*time.Minute, p.Backoff(1))
	assert.Equal(t, 8*time.Minute, p.Backoff(2))
	assert.Equal(t, 16*time.Minute, p.Backoff(3))
	assert.Equal(t, 6*time.Hour, p.Backoff(15))

	prev := time.Duration(0)
	for n := 1; n <= 20; n++ {
		delay := p.Backoff(n)
		assert.GreaterOrEqual(t, delay, prev, "backoff must never shrink")
		assert.LessOrEqual(t, delay, p.Cap)
		prev = delay
	}
}

func TestRetryPolicyExhaustsAfterMaxRetries(t *testing.T) {
	p := RetryPolicy{MaxRetries: 3, Base: time.Minute, Cap: time.Hour}

	for n := 1; n <= 3; n++ {
		_, ok := p.Next(n)
		assert.True(t, ok, "retry %d should still be allowed", n)
	}

	_, ok := p.Next(4)
	assert.False(t, ok, "budget of 3 retries must be exhausted on the 4th")
}
