package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryableStatus(t *testing.T) {
	assert.True(t, IsRetryableStatus(429))
	assert.True(t, IsRetryableStatus(503))
	assert.False(t, IsRetryableStatus(400))
	assert.False(t, IsRetryableStatus(404))
}

func TestCalculateBackoff(t *testing.T) {
	cfg := Config{InitialBackoffMs: 100, MaxBackoffMs: 1000}

	first := CalculateBackoff(0, cfg)
	assert.GreaterOrEqual(t, first, 100*time.Millisecond)
	assert.LessOrEqual(t, first, 125*time.Millisecond)

	capped := CalculateBackoff(10, cfg)
	assert.GreaterOrEqual(t, capped, time.Second)
	assert.LessOrEqual(t, capped, 1250*time.Millisecond)
}

func TestCalculateRateLimitBackoffHonoursRetryAfter(t *testing.T) {
	header := "3"
	d := CalculateRateLimitBackoff(0, DefaultConfig(), &header)
	assert.GreaterOrEqual(t, d, 3*time.Second)
	assert.Less(t, d, 4*time.Second)
}

func TestSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}

func TestFetchRetryError(t *testing.T) {
	cause := errors.New("connection reset")
	err := &FetchRetryError{URL: "https://example.test", Attempts: 4, LastStatus: 503, LastError: cause}
	assert.Equal(t, "failed to fetch https://example.test after 4 attempts (HTTP 503): connection reset", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestThrottleRespectsContext(t *testing.T) {
	limiter := NewRateLimiter(Config{RequestsPerSecond: 1})
	assert.NoError(t, limiter.Throttle(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, limiter.Throttle(ctx))
}
