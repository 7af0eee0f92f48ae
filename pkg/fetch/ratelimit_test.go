package fetch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_NoDelayForUnknownHost(t *testing.T) {
	rl := NewRateLimiter(100*time.Millisecond, testLogger())

	start := time.Now()
	rl.ApplyDelay("example.com", 100*time.Millisecond)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 50*time.Millisecond, "first request to a host should not be delayed")
}

func TestRateLimiter_DelaysSecondRequest(t *testing.T) {
	rl := NewRateLimiter(50*time.Millisecond, testLogger())

	rl.UpdateLastRequestTime("example.com")

	start := time.Now()
	rl.ApplyDelay("example.com", 50*time.Millisecond)
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond, "second request should wait out the per-host delay")
}

func TestRateLimiter_ZeroDelayIsNoop(t *testing.T) {
	rl := NewRateLimiter(0, testLogger())

	rl.UpdateLastRequestTime("example.com")

	start := time.Now()
	rl.ApplyDelay("example.com", 0)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 20*time.Millisecond)
}

func TestRateLimiter_HostsAreIndependent(t *testing.T) {
	rl := NewRateLimiter(100*time.Millisecond, testLogger())

	rl.UpdateLastRequestTime("a.example.com")

	start := time.Now()
	rl.ApplyDelay("b.example.com", 100*time.Millisecond)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 50*time.Millisecond, "delay for one host should not affect another")
}
