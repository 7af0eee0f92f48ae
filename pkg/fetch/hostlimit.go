package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// hostSlot tracks a single host's semaphore and its usage state.
type hostSlot struct {
	sem         *semaphore.Weighted
	activeCount int64     // held + waiting permits
	lastRelease time.Time // zero if never released
}

// HostLimiter bounds concurrent in-flight requests per host. One limiter is
// shared across the whole crawl so the limit holds regardless of which
// component issues the request.
type HostLimiter struct {
	slots map[string]*hostSlot
	mu    sync.Mutex
	limit int64
	log   *logrus.Entry
}

// NewHostLimiter creates a limiter with the given per-host concurrency cap.
func NewHostLimiter(maxPerHost int, log *logrus.Entry) *HostLimiter {
	limit := int64(maxPerHost)
	if limit <= 0 {
		limit = 2
		log.Warnf("max_requests_per_host invalid or zero, defaulting to %d", limit)
	}
	return &HostLimiter{
		slots: make(map[string]*hostSlot),
		limit: limit,
		log:   log,
	}
}

// Acquire takes one permit for host, blocking until a permit is available or
// ctx is cancelled.
func (hl *HostLimiter) Acquire(ctx context.Context, host string) error {
	hl.mu.Lock()
	slot, exists := hl.slots[host]
	if !exists {
		slot = &hostSlot{sem: semaphore.NewWeighted(hl.limit)}
		hl.slots[host] = slot
		hl.log.WithFields(logrus.Fields{"host": host, "limit": hl.limit}).Debug("Created new host semaphore")
	}
	slot.activeCount++
	hl.mu.Unlock()

	if err := slot.sem.Acquire(ctx, 1); err != nil {
		hl.mu.Lock()
		slot.activeCount--
		hl.mu.Unlock()
		return err
	}
	return nil
}

// Release returns one permit for host.
func (hl *HostLimiter) Release(host string) {
	hl.mu.Lock()
	slot, exists := hl.slots[host]
	if !exists {
		hl.mu.Unlock()
		hl.log.Errorf("HostLimiter: Release called for unknown host: %s", host)
		return
	}
	slot.activeCount--
	slot.lastRelease = time.Now()
	hl.mu.Unlock()

	slot.sem.Release(1)
}

// Len returns the current number of tracked hosts.
func (hl *HostLimiter) Len() int {
	hl.mu.Lock()
	defer hl.mu.Unlock()
	return len(hl.slots)
}
