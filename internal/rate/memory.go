package rate

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const memoryShardCount = 64

type memoryShard struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

// MemoryLimiter keeps windows in process memory. Limits apply per instance.
type MemoryLimiter struct {
	config Config
	shards [memoryShardCount]memoryShard
	now    func() time.Time

	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

// NewMemoryLimiter validates cfg. A nil clock means time.Now.
func NewMemoryLimiter(cfg Config, now func() time.Time) (*MemoryLimiter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	l := &MemoryLimiter{config: cfg, now: now}
	for i := range l.shards {
		l.shards[i].windows = make(map[string][]time.Time)
	}
	return l, nil
}

// CheckAndRecord implements Limiter. It never returns an error.
func (l *MemoryLimiter) CheckAndRecord(_ context.Context, clientKey string) (bool, error) {
	now := l.now()
	sh := &l.shards[xxhash.Sum64String(clientKey)%memoryShardCount]

	sh.mu.Lock()
	defer sh.mu.Unlock()

	window := l.prune(sh.windows[clientKey], now)
	window = append(window, now)
	if keep := l.config.Requests + 1; len(window) > keep {
		window = window[len(window)-keep:]
	}
	sh.windows[clientKey] = window

	return len(window) <= l.config.Requests, nil
}

// prune drops timestamps at least one window old. Timestamps are appended in
// call order, so the survivors form a suffix.
func (l *MemoryLimiter) prune(window []time.Time, now time.Time) []time.Time {
	cut := 0
	for cut < len(window) && now.Sub(window[cut]) >= l.config.Window {
		cut++
	}
	if cut == 0 {
		return window
	}
	// Copy rather than reslice so the dropped prefix can be collected.
	remaining := make([]time.Time, len(window)-cut)
	copy(remaining, window[cut:])
	return remaining
}

// Sweep removes keys whose whole window has aged out.
func (l *MemoryLimiter) Sweep() int {
	now := l.now()
	removed := 0
	for i := range l.shards {
		sh := &l.shards[i]
		sh.mu.Lock()
		for key, window := range sh.windows {
			if len(window) == 0 || now.Sub(window[len(window)-1]) >= l.config.Window {
				delete(sh.windows, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Keys returns the number of tracked client keys.
func (l *MemoryLimiter) Keys() int {
	total := 0
	for i := range l.shards {
		sh := &l.shards[i]
		sh.mu.Lock()
		total += len(sh.windows)
		sh.mu.Unlock()
	}
	return total
}

// StartSweeper runs Sweep every interval until Close.
func (l *MemoryLimiter) StartSweeper(interval time.Duration) {
	if interval <= 0 || l.stopChan != nil {
		return
	}
	l.stopChan = make(chan struct{})
	l.done = make(chan struct{})

	go func() {
		defer close(l.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Sweep()
			case <-l.stopChan:
				return
			}
		}
	}()
}

// Close stops the sweeper if one is running.
func (l *MemoryLimiter) Close() {
	if l.stopChan == nil {
		return
	}
	l.stopOnce.Do(func() {
		close(l.stopChan)
		<-l.done
	})
}
