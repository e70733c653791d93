package stores

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const memoryShardCount = 64

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

type memoryShard struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// MemoryBackend is a process-local Backend.
//
// An entry is live while now <= expiresAt. Expired entries are dropped when
// touched and by Sweep.
type MemoryBackend struct {
	shards [memoryShardCount]memoryShard
	now    func() time.Time

	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

// MemoryOption customizes a MemoryBackend.
type MemoryOption func(*MemoryBackend)

// WithMemoryClock overrides the time source used for expiry.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *MemoryBackend) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemoryBackend returns an empty backend without a sweeper.
func NewMemoryBackend(opts ...MemoryOption) *MemoryBackend {
	m := &MemoryBackend{now: time.Now}
	for i := range m.shards {
		m.shards[i].entries = make(map[string]memoryEntry)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MemoryBackend) shard(key string) *memoryShard {
	return &m.shards[xxhash.Sum64String(key)%memoryShardCount]
}

// Insert implements Backend.
func (m *MemoryBackend) Insert(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	now := m.now()
	sh := m.shard(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if existing, ok := sh.entries[key]; ok && !now.After(existing.expiresAt) {
		return false, nil
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	sh.entries[key] = memoryEntry{value: stored, expiresAt: now.Add(ttl)}
	return true, nil
}

// Take implements Backend. The entry is removed whether or not it was live.
func (m *MemoryBackend) Take(_ context.Context, key string) ([]byte, bool, error) {
	now := m.now()
	sh := m.shard(key)

	sh.mu.Lock()
	entry, ok := sh.entries[key]
	if ok {
		delete(sh.entries, key)
	}
	sh.mu.Unlock()

	if !ok || now.After(entry.expiresAt) {
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Contains implements Backend.
func (m *MemoryBackend) Contains(_ context.Context, key string) (bool, error) {
	now := m.now()
	sh := m.shard(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	entry, ok := sh.entries[key]
	if !ok {
		return false, nil
	}
	if now.After(entry.expiresAt) {
		delete(sh.entries, key)
		return false, nil
	}
	return true, nil
}

// Sweep removes expired entries and returns how many were dropped.
func (m *MemoryBackend) Sweep() int {
	now := m.now()
	removed := 0
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.Lock()
		for key, entry := range sh.entries {
			if now.After(entry.expiresAt) {
				delete(sh.entries, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Len returns the number of stored entries, live or not yet swept.
func (m *MemoryBackend) Len() int {
	total := 0
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.Lock()
		total += len(sh.entries)
		sh.mu.Unlock()
	}
	return total
}

// StartSweeper runs Sweep every interval until Close. Calling it twice, or
// with a non-positive interval, is a no-op.
func (m *MemoryBackend) StartSweeper(interval time.Duration) {
	if interval <= 0 || m.stopChan != nil {
		return
	}
	m.stopChan = make(chan struct{})
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Sweep()
			case <-m.stopChan:
				return
			}
		}
	}()
}

// Close stops the sweeper if one is running.
func (m *MemoryBackend) Close() {
	if m.stopChan == nil {
		return
	}
	m.stopOnce.Do(func() {
		close(m.stopChan)
		<-m.done
	})
}
