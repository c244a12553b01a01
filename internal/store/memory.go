package store

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"healsync-portal/internal/logging"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !e.expiresAt.After(now)
}

// MemoryStore is a mutex-guarded map used when Redis is not configured.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	if now != nil {
		m.now = now
	}
	return m
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	if entry.expired(m.now()) {
		delete(m.entries, key)
		return nil, ErrNotFound
	}
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Sweep removes expired entries and returns how many were dropped.
func (m *MemoryStore) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, entry := range m.entries {
		if entry.expired(now) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// StartSweeper schedules Sweep every interval. Stop the returned scheduler on shutdown.
func (m *MemoryStore) StartSweeper(interval time.Duration, logger *logging.Logger) (*gocron.Scheduler, error) {
	if logger == nil {
		logger = logging.Default()
	}
	scheduler := gocron.NewScheduler(time.UTC)
	_, err := scheduler.Every(interval).Do(func() {
		if removed := m.Sweep(); removed > 0 {
			logger.Debug("store sweep removed expired entries", "removed", removed)
		}
	})
	if err != nil {
		return nil, err
	}
	scheduler.StartAsync()
	return scheduler, nil
}
