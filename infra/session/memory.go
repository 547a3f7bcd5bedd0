package session

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Backend stores values for a session. Values expire after their ttl.
type Backend interface {
	Set(ctx context.Context, sessionID, key, value string, ttl time.Duration) error
	// Get reports ok=false when the value is missing or expired
	Get(ctx context.Context, sessionID, key string) (value string, ok bool, err error)
	Delete(ctx context.Context, sessionID, key string) error
	Ping(ctx context.Context) error
}

// memoryEntry is one stored session value
type memoryEntry struct {
	key         string
	value       string
	expiresAt   time.Time
	listElement *list.Element // For LRU tracking
}

// Stats represents backend usage metrics
type Stats struct {
	Size        int     `json:"size"`
	MaxSize     int     `json:"max_size"`
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Evictions   int64   `json:"evictions"`
	TTLExpiries int64   `json:"ttl_expiries"`
	HitRatio    float64 `json:"hit_ratio"`
}

// MemoryBackend keeps sessions in process memory. When full it evicts the least
// recently used value.
type MemoryBackend struct {
	entries     map[string]*memoryEntry
	accessOrder *list.List // most recent at front
	maxSize     int
	mu          sync.Mutex

	hits        int64
	misses      int64
	evictions   int64
	ttlExpiries int64

	now func() time.Time
}

// NewMemoryBackend creates a backend holding at most maxSize values
func NewMemoryBackend(maxSize int) *MemoryBackend {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &MemoryBackend{
		entries:     make(map[string]*memoryEntry),
		accessOrder: list.New(),
		maxSize:     maxSize,
		now:         time.Now,
	}
}

func entryKey(sessionID, key string) string {
	return sessionID + ":" + key
}

// Set stores a value
func (m *MemoryBackend) Set(ctx context.Context, sessionID, key, value string, ttl time.Duration) error {
	k := entryKey(sessionID, key)
	expiresAt := m.now().Add(ttl)

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.entries[k]; ok {
		existing.value = value
		existing.expiresAt = expiresAt
		m.accessOrder.MoveToFront(existing.listElement)
		return nil
	}

	if len(m.entries) >= m.maxSize {
		m.evictLRUUnsafe()
	}

	entry := &memoryEntry{key: k, value: value, expiresAt: expiresAt}
	entry.listElement = m.accessOrder.PushFront(entry)
	m.entries[k] = entry

	return nil
}

// Get returns a value if it exists and has not expired
func (m *MemoryBackend) Get(ctx context.Context, sessionID, key string) (string, bool, error) {
	k := entryKey(sessionID, key)

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[k]
	if !ok {
		m.misses++
		return "", false, nil
	}

	if !m.now().Before(entry.expiresAt) {
		m.deleteEntryUnsafe(entry)
		m.ttlExpiries++
		m.misses++
		return "", false, nil
	}

	m.accessOrder.MoveToFront(entry.listElement)
	m.hits++
	return entry.value, true, nil
}

// Delete removes a value
func (m *MemoryBackend) Delete(ctx context.Context, sessionID, key string) error {
	k := entryKey(sessionID, key)

	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.entries[k]; ok {
		m.deleteEntryUnsafe(entry)
	}
	return nil
}

// Ping always succeeds
func (m *MemoryBackend) Ping(ctx context.Context) error {
	return nil
}

// Size returns the current number of stored values
func (m *MemoryBackend) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.entries)
}

// Stats returns usage statistics
func (m *MemoryBackend) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	totalRequests := m.hits + m.misses
	hitRatio := 0.0
	if totalRequests > 0 {
		hitRatio = float64(m.hits) / float64(totalRequests)
	}

	return Stats{
		Size:        len(m.entries),
		MaxSize:     m.maxSize,
		Hits:        m.hits,
		Misses:      m.misses,
		Evictions:   m.evictions,
		TTLExpiries: m.ttlExpiries,
		HitRatio:    hitRatio,
	}
}

// Cleanup removes expired values
func (m *MemoryBackend) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for _, entry := range m.entries {
		if !now.Before(entry.expiresAt) {
			m.deleteEntryUnsafe(entry)
			m.ttlExpiries++
		}
	}
}

// StartCleanup runs Cleanup every interval until ctx is done
func (m *MemoryBackend) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Cleanup()
			}
		}
	}()
}

// evictLRUUnsafe removes the least recently used value (must be called with lock held)
func (m *MemoryBackend) evictLRUUnsafe() {
	lruElement := m.accessOrder.Back()
	if lruElement == nil {
		return
	}

	m.deleteEntryUnsafe(lruElement.Value.(*memoryEntry))
	m.evictions++
}

// deleteEntryUnsafe removes a value from both map and list (must be called with lock held)
func (m *MemoryBackend) deleteEntryUnsafe(entry *memoryEntry) {
	delete(m.entries, entry.key)
	if entry.listElement != nil {
		m.accessOrder.Remove(entry.listElement)
	}
}
