// stores/memory.go
// ----------------
// Bounded in-memory cache store over an LRU. Entries carry their stored-at
// stamp; an optional TTL turns stale hits into misses (and evicts them).
// Safe for concurrent use by independent sessions.
package stores

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	callbridge "github.com/opengovern/call-bridge"
)

const DefaultMemorySize = 512

type memoryEntry struct {
	resp     *callbridge.RawResponse
	storedAt time.Time
}

type Memory struct {
	cache *lru.Cache[string, memoryEntry]
	ttl   time.Duration
}

// NewMemory builds a store holding at most size entries. ttl of zero means
// entries never expire (eviction is capacity-driven only).
func NewMemory(size int, ttl time.Duration) (*Memory, error) {
	if size <= 0 {
		size = DefaultMemorySize
	}
	cache, err := lru.New[string, memoryEntry](size)
	if err != nil {
		return nil, err
	}
	return &Memory{cache: cache, ttl: ttl}, nil
}

func (m *Memory) Get(key string) (*callbridge.RawResponse, bool, error) {
	entry, ok := m.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	if m.ttl > 0 && time.Since(entry.storedAt) > m.ttl {
		m.cache.Remove(key)
		return nil, false, nil
	}
	return entry.resp.Clone(), true, nil
}

func (m *Memory) Put(key string, resp *callbridge.RawResponse) error {
	m.cache.Add(key, memoryEntry{resp: resp.Clone(), storedAt: time.Now()})
	return nil
}

// Clear drops every entry.
func (m *Memory) Clear() {
	m.cache.Purge()
}

// Len reports the current entry count.
func (m *Memory) Len() int {
	return m.cache.Len()
}
