package cache

import (
	"context"
	"sync"
	"time"

	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
)

type memEntry struct {
	rec      *entity.InvoiceRecord
	storedAt time.Time
}

// Memory is an in-process cache with a TTL and an entry cap. When full, the
// oldest entry is evicted.
type Memory struct {
	mu         sync.RWMutex
	entries    map[string]memEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

func NewMemory(ttl time.Duration, maxEntries int) *Memory {
	return &Memory{
		entries:    make(map[string]memEntry),
		ttl:        ttlOrDefault(ttl),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// WithClock swaps the time source; used by tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Get(_ context.Context, fp string) (*entity.InvoiceRecord, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[fp]
	m.mu.RUnlock()
	if !ok || m.expired(e) {
		return nil, false, nil
	}
	return e.rec.Clone(), true, nil
}

func (m *Memory) SetIfAbsent(_ context.Context, fp string, rec *entity.InvoiceRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[fp]; ok && !m.expired(e) {
		return false, nil
	}
	if m.maxEntries > 0 && len(m.entries) >= m.maxEntries {
		m.evictLocked()
	}
	m.entries[fp] = memEntry{rec: rec.Clone(), storedAt: m.now()}
	return true, nil
}

// Len reports the number of live entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.entries {
		if !m.expired(e) {
			n++
		}
	}
	return n
}

func (m *Memory) Close() error { return nil }

func (m *Memory) expired(e memEntry) bool {
	return m.now().Sub(e.storedAt) >= m.ttl
}

// evictLocked drops expired entries, or the oldest one if none expired.
func (m *Memory) evictLocked() {
	var oldestKey string
	var oldest time.Time
	removed := false
	for k, e := range m.entries {
		if m.expired(e) {
			delete(m.entries, k)
			removed = true
			continue
		}
		if oldestKey == "" || e.storedAt.Before(oldest) {
			oldestKey, oldest = k, e.storedAt
		}
	}
	if !removed && oldestKey != "" {
		delete(m.entries, oldestKey)
	}
}
