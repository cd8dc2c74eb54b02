package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// MemoryCache is an in-process LRU cache with per-entry TTL.
type MemoryCache struct {
	mu       sync.RWMutex
	items    map[string]*list.Element
	order    *list.List
	maxItems int
	stopCh   chan struct{}
	stopOnce sync.Once
}

type MemoryOption func(*MemoryCache)

func WithMaxItems(n int) MemoryOption {
	return func(m *MemoryCache) {
		if n > 0 {
			m.maxItems = n
		}
	}
}

func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	m := &MemoryCache{
		items:    make(map[string]*list.Element),
		order:    list.New(),
		maxItems: 1024,
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.cleanupLoop()
	return m
}

func (m *MemoryCache) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.evictExpired()
		case <-m.stopCh:
			return
		}
	}
}

func (m *MemoryCache) evictExpired() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, elem := range m.items {
		entry := elem.Value.(*memoryEntry)
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			m.order.Remove(elem)
			delete(m.items, key)
		}
	}
}

func (m *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	entry := &memoryEntry{key: key, value: data}
	if expiration > 0 {
		entry.expiresAt = time.Now().Add(expiration)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if elem, ok := m.items[key]; ok {
		elem.Value = entry
		m.order.MoveToFront(elem)
		return nil
	}
	m.items[key] = m.order.PushFront(entry)
	for m.order.Len() > m.maxItems {
		oldest := m.order.Back()
		if oldest == nil {
			break
		}
		m.order.Remove(oldest)
		delete(m.items, oldest.Value.(*memoryEntry).key)
	}
	return nil
}

func (m *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	elem, ok := m.items[key]
	if !ok {
		m.mu.Unlock()
		return ErrCacheMiss
	}
	entry := elem.Value.(*memoryEntry)
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		m.order.Remove(elem)
		delete(m.items, key)
		m.mu.Unlock()
		return ErrCacheMiss
	}
	m.order.MoveToFront(elem)
	data := entry.value
	m.mu.Unlock()

	return json.Unmarshal(data, dest)
}

func (m *MemoryCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		if elem, ok := m.items[key]; ok {
			m.order.Remove(elem)
			delete(m.items, key)
		}
	}
	return nil
}

func (m *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	now := time.Now()
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, key := range keys {
		elem, ok := m.items[key]
		if !ok {
			return false, nil
		}
		entry := elem.Value.(*memoryEntry)
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			return false, nil
		}
	}
	return true, nil
}

func (m *MemoryCache) Close() error {
	m.stopOnce.Do(func() { close(m.stopCh) })
	return nil
}
