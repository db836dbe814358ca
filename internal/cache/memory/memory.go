// Package memory is an in-process Cache used when redis is unreachable.
// Correctness of anything built on it degrades to single-process scope.
package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/imovelbot/wa-messaging-service/internal/cache"
)

type entry struct {
	val       string
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

type MemoryCache struct {
	mtx  sync.Mutex
	data map[string]entry
	now  func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		data: make(map[string]entry),
		now:  time.Now,
	}
}

func (m *MemoryCache) Set(_ context.Context, key, val string, ttl time.Duration) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.data[key] = entry{val: val, expiresAt: m.expiry(ttl)}
	return nil
}

func (m *MemoryCache) Get(_ context.Context, key string) (string, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	e, ok := m.live(key)
	if !ok {
		return "", cache.ErrNotFound
	}
	return e.val, nil
}

func (m *MemoryCache) GetDel(_ context.Context, key string) (string, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	e, ok := m.live(key)
	if !ok {
		return "", cache.ErrNotFound
	}
	delete(m.data, key)
	return e.val, nil
}

func (m *MemoryCache) SetNX(_ context.Context, key, val string, ttl time.Duration) (bool, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if _, ok := m.live(key); ok {
		return false, nil
	}
	m.data[key] = entry{val: val, expiresAt: m.expiry(ttl)}
	return true, nil
}

func (m *MemoryCache) Incr(_ context.Context, key string) (int64, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	var n int64
	if e, ok := m.live(key); ok {
		parsed, err := strconv.ParseInt(e.val, 10, 64)
		if err != nil {
			return 0, err
		}
		n = parsed
	}
	n++
	exp := time.Time{}
	if e, ok := m.data[key]; ok {
		exp = e.expiresAt
	}
	m.data[key] = entry{val: strconv.FormatInt(n, 10), expiresAt: exp}
	return n, nil
}

func (m *MemoryCache) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	e, ok := m.live(key)
	if !ok {
		return nil
	}
	e.expiresAt = m.expiry(ttl)
	m.data[key] = e
	return nil
}

// live returns the entry for key, lazily dropping it when expired.
// Caller must hold the mutex.
func (m *MemoryCache) live(key string) (entry, bool) {
	e, ok := m.data[key]
	if !ok {
		return entry{}, false
	}
	if e.expired(m.now()) {
		delete(m.data, key)
		return entry{}, false
	}
	return e, true
}

func (m *MemoryCache) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}
