package store

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Memory is a mutex-guarded in-memory Store. Used by tests and the
// authoring-time balance CLI; production runs the sqlite-backed store.
type Memory struct {
	mu     sync.Mutex
	kv     map[string]memoryValue
	hashes map[string]map[string]string
	zsets  map[string]map[string]float64

	// Injectable clock for TTL tests.
	now func() time.Time
}

type memoryValue struct {
	value     string
	expiresAt time.Time // zero = no expiry
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		kv:     make(map[string]memoryValue),
		hashes: make(map[string]map[string]string),
		zsets:  make(map[string]map[string]float64),
		now:    time.Now,
	}
}

// SetClock overrides the TTL clock. Test hook.
func (m *Memory) SetClock(now func() time.Time) { m.now = now }

// ─── Plain Keys ─────────────────────────────────────────────────────────────

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.liveValue(key)
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kv[key] = memoryValue{value: value, expiresAt: m.expiry(ttl)}
	return nil
}

func (m *Memory) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.liveValue(key); ok {
		return false, nil
	}
	m.kv[key] = memoryValue{value: value, expiresAt: m.expiry(ttl)}
	return true, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.kv, key)
	delete(m.hashes, key)
	delete(m.zsets, key)
	return nil
}

func (m *Memory) IncrBy(_ context.Context, key string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := int64(0)
	if v, ok := m.liveValue(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, err
		}
		cur = n
	}
	cur += delta
	m.kv[key] = memoryValue{value: strconv.FormatInt(cur, 10)}
	return cur, nil
}

// ─── Hashes ─────────────────────────────────────────────────────────────────

func (m *Memory) HashSet(_ context.Context, key, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	h[field] = value
	return nil
}

func (m *Memory) HashGet(_ context.Context, key, field string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.hashes[key][field]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) HashGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.hashes[key]))
	for f, v := range m.hashes[key] {
		out[f] = v
	}
	return out, nil
}

func (m *Memory) HashIncrBy(_ context.Context, key, field string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	cur := int64(0)
	if v, ok := h[field]; ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, err
		}
		cur = n
	}
	cur += delta
	h[field] = strconv.FormatInt(cur, 10)
	return cur, nil
}

// ─── Sorted Sets ────────────────────────────────────────────────────────────

func (m *Memory) SortedSetAdd(_ context.Context, key, member string, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	z, ok := m.zsets[key]
	if !ok {
		z = make(map[string]float64)
		m.zsets[key] = z
	}
	z[member] = score
	return nil
}

func (m *Memory) SortedSetScore(_ context.Context, key, member string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	score, ok := m.zsets[key][member]
	if !ok {
		return 0, ErrNotFound
	}
	return score, nil
}

func (m *Memory) SortedSetRank(_ context.Context, key, member string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	z := m.zsets[key]
	score, ok := z[member]
	if !ok {
		return 0, ErrNotFound
	}
	var rank int64
	for other, s := range z {
		if other == member {
			continue
		}
		// Descending rank; ties broken lexically for determinism.
		if s > score || (s == score && other < member) {
			rank++
		}
	}
	return rank, nil
}

func (m *Memory) SortedSetCard(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.zsets[key])), nil
}

func (m *Memory) SortedSetRemove(_ context.Context, key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.zsets[key], member)
	return nil
}

// ─── Internal ───────────────────────────────────────────────────────────────

// liveValue returns the value at key, dropping it when expired.
// Caller holds the lock.
func (m *Memory) liveValue(key string) (string, bool) {
	v, ok := m.kv[key]
	if !ok {
		return "", false
	}
	if !v.expiresAt.IsZero() && m.now().After(v.expiresAt) {
		delete(m.kv, key)
		return "", false
	}
	return v.value, true
}

func (m *Memory) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}
