package cache

import (
	"errors"
	"sort"
	"sync"
)

// ErrQuotaExceeded is returned by a medium that has no room for a write.
var ErrQuotaExceeded = errors.New("cache quota exceeded")

// Medium is raw byte storage partitioned by namespace.
type Medium interface {
	// Get returns the stored value and whether it exists.
	Get(ns Namespace, key string) ([]byte, bool, error)
	Put(ns Namespace, key string, value []byte) error
	Delete(ns Namespace, key string) error
	Keys(ns Namespace) ([]string, error)
	Clear(ns Namespace) error
}

// MemoryMedium keeps entries in process memory. A positive quota bounds
// the total bytes of keys and values across namespaces.
type MemoryMedium struct {
	mu    sync.RWMutex
	data  map[Namespace]map[string][]byte
	quota int64
	used  int64
}

// NewMemoryMedium creates a memory medium. A quota of zero or less is
// unlimited.
func NewMemoryMedium(quota int64) *MemoryMedium {
	return &MemoryMedium{
		data:  make(map[Namespace]map[string][]byte),
		quota: quota,
	}
}

func (m *MemoryMedium) Get(ns Namespace, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[ns][key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryMedium) Put(ns Namespace, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket := m.data[ns]
	if bucket == nil {
		bucket = make(map[string][]byte)
		m.data[ns] = bucket
	}

	delta := int64(len(key) + len(value))
	if old, ok := bucket[key]; ok {
		delta -= int64(len(key) + len(old))
	}
	if m.quota > 0 && m.used+delta > m.quota {
		return ErrQuotaExceeded
	}
	bucket[key] = append([]byte(nil), value...)
	m.used += delta
	return nil
}

func (m *MemoryMedium) Delete(ns Namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.data[ns][key]; ok {
		m.used -= int64(len(key) + len(old))
		delete(m.data[ns], key)
	}
	return nil
}

func (m *MemoryMedium) Keys(ns Namespace) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data[ns]))
	for k := range m.data[ns] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryMedium) Clear(ns Namespace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.data[ns] {
		m.used -= int64(len(k) + len(v))
	}
	delete(m.data, ns)
	return nil
}

// Used returns the bytes currently stored.
func (m *MemoryMedium) Used() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.used
}
