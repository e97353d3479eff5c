package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

// BoltMedium stores entries in a bbolt file, one bucket per namespace.
// A positive quota bounds the total bytes of keys and values.
type BoltMedium struct {
	db    *bbolt.DB
	quota int64

	mu   sync.Mutex
	used int64
}

// OpenBolt opens (creating if needed) a bbolt cache file.
func OpenBolt(path string, quota int64) (*BoltMedium, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	m := &BoltMedium{db: db, quota: quota}
	if err := m.init(); err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

// init creates the namespace buckets and measures existing content.
func (m *BoltMedium) init() error {
	return m.db.Update(func(tx *bbolt.Tx) error {
		for _, ns := range Namespaces {
			if _, err := tx.CreateBucketIfNotExists([]byte(ns)); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", ns, err)
			}
		}
		return tx.ForEach(func(_ []byte, b *bbolt.Bucket) error {
			return b.ForEach(func(k, v []byte) error {
				m.used += int64(len(k) + len(v))
				return nil
			})
		})
	})
}

// Close closes the underlying file.
func (m *BoltMedium) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}

func (m *BoltMedium) Get(ns Namespace, key string) ([]byte, bool, error) {
	var value []byte
	err := m.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(ns))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			// bbolt values are only valid inside the transaction.
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s/%s: %w", ns, key, err)
	}
	return value, value != nil, nil
}

func (m *BoltMedium) Put(ns Namespace, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var delta int64
	err := m.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(ns))
		if err != nil {
			return err
		}
		delta = int64(len(key) + len(value))
		if old := b.Get([]byte(key)); old != nil {
			delta -= int64(len(key) + len(old))
		}
		if m.quota > 0 && m.used+delta > m.quota {
			return ErrQuotaExceeded
		}
		return b.Put([]byte(key), value)
	})
	if err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			return err
		}
		return fmt.Errorf("failed to write %s/%s: %w", ns, key, err)
	}
	m.used += delta
	return nil
}

func (m *BoltMedium) Delete(ns Namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var freed int64
	err := m.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(ns))
		if b == nil {
			return nil
		}
		if old := b.Get([]byte(key)); old != nil {
			freed = int64(len(key) + len(old))
		}
		return b.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", ns, key, err)
	}
	m.used -= freed
	return nil
}

func (m *BoltMedium) Keys(ns Namespace) ([]string, error) {
	var keys []string
	err := m.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(ns))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", ns, err)
	}
	return keys, nil
}

func (m *BoltMedium) Clear(ns Namespace) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var freed int64
	err := m.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(ns))
		if b == nil {
			return nil
		}
		if err := b.ForEach(func(k, v []byte) error {
			freed += int64(len(k) + len(v))
			return nil
		}); err != nil {
			return err
		}
		if err := tx.DeleteBucket([]byte(ns)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(ns))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to clear %s: %w", ns, err)
	}
	m.used -= freed
	return nil
}

// Used returns the bytes currently stored.
func (m *BoltMedium) Used() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used
}
