package cache

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"
)

// ErrWriteDropped reports that a value was not cached. It is informational:
// callers may log it but should carry on.
var ErrWriteDropped = errors.New("cache write dropped")

// Options configures a Store.
type Options struct {
	// TTLs overrides the default expiry per namespace.
	TTLs map[Namespace]time.Duration
	// Clock defaults to time.Now.
	Clock  func() time.Time
	Logger *slog.Logger
}

// Store is the cache front end. It is safe for concurrent use when its
// medium is.
type Store struct {
	medium Medium
	ttls   map[Namespace]time.Duration
	now    func() time.Time
	logger *slog.Logger
}

type envelope struct {
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewStore creates a store over medium. A nil medium behaves as absent
// storage: every read misses and every write is silently skipped.
func NewStore(medium Medium, opts Options) *Store {
	s := &Store{
		medium: medium,
		ttls:   make(map[Namespace]time.Duration, len(Namespaces)),
		now:    opts.Clock,
		logger: opts.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	for _, ns := range Namespaces {
		s.ttls[ns] = ns.DefaultTTL()
	}
	for ns, ttl := range opts.TTLs {
		if ttl > 0 {
			s.ttls[ns] = ttl
		}
	}
	return s
}

// Available reports whether the store has a backing medium.
func (s *Store) Available() bool {
	return s.medium != nil
}

// TTL returns the expiry for a namespace.
func (s *Store) TTL(ns Namespace) time.Duration {
	if ttl, ok := s.ttls[ns]; ok {
		return ttl
	}
	return ns.DefaultTTL()
}

// Get decodes the fresh entry for key into dst and reports whether it was
// found. Stale and malformed entries are deleted and read as misses.
func (s *Store) Get(ns Namespace, key string, dst any) bool {
	env, ok := s.read(ns, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		s.logger.Warn("Discarding undecodable cache entry", "namespace", ns, "key", key, "error", err)
		s.delete(ns, key)
		return false
	}
	return true
}

// Has reports whether a fresh entry exists for key.
func (s *Store) Has(ns Namespace, key string) bool {
	_, ok := s.read(ns, key)
	return ok
}

// read loads a fresh envelope, deleting stale or malformed ones.
func (s *Store) read(ns Namespace, key string) (*envelope, bool) {
	if s.medium == nil {
		return nil, false
	}
	raw, ok, err := s.medium.Get(ns, key)
	if err != nil {
		s.logger.Warn("Cache read failed", "namespace", ns, "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	env, err := s.decode(ns, raw)
	if err != nil {
		s.logger.Warn("Discarding malformed cache entry", "namespace", ns, "key", key, "error", err)
		s.delete(ns, key)
		return nil, false
	}
	if s.isStale(ns, env.Timestamp) {
		s.delete(ns, key)
		return nil, false
	}
	return env, true
}

func (s *Store) isStale(ns Namespace, captured time.Time) bool {
	return s.now().Sub(captured) > s.TTL(ns)
}

// Put caches value under key. A full medium triggers eviction of the
// oldest entries in the namespace and one retry; if that also fails the
// write is dropped and ErrWriteDropped returned.
func (s *Store) Put(ns Namespace, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}
	if s.medium == nil {
		return nil
	}

	raw, err := s.encode(ns, envelope{Timestamp: s.now(), Data: data})
	if err != nil {
		return err
	}

	err = s.medium.Put(ns, key, raw)
	if errors.Is(err, ErrQuotaExceeded) {
		evicted := s.evictOldest(ns)
		s.logger.Info("Cache quota exceeded, evicted oldest entries", "namespace", ns, "evicted", evicted)
		err = s.medium.Put(ns, key, raw)
	}
	if err != nil {
		s.logger.Warn("Dropping cache write", "namespace", ns, "key", key, "bytes", len(raw), "error", err)
		return fmt.Errorf("%w: %s/%s: %v", ErrWriteDropped, ns, key, err)
	}
	return nil
}

// Delete removes an entry.
func (s *Store) Delete(ns Namespace, key string) {
	s.delete(ns, key)
}

func (s *Store) delete(ns Namespace, key string) {
	if s.medium == nil {
		return
	}
	if err := s.medium.Delete(ns, key); err != nil {
		s.logger.Warn("Cache delete failed", "namespace", ns, "key", key, "error", err)
	}
}

// evictOldest removes the oldest quarter (at least one) of the namespace
// by capture time. Malformed entries sort first.
func (s *Store) evictOldest(ns Namespace) int {
	keys, err := s.medium.Keys(ns)
	if err != nil || len(keys) == 0 {
		return 0
	}

	type aged struct {
		key string
		at  time.Time
	}
	entries := make([]aged, 0, len(keys))
	for _, k := range keys {
		e := aged{key: k}
		if raw, ok, err := s.medium.Get(ns, k); err == nil && ok {
			if env, err := s.decode(ns, raw); err == nil {
				e.at = env.Timestamp
			}
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].at.Before(entries[j].at) })

	n := len(entries) / 4
	if n < 1 {
		n = 1
	}
	for _, e := range entries[:n] {
		s.delete(ns, e.key)
	}
	return n
}

// GetBulk reads a bulk dataset.
func (s *Store) GetBulk(dataType string, dst any) bool {
	return s.Get(NamespaceBulk, dataType, dst)
}

// PutBulk stores a bulk dataset. Bulk payloads are stored whole and gzip
// compressed.
func (s *Store) PutBulk(dataType string, value any) error {
	return s.Put(NamespaceBulk, dataType, value)
}

// Clear removes every entry in a namespace.
func (s *Store) Clear(ns Namespace) error {
	if s.medium == nil {
		return nil
	}
	if err := s.medium.Clear(ns); err != nil {
		return fmt.Errorf("failed to clear %s cache: %w", ns, err)
	}
	return nil
}

// ClearAll removes every entry in every namespace.
func (s *Store) ClearAll() error {
	for _, ns := range Namespaces {
		if err := s.Clear(ns); err != nil {
			return err
		}
	}
	return nil
}

// NamespaceStats summarizes one namespace.
type NamespaceStats struct {
	Namespace Namespace     `json:"namespace"`
	Entries   int           `json:"entries"`
	Stale     int           `json:"stale"`
	Bytes     int64         `json:"bytes"`
	TTL       time.Duration `json:"ttl"`
	Oldest    time.Time     `json:"oldest,omitempty"`
}

// Stats reports entry counts and sizes without expiring anything.
func (s *Store) Stats() ([]NamespaceStats, error) {
	stats := make([]NamespaceStats, 0, len(Namespaces))
	for _, ns := range Namespaces {
		st := NamespaceStats{Namespace: ns, TTL: s.TTL(ns)}
		if s.medium != nil {
			keys, err := s.medium.Keys(ns)
			if err != nil {
				return nil, fmt.Errorf("failed to list %s cache: %w", ns, err)
			}
			for _, k := range keys {
				raw, ok, err := s.medium.Get(ns, k)
				if err != nil || !ok {
					continue
				}
				st.Entries++
				st.Bytes += int64(len(k) + len(raw))
				env, err := s.decode(ns, raw)
				if err != nil || s.isStale(ns, env.Timestamp) {
					st.Stale++
					continue
				}
				if st.Oldest.IsZero() || env.Timestamp.Before(st.Oldest) {
					st.Oldest = env.Timestamp
				}
			}
		}
		stats = append(stats, st)
	}
	return stats, nil
}

func (s *Store) encode(ns Namespace, env envelope) ([]byte, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if ns != NamespaceBulk {
		return raw, nil
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(raw); err != nil {
		return nil, fmt.Errorf("failed to compress cache entry: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress cache entry: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Store) decode(ns Namespace, raw []byte) (*envelope, error) {
	if ns == NamespaceBulk {
		gz, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		if raw, err = io.ReadAll(gz); err != nil {
			return nil, err
		}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	if env.Timestamp.IsZero() || len(env.Data) == 0 {
		return nil, errors.New("missing timestamp or data")
	}
	return &env, nil
}
