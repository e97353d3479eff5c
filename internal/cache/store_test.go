package cache

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *testClock {
	return &testClock{t: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)}
}

type cardRecord struct {
	Name string `json:"name"`
	CMC  int    `json:"cmc"`
}

func TestStoreTTL(t *testing.T) {
	clock := newClock()
	medium := NewMemoryMedium(0)
	s := NewStore(medium, Options{Clock: clock.Now})

	require.NoError(t, s.Put(NamespaceCards, "sol ring", cardRecord{Name: "Sol Ring", CMC: 1}))
	require.NoError(t, s.Put(NamespaceImages, "sol ring", "image-bytes"))

	clock.Advance(23 * time.Hour)
	var got cardRecord
	require.True(t, s.Get(NamespaceCards, "sol ring", &got))
	assert.Equal(t, "Sol Ring", got.Name)

	clock.Advance(2 * time.Hour)
	assert.False(t, s.Get(NamespaceCards, "sol ring", &got), "cards expire after 24h")
	_, exists, _ := medium.Get(NamespaceCards, "sol ring")
	assert.False(t, exists, "stale entry is deleted on read")

	var img string
	assert.True(t, s.Get(NamespaceImages, "sol ring", &img), "images live for 7 days")
	clock.Advance(7 * 24 * time.Hour)
	assert.False(t, s.Get(NamespaceImages, "sol ring", &img))
}

func TestStoreTTLOverride(t *testing.T) {
	clock := newClock()
	s := NewStore(NewMemoryMedium(0), Options{
		Clock: clock.Now,
		TTLs:  map[Namespace]time.Duration{NamespaceSets: time.Hour},
	})
	assert.Equal(t, time.Hour, s.TTL(NamespaceSets))
	assert.Equal(t, 24*time.Hour, s.TTL(NamespaceCards))

	require.NoError(t, s.Put(NamespaceSets, "znr", "Zendikar Rising"))
	clock.Advance(61 * time.Minute)
	var name string
	assert.False(t, s.Get(NamespaceSets, "znr", &name))
}

func TestStoreMalformedEntry(t *testing.T) {
	medium := NewMemoryMedium(0)
	s := NewStore(medium, Options{})

	require.NoError(t, medium.Put(NamespaceCards, "broken", []byte("{not json")))
	require.NoError(t, medium.Put(NamespaceCards, "no-timestamp", []byte(`{"data":{"name":"x"}}`)))

	var got cardRecord
	assert.False(t, s.Get(NamespaceCards, "broken", &got))
	assert.False(t, s.Get(NamespaceCards, "no-timestamp", &got))

	keys, err := medium.Keys(NamespaceCards)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestStoreWrongShapeIsMiss(t *testing.T) {
	s := NewStore(NewMemoryMedium(0), Options{})
	require.NoError(t, s.Put(NamespaceCards, "k", "just a string"))

	var got cardRecord
	assert.False(t, s.Get(NamespaceCards, "k", &got))
	assert.False(t, s.Has(NamespaceCards, "k"))
}

func TestStoreWithoutMedium(t *testing.T) {
	s := NewStore(nil, Options{})
	assert.False(t, s.Available())
	assert.NoError(t, s.Put(NamespaceCards, "k", cardRecord{Name: "x"}))

	var got cardRecord
	assert.False(t, s.Get(NamespaceCards, "k", &got))
	assert.NoError(t, s.ClearAll())

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Len(t, stats, len(Namespaces))
}

// entrySize measures the stored size of one entry.
func entrySize(t *testing.T, clock *testClock, key string, value any) int64 {
	t.Helper()
	m := NewMemoryMedium(0)
	require.NoError(t, NewStore(m, Options{Clock: clock.Now}).Put(NamespaceCards, key, value))
	return m.Used()
}

func TestStoreQuotaEviction(t *testing.T) {
	clock := newClock()
	value := cardRecord{Name: strings.Repeat("x", 40), CMC: 3}
	size := entrySize(t, clock, "k0", value)

	medium := NewMemoryMedium(8 * size)
	s := NewStore(medium, Options{Clock: clock.Now})

	for i := 0; i < 8; i++ {
		require.NoError(t, s.Put(NamespaceCards, fmt.Sprintf("k%d", i), value))
		clock.Advance(time.Minute)
	}

	// The ninth write overflows: the two oldest entries go and the write
	// lands on retry.
	require.NoError(t, s.Put(NamespaceCards, "k8", value))

	var got cardRecord
	assert.False(t, s.Get(NamespaceCards, "k0", &got))
	assert.False(t, s.Get(NamespaceCards, "k1", &got))
	for i := 2; i <= 8; i++ {
		assert.True(t, s.Get(NamespaceCards, fmt.Sprintf("k%d", i), &got), "k%d", i)
	}
}

func TestStoreWriteDropped(t *testing.T) {
	clock := newClock()
	medium := NewMemoryMedium(16)
	s := NewStore(medium, Options{Clock: clock.Now})

	err := s.Put(NamespaceCards, "big", cardRecord{Name: strings.Repeat("x", 100)})
	assert.ErrorIs(t, err, ErrWriteDropped)

	var got cardRecord
	assert.False(t, s.Get(NamespaceCards, "big", &got))
}

func TestStoreBulkIsCompressed(t *testing.T) {
	medium := NewMemoryMedium(0)
	s := NewStore(medium, Options{})

	records := make([]cardRecord, 20000)
	for i := range records {
		records[i] = cardRecord{Name: fmt.Sprintf("Card %05d", i), CMC: i % 8}
	}
	require.NoError(t, s.PutBulk("oracle_cards", records))

	raw, ok, err := medium.Get(NamespaceBulk, "oracle_cards")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte{0x1f, 0x8b}, raw[:2], "gzip magic")

	var back []cardRecord
	require.True(t, s.GetBulk("oracle_cards", &back))
	assert.Equal(t, records, back)
}

func TestStoreClearAndStats(t *testing.T) {
	clock := newClock()
	s := NewStore(NewMemoryMedium(0), Options{Clock: clock.Now})

	require.NoError(t, s.Put(NamespaceCards, "a", cardRecord{Name: "a"}))
	require.NoError(t, s.Put(NamespaceCards, "b", cardRecord{Name: "b"}))
	require.NoError(t, s.Put(NamespaceSets, "znr", "Zendikar Rising"))
	clock.Advance(25 * time.Hour)
	require.NoError(t, s.Put(NamespaceCards, "c", cardRecord{Name: "c"}))

	stats, err := s.Stats()
	require.NoError(t, err)
	byNS := map[Namespace]NamespaceStats{}
	for _, st := range stats {
		byNS[st.Namespace] = st
	}
	assert.Equal(t, 3, byNS[NamespaceCards].Entries)
	assert.Equal(t, 2, byNS[NamespaceCards].Stale)
	assert.Equal(t, 1, byNS[NamespaceSets].Entries)
	assert.Equal(t, 0, byNS[NamespaceSets].Stale)

	require.NoError(t, s.Clear(NamespaceCards))
	assert.False(t, s.Has(NamespaceCards, "c"))
	assert.True(t, s.Has(NamespaceSets, "znr"))

	require.NoError(t, s.ClearAll())
	assert.False(t, s.Has(NamespaceSets, "znr"))
}

func TestBucket(t *testing.T) {
	s := NewStore(NewMemoryMedium(0), Options{})
	cards := NewBucket[cardRecord](s, NamespaceCards)

	_, ok := cards.Get("sol ring")
	assert.False(t, ok)

	require.NoError(t, cards.Put("sol ring", cardRecord{Name: "Sol Ring", CMC: 1}))
	got, ok := cards.Get("sol ring")
	require.True(t, ok)
	assert.Equal(t, 1, got.CMC)

	cards.Delete("sol ring")
	_, ok = cards.Get("sol ring")
	assert.False(t, ok)
}

func TestBoltMedium(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "cache.db")
	clock := newClock()

	m, err := OpenBolt(path, 0)
	require.NoError(t, err)
	s := NewStore(m, Options{Clock: clock.Now})

	require.NoError(t, s.Put(NamespaceCards, "sol ring", cardRecord{Name: "Sol Ring"}))
	require.NoError(t, s.PutBulk("default_cards", []cardRecord{{Name: "Forest"}}))
	used := m.Used()
	assert.Positive(t, used)
	require.NoError(t, m.Close())

	// Reopen: entries and usage persist.
	m, err = OpenBolt(path, 0)
	require.NoError(t, err)
	defer m.Close()
	assert.Equal(t, used, m.Used())

	s = NewStore(m, Options{Clock: clock.Now})
	var got cardRecord
	require.True(t, s.Get(NamespaceCards, "sol ring", &got))
	assert.Equal(t, "Sol Ring", got.Name)

	var bulk []cardRecord
	require.True(t, s.GetBulk("default_cards", &bulk))
	assert.Len(t, bulk, 1)

	require.NoError(t, s.Clear(NamespaceCards))
	keys, err := m.Keys(NamespaceCards)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestBoltMediumQuota(t *testing.T) {
	clock := newClock()
	value := cardRecord{Name: strings.Repeat("y", 40)}
	size := entrySize(t, clock, "k0", value)

	m, err := OpenBolt(filepath.Join(t.TempDir(), "cache.db"), 4*size)
	require.NoError(t, err)
	defer m.Close()
	s := NewStore(m, Options{Clock: clock.Now})

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Put(NamespaceCards, fmt.Sprintf("k%d", i), value))
		clock.Advance(time.Minute)
	}
	keys, err := m.Keys(NamespaceCards)
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2", "k3", "k4"}, keys)
	assert.LessOrEqual(t, m.Used(), 4*size)
}

func TestParseNamespace(t *testing.T) {
	ns, err := ParseNamespace(" Cards ")
	require.NoError(t, err)
	assert.Equal(t, NamespaceCards, ns)

	_, err = ParseNamespace("decks")
	assert.Error(t, err)
}
