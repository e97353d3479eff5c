// Package bulkdata downloads Scryfall bulk card files into the cache and
// serves name lookups from them.
package bulkdata

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ramonehamilton/commander-vault/internal/cache"
	"github.com/ramonehamilton/commander-vault/internal/cards/scryfall"
	"github.com/ramonehamilton/commander-vault/internal/deck"
)

// DefaultType is the bulk file with one entry per oracle card.
const DefaultType = "oracle_cards"

// Source is the subset of the Scryfall client the loader needs.
type Source interface {
	GetBulkData(ctx context.Context) (*scryfall.BulkDataList, error)
	DownloadBulk(ctx context.Context, downloadURI string, fn func(*scryfall.Card) error) (int, error)
}

// Dataset is the cached form of a bulk file.
type Dataset struct {
	Type      string      `json:"type"`
	UpdatedAt time.Time   `json:"updatedAt"`
	Cards     []deck.Card `json:"cards"`
}

// Loader refreshes bulk datasets and keeps an in-memory name index of the
// most recently loaded one.
type Loader struct {
	source Source
	store  *cache.Store
	logger *slog.Logger

	mu    sync.RWMutex
	index map[string]deck.Card
}

// NewLoader creates a loader. A nil logger uses slog.Default().
func NewLoader(source Source, store *cache.Store, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{source: source, store: store, logger: logger}
}

// Refresh downloads the bulk file of the given type, caches it and
// rebuilds the index.
func (l *Loader) Refresh(ctx context.Context, bulkType string) (*Dataset, error) {
	if bulkType == "" {
		bulkType = DefaultType
	}
	if l.source == nil {
		return nil, fmt.Errorf("no bulk data source configured")
	}

	list, err := l.source.GetBulkData(ctx)
	if err != nil {
		return nil, err
	}
	file, ok := list.Find(bulkType)
	if !ok {
		return nil, fmt.Errorf("bulk data type %q not offered", bulkType)
	}

	start := time.Now()
	ds := &Dataset{Type: bulkType, UpdatedAt: file.UpdatedAt, Cards: make([]deck.Card, 0, 32000)}
	n, err := l.source.DownloadBulk(ctx, file.DownloadURI, func(c *scryfall.Card) error {
		ds.Cards = append(ds.Cards, c.ToDeckCard())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", bulkType, err)
	}
	l.logger.Info("Downloaded bulk data", "type", bulkType, "cards", n, "duration", time.Since(start).Round(time.Millisecond))

	if err := l.store.PutBulk(bulkType, ds); err != nil {
		// The index still works for this process.
		l.logger.Warn("Bulk data not cached", "type", bulkType, "error", err)
	}
	l.setIndex(ds)
	return ds, nil
}

// Load reads a cached dataset and builds the index from it. It reports
// false when no fresh dataset is cached.
func (l *Loader) Load(bulkType string) (*Dataset, bool) {
	if bulkType == "" {
		bulkType = DefaultType
	}
	var ds Dataset
	if !l.store.GetBulk(bulkType, &ds) {
		return nil, false
	}
	l.setIndex(&ds)
	return &ds, true
}

// EnsureLoaded loads the cached dataset, refreshing it when missing or
// stale.
func (l *Loader) EnsureLoaded(ctx context.Context, bulkType string) (*Dataset, error) {
	if ds, ok := l.Load(bulkType); ok {
		return ds, nil
	}
	return l.Refresh(ctx, bulkType)
}

func (l *Loader) setIndex(ds *Dataset) {
	index := make(map[string]deck.Card, len(ds.Cards))
	for _, c := range ds.Cards {
		key := strings.ToLower(c.Name)
		if _, dup := index[key]; !dup {
			index[key] = c
		}
		// Also index the front face of split and double-faced names.
		if front, _, ok := strings.Cut(c.Name, " // "); ok {
			if _, dup := index[strings.ToLower(front)]; !dup {
				index[strings.ToLower(front)] = c
			}
		}
	}
	l.mu.Lock()
	l.index = index
	l.mu.Unlock()
}

// Lookup finds a card by case-insensitive name in the loaded dataset.
func (l *Loader) Lookup(name string) (deck.Card, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.index[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return deck.Card{}, false
	}
	return c.Clone(), true
}

// Size returns the number of indexed names.
func (l *Loader) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.index)
}
