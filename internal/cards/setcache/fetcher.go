// Package setcache caches Scryfall set information.
package setcache

import (
	"context"
	"strings"

	"github.com/ramonehamilton/commander-vault/internal/cache"
	"github.com/ramonehamilton/commander-vault/internal/cards/scryfall"
)

// SetClient fetches sets from Scryfall.
type SetClient interface {
	GetSet(ctx context.Context, code string) (*scryfall.Set, error)
}

// Fetcher serves set information from the sets cache namespace, falling
// back to Scryfall on a miss.
type Fetcher struct {
	client SetClient
	sets   *cache.Bucket[scryfall.Set]
}

// NewFetcher creates a set fetcher.
func NewFetcher(client SetClient, store *cache.Store) *Fetcher {
	return &Fetcher{
		client: client,
		sets:   cache.NewBucket[scryfall.Set](store, cache.NamespaceSets),
	}
}

// GetSet returns the set with the given code.
func (f *Fetcher) GetSet(ctx context.Context, code string) (*scryfall.Set, error) {
	key := strings.ToLower(strings.TrimSpace(code))
	if set, ok := f.sets.Get(key); ok {
		return &set, nil
	}

	set, err := f.client.GetSet(ctx, key)
	if err != nil {
		return nil, err
	}
	_ = f.sets.Put(key, *set)
	return set, nil
}

// SetNames resolves display names for the given set codes. Codes that
// cannot be resolved map to their upper-cased code.
func (f *Fetcher) SetNames(ctx context.Context, codes []string) map[string]string {
	names := make(map[string]string, len(codes))
	for _, code := range codes {
		if _, done := names[code]; done || code == "" {
			continue
		}
		if set, err := f.GetSet(ctx, code); err == nil {
			names[code] = set.Name
		} else {
			names[code] = strings.ToUpper(code)
		}
	}
	return names
}
