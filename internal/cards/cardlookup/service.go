// Package cardlookup resolves card names to fully populated deck cards,
// consulting the cache, then a loaded bulk dataset, then the Scryfall API.
package cardlookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ramonehamilton/commander-vault/internal/cache"
	"github.com/ramonehamilton/commander-vault/internal/cards/scryfall"
	"github.com/ramonehamilton/commander-vault/internal/deck"
)

// ErrNotFound is returned when no source knows the card.
var ErrNotFound = errors.New("card not found")

// Client is the subset of the Scryfall client used for lookups.
type Client interface {
	GetCard(ctx context.Context, id string) (*scryfall.Card, error)
	GetCardByName(ctx context.Context, name string) (*scryfall.Card, error)
}

// Index is an in-memory name index, such as a loaded bulk dataset.
type Index interface {
	Lookup(name string) (deck.Card, bool)
}

// Options configures a Service. Every field is optional.
type Options struct {
	Client Client
	Store  *cache.Store
	Index  Index
	Logger *slog.Logger
}

// Service implements deck.CardLookup.
type Service struct {
	client Client
	cards  *cache.Bucket[deck.Card]
	index  Index
	logger *slog.Logger
}

var _ deck.CardLookup = (*Service)(nil)

// New creates a lookup service.
func New(opts Options) *Service {
	store := opts.Store
	if store == nil {
		store = cache.NewStore(nil, cache.Options{Logger: opts.Logger})
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client: opts.Client,
		cards:  cache.NewBucket[deck.Card](store, cache.NamespaceCards),
		index:  opts.Index,
		logger: logger,
	}
}

func nameKey(name string) string {
	return "name:" + strings.ToLower(strings.TrimSpace(name))
}

func idKey(id string) string {
	return "id:" + id
}

// GetCardByName resolves a card by exact (case-insensitive) name.
func (s *Service) GetCardByName(ctx context.Context, name string) (*deck.Card, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: empty name", ErrNotFound)
	}
	if c, ok := s.cards.Get(nameKey(name)); ok {
		return &c, nil
	}

	if s.index != nil {
		if c, ok := s.index.Lookup(name); ok {
			s.remember(name, c)
			return &c, nil
		}
	}

	if s.client == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	sc, err := s.client.GetCardByName(ctx, name)
	if err != nil {
		if scryfall.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, err
	}
	c := sc.ToDeckCard()
	s.remember(name, c)
	return &c, nil
}

// GetCardByID resolves a card by Scryfall ID.
func (s *Service) GetCardByID(ctx context.Context, id string) (*deck.Card, error) {
	if c, ok := s.cards.Get(idKey(id)); ok {
		return &c, nil
	}
	if s.client == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	sc, err := s.client.GetCard(ctx, id)
	if err != nil {
		if scryfall.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	c := sc.ToDeckCard()
	s.remember(c.Name, c)
	return &c, nil
}

// remember caches c under the queried name, its canonical name and its ID.
// Cache failures are logged by the store and otherwise ignored.
func (s *Service) remember(query string, c deck.Card) {
	c.Quantity = 1
	if err := s.cards.Put(nameKey(c.Name), c); err != nil {
		s.logger.Debug("Card not cached", "card", c.Name, "error", err)
		return
	}
	if nameKey(query) != nameKey(c.Name) {
		_ = s.cards.Put(nameKey(query), c)
	}
	if c.Metadata != nil && c.Metadata.ScryfallID != "" {
		_ = s.cards.Put(idKey(c.Metadata.ScryfallID), c)
	}
}
