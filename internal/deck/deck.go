// Package deck models a Commander deck: categorized cards with derived
// count and color identity.
package deck

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ramonehamilton/commander-vault/internal/versioning"
)

const (
	// FormatCommander is the default format tag.
	FormatCommander = "commander"

	// UnsavedVersion marks a deck that has never been committed.
	UnsavedVersion = versioning.Unsaved

	// MainBranch is the branch every deck starts on.
	MainBranch = "main"
)

// ErrCardNotInDeck is returned when a mutation names a card the deck lacks.
var ErrCardNotInDeck = errors.New("card not in deck")

// colorOrder is the canonical color identity order.
var colorOrder = []string{"W", "U", "B", "R", "G"}

// Colorless is the identity reported for decks led by colorless commanders.
const Colorless = "C"

// Deck is a named collection of categorized cards.
type Deck struct {
	Name          string    `json:"name"`
	Format        string    `json:"format"`
	Cards         Cards     `json:"cards"`
	Count         int       `json:"count"`
	ColorIdentity []string  `json:"colorIdentity"`
	Branch        string    `json:"branch"`
	Version       string    `json:"version"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// New creates an empty, never-saved deck on the main branch.
func New(name, format string) *Deck {
	if format == "" {
		format = FormatCommander
	}
	now := time.Now()
	return &Deck{
		Name:          name,
		Format:        format,
		Cards:         Cards{},
		ColorIdentity: []string{},
		Branch:        MainBranch,
		Version:       UnsavedVersion,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// NewCommanderDeck creates a deck seeded with the named commander, resolved
// through lookup.
func NewCommanderDeck(ctx context.Context, name, format, commander string, lookup CardLookup) (*Deck, error) {
	if lookup == nil {
		return nil, fmt.Errorf("card lookup is required")
	}
	card, err := lookup.GetCardByName(ctx, commander)
	if err != nil {
		return nil, fmt.Errorf("look up commander %q: %w", commander, err)
	}

	d := New(name, format)
	seeded := card.Clone()
	seeded.Quantity = 1
	d.AddCardTo(CategoryCommander, seeded)
	return d, nil
}

// FromCards reconstructs a deck around an existing card map.
func FromCards(name, format string, cards Cards) *Deck {
	d := New(name, format)
	if cards != nil {
		d.Cards = cards
	}
	d.Recalculate()
	return d
}

// AddCard adds card to the deck. An existing entry with the same name gains
// the quantity; otherwise the card is filed by its own category.
func (d *Deck) AddCard(card Card) Category {
	if cat, i, ok := d.Cards.Find(card.Name); ok {
		d.Cards[cat][i].Quantity += card.Quantity
		d.touch()
		return cat
	}
	cat := card.Category()
	d.AddCardTo(cat, card)
	return cat
}

// AddCardTo adds card under an explicit category, merging by name within
// that category.
func (d *Deck) AddCardTo(cat Category, card Card) {
	if card.Quantity <= 0 {
		card.Quantity = 1
	}
	if d.Cards == nil {
		d.Cards = Cards{}
	}
	for i, existing := range d.Cards[cat] {
		if existing.Name == card.Name {
			d.Cards[cat][i].Quantity += card.Quantity
			d.touch()
			return
		}
	}
	d.Cards[cat] = append(d.Cards[cat], card)
	d.touch()
}

// RemoveCard lowers a card's quantity by qty, dropping it at zero.
func (d *Deck) RemoveCard(name string, qty int) error {
	cat, i, ok := d.Cards.Find(name)
	if !ok {
		return fmt.Errorf("remove %q: %w", name, ErrCardNotInDeck)
	}
	d.Cards[cat][i].Quantity -= qty
	d.Cards.Normalize()
	d.touch()
	return nil
}

// SetQuantity overwrites a card's quantity. Zero removes it.
func (d *Deck) SetQuantity(name string, qty int) error {
	cat, i, ok := d.Cards.Find(name)
	if !ok {
		return fmt.Errorf("set quantity of %q: %w", name, ErrCardNotInDeck)
	}
	d.Cards[cat][i].Quantity = qty
	d.Cards.Normalize()
	d.touch()
	return nil
}

// MoveCard moves a card into another category.
func (d *Deck) MoveCard(name string, to Category) error {
	cat, i, ok := d.Cards.Find(name)
	if !ok {
		return fmt.Errorf("move %q: %w", name, ErrCardNotInDeck)
	}
	if cat == to {
		return nil
	}
	card := d.Cards[cat][i]
	d.Cards[cat] = append(d.Cards[cat][:i], d.Cards[cat][i+1:]...)
	d.Cards.Normalize()
	d.AddCardTo(to, card)
	return nil
}

// Commanders returns the cards in the commander category.
func (d *Deck) Commanders() []Card {
	return d.Cards[CategoryCommander]
}

// Recalculate refreshes the derived count and color identity.
func (d *Deck) Recalculate() {
	d.Count = d.Cards.Count()
	d.ColorIdentity = ColorIdentity(d.Cards)
}

// Clone returns a deep copy of the deck.
func (d *Deck) Clone() *Deck {
	out := *d
	out.Cards = d.Cards.Clone()
	out.ColorIdentity = append([]string{}, d.ColorIdentity...)
	return &out
}

func (d *Deck) touch() {
	d.Recalculate()
	d.UpdatedAt = time.Now()
}

// ColorIdentity is the union of the commanders' color identities in WUBRG
// order. Colorless commanders yield ["C"]; no commander, or commanders
// without metadata, yield an empty identity.
func ColorIdentity(cards Cards) []string {
	commanders := cards[CategoryCommander]
	if len(commanders) == 0 {
		return []string{}
	}

	seen := make(map[string]bool)
	known := false
	for _, c := range commanders {
		if c.Metadata == nil {
			continue
		}
		known = true
		for _, color := range c.Metadata.ColorIdentity {
			seen[color] = true
		}
	}

	identity := []string{}
	for _, color := range colorOrder {
		if seen[color] {
			identity = append(identity, color)
		}
	}
	if len(identity) == 0 && known {
		return []string{Colorless}
	}
	return identity
}
