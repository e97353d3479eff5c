package deck

import (
	"context"
	"sort"
)

// Metadata is card data populated by enrichment from the card database.
type Metadata struct {
	ScryfallID    string   `json:"scryfallId,omitempty"`
	OracleID      string   `json:"oracleId,omitempty"`
	ManaCost      string   `json:"manaCost,omitempty"`
	CMC           float64  `json:"cmc,omitempty"`
	TypeLine      string   `json:"typeLine,omitempty"`
	Types         []string `json:"types,omitempty"`
	OracleText    string   `json:"oracleText,omitempty"`
	ColorIdentity []string `json:"colorIdentity,omitempty"`
	PriceUSD      string   `json:"priceUsd,omitempty"`
	ImageURI      string   `json:"imageUri,omitempty"`
}

// Card is one deck entry. A quantity of zero means the card is absent.
type Card struct {
	Name            string    `json:"name"`
	Quantity        int       `json:"quantity"`
	SetCode         string    `json:"set,omitempty"`
	CollectorNumber string    `json:"collectorNumber,omitempty"`
	Metadata        *Metadata `json:"metadata,omitempty"`
}

// CardLookup resolves a card name to a fully populated card record.
type CardLookup interface {
	GetCardByName(ctx context.Context, name string) (*Card, error)
}

// HasCompleteMetadata reports whether the card carries a name, at least one
// type and both stable identifiers.
func (c Card) HasCompleteMetadata() bool {
	if c.Name == "" || c.Metadata == nil {
		return false
	}
	m := c.Metadata
	return len(m.Types) > 0 && m.ScryfallID != "" && m.OracleID != ""
}

// Category returns the category the card belongs to based on its metadata.
// Cards without metadata are filed under CategoryOther.
func (c Card) Category() Category {
	if c.Metadata == nil {
		return CategoryOther
	}
	return Categorize(c.Metadata.TypeLine, c.Metadata.OracleText)
}

// SamePrinting reports whether two entries refer to the same printing.
func (c Card) SamePrinting(other Card) bool {
	return c.Name == other.Name && c.SetCode == other.SetCode && c.CollectorNumber == other.CollectorNumber
}

// Clone returns a deep copy of the card.
func (c Card) Clone() Card {
	if c.Metadata != nil {
		m := *c.Metadata
		m.Types = append([]string(nil), m.Types...)
		m.ColorIdentity = append([]string(nil), m.ColorIdentity...)
		c.Metadata = &m
	}
	return c
}

// Cards holds deck entries keyed by category.
type Cards map[Category][]Card

// Count sums quantities across every category.
func (cs Cards) Count() int {
	total := 0
	for _, list := range cs {
		for _, c := range list {
			if c.Quantity > 0 {
				total += c.Quantity
			}
		}
	}
	return total
}

// Clone returns a deep copy.
func (cs Cards) Clone() Cards {
	out := make(Cards, len(cs))
	for cat, list := range cs {
		copied := make([]Card, len(list))
		for i, c := range list {
			copied[i] = c.Clone()
		}
		out[cat] = copied
	}
	return out
}

// Normalize drops absent entries and empty categories in place.
func (cs Cards) Normalize() {
	for cat, list := range cs {
		kept := list[:0]
		for _, c := range list {
			if c.Quantity > 0 {
				kept = append(kept, c)
			}
		}
		if len(kept) == 0 {
			delete(cs, cat)
			continue
		}
		cs[cat] = kept
	}
}

// Find locates a card by name.
func (cs Cards) Find(name string) (Category, int, bool) {
	for _, cat := range cs.Categories() {
		for i, c := range cs[cat] {
			if c.Name == name {
				return cat, i, true
			}
		}
	}
	return "", -1, false
}

// All returns every entry in display order, sorted by name within a
// category. Unknown categories come last.
func (cs Cards) All() []Card {
	var out []Card
	for _, cat := range cs.Categories() {
		list := append([]Card(nil), cs[cat]...)
		sort.SliceStable(list, func(i, j int) bool { return list[i].Name < list[j].Name })
		out = append(out, list...)
	}
	return out
}

// Categories lists populated categories in display order followed by any
// unknown ones in lexical order.
func (cs Cards) Categories() []Category {
	known := make(map[Category]bool, len(DisplayOrder))
	var out []Category
	for _, cat := range DisplayOrder {
		known[cat] = true
		if _, ok := cs[cat]; ok {
			out = append(out, cat)
		}
	}
	var extra []Category
	for cat := range cs {
		if !known[cat] {
			extra = append(extra, cat)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}
