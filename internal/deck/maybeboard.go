package deck

import (
	"sort"
	"time"
)

// DefaultMaybeboardCategory is used when a card is added without a category.
const DefaultMaybeboardCategory = "Maybe"

// Maybeboard is the sideboard shared by every branch and version of a deck.
// It is not versioned; only its current state is kept.
type Maybeboard struct {
	Categories map[string][]Card `json:"categories"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// NewMaybeboard returns an empty maybeboard.
func NewMaybeboard() *Maybeboard {
	return &Maybeboard{Categories: map[string][]Card{}, UpdatedAt: time.Now()}
}

// Add files card under the named category, merging by name.
func (m *Maybeboard) Add(category string, card Card) {
	if category == "" {
		category = DefaultMaybeboardCategory
	}
	if m.Categories == nil {
		m.Categories = map[string][]Card{}
	}
	if card.Quantity <= 0 {
		card.Quantity = 1
	}
	for i, existing := range m.Categories[category] {
		if existing.Name == card.Name {
			m.Categories[category][i].Quantity += card.Quantity
			m.UpdatedAt = time.Now()
			return
		}
	}
	m.Categories[category] = append(m.Categories[category], card)
	m.UpdatedAt = time.Now()
}

// Remove drops a card from a category, and the category when it empties.
func (m *Maybeboard) Remove(category, name string) bool {
	list := m.Categories[category]
	for i, c := range list {
		if c.Name == name {
			list = append(list[:i], list[i+1:]...)
			if len(list) == 0 {
				delete(m.Categories, category)
			} else {
				m.Categories[category] = list
			}
			m.UpdatedAt = time.Now()
			return true
		}
	}
	return false
}

// CategoryNames lists categories in lexical order.
func (m *Maybeboard) CategoryNames() []string {
	names := make([]string, 0, len(m.Categories))
	for name := range m.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count sums quantities across all categories.
func (m *Maybeboard) Count() int {
	total := 0
	for _, list := range m.Categories {
		for _, c := range list {
			total += c.Quantity
		}
	}
	return total
}
