// Package deckdiff compares deck snapshots.
package deckdiff

import (
	"fmt"
	"sort"

	difflib "github.com/pmezard/go-difflib/difflib"

	"github.com/ramonehamilton/commander-vault/internal/deck"
	"github.com/ramonehamilton/commander-vault/internal/decklist"
	"github.com/ramonehamilton/commander-vault/internal/versioning"
)

// Change is a single card whose quantity differs between two snapshots.
type Change struct {
	Name        string        `json:"name"`
	Category    deck.Category `json:"category"`
	OldQuantity int           `json:"oldQuantity"`
	NewQuantity int           `json:"newQuantity"`
	Delta       int           `json:"delta"`
}

// Result is the change set between two snapshots.
type Result struct {
	Added    []Change `json:"added"`
	Removed  []Change `json:"removed"`
	Modified []Change `json:"modified"`
	// TotalChanges is the sum of absolute quantity deltas.
	TotalChanges int `json:"totalChanges"`
}

// Empty reports whether the snapshots hold identical quantities.
func (r *Result) Empty() bool {
	return r.TotalChanges == 0
}

type tally struct {
	quantity int
	category deck.Category
}

// flatten keys a deck by card name. A name appearing in several categories
// sums to one entry attributed to the first category in display order.
func flatten(d *deck.Deck) map[string]tally {
	out := make(map[string]tally)
	if d == nil {
		return out
	}
	for _, cat := range d.Cards.Categories() {
		for _, c := range d.Cards[cat] {
			if c.Quantity <= 0 {
				continue
			}
			t, ok := out[c.Name]
			if !ok {
				t.category = cat
			}
			t.quantity += c.Quantity
			out[c.Name] = t
		}
	}
	return out
}

// Diff computes what changed from old to new. Only quantities matter:
// a card that changed printing but kept its quantity is not a change.
// Nil snapshots are treated as empty.
func Diff(old, new *deck.Deck) *Result {
	before := flatten(old)
	after := flatten(new)

	result := &Result{
		Added:    []Change{},
		Removed:  []Change{},
		Modified: []Change{},
	}

	for name, a := range after {
		b, existed := before[name]
		switch {
		case !existed:
			result.Added = append(result.Added, Change{
				Name: name, Category: a.category,
				NewQuantity: a.quantity, Delta: a.quantity,
			})
		case a.quantity != b.quantity:
			result.Modified = append(result.Modified, Change{
				Name: name, Category: a.category,
				OldQuantity: b.quantity, NewQuantity: a.quantity,
				Delta: a.quantity - b.quantity,
			})
		}
	}
	for name, b := range before {
		if _, kept := after[name]; kept {
			continue
		}
		result.Removed = append(result.Removed, Change{
			Name: name, Category: b.category,
			OldQuantity: b.quantity, Delta: -b.quantity,
		})
	}

	for _, bucket := range [][]Change{result.Added, result.Removed, result.Modified} {
		sort.Slice(bucket, func(i, j int) bool { return bucket[i].Name < bucket[j].Name })
		for _, c := range bucket {
			result.TotalChanges += abs(c.Delta)
		}
	}
	return result
}

// SuggestVersion proposes the version to record for result on top of
// current. A never-saved deck gets the scheme's initial version.
func SuggestVersion(engine *versioning.Engine, current string, scheme versioning.Scheme, result *Result) (string, error) {
	if current == "" || current == versioning.Unsaved {
		return engine.Initial(scheme)
	}
	changes := 0
	if result != nil {
		changes = result.TotalChanges
	}
	return engine.Next(current, scheme, changes)
}

// Unified renders a line-oriented unified diff of the two snapshots'
// decklist exports. Identical snapshots produce an empty string.
func Unified(oldLabel, newLabel string, old, new *deck.Deck) (string, error) {
	a, err := exportText(old)
	if err != nil {
		return "", err
	}
	b, err := exportText(new)
	if err != nil {
		return "", err
	}

	u := difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: oldLabel,
		ToFile:   newLabel,
		Context:  3,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil {
		return "", fmt.Errorf("unified diff: %w", err)
	}
	return s, nil
}

func exportText(d *deck.Deck) (string, error) {
	if d == nil {
		return "", nil
	}
	return decklist.Export(d.Cards, &decklist.ExportOptions{
		Format:         decklist.FormatDecklist,
		IncludeHeaders: true,
	})
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
