// Package decklist reads and writes plaintext decklists: the legacy
// version-file format, clipboard exports and third-party site dumps.
package decklist

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ramonehamilton/commander-vault/internal/deck"
)

// Entry is one parsed decklist line.
type Entry struct {
	Quantity        int
	Name            string
	SetCode         string
	CollectorNumber string
	// Category is set when the line appeared under a recognized section
	// header; empty otherwise.
	Category deck.Category
	Line     int
}

// ParsedList is the result of parsing a decklist.
type ParsedList struct {
	Entries  []Entry
	Warnings []string
}

var (
	// "4 Lightning Bolt", "4x Lightning Bolt", "1X Sol Ring (C21) 263"
	quantityPattern = regexp.MustCompile(`^(\d+)\s*[xX]?\s+(.+)$`)

	// Trailing "(SET) 123" printing, with the collector number optional.
	printingPattern = regexp.MustCompile(`^(.+?)\s+\(([A-Za-z0-9]{2,6})\)(?:\s+([A-Za-z0-9★\-]+))?$`)

	// "*F*" / "*E*" finish markers and "[Tag]" / "[Tag{top}]" annotations.
	finishPattern = regexp.MustCompile(`\s*\*[A-Za-z]+\*`)
	tagPattern    = regexp.MustCompile(`\s*\[[^\]]*\]`)

	// "Commander", "Commander:", "Commander (1)", "// Creatures"
	headerPattern = regexp.MustCompile(`^(?://\s*)?([A-Za-z][A-Za-z ]*?)\s*(?:\(\d+\))?:?$`)
)

// Parse reads decklist text. Unparseable lines become warnings rather than
// errors; an input with no cards at all is an error.
func Parse(input string) (*ParsedList, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("empty decklist")
	}

	result := &ParsedList{
		Entries:  make([]Entry, 0),
		Warnings: make([]string, 0),
	}

	var section deck.Category
	for i, raw := range strings.Split(input, "\n") {
		line := strings.TrimSpace(strings.TrimRight(raw, "\r"))
		if line == "" {
			continue
		}

		if cat, ok, isHeader := parseHeader(line); isHeader {
			if ok {
				section = cat
			} else {
				section = ""
			}
			continue
		}

		entry, ok := parseCardLine(line)
		if !ok {
			result.Warnings = append(result.Warnings, fmt.Sprintf("Line %d: Could not parse '%s'", i+1, line))
			continue
		}
		entry.Category = section
		entry.Line = i + 1
		result.Entries = append(result.Entries, entry)
	}

	if len(result.Entries) == 0 {
		return result, fmt.Errorf("no cards found in decklist")
	}
	return result, nil
}

// parseHeader recognizes section header lines. It reports the category for
// known section names and isHeader for any header-shaped line ("Deck",
// "Sideboard", comment lines).
func parseHeader(line string) (cat deck.Category, ok bool, isHeader bool) {
	if quantityPattern.MatchString(line) {
		return "", false, false
	}
	if strings.HasPrefix(line, "#") {
		return "", false, true
	}
	if strings.HasPrefix(line, "//") {
		name := strings.TrimSpace(strings.TrimPrefix(line, "//"))
		name = strings.TrimSuffix(name, ":")
		if i := strings.Index(name, "("); i > 0 {
			name = strings.TrimSpace(name[:i])
		}
		cat, ok = deck.ParseCategory(name)
		return cat, ok, true
	}

	m := headerPattern.FindStringSubmatch(line)
	if m == nil {
		return "", false, false
	}
	name := strings.TrimSpace(m[1])
	if cat, ok := deck.ParseCategory(name); ok {
		return cat, true, true
	}
	switch strings.ToLower(name) {
	case "deck", "main", "mainboard", "sideboard", "maybeboard", "considering":
		return "", false, true
	}
	return "", false, false
}

func parseCardLine(line string) (Entry, bool) {
	m := quantityPattern.FindStringSubmatch(line)
	if m == nil {
		return Entry{}, false
	}
	qty, err := strconv.Atoi(m[1])
	if err != nil {
		return Entry{}, false
	}

	rest := finishPattern.ReplaceAllString(m[2], "")
	rest = strings.TrimSpace(tagPattern.ReplaceAllString(rest, ""))
	if rest == "" {
		return Entry{}, false
	}

	entry := Entry{Quantity: qty, Name: rest}
	if p := printingPattern.FindStringSubmatch(rest); p != nil {
		entry.Name = strings.TrimSpace(p[1])
		entry.SetCode = strings.ToUpper(p[2])
		entry.CollectorNumber = p[3]
	}
	return entry, true
}

// ToCards converts parsed entries to a categorized card map. Entries without
// a section land in fallback; duplicates within a category merge.
func (p *ParsedList) ToCards(fallback deck.Category) deck.Cards {
	cards := deck.Cards{}
	for _, e := range p.Entries {
		cat := e.Category
		if cat == "" {
			cat = fallback
		}
		merged := false
		for i, existing := range cards[cat] {
			if existing.Name == e.Name {
				cards[cat][i].Quantity += e.Quantity
				merged = true
				break
			}
		}
		if !merged {
			cards[cat] = append(cards[cat], deck.Card{
				Name:            e.Name,
				Quantity:        e.Quantity,
				SetCode:         e.SetCode,
				CollectorNumber: e.CollectorNumber,
			})
		}
	}
	cards.Normalize()
	return cards
}
