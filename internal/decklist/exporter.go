package decklist

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ramonehamilton/commander-vault/internal/deck"
)

// Format is a plaintext export format.
type Format string

const (
	// FormatDecklist is "<qty> <name> (<SET>) <collector>", the legacy
	// version-file format.
	FormatDecklist Format = "decklist"
	// FormatPlainText is "<qty>x <name>".
	FormatPlainText Format = "plaintext"
	// FormatArena is the MTGA import format with Commander/Deck sections.
	FormatArena Format = "arena"
)

// ExportOptions controls decklist export behavior.
type ExportOptions struct {
	Format         Format
	IncludeHeaders bool // Section headers ("// Creature") between categories
}

// DeckExport is an exported deck.
type DeckExport struct {
	Content  string
	Format   Format
	Filename string
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatDecklist, FormatPlainText, FormatArena:
		return f, nil
	case "":
		return FormatDecklist, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", s)
	}
}

// Export renders cards in display order.
func Export(cards deck.Cards, options *ExportOptions) (string, error) {
	if options == nil {
		options = &ExportOptions{Format: FormatDecklist}
	}

	switch options.Format {
	case FormatDecklist, "":
		return exportSections(cards, options.IncludeHeaders, decklistLine), nil
	case FormatPlainText:
		return exportSections(cards, options.IncludeHeaders, plainTextLine), nil
	case FormatArena:
		return exportArena(cards), nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", options.Format)
	}
}

// ExportDeck exports d with a suggested filename.
func ExportDeck(d *deck.Deck, options *ExportOptions) (*DeckExport, error) {
	if d == nil {
		return nil, fmt.Errorf("deck is nil")
	}
	if options == nil {
		options = &ExportOptions{Format: FormatDecklist, IncludeHeaders: true}
	}
	content, err := Export(d.Cards, options)
	if err != nil {
		return nil, err
	}
	return &DeckExport{
		Content:  content,
		Format:   options.Format,
		Filename: fmt.Sprintf("%s.txt", sanitizeFilename(d.Name)),
	}, nil
}

func exportSections(cards deck.Cards, headers bool, render func(deck.Card) string) string {
	var sb strings.Builder
	for _, cat := range deck.DisplayOrder {
		list := sortedCategory(cards, cat)
		if len(list) == 0 {
			continue
		}
		if headers {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString("// " + titleCase(string(cat)) + "\n")
		}
		for _, c := range list {
			sb.WriteString(render(c))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// exportArena writes commanders under "Commander" and everything else
// under "Deck".
func exportArena(cards deck.Cards) string {
	var sb strings.Builder
	if commanders := sortedCategory(cards, deck.CategoryCommander); len(commanders) > 0 {
		sb.WriteString("Commander\n")
		for _, c := range commanders {
			sb.WriteString(decklistLine(c) + "\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Deck\n")
	for _, cat := range deck.DisplayOrder {
		if cat == deck.CategoryCommander {
			continue
		}
		for _, c := range sortedCategory(cards, cat) {
			sb.WriteString(decklistLine(c) + "\n")
		}
	}
	return sb.String()
}

func decklistLine(c deck.Card) string {
	line := fmt.Sprintf("%d %s", c.Quantity, c.Name)
	if c.SetCode != "" {
		line += fmt.Sprintf(" (%s)", strings.ToUpper(c.SetCode))
		if c.CollectorNumber != "" {
			line += " " + c.CollectorNumber
		}
	}
	return line
}

func plainTextLine(c deck.Card) string {
	return fmt.Sprintf("%dx %s", c.Quantity, c.Name)
}

func sortedCategory(cards deck.Cards, cat deck.Category) []deck.Card {
	only := deck.Cards{cat: append([]deck.Card(nil), cards[cat]...)}
	only.Normalize()
	return only.All()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

var unsafeFilenameChars = regexp.MustCompile(`[\\/:*?"<>|]`)

// sanitizeFilename removes characters that are invalid in filenames.
func sanitizeFilename(name string) string {
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.TrimSpace(name)
	if name == "" {
		return "deck"
	}
	return name
}
