package decklist

import (
	"strings"
	"testing"

	"github.com/ramonehamilton/commander-vault/internal/deck"
)

func sampleCards() deck.Cards {
	return deck.Cards{
		deck.CategoryLand:      {{Name: "Forest", Quantity: 30}, {Name: "Command Tower", Quantity: 1, SetCode: "cmr", CollectorNumber: "350"}},
		deck.CategoryCommander: {{Name: "Omnath, Locus of Creation", Quantity: 1, SetCode: "ZNR", CollectorNumber: "232"}},
		deck.CategoryArtifact:  {{Name: "Sol Ring", Quantity: 1, SetCode: "C21"}},
		deck.CategoryCreature:  {{Name: "Zero", Quantity: 0}},
	}
}

func TestExportDecklist(t *testing.T) {
	got, err := Export(sampleCards(), nil)
	if err != nil {
		t.Fatal(err)
	}
	want := "1 Omnath, Locus of Creation (ZNR) 232\n" +
		"1 Sol Ring (C21)\n" +
		"1 Command Tower (CMR) 350\n" +
		"30 Forest\n"
	if got != want {
		t.Errorf("Export() =\n%s\nwant\n%s", got, want)
	}
}

func TestExportHeadersRoundTrip(t *testing.T) {
	cards := sampleCards()
	text, err := Export(cards, &ExportOptions{Format: FormatDecklist, IncludeHeaders: true})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(text, "// Commander\n") {
		t.Errorf("missing commander header:\n%s", text)
	}

	parsed, err := Parse(text)
	if err != nil {
		t.Fatal(err)
	}
	back := parsed.ToCards(deck.CategoryOther)
	for _, cat := range []deck.Category{deck.CategoryCommander, deck.CategoryArtifact, deck.CategoryLand} {
		if len(back[cat]) != len(cards[cat]) {
			t.Errorf("category %s: got %d cards, want %d", cat, len(back[cat]), len(cards[cat]))
		}
	}
	if back.Count() != 33 {
		t.Errorf("Count = %d, want 33", back.Count())
	}
}

func TestExportFormats(t *testing.T) {
	plain, _ := Export(sampleCards(), &ExportOptions{Format: FormatPlainText})
	if !strings.Contains(plain, "30x Forest\n") {
		t.Errorf("plaintext export:\n%s", plain)
	}

	arena, _ := Export(sampleCards(), &ExportOptions{Format: FormatArena})
	if !strings.HasPrefix(arena, "Commander\n1 Omnath, Locus of Creation (ZNR) 232\n\nDeck\n") {
		t.Errorf("arena export:\n%s", arena)
	}

	if _, err := Export(sampleCards(), &ExportOptions{Format: "mtgo"}); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestExportDeckFilename(t *testing.T) {
	d := deck.New("Omnath: Lands/Ramp", "")
	out, err := ExportDeck(d, nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.Filename != "Omnath_ Lands_Ramp.txt" {
		t.Errorf("Filename = %q", out.Filename)
	}
}
