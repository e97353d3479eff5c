package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ramonehamilton/commander-vault/internal/deck"
	"github.com/ramonehamilton/commander-vault/internal/decklist"
)

// SnapshotSchemaVersion is the schema written by SerializeSnapshot.
const SnapshotSchemaVersion = 1

// ErrUnsupportedSchema is returned for snapshots written by a newer release.
var ErrUnsupportedSchema = errors.New("unsupported snapshot schema version")

// Snapshot is the canonical JSON form of one committed version.
type Snapshot struct {
	SchemaVersion int        `json:"schemaVersion"`
	LastModified  time.Time  `json:"lastModified"`
	Cards         deck.Cards `json:"cards"`
}

// SerializeSnapshot renders d's cards as snapshot JSON.
func SerializeSnapshot(d *deck.Deck) (string, error) {
	if d == nil {
		return "", fmt.Errorf("serialize snapshot: deck is nil")
	}
	cards := d.Cards.Clone()
	cards.Normalize()
	if cards == nil {
		cards = deck.Cards{}
	}

	modified := d.UpdatedAt
	if modified.IsZero() {
		modified = time.Now()
	}
	data, err := json.MarshalIndent(Snapshot{
		SchemaVersion: SnapshotSchemaVersion,
		LastModified:  modified.UTC(),
		Cards:         cards,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serialize snapshot: %w", err)
	}
	return string(data), nil
}

// DeserializeSnapshot parses version content. JSON snapshots are decoded
// as stored without touching lookup. Anything else is read as a legacy
// plaintext decklist whose cards are resolved through lookup when one is
// given; cards that cannot be resolved are kept as name and quantity.
func DeserializeSnapshot(ctx context.Context, content string, lookup deck.CardLookup) (*Snapshot, error) {
	trimmed := strings.TrimSpace(content)

	var snap *Snapshot
	var err error
	switch {
	case strings.HasPrefix(trimmed, "{"):
		snap, err = decodeJSONSnapshot(trimmed)
	case trimmed == "":
		snap = &Snapshot{SchemaVersion: SnapshotSchemaVersion, Cards: deck.Cards{}}
	default:
		snap, err = decodeLegacySnapshot(ctx, trimmed, lookup)
	}
	if err != nil {
		return nil, err
	}
	snap.Cards.Normalize()
	return snap, nil
}

func decodeJSONSnapshot(content string) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal([]byte(content), &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.SchemaVersion < 1 || snap.SchemaVersion > SnapshotSchemaVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSchema, snap.SchemaVersion)
	}
	if snap.Cards == nil {
		snap.Cards = deck.Cards{}
	}
	return &snap, nil
}

// decodeLegacySnapshot reads a decklist. Lines without a section header are
// filed by the category of the resolved card, or "other" when unresolved.
func decodeLegacySnapshot(ctx context.Context, content string, lookup deck.CardLookup) (*Snapshot, error) {
	parsed, err := decklist.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("decode legacy snapshot: %w", err)
	}

	cards := deck.Cards{}
	for _, e := range parsed.Entries {
		card := deck.Card{
			Name:            e.Name,
			Quantity:        e.Quantity,
			SetCode:         e.SetCode,
			CollectorNumber: e.CollectorNumber,
		}
		if lookup != nil {
			if resolved, err := lookup.GetCardByName(ctx, e.Name); err == nil && resolved != nil {
				card.Metadata = resolved.Metadata
			}
		}

		cat := e.Category
		if cat == "" {
			cat = card.Category()
		}
		if _, i, ok := findIn(cards[cat], card.Name); ok {
			cards[cat][i].Quantity += card.Quantity
			continue
		}
		cards[cat] = append(cards[cat], card)
	}
	return &Snapshot{SchemaVersion: SnapshotSchemaVersion, Cards: cards}, nil
}

func findIn(list []deck.Card, name string) (deck.Card, int, bool) {
	for i, c := range list {
		if c.Name == name {
			return c, i, true
		}
	}
	return deck.Card{}, -1, false
}
