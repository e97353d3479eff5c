package scryfall

import (
	"github.com/ramonehamilton/commander-vault/internal/deck"
)

// ToDeckCard converts a Scryfall card to a deck entry of quantity one with
// full metadata.
func (c *Card) ToDeckCard() deck.Card {
	typeLine := c.FrontTypeLine()
	md := &deck.Metadata{
		ScryfallID:    c.ID,
		OracleID:      c.OracleID,
		ManaCost:      c.ManaCost,
		CMC:           c.CMC,
		TypeLine:      typeLine,
		Types:         deck.TypesFromLine(typeLine),
		OracleText:    c.FullOracleText(),
		ColorIdentity: append([]string(nil), c.ColorIdentity...),
		ImageURI:      c.ImageURI("normal"),
	}
	if md.ManaCost == "" && len(c.CardFaces) > 0 {
		md.ManaCost = c.CardFaces[0].ManaCost
	}
	if c.Prices.USD != nil {
		md.PriceUSD = *c.Prices.USD
	}
	return deck.Card{
		Name:            c.Name,
		Quantity:        1,
		SetCode:         c.SetCode,
		CollectorNumber: c.CollectorNumber,
		Metadata:        md,
	}
}
