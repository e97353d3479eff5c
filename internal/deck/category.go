package deck

import "strings"

// Category is the deck section a card is filed under.
type Category string

const (
	CategoryCommander    Category = "commander"
	CategoryCompanion    Category = "companion"
	CategoryPlaneswalker Category = "planeswalker"
	CategoryCreature     Category = "creature"
	CategoryInstant      Category = "instant"
	CategorySorcery      Category = "sorcery"
	CategoryArtifact     Category = "artifact"
	CategoryEnchantment  Category = "enchantment"
	CategoryLand         Category = "land"
	CategoryOther        Category = "other"
)

// DisplayOrder is the fixed order categories are listed and exported in.
var DisplayOrder = []Category{
	CategoryCommander,
	CategoryCompanion,
	CategoryPlaneswalker,
	CategoryCreature,
	CategoryInstant,
	CategorySorcery,
	CategoryArtifact,
	CategoryEnchantment,
	CategoryLand,
	CategoryOther,
}

// typePriority decides the category of multi-typed cards ("Artifact Land",
// "Artifact Creature", "Land Creature").
var typePriority = []struct {
	typeName string
	category Category
}{
	{"land", CategoryLand},
	{"creature", CategoryCreature},
	{"planeswalker", CategoryPlaneswalker},
	{"instant", CategoryInstant},
	{"sorcery", CategorySorcery},
	{"artifact", CategoryArtifact},
	{"enchantment", CategoryEnchantment},
}

const (
	commanderMarker = "can be your commander"
	companionMarker = "companion —"
)

// ParseCategory maps a category or section-header name to a Category.
// Plural and capitalized forms ("Creatures", "Lands") are accepted.
func ParseCategory(s string) (Category, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "commanders":
		s = "commander"
	case "companions":
		s = "companion"
	case "planeswalkers":
		s = "planeswalker"
	case "creatures":
		s = "creature"
	case "instants":
		s = "instant"
	case "sorceries":
		s = "sorcery"
	case "artifacts":
		s = "artifact"
	case "enchantments":
		s = "enchantment"
	case "lands":
		s = "land"
	}
	for _, c := range DisplayOrder {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// Categorize returns the category for a card with the given type line and
// oracle text. Commanders and companions are recognized by their oracle
// text markers; everything else falls back to its primary type.
func Categorize(typeLine, oracleText string) Category {
	text := strings.ToLower(oracleText)
	if strings.Contains(text, companionMarker) {
		return CategoryCompanion
	}
	if strings.Contains(text, commanderMarker) {
		return CategoryCommander
	}

	types := TypesFromLine(typeLine)
	for _, p := range typePriority {
		for _, t := range types {
			if strings.EqualFold(t, p.typeName) {
				return p.category
			}
		}
	}
	return CategoryOther
}

// TypesFromLine extracts card types from a type line, dropping supertypes
// and subtypes: "Legendary Artifact Creature — Golem" yields
// ["Artifact", "Creature"]. Double-faced type lines use the front face.
func TypesFromLine(typeLine string) []string {
	if i := strings.Index(typeLine, "//"); i >= 0 {
		typeLine = typeLine[:i]
	}
	if i := strings.Index(typeLine, "—"); i >= 0 {
		typeLine = typeLine[:i]
	}

	var types []string
	for _, word := range strings.Fields(typeLine) {
		switch strings.ToLower(word) {
		case "legendary", "basic", "snow", "world", "ongoing", "host", "elite":
			continue
		}
		types = append(types, word)
	}
	return types
}
