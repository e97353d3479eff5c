package scryfall

import (
	"errors"
	"fmt"
	"time"
)

// Card is a Scryfall card object, limited to the fields deck building uses.
type Card struct {
	ID       string `json:"id"`
	OracleID string `json:"oracle_id"`

	Name          string     `json:"name"`
	Layout        string     `json:"layout"`
	ImageURIs     *ImageURIs `json:"image_uris,omitempty"`
	ManaCost      string     `json:"mana_cost,omitempty"`
	CMC           float64    `json:"cmc"`
	TypeLine      string     `json:"type_line"`
	OracleText    string     `json:"oracle_text,omitempty"`
	Colors        []string   `json:"colors,omitempty"`
	ColorIdentity []string   `json:"color_identity"`
	Keywords      []string   `json:"keywords,omitempty"`

	SetCode         string `json:"set"`
	SetName         string `json:"set_name"`
	CollectorNumber string `json:"collector_number"`
	Rarity          string `json:"rarity"`

	// Card faces (for DFCs, MDFCs, split cards)
	CardFaces []CardFace `json:"card_faces,omitempty"`

	Legalities Legalities `json:"legalities"`
	Prices     Prices     `json:"prices"`
}

// CardFace is one face of a multi-faced card.
type CardFace struct {
	Name       string     `json:"name"`
	ManaCost   string     `json:"mana_cost,omitempty"`
	TypeLine   string     `json:"type_line"`
	OracleText string     `json:"oracle_text,omitempty"`
	ImageURIs  *ImageURIs `json:"image_uris,omitempty"`
}

// FrontTypeLine returns the type line, falling back to the first face.
func (c *Card) FrontTypeLine() string {
	if c.TypeLine != "" || len(c.CardFaces) == 0 {
		return c.TypeLine
	}
	return c.CardFaces[0].TypeLine
}

// FullOracleText joins the oracle text of every face.
func (c *Card) FullOracleText() string {
	if c.OracleText != "" || len(c.CardFaces) == 0 {
		return c.OracleText
	}
	text := ""
	for i, f := range c.CardFaces {
		if i > 0 {
			text += "\n//\n"
		}
		text += f.OracleText
	}
	return text
}

// ImageURI returns the image of the given size ("small", "normal",
// "large", "png", "art_crop"), using the front face for multi-faced cards.
func (c *Card) ImageURI(size string) string {
	uris := c.ImageURIs
	if uris == nil && len(c.CardFaces) > 0 {
		uris = c.CardFaces[0].ImageURIs
	}
	if uris == nil {
		return ""
	}
	switch size {
	case "small":
		return uris.Small
	case "large":
		return uris.Large
	case "png":
		return uris.PNG
	case "art_crop":
		return uris.ArtCrop
	default:
		return uris.Normal
	}
}

// ImageURIs contains URLs for card images in various sizes.
type ImageURIs struct {
	Small   string `json:"small"`
	Normal  string `json:"normal"`
	Large   string `json:"large"`
	PNG     string `json:"png"`
	ArtCrop string `json:"art_crop"`
}

// Legalities lists the formats a deck vault cares about.
type Legalities struct {
	Commander       string `json:"commander"`
	Oathbreaker     string `json:"oathbreaker"`
	Brawl           string `json:"brawl"`
	PauperCommander string `json:"paupercommander"`
	Predh           string `json:"predh"`
}

// Prices holds card prices; absent prices are nil.
type Prices struct {
	USD     *string `json:"usd,omitempty"`
	USDFoil *string `json:"usd_foil,omitempty"`
	EUR     *string `json:"eur,omitempty"`
}

// Set is a Magic set.
type Set struct {
	ID         string `json:"id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	ReleasedAt string `json:"released_at,omitempty"`
	SetType    string `json:"set_type"`
	CardCount  int    `json:"card_count"`
	Digital    bool   `json:"digital"`
	IconSVGURI string `json:"icon_svg_uri"`
}

// BulkDataList is the list of bulk data files.
type BulkDataList struct {
	Object  string     `json:"object"`
	HasMore bool       `json:"has_more"`
	Data    []BulkData `json:"data"`
}

// Find returns the bulk file of the given type ("oracle_cards",
// "default_cards", ...).
func (l *BulkDataList) Find(bulkType string) (*BulkData, bool) {
	for i := range l.Data {
		if l.Data[i].Type == bulkType {
			return &l.Data[i], true
		}
	}
	return nil, false
}

// BulkData describes one bulk data file download.
type BulkData struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	UpdatedAt       time.Time `json:"updated_at"`
	Name            string    `json:"name"`
	Size            int64     `json:"size"`
	DownloadURI     string    `json:"download_uri"`
	ContentType     string    `json:"content_type"`
	ContentEncoding string    `json:"content_encoding"`
}

// APIError represents an error response from the Scryfall API.
type APIError struct {
	Object   string   `json:"object"`
	Code     string   `json:"code"`
	Status   int      `json:"status"`
	Details  string   `json:"details"`
	Type     string   `json:"type,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("Scryfall API error (HTTP %d): %s", e.Status, e.Details)
	}
	return fmt.Sprintf("Scryfall API error (HTTP %d): %s", e.Status, e.Code)
}

// NotFoundError represents a 404 error from the API.
type NotFoundError struct {
	URL string
}

// Error implements the error interface for NotFoundError.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource not found: %s", e.URL)
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
