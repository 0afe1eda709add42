package registry

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Category is the closed classification an item must fall into.
type Category string

const (
	CategoryLandmark Category = "landmark"
	CategoryBuilding Category = "building"
	CategoryBridge   Category = "bridge"
	CategoryMonument Category = "monument"
	CategoryMuseum   Category = "museum"
	CategoryPark     Category = "park"
	CategoryStadium  Category = "stadium"
	CategoryTower    Category = "tower"
	CategoryTransit  Category = "transit"
	CategoryVenue    Category = "venue"
)

// Categories lists every valid category value.
func Categories() []Category {
	return []Category{
		CategoryLandmark,
		CategoryBuilding,
		CategoryBridge,
		CategoryMonument,
		CategoryMuseum,
		CategoryPark,
		CategoryStadium,
		CategoryTower,
		CategoryTransit,
		CategoryVenue,
	}
}

// ParseCategory normalizes and validates a category value.
func ParseCategory(value string) (Category, error) {
	candidate := Category(strings.ToLower(strings.TrimSpace(value)))
	for _, category := range Categories() {
		if candidate == category {
			return category, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", value)
}

// Footprint is the bounded 2D extent an item occupies, in grid cells.
type Footprint struct {
	W int `json:"w"`
	H int `json:"h"`
}

// Valid reports whether both dimensions sit inside the allowed 1..8 range.
func (f Footprint) Valid() bool {
	return f.W >= 1 && f.W <= 8 && f.H >= 1 && f.H <= 8
}

// Record is one item's registry entry. Optional fields use pointer or
// omitempty encoding so an upsert only touches the fields it carries.
type Record struct {
	ID               string     `json:"id"`
	Name             string     `json:"name,omitempty"`
	Category         Category   `json:"category,omitempty"`
	Footprint        *Footprint `json:"footprint,omitempty"`
	Icon             string     `json:"icon,omitempty"`
	SpriteRef        string     `json:"sprite_ref,omitempty"`
	ModelRef         string     `json:"model_ref,omitempty"`
	SupportsRotation *bool      `json:"supports_rotation,omitempty"`
}

// HasSprite reports whether the intermediate artifact exists.
func (r Record) HasSprite() bool { return strings.TrimSpace(r.SpriteRef) != "" }

// HasModel reports whether the final artifact exists.
func (r Record) HasModel() bool { return strings.TrimSpace(r.ModelRef) != "" }

// Validate checks the fields the record carries. Absent optional fields are
// fine; present ones must be well formed, and a final artifact reference
// requires the intermediate one.
func (r Record) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("record id required")
	}
	if r.Category != "" {
		if _, err := ParseCategory(string(r.Category)); err != nil {
			return err
		}
	}
	if r.Footprint != nil && !r.Footprint.Valid() {
		return fmt.Errorf("footprint %dx%d outside 1..8", r.Footprint.W, r.Footprint.H)
	}
	if r.Icon != "" && utf8.RuneCountInString(r.Icon) != 1 {
		return fmt.Errorf("icon %q must be a single glyph", r.Icon)
	}
	if r.HasModel() && !r.HasSprite() {
		return fmt.Errorf("model reference without sprite reference")
	}
	return nil
}

// Bool is a convenience for optional boolean fields.
func Bool(v bool) *bool { return &v }
