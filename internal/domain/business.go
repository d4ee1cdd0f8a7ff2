package domain

import (
	"fmt"
	"strings"
	"time"
)

type Category string

const (
	CategoryRestaurant Category = "restaurante"
	CategoryCommerce   Category = "comercio"
	CategoryServices   Category = "servicos"
	CategoryHealth     Category = "saude"
	CategoryBeauty     Category = "beleza"
	CategoryEducation  Category = "educacao"
	CategoryOther      Category = "outros"
)

var Categories = []Category{
	CategoryRestaurant, CategoryCommerce, CategoryServices,
	CategoryHealth, CategoryBeauty, CategoryEducation, CategoryOther,
}

// Canonical is the stored form: trimmed and lowercase.
func (c Category) Canonical() Category {
	return Category(strings.ToLower(strings.TrimSpace(string(c))))
}

func ParseCategory(s string) (Category, error) {
	c := Category(s).Canonical()
	for _, k := range Categories {
		if k == c {
			return c, nil
		}
	}
	return "", &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", s)}
}

const MaxImages = 5

type Business struct {
	ID          string      `json:"id"`
	OwnerID     string      `json:"owner_id"`
	Name        string      `json:"name"`
	Category    Category    `json:"category"`
	Address     string      `json:"address"`
	Coords      *Coords     `json:"coords,omitempty"`
	Description string      `json:"description"`
	Phone       string      `json:"phone,omitempty"`
	Website     string      `json:"website,omitempty"`
	Images      []string    `json:"images"`
	Hours       WeeklyHours `json:"hours,omitempty"`
	IsOpen      bool        `json:"is_open"`
	Rating      *float64    `json:"rating,omitempty"` // nil until the first review
	ReviewCount int         `json:"review_count"`
	IsPublic    bool        `json:"is_public"`
	Featured    bool        `json:"featured"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type Coords struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (c Coords) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// Validate checks the owner-editable profile fields.
func (b Business) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	if _, err := ParseCategory(string(b.Category)); err != nil {
		return err
	}
	if strings.TrimSpace(b.Address) == "" {
		return &ValidationError{Field: "address", Reason: "required"}
	}
	if len(b.Images) > MaxImages {
		return &ValidationError{Field: "images", Reason: fmt.Sprintf("at most %d images", MaxImages)}
	}
	for _, u := range b.Images {
		if strings.TrimSpace(u) == "" {
			return &ValidationError{Field: "images", Reason: "empty image url"}
		}
	}
	if b.Coords != nil && !b.Coords.Valid() {
		return &ValidationError{Field: "coords", Reason: "latitude/longitude out of range"}
	}
	return b.Hours.Validate()
}

// BusinessPatch carries an owner's partial profile update; nil fields are left alone.
type BusinessPatch struct {
	Name        *string      `json:"name,omitempty"`
	Category    *Category    `json:"category,omitempty"`
	Address     *string      `json:"address,omitempty"`
	Coords      *Coords      `json:"coords,omitempty"`
	Description *string      `json:"description,omitempty"`
	Phone       *string      `json:"phone,omitempty"`
	Website     *string      `json:"website,omitempty"`
	Images      *[]string    `json:"images,omitempty"`
	Hours       *WeeklyHours `json:"hours,omitempty"`
	IsOpen      *bool        `json:"is_open,omitempty"`
	IsPublic    *bool        `json:"is_public,omitempty"`
}

// Apply returns b with the patch applied. The address change drops stale
// coordinates unless new ones are supplied alongside it.
func (p BusinessPatch) Apply(b Business) Business {
	if p.Name != nil {
		b.Name = strings.TrimSpace(*p.Name)
	}
	if p.Category != nil {
		b.Category = p.Category.Canonical()
	}
	if p.Address != nil && strings.TrimSpace(*p.Address) != b.Address {
		b.Address = strings.TrimSpace(*p.Address)
		b.Coords = nil
	}
	if p.Coords != nil {
		c := *p.Coords
		b.Coords = &c
	}
	if p.Description != nil {
		b.Description = *p.Description
	}
	if p.Phone != nil {
		b.Phone = strings.TrimSpace(*p.Phone)
	}
	if p.Website != nil {
		b.Website = strings.TrimSpace(*p.Website)
	}
	if p.Images != nil {
		b.Images = append([]string(nil), (*p.Images)...)
	}
	if p.Hours != nil {
		b.Hours = p.Hours.Clone()
	}
	if p.IsOpen != nil {
		b.IsOpen = *p.IsOpen
	}
	if p.IsPublic != nil {
		b.IsPublic = *p.IsPublic
	}
	return b
}
