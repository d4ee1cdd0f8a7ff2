// Package search filters and orders a materialized business listing for display.
package search

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"neighborhood_directory/internal/domain"
)

type SortKey string

const (
	SortRelevance SortKey = "relevance" // backend order
	SortRating    SortKey = "rating"    // highest first
	SortName      SortKey = "name"      // collation order
)

func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return SortRelevance, nil
	case SortRelevance, SortRating, SortName:
		return k, nil
	default:
		return "", &domain.ValidationError{Field: "sort", Reason: fmt.Sprintf("unknown sort key %q", s)}
	}
}

type Criteria struct {
	Query      string
	Categories []domain.Category // empty = all
	MinRating  float64           // 0..5 in steps of 0.5
	OpenNow    bool
	SortBy     SortKey
}

func (c Criteria) Validate() error {
	if c.MinRating < 0 || c.MinRating > 5 || math.Mod(c.MinRating*2, 1) != 0 {
		return &domain.ValidationError{Field: "min_rating", Reason: "must be between 0 and 5 in steps of 0.5"}
	}
	for _, cat := range c.Categories {
		if _, err := domain.ParseCategory(string(cat)); err != nil {
			return err
		}
	}
	if _, err := ParseSortKey(string(c.SortBy)); err != nil {
		return err
	}
	return nil
}

// Matches reports whether b passes every filter in c.
// Businesses without a rating satisfy any minimum.
func Matches(b domain.Business, c Criteria) bool {
	if !b.IsPublic {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(c.Query)); q != "" {
		if !strings.Contains(strings.ToLower(b.Name), q) &&
			!strings.Contains(strings.ToLower(b.Description), q) {
			return false
		}
	}
	if len(c.Categories) > 0 && !containsCategory(c.Categories, b.Category) {
		return false
	}
	if b.Rating != nil && *b.Rating < c.MinRating {
		return false
	}
	if c.OpenNow && !b.IsOpen {
		return false
	}
	return true
}

func containsCategory(set []domain.Category, c domain.Category) bool {
	for _, s := range set {
		if s == c {
			return true
		}
	}
	return false
}

// Filter returns the businesses in in that match c, preserving order.
func Filter(in []domain.Business, c Criteria) []domain.Business {
	out := make([]domain.Business, 0, len(in))
	for _, b := range in {
		if Matches(b, c) {
			out = append(out, b)
		}
	}
	return out
}

// Sort returns a stably ordered copy of in. tag selects the collation used by SortName.
func Sort(in []domain.Business, key SortKey, tag language.Tag) []domain.Business {
	out := append([]domain.Business(nil), in...)
	switch key {
	case SortRating:
		sort.SliceStable(out, func(i, j int) bool {
			return ratingOf(out[i]) > ratingOf(out[j])
		})
	case SortName:
		// a Collator keeps internal buffers, so each call gets its own
		col := collate.New(tag)
		sort.SliceStable(out, func(i, j int) bool {
			return col.CompareString(out[i].Name, out[j].Name) < 0
		})
	}
	return out
}

func ratingOf(b domain.Business) float64 {
	if b.Rating == nil {
		return 0
	}
	return *b.Rating
}

// Pipeline binds the collation locale used for name ordering.
type Pipeline struct{ tag language.Tag }

func New(locale string) *Pipeline {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.BrazilianPortuguese
	}
	return &Pipeline{tag: tag}
}

func (p *Pipeline) Tag() language.Tag { return p.tag }

// Apply filters then sorts. The input is not modified.
func (p *Pipeline) Apply(in []domain.Business, c Criteria) []domain.Business {
	return Sort(Filter(in, c), c.SortBy, p.tag)
}
