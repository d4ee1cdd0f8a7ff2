package domain

import "time"

const (
	EventReviewSubmitted  = "review.submitted"
	EventBusinessFeatured = "business.featured"
	EventBusinessDeleted  = "business.deleted"
)

type Event struct {
	Type       string         `json:"type"`
	BusinessID string         `json:"business_id"`
	At         time.Time      `json:"at"`
	Data       map[string]any `json:"data,omitempty"`
}
