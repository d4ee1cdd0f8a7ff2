package domain

import (
	"strings"
	"time"

	"neighborhood_directory/internal/rating"
)

type Review struct {
	ID           string    `json:"id"`
	BusinessID   string    `json:"business_id"`
	AuthorID     string    `json:"author_id"`
	AuthorName   string    `json:"author_name"`
	AuthorAvatar string    `json:"author_avatar,omitempty"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment"`
	CreatedAt    time.Time `json:"created_at"`
}

func (r Review) Validate() error {
	if err := rating.Validate(r.Rating); err != nil {
		return &ValidationError{Field: "rating", Reason: err.Error()}
	}
	if strings.TrimSpace(r.Comment) == "" {
		return &ValidationError{Field: "comment", Reason: "required"}
	}
	return nil
}
