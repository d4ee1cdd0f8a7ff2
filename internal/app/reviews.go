package app

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"neighborhood_directory/internal/adapters/observability"
	"neighborhood_directory/internal/domain"
)

type ReviewInput struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type ReviewService struct {
	businesses domain.BusinessRepository
	reviews    domain.ReviewRepository
	cache      domain.Cache
	events     domain.EventPublisher
	now        func() time.Time
}

func NewReviewService(b domain.BusinessRepository, r domain.ReviewRepository, c domain.Cache, e domain.EventPublisher) *ReviewService {
	if c == nil {
		c = NopCache{}
	}
	return &ReviewService{businesses: b, reviews: r, cache: c, events: e,
		now: func() time.Time { return time.Now().UTC() }}
}

// Submit validates the review, stores it and folds its rating into the
// business aggregate in one step. The author is the session's user.
func (s *ReviewService) Submit(ctx context.Context, author domain.Session, businessID string, in ReviewInput) (domain.Review, error) {
	rv := domain.Review{
		ID:         uuid.NewString(),
		BusinessID: businessID,
		AuthorID:   author.UserID,
		AuthorName: author.Name,
		Rating:     in.Rating,
		Comment:    strings.TrimSpace(in.Comment),
		CreatedAt:  s.now(),
	}
	if err := rv.Validate(); err != nil {
		return domain.Review{}, err
	}

	b, err := s.businesses.GetBusiness(ctx, businessID)
	if err != nil {
		return domain.Review{}, err
	}
	if !canSee(b, &author) {
		return domain.Review{}, domain.ErrNotFound
	}

	agg, err := s.reviews.AddReview(ctx, rv)
	if err != nil {
		return domain.Review{}, err
	}
	observability.ObserveReview(rv.Rating)
	EvictBusiness(ctx, s.cache, businessID)
	evict(ctx, s.cache, keyReviews(businessID))

	mean, _ := agg.Mean()
	log.Info().Str("business_id", businessID).Int("stars", rv.Rating).
		Int64("review_count", agg.Count).Float64("rating", mean).Msg("review submitted")

	publish(ctx, s.events, domain.Event{
		Type:       domain.EventReviewSubmitted,
		BusinessID: businessID,
		At:         rv.CreatedAt,
		Data:       map[string]any{"review_id": rv.ID, "rating": rv.Rating, "mean": mean, "count": agg.Count},
	})
	return rv, nil
}

// publish is fire-and-forget; a broker outage never fails the write that raised the event.
func publish(ctx context.Context, p domain.EventPublisher, e domain.Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		log.Warn().Err(err).Str("event", e.Type).Str("business_id", e.BusinessID).Msg("event publish failed")
	}
}
