package app

import (
	"context"
	"time"

	"neighborhood_directory/internal/domain"
	"neighborhood_directory/internal/search"
)

const (
	DefaultReviewLimit = 50
	MaxReviewLimit     = 200
)

// DirectoryService serves the read side: search, detail, reviews and the
// featured strip. Listings are cached; filtering always runs in-process.
type DirectoryService struct {
	businesses domain.BusinessRepository
	reviews    domain.ReviewRepository
	cache      domain.Cache
	cacheTTL   time.Duration
	pipeline   *search.Pipeline
}

func NewDirectoryService(b domain.BusinessRepository, r domain.ReviewRepository, c domain.Cache, ttl time.Duration, p *search.Pipeline) *DirectoryService {
	if c == nil {
		c = NopCache{}
	}
	return &DirectoryService{businesses: b, reviews: r, cache: c, cacheTTL: ttl, pipeline: p}
}

func (s *DirectoryService) ttl() int { return int(s.cacheTTL.Seconds()) }

func (s *DirectoryService) publicListing(ctx context.Context) ([]domain.Business, error) {
	var out []domain.Business
	if ok, _ := s.cache.Get(ctx, keyPublicListing, &out); ok {
		return out, nil
	}
	out, err := s.businesses.ListPublicBusinesses(ctx)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, keyPublicListing, out, s.ttl())
	return out, nil
}

// Search runs the filter/sort pipeline over the public listing.
func (s *DirectoryService) Search(ctx context.Context, c search.Criteria) ([]domain.Business, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	all, err := s.publicListing(ctx)
	if err != nil {
		return nil, err
	}
	return s.pipeline.Apply(all, c), nil
}

func canSee(b domain.Business, viewer *domain.Session) bool {
	if b.IsPublic {
		return true
	}
	return viewer != nil && (viewer.Role == domain.RoleAdmin || viewer.UserID == b.OwnerID)
}

// GetBusiness hides private listings from everyone but their owner and admins.
func (s *DirectoryService) GetBusiness(ctx context.Context, id string, viewer *domain.Session) (domain.Business, error) {
	var b domain.Business
	if ok, _ := s.cache.Get(ctx, keyBusiness(id), &b); !ok {
		var err error
		if b, err = s.businesses.GetBusiness(ctx, id); err != nil {
			return domain.Business{}, err
		}
		_ = s.cache.Set(ctx, keyBusiness(id), b, s.ttl())
	}
	if !canSee(b, viewer) {
		return domain.Business{}, domain.ErrNotFound
	}
	return b, nil
}

// ListReviews returns the newest reviews first. limit must be in [1, MaxReviewLimit].
func (s *DirectoryService) ListReviews(ctx context.Context, businessID string, limit int, viewer *domain.Session) ([]domain.Review, error) {
	if limit < 1 || limit > MaxReviewLimit {
		return nil, &domain.ValidationError{Field: "limit", Reason: "must be between 1 and 200"}
	}
	if _, err := s.GetBusiness(ctx, businessID, viewer); err != nil {
		return nil, err
	}

	// one cached page of the newest MaxReviewLimit reviews serves every limit
	var rs []domain.Review
	if ok, _ := s.cache.Get(ctx, keyReviews(businessID), &rs); !ok {
		var err error
		if rs, err = s.reviews.ListReviews(ctx, businessID, MaxReviewLimit); err != nil {
			return nil, err
		}
		_ = s.cache.Set(ctx, keyReviews(businessID), rs, s.ttl())
	}
	if len(rs) > limit {
		rs = rs[:limit]
	}
	out := make([]domain.Review, len(rs))
	copy(out, rs)
	return out, nil
}

// Featured lists the featured public businesses for the landing page.
func (s *DirectoryService) Featured(ctx context.Context) ([]domain.Business, error) {
	var out []domain.Business
	if ok, _ := s.cache.Get(ctx, keyFeatured, &out); ok {
		return out, nil
	}
	out, err := s.businesses.ListFeatured(ctx)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, keyFeatured, out, s.ttl())
	return out, nil
}
