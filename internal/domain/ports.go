package domain

import (
	"context"
	"time"

	"neighborhood_directory/internal/rating"
)

type BusinessRepository interface {
	// Write paths
	CreateBusiness(ctx context.Context, b Business) error
	UpdateBusiness(ctx context.Context, b Business) error
	DeleteBusiness(ctx context.Context, id string) error
	// SetFeatured applies ToggleFeatured atomically against the stored featured set.
	SetFeatured(ctx context.Context, id string, featured bool) error

	// Read paths
	GetBusiness(ctx context.Context, id string) (Business, error)
	ListPublicBusinesses(ctx context.Context) ([]Business, error)
	ListAllBusinesses(ctx context.Context) ([]Business, error)
	ListBusinessesByOwner(ctx context.Context, ownerID string) ([]Business, error)
	ListFeatured(ctx context.Context) ([]Business, error)
	ListBusinessIDs(ctx context.Context) ([]string, error)
}

type ReviewRepository interface {
	// AddReview stores r and folds its rating into the business aggregate as
	// one atomic step, returning the aggregate after the fold.
	AddReview(ctx context.Context, r Review) (rating.Aggregate, error)
	ListReviews(ctx context.Context, businessID string, limit int) ([]Review, error)

	// Reconciliation
	StoredAggregate(ctx context.Context, businessID string) (rating.Aggregate, error)
	// RecomputeAggregate rebuilds the aggregate from the stored reviews and
	// rewrites it when it differs, atomically with respect to AddReview.
	RecomputeAggregate(ctx context.Context, businessID string) (before, after rating.Aggregate, err error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, u User) error
	// CreateOwner stores an owner account together with its first business.
	CreateOwner(ctx context.Context, u User, b Business) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	SetUserDisabled(ctx context.Context, id string, disabled bool) error
	SetUserRole(ctx context.Context, id string, role Role) error
	// DeleteUser fails with ErrOwnsBusinesses while any business names id as owner.
	DeleteUser(ctx context.Context, id string) error
	AddFavorite(ctx context.Context, userID, businessID string) error
	RemoveFavorite(ctx context.Context, userID, businessID string) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

type SessionStore interface {
	Save(ctx context.Context, s Session, ttl time.Duration) error
	Load(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
}

type Geocoder interface {
	Geocode(ctx context.Context, address string) (Coords, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, e Event) error
}
