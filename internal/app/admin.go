package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"neighborhood_directory/internal/adapters/observability"
	"neighborhood_directory/internal/domain"
)

// AdminService holds the curation and moderation operations.
type AdminService struct {
	businesses domain.BusinessRepository
	users      domain.UserRepository
	cache      domain.Cache
	events     domain.EventPublisher
	now        func() time.Time
}

func NewAdminService(b domain.BusinessRepository, u domain.UserRepository, c domain.Cache, e domain.EventPublisher) *AdminService {
	if c == nil {
		c = NopCache{}
	}
	return &AdminService{businesses: b, users: u, cache: c, events: e,
		now: func() time.Time { return time.Now().UTC() }}
}

func (s *AdminService) ListBusinesses(ctx context.Context) ([]domain.Business, error) {
	return s.businesses.ListAllBusinesses(ctx)
}

// SetFeatured toggles the featured flag, enforcing the MaxFeatured cap.
func (s *AdminService) SetFeatured(ctx context.Context, id string, featured bool) error {
	err := s.businesses.SetFeatured(ctx, id, featured)
	switch {
	case errors.Is(err, domain.ErrFeaturedCapReached):
		observability.ObserveFeaturedToggle("capped")
		return err
	case err != nil:
		observability.ObserveFeaturedToggle("error")
		return err
	case featured:
		observability.ObserveFeaturedToggle("featured")
	default:
		observability.ObserveFeaturedToggle("unfeatured")
	}
	EvictBusiness(ctx, s.cache, id)
	log.Info().Str("business_id", id).Bool("featured", featured).Msg("featured toggled")
	publish(ctx, s.events, domain.Event{
		Type: domain.EventBusinessFeatured, BusinessID: id, At: s.now(),
		Data: map[string]any{"featured": featured},
	})
	return nil
}

// DeleteBusiness removes a business with its reviews and any favorites pointing at it.
func (s *AdminService) DeleteBusiness(ctx context.Context, id string) error {
	if err := s.businesses.DeleteBusiness(ctx, id); err != nil {
		return err
	}
	EvictBusiness(ctx, s.cache, id)
	evict(ctx, s.cache, keyReviews(id))
	log.Info().Str("business_id", id).Msg("business deleted")
	publish(ctx, s.events, domain.Event{Type: domain.EventBusinessDeleted, BusinessID: id, At: s.now()})
	return nil
}

func (s *AdminService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.users.ListUsers(ctx)
}

// SetUserDisabled blocks or unblocks logins. An admin cannot disable themself.
func (s *AdminService) SetUserDisabled(ctx context.Context, caller domain.Session, id string, disabled bool) error {
	if caller.UserID == id && disabled {
		return &domain.ValidationError{Field: "id", Reason: "cannot disable own account"}
	}
	if err := s.users.SetUserDisabled(ctx, id, disabled); err != nil {
		return err
	}
	log.Info().Str("user_id", id).Bool("disabled", disabled).Msg("user disabled flag set")
	return nil
}

func (s *AdminService) SetUserRole(ctx context.Context, id string, role domain.Role) error {
	if !role.Valid() {
		return &domain.ValidationError{Field: "role", Reason: "unknown role"}
	}
	return s.users.SetUserRole(ctx, id, role)
}

func (s *AdminService) DeleteUser(ctx context.Context, caller domain.Session, id string) error {
	if caller.UserID == id {
		return &domain.ValidationError{Field: "id", Reason: "cannot delete own account"}
	}
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return err
	}
	log.Info().Str("user_id", id).Msg("user deleted")
	return nil
}
