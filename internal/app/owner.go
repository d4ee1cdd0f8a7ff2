package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"neighborhood_directory/internal/domain"
)

// OwnerService lets an owner manage their own storefronts.
type OwnerService struct {
	businesses domain.BusinessRepository
	cache      domain.Cache
	geocoder   domain.Geocoder // optional
	timeout    time.Duration
}

func NewOwnerService(b domain.BusinessRepository, c domain.Cache, g domain.Geocoder) *OwnerService {
	if c == nil {
		c = NopCache{}
	}
	return &OwnerService{businesses: b, cache: c, geocoder: g, timeout: 5 * time.Second}
}

func (s *OwnerService) MyBusinesses(ctx context.Context, owner domain.Session) ([]domain.Business, error) {
	return s.businesses.ListBusinessesByOwner(ctx, owner.UserID)
}

// Update applies patch to a business the caller owns (admins may edit any).
// Missing coordinates are looked up when a geocoder is configured; a failed
// lookup leaves them empty rather than failing the edit.
func (s *OwnerService) Update(ctx context.Context, caller domain.Session, id string, patch domain.BusinessPatch) (domain.Business, error) {
	cur, err := s.businesses.GetBusiness(ctx, id)
	if err != nil {
		return domain.Business{}, err
	}
	if cur.OwnerID != caller.UserID && caller.Role != domain.RoleAdmin {
		return domain.Business{}, domain.ErrForbidden
	}
	next := patch.Apply(cur)
	if err := next.Validate(); err != nil {
		return domain.Business{}, err
	}

	if next.Coords == nil && s.geocoder != nil && next.Address != "" {
		gctx, cancel := context.WithTimeout(ctx, s.timeout)
		co, gerr := s.geocoder.Geocode(gctx, next.Address)
		cancel()
		if gerr != nil {
			log.Warn().Err(gerr).Str("business_id", id).Msg("geocoding failed")
		} else {
			next.Coords = &co
		}
	}

	if err := s.businesses.UpdateBusiness(ctx, next); err != nil {
		return domain.Business{}, err
	}
	EvictBusiness(ctx, s.cache, id)
	return s.businesses.GetBusiness(ctx, id)
}
