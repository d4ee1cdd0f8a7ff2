package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"neighborhood_directory/internal/domain"
)

const (
	keyPublicListing = "businesses:public"
	keyFeatured      = "businesses:featured"
)

func keyBusiness(id string) string { return "business:" + id }
func keyReviews(id string) string  { return "reviews:" + id }

// NopCache never hits. Used when no Redis is configured.
type NopCache struct{}

func (NopCache) Get(context.Context, string, any) (bool, error) { return false, nil }
func (NopCache) Set(context.Context, string, any, int) error    { return nil }
func (NopCache) Del(context.Context, string) error              { return nil }

// evict drops keys, logging failures; a stale entry ages out with its TTL.
func evict(ctx context.Context, c domain.Cache, keys ...string) {
	for _, k := range keys {
		if err := c.Del(ctx, k); err != nil {
			log.Warn().Err(err).Str("key", k).Msg("cache eviction failed")
		}
	}
}

// EvictBusiness drops every cached read model that embeds business id.
// Failures are logged; a stale entry ages out with its TTL.
func EvictBusiness(ctx context.Context, c domain.Cache, id string) {
	evict(ctx, c, keyBusiness(id), keyPublicListing, keyFeatured)
}
