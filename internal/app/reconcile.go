package app

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"neighborhood_directory/internal/adapters/observability"
	"neighborhood_directory/internal/domain"
)

// ReconcileService recomputes rating aggregates from stored reviews and
// rewrites any that drifted.
type ReconcileService struct {
	businesses domain.BusinessRepository
	reviews    domain.ReviewRepository
	cache      domain.Cache
	workers    int64
}

func NewReconcileService(b domain.BusinessRepository, r domain.ReviewRepository, c domain.Cache, workers int) *ReconcileService {
	if c == nil {
		c = NopCache{}
	}
	if workers < 1 {
		workers = 1
	}
	return &ReconcileService{businesses: b, reviews: r, cache: c, workers: int64(workers)}
}

type ReconcileReport struct {
	Checked  int64 `json:"checked"`
	Repaired int64 `json:"repaired"`
	Failed   int64 `json:"failed"`
}

// ReconcileBusiness reports whether the stored aggregate had to be rewritten.
func (s *ReconcileService) ReconcileBusiness(ctx context.Context, id string) (bool, error) {
	have, want, err := s.reviews.RecomputeAggregate(ctx, id)
	if err != nil {
		return false, err
	}
	if have == want {
		return false, nil
	}
	observability.ObserveRatingRepair()
	EvictBusiness(ctx, s.cache, id)
	log.Warn().Str("business_id", id).
		Int64("stored_sum", have.Sum).Int64("stored_count", have.Count).
		Int64("sum", want.Sum).Int64("count", want.Count).
		Msg("rating aggregate repaired")
	return true, nil
}

// ReconcileAll checks every business with at most workers in flight.
// Per-business failures are counted, not returned.
func (s *ReconcileService) ReconcileAll(ctx context.Context) (ReconcileReport, error) {
	ids, err := s.businesses.ListBusinessIDs(ctx)
	if err != nil {
		return ReconcileReport{}, err
	}

	var rep ReconcileReport
	sem := semaphore.NewWeighted(s.workers)
	var wg sync.WaitGroup

	for _, id := range ids {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return rep, err
		}

		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer sem.Release(1)

			atomic.AddInt64(&rep.Checked, 1)
			repaired, err := s.ReconcileBusiness(ctx, id)
			if err != nil {
				atomic.AddInt64(&rep.Failed, 1)
				log.Warn().Str("business_id", id).Err(err).Msg("reconcile failed")
				return
			}
			if repaired {
				atomic.AddInt64(&rep.Repaired, 1)
			}
		}(id)
	}

	wg.Wait()
	return rep, nil
}
