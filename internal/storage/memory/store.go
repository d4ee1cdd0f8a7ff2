// Package memory is a process-local listing store for development and tests.
// A single mutex serializes every write, so read-modify-write updates are atomic.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"neighborhood_directory/internal/domain"
	"neighborhood_directory/internal/rating"
)

type Store struct {
	mu         sync.RWMutex
	businesses map[string]domain.Business
	order      []string // insertion order of business IDs
	reviews    map[string][]domain.Review
	users      map[string]domain.User
	now        func() time.Time
}

func New() *Store {
	return &Store{
		businesses: map[string]domain.Business{},
		reviews:    map[string][]domain.Review{},
		users:      map[string]domain.User{},
		now:        func() time.Time { return time.Now().UTC() },
	}
}

/********** businesses **********/

func (s *Store) CreateBusiness(ctx context.Context, b domain.Business) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putBusiness(b)
	return nil
}

func (s *Store) putBusiness(b domain.Business) {
	if _, ok := s.businesses[b.ID]; !ok {
		s.order = append(s.order, b.ID)
	}
	s.businesses[b.ID] = cloneBusiness(b)
}

func (s *Store) UpdateBusiness(ctx context.Context, b domain.Business) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.businesses[b.ID]
	if !ok {
		return domain.ErrNotFound
	}
	// aggregate and curation fields are not owner-writable
	b.Rating, b.ReviewCount, b.Featured = cur.Rating, cur.ReviewCount, cur.Featured
	b.OwnerID, b.CreatedAt = cur.OwnerID, cur.CreatedAt
	b.UpdatedAt = s.now()
	s.businesses[b.ID] = cloneBusiness(b)
	return nil
}

func (s *Store) DeleteBusiness(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.businesses[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.businesses, id)
	delete(s.reviews, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	for uid, u := range s.users {
		u.Favorites = without(u.Favorites, id)
		s.users[uid] = u
	}
	return nil
}

func (s *Store) SetFeatured(ctx context.Context, id string, featured bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.businesses[id]
	if !ok {
		return domain.ErrNotFound
	}
	var current []string
	for _, oid := range s.order {
		if s.businesses[oid].Featured {
			current = append(current, oid)
		}
	}
	next, err := domain.ToggleFeatured(current, id, featured)
	if err != nil {
		return err
	}
	b.Featured = contains(next, id)
	b.UpdatedAt = s.now()
	s.businesses[id] = b
	return nil
}

func (s *Store) GetBusiness(ctx context.Context, id string) (domain.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.businesses[id]
	if !ok {
		return domain.Business{}, domain.ErrNotFound
	}
	return cloneBusiness(b), nil
}

// list returns businesses newest first, matching the MySQL ordering.
func (s *Store) list(keep func(domain.Business) bool) []domain.Business {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Business, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		b := s.businesses[s.order[i]]
		if keep(b) {
			out = append(out, cloneBusiness(b))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *Store) ListPublicBusinesses(ctx context.Context) ([]domain.Business, error) {
	return s.list(func(b domain.Business) bool { return b.IsPublic }), nil
}

func (s *Store) ListAllBusinesses(ctx context.Context) ([]domain.Business, error) {
	return s.list(func(domain.Business) bool { return true }), nil
}

func (s *Store) ListBusinessesByOwner(ctx context.Context, ownerID string) ([]domain.Business, error) {
	return s.list(func(b domain.Business) bool { return b.OwnerID == ownerID }), nil
}

func (s *Store) ListFeatured(ctx context.Context) ([]domain.Business, error) {
	return s.list(func(b domain.Business) bool { return b.Featured && b.IsPublic }), nil
}

func (s *Store) ListBusinessIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...), nil
}

/********** reviews **********/

func (s *Store) AddReview(ctx context.Context, r domain.Review) (rating.Aggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.businesses[r.BusinessID]
	if !ok {
		return rating.Aggregate{}, domain.ErrNotFound
	}
	cur := 0.0
	if b.Rating != nil {
		cur = *b.Rating
	}
	mean, n, err := rating.Fold(cur, b.ReviewCount, r.Rating)
	if err != nil {
		return rating.Aggregate{}, err
	}
	b.Rating, b.ReviewCount = &mean, n
	s.businesses[b.ID] = b
	s.reviews[r.BusinessID] = append(s.reviews[r.BusinessID], r)
	return sumOf(s.reviews[r.BusinessID]), nil
}

func (s *Store) ListReviews(ctx context.Context, businessID string, limit int) ([]domain.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rs := append([]domain.Review(nil), s.reviews[businessID]...)
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].CreatedAt.After(rs[j].CreatedAt) })
	if limit > 0 && len(rs) > limit {
		rs = rs[:limit]
	}
	return rs, nil
}

func (s *Store) StoredAggregate(ctx context.Context, businessID string) (rating.Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.businesses[businessID]
	if !ok {
		return rating.Aggregate{}, domain.ErrNotFound
	}
	return storedAggregate(b), nil
}

func storedAggregate(b domain.Business) rating.Aggregate {
	agg := rating.Aggregate{Count: int64(b.ReviewCount)}
	if b.Rating != nil {
		agg.Sum = int64(math.Round(*b.Rating * float64(b.ReviewCount)))
	}
	return agg
}

// RecomputeAggregate rebuilds the aggregate from the stored reviews under the
// write lock, so no review can land between the count and the rewrite.
func (s *Store) RecomputeAggregate(ctx context.Context, businessID string) (before, after rating.Aggregate, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.businesses[businessID]
	if !ok {
		return before, after, domain.ErrNotFound
	}
	before = storedAggregate(b)
	after = sumOf(s.reviews[businessID])
	if after != before {
		b.Rating, b.ReviewCount = after.MeanPtr(), int(after.Count)
		s.businesses[businessID] = b
	}
	return before, after, nil
}

// SetAggregate overwrites the stored aggregate without looking at reviews.
// It exists to stage drift in tests.
func (s *Store) SetAggregate(ctx context.Context, businessID string, agg rating.Aggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.businesses[businessID]
	if !ok {
		return domain.ErrNotFound
	}
	b.Rating, b.ReviewCount = agg.MeanPtr(), int(agg.Count)
	s.businesses[businessID] = b
	return nil
}

// sumOf skips out-of-range ratings, matching the MySQL recount.
func sumOf(rs []domain.Review) rating.Aggregate {
	var agg rating.Aggregate
	for _, r := range rs {
		if next, err := agg.Add(r.Rating); err == nil {
			agg = next
		}
	}
	return agg
}

/********** users **********/

func (s *Store) CreateUser(ctx context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putUser(u)
}

func (s *Store) putUser(u domain.User) error {
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return domain.ErrEmailTaken
		}
	}
	u.Favorites = append([]string(nil), u.Favorites...)
	s.users[u.ID] = u
	return nil
}

func (s *Store) CreateOwner(ctx context.Context, u domain.User, b domain.Business) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.putUser(u); err != nil {
		return err
	}
	s.putBusiness(b)
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	u.Favorites = append([]string(nil), u.Favorites...)
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			u.Favorites = append([]string(nil), u.Favorites...)
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		u.Favorites = append([]string(nil), u.Favorites...)
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) updateUser(id string, fn func(*domain.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(&u)
	s.users[id] = u
	return nil
}

func (s *Store) SetUserDisabled(ctx context.Context, id string, disabled bool) error {
	return s.updateUser(id, func(u *domain.User) { u.Disabled = disabled })
}

func (s *Store) SetUserRole(ctx context.Context, id string, role domain.Role) error {
	return s.updateUser(id, func(u *domain.User) { u.Role = role })
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return domain.ErrNotFound
	}
	for _, b := range s.businesses {
		if b.OwnerID == id {
			return domain.ErrOwnsBusinesses
		}
	}
	delete(s.users, id)
	return nil
}

func (s *Store) AddFavorite(ctx context.Context, userID, businessID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.businesses[businessID]; !ok {
		return domain.ErrNotFound
	}
	u, ok := s.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	if !contains(u.Favorites, businessID) {
		u.Favorites = append(u.Favorites, businessID)
	}
	s.users[userID] = u
	return nil
}

func (s *Store) RemoveFavorite(ctx context.Context, userID, businessID string) error {
	return s.updateUser(userID, func(u *domain.User) { u.Favorites = without(u.Favorites, businessID) })
}

/********** helpers **********/

func cloneBusiness(b domain.Business) domain.Business {
	b.Images = append([]string(nil), b.Images...)
	b.Hours = b.Hours.Clone()
	if b.Coords != nil {
		c := *b.Coords
		b.Coords = &c
	}
	if b.Rating != nil {
		r := *b.Rating
		b.Rating = &r
	}
	return b
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func without(xs []string, x string) []string {
	out := xs[:0:0]
	for _, v := range xs {
		if v != x {
			out = append(out, v)
		}
	}
	return out
}
