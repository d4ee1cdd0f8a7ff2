package app

import (
	"context"
	"errors"

	"neighborhood_directory/internal/domain"
)

// AccountService serves the signed-in user's profile and favorites.
type AccountService struct {
	users      domain.UserRepository
	businesses domain.BusinessRepository
}

func NewAccountService(u domain.UserRepository, b domain.BusinessRepository) *AccountService {
	return &AccountService{users: u, businesses: b}
}

func (s *AccountService) Me(ctx context.Context, sess domain.Session) (domain.User, error) {
	return s.users.GetUser(ctx, sess.UserID)
}

// Favorites resolves the user's favorite IDs to the businesses still visible
// to them, in the order they were added.
func (s *AccountService) Favorites(ctx context.Context, sess domain.Session) ([]domain.Business, error) {
	u, err := s.users.GetUser(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Business, 0, len(u.Favorites))
	for _, id := range u.Favorites {
		b, err := s.businesses.GetBusiness(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if canSee(b, &sess) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *AccountService) AddFavorite(ctx context.Context, sess domain.Session, businessID string) error {
	b, err := s.businesses.GetBusiness(ctx, businessID)
	if err != nil {
		return err
	}
	if !canSee(b, &sess) {
		return domain.ErrNotFound
	}
	return s.users.AddFavorite(ctx, sess.UserID, businessID)
}

func (s *AccountService) RemoveFavorite(ctx context.Context, sess domain.Session, businessID string) error {
	return s.users.RemoveFavorite(ctx, sess.UserID, businessID)
}
