package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"neighborhood_directory/internal/domain"
)

// AuthService owns account registration and the session lifecycle:
// Login opens a session, Resolve reads it per request, Logout closes it.
type AuthService struct {
	users    domain.UserRepository
	sessions domain.SessionStore
	cache    domain.Cache
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

// NewAuthService takes the listing cache so a business registered with its
// owner shows up in search without waiting for the TTL.
func NewAuthService(u domain.UserRepository, s domain.SessionStore, c domain.Cache, secret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	if c == nil {
		c = NopCache{}
	}
	return &AuthService{users: u, sessions: s, cache: c, secret: []byte(secret), ttl: ttl,
		now: func() time.Time { return time.Now().UTC() }}
}

func (s *AuthService) newUser(reg domain.Registration, role domain.Role) (domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}
	return domain.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(reg.Name),
		Email:        domain.NormalizeEmail(reg.Email),
		Phone:        strings.TrimSpace(reg.Phone),
		Favorites:    []string{},
		Role:         role,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}, nil
}

// Register creates a resident account.
func (s *AuthService) Register(ctx context.Context, reg domain.Registration) (domain.User, error) {
	reg.Email = domain.NormalizeEmail(reg.Email)
	if err := reg.Validate(); err != nil {
		return domain.User{}, err
	}
	u, err := s.newUser(reg, domain.RoleResident)
	if err != nil {
		return domain.User{}, err
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return domain.User{}, err
	}
	log.Info().Str("user_id", u.ID).Msg("resident registered")
	return u, nil
}

// RegisterBusiness creates an owner account together with its first business.
func (s *AuthService) RegisterBusiness(ctx context.Context, reg domain.Registration, b domain.Business) (domain.User, domain.Business, error) {
	reg.Email = domain.NormalizeEmail(reg.Email)
	if err := reg.Validate(); err != nil {
		return domain.User{}, domain.Business{}, err
	}
	b.Name = strings.TrimSpace(b.Name)
	b.Address = strings.TrimSpace(b.Address)
	b.Category = b.Category.Canonical()
	if err := b.Validate(); err != nil {
		return domain.User{}, domain.Business{}, err
	}
	u, err := s.newUser(reg, domain.RoleOwner)
	if err != nil {
		return domain.User{}, domain.Business{}, err
	}

	now := s.now()
	b.ID = uuid.NewString()
	b.OwnerID = u.ID
	b.Rating, b.ReviewCount, b.Featured = nil, 0, false
	b.IsPublic = true
	b.CreatedAt, b.UpdatedAt = now, now
	if b.Images == nil {
		b.Images = []string{}
	}
	if err := s.users.CreateOwner(ctx, u, b); err != nil {
		return domain.User{}, domain.Business{}, err
	}
	EvictBusiness(ctx, s.cache, b.ID)
	log.Info().Str("user_id", u.ID).Str("business_id", b.ID).Msg("business registered")
	return u, b, nil
}

type claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Login checks credentials and opens a session. The returned token carries
// the session ID; the session itself lives in the session store.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, domain.Session, error) {
	u, err := s.users.GetUserByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, domain.ErrNotFound) {
		return "", domain.Session{}, domain.ErrUnknownAccount
	}
	if err != nil {
		return "", domain.Session{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", domain.Session{}, domain.ErrInvalidCredentials
	}
	if u.Disabled {
		return "", domain.Session{}, domain.ErrAccountDisabled
	}

	now := s.now()
	sess := domain.Session{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		Role:      u.Role,
		Name:      u.Name,
		Email:     u.Email,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Save(ctx, sess, s.ttl); err != nil {
		return "", domain.Session{}, err
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	})
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", domain.Session{}, err
	}
	log.Info().Str("user_id", u.ID).Str("session_id", sess.ID).Msg("session opened")
	return signed, sess, nil
}

func (s *AuthService) sessionID(token string) (string, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || c.ID == "" {
		return "", domain.ErrUnauthenticated
	}
	return c.ID, nil
}

// Resolve maps a bearer token to its open session. The account is re-read so
// a disabled, deleted or re-roled user takes effect on the next request.
func (s *AuthService) Resolve(ctx context.Context, token string) (domain.Session, error) {
	id, err := s.sessionID(token)
	if err != nil {
		return domain.Session{}, err
	}
	sess, err := s.sessions.Load(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}
	if sess.Expired(s.now()) {
		_ = s.sessions.Delete(ctx, id)
		return domain.Session{}, domain.ErrUnauthenticated
	}
	u, err := s.users.GetUser(ctx, sess.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		_ = s.sessions.Delete(ctx, id)
		return domain.Session{}, domain.ErrUnauthenticated
	}
	if err != nil {
		return domain.Session{}, err
	}
	if u.Disabled {
		_ = s.sessions.Delete(ctx, id)
		return domain.Session{}, domain.ErrAccountDisabled
	}
	sess.Role, sess.Name, sess.Email = u.Role, u.Name, u.Email
	return sess, nil
}

// Logout closes the session behind token. Closing an unknown session is not an error.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	id, err := s.sessionID(token)
	if err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, id); err != nil {
		return err
	}
	log.Info().Str("session_id", id).Msg("session closed")
	return nil
}
