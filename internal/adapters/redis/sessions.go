package redisad

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"neighborhood_directory/internal/domain"
)

const sessionPrefix = "session:"

// Sessions keeps open sessions until logout or TTL expiry.
type Sessions struct{ c *redis.Client }

func NewSessions(c *redis.Client) *Sessions { return &Sessions{c: c} }

func (s *Sessions) Save(ctx context.Context, sess domain.Session, ttl time.Duration) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.c.Set(ctx, sessionPrefix+sess.ID, b, ttl).Err()
}

// Load returns domain.ErrUnauthenticated for unknown, expired or closed sessions.
func (s *Sessions) Load(ctx context.Context, id string) (domain.Session, error) {
	b, err := s.c.Get(ctx, sessionPrefix+id).Bytes()
	if err == redis.Nil {
		return domain.Session{}, domain.ErrUnauthenticated
	}
	if err != nil {
		return domain.Session{}, err
	}
	var sess domain.Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return domain.Session{}, domain.ErrUnauthenticated
	}
	return sess, nil
}

func (s *Sessions) Delete(ctx context.Context, id string) error {
	return s.c.Del(ctx, sessionPrefix+id).Err()
}
