package memory

import (
	"context"
	"sync"
	"time"

	"neighborhood_directory/internal/domain"
)

// Sessions is an in-process session store honoring per-entry TTLs.
type Sessions struct {
	mu  sync.Mutex
	m   map[string]sessionEntry
	now func() time.Time
}

type sessionEntry struct {
	s       domain.Session
	expires time.Time
}

func NewSessions() *Sessions {
	return &Sessions{m: map[string]sessionEntry{}, now: time.Now}
}

func (s *Sessions) Save(ctx context.Context, sess domain.Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[sess.ID] = sessionEntry{s: sess, expires: s.now().Add(ttl)}
	return nil
}

func (s *Sessions) Load(ctx context.Context, id string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[id]
	if !ok {
		return domain.Session{}, domain.ErrUnauthenticated
	}
	if !s.now().Before(e.expires) {
		delete(s.m, id)
		return domain.Session{}, domain.ErrUnauthenticated
	}
	return e.s, nil
}

func (s *Sessions) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, id)
	return nil
}
