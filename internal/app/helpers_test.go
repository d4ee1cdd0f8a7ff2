package app_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"neighborhood_directory/internal/app"
	"neighborhood_directory/internal/domain"
	"neighborhood_directory/internal/search"
	"neighborhood_directory/internal/storage/memory"
)

// ---- fakes ----

type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
	hits  int
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeGeocoder struct {
	co    domain.Coords
	err   error
	calls int
}

func (g *fakeGeocoder) Geocode(ctx context.Context, address string) (domain.Coords, error) {
	g.calls++
	return g.co, g.err
}

// ---- fixture ----

type fixture struct {
	store     *memory.Store
	cache     *fakeCache
	events    *recordingPublisher
	directory *app.DirectoryService
	reviews   *app.ReviewService
	admin     *app.AdminService
	auth      *app.AuthService
	account   *app.AccountService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	c := &fakeCache{}
	ev := &recordingPublisher{}
	return &fixture{
		store:     st,
		cache:     c,
		events:    ev,
		directory: app.NewDirectoryService(st, st, c, time.Minute, search.New("pt-BR")),
		reviews:   app.NewReviewService(st, st, c, ev),
		admin:     app.NewAdminService(st, st, c, ev),
		auth:      app.NewAuthService(st, memory.NewSessions(), c, "test-secret", time.Hour),
		account:   app.NewAccountService(st, st),
	}
}

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func (f *fixture) business(t *testing.T, id, name string, cat domain.Category, public bool, ratings ...int) domain.Business {
	t.Helper()
	ctx := context.Background()
	b := domain.Business{
		ID: id, OwnerID: "owner-" + id, Name: name, Category: cat, Address: "Rua " + name,
		Images: []string{}, IsPublic: public, CreatedAt: t0, UpdatedAt: t0,
	}
	require.NoError(t, f.store.CreateBusiness(ctx, b))
	for i, r := range ratings {
		_, err := f.store.AddReview(ctx, domain.Review{
			ID: id + "-r" + string(rune('a'+i)), BusinessID: id, AuthorID: "seed", Rating: r, Comment: "seed",
			CreatedAt: t0.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
	got, err := f.store.GetBusiness(ctx, id)
	require.NoError(t, err)
	return got
}

func resident(id string) domain.Session {
	return domain.Session{ID: "s-" + id, UserID: id, Role: domain.RoleResident, Name: "Resident " + id}
}

func adminSession(id string) domain.Session {
	return domain.Session{ID: "s-" + id, UserID: id, Role: domain.RoleAdmin, Name: "Admin " + id}
}
