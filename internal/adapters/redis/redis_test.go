package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisad "neighborhood_directory/internal/adapters/redis"
	"neighborhood_directory/internal/domain"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redisad.Cache, *redisad.Sessions) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redisad.NewClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	return mr, redisad.NewCache(c), redisad.NewSessions(c)
}

func TestCache_SetGetDel(t *testing.T) {
	mr, cache, _ := newRedis(t)
	ctx := context.Background()

	var got []domain.Business
	ok, err := cache.Get(ctx, "businesses:public", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	in := []domain.Business{{ID: "b1", Name: "Pizzaria", Category: domain.CategoryRestaurant, IsPublic: true}}
	require.NoError(t, cache.Set(ctx, "businesses:public", in, 60))
	assert.Equal(t, 60*time.Second, mr.TTL("businesses:public"))

	ok, err = cache.Get(ctx, "businesses:public", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Pizzaria", got[0].Name)

	require.NoError(t, cache.Del(ctx, "businesses:public"))
	ok, err = cache.Get(ctx, "businesses:public", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_CorruptPayloadIsMiss(t *testing.T) {
	mr, cache, _ := newRedis(t)
	require.NoError(t, mr.Set("business:b1", "{not json"))

	var b domain.Business
	ok, err := cache.Get(context.Background(), "business:b1", &b)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessions_Lifecycle(t *testing.T) {
	mr, _, sessions := newRedis(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	s := domain.Session{ID: "s1", UserID: "u1", Role: domain.RoleAdmin, Name: "Ana",
		Email: "ana@example.com", IssuedAt: now, ExpiresAt: now.Add(time.Hour)}

	require.NoError(t, sessions.Save(ctx, s, time.Hour))
	got, err := sessions.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, s.UserID, got.UserID)
	assert.Equal(t, domain.RoleAdmin, got.Role)
	assert.True(t, s.ExpiresAt.Equal(got.ExpiresAt))

	require.NoError(t, sessions.Delete(ctx, "s1"))
	_, err = sessions.Load(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	require.NoError(t, sessions.Save(ctx, domain.Session{ID: "s2"}, time.Minute))
	mr.FastForward(2 * time.Minute)
	_, err = sessions.Load(ctx, "s2")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}
