package seed_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neighborhood_directory/internal/domain"
	"neighborhood_directory/internal/seed"
	"neighborhood_directory/internal/storage/memory"
)

const fixture = `
users:
  - name: Ana Admin
    email: Ana@Example.com
    password: segredo1
    role: admin
  - name: Dona Rosa
    email: rosa@example.com
    password: segredo2
    role: owner
businesses:
  - name: Pizzaria Bella
    owner: rosa@example.com
    category: restaurante
    address: Rua das Flores, 10
    coords: {lat: -23.55, lon: -46.63}
    hours:
      friday: {open: true, opens: "18:00", closes: "23:30"}
    featured: true
    reviews:
      - author: ana@example.com
        rating: 5
        comment: massa perfeita
      - author: rosa@example.com
        rating: 4
        comment: boa
  - name: Escritório Fechado
    owner: rosa@example.com
    category: servicos
    address: Av. Central, 200
    public: false
`

func repos(s *memory.Store) seed.Repos {
	return seed.Repos{Businesses: s, Reviews: s, Users: s}
}

func TestParse_ReadsNestedFixture(t *testing.T) {
	f, err := seed.Parse(strings.NewReader(fixture))
	require.NoError(t, err)
	require.Len(t, f.Users, 2)
	require.Len(t, f.Businesses, 2)
	assert.Equal(t, domain.RoleAdmin, f.Users[0].Role)
	require.NotNil(t, f.Businesses[0].Coords)
	assert.Equal(t, -46.63, f.Businesses[0].Coords.Lon)
	assert.Equal(t, "23:30", f.Businesses[0].Hours["friday"].Closes)
	require.NotNil(t, f.Businesses[1].Public)
	assert.False(t, *f.Businesses[1].Public)
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := seed.Parse(strings.NewReader("users:\n  - nome: x\n"))
	require.Error(t, err)
}

func TestParse_EmptyInput(t *testing.T) {
	f, err := seed.Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, f.Businesses)
}

func TestApply_WritesThroughRepositories(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	f, err := seed.Parse(strings.NewReader(fixture))
	require.NoError(t, err)

	res, err := seed.Apply(ctx, repos(s), f)
	require.NoError(t, err)
	assert.Equal(t, seed.Result{Users: 2, Businesses: 2, Reviews: 2, Featured: 1}, res)

	admin, err := s.GetUserByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)
	assert.NotEqual(t, "segredo1", admin.PasswordHash)

	public, err := s.ListPublicBusinesses(ctx)
	require.NoError(t, err)
	require.Len(t, public, 1)
	b := public[0]
	assert.Equal(t, "Pizzaria Bella", b.Name)
	assert.True(t, b.Featured)
	assert.Equal(t, 2, b.ReviewCount)
	require.NotNil(t, b.Rating)
	assert.InDelta(t, 4.5, *b.Rating, 1e-12)

	all, err := s.ListAllBusinesses(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestApply_RerunReusesExistingUsers(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	f, err := seed.Parse(strings.NewReader(fixture))
	require.NoError(t, err)
	_, err = seed.Apply(ctx, repos(s), f)
	require.NoError(t, err)

	f.Businesses = f.Businesses[1:]
	res, err := seed.Apply(ctx, repos(s), f)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Users)
	assert.Equal(t, 1, res.Businesses)
}

type recordingCache struct{ deleted []string }

func (c *recordingCache) Get(context.Context, string, any) (bool, error) { return false, nil }
func (c *recordingCache) Set(context.Context, string, any, int) error    { return nil }
func (c *recordingCache) Del(_ context.Context, key string) error {
	c.deleted = append(c.deleted, key)
	return nil
}

func TestApply_EvictsListingCache(t *testing.T) {
	s := memory.New()
	c := &recordingCache{}
	f, err := seed.Parse(strings.NewReader(fixture))
	require.NoError(t, err)

	r := repos(s)
	r.Cache = c
	_, err = seed.Apply(context.Background(), r, f)
	require.NoError(t, err)
	assert.Contains(t, c.deleted, "businesses:public")
	assert.Contains(t, c.deleted, "businesses:featured")
}

func TestApply_UnknownOwner(t *testing.T) {
	f := seed.File{Businesses: []seed.Business{{Name: "X", Owner: "ghost@example.com", Category: "outros", Address: "a"}}}
	_, err := seed.Apply(context.Background(), repos(memory.New()), f)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestApply_FeaturedOverCapIsSkipped(t *testing.T) {
	f := seed.File{Users: []seed.User{{Name: "O", Email: "o@example.com", Password: "segredo", Role: domain.RoleOwner}}}
	for _, n := range []string{"A", "B", "C", "D"} {
		f.Businesses = append(f.Businesses, seed.Business{Name: n, Owner: "o@example.com", Category: "comercio", Address: "x", Featured: true})
	}
	res, err := seed.Apply(context.Background(), repos(memory.New()), f)
	require.NoError(t, err)
	assert.Equal(t, domain.MaxFeatured, res.Featured)
	assert.Equal(t, 4, res.Businesses)
}
