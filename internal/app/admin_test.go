package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neighborhood_directory/internal/app"
	"neighborhood_directory/internal/domain"
)

func TestSetFeatured_CapOfThree(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"a", "b", "c", "d"} {
		f.business(t, id, "Loja "+id, domain.CategoryCommerce, true)
	}
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, f.admin.SetFeatured(ctx, id, true))
	}
	err := f.admin.SetFeatured(ctx, "d", true)
	require.ErrorIs(t, err, domain.ErrFeaturedCapReached)

	featured, err := f.directory.Featured(ctx)
	require.NoError(t, err)
	assert.Len(t, featured, 3)

	require.NoError(t, f.admin.SetFeatured(ctx, "b", false))
	require.NoError(t, f.admin.SetFeatured(ctx, "d", true))

	featured, err = f.directory.Featured(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Loja a", "Loja c", "Loja d"}, names(featured))

	// re-featuring an already featured business is a no-op, even at the cap
	require.NoError(t, f.admin.SetFeatured(ctx, "a", true))
}

func TestDeleteBusiness_DropsFavoritesAndPublishes(t *testing.T) {
	f := newFixture(t)
	f.business(t, "b1", "Pizzaria", domain.CategoryRestaurant, true)
	ctx := context.Background()
	u, err := f.auth.Register(ctx, registration("ana@example.com"))
	require.NoError(t, err)
	sess := domain.Session{UserID: u.ID, Role: domain.RoleResident}
	require.NoError(t, f.account.AddFavorite(ctx, sess, "b1"))

	require.NoError(t, f.admin.DeleteBusiness(ctx, "b1"))
	favs, err := f.account.Favorites(ctx, sess)
	require.NoError(t, err)
	assert.Empty(t, favs)
	assert.Contains(t, f.events.types(), domain.EventBusinessDeleted)

	assert.ErrorIs(t, f.admin.DeleteBusiness(ctx, "b1"), domain.ErrNotFound)
}

func TestUserModeration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u, err := f.auth.Register(ctx, registration("ana@example.com"))
	require.NoError(t, err)
	me := adminSession("admin-1")

	require.NoError(t, f.admin.SetUserDisabled(ctx, me, u.ID, true))
	users, err := f.admin.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.True(t, users[0].Disabled)

	assert.True(t, domain.IsValidation(f.admin.SetUserDisabled(ctx, me, me.UserID, true)))
	assert.True(t, domain.IsValidation(f.admin.DeleteUser(ctx, me, me.UserID)))
	assert.True(t, domain.IsValidation(f.admin.SetUserRole(ctx, u.ID, "superuser")))

	require.NoError(t, f.admin.SetUserRole(ctx, u.ID, domain.RoleAdmin))
	require.NoError(t, f.admin.DeleteUser(ctx, me, u.ID))
	assert.ErrorIs(t, f.admin.DeleteUser(ctx, me, u.ID), domain.ErrNotFound)
}

func TestDeleteUser_RefusesOwnerWithBusinesses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, b, err := f.auth.RegisterBusiness(ctx, registration("dona@example.com"), domain.Business{
		Name: "Padaria", Category: domain.CategoryRestaurant, Address: "Rua A, 1",
	})
	require.NoError(t, err)
	me := adminSession("admin-1")

	assert.ErrorIs(t, f.admin.DeleteUser(ctx, me, owner.ID), domain.ErrOwnsBusinesses)
	_, err = f.store.GetUser(ctx, owner.ID)
	require.NoError(t, err)

	require.NoError(t, f.admin.DeleteBusiness(ctx, b.ID))
	require.NoError(t, f.admin.DeleteUser(ctx, me, owner.ID))
}

func TestRequire(t *testing.T) {
	ctx := context.Background()
	_, err := app.Require(ctx)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	ctx = app.WithSession(ctx, resident("u1"))
	s, err := app.Require(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1", s.UserID)

	_, err = app.Require(ctx, domain.RoleAdmin)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = app.Require(ctx, domain.RoleOwner, domain.RoleResident)
	assert.NoError(t, err)
	assert.NotNil(t, app.Viewer(ctx))
	assert.Nil(t, app.Viewer(context.Background()))
}
