package mysql

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neighborhood_directory/internal/domain"
	"neighborhood_directory/internal/rating"
)

func newMockRepo(t *testing.T) (*Repo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock
}

func sampleReview() domain.Review {
	return domain.Review{
		ID:         "r1",
		BusinessID: "b1",
		AuthorID:   "u1",
		AuthorName: "Ana",
		Rating:     5,
		Comment:    "ótimo",
		CreatedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestAddReview_FoldsInsideTransaction(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(bumpAggregateSQL)).
		WithArgs(int64(5), "b1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `reviews`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(selectAggregateSQL)).
		WithArgs("b1").
		WillReturnRows(sqlmock.NewRows([]string{"rating_sum", "review_count"}).AddRow(13, 3))
	mock.ExpectCommit()

	agg, err := repo.AddReview(context.Background(), sampleReview())
	require.NoError(t, err)
	assert.Equal(t, rating.Aggregate{Sum: 13, Count: 3}, agg)
	mean, ok := agg.Mean()
	require.True(t, ok)
	assert.InDelta(t, 13.0/3.0, mean, 1e-12)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddReview_UnknownBusinessRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(bumpAggregateSQL)).
		WithArgs(int64(5), "b1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.AddReview(context.Background(), sampleReview())
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddReview_InsertFailureRollsBackAggregate(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(bumpAggregateSQL)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `reviews`").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := repo.AddReview(context.Background(), sampleReview())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert review r1")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecomputeAggregate_RewritesDriftUnderLock(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockAggregateSQL)).
		WithArgs("b1").
		WillReturnRows(sqlmock.NewRows([]string{"rating_sum", "review_count"}).AddRow(5, 1))
	mock.ExpectQuery(regexp.QuoteMeta(recountReviewsSQL)).
		WithArgs("b1").
		WillReturnRows(sqlmock.NewRows([]string{"sum", "count"}).AddRow(6, 2))
	mock.ExpectExec(regexp.QuoteMeta(setAggregateSQL)).
		WithArgs(int64(6), int64(2), "b1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	before, after, err := repo.RecomputeAggregate(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, rating.Aggregate{Sum: 5, Count: 1}, before)
	assert.Equal(t, rating.Aggregate{Sum: 6, Count: 2}, after)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecomputeAggregate_NoDriftSkipsWrite(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockAggregateSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"rating_sum", "review_count"}).AddRow(9, 2))
	mock.ExpectQuery(regexp.QuoteMeta(recountReviewsSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"sum", "count"}).AddRow(9, 2))
	mock.ExpectCommit()

	before, after, err := repo.RecomputeAggregate(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecomputeAggregate_UnknownBusinessRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockAggregateSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"rating_sum", "review_count"}))
	mock.ExpectRollback()

	_, _, err := repo.RecomputeAggregate(context.Background(), "zz")
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func expectFeaturedLocks(mock sqlmock.Sqlmock, id string, featured ...string) {
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockFeaturedGuardSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(lockBusinessSQL)).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id))
	rows := sqlmock.NewRows([]string{"id"})
	for _, f := range featured {
		rows.AddRow(f)
	}
	mock.ExpectQuery(regexp.QuoteMeta(featuredIDsSQL)).WillReturnRows(rows)
}

func TestSetFeatured_CapReachedRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)
	expectFeaturedLocks(mock, "d", "a", "b", "c")
	mock.ExpectRollback()

	err := repo.SetFeatured(context.Background(), "d", true)
	require.ErrorIs(t, err, domain.ErrFeaturedCapReached)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetFeatured_UnderCapCommits(t *testing.T) {
	repo, mock := newMockRepo(t)
	expectFeaturedLocks(mock, "c", "a", "b")
	mock.ExpectExec(regexp.QuoteMeta(setFeaturedSQL)).
		WithArgs(true, sqlmock.AnyArg(), "c").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SetFeatured(context.Background(), "c", true))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetFeatured_UnknownBusiness(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockFeaturedGuardSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(lockBusinessSQL)).
		WithArgs("zz").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := repo.SetFeatured(context.Background(), "zz", false)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("INSERT INTO `users`").
		WillReturnError(&mysqldrv.MySQLError{Number: errDuplicateKey, Message: "Duplicate entry"})

	err := repo.CreateUser(context.Background(), domain.User{ID: "u1", Email: "a@b.c", Role: domain.RoleResident})
	require.ErrorIs(t, err, domain.ErrEmailTaken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUser_OwnerWithBusinesses(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("DELETE FROM `users`").
		WillReturnError(&mysqldrv.MySQLError{Number: errIsReferenced, Message: "Cannot delete or update a parent row"})

	err := repo.DeleteUser(context.Background(), "u1")
	require.ErrorIs(t, err, domain.ErrOwnsBusinesses)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOwner_BusinessFailureRollsBackUser(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `users`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `businesses`").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err := repo.CreateOwner(context.Background(),
		domain.User{ID: "u1", Email: "o@b.c", Role: domain.RoleOwner},
		domain.Business{ID: "b1", OwnerID: "u1", Name: "Padaria", Category: domain.CategoryRestaurant})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBusiness_ComputesRatingFromAggregate(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	cols := make([]string, len(businessColumns))
	for i, c := range businessColumns {
		cols[i] = c.(string)
	}
	mock.ExpectQuery("SELECT .* FROM `businesses`").
		WithArgs("b1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"b1", "u1", "Pizzaria", "restaurante", "Rua A, 1", -23.5, -46.6,
			"forno a lenha", "", "", `["https://img/1.jpg"]`, `{"monday":{"open":true,"opens":"18:00","closes":"23:00"}}`, true,
			9, 2, true, false, now, now,
		))

	b, err := repo.GetBusiness(context.Background(), "b1")
	require.NoError(t, err)
	require.NotNil(t, b.Rating)
	assert.InDelta(t, 4.5, *b.Rating, 1e-12)
	assert.Equal(t, 2, b.ReviewCount)
	require.NotNil(t, b.Coords)
	assert.Equal(t, -23.5, b.Coords.Lat)
	assert.Equal(t, []string{"https://img/1.jpg"}, b.Images)
	assert.Equal(t, "18:00", b.Hours["monday"].Opens)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBusiness_Missing(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT .* FROM `businesses`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetBusiness(context.Background(), "nope")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
