package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	"neighborhood_directory/internal/domain"
	"neighborhood_directory/internal/rating"
)

const (
	errDuplicateKey = 1062
	errNoReferenced = 1452
	errIsReferenced = 1451
)

func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func valJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func isMySQLErr(err error, number uint16) bool {
	var me *mysqldrv.MySQLError
	return errors.As(err, &me) && me.Number == number
}

type Repo struct {
	db  *sql.DB
	d   goqu.DialectWrapper
	now func() time.Time
}

func New(db *sql.DB) *Repo {
	return &Repo{db: db, d: goqu.Dialect("mysql"), now: func() time.Time { return time.Now().UTC() }}
}

type scanner interface{ Scan(dest ...any) error }

/********** businesses **********/

func (r *Repo) businessRecord(b domain.Business) (goqu.Record, error) {
	images := b.Images
	if images == nil {
		images = []string{}
	}
	imgs, err := valJSON(images)
	if err != nil {
		return nil, errors.Wrap(err, "marshal images")
	}
	hours := b.Hours
	if hours == nil {
		hours = domain.WeeklyHours{}
	}
	hrs, err := valJSON(hours)
	if err != nil {
		return nil, errors.Wrap(err, "marshal hours")
	}
	var lat, lon *float64
	if b.Coords != nil {
		lat, lon = &b.Coords.Lat, &b.Coords.Lon
	}
	return goqu.Record{
		"name":        b.Name,
		"category":    string(b.Category),
		"address":     b.Address,
		"lat":         valF64(lat),
		"lon":         valF64(lon),
		"description": b.Description,
		"phone":       b.Phone,
		"website":     b.Website,
		"images":      imgs,
		"hours":       hrs,
		"is_open":     b.IsOpen,
		"is_public":   b.IsPublic,
		"updated_at":  b.UpdatedAt,
	}, nil
}

func (r *Repo) insertBusiness(ctx context.Context, ex execer, b domain.Business) error {
	rec, err := r.businessRecord(b)
	if err != nil {
		return err
	}
	rec["id"] = b.ID
	rec["owner_id"] = b.OwnerID
	rec["featured"] = false
	rec["rating_sum"] = 0
	rec["review_count"] = 0
	rec["created_at"] = b.CreatedAt
	q, args, err := r.d.Insert("businesses").Prepared(true).Rows(rec).ToSQL()
	if err != nil {
		return errors.Wrap(err, "build business insert")
	}
	if _, err := ex.ExecContext(ctx, q, args...); err != nil {
		return errors.Wrapf(err, "insert business %s", b.ID)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *Repo) CreateBusiness(ctx context.Context, b domain.Business) error {
	return r.insertBusiness(ctx, r.db, b)
}

// UpdateBusiness writes the owner-editable profile fields only.
func (r *Repo) UpdateBusiness(ctx context.Context, b domain.Business) error {
	b.UpdatedAt = r.now()
	rec, err := r.businessRecord(b)
	if err != nil {
		return err
	}
	q, args, err := r.d.Update("businesses").Prepared(true).Set(rec).Where(goqu.C("id").Eq(b.ID)).ToSQL()
	if err != nil {
		return errors.Wrap(err, "build business update")
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return errors.Wrapf(err, "update business %s", b.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repo) DeleteBusiness(ctx context.Context, id string) error {
	q, args, err := r.d.Delete("businesses").Prepared(true).Where(goqu.C("id").Eq(id)).ToSQL()
	if err != nil {
		return errors.Wrap(err, "build business delete")
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return errors.Wrapf(err, "delete business %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetFeatured runs the featured cap check and the write under the
// featured_guard row lock, so concurrent toggles cannot exceed the cap.
func (r *Repo) SetFeatured(ctx context.Context, id string, featured bool) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin featured toggle")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var guard int
	if err = tx.QueryRowContext(ctx, lockFeaturedGuardSQL).Scan(&guard); err != nil {
		return errors.Wrap(err, "lock featured guard")
	}
	var locked string
	if err = tx.QueryRowContext(ctx, lockBusinessSQL, id).Scan(&locked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return errors.Wrapf(err, "lock business %s", id)
	}

	rows, err := tx.QueryContext(ctx, featuredIDsSQL)
	if err != nil {
		return errors.Wrap(err, "read featured set")
	}
	var current []string
	for rows.Next() {
		var fid string
		if err = rows.Scan(&fid); err != nil {
			rows.Close()
			return errors.Wrap(err, "scan featured id")
		}
		current = append(current, fid)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return errors.Wrap(err, "iterate featured set")
	}

	if _, err = domain.ToggleFeatured(current, id, featured); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, setFeaturedSQL, featured, r.now(), id); err != nil {
		return errors.Wrapf(err, "set featured %s", id)
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit featured toggle")
	}
	return nil
}

func (r *Repo) scanBusiness(s scanner) (domain.Business, error) {
	var (
		b                  domain.Business
		category           string
		lat, lon           sql.NullFloat64
		imagesJSON, hoursJ []byte
		sum, count         int64
	)
	if err := s.Scan(
		&b.ID, &b.OwnerID, &b.Name, &category, &b.Address, &lat, &lon,
		&b.Description, &b.Phone, &b.Website, &imagesJSON, &hoursJ, &b.IsOpen,
		&sum, &count, &b.IsPublic, &b.Featured, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return domain.Business{}, err
	}
	b.Category = domain.Category(category)
	if lat.Valid && lon.Valid {
		b.Coords = &domain.Coords{Lat: lat.Float64, Lon: lon.Float64}
	}
	if err := json.Unmarshal(imagesJSON, &b.Images); err != nil {
		return domain.Business{}, errors.Wrapf(err, "decode images of %s", b.ID)
	}
	if len(hoursJ) > 0 {
		if err := json.Unmarshal(hoursJ, &b.Hours); err != nil {
			return domain.Business{}, errors.Wrapf(err, "decode hours of %s", b.ID)
		}
	}
	agg := rating.Aggregate{Sum: sum, Count: count}
	b.Rating = agg.MeanPtr()
	b.ReviewCount = int(count)
	return b, nil
}

func (r *Repo) queryBusinesses(ctx context.Context, ds *goqu.SelectDataset) ([]domain.Business, error) {
	q, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, errors.Wrap(err, "build business select")
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query businesses")
	}
	defer rows.Close()

	out := []domain.Business{}
	for rows.Next() {
		b, err := r.scanBusiness(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan business")
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate businesses")
	}
	return out, nil
}

// selectBusinesses is the shared listing query, newest first.
func (r *Repo) selectBusinesses() *goqu.SelectDataset {
	return r.d.From("businesses").Select(businessColumns...).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Asc())
}

func (r *Repo) GetBusiness(ctx context.Context, id string) (domain.Business, error) {
	q, args, err := r.d.From("businesses").Select(businessColumns...).
		Where(goqu.C("id").Eq(id)).Prepared(true).ToSQL()
	if err != nil {
		return domain.Business{}, errors.Wrap(err, "build business get")
	}
	b, err := r.scanBusiness(r.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Business{}, domain.ErrNotFound
		}
		return domain.Business{}, errors.Wrapf(err, "get business %s", id)
	}
	return b, nil
}

func (r *Repo) ListPublicBusinesses(ctx context.Context) ([]domain.Business, error) {
	return r.queryBusinesses(ctx, r.selectBusinesses().Where(goqu.C("is_public").IsTrue()))
}

func (r *Repo) ListAllBusinesses(ctx context.Context) ([]domain.Business, error) {
	return r.queryBusinesses(ctx, r.selectBusinesses())
}

func (r *Repo) ListBusinessesByOwner(ctx context.Context, ownerID string) ([]domain.Business, error) {
	return r.queryBusinesses(ctx, r.selectBusinesses().Where(goqu.C("owner_id").Eq(ownerID)))
}

func (r *Repo) ListFeatured(ctx context.Context) ([]domain.Business, error) {
	return r.queryBusinesses(ctx, r.selectBusinesses().Where(
		goqu.C("featured").IsTrue(),
		goqu.C("is_public").IsTrue(),
	))
}

func (r *Repo) ListBusinessIDs(ctx context.Context) ([]string, error) {
	q, args, err := r.d.From("businesses").Select("id").Order(goqu.C("id").Asc()).Prepared(true).ToSQL()
	if err != nil {
		return nil, errors.Wrap(err, "build id select")
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query business ids")
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan business id")
		}
		ids = append(ids, id)
	}
	return ids, errors.Wrap(rows.Err(), "iterate business ids")
}

/********** reviews **********/

// AddReview inserts the review and folds its rating into the business
// aggregate in one transaction; either both land or neither does.
func (r *Repo) AddReview(ctx context.Context, rv domain.Review) (agg rating.Aggregate, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return agg, errors.Wrap(err, "begin review insert")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, bumpAggregateSQL, rv.Rating, rv.BusinessID)
	if err != nil {
		return agg, errors.Wrapf(err, "bump aggregate of %s", rv.BusinessID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = domain.ErrNotFound
		return agg, err
	}

	q, args, err := r.d.Insert("reviews").Prepared(true).Rows(goqu.Record{
		"id":            rv.ID,
		"business_id":   rv.BusinessID,
		"author_id":     rv.AuthorID,
		"author_name":   rv.AuthorName,
		"author_avatar": rv.AuthorAvatar,
		"rating":        rv.Rating,
		"comment":       rv.Comment,
		"created_at":    rv.CreatedAt,
	}).ToSQL()
	if err != nil {
		return agg, errors.Wrap(err, "build review insert")
	}
	if _, err = tx.ExecContext(ctx, q, args...); err != nil {
		return agg, errors.Wrapf(err, "insert review %s", rv.ID)
	}

	if err = tx.QueryRowContext(ctx, selectAggregateSQL, rv.BusinessID).Scan(&agg.Sum, &agg.Count); err != nil {
		return agg, errors.Wrap(err, "read aggregate")
	}
	if err = tx.Commit(); err != nil {
		return agg, errors.Wrap(err, "commit review insert")
	}
	return agg, nil
}

func (r *Repo) ListReviews(ctx context.Context, businessID string, limit int) ([]domain.Review, error) {
	ds := r.d.From("reviews").Select(reviewColumns...).
		Where(goqu.C("business_id").Eq(businessID)).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Desc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	q, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, errors.Wrap(err, "build review select")
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query reviews")
	}
	defer rows.Close()

	out := []domain.Review{}
	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(&rv.ID, &rv.BusinessID, &rv.AuthorID, &rv.AuthorName, &rv.AuthorAvatar,
			&rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan review")
		}
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate reviews")
	}
	return out, nil
}

func (r *Repo) StoredAggregate(ctx context.Context, businessID string) (rating.Aggregate, error) {
	var agg rating.Aggregate
	if err := r.db.QueryRowContext(ctx, selectAggregateSQL, businessID).Scan(&agg.Sum, &agg.Count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return agg, domain.ErrNotFound
		}
		return agg, errors.Wrapf(err, "read aggregate of %s", businessID)
	}
	return agg, nil
}

// RecomputeAggregate rebuilds (sum, count) from the stored reviews inside one
// transaction. The business row is locked first, the same row AddReview bumps,
// so a concurrent review either commits before the recount or waits for it.
func (r *Repo) RecomputeAggregate(ctx context.Context, businessID string) (before, after rating.Aggregate, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return before, after, errors.Wrap(err, "begin recompute")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = tx.QueryRowContext(ctx, lockAggregateSQL, businessID).Scan(&before.Sum, &before.Count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = domain.ErrNotFound
			return before, after, err
		}
		return before, after, errors.Wrapf(err, "lock aggregate of %s", businessID)
	}
	if err = tx.QueryRowContext(ctx, recountReviewsSQL, businessID).Scan(&after.Sum, &after.Count); err != nil {
		return before, after, errors.Wrapf(err, "recount reviews of %s", businessID)
	}
	if after != before {
		if _, err = tx.ExecContext(ctx, setAggregateSQL, after.Sum, after.Count, businessID); err != nil {
			return before, after, errors.Wrapf(err, "set aggregate of %s", businessID)
		}
	}
	if err = tx.Commit(); err != nil {
		return before, after, errors.Wrap(err, "commit recompute")
	}
	return before, after, nil
}

/********** users **********/

func userRecord(u domain.User) goqu.Record {
	return goqu.Record{
		"id":            u.ID,
		"name":          u.Name,
		"email":         u.Email,
		"phone":         u.Phone,
		"role":          string(u.Role),
		"disabled":      u.Disabled,
		"password_hash": u.PasswordHash,
		"created_at":    u.CreatedAt,
	}
}

func (r *Repo) insertUser(ctx context.Context, ex execer, u domain.User) error {
	q, args, err := r.d.Insert("users").Prepared(true).Rows(userRecord(u)).ToSQL()
	if err != nil {
		return errors.Wrap(err, "build user insert")
	}
	if _, err := ex.ExecContext(ctx, q, args...); err != nil {
		if isMySQLErr(err, errDuplicateKey) {
			return domain.ErrEmailTaken
		}
		return errors.Wrapf(err, "insert user %s", u.ID)
	}
	return nil
}

func (r *Repo) CreateUser(ctx context.Context, u domain.User) error {
	return r.insertUser(ctx, r.db, u)
}

func (r *Repo) CreateOwner(ctx context.Context, u domain.User, b domain.Business) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin owner registration")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = r.insertUser(ctx, tx, u); err != nil {
		return err
	}
	if err = r.insertBusiness(ctx, tx, b); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit owner registration")
	}
	return nil
}

func (r *Repo) scanUser(s scanner) (domain.User, error) {
	var u domain.User
	var role string
	if err := s.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &role, &u.Disabled, &u.PasswordHash, &u.CreatedAt); err != nil {
		return domain.User{}, err
	}
	u.Role = domain.Role(role)
	return u, nil
}

func (r *Repo) getUserWhere(ctx context.Context, where goqu.Expression) (domain.User, error) {
	q, args, err := r.d.From("users").Select(userColumns...).Where(where).Prepared(true).ToSQL()
	if err != nil {
		return domain.User{}, errors.Wrap(err, "build user select")
	}
	u, err := r.scanUser(r.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, errors.Wrap(err, "get user")
	}
	favs, err := r.favorites(ctx, []string{u.ID})
	if err != nil {
		return domain.User{}, err
	}
	u.Favorites = favs[u.ID]
	if u.Favorites == nil {
		u.Favorites = []string{}
	}
	return u, nil
}

func (r *Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	return r.getUserWhere(ctx, goqu.C("id").Eq(id))
}

func (r *Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getUserWhere(ctx, goqu.C("email").Eq(email))
}

// favorites returns favorited business IDs per user, oldest first.
func (r *Repo) favorites(ctx context.Context, userIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	q, args, err := r.d.From("favorites").Select("user_id", "business_id").
		Where(goqu.C("user_id").In(userIDs)).
		Order(goqu.C("created_at").Asc()).Prepared(true).ToSQL()
	if err != nil {
		return nil, errors.Wrap(err, "build favorites select")
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query favorites")
	}
	defer rows.Close()
	for rows.Next() {
		var uid, bid string
		if err := rows.Scan(&uid, &bid); err != nil {
			return nil, errors.Wrap(err, "scan favorite")
		}
		out[uid] = append(out[uid], bid)
	}
	return out, errors.Wrap(rows.Err(), "iterate favorites")
}

func (r *Repo) ListUsers(ctx context.Context) ([]domain.User, error) {
	q, args, err := r.d.From("users").Select(userColumns...).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Asc()).Prepared(true).ToSQL()
	if err != nil {
		return nil, errors.Wrap(err, "build user list")
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query users")
	}
	defer rows.Close()

	var users []domain.User
	var ids []string
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan user")
		}
		users = append(users, u)
		ids = append(ids, u.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate users")
	}
	favs, err := r.favorites(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].Favorites = favs[users[i].ID]
		if users[i].Favorites == nil {
			users[i].Favorites = []string{}
		}
	}
	return users, nil
}

func (r *Repo) updateUser(ctx context.Context, id string, rec goqu.Record) error {
	q, args, err := r.d.Update("users").Prepared(true).Set(rec).Where(goqu.C("id").Eq(id)).ToSQL()
	if err != nil {
		return errors.Wrap(err, "build user update")
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return errors.Wrapf(err, "update user %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// zero rows also means "already set"; tell it apart from a missing user
		if _, err := r.GetUser(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) SetUserDisabled(ctx context.Context, id string, disabled bool) error {
	return r.updateUser(ctx, id, goqu.Record{"disabled": disabled})
}

func (r *Repo) SetUserRole(ctx context.Context, id string, role domain.Role) error {
	return r.updateUser(ctx, id, goqu.Record{"role": string(role)})
}

func (r *Repo) DeleteUser(ctx context.Context, id string) error {
	q, args, err := r.d.Delete("users").Prepared(true).Where(goqu.C("id").Eq(id)).ToSQL()
	if err != nil {
		return errors.Wrap(err, "build user delete")
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		if isMySQLErr(err, errIsReferenced) {
			return domain.ErrOwnsBusinesses
		}
		return errors.Wrapf(err, "delete user %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repo) AddFavorite(ctx context.Context, userID, businessID string) error {
	if _, err := r.db.ExecContext(ctx, insertFavoriteSQL, userID, businessID, r.now()); err != nil {
		if isMySQLErr(err, errNoReferenced) {
			return domain.ErrNotFound
		}
		return errors.Wrap(err, "insert favorite")
	}
	return nil
}

func (r *Repo) RemoveFavorite(ctx context.Context, userID, businessID string) error {
	q, args, err := r.d.Delete("favorites").Prepared(true).Where(
		goqu.C("user_id").Eq(userID),
		goqu.C("business_id").Eq(businessID),
	).ToSQL()
	if err != nil {
		return errors.Wrap(err, "build favorite delete")
	}
	_, err = r.db.ExecContext(ctx, q, args...)
	return errors.Wrap(err, "delete favorite")
}
