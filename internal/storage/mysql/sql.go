package mysql

// Columns read into domain.Business, in scan order.
var businessColumns = []any{
	"id", "owner_id", "name", "category", "address", "lat", "lon",
	"description", "phone", "website", "images", "hours", "is_open",
	"rating_sum", "review_count", "is_public", "featured", "created_at", "updated_at",
}

var reviewColumns = []any{
	"id", "business_id", "author_id", "author_name", "author_avatar", "rating", "comment", "created_at",
}

var userColumns = []any{
	"id", "name", "email", "phone", "role", "disabled", "password_hash", "created_at",
}

// -----------------------------------------------------------------------------
// TRANSACTIONAL STATEMENTS
// -----------------------------------------------------------------------------

// Folds one rating into the stored (sum, count) pair. The row lock taken here
// serializes concurrent reviewers of the same business until commit.
const bumpAggregateSQL = `
UPDATE businesses
SET rating_sum   = rating_sum + ?,
    review_count = review_count + 1
WHERE id = ?
`

const selectAggregateSQL = `SELECT rating_sum, review_count FROM businesses WHERE id = ?`

const lockAggregateSQL = `SELECT rating_sum, review_count FROM businesses WHERE id = ? FOR UPDATE`

// Out-of-range rows never count toward the mean.
const recountReviewsSQL = `
SELECT COALESCE(SUM(rating), 0), COUNT(*)
FROM reviews
WHERE business_id = ? AND rating BETWEEN 1 AND 5
FOR SHARE
`

const setAggregateSQL = `
UPDATE businesses
SET rating_sum = ?, review_count = ?
WHERE id = ?
`

const lockFeaturedGuardSQL = `SELECT id FROM featured_guard WHERE id = 1 FOR UPDATE`

const lockBusinessSQL = `SELECT id FROM businesses WHERE id = ? FOR UPDATE`

const featuredIDsSQL = `SELECT id FROM businesses WHERE featured = TRUE ORDER BY id`

const setFeaturedSQL = `UPDATE businesses SET featured = ?, updated_at = ? WHERE id = ?`

// Favorites are idempotent; a missing business trips the FK.
const insertFavoriteSQL = `
INSERT INTO favorites (user_id, business_id, created_at)
VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE user_id = user_id
`
