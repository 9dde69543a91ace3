package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"plumbing_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Review is a row of google_reviews.
type Review struct {
	ID         string
	AuthorName string
	Rating     int
	Body       string
	ReviewedAt *time.Time
	CustomerID *int64
	CreatedAt  time.Time
}

// Repository persists synced reviews.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new reviews repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const reviewColumns = `id, author_name, rating, body, reviewed_at, customer_id, created_at`

func scanReview(row pgx.Row) (Review, error) {
	var r Review
	err := row.Scan(&r.ID, &r.AuthorName, &r.Rating, &r.Body, &r.ReviewedAt, &r.CustomerID, &r.CreatedAt)
	return r, err
}

// UpsertMany stores reviews in one batch and returns the ids that were new.
func (r *Repository) UpsertMany(ctx context.Context, reviews []Review) ([]string, error) {
	if len(reviews) == 0 {
		return nil, nil
	}
	batch := &pgx.Batch{}
	for _, rv := range reviews {
		batch.Queue(`
			INSERT INTO google_reviews (id, author_name, rating, body, reviewed_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE
			SET author_name = EXCLUDED.author_name,
				rating = EXCLUDED.rating,
				body = EXCLUDED.body,
				reviewed_at = COALESCE(EXCLUDED.reviewed_at, google_reviews.reviewed_at)
			RETURNING (xmax = 0)
		`, rv.ID, rv.AuthorName, rv.Rating, rv.Body, rv.ReviewedAt)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	var created []string
	for _, rv := range reviews {
		var inserted bool
		if err := results.QueryRow().Scan(&inserted); err != nil {
			return nil, fmt.Errorf("upsert review %s: %w", rv.ID, err)
		}
		if inserted {
			created = append(created, rv.ID)
		}
	}
	return created, nil
}

// Get loads one review.
func (r *Repository) Get(ctx context.Context, id string) (Review, error) {
	rv, err := scanReview(r.pool.QueryRow(ctx, `SELECT `+reviewColumns+` FROM google_reviews WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Review{}, apperr.NotFound("review not found")
	}
	if err != nil {
		return Review{}, fmt.Errorf("get review: %w", err)
	}
	return rv, nil
}

// List returns reviews newest first with at least minRating stars.
func (r *Repository) List(ctx context.Context, minRating, limit, offset int) ([]Review, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+reviewColumns+` FROM google_reviews
		WHERE rating >= $1
		ORDER BY COALESCE(reviewed_at, created_at) DESC
		LIMIT $2 OFFSET $3
	`, minRating, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var out []Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

// LinkCustomer records the customer who wrote a review.
func (r *Repository) LinkCustomer(ctx context.Context, id string, customerID int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE google_reviews SET customer_id = $2 WHERE id = $1`, id, customerID)
	if err != nil {
		return fmt.Errorf("link review customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("review not found")
	}
	return nil
}
