package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Customer is a row of the customers_xlsx cache.
type Customer struct {
	CustomerID      int64
	Name            string
	Phone           string
	PhoneNormalized string
	Email           string
	EmailNormalized string
	Street          string
	City            string
	State           string
	Zip             string
	Active          bool
	ImportedAt      time.Time
}

// Repository provides access to the imported customer cache.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new customer cache repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Find returns customers whose normalized phone or email matches.
func (r *Repository) Find(ctx context.Context, phone, email string, includeInactive bool) ([]Customer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT customer_id, name, phone, phone_normalized, email, email_normalized,
			street, city, state, zip, active, imported_at
		FROM customers_xlsx
		WHERE (($1 <> '' AND phone_normalized = $1) OR ($2 <> '' AND email_normalized = $2))
			AND ($3 OR active)
		ORDER BY customer_id
		LIMIT 25
	`, phone, email, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("query customers_xlsx: %w", err)
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.CustomerID, &c.Name, &c.Phone, &c.PhoneNormalized, &c.Email, &c.EmailNormalized,
			&c.Street, &c.City, &c.State, &c.Zip, &c.Active, &c.ImportedAt); err != nil {
			return nil, fmt.Errorf("scan customers_xlsx: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// EmailByCustomerID returns the imported email of a customer, or "".
func (r *Repository) EmailByCustomerID(ctx context.Context, customerID int64) (string, error) {
	var addr string
	err := r.pool.QueryRow(ctx, `SELECT email FROM customers_xlsx WHERE customer_id = $1`, customerID).Scan(&addr)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load customer email: %w", err)
	}
	return addr, nil
}

// Upsert writes the given rows in one batch, replacing earlier imports of the
// same customer id.
func (r *Repository) Upsert(ctx context.Context, customers []Customer) (int, error) {
	if len(customers) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, c := range customers {
		batch.Queue(`
			INSERT INTO customers_xlsx (customer_id, name, phone, phone_normalized, email, email_normalized,
				street, city, state, zip, active, imported_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
			ON CONFLICT (customer_id) DO UPDATE SET
				name = EXCLUDED.name,
				phone = EXCLUDED.phone,
				phone_normalized = EXCLUDED.phone_normalized,
				email = EXCLUDED.email,
				email_normalized = EXCLUDED.email_normalized,
				street = EXCLUDED.street,
				city = EXCLUDED.city,
				state = EXCLUDED.state,
				zip = EXCLUDED.zip,
				active = EXCLUDED.active,
				imported_at = now()
		`, c.CustomerID, c.Name, c.Phone, c.PhoneNormalized, c.Email, c.EmailNormalized,
			c.Street, c.City, c.State, c.Zip, c.Active)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	for i := range customers {
		if _, err := results.Exec(); err != nil {
			return i, fmt.Errorf("upsert customer %d: %w", customers[i].CustomerID, err)
		}
	}
	return len(customers), nil
}
