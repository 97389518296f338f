package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"
)

func (r *postgres) GetVariant(ctx context.Context, productID int64, size string) (*Variant, error) {
	v := &Variant{}
	err := r.db.QueryRowContext(ctx, `
		SELECT product_id, size, name, COALESCE(image_url, ''), COALESCE(slug, ''), price, stock
		FROM product_sizes
		WHERE product_id = $1 AND size = $2
	`, productID, size).Scan(
		&v.ProductID,
		&v.Size,
		&v.Name,
		&v.ImageURL,
		&v.Slug,
		&v.Price,
		&v.Stock,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVariantNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r *postgres) UpsertVariant(ctx context.Context, v Variant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO product_sizes (product_id, size, name, image_url, slug, price, stock)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (product_id, size)
		DO UPDATE SET name = EXCLUDED.name, image_url = EXCLUDED.image_url, slug = EXCLUDED.slug,
			price = EXCLUDED.price, stock = EXCLUDED.stock
	`, v.ProductID, v.Size, v.Name, v.ImageURL, v.Slug, v.Price, v.Stock)
	return err
}

func (r *postgres) CreateUser(ctx context.Context, email, passwordHash, role string) (*User, error) {
	u := &User{}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, role)
		VALUES ($1, $2, $3)
		RETURNING id, email, password_hash, role, created_at
	`, strings.ToLower(email), passwordHash, role).Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == PgUniqueViolation {
			return nil, ErrEmailExists
		}
		return nil, err
	}
	return u, nil
}

func (r *postgres) FindByEmail(ctx context.Context, email string) (*User, error) {
	u := &User{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, role, created_at
		FROM users
		WHERE email = $1
	`, strings.ToLower(email)).Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}
