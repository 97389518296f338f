package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"storefront-cart/internal/logger"

	"go.uber.org/zap"
)

type postgres struct {
	db *sql.DB
}

// NewPostgres returns a Store backed by lib/pq.
func NewPostgres(db *sql.DB) Store {
	return &postgres{db: db}
}

func (r *postgres) GetCartLines(ctx context.Context, userID int64) ([]CartLine, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "GetCartLines"),
		zap.Int64("user_id", userID),
	)

	start := time.Now()

	query := `
	SELECT
		c.id,
		c.user_id,
		c.product_id,
		c.size,
		c.quantity,
		c.created_at,
		c.updated_at,

		v.name,
		COALESCE(v.image_url, ''),
		COALESCE(v.slug, ''),
		v.price,
		v.stock
	FROM cart_items c
	JOIN product_sizes v ON v.product_id = c.product_id AND v.size = c.size
	WHERE c.user_id = $1
	ORDER BY c.created_at, c.id
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		log.Error("query failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return nil, err
	}
	defer rows.Close()

	result := make([]CartLine, 0)
	for rows.Next() {
		var line CartLine
		if err := rows.Scan(
			&line.ID,
			&line.UserID,
			&line.ProductID,
			&line.Size,
			&line.Quantity,
			&line.CreatedAt,
			&line.UpdatedAt,

			&line.Variant.Name,
			&line.Variant.ImageURL,
			&line.Variant.Slug,
			&line.Variant.Price,
			&line.Variant.Stock,
		); err != nil {
			log.Error("row scan failed", zap.Error(err))
			return nil, err
		}
		line.Variant.ProductID = line.ProductID
		line.Variant.Size = line.Size
		result = append(result, line)
	}

	if err := rows.Err(); err != nil {
		log.Error("rows iteration failed", zap.Error(err))
		return nil, err
	}

	log.Debug("query success",
		zap.Int("rows", len(result)),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

const cartItemColumns = `
		id,
		user_id,
		product_id,
		size,
		quantity,
		created_at,
		updated_at`

func scanCartItem(row *sql.Row) (*CartItem, error) {
	item := &CartItem{}
	err := row.Scan(
		&item.ID,
		&item.UserID,
		&item.ProductID,
		&item.Size,
		&item.Quantity,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *postgres) GetCartItemByUserAndVariant(ctx context.Context, userID, productID int64, size string) (*CartItem, error) {
	query := `SELECT` + cartItemColumns + `
	FROM cart_items
	WHERE user_id = $1 AND product_id = $2 AND size = $3
	`

	item, err := scanCartItem(r.db.QueryRowContext(ctx, query, userID, productID, size))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return item, err
}

func (r *postgres) GetCartItem(ctx context.Context, userID, itemID int64) (*CartItem, error) {
	query := `SELECT` + cartItemColumns + `
	FROM cart_items
	WHERE id = $1 AND user_id = $2
	`

	item, err := scanCartItem(r.db.QueryRowContext(ctx, query, itemID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartItemNotFound
	}
	return item, err
}

// CreateCartItem inserts a line; a concurrent insert of the same variant is
// folded into the existing row.
func (r *postgres) CreateCartItem(ctx context.Context, params CreateCartItemParams) (*CartItem, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "CreateCartItem"),
		zap.Int64("user_id", params.UserID),
		zap.Int64("product_id", params.ProductID),
		zap.String("size", params.Size),
	)

	if params.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	query := `
	INSERT INTO cart_items (
		user_id,
		product_id,
		size,
		quantity
	)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (user_id, product_id, size)
	DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
	RETURNING` + cartItemColumns

	item, err := scanCartItem(r.db.QueryRowContext(ctx, query,
		params.UserID,
		params.ProductID,
		params.Size,
		params.Quantity,
	))
	if err != nil {
		log.Error("failed to create cart item", zap.Error(err))
		return nil, err
	}

	log.Info("success create cart item", zap.Int64("cart_item_id", item.ID))
	return item, nil
}

func (r *postgres) UpdateCartItemQuantity(ctx context.Context, userID, itemID int64, quantity int) (*CartItem, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	query := `
	UPDATE cart_items
	SET quantity = $1,
	    updated_at = NOW()
	WHERE id = $2 AND user_id = $3
	RETURNING` + cartItemColumns

	item, err := scanCartItem(r.db.QueryRowContext(ctx, query, quantity, itemID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartItemNotFound
	}
	return item, err
}

func (r *postgres) RemoveCartItem(ctx context.Context, userID, itemID int64) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE id = $1 AND user_id = $2
	`, itemID, userID)
	if err != nil {
		return err
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

// ClearCart removes every line; clearing an empty cart is not an error.
func (r *postgres) ClearCart(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	return err
}
