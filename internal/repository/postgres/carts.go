package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pawcall/pawcall/internal/domain"
	"github.com/pawcall/pawcall/internal/repository"
)

type CartRepo struct {
	db DB
}

func (r *CartRepo) Create(ctx context.Context, c domain.Cart) error {
	const op = "postgres.CartRepo.Create"

	_, err := r.db.Exec(ctx,
		`INSERT INTO carts(id, user_id, status, expires_at, created_at, updated_at)
       	 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.UserID, c.Status, c.ExpiresAt, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *CartRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Cart, error) {
	const op = "postgres.CartRepo.GetByID"

	var c domain.Cart
	if err := r.db.QueryRow(ctx,
		`SELECT id, user_id, status, expires_at, created_at, updated_at
       	 FROM carts
      	 WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.UserID, &c.Status, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &c, nil
}

func (r *CartRepo) LatestActive(ctx context.Context, userID string) (*domain.Cart, error) {
	const op = "postgres.CartRepo.LatestActive"

	var c domain.Cart
	if err := r.db.QueryRow(ctx,
		`SELECT id, user_id, status, expires_at, created_at, updated_at
       	 FROM carts
      	 WHERE user_id = $1 AND status = 'active'
      	 ORDER BY created_at DESC
      	 LIMIT 1`,
		userID,
	).Scan(&c.ID, &c.UserID, &c.Status, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &c, nil
}

func (r *CartRepo) SetStatus(ctx context.Context, id uuid.UUID, from, to domain.CartStatus) (bool, error) {
	const op = "postgres.CartRepo.SetStatus"

	tag, err := r.db.Exec(ctx,
		`UPDATE carts SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`,
		id, from, to,
	)
	if err != nil {
		return false, wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM carts WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return false, wrapDBErr(op, err)
		}
		if !exists {
			return false, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		return false, nil
	}

	return true, nil
}

func (r *CartRepo) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	const op = "postgres.CartRepo.Touch"

	tag, err := r.db.Exec(ctx,
		`UPDATE carts SET updated_at = $2 WHERE id = $1`, id, at,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

func (r *CartRepo) ListItems(ctx context.Context, cartID uuid.UUID) ([]domain.CartItem, error) {
	const op = "postgres.CartRepo.ListItems"

	rows, err := r.db.Query(ctx,
		`SELECT id, cart_id, kind, ref_id, name, quantity, unit_price_cents, meta
       	 FROM cart_items
      	 WHERE cart_id = $1
      	 ORDER BY id`,
		cartID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.CartItem
	for rows.Next() {
		var it domain.CartItem
		var meta []byte
		if err := rows.Scan(&it.ID, &it.CartID, &it.Kind, &it.RefID, &it.Name, &it.Quantity, &it.UnitPriceCents, &meta); err != nil {
			return nil, wrapDBErr(op, err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &it.Meta); err != nil {
				return nil, fmt.Errorf("%s: decode item meta: %w", op, err)
			}
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *CartRepo) InsertItems(ctx context.Context, items []domain.CartItem) error {
	const op = "postgres.CartRepo.InsertItems"

	for _, it := range items {
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}

		meta, err := json.Marshal(it.Meta)
		if err != nil {
			return fmt.Errorf("%s: encode item meta: %w", op, err)
		}

		if _, err := r.db.Exec(ctx,
			`INSERT INTO cart_items(id, cart_id, kind, ref_id, name, quantity, unit_price_cents, meta)
           	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			it.ID, it.CartID, it.Kind, it.RefID, it.Name, it.Quantity, it.UnitPriceCents, meta,
		); err != nil {
			return wrapDBErr(op, err)
		}
	}

	return nil
}

func (r *CartRepo) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	const op = "postgres.CartRepo.DeleteItem"

	tag, err := r.db.Exec(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1 AND id = $2`, cartID, itemID,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

func (r *CartRepo) DeleteItems(ctx context.Context, cartID uuid.UUID) error {
	const op = "postgres.CartRepo.DeleteItems"

	if _, err := r.db.Exec(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1`, cartID,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *CartRepo) ListStale(ctx context.Context, now time.Time, limit int) ([]domain.Cart, error) {
	const op = "postgres.CartRepo.ListStale"

	if limit <= 0 {
		limit = 500
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, status, expires_at, created_at, updated_at
       	 FROM carts
      	 WHERE status = 'active' AND expires_at <= $1
      	 ORDER BY expires_at
      	 LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Cart
	for rows.Next() {
		var c domain.Cart
		if err := rows.Scan(&c.ID, &c.UserID, &c.Status, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}
