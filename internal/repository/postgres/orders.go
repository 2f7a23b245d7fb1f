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

type OrderRepo struct {
	db DB
}

const orderColumns = `id, user_id, status, delivery_status, items, total_cents, currency,
	address, COALESCE(provider_id, ''), scheduled_at, created_at, updated_at`

func (r *OrderRepo) scanOrder(row interface{ Scan(dest ...any) error }) (*domain.Order, error) {
	var o domain.Order
	var items []byte
	var provider string
	if err := row.Scan(
		&o.ID, &o.UserID, &o.Status, &o.DeliveryStatus, &items, &o.TotalCents, &o.Currency,
		&o.Address, &provider, &o.ScheduledAt, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	o.ProviderID = provider
	if len(items) > 0 {
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return nil, fmt.Errorf("decode items snapshot: %w", err)
		}
	}
	return &o, nil
}

func (r *OrderRepo) Create(ctx context.Context, o domain.Order) error {
	const op = "postgres.OrderRepo.Create"

	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("%s: encode items snapshot: %w", op, err)
	}

	var provider any
	if o.ProviderID != "" {
		provider = o.ProviderID
	}

	if _, err := r.db.Exec(ctx,
		`INSERT INTO orders(id, user_id, status, delivery_status, items, total_cents,
                        	currency, address, provider_id, scheduled_at, created_at, updated_at)
       	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		o.ID, o.UserID, o.Status, o.DeliveryStatus, items, o.TotalCents,
		o.Currency, []byte(o.Address), provider, o.ScheduledAt, o.CreatedAt, o.UpdatedAt,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *OrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	const op = "postgres.OrderRepo.GetByID"

	o, err := r.scanOrder(r.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return o, nil
}

func (r *OrderRepo) List(ctx context.Context, f repository.OrderFilter) ([]domain.Order, error) {
	const op = "postgres.OrderRepo.List"

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+orderColumns+`
       	 FROM orders
      	 WHERE ($1 = '' OR user_id = $1)
        	AND ($2 = '' OR status = $2)
        	AND ($3 = '' OR provider_id = $3)
      	 ORDER BY created_at DESC
      	 LIMIT $4 OFFSET $5`,
		f.UserID, string(f.Status), f.ProviderID, limit, f.Offset,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := r.scanOrder(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *OrderRepo) SetStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) (bool, error) {
	const op = "postgres.OrderRepo.SetStatus"

	tag, err := r.db.Exec(ctx,
		`UPDATE orders SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`,
		id, from, to,
	)
	if err != nil {
		return false, wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id,
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

func (r *OrderRepo) SetDeliveryStatus(ctx context.Context, id uuid.UUID, to domain.DeliveryStatus) error {
	const op = "postgres.OrderRepo.SetDeliveryStatus"

	tag, err := r.db.Exec(ctx,
		`UPDATE orders SET delivery_status = $2, updated_at = now() WHERE id = $1`,
		id, to,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

func (r *OrderRepo) AddAssignment(ctx context.Context, a domain.Assignment) error {
	const op = "postgres.OrderRepo.AddAssignment"

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	if _, err := r.db.Exec(ctx,
		`INSERT INTO order_assignments(id, order_id, provider_id, scheduled_at, assigned_by, notes, created_at)
       	 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.OrderID, a.ProviderID, a.ScheduledAt, a.AssignedBy, a.Notes, a.CreatedAt,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *OrderRepo) SetCurrentAssignment(ctx context.Context, orderID uuid.UUID, providerID string, scheduledAt time.Time) error {
	const op = "postgres.OrderRepo.SetCurrentAssignment"

	tag, err := r.db.Exec(ctx,
		`UPDATE orders SET provider_id = $2, scheduled_at = $3, updated_at = now() WHERE id = $1`,
		orderID, providerID, scheduledAt,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

func (r *OrderRepo) ListAssignments(ctx context.Context, orderID uuid.UUID) ([]domain.Assignment, error) {
	const op = "postgres.OrderRepo.ListAssignments"

	rows, err := r.db.Query(ctx,
		`SELECT id, order_id, provider_id, scheduled_at, assigned_by, notes, created_at
       	 FROM order_assignments
      	 WHERE order_id = $1
      	 ORDER BY created_at`,
		orderID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Assignment
	for rows.Next() {
		var a domain.Assignment
		if err := rows.Scan(&a.ID, &a.OrderID, &a.ProviderID, &a.ScheduledAt, &a.AssignedBy, &a.Notes, &a.CreatedAt); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}
