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

type HoldRepo struct {
	db DB
}

func (r *HoldRepo) Create(ctx context.Context, h domain.Hold) error {
	const op = "postgres.HoldRepo.Create"

	var date any
	if h.Date != "" {
		date = h.Date
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO holds(id, user_id, pet_id, service_id, status, date, expires_at, created_at)
       	 VALUES ($1, $2, $3, $4, $5, $6::date, $7, $8)`,
		h.ID, h.UserID, h.PetID, h.ServiceID, h.Status, date, h.ExpiresAt, h.CreatedAt,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *HoldRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Hold, error) {
	const op = "postgres.HoldRepo.GetByID"

	h, err := r.scanHold(r.db.QueryRow(ctx,
		`SELECT id, user_id, pet_id, service_id, status,
            	COALESCE(to_char(date, 'YYYY-MM-DD'), ''), quote, expires_at, created_at
       	 FROM holds
      	 WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return h, nil
}

func (r *HoldRepo) scanHold(row interface{ Scan(dest ...any) error }) (*domain.Hold, error) {
	var h domain.Hold
	var quote []byte
	if err := row.Scan(
		&h.ID, &h.UserID, &h.PetID, &h.ServiceID, &h.Status,
		&h.Date, &quote, &h.ExpiresAt, &h.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(quote) > 0 {
		var q domain.Quote
		if err := json.Unmarshal(quote, &q); err != nil {
			return nil, fmt.Errorf("decode quote snapshot: %w", err)
		}
		h.Quote = &q
	}
	return &h, nil
}

// Confirm freezes the quote snapshot and transitions held->confirmed. The
// guarded WHERE keeps the transition race tolerant: a concurrent confirm or
// expire wins and this call reports false.
func (r *HoldRepo) Confirm(ctx context.Context, id uuid.UUID, q domain.Quote) (bool, error) {
	const op = "postgres.HoldRepo.Confirm"

	payload, err := json.Marshal(q)
	if err != nil {
		return false, fmt.Errorf("%s: encode quote: %w", op, err)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE holds
        	SET status = 'confirmed', quote = $2
      	 WHERE id = $1 AND status = 'held'`,
		id, payload,
	)
	if err != nil {
		return false, wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return false, r.missing(ctx, op, id)
	}

	return true, nil
}

func (r *HoldRepo) MarkCancelled(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.mark(ctx, "postgres.HoldRepo.MarkCancelled", id, domain.HoldCancelled)
}

func (r *HoldRepo) MarkExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.mark(ctx, "postgres.HoldRepo.MarkExpired", id, domain.HoldExpired)
}

func (r *HoldRepo) mark(ctx context.Context, op string, id uuid.UUID, to domain.HoldStatus) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE holds SET status = $2 WHERE id = $1 AND status = 'held'`,
		id, to,
	)
	if err != nil {
		return false, wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return false, r.missing(ctx, op, id)
	}

	return true, nil
}

// missing distinguishes "row absent" from "row present but not held".
func (r *HoldRepo) missing(ctx context.Context, op string, id uuid.UUID) error {
	var exists bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM holds WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return wrapDBErr(op, err)
	}
	if !exists {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}
	return nil
}

func (r *HoldRepo) ListStale(ctx context.Context, now time.Time, limit int) ([]domain.Hold, error) {
	const op = "postgres.HoldRepo.ListStale"

	if limit <= 0 {
		limit = 500
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, pet_id, service_id, status,
            	COALESCE(to_char(date, 'YYYY-MM-DD'), ''), quote, expires_at, created_at
       	 FROM holds
      	 WHERE status = 'held' AND expires_at <= $1
      	 ORDER BY expires_at
      	 LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Hold
	for rows.Next() {
		h, err := r.scanHold(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}
