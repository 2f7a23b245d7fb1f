package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pawcall/pawcall/internal/domain"
	"github.com/pawcall/pawcall/internal/repository"
)

type SlotRepo struct {
	db DB
}

const slotColumns = `id, service_id, to_char(date, 'YYYY-MM-DD'), capacity, booked, active, created_at`

func (r *SlotRepo) scanSlot(row interface{ Scan(dest ...any) error }) (*domain.Slot, error) {
	var s domain.Slot
	if err := row.Scan(&s.ID, &s.ServiceID, &s.Date, &s.Capacity, &s.Booked, &s.Active, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SlotRepo) Create(ctx context.Context, slot domain.Slot) (*domain.Slot, error) {
	const op = "postgres.SlotRepo.Create"

	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}

	created, err := r.scanSlot(r.db.QueryRow(ctx,
		`INSERT INTO availability_slots(id, service_id, date, capacity, booked, active)
       	 VALUES ($1, $2, $3::date, $4, 0, $5)
     	 RETURNING `+slotColumns,
		slot.ID, slot.ServiceID, slot.Date, slot.Capacity, slot.Active,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return created, nil
}

func (r *SlotRepo) GetByID(ctx context.Context, id string) (*domain.Slot, error) {
	const op = "postgres.SlotRepo.GetByID"

	slot, err := r.scanSlot(r.db.QueryRow(ctx,
		`SELECT `+slotColumns+` FROM availability_slots WHERE id = $1`, id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return slot, nil
}

func (r *SlotRepo) GetForDate(ctx context.Context, serviceID, date string) (*domain.Slot, error) {
	const op = "postgres.SlotRepo.GetForDate"

	slot, err := r.scanSlot(r.db.QueryRow(ctx,
		`SELECT `+slotColumns+`
       	 FROM availability_slots
      	 WHERE service_id = $1 AND date = $2::date`,
		serviceID, date,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return slot, nil
}

// GetForUpdate takes an exclusive row lock held until the enclosing
// transaction commits or rolls back. Capacity checks and booked mutations
// must happen under this lock.
func (r *SlotRepo) GetForUpdate(ctx context.Context, serviceID, date string) (*domain.Slot, error) {
	const op = "postgres.SlotRepo.GetForUpdate"

	slot, err := r.scanSlot(r.db.QueryRow(ctx,
		`SELECT `+slotColumns+`
       	 FROM availability_slots
      	 WHERE service_id = $1 AND date = $2::date
        	FOR UPDATE`,
		serviceID, date,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return slot, nil
}

func (r *SlotRepo) List(ctx context.Context, serviceID, dateFrom, dateTo string, activeOnly bool) ([]domain.Slot, error) {
	const op = "postgres.SlotRepo.List"

	rows, err := r.db.Query(ctx,
		`SELECT `+slotColumns+`
       	 FROM availability_slots
      	 WHERE ($1 = '' OR service_id = $1)
        	AND ($2 = '' OR date >= $2::date)
        	AND ($3 = '' OR date < $3::date)
        	AND (NOT $4 OR active)
      	 ORDER BY date, service_id`,
		serviceID, dateFrom, dateTo, activeOnly,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Slot
	for rows.Next() {
		slot, err := r.scanSlot(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *slot)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *SlotRepo) UpdateCapacity(ctx context.Context, id string, capacity int) (*domain.Slot, error) {
	const op = "postgres.SlotRepo.UpdateCapacity"

	slot, err := r.scanSlot(r.db.QueryRow(ctx,
		`UPDATE availability_slots
        	SET capacity = $2
      	 WHERE id = $1
     	 RETURNING `+slotColumns,
		id, capacity,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return slot, nil
}

func (r *SlotRepo) SetActive(ctx context.Context, id string, active bool) (*domain.Slot, error) {
	const op = "postgres.SlotRepo.SetActive"

	slot, err := r.scanSlot(r.db.QueryRow(ctx,
		`UPDATE availability_slots
        	SET active = $2
      	 WHERE id = $1
     	 RETURNING `+slotColumns,
		id, active,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return slot, nil
}

func (r *SlotRepo) IncrementBooked(ctx context.Context, id string) error {
	const op = "postgres.SlotRepo.IncrementBooked"

	tag, err := r.db.Exec(ctx,
		`UPDATE availability_slots SET booked = booked + 1 WHERE id = $1`, id,
	)
	if err != nil {
		// the booked <= capacity table check rejects overbooking even if a
		// caller skipped the capacity check
		var pge *pgconn.PgError
		if errors.As(err, &pge) && pge.Code == "23514" {
			return fmt.Errorf("%s:%w", op, repository.ErrNoCapacity)
		}
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

func (r *SlotRepo) DecrementBooked(ctx context.Context, id string) error {
	const op = "postgres.SlotRepo.DecrementBooked"

	tag, err := r.db.Exec(ctx,
		`UPDATE availability_slots SET booked = GREATEST(booked - 1, 0) WHERE id = $1`, id,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}
