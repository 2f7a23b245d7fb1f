// Package availability manages per (service, date) capacity slots: operator
// CRUD plus the customer-facing listing, with a redis read-through cache on
// the default listing window.
package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pawcall/pawcall/internal/domain"
	"github.com/pawcall/pawcall/internal/repository"
	redisrepo "github.com/pawcall/pawcall/internal/repository/redis"
	redisx "github.com/pawcall/pawcall/internal/redis"
)

const (
	defaultWindowDays = 7
	maxWindowDays     = 31
)

type Config struct {
	CacheTTL time.Duration
}

type Service struct {
	stores repository.Stores
	cache  *redisrepo.Cache
	cfg    Config
	now    func() time.Time
}

// New constructs the availability service. cache may be nil, listings then
// always hit the store.
func New(stores repository.Stores, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	return &Service{
		stores: stores,
		cache:  cache,
		cfg:    cfg,
		now:    time.Now,
	}
}

// CreateSlot opens capacity for a service on a date. At most one slot exists
// per (service, date) pair.
func (s *Service) CreateSlot(ctx context.Context, serviceID, date string, capacity int) (*domain.Slot, error) {
	const op = "service.availability.Service.CreateSlot"

	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	if !validDate(date) {
		return nil, ErrInvalidDate
	}
	if _, err := s.stores.Catalog().GetService(ctx, serviceID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrServiceNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	slot, err := s.stores.Slots().Create(ctx, domain.Slot{
		ServiceID: serviceID,
		Date:      date,
		Capacity:  capacity,
		Active:    true,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrSlotExists
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.invalidate(ctx, serviceID, date)
	return slot, nil
}

// UpdateCapacity resizes a slot. Shrinking below the booked counter is
// rejected, existing holds are never invalidated by a resize.
func (s *Service) UpdateCapacity(ctx context.Context, id string, capacity int) (*domain.Slot, error) {
	const op = "service.availability.Service.UpdateCapacity"

	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	slot, err := s.stores.Slots().UpdateCapacity(ctx, id, capacity)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrSlotNotFound
		case errors.Is(err, repository.ErrValidation):
			return nil, ErrInvalidCapacity
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.invalidate(ctx, slot.ServiceID, slot.Date)
	return slot, nil
}

// SetActive opens or closes a slot for new holds. Deactivation does not
// touch existing holds.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (*domain.Slot, error) {
	const op = "service.availability.Service.SetActive"

	slot, err := s.stores.Slots().SetActive(ctx, id, active)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSlotNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.invalidate(ctx, slot.ServiceID, slot.Date)
	return slot, nil
}

// GetSlot returns the slot for a service on a date, read through the cache.
func (s *Service) GetSlot(ctx context.Context, serviceID, date string) (*domain.Slot, error) {
	const op = "service.availability.Service.GetSlot"

	if !validDate(date) {
		return nil, ErrInvalidDate
	}

	load := func(ctx context.Context) (domain.Slot, error) {
		slot, err := s.stores.Slots().GetForDate(ctx, serviceID, date)
		if err != nil {
			return domain.Slot{}, err
		}
		return *slot, nil
	}

	var (
		slot domain.Slot
		err  error
	)
	if s.cache != nil {
		slot, err = redisrepo.GetOrSetJSON(ctx, s.cache, redisx.KeySlot(serviceID, date), s.cfg.CacheTTL, load)
	} else {
		slot, err = load(ctx)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSlotNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &slot, nil
}

// ListSlots returns the availability window for a service starting at
// dateFrom (today when empty), spanning days (default 7, capped at 31).
// Only the default window is cached, it is the hot path behind the booking
// screen.
func (s *Service) ListSlots(ctx context.Context, serviceID, dateFrom string, days int, activeOnly bool) ([]domain.Slot, error) {
	const op = "service.availability.Service.ListSlots"

	if _, err := s.stores.Catalog().GetService(ctx, serviceID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrServiceNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	today := s.now().UTC().Format(time.DateOnly)
	if dateFrom == "" {
		dateFrom = today
	} else if !validDate(dateFrom) {
		return nil, ErrInvalidDate
	}
	if days <= 0 {
		days = defaultWindowDays
	}
	if days > maxWindowDays {
		days = maxWindowDays
	}

	from, _ := time.Parse(time.DateOnly, dateFrom)
	dateTo := from.AddDate(0, 0, days).Format(time.DateOnly)

	load := func(ctx context.Context) ([]domain.Slot, error) {
		return s.stores.Slots().List(ctx, serviceID, dateFrom, dateTo, activeOnly)
	}

	defaultWindow := dateFrom == today && days == defaultWindowDays && activeOnly
	if s.cache != nil && defaultWindow {
		slots, err := redisrepo.GetOrSetJSON(ctx, s.cache, redisx.KeySlotList(serviceID), s.cfg.CacheTTL, load)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return slots, nil
	}

	slots, err := load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return slots, nil
}

func (s *Service) invalidate(ctx context.Context, serviceID, date string) {
	if s.cache == nil {
		return
	}
	// Best effort, a stale entry ages out within CacheTTL anyway.
	_ = s.cache.InvalidateSlot(ctx, serviceID, date)
}

func validDate(date string) bool {
	t, err := time.Parse(time.DateOnly, date)
	return err == nil && t.Format(time.DateOnly) == date
}
