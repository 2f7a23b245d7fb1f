// Package hold implements provisional reservations: slot-bound holds that
// consume capacity under a row lock, bare timer-only holds, confirmation
// with a frozen quote, cancellation, and lazy plus batch expiry.
package hold

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pawcall/pawcall/internal/domain"
	"github.com/pawcall/pawcall/internal/repository"
	redisrepo "github.com/pawcall/pawcall/internal/repository/redis"
	"github.com/pawcall/pawcall/internal/service/pricing"
	"github.com/pawcall/pawcall/internal/uow"
)

const staleBatchSize = 500

type Config struct {
	// TTL is how long a hold stays reserved before it lapses.
	TTL time.Duration
	// IdemLockTTL bounds how long a duplicate request waits behind the
	// first one.
	IdemLockTTL time.Duration
}

// Idempotency is the replay store behind Idempotency-Key support, implemented
// by the redis idempotency store.
type Idempotency interface {
	AcquireLock(ctx context.Context, key string, lockTTL time.Duration) (bool, error)
	SaveResult(ctx context.Context, key string, jsonPayload string) error
	GetResult(ctx context.Context, key string) (string, bool, error)
	Release(ctx context.Context, key string) error
}

type Service struct {
	stores  repository.Stores
	uow     *uow.UoW
	pricing *pricing.Service
	cache   *redisrepo.Cache
	limiter *redisrepo.SlidingWindowLimiter
	idem    Idempotency
	cfg     Config
	now     func() time.Time
}

// New constructs the hold service. cache, limiter and idem may be nil; the
// corresponding concern is then skipped.
func New(
	stores repository.Stores,
	u *uow.UoW,
	pr *pricing.Service,
	cache *redisrepo.Cache,
	limiter *redisrepo.SlidingWindowLimiter,
	idem Idempotency,
	cfg Config,
) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.IdemLockTTL <= 0 {
		cfg.IdemLockTTL = 30 * time.Second
	}
	return &Service{
		stores:  stores,
		uow:     u,
		pricing: pr,
		cache:   cache,
		limiter: limiter,
		idem:    idem,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Create places a hold for the user's pet on a service. When date is set the
// hold is slot-bound: it consumes one unit of the slot's capacity under an
// exclusive row lock. An empty date creates a bare timer-only hold.
//
// idemKey, when non-empty, makes retries of the same request return the hold
// created by the first attempt instead of consuming more capacity.
func (s *Service) Create(ctx context.Context, userID, petID, serviceID, date, idemKey string) (*domain.Hold, error) {
	const op = "service.hold.Service.Create"

	if s.limiter != nil {
		allowed, _, _, err := s.limiter.Allow(ctx, userID)
		if err == nil && !allowed {
			return nil, ErrRateLimited
		}
	}

	if date != "" && !validDate(date) {
		return nil, ErrInvalidDate
	}

	svc, err := s.stores.Catalog().GetService(ctx, serviceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrServiceNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !svc.Active {
		return nil, ErrServiceNotFound
	}

	pet, err := s.stores.Pets().GetByID(ctx, petID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPetNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if pet.UserID != userID {
		return nil, ErrNotOwner
	}

	var idemRedisKey string
	if s.idem != nil && idemKey != "" {
		idemRedisKey = redisrepo.KeyIdemHold(userID, idemKey)
		if cached, err := s.replay(ctx, idemRedisKey); err != nil || cached != nil {
			return cached, err
		}
		acquired, err := s.idem.AcquireLock(ctx, idemRedisKey, s.cfg.IdemLockTTL)
		if err == nil && !acquired {
			// Another in-flight request holds the key; treat as a replay
			// race and re-read once.
			if cached, err := s.replay(ctx, idemRedisKey); err != nil || cached != nil {
				return cached, err
			}
			return nil, ErrHoldConflict
		}
	}

	now := s.now().UTC()
	hold := domain.Hold{
		ID:        uuid.New(),
		UserID:    userID,
		PetID:     petID,
		ServiceID: serviceID,
		Status:    domain.HoldHeld,
		Date:      date,
		ExpiresAt: now.Add(s.cfg.TTL),
		CreatedAt: now,
	}

	err = s.uow.Do(ctx, func(ctx context.Context, tx repository.Stores, after func(uow.AfterCommit)) error {
		if hold.SlotBound() {
			slot, err := tx.Slots().GetForUpdate(ctx, serviceID, date)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return ErrSlotNotFound
				}
				return err
			}
			if !slot.Active {
				return ErrSlotInactive
			}
			if slot.Remaining() == 0 {
				return ErrNoCapacity
			}
			if err := tx.Slots().IncrementBooked(ctx, slot.ID); err != nil {
				if errors.Is(err, repository.ErrNoCapacity) {
					return ErrNoCapacity
				}
				return err
			}
			after(func(ctx context.Context) { s.invalidate(ctx, serviceID, date) })
		}
		return tx.Holds().Create(ctx, hold)
	})
	if err != nil {
		if idemRedisKey != "" {
			// Drop the lock so a retry with the same key gets a fresh
			// attempt instead of waiting out the lock TTL.
			_ = s.idem.Release(ctx, idemRedisKey)
		}
		if isSentinel(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if idemRedisKey != "" {
		if payload, err := json.Marshal(hold); err == nil {
			_ = s.idem.SaveResult(ctx, idemRedisKey, string(payload))
		}
	}
	return &hold, nil
}

// Get returns the user's hold, expiring it first if its deadline has passed.
func (s *Service) Get(ctx context.Context, userID string, id uuid.UUID) (*domain.Hold, error) {
	const op = "service.hold.Service.Get"

	hold, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if hold.UserID != userID {
		return nil, ErrNotOwner
	}
	return hold, nil
}

// Confirm transitions a live hold to confirmed and freezes a quote priced at
// this moment. Confirming an already confirmed hold is an idempotent no-op.
// Confirmation does not release capacity: the booked unit now backs the
// confirmed appointment.
func (s *Service) Confirm(ctx context.Context, userID string, id uuid.UUID) (*domain.Hold, error) {
	const op = "service.hold.Service.Confirm"

	hold, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if hold.UserID != userID {
		return nil, ErrNotOwner
	}
	switch hold.Status {
	case domain.HoldConfirmed:
		return hold, nil
	case domain.HoldExpired:
		return nil, ErrHoldExpired
	case domain.HoldCancelled:
		return nil, ErrHoldConflict
	}

	quote, err := s.pricing.Quote(ctx, hold.PetID, hold.ServiceID, nil)
	if err != nil {
		return nil, err
	}

	var confirmed bool
	err = s.uow.Do(ctx, func(ctx context.Context, tx repository.Stores, _ func(uow.AfterCommit)) error {
		ok, err := tx.Holds().Confirm(ctx, id, *quote)
		if err != nil {
			return err
		}
		confirmed = ok
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !confirmed {
		// Lost the race against expiry or cancellation.
		current, err := s.stores.Holds().GetByID(ctx, id)
		if err == nil && current.Status == domain.HoldExpired {
			return nil, ErrHoldExpired
		}
		return nil, ErrHoldConflict
	}

	hold.Status = domain.HoldConfirmed
	hold.Quote = quote
	return hold, nil
}

// Cancel releases a live hold and, for slot-bound holds, returns its
// capacity unit. Cancelling an already cancelled hold is idempotent.
func (s *Service) Cancel(ctx context.Context, userID string, id uuid.UUID) (*domain.Hold, error) {
	const op = "service.hold.Service.Cancel"

	hold, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if hold.UserID != userID {
		return nil, ErrNotOwner
	}
	switch hold.Status {
	case domain.HoldCancelled:
		return hold, nil
	case domain.HoldExpired:
		return nil, ErrHoldExpired
	case domain.HoldConfirmed:
		return nil, ErrHoldConflict
	}

	var cancelled bool
	err = s.uow.Do(ctx, func(ctx context.Context, tx repository.Stores, after func(uow.AfterCommit)) error {
		ok, err := tx.Holds().MarkCancelled(ctx, id)
		if err != nil {
			return err
		}
		cancelled = ok
		if !ok || !hold.SlotBound() {
			return nil
		}
		return s.releaseCapacity(ctx, tx, after, *hold)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !cancelled {
		return nil, ErrHoldConflict
	}

	hold.Status = domain.HoldCancelled
	return hold, nil
}

// ExpireStale transitions every lapsed hold to expired and releases its
// capacity. Each hold moves in its own transaction so one failure does not
// poison the batch. Returns how many holds this call expired.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	const op = "service.hold.Service.ExpireStale"

	stale, err := s.stores.Holds().ListStale(ctx, s.now().UTC(), staleBatchSize)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var expired int
	for _, h := range stale {
		ok, err := s.expireOne(ctx, h)
		if err != nil {
			return expired, fmt.Errorf("%s: %w", op, err)
		}
		if ok {
			expired++
		}
	}
	return expired, nil
}

// load reads a hold and lazily expires it when its deadline has passed, so
// that readers never observe a live hold past its TTL.
func (s *Service) load(ctx context.Context, op string, id uuid.UUID) (*domain.Hold, error) {
	hold, err := s.stores.Holds().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrHoldNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if hold.Lapsed(s.now().UTC()) {
		if _, err := s.expireOne(ctx, *hold); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		hold.Status = domain.HoldExpired
	}
	return hold, nil
}

// expireOne performs the guarded held->expired transition plus capacity
// release in a single transaction. Losing the guard to a concurrent
// transition is not an error.
func (s *Service) expireOne(ctx context.Context, h domain.Hold) (bool, error) {
	var won bool
	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Stores, after func(uow.AfterCommit)) error {
		ok, err := tx.Holds().MarkExpired(ctx, h.ID)
		if err != nil {
			return err
		}
		won = ok
		if !ok || !h.SlotBound() {
			return nil
		}
		return s.releaseCapacity(ctx, tx, after, h)
	})
	return won, err
}

func (s *Service) releaseCapacity(ctx context.Context, tx repository.Stores, after func(uow.AfterCommit), h domain.Hold) error {
	slot, err := tx.Slots().GetForUpdate(ctx, h.ServiceID, h.Date)
	if err != nil {
		// The slot may have been removed out from under a bare hold row;
		// nothing left to release.
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	if err := tx.Slots().DecrementBooked(ctx, slot.ID); err != nil {
		return err
	}
	after(func(ctx context.Context) { s.invalidate(ctx, h.ServiceID, h.Date) })
	return nil
}

func (s *Service) replay(ctx context.Context, key string) (*domain.Hold, error) {
	payload, ok, err := s.idem.GetResult(ctx, key)
	if err != nil || !ok {
		return nil, nil
	}
	var h domain.Hold
	if err := json.Unmarshal([]byte(payload), &h); err != nil {
		return nil, nil
	}
	return &h, nil
}

func (s *Service) invalidate(ctx context.Context, serviceID, date string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.InvalidateSlot(ctx, serviceID, date)
}

func isSentinel(err error) bool {
	for _, sentinel := range []error{
		ErrSlotNotFound, ErrSlotInactive, ErrNoCapacity,
		ErrServiceNotFound, ErrPetNotFound,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func validDate(date string) bool {
	t, err := time.Parse(time.DateOnly, date)
	return err == nil && t.Format(time.DateOnly) == date
}
