// Package cart implements the mutable pre-checkout basket: one active cart
// per user, batch and incremental item edits, invariant validation, and the
// checkout transition that hands the cart to order creation.
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pawcall/pawcall/internal/domain"
	"github.com/pawcall/pawcall/internal/repository"
	"github.com/pawcall/pawcall/internal/uow"
)

const staleBatchSize = 500

type Config struct {
	// TTL is the sliding inactivity window; item edits push it forward.
	TTL time.Duration
	// Currency reported by the validator for cart totals.
	Currency string
}

type Service struct {
	stores repository.Stores
	uow    *uow.UoW
	cfg    Config
	now    func() time.Time
}

func New(stores repository.Stores, u *uow.UoW, cfg Config) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = 2 * time.Hour
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	return &Service{
		stores: stores,
		uow:    u,
		cfg:    cfg,
		now:    time.Now,
	}
}

// GetOrCreateActive returns the user's current active cart, creating one
// when none exists or the previous one has lapsed.
func (s *Service) GetOrCreateActive(ctx context.Context, userID string) (*domain.CartWithItems, error) {
	const op = "service.cart.Service.GetOrCreateActive"

	current, err := s.stores.Carts().LatestActive(ctx, userID)
	switch {
	case err == nil:
		if !current.Lapsed(s.now().UTC()) {
			return s.withItems(ctx, op, current)
		}
		if err := s.expireOne(ctx, current.ID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	fresh := s.newCart(userID)
	if err := s.stores.Carts().Create(ctx, fresh); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &domain.CartWithItems{Cart: fresh}, nil
}

// Get returns one of the user's carts by id, lazily expiring it first.
func (s *Service) Get(ctx context.Context, userID string, id uuid.UUID) (*domain.CartWithItems, error) {
	const op = "service.cart.Service.Get"

	cart, err := s.load(ctx, op, userID, id)
	if err != nil {
		return nil, err
	}
	return s.withItems(ctx, op, cart)
}

// CreateWithItems atomically creates a fresh cart holding the given items.
// Any previous active cart is cancelled first so the one-active-cart
// invariant holds. The item set must pass full validation.
func (s *Service) CreateWithItems(ctx context.Context, userID string, items []domain.CartItem) (*domain.CartWithItems, error) {
	const op = "service.cart.Service.CreateWithItems"

	if res := validateItems(items, s.cfg.Currency); !res.Valid {
		return nil, &ValidationError{Errors: res.Errors}
	}

	cart := s.newCart(userID)
	stamped := s.stampItems(cart.ID, items)

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Stores, _ func(uow.AfterCommit)) error {
		if prev, err := tx.Carts().LatestActive(ctx, userID); err == nil {
			if _, err := tx.Carts().SetStatus(ctx, prev.ID, domain.CartActive, domain.CartCancelled); err != nil {
				return err
			}
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if err := tx.Carts().Create(ctx, cart); err != nil {
			return err
		}
		return tx.Carts().InsertItems(ctx, stamped)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &domain.CartWithItems{Cart: cart, Items: stamped}, nil
}

// ReplaceItems swaps the cart's entire item set. The new set must pass full
// validation.
func (s *Service) ReplaceItems(ctx context.Context, userID string, id uuid.UUID, items []domain.CartItem) (*domain.CartWithItems, error) {
	const op = "service.cart.Service.ReplaceItems"

	cart, err := s.mutable(ctx, op, userID, id)
	if err != nil {
		return nil, err
	}
	if res := validateItems(items, s.cfg.Currency); !res.Valid {
		return nil, &ValidationError{Errors: res.Errors}
	}

	stamped := s.stampItems(id, items)
	now := s.now().UTC()
	err = s.uow.Do(ctx, func(ctx context.Context, tx repository.Stores, _ func(uow.AfterCommit)) error {
		if err := tx.Carts().DeleteItems(ctx, id); err != nil {
			return err
		}
		if err := tx.Carts().InsertItems(ctx, stamped); err != nil {
			return err
		}
		return tx.Carts().Touch(ctx, id, now.Add(s.cfg.TTL))
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cart.ExpiresAt = now.Add(s.cfg.TTL)
	cart.UpdatedAt = now
	return &domain.CartWithItems{Cart: *cart, Items: stamped}, nil
}

// AddItem appends one item. The resulting combined set must stay valid, an
// addon cannot be added before its base.
func (s *Service) AddItem(ctx context.Context, userID string, id uuid.UUID, item domain.CartItem) (*domain.CartWithItems, error) {
	const op = "service.cart.Service.AddItem"

	cart, err := s.mutable(ctx, op, userID, id)
	if err != nil {
		return nil, err
	}
	existing, err := s.stores.Carts().ListItems(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	combined := append(append([]domain.CartItem{}, existing...), item)
	if res := validateItems(combined, s.cfg.Currency); !res.Valid {
		return nil, &ValidationError{Errors: res.Errors}
	}

	stamped := s.stampItems(id, []domain.CartItem{item})
	now := s.now().UTC()
	err = s.uow.Do(ctx, func(ctx context.Context, tx repository.Stores, _ func(uow.AfterCommit)) error {
		if err := tx.Carts().InsertItems(ctx, stamped); err != nil {
			return err
		}
		return tx.Carts().Touch(ctx, id, now.Add(s.cfg.TTL))
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cart.ExpiresAt = now.Add(s.cfg.TTL)
	cart.UpdatedAt = now
	return &domain.CartWithItems{Cart: *cart, Items: append(existing, stamped...)}, nil
}

// RemoveItem deletes one item. Removal is not re-validated; a dangling
// addon is surfaced by Validate and blocks checkout instead.
func (s *Service) RemoveItem(ctx context.Context, userID string, id, itemID uuid.UUID) error {
	const op = "service.cart.Service.RemoveItem"

	if _, err := s.mutable(ctx, op, userID, id); err != nil {
		return err
	}

	now := s.now().UTC()
	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Stores, _ func(uow.AfterCommit)) error {
		if err := tx.Carts().DeleteItem(ctx, id, itemID); err != nil {
			return err
		}
		return tx.Carts().Touch(ctx, id, now.Add(s.cfg.TTL))
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrItemNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Validate runs the invariant checks against the cart's current items
// without mutating anything.
func (s *Service) Validate(ctx context.Context, userID string, id uuid.UUID) (*ValidationResult, error) {
	const op = "service.cart.Service.Validate"

	cart, err := s.load(ctx, op, userID, id)
	if err != nil {
		return nil, err
	}
	switch cart.Status {
	case domain.CartExpired:
		return nil, ErrCartGone
	case domain.CartCancelled:
		return nil, ErrCartConflict
	}

	items, err := s.stores.Carts().ListItems(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	res := validateItems(items, s.cfg.Currency)
	return &res, nil
}

// Checkout re-validates and transitions the cart active -> checked_out. The
// item set is re-read inside the transaction so a concurrent edit cannot
// slip an invalid cart through.
func (s *Service) Checkout(ctx context.Context, userID string, id uuid.UUID) (*domain.Cart, error) {
	const op = "service.cart.Service.Checkout"

	cart, err := s.mutable(ctx, op, userID, id)
	if err != nil {
		return nil, err
	}

	err = s.uow.Do(ctx, func(ctx context.Context, tx repository.Stores, _ func(uow.AfterCommit)) error {
		items, err := tx.Carts().ListItems(ctx, id)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrCheckoutEmpty
		}
		if res := validateItems(items, s.cfg.Currency); !res.Valid {
			return &ValidationError{Errors: res.Errors}
		}
		ok, err := tx.Carts().SetStatus(ctx, id, domain.CartActive, domain.CartCheckedOut)
		if err != nil {
			return err
		}
		if !ok {
			return ErrCartConflict
		}
		return nil
	})
	if err != nil {
		var verr *ValidationError
		if errors.Is(err, ErrCartConflict) || errors.Is(err, ErrCheckoutEmpty) || errors.As(err, &verr) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cart.Status = domain.CartCheckedOut
	return cart, nil
}

// ExpireStale transitions every lapsed active cart to expired. Returns the
// number of carts this call expired.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	const op = "service.cart.Service.ExpireStale"

	stale, err := s.stores.Carts().ListStale(ctx, s.now().UTC(), staleBatchSize)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var expired int
	for _, c := range stale {
		ok, err := s.stores.Carts().SetStatus(ctx, c.ID, domain.CartActive, domain.CartExpired)
		if err != nil {
			return expired, fmt.Errorf("%s: %w", op, err)
		}
		if ok {
			expired++
		}
	}
	return expired, nil
}

func (s *Service) newCart(userID string) domain.Cart {
	now := s.now().UTC()
	return domain.Cart{
		ID:        uuid.New(),
		UserID:    userID,
		Status:    domain.CartActive,
		ExpiresAt: now.Add(s.cfg.TTL),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Service) stampItems(cartID uuid.UUID, items []domain.CartItem) []domain.CartItem {
	out := make([]domain.CartItem, len(items))
	for i, it := range items {
		it.ID = uuid.New()
		it.CartID = cartID
		if it.Quantity == 0 {
			it.Quantity = 1
		}
		out[i] = it
	}
	return out
}

// load reads the user's cart and lazily expires lapsed ones.
func (s *Service) load(ctx context.Context, op, userID string, id uuid.UUID) (*domain.Cart, error) {
	cart, err := s.stores.Carts().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cart.UserID != userID {
		return nil, ErrNotOwner
	}
	if cart.Lapsed(s.now().UTC()) {
		if err := s.expireOne(ctx, cart.ID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		cart.Status = domain.CartExpired
	}
	return cart, nil
}

// mutable is load plus the edits-require-an-active-cart check.
func (s *Service) mutable(ctx context.Context, op, userID string, id uuid.UUID) (*domain.Cart, error) {
	cart, err := s.load(ctx, op, userID, id)
	if err != nil {
		return nil, err
	}
	switch cart.Status {
	case domain.CartActive:
		return cart, nil
	case domain.CartExpired:
		return nil, ErrCartGone
	default:
		return nil, ErrCartConflict
	}
}

func (s *Service) expireOne(ctx context.Context, id uuid.UUID) error {
	// Guarded transition; losing to a concurrent expiry is fine.
	_, err := s.stores.Carts().SetStatus(ctx, id, domain.CartActive, domain.CartExpired)
	return err
}

func (s *Service) withItems(ctx context.Context, op string, cart *domain.Cart) (*domain.CartWithItems, error) {
	items, err := s.stores.Carts().ListItems(ctx, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &domain.CartWithItems{Cart: *cart, Items: items}, nil
}
