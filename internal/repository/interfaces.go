package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pawcall/pawcall/internal/domain"
)

// Stores bundles one store per aggregate. The engine services depend only on
// this interface; implementations live in repository/postgres (persistent)
// and repository/memory (test double).
//
// RunTx runs fn against a transaction-bound Stores. Row locks taken through
// the bound Stores are held until fn returns. Nested RunTx calls join the
// enclosing transaction.
type Stores interface {
	Catalog() CatalogStore
	Slots() SlotStore
	Holds() HoldStore
	Carts() CartStore
	Orders() OrderStore
	Pets() PetStore
	Providers() ProviderStore

	RunTx(ctx context.Context, fn func(ctx context.Context, tx Stores) error) error
}

type CatalogStore interface {
	GetService(ctx context.Context, id string) (*domain.Service, error)
	ListServices(ctx context.Context, activeOnly bool) ([]domain.Service, error)
	UpsertService(ctx context.Context, svc domain.Service) error
	ListPriceRules(ctx context.Context, serviceID string) ([]domain.PriceRule, error)
	UpsertPriceRule(ctx context.Context, rule domain.PriceRule) error
}

type SlotStore interface {
	Create(ctx context.Context, slot domain.Slot) (*domain.Slot, error)
	GetByID(ctx context.Context, id string) (*domain.Slot, error)
	GetForDate(ctx context.Context, serviceID, date string) (*domain.Slot, error)
	// GetForUpdate acquires an exclusive lock on the slot row for the
	// duration of the enclosing transaction. Callers must hold this lock
	// before mutating the booked counter.
	GetForUpdate(ctx context.Context, serviceID, date string) (*domain.Slot, error)
	List(ctx context.Context, serviceID, dateFrom, dateTo string, activeOnly bool) ([]domain.Slot, error)
	UpdateCapacity(ctx context.Context, id string, capacity int) (*domain.Slot, error)
	SetActive(ctx context.Context, id string, active bool) (*domain.Slot, error)
	IncrementBooked(ctx context.Context, id string) error
	// DecrementBooked is floor-clamped at zero, it never underflows.
	DecrementBooked(ctx context.Context, id string) error
}

type HoldStore interface {
	Create(ctx context.Context, h domain.Hold) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Hold, error)
	// Confirm transitions held->confirmed and freezes the quote snapshot.
	// The bool reports whether this call performed the transition; false
	// means the hold was no longer in held status.
	Confirm(ctx context.Context, id uuid.UUID, q domain.Quote) (bool, error)
	MarkCancelled(ctx context.Context, id uuid.UUID) (bool, error)
	MarkExpired(ctx context.Context, id uuid.UUID) (bool, error)
	ListStale(ctx context.Context, now time.Time, limit int) ([]domain.Hold, error)
}

type CartStore interface {
	Create(ctx context.Context, c domain.Cart) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Cart, error)
	// LatestActive returns the most recent cart in active status for the
	// user, or ErrNotFound.
	LatestActive(ctx context.Context, userID string) (*domain.Cart, error)
	// SetStatus is a guarded transition: it only applies when the cart is
	// still in the expected from status.
	SetStatus(ctx context.Context, id uuid.UUID, from, to domain.CartStatus) (bool, error)
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
	ListItems(ctx context.Context, cartID uuid.UUID) ([]domain.CartItem, error)
	InsertItems(ctx context.Context, items []domain.CartItem) error
	DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error
	DeleteItems(ctx context.Context, cartID uuid.UUID) error
	ListStale(ctx context.Context, now time.Time, limit int) ([]domain.Cart, error)
}

// OrderFilter narrows admin listings. Zero values mean "any".
type OrderFilter struct {
	Status     domain.OrderStatus
	ProviderID string
	UserID     string
	Limit      int
	Offset     int
}

type OrderStore interface {
	Create(ctx context.Context, o domain.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	List(ctx context.Context, f OrderFilter) ([]domain.Order, error)
	// SetStatus is a guarded transition from the expected current status.
	SetStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) (bool, error)
	SetDeliveryStatus(ctx context.Context, id uuid.UUID, to domain.DeliveryStatus) error
	AddAssignment(ctx context.Context, a domain.Assignment) error
	// SetCurrentAssignment updates the order's denormalized provider and
	// schedule pointers to the latest assignment.
	SetCurrentAssignment(ctx context.Context, orderID uuid.UUID, providerID string, scheduledAt time.Time) error
	ListAssignments(ctx context.Context, orderID uuid.UUID) ([]domain.Assignment, error)
}

type PetStore interface {
	GetByID(ctx context.Context, id string) (*domain.Pet, error)
	Upsert(ctx context.Context, p domain.Pet) error
}

type ProviderStore interface {
	GetByID(ctx context.Context, id string) (*domain.Provider, error)
	Upsert(ctx context.Context, p domain.Provider) error
}
