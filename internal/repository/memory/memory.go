// Package memory is an in-memory implementation of the repository store
// interfaces, used as a test double and for local development without
// Postgres. Transactions are serialized under a single mutex, which gives
// the same exclusivity guarantees GetForUpdate provides in Postgres.
//
// Mutations inside RunTx are applied immediately and are not rolled back on
// error; callers follow the check-then-mutate discipline the services
// already use against the persistent store.
package memory

import (
	"context"
	"sync"

	"github.com/pawcall/pawcall/internal/domain"
	"github.com/pawcall/pawcall/internal/repository"

	"github.com/google/uuid"
)

type data struct {
	services    map[string]domain.Service
	rules       map[string]domain.PriceRule
	slots       map[string]domain.Slot
	slotByKey   map[string]string // serviceID|date -> slot id
	holds       map[uuid.UUID]domain.Hold
	carts       map[uuid.UUID]domain.Cart
	items       map[uuid.UUID][]domain.CartItem
	orders      map[uuid.UUID]domain.Order
	assignments map[uuid.UUID][]domain.Assignment
	pets        map[string]domain.Pet
	providers   map[string]domain.Provider
}

type Store struct {
	mu sync.Mutex
	d  *data
}

func NewStore() *Store {
	return &Store{d: &data{
		services:    make(map[string]domain.Service),
		rules:       make(map[string]domain.PriceRule),
		slots:       make(map[string]domain.Slot),
		slotByKey:   make(map[string]string),
		holds:       make(map[uuid.UUID]domain.Hold),
		carts:       make(map[uuid.UUID]domain.Cart),
		items:       make(map[uuid.UUID][]domain.CartItem),
		orders:      make(map[uuid.UUID]domain.Order),
		assignments: make(map[uuid.UUID][]domain.Assignment),
		pets:        make(map[string]domain.Pet),
		providers:   make(map[string]domain.Provider),
	}}
}

var _ repository.Stores = (*Store)(nil)

func (s *Store) Catalog() repository.CatalogStore { return catalogStore{s.d, &s.mu} }
func (s *Store) Slots() repository.SlotStore { return slotStore{s.d, &s.mu} }
func (s *Store) Holds() repository.HoldStore { return holdStore{s.d, &s.mu} }
func (s *Store) Carts() repository.CartStore { return cartStore{s.d, &s.mu} }
func (s *Store) Orders() repository.OrderStore { return orderStore{s.d, &s.mu} }
func (s *Store) Pets() repository.PetStore { return petStore{s.d, &s.mu} }
func (s *Store) Providers() repository.ProviderStore { return providerStore{s.d, &s.mu} }

// RunTx serializes the whole transaction under the store mutex.
func (s *Store) RunTx(ctx context.Context, fn func(ctx context.Context, tx repository.Stores) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx, txStores{s.d})
}

// txStores is a transaction-bound view. The mutex is already held, so the
// per-aggregate stores use a no-op locker; a nested RunTx joins the
// enclosing transaction.
type txStores struct{ d *data }

var _ repository.Stores = txStores{}

func (t txStores) Catalog() repository.CatalogStore { return catalogStore{t.d, nopLock{}} }
func (t txStores) Slots() repository.SlotStore { return slotStore{t.d, nopLock{}} }
func (t txStores) Holds() repository.HoldStore { return holdStore{t.d, nopLock{}} }
func (t txStores) Carts() repository.CartStore { return cartStore{t.d, nopLock{}} }
func (t txStores) Orders() repository.OrderStore { return orderStore{t.d, nopLock{}} }
func (t txStores) Pets() repository.PetStore { return petStore{t.d, nopLock{}} }
func (t txStores) Providers() repository.ProviderStore { return providerStore{t.d, nopLock{}} }

func (t txStores) RunTx(ctx context.Context, fn func(ctx context.Context, tx repository.Stores) error) error {
	return fn(ctx, t)
}

type nopLock struct{}

func (nopLock) Lock()   {}
func (nopLock) Unlock() {}

func slotKey(serviceID, date string) string { return serviceID + "|" + date }

func copyMeta(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	cp := make([]string, len(s))
	copy(cp, s)
	return cp
}

func copyHold(h domain.Hold) domain.Hold {
	if h.Quote != nil {
		q := *h.Quote
		q.Lines = append([]domain.QuoteLine(nil), h.Quote.Lines...)
		h.Quote = &q
	}
	return h
}

func copyItem(it domain.CartItem) domain.CartItem {
	it.Meta = copyMeta(it.Meta)
	return it
}

func copyOrder(o domain.Order) domain.Order {
	items := make([]domain.OrderItem, len(o.Items))
	for i, it := range o.Items {
		it.Meta = copyMeta(it.Meta)
		items[i] = it
	}
	o.Items = items
	o.Address = append([]byte(nil), o.Address...)
	if o.ScheduledAt != nil {
		at := *o.ScheduledAt
		o.ScheduledAt = &at
	}
	return o
}

func copyService(svc domain.Service) domain.Service {
	svc.BreedAllow = copyStrings(svc.BreedAllow)
	svc.Requires = copyStrings(svc.Requires)
	return svc
}
