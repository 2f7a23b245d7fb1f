package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pawcall/pawcall/internal/domain"
	"github.com/pawcall/pawcall/internal/repository"

	"github.com/google/uuid"
)

type catalogStore struct {
	d  *data
	mu sync.Locker
}

func (c catalogStore) GetService(_ context.Context, id string) (*domain.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	svc, ok := c.d.services[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := copyService(svc)
	return &cp, nil
}

func (c catalogStore) ListServices(_ context.Context, activeOnly bool) ([]domain.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Service, 0, len(c.d.services))
	for _, svc := range c.d.services {
		if activeOnly && !svc.Active {
			continue
		}
		out = append(out, copyService(svc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c catalogStore) UpsertService(_ context.Context, svc domain.Service) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.d.services[svc.ID] = copyService(svc)
	return nil
}

func (c catalogStore) ListPriceRules(_ context.Context, serviceID string) ([]domain.PriceRule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.PriceRule
	for _, r := range c.d.rules {
		if r.ServiceID == serviceID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c catalogStore) UpsertPriceRule(_ context.Context, rule domain.PriceRule) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.d.rules[rule.ID] = rule
	return nil
}

type slotStore struct {
	d  *data
	mu sync.Locker
}

func (s slotStore) Create(_ context.Context, slot domain.Slot) (*domain.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := slotKey(slot.ServiceID, slot.Date)
	if _, ok := s.d.slotByKey[key]; ok {
		return nil, repository.ErrConflict
	}
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = time.Now().UTC()
	}
	s.d.slots[slot.ID] = slot
	s.d.slotByKey[key] = slot.ID
	cp := slot
	return &cp, nil
}

func (s slotStore) GetByID(_ context.Context, id string) (*domain.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id)
}

func (s slotStore) get(id string) (*domain.Slot, error) {
	slot, ok := s.d.slots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := slot
	return &cp, nil
}

func (s slotStore) GetForDate(_ context.Context, serviceID, date string) (*domain.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.d.slotByKey[slotKey(serviceID, date)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s.get(id)
}

// GetForUpdate relies on the transaction mutex for exclusivity; inside a
// RunTx the whole store is locked.
func (s slotStore) GetForUpdate(ctx context.Context, serviceID, date string) (*domain.Slot, error) {
	return s.GetForDate(ctx, serviceID, date)
}

func (s slotStore) List(_ context.Context, serviceID, dateFrom, dateTo string, activeOnly bool) ([]domain.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Slot
	for _, slot := range s.d.slots {
		if serviceID != "" && slot.ServiceID != serviceID {
			continue
		}
		if dateFrom != "" && slot.Date < dateFrom {
			continue
		}
		if dateTo != "" && slot.Date >= dateTo {
			continue
		}
		if activeOnly && !slot.Active {
			continue
		}
		out = append(out, slot)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].ServiceID < out[j].ServiceID
	})
	return out, nil
}

func (s slotStore) UpdateCapacity(_ context.Context, id string, capacity int) (*domain.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.d.slots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if capacity < slot.Booked {
		return nil, repository.ErrValidation
	}
	slot.Capacity = capacity
	s.d.slots[id] = slot
	cp := slot
	return &cp, nil
}

func (s slotStore) SetActive(_ context.Context, id string, active bool) (*domain.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.d.slots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	slot.Active = active
	s.d.slots[id] = slot
	cp := slot
	return &cp, nil
}

func (s slotStore) IncrementBooked(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.d.slots[id]
	if !ok {
		return repository.ErrNotFound
	}
	if slot.Booked >= slot.Capacity {
		return repository.ErrNoCapacity
	}
	slot.Booked++
	s.d.slots[id] = slot
	return nil
}

func (s slotStore) DecrementBooked(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.d.slots[id]
	if !ok {
		return repository.ErrNotFound
	}
	if slot.Booked > 0 {
		slot.Booked--
		s.d.slots[id] = slot
	}
	return nil
}

type holdStore struct {
	d  *data
	mu sync.Locker
}

func (h holdStore) Create(_ context.Context, hold domain.Hold) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.d.holds[hold.ID]; ok {
		return repository.ErrConflict
	}
	h.d.holds[hold.ID] = copyHold(hold)
	return nil
}

func (h holdStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Hold, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	hold, ok := h.d.holds[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := copyHold(hold)
	return &cp, nil
}

func (h holdStore) Confirm(_ context.Context, id uuid.UUID, q domain.Quote) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	hold, ok := h.d.holds[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if hold.Status != domain.HoldHeld {
		return false, nil
	}
	hold.Status = domain.HoldConfirmed
	hold.Quote = &q
	h.d.holds[id] = copyHold(hold)
	return true, nil
}

func (h holdStore) mark(id uuid.UUID, to domain.HoldStatus) (bool, error) {
	hold, ok := h.d.holds[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if hold.Status != domain.HoldHeld {
		return false, nil
	}
	hold.Status = to
	h.d.holds[id] = hold
	return true, nil
}

func (h holdStore) MarkCancelled(_ context.Context, id uuid.UUID) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mark(id, domain.HoldCancelled)
}

func (h holdStore) MarkExpired(_ context.Context, id uuid.UUID) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mark(id, domain.HoldExpired)
}

func (h holdStore) ListStale(_ context.Context, now time.Time, limit int) ([]domain.Hold, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []domain.Hold
	for _, hold := range h.d.holds {
		if hold.Status == domain.HoldHeld && !now.Before(hold.ExpiresAt) {
			out = append(out, copyHold(hold))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type cartStore struct {
	d  *data
	mu sync.Locker
}

func (c cartStore) Create(_ context.Context, cart domain.Cart) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.d.carts[cart.ID]; ok {
		return repository.ErrConflict
	}
	c.d.carts[cart.ID] = cart
	return nil
}

func (c cartStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Cart, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cart, ok := c.d.carts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := cart
	return &cp, nil
}

func (c cartStore) LatestActive(_ context.Context, userID string) (*domain.Cart, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var latest *domain.Cart
	for _, cart := range c.d.carts {
		if cart.UserID != userID || cart.Status != domain.CartActive {
			continue
		}
		if latest == nil || cart.CreatedAt.After(latest.CreatedAt) {
			cp := cart
			latest = &cp
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return latest, nil
}

func (c cartStore) SetStatus(_ context.Context, id uuid.UUID, from, to domain.CartStatus) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cart, ok := c.d.carts[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if cart.Status != from {
		return false, nil
	}
	cart.Status = to
	cart.UpdatedAt = time.Now().UTC()
	c.d.carts[id] = cart
	return true, nil
}

func (c cartStore) Touch(_ context.Context, id uuid.UUID, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cart, ok := c.d.carts[id]
	if !ok {
		return repository.ErrNotFound
	}
	cart.UpdatedAt = at
	c.d.carts[id] = cart
	return nil
}

func (c cartStore) ListItems(_ context.Context, cartID uuid.UUID) ([]domain.CartItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := c.d.items[cartID]
	out := make([]domain.CartItem, 0, len(items))
	for _, it := range items {
		out = append(out, copyItem(it))
	}
	return out, nil
}

func (c cartStore) InsertItems(_ context.Context, items []domain.CartItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, it := range items {
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		c.d.items[it.CartID] = append(c.d.items[it.CartID], copyItem(it))
	}
	return nil
}

func (c cartStore) DeleteItem(_ context.Context, cartID, itemID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := c.d.items[cartID]
	for i, it := range items {
		if it.ID == itemID {
			c.d.items[cartID] = append(items[:i:i], items[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (c cartStore) DeleteItems(_ context.Context, cartID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.d.items, cartID)
	return nil
}

func (c cartStore) ListStale(_ context.Context, now time.Time, limit int) ([]domain.Cart, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Cart
	for _, cart := range c.d.carts {
		if cart.Status == domain.CartActive && !now.Before(cart.ExpiresAt) {
			out = append(out, cart)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type orderStore struct {
	d  *data
	mu sync.Locker
}

func (o orderStore) Create(_ context.Context, order domain.Order) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.d.orders[order.ID]; ok {
		return repository.ErrConflict
	}
	o.d.orders[order.ID] = copyOrder(order)
	return nil
}

func (o orderStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	order, ok := o.d.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := copyOrder(order)
	return &cp, nil
}

func (o orderStore) List(_ context.Context, f repository.OrderFilter) ([]domain.Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []domain.Order
	for _, order := range o.d.orders {
		if f.UserID != "" && order.UserID != f.UserID {
			continue
		}
		if f.Status != "" && order.Status != f.Status {
			continue
		}
		if f.ProviderID != "" && order.ProviderID != f.ProviderID {
			continue
		}
		out = append(out, copyOrder(order))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (o orderStore) SetStatus(_ context.Context, id uuid.UUID, from, to domain.OrderStatus) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	order, ok := o.d.orders[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if order.Status != from {
		return false, nil
	}
	order.Status = to
	order.UpdatedAt = time.Now().UTC()
	o.d.orders[id] = order
	return true, nil
}

func (o orderStore) SetDeliveryStatus(_ context.Context, id uuid.UUID, to domain.DeliveryStatus) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	order, ok := o.d.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	order.DeliveryStatus = to
	order.UpdatedAt = time.Now().UTC()
	o.d.orders[id] = order
	return nil
}

func (o orderStore) AddAssignment(_ context.Context, a domain.Assignment) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.d.orders[a.OrderID]; !ok {
		return repository.ErrNotFound
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	o.d.assignments[a.OrderID] = append(o.d.assignments[a.OrderID], a)
	return nil
}

func (o orderStore) SetCurrentAssignment(_ context.Context, orderID uuid.UUID, providerID string, scheduledAt time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	order, ok := o.d.orders[orderID]
	if !ok {
		return repository.ErrNotFound
	}
	order.ProviderID = providerID
	at := scheduledAt
	order.ScheduledAt = &at
	order.UpdatedAt = time.Now().UTC()
	o.d.orders[orderID] = order
	return nil
}

func (o orderStore) ListAssignments(_ context.Context, orderID uuid.UUID) ([]domain.Assignment, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := append([]domain.Assignment(nil), o.d.assignments[orderID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type petStore struct {
	d  *data
	mu sync.Locker
}

func (p petStore) GetByID(_ context.Context, id string) (*domain.Pet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pet, ok := p.d.pets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := pet
	return &cp, nil
}

func (p petStore) Upsert(_ context.Context, pet domain.Pet) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.d.pets[pet.ID] = pet
	return nil
}

type providerStore struct {
	d  *data
	mu sync.Locker
}

func (p providerStore) GetByID(_ context.Context, id string) (*domain.Provider, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prov, ok := p.d.providers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := prov
	return &cp, nil
}

func (p providerStore) Upsert(_ context.Context, prov domain.Provider) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.d.providers[prov.ID] = prov
	return nil
}
