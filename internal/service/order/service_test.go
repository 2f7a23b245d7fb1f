package order

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawcall/pawcall/internal/domain"
	"github.com/pawcall/pawcall/internal/repository/memory"
	"github.com/pawcall/pawcall/internal/uow"
)

type sentNote struct {
	UserID string
	Type   string
}

// captureNotifier records notifications so tests can assert on delivery.
type captureNotifier struct {
	mu   sync.Mutex
	sent []sentNote
}

func (n *captureNotifier) Notify(_ context.Context, userID, typ, _, _ string, _ map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNote{UserID: userID, Type: typ})
	return nil
}

func (n *captureNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.sent))
	for i, s := range n.sent {
		out[i] = s.Type
	}
	return out
}

type fixture struct {
	svc      *Service
	store    *memory.Store
	notifier *captureNotifier
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	require.NoError(t, store.Providers().Upsert(ctx, domain.Provider{
		ID: "prov-downtown", Name: "Downtown Mobile Unit", Active: true,
	}))
	require.NoError(t, store.Providers().Upsert(ctx, domain.Provider{
		ID: "prov-retired", Name: "Retired Unit", Active: false,
	}))

	f := &fixture{
		store:    store,
		notifier: &captureNotifier{},
		now:      time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
	}
	f.svc = New(store, uow.New(store), f.notifier, slog.Default(), Config{Currency: "USD"})
	f.svc.now = func() time.Time { return f.now }
	return f
}

// checkedOutCart seeds a cart in checked_out status with one priced base, one
// priced addon and one unpriced service item.
func (f *fixture) checkedOutCart(t *testing.T, userID string) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	cart := domain.Cart{
		ID:        uuid.New(),
		UserID:    userID,
		Status:    domain.CartActive,
		ExpiresAt: f.now.Add(2 * time.Hour),
		CreatedAt: f.now,
		UpdatedAt: f.now,
	}
	require.NoError(t, f.store.Carts().Create(ctx, cart))
	require.NoError(t, f.store.Carts().InsertItems(ctx, []domain.CartItem{
		{
			ID: uuid.New(), CartID: cart.ID,
			Kind: domain.ItemServiceBase, RefID: "grooming-full", Name: "Full Grooming",
			Quantity: 1, UnitPriceCents: 4500,
			Meta: map[string]string{
				domain.MetaPetID:         "pet-rex",
				domain.MetaScheduledDate: "2026-09-10",
				domain.MetaScheduledTime: "14:30",
			},
		},
		{
			ID: uuid.New(), CartID: cart.ID,
			Kind: domain.ItemServiceAddon, RefID: "addon-nails", Name: "Nail Trim",
			Quantity: 1, UnitPriceCents: 1000,
			Meta: map[string]string{domain.MetaRequiresBase: "grooming-full"},
		},
		{
			ID: uuid.New(), CartID: cart.ID,
			Kind: domain.ItemServiceAddon, RefID: "addon-unpriced", Name: "Special Care",
			Quantity: 1, UnitPriceCents: 0,
			Meta: map[string]string{domain.MetaRequiresBase: "grooming-full"},
		},
	}))
	ok, err := f.store.Carts().SetStatus(ctx, cart.ID, domain.CartActive, domain.CartCheckedOut)
	require.NoError(t, err)
	require.True(t, ok)
	return cart.ID
}

func (f *fixture) placedOrder(t *testing.T, userID string) *domain.Order {
	t.Helper()
	cartID := f.checkedOutCart(t, userID)
	order, err := f.svc.CreateFromCart(context.Background(), userID, cartID, json.RawMessage(`{"street":"12 Bark Ave"}`))
	require.NoError(t, err)
	return order
}

func (f *fixture) assignedOrder(t *testing.T, userID, providerID string) *domain.Order {
	t.Helper()
	order := f.placedOrder(t, userID)
	assigned, err := f.svc.Assign(context.Background(), order.ID, providerID, f.now.Add(24*time.Hour), "op-1", "")
	require.NoError(t, err)
	return assigned
}

func TestCreateFromCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cartID := f.checkedOutCart(t, "u1")

	order, err := f.svc.CreateFromCart(ctx, "u1", cartID, json.RawMessage(`{"street":"12 Bark Ave"}`))
	require.NoError(t, err)

	assert.Equal(t, domain.OrderCreated, order.Status)
	assert.Equal(t, domain.DeliveryCreated, order.DeliveryStatus)
	assert.Len(t, order.Items, 3)
	// unpriced items do not contribute to the total
	assert.Equal(t, int64(4500+1000), order.TotalCents)
	assert.Equal(t, "USD", order.Currency)
	assert.Equal(t, []string{"order_created"}, f.notifier.types())
}

func TestCreateFromCartRequiresCheckedOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cart := domain.Cart{
		ID: uuid.New(), UserID: "u1", Status: domain.CartActive,
		ExpiresAt: f.now.Add(2 * time.Hour), CreatedAt: f.now, UpdatedAt: f.now,
	}
	require.NoError(t, f.store.Carts().Create(ctx, cart))

	_, err := f.svc.CreateFromCart(ctx, "u1", cart.ID, nil)
	assert.ErrorIs(t, err, ErrCartNotCheckedOut)

	_, err = f.svc.CreateFromCart(ctx, "u1", uuid.New(), nil)
	assert.ErrorIs(t, err, ErrCartNotFound)

	cartID := f.checkedOutCart(t, "u1")
	_, err = f.svc.CreateFromCart(ctx, "u2", cartID, nil)
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestCreateFromCartConsumesCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cartID := f.checkedOutCart(t, "u1")

	first, err := f.svc.CreateFromCart(ctx, "u1", cartID, nil)
	require.NoError(t, err)

	// a retried request must not mint a second order from the same cart
	_, err = f.svc.CreateFromCart(ctx, "u1", cartID, nil)
	assert.ErrorIs(t, err, ErrCartConsumed)

	cart, err := f.store.Carts().GetByID(ctx, cartID)
	require.NoError(t, err)
	assert.Equal(t, domain.CartOrdered, cart.Status)

	orders, err := f.svc.List(ctx, "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, first.ID, orders[0].ID)
}

func TestOrderItemsAreSnapshots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cartID := f.checkedOutCart(t, "u1")

	order, err := f.svc.CreateFromCart(ctx, "u1", cartID, nil)
	require.NoError(t, err)

	// wiping the cart's items after the fact must not touch the order
	require.NoError(t, f.store.Carts().DeleteItems(ctx, cartID))

	got, err := f.svc.Get(ctx, "u1", order.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 3)
	assert.Equal(t, "pet-rex", got.Items[0].Meta[domain.MetaPetID])
}

func TestGetIsOwnerScoped(t *testing.T) {
	f := newFixture(t)
	order := f.placedOrder(t, "u1")

	_, err := f.svc.Get(context.Background(), "u2", order.ID)
	assert.ErrorIs(t, err, ErrNotOwner)

	// back office sees everything
	got, err := f.svc.AdminGet(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
}

func TestAssign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placedOrder(t, "u1")

	when := f.now.Add(24 * time.Hour)
	assigned, err := f.svc.Assign(ctx, order.ID, "prov-downtown", when, "op-1", "gate code 4411")
	require.NoError(t, err)
	assert.Equal(t, "prov-downtown", assigned.ProviderID)
	require.NotNil(t, assigned.ScheduledAt)
	assert.Equal(t, when, *assigned.ScheduledAt)
	assert.Contains(t, f.notifier.types(), "order_assigned")
}

func TestAssignValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placedOrder(t, "u1")

	_, err := f.svc.Assign(ctx, order.ID, "prov-missing", f.now, "op-1", "")
	assert.ErrorIs(t, err, ErrProviderNotFound)

	_, err = f.svc.Assign(ctx, order.ID, "prov-retired", f.now, "op-1", "")
	assert.ErrorIs(t, err, ErrProviderInactive)

	_, err = f.svc.Cancel(ctx, order.ID)
	require.NoError(t, err)
	_, err = f.svc.Assign(ctx, order.ID, "prov-downtown", f.now, "op-1", "")
	assert.ErrorIs(t, err, ErrOrderClosed)
}

func TestReassignKeepsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placedOrder(t, "u1")

	_, err := f.svc.Assign(ctx, order.ID, "prov-downtown", f.now.Add(time.Hour), "op-1", "")
	require.NoError(t, err)

	require.NoError(t, f.store.Providers().Upsert(ctx, domain.Provider{
		ID: "prov-eastside", Name: "Eastside Unit", Active: true,
	}))
	f.now = f.now.Add(time.Minute)
	reassigned, err := f.svc.Assign(ctx, order.ID, "prov-eastside", f.now.Add(2*time.Hour), "op-1", "first unit unavailable")
	require.NoError(t, err)
	assert.Equal(t, "prov-eastside", reassigned.ProviderID)

	history, err := f.svc.Assignments(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "prov-downtown", history[0].ProviderID)
	assert.Equal(t, "prov-eastside", history[1].ProviderID)
}

func TestFulfillmentChain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.assignedOrder(t, "u1", "prov-downtown")

	steps := []struct {
		step func(context.Context, uuid.UUID, string) (*domain.Order, error)
		want domain.OrderStatus
	}{
		{f.svc.Accept, domain.OrderAccepted},
		{f.svc.Depart, domain.OrderOnTheWay},
		{f.svc.Arrive, domain.OrderInService},
		{f.svc.Complete, domain.OrderDone},
	}
	for _, s := range steps {
		got, err := s.step(ctx, order.ID, "prov-downtown")
		require.NoError(t, err)
		assert.Equal(t, s.want, got.Status)
	}
}

func TestFulfillmentCannotSkipSteps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.assignedOrder(t, "u1", "prov-downtown")

	// created -> on_the_way skips accepted
	_, err := f.svc.Depart(ctx, order.ID, "prov-downtown")
	var terr *domain.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, string(domain.OrderCreated), terr.Current)

	// repeating a step fails the same way
	_, err = f.svc.Accept(ctx, order.ID, "prov-downtown")
	require.NoError(t, err)
	_, err = f.svc.Accept(ctx, order.ID, "prov-downtown")
	assert.ErrorAs(t, err, &terr)
}

func TestFulfillmentIsProviderGated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// unassigned order: nobody may advance it
	fresh := f.placedOrder(t, "u1")
	_, err := f.svc.Accept(ctx, fresh.ID, "prov-downtown")
	assert.ErrorIs(t, err, ErrNotAssignedToYou)

	order := f.assignedOrder(t, "u2", "prov-downtown")
	_, err = f.svc.Accept(ctx, order.ID, "prov-eastside")
	assert.ErrorIs(t, err, ErrNotAssignedToYou)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placedOrder(t, "u1")

	cancelled, err := f.svc.Cancel(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, cancelled.Status)

	// cancelling again is idempotent
	again, err := f.svc.Cancel(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, again.Status)
}

func TestCancelDoneOrderFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.assignedOrder(t, "u1", "prov-downtown")

	for _, step := range []func(context.Context, uuid.UUID, string) (*domain.Order, error){
		f.svc.Accept, f.svc.Depart, f.svc.Arrive, f.svc.Complete,
	} {
		_, err := step(ctx, order.ID, "prov-downtown")
		require.NoError(t, err)
	}

	_, err := f.svc.Cancel(ctx, order.ID)
	assert.ErrorIs(t, err, ErrOrderClosed)
}

func TestSetDeliveryStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placedOrder(t, "u1")

	// skipping forward is allowed on the ranked track
	got, err := f.svc.SetDeliveryStatus(ctx, order.ID, domain.DeliveryOnTheWay)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryOnTheWay, got.DeliveryStatus)

	// regression is not
	_, err = f.svc.SetDeliveryStatus(ctx, order.ID, domain.DeliveryInProcess)
	var terr *domain.TransitionError
	assert.ErrorAs(t, err, &terr)

	// unknown value rejected before any lookup
	_, err = f.svc.SetDeliveryStatus(ctx, order.ID, domain.DeliveryStatus("teleported"))
	assert.ErrorIs(t, err, ErrBadDeliveryStatus)
}

func TestListScoping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.placedOrder(t, "u1")
	f.assignedOrder(t, "u2", "prov-downtown")

	mine, err := f.svc.List(ctx, "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "u1", mine[0].UserID)

	assigned, err := f.svc.ProviderList(ctx, "prov-downtown", 10, 0)
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, "u2", assigned[0].UserID)
}
