package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawcall/pawcall/internal/domain"
	"github.com/pawcall/pawcall/internal/repository/memory"
	"github.com/pawcall/pawcall/internal/uow"
)

type fixture struct {
	svc   *Service
	store *memory.Store
	now   time.Time
	mu    sync.Mutex
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	f := &fixture{
		store: store,
		now:   time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC),
	}
	f.svc = New(store, uow.New(store), Config{TTL: 2 * time.Hour, Currency: "USD"})
	f.svc.now = func() time.Time {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.now
	}
	return f
}

func baseItem() domain.CartItem {
	return domain.CartItem{
		Kind:           domain.ItemServiceBase,
		RefID:          "grooming-full",
		Name:           "Full Grooming",
		Quantity:       1,
		UnitPriceCents: 5000,
		Meta: map[string]string{
			domain.MetaPetID:         "pet-rex",
			domain.MetaScheduledDate: "2026-09-10",
			domain.MetaScheduledTime: "14:30",
		},
	}
}

func addonItem() domain.CartItem {
	return domain.CartItem{
		Kind:           domain.ItemServiceAddon,
		RefID:          "addon-detangling",
		Name:           "Coat Detangling",
		Quantity:       1,
		UnitPriceCents: 1500,
		Meta:           map[string]string{domain.MetaRequiresBase: "grooming-full"},
	}
}

func productItem() domain.CartItem {
	return domain.CartItem{
		Kind:           domain.ItemProduct,
		RefID:          "shampoo-oatmeal",
		Name:           "Oatmeal Shampoo",
		Quantity:       2,
		UnitPriceCents: 500,
	}
}

func TestGetOrCreateActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.GetOrCreateActive(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.CartActive, first.Cart.Status)
	assert.Empty(t, first.Items)

	// second call returns the same cart
	second, err := f.svc.GetOrCreateActive(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, first.Cart.ID, second.Cart.ID)
}

func TestGetOrCreateActiveReplacesLapsedCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.GetOrCreateActive(ctx, "u1")
	require.NoError(t, err)

	f.advance(3 * time.Hour)

	second, err := f.svc.GetOrCreateActive(ctx, "u1")
	require.NoError(t, err)
	assert.NotEqual(t, first.Cart.ID, second.Cart.ID)

	stale, err := f.store.Carts().GetByID(ctx, first.Cart.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CartExpired, stale.Status)
}

func TestCreateWithItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cw, err := f.svc.CreateWithItems(ctx, "u1", []domain.CartItem{baseItem(), addonItem(), productItem()})
	require.NoError(t, err)
	assert.Len(t, cw.Items, 3)

	res, err := f.svc.Validate(ctx, "u1", cw.Cart.ID)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, int64(5000+1500+2*500), res.TotalCents)
}

func TestCreateWithItemsCancelsPreviousActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old, err := f.svc.GetOrCreateActive(ctx, "u1")
	require.NoError(t, err)

	cw, err := f.svc.CreateWithItems(ctx, "u1", []domain.CartItem{baseItem()})
	require.NoError(t, err)
	assert.NotEqual(t, old.Cart.ID, cw.Cart.ID)

	prev, err := f.store.Carts().GetByID(ctx, old.Cart.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CartCancelled, prev.Status)

	active, err := f.store.Carts().LatestActive(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, cw.Cart.ID, active.ID)
}

func TestValidationRejectsImpossibleDate(t *testing.T) {
	f := newFixture(t)

	item := baseItem()
	item.Meta[domain.MetaScheduledDate] = "2026-13-01"

	_, err := f.svc.CreateWithItems(context.Background(), "u1", []domain.CartItem{item})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Errors, 1)
	assert.Contains(t, verr.Errors[0], "not a real calendar date")
}

func TestValidationRejectsMissingScheduleMeta(t *testing.T) {
	f := newFixture(t)

	item := baseItem()
	delete(item.Meta, domain.MetaScheduledTime)

	_, err := f.svc.CreateWithItems(context.Background(), "u1", []domain.CartItem{item})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Errors[0], "scheduled_time")
}

func TestValidationRejectsBadTimeFormat(t *testing.T) {
	f := newFixture(t)

	item := baseItem()
	item.Meta[domain.MetaScheduledTime] = "25:00"

	_, err := f.svc.CreateWithItems(context.Background(), "u1", []domain.CartItem{item})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Errors[0], "HH:MM")
}

func TestValidationRequiresExactlyOneBase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateWithItems(ctx, "u1", []domain.CartItem{productItem()})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Errors[0], "at least one base service")

	second := baseItem()
	second.RefID = "grooming-bath"
	_, err = f.svc.CreateWithItems(ctx, "u1", []domain.CartItem{baseItem(), second})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Errors[0], "multiple base services")
}

func TestValidationRejectsOrphanAddon(t *testing.T) {
	f := newFixture(t)

	orphan := addonItem()
	orphan.Meta[domain.MetaRequiresBase] = "grooming-bath"
	_, err := f.svc.CreateWithItems(context.Background(), "u1", []domain.CartItem{baseItem(), orphan})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Errors[0], "not in the cart")
}

func TestValidationWarnsOnUnpricedService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item := baseItem()
	item.UnitPriceCents = 0

	cw, err := f.svc.CreateWithItems(ctx, "u1", []domain.CartItem{item})
	require.NoError(t, err, "unpriced items are a warning, not an error")

	res, err := f.svc.Validate(ctx, "u1", cw.Cart.ID)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "no price configured")
	assert.Zero(t, res.TotalCents)
}

func TestAddItemValidatesCombinedSet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cw, err := f.svc.CreateWithItems(ctx, "u1", []domain.CartItem{baseItem()})
	require.NoError(t, err)

	// addon referencing a base that exists in the cart is fine
	updated, err := f.svc.AddItem(ctx, "u1", cw.Cart.ID, addonItem())
	require.NoError(t, err)
	assert.Len(t, updated.Items, 2)

	// addon referencing a missing base is rejected
	orphan := addonItem()
	orphan.Meta[domain.MetaRequiresBase] = "grooming-bath"
	_, err = f.svc.AddItem(ctx, "u1", cw.Cart.ID, orphan)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestRemoveItemThenCheckoutCatchesDanglingAddon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cw, err := f.svc.CreateWithItems(ctx, "u1", []domain.CartItem{baseItem(), addonItem()})
	require.NoError(t, err)

	var baseID = cw.Items[0].ID
	require.NoError(t, f.svc.RemoveItem(ctx, "u1", cw.Cart.ID, baseID))

	// the dangling addon blocks checkout
	_, err = f.svc.Checkout(ctx, "u1", cw.Cart.ID)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestReplaceItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cw, err := f.svc.CreateWithItems(ctx, "u1", []domain.CartItem{baseItem(), addonItem()})
	require.NoError(t, err)

	bath := baseItem()
	bath.RefID = "grooming-bath"
	bath.Name = "Bath Only"
	updated, err := f.svc.ReplaceItems(ctx, "u1", cw.Cart.ID, []domain.CartItem{bath, productItem()})
	require.NoError(t, err)
	require.Len(t, updated.Items, 2)
	assert.Equal(t, "grooming-bath", updated.Items[0].RefID)
}

func TestCheckout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cw, err := f.svc.CreateWithItems(ctx, "u1", []domain.CartItem{baseItem()})
	require.NoError(t, err)

	ct, err := f.svc.Checkout(ctx, "u1", cw.Cart.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CartCheckedOut, ct.Status)

	// checked out carts are frozen
	_, err = f.svc.AddItem(ctx, "u1", cw.Cart.ID, productItem())
	assert.ErrorIs(t, err, ErrCartConflict)
	_, err = f.svc.Checkout(ctx, "u1", cw.Cart.ID)
	assert.ErrorIs(t, err, ErrCartConflict)
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cw, err := f.svc.GetOrCreateActive(ctx, "u1")
	require.NoError(t, err)

	_, err = f.svc.Checkout(ctx, "u1", cw.Cart.ID)
	assert.ErrorIs(t, err, ErrCheckoutEmpty)
}

func TestLapsedCartIsGone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cw, err := f.svc.CreateWithItems(ctx, "u1", []domain.CartItem{baseItem()})
	require.NoError(t, err)

	f.advance(3 * time.Hour)

	_, err = f.svc.Checkout(ctx, "u1", cw.Cart.ID)
	assert.ErrorIs(t, err, ErrCartGone)
	_, err = f.svc.AddItem(ctx, "u1", cw.Cart.ID, productItem())
	assert.ErrorIs(t, err, ErrCartGone)
	_, err = f.svc.Validate(ctx, "u1", cw.Cart.ID)
	assert.ErrorIs(t, err, ErrCartGone)
}

func TestEditsSlideExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cw, err := f.svc.CreateWithItems(ctx, "u1", []domain.CartItem{baseItem()})
	require.NoError(t, err)

	f.advance(90 * time.Minute)
	updated, err := f.svc.AddItem(ctx, "u1", cw.Cart.ID, productItem())
	require.NoError(t, err)
	assert.Equal(t, f.now.Add(2*time.Hour), updated.Cart.ExpiresAt)
}

func TestCartOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cw, err := f.svc.CreateWithItems(ctx, "u1", []domain.CartItem{baseItem()})
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, "u2", cw.Cart.ID)
	assert.ErrorIs(t, err, ErrNotOwner)
	_, err = f.svc.Checkout(ctx, "u2", cw.Cart.ID)
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestExpireStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateWithItems(ctx, "u1", []domain.CartItem{baseItem()})
	require.NoError(t, err)
	_, err = f.svc.CreateWithItems(ctx, "u2", []domain.CartItem{baseItem()})
	require.NoError(t, err)

	f.advance(3 * time.Hour)

	expired, err := f.svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, expired)

	expired, err = f.svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, expired)
}
