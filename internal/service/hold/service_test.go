package hold

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawcall/pawcall/internal/domain"
	"github.com/pawcall/pawcall/internal/repository/memory"
	"github.com/pawcall/pawcall/internal/service/pricing"
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
	ctx := context.Background()

	require.NoError(t, store.Catalog().UpsertService(ctx, domain.Service{
		ID: "grooming-full", Name: "Full Grooming", Kind: domain.ServiceKindBase, Species: "dog", Active: true,
	}))
	require.NoError(t, store.Catalog().UpsertPriceRule(ctx, domain.PriceRule{
		ID: "r1", ServiceID: "grooming-full", Species: "dog", BreedCategory: "mixed",
		AmountCents: 5000, Currency: "USD", Active: true,
	}))
	require.NoError(t, store.Pets().Upsert(ctx, domain.Pet{
		ID: "pet-rex", UserID: "u1", Name: "Rex", Species: "dog", Breed: "corgi", BreedCategory: "small", WeightKg: 9,
	}))

	f := &fixture{
		store: store,
		now:   time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC),
	}
	pr := pricing.New(store, pricing.DefaultBreedRules(), pricing.Config{})
	f.svc = New(store, uow.New(store), pr, nil, nil, nil, Config{TTL: 10 * time.Minute})
	f.svc.now = func() time.Time {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.now
	}
	return f
}

func (f *fixture) addSlot(t *testing.T, date string, capacity int) domain.Slot {
	t.Helper()
	slot, err := f.store.Slots().Create(context.Background(), domain.Slot{
		ServiceID: "grooming-full", Date: date, Capacity: capacity, Active: true,
	})
	require.NoError(t, err)
	return *slot
}

func (f *fixture) slotByID(t *testing.T, id string) domain.Slot {
	t.Helper()
	slot, err := f.store.Slots().GetByID(context.Background(), id)
	require.NoError(t, err)
	return *slot
}

func TestCreateSlotBoundHold(t *testing.T) {
	f := newFixture(t)
	slot := f.addSlot(t, "2026-09-10", 3)

	h, err := f.svc.Create(context.Background(), "u1", "pet-rex", "grooming-full", "2026-09-10", "")
	require.NoError(t, err)

	assert.Equal(t, domain.HoldHeld, h.Status)
	assert.True(t, h.SlotBound())
	assert.Equal(t, f.now.Add(10*time.Minute), h.ExpiresAt)
	assert.Equal(t, 1, f.slotByID(t, slot.ID).Booked)
}

func TestCreateTimerOnlyHold(t *testing.T) {
	f := newFixture(t)

	h, err := f.svc.Create(context.Background(), "u1", "pet-rex", "grooming-full", "", "")
	require.NoError(t, err)
	assert.False(t, h.SlotBound())
	assert.Equal(t, domain.HoldHeld, h.Status)
}

func TestCreateHoldValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "u1", "pet-rex", "grooming-full", "2026-09-10", "")
	assert.ErrorIs(t, err, ErrSlotNotFound)

	_, err = f.svc.Create(ctx, "u1", "pet-rex", "grooming-full", "2026-13-01", "")
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = f.svc.Create(ctx, "u1", "pet-rex", "no-such-service", "", "")
	assert.ErrorIs(t, err, ErrServiceNotFound)

	_, err = f.svc.Create(ctx, "u1", "no-such-pet", "grooming-full", "", "")
	assert.ErrorIs(t, err, ErrPetNotFound)

	// pet belongs to u1
	_, err = f.svc.Create(ctx, "u2", "pet-rex", "grooming-full", "", "")
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestCreateHoldInactiveSlot(t *testing.T) {
	f := newFixture(t)
	slot := f.addSlot(t, "2026-09-10", 3)
	_, err := f.store.Slots().SetActive(context.Background(), slot.ID, false)
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), "u1", "pet-rex", "grooming-full", "2026-09-10", "")
	assert.ErrorIs(t, err, ErrSlotInactive)
}

func TestLastUnitRace(t *testing.T) {
	f := newFixture(t)
	f.addSlot(t, "2026-09-10", 1)

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Create(context.Background(), "u1", "pet-rex", "grooming-full", "2026-09-10", "")
		}(i)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case assert.ErrorIs(t, err, ErrNoCapacity):
			lost++
		}
	}
	assert.Equal(t, 1, won, "exactly one hold gets the last unit")
	assert.Equal(t, attempts-1, lost)
}

func TestConfirmFreezesQuote(t *testing.T) {
	f := newFixture(t)
	f.addSlot(t, "2026-09-10", 1)
	ctx := context.Background()

	h, err := f.svc.Create(ctx, "u1", "pet-rex", "grooming-full", "2026-09-10", "")
	require.NoError(t, err)

	confirmed, err := f.svc.Confirm(ctx, "u1", h.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.HoldConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.Quote)
	assert.Equal(t, int64(5000), confirmed.Quote.TotalCents)

	// a later price change must not leak into the frozen quote
	require.NoError(t, f.store.Catalog().UpsertPriceRule(ctx, domain.PriceRule{
		ID: "r1", ServiceID: "grooming-full", Species: "dog", BreedCategory: "mixed",
		AmountCents: 9900, Currency: "USD", Active: true,
	}))
	got, err := f.svc.Get(ctx, "u1", h.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), got.Quote.TotalCents)
}

func TestConfirmIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	h, err := f.svc.Create(ctx, "u1", "pet-rex", "grooming-full", "", "")
	require.NoError(t, err)

	first, err := f.svc.Confirm(ctx, "u1", h.ID)
	require.NoError(t, err)
	second, err := f.svc.Confirm(ctx, "u1", h.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Quote.TotalCents, second.Quote.TotalCents)
}

func TestConfirmKeepsCapacityConsumed(t *testing.T) {
	f := newFixture(t)
	slot := f.addSlot(t, "2026-09-10", 1)
	ctx := context.Background()

	h, err := f.svc.Create(ctx, "u1", "pet-rex", "grooming-full", "2026-09-10", "")
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, "u1", h.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, f.slotByID(t, slot.ID).Booked, "confirm does not release the unit")
}

func TestExpiredHoldCannotConfirm(t *testing.T) {
	f := newFixture(t)
	slot := f.addSlot(t, "2026-09-10", 1)
	ctx := context.Background()

	h, err := f.svc.Create(ctx, "u1", "pet-rex", "grooming-full", "2026-09-10", "")
	require.NoError(t, err)

	f.advance(11 * time.Minute)

	_, err = f.svc.Confirm(ctx, "u1", h.ID)
	assert.ErrorIs(t, err, ErrHoldExpired)

	// lazy expiry released the capacity
	assert.Zero(t, f.slotByID(t, slot.ID).Booked)

	got, err := f.svc.Get(ctx, "u1", h.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.HoldExpired, got.Status)
}

func TestCancelReleasesCapacity(t *testing.T) {
	f := newFixture(t)
	slot := f.addSlot(t, "2026-09-10", 1)
	ctx := context.Background()

	h, err := f.svc.Create(ctx, "u1", "pet-rex", "grooming-full", "2026-09-10", "")
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, "u1", h.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.HoldCancelled, cancelled.Status)
	assert.Zero(t, f.slotByID(t, slot.ID).Booked)

	// cancelling again is a no-op
	again, err := f.svc.Cancel(ctx, "u1", h.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.HoldCancelled, again.Status)
	assert.Zero(t, f.slotByID(t, slot.ID).Booked, "capacity is released exactly once")
}

func TestCancelConfirmedHoldConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	h, err := f.svc.Create(ctx, "u1", "pet-rex", "grooming-full", "", "")
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, "u1", h.ID)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, "u1", h.ID)
	assert.ErrorIs(t, err, ErrHoldConflict)
}

func TestHoldOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	h, err := f.svc.Create(ctx, "u1", "pet-rex", "grooming-full", "", "")
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, "u2", h.ID)
	assert.ErrorIs(t, err, ErrNotOwner)
	_, err = f.svc.Confirm(ctx, "u2", h.ID)
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestExpireStale(t *testing.T) {
	f := newFixture(t)
	slot := f.addSlot(t, "2026-09-10", 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.Create(ctx, "u1", "pet-rex", "grooming-full", "2026-09-10", "")
		require.NoError(t, err)
	}
	require.Equal(t, 3, f.slotByID(t, slot.ID).Booked)

	f.advance(11 * time.Minute)

	expired, err := f.svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, expired)
	assert.Zero(t, f.slotByID(t, slot.ID).Booked)

	// second pass finds nothing, capacity is not released twice
	expired, err = f.svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, expired)
	assert.Zero(t, f.slotByID(t, slot.ID).Booked)
}

type fakeIdem struct {
	mu       sync.Mutex
	locked   map[string]bool
	results  map[string]string
	released []string
}

var _ Idempotency = (*fakeIdem)(nil)

func newFakeIdem() *fakeIdem {
	return &fakeIdem{locked: map[string]bool{}, results: map[string]string{}}
}

func (f *fakeIdem) AcquireLock(_ context.Context, key string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locked[key] {
		return false, nil
	}
	f.locked[key] = true
	return true, nil
}

func (f *fakeIdem) SaveResult(_ context.Context, key, payload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[key] = payload
	return nil
}

func (f *fakeIdem) GetResult(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	payload, ok := f.results[key]
	return payload, ok, nil
}

func (f *fakeIdem) Release(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.locked, key)
	f.released = append(f.released, key)
	return nil
}

func TestCreateIdempotentReplay(t *testing.T) {
	f := newFixture(t)
	f.svc.idem = newFakeIdem()
	slot := f.addSlot(t, "2026-09-10", 3)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, "u1", "pet-rex", "grooming-full", "2026-09-10", "key-1")
	require.NoError(t, err)

	// a retry with the same key replays the stored hold and books nothing new
	second, err := f.svc.Create(ctx, "u1", "pet-rex", "grooming-full", "2026-09-10", "key-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.slotByID(t, slot.ID).Booked)
}

func TestCreateFailureReleasesIdemLock(t *testing.T) {
	f := newFixture(t)
	idem := newFakeIdem()
	f.svc.idem = idem
	f.addSlot(t, "2026-09-10", 0)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "u1", "pet-rex", "grooming-full", "2026-09-10", "key-1")
	assert.ErrorIs(t, err, ErrNoCapacity)
	assert.NotEmpty(t, idem.released, "failed create must give the key back")

	// the key is free again: a retry sees the real error, not a lock conflict
	_, err = f.svc.Create(ctx, "u1", "pet-rex", "grooming-full", "2026-09-10", "key-1")
	assert.ErrorIs(t, err, ErrNoCapacity)
}
