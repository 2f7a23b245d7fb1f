package pricing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawcall/pawcall/internal/domain"
	"github.com/pawcall/pawcall/internal/repository/memory"
)

func newFixture(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	ctx := context.Background()

	services := []domain.Service{
		{ID: "grooming-full", Name: "Full Grooming", Kind: domain.ServiceKindBase, Species: "dog", Active: true},
		{ID: "grooming-bath", Name: "Bath & Brush", Kind: domain.ServiceKindBase, Species: "dog", Active: true},
		{
			ID: "addon-detangling", Name: "Coat Detangling", Kind: domain.ServiceKindAddon,
			Species: "dog", Requires: []string{"grooming-full", "grooming-bath"}, Active: true,
		},
		{
			ID: "addon-deshedding", Name: "Deshedding Treatment", Kind: domain.ServiceKindAddon,
			Species: "dog", Requires: []string{"grooming-full"},
			BreedAllow: []string{"husky", "samoyed", "golden_retriever", "corgi"}, Active: true,
		},
		{ID: "addon-unpriced", Name: "Paw Balm", Kind: domain.ServiceKindAddon, Species: "dog", Requires: []string{"grooming-full"}, Active: true},
	}
	for _, svc := range services {
		require.NoError(t, store.Catalog().UpsertService(ctx, svc))
	}

	rules := []domain.PriceRule{
		{ID: "r1", ServiceID: "grooming-full", Species: "dog", BreedCategory: "small", WeightMinKg: 0, WeightMaxKg: 10, AmountCents: 4500, Currency: "USD", Active: true},
		{ID: "r2", ServiceID: "grooming-full", Species: "dog", BreedCategory: "small", WeightMinKg: 10, WeightMaxKg: 0, AmountCents: 5500, Currency: "USD", Active: true},
		{ID: "r3", ServiceID: "grooming-full", Species: "dog", BreedCategory: "mixed", WeightMinKg: 0, WeightMaxKg: 0, AmountCents: 5000, Currency: "USD", Active: true},
		{ID: "r4", ServiceID: "addon-detangling", Species: "dog", BreedCategory: "mixed", WeightMinKg: 0, WeightMaxKg: 0, AmountCents: 1500, Currency: "USD", Active: true},
		{ID: "r5", ServiceID: "addon-deshedding", Species: "dog", BreedCategory: "mixed", WeightMinKg: 0, WeightMaxKg: 0, AmountCents: 2000, Currency: "USD", Active: true},
	}
	for _, r := range rules {
		require.NoError(t, store.Catalog().UpsertPriceRule(ctx, r))
	}

	pets := []domain.Pet{
		{ID: "pet-rex", UserID: "u1", Name: "Rex", Species: "dog", Breed: "corgi", BreedCategory: "small", WeightKg: 9},
		{ID: "pet-max", UserID: "u1", Name: "Max", Species: "dog", Breed: "labrador", BreedCategory: "large", WeightKg: 30},
		{ID: "pet-curly", UserID: "u2", Name: "Curly", Species: "dog", Breed: "poodle", BreedCategory: "medium", WeightKg: 12},
		{ID: "pet-unweighed", UserID: "u2", Name: "Mystery", Species: "dog", Breed: "corgi", BreedCategory: "small", WeightKg: 0},
	}
	for _, p := range pets {
		require.NoError(t, store.Pets().Upsert(ctx, p))
	}

	return New(store, DefaultBreedRules(), Config{DefaultCurrency: "USD"}), store
}

func TestPriceForWeightBands(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	amount, currency, err := svc.PriceFor(ctx, "grooming-full", "dog", "small", 9)
	require.NoError(t, err)
	assert.Equal(t, int64(4500), amount)
	assert.Equal(t, "USD", currency)

	// bands are half-open: 10kg falls into the second band
	amount, _, err = svc.PriceFor(ctx, "grooming-full", "dog", "small", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(5500), amount)
}

func TestPriceForMixedFallback(t *testing.T) {
	svc, _ := newFixture(t)

	// no "large" rule exists; the mixed rule covers it
	amount, _, err := svc.PriceFor(context.Background(), "grooming-full", "dog", "large", 30)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), amount)
}

func TestPriceForNoRuleIsZeroNotError(t *testing.T) {
	svc, _ := newFixture(t)

	amount, currency, err := svc.PriceFor(context.Background(), "grooming-bath", "dog", "small", 9)
	require.NoError(t, err)
	assert.Zero(t, amount)
	assert.Equal(t, "USD", currency)
}

func TestQuoteBasePlusAddons(t *testing.T) {
	svc, _ := newFixture(t)

	quote, err := svc.Quote(context.Background(), "pet-rex", "grooming-full", []string{"addon-detangling", "addon-deshedding"})
	require.NoError(t, err)

	require.Len(t, quote.Lines, 3)
	assert.Equal(t, "grooming-full", quote.BaseServiceID)
	assert.Equal(t, int64(4500+1500+2000), quote.TotalCents)
	assert.Equal(t, "USD", quote.Currency)
	assert.False(t, quote.GeneratedAt.IsZero())
}

func TestQuoteUnpricedAddonContributesZero(t *testing.T) {
	svc, _ := newFixture(t)

	quote, err := svc.Quote(context.Background(), "pet-rex", "grooming-full", []string{"addon-unpriced"})
	require.NoError(t, err)
	require.Len(t, quote.Lines, 2)
	assert.Equal(t, int64(4500), quote.TotalCents)
	assert.Zero(t, quote.Lines[1].AmountCents)
}

func TestQuotePetChecks(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	_, err := svc.Quote(ctx, "no-such-pet", "grooming-full", nil)
	assert.ErrorIs(t, err, ErrPetNotFound)

	_, err = svc.Quote(ctx, "pet-unweighed", "grooming-full", nil)
	assert.ErrorIs(t, err, ErrWeightRequired)
}

func TestQuoteBaseRejections(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	var baseErr *BaseServiceError

	_, err := svc.Quote(ctx, "pet-rex", "no-such-service", nil)
	require.ErrorAs(t, err, &baseErr)
	assert.Equal(t, ReasonNotFound, baseErr.Reason)

	_, err = svc.Quote(ctx, "pet-rex", "addon-detangling", nil)
	require.ErrorAs(t, err, &baseErr)
	assert.Equal(t, "not_base", baseErr.Reason)
}

func TestQuoteAddonRejections(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	var addonErr *AddonError

	_, err := svc.Quote(ctx, "pet-rex", "grooming-full", []string{"no-such-addon"})
	require.ErrorAs(t, err, &addonErr)
	assert.Equal(t, ReasonNotFound, addonErr.Reason)

	_, err = svc.Quote(ctx, "pet-rex", "grooming-full", []string{"grooming-bath"})
	require.ErrorAs(t, err, &addonErr)
	assert.Equal(t, ReasonNotAddon, addonErr.Reason)

	// deshedding requires grooming-full, not grooming-bath
	_, err = svc.Quote(ctx, "pet-rex", "grooming-bath", []string{"addon-deshedding"})
	require.ErrorAs(t, err, &addonErr)
	assert.Equal(t, ReasonMissingRequires, addonErr.Reason)
}

func TestQuoteBreedRestrictedAddon(t *testing.T) {
	svc, _ := newFixture(t)

	// labradors are not in the deshedding allow list
	var addonErr *AddonError
	_, err := svc.Quote(context.Background(), "pet-max", "grooming-full", []string{"addon-deshedding"})
	require.ErrorAs(t, err, &addonErr)
	assert.Equal(t, "addon-deshedding", addonErr.AddonID)
	assert.Equal(t, ReasonNotApplicable, addonErr.Reason)
}

func TestQuotePoodleRequiresDetangling(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	var reqErr *RequiredAddonError
	_, err := svc.Quote(ctx, "pet-curly", "grooming-full", nil)
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "addon-detangling", reqErr.AddonID)

	// including the mandated addon clears the rule
	quote, err := svc.Quote(ctx, "pet-curly", "grooming-full", []string{"addon-detangling"})
	require.NoError(t, err)
	assert.Equal(t, int64(5000+1500), quote.TotalCents)
}
