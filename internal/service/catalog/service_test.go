package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawcall/pawcall/internal/domain"
	"github.com/pawcall/pawcall/internal/repository/memory"
)

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, store.Catalog().UpsertService(context.Background(), domain.Service{
		ID: "grooming-full", Name: "Full Grooming", Kind: domain.ServiceKindBase,
		Species: "dog", Active: true,
	}))
	require.NoError(t, store.Catalog().UpsertService(context.Background(), domain.Service{
		ID: "grooming-retired", Name: "Retired Package", Kind: domain.ServiceKindBase,
		Species: "dog", Active: false,
	}))
	return New(store), store
}

func TestListServices(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	all, err := svc.ListServices(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := svc.ListServices(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "grooming-full", active[0].ID)
}

func TestGetService(t *testing.T) {
	svc, _ := newService(t)

	got, err := svc.GetService(context.Background(), "grooming-full")
	require.NoError(t, err)
	assert.Equal(t, "Full Grooming", got.Name)

	_, err = svc.GetService(context.Background(), "grooming-missing")
	assert.ErrorIs(t, err, ErrServiceNotFound)
}

func TestUpsertPriceRule(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	rule, err := svc.UpsertPriceRule(ctx, domain.PriceRule{
		ServiceID: "grooming-full", Species: "dog",
		BreedCategory: "small",
		WeightMaxKg:   10, AmountCents: 4500, Currency: "USD", Active: true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rule.ID, "an empty id gets allocated")

	rules, err := svc.ListPriceRules(ctx, "grooming-full")
	require.NoError(t, err)
	assert.Len(t, rules, 1)
}

func TestUpsertPriceRuleValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		rule domain.PriceRule
		want error
	}{
		{
			name: "zero amount",
			rule: domain.PriceRule{ServiceID: "grooming-full", AmountCents: 0},
			want: ErrInvalidRule,
		},
		{
			name: "inverted weight band",
			rule: domain.PriceRule{ServiceID: "grooming-full", AmountCents: 100, WeightMinKg: 20, WeightMaxKg: 10},
			want: ErrInvalidRule,
		},
		{
			name: "unknown service",
			rule: domain.PriceRule{ServiceID: "grooming-missing", AmountCents: 100},
			want: ErrServiceNotFound,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.UpsertPriceRule(ctx, tc.rule)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestListPriceRulesUnknownService(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.ListPriceRules(context.Background(), "grooming-missing")
	assert.ErrorIs(t, err, ErrServiceNotFound)
}
