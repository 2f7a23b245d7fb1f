package app

import (
	"context"
	"fmt"

	"github.com/pawcall/pawcall/internal/domain"
	"github.com/pawcall/pawcall/internal/repository"
)

// seedCatalog upserts the base catalog, price rules and providers. Every row
// has a stable id, so reruns are harmless.
func seedCatalog(ctx context.Context, stores repository.Stores) error {
	const op = "app.seedCatalog"

	services := []domain.Service{
		{ID: "grooming-full", Name: "Full Grooming", Kind: domain.ServiceKindBase, Species: "dog", Active: true},
		{ID: "grooming-bath", Name: "Bath & Brush", Kind: domain.ServiceKindBase, Species: "dog", Active: true},
		{ID: "grooming-cat", Name: "Cat Grooming", Kind: domain.ServiceKindBase, Species: "cat", Active: true},
		{
			ID: "addon-detangling", Name: "Coat Detangling", Kind: domain.ServiceKindAddon,
			Species: "dog", Requires: []string{"grooming-full", "grooming-bath"}, Active: true,
		},
		{
			ID: "addon-deshedding", Name: "Deshedding Treatment", Kind: domain.ServiceKindAddon,
			Species: "dog", Requires: []string{"grooming-full"},
			BreedAllow: []string{"husky", "samoyed", "golden_retriever", "corgi"}, Active: true,
		},
		{
			ID: "addon-nails", Name: "Nail Trim", Kind: domain.ServiceKindAddon,
			Species: "dog", Requires: []string{"grooming-full", "grooming-bath"}, Active: true,
		},
	}
	for _, svc := range services {
		if err := stores.Catalog().UpsertService(ctx, svc); err != nil {
			return fmt.Errorf("%s: service %s: %w", op, svc.ID, err)
		}
	}

	rules := []domain.PriceRule{
		{ID: "pr-full-small", ServiceID: "grooming-full", Species: "dog", BreedCategory: "small", WeightMinKg: 0, WeightMaxKg: 10, AmountCents: 4500, Currency: "USD", Active: true},
		{ID: "pr-full-medium", ServiceID: "grooming-full", Species: "dog", BreedCategory: "medium", WeightMinKg: 0, WeightMaxKg: 25, AmountCents: 6000, Currency: "USD", Active: true},
		{ID: "pr-full-large", ServiceID: "grooming-full", Species: "dog", BreedCategory: "large", WeightMinKg: 0, WeightMaxKg: 0, AmountCents: 8000, Currency: "USD", Active: true},
		{ID: "pr-full-mixed", ServiceID: "grooming-full", Species: "dog", BreedCategory: "mixed", WeightMinKg: 0, WeightMaxKg: 0, AmountCents: 7000, Currency: "USD", Active: true},
		{ID: "pr-bath-mixed", ServiceID: "grooming-bath", Species: "dog", BreedCategory: "mixed", WeightMinKg: 0, WeightMaxKg: 0, AmountCents: 3000, Currency: "USD", Active: true},
		{ID: "pr-cat-mixed", ServiceID: "grooming-cat", Species: "cat", BreedCategory: "mixed", WeightMinKg: 0, WeightMaxKg: 0, AmountCents: 5000, Currency: "USD", Active: true},
		{ID: "pr-detangle-mixed", ServiceID: "addon-detangling", Species: "dog", BreedCategory: "mixed", WeightMinKg: 0, WeightMaxKg: 0, AmountCents: 1500, Currency: "USD", Active: true},
		{ID: "pr-deshed-mixed", ServiceID: "addon-deshedding", Species: "dog", BreedCategory: "mixed", WeightMinKg: 0, WeightMaxKg: 0, AmountCents: 2000, Currency: "USD", Active: true},
		{ID: "pr-nails-mixed", ServiceID: "addon-nails", Species: "dog", BreedCategory: "mixed", WeightMinKg: 0, WeightMaxKg: 0, AmountCents: 1000, Currency: "USD", Active: true},
	}
	for _, rule := range rules {
		if err := stores.Catalog().UpsertPriceRule(ctx, rule); err != nil {
			return fmt.Errorf("%s: rule %s: %w", op, rule.ID, err)
		}
	}

	providers := []domain.Provider{
		{ID: "prov-downtown", Name: "Downtown Mobile Groomers", Active: true},
		{ID: "prov-eastside", Name: "Eastside Pet Care", Active: true},
	}
	for _, p := range providers {
		if err := stores.Providers().Upsert(ctx, p); err != nil {
			return fmt.Errorf("%s: provider %s: %w", op, p.ID, err)
		}
	}

	return nil
}
