// Package pricing resolves service prices from the tiered rule table and
// assembles quotes for a base service plus addons against a concrete pet.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pawcall/pawcall/internal/domain"
	"github.com/pawcall/pawcall/internal/repository"
)

// BreedRules carries breed-specific business rules applied on top of the
// generic catalog applicability checks.
type BreedRules struct {
	// RequiredAddons maps a breed to an addon that must be part of any
	// quote for that breed.
	RequiredAddons map[string]string
	// RestrictedAddons maps an addon to the only breeds it may be quoted
	// for. Addons absent from the map are unrestricted.
	RestrictedAddons map[string][]string
}

// DefaultBreedRules returns the rule set the engine ships with: poodles must
// take the coat detangling addon, and deshedding only applies to
// double-coated breeds.
func DefaultBreedRules() BreedRules {
	return BreedRules{
		RequiredAddons: map[string]string{
			"poodle": "addon-detangling",
		},
		RestrictedAddons: map[string][]string{
			"addon-deshedding": {"husky", "samoyed", "golden_retriever", "corgi"},
		},
	}
}

type Config struct {
	// DefaultCurrency is used when no price rule supplies one.
	DefaultCurrency string
}

type Service struct {
	stores repository.Stores
	rules  BreedRules
	cfg    Config
	now    func() time.Time
}

func New(stores repository.Stores, rules BreedRules, cfg Config) *Service {
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "USD"
	}
	return &Service{
		stores: stores,
		rules:  rules,
		cfg:    cfg,
		now:    time.Now,
	}
}

// PriceFor resolves the price of one service for a pet profile. Resolution
// first tries the pet's own breed category, then falls back to the mixed
// category. No matching rule is not an error: the service is quoted at zero
// and the cart validator surfaces it as a warning.
func (s *Service) PriceFor(ctx context.Context, serviceID, species, breedCategory string, weightKg float64) (int64, string, error) {
	const op = "service.pricing.Service.PriceFor"

	rules, err := s.stores.Catalog().ListPriceRules(ctx, serviceID)
	if err != nil {
		return 0, "", fmt.Errorf("%s: %w", op, err)
	}

	for _, category := range []string{breedCategory, domain.BreedCategoryMixed} {
		for _, r := range rules {
			if r.Matches(species, category, weightKg) {
				return r.AmountCents, r.Currency, nil
			}
		}
		if breedCategory == domain.BreedCategoryMixed {
			break
		}
	}
	return 0, s.cfg.DefaultCurrency, nil
}

// Quote prices a base service and optional addons for the given pet. The
// whole request is validated before any price lookup: an inapplicable addon
// fails the quote rather than being silently dropped.
func (s *Service) Quote(ctx context.Context, petID, baseServiceID string, addonIDs []string) (*domain.Quote, error) {
	const op = "service.pricing.Service.Quote"

	pet, err := s.stores.Pets().GetByID(ctx, petID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPetNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if pet.WeightKg <= 0 {
		return nil, ErrWeightRequired
	}

	base, err := s.resolveBase(ctx, op, baseServiceID, pet)
	if err != nil {
		return nil, err
	}

	addons, err := s.resolveAddons(ctx, op, base, addonIDs, pet)
	if err != nil {
		return nil, err
	}

	quote := &domain.Quote{
		BaseServiceID: base.ID,
		Currency:      s.cfg.DefaultCurrency,
		GeneratedAt:   s.now().UTC(),
	}
	for _, svc := range append([]domain.Service{*base}, addons...) {
		amount, currency, err := s.PriceFor(ctx, svc.ID, pet.Species, pet.BreedCategory, pet.WeightKg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if amount > 0 && currency != "" {
			quote.Currency = currency
		}
		quote.Lines = append(quote.Lines, domain.QuoteLine{
			ServiceID:   svc.ID,
			Name:        svc.Name,
			AmountCents: amount,
		})
		quote.TotalCents += amount
	}
	return quote, nil
}

func (s *Service) resolveBase(ctx context.Context, op, serviceID string, pet *domain.Pet) (*domain.Service, error) {
	base, err := s.stores.Catalog().GetService(ctx, serviceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &BaseServiceError{ServiceID: serviceID, Reason: ReasonNotFound}
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	switch {
	case !base.Active:
		return nil, &BaseServiceError{ServiceID: serviceID, Reason: ReasonNotFound}
	case base.Kind != domain.ServiceKindBase:
		return nil, &BaseServiceError{ServiceID: serviceID, Reason: "not_base"}
	case base.Species != pet.Species || !base.AllowsBreed(pet.Breed):
		return nil, &BaseServiceError{ServiceID: serviceID, Reason: ReasonNotApplicable}
	}
	return base, nil
}

func (s *Service) resolveAddons(ctx context.Context, op string, base *domain.Service, addonIDs []string, pet *domain.Pet) ([]domain.Service, error) {
	if required, ok := s.rules.RequiredAddons[pet.Breed]; ok && !contains(addonIDs, required) {
		return nil, &RequiredAddonError{Breed: pet.Breed, AddonID: required}
	}

	addons := make([]domain.Service, 0, len(addonIDs))
	for _, id := range addonIDs {
		if allowed, ok := s.rules.RestrictedAddons[id]; ok && !contains(allowed, pet.Breed) {
			return nil, &AddonError{AddonID: id, Reason: ReasonNotApplicable}
		}

		addon, err := s.stores.Catalog().GetService(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, &AddonError{AddonID: id, Reason: ReasonNotFound}
			}
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		switch {
		case !addon.Active:
			return nil, &AddonError{AddonID: id, Reason: ReasonNotFound}
		case addon.Kind != domain.ServiceKindAddon:
			return nil, &AddonError{AddonID: id, Reason: ReasonNotAddon}
		case addon.Species != pet.Species || !addon.AllowsBreed(pet.Breed):
			return nil, &AddonError{AddonID: id, Reason: ReasonNotApplicable}
		case !addon.RequiresService(base.ID):
			return nil, &AddonError{AddonID: id, Reason: ReasonMissingRequires}
		}
		addons = append(addons, *addon)
	}
	return addons, nil
}

func contains(xs []string, want string) bool {
	for _, x := range xs {
		if x == want {
			return true
		}
	}
	return false
}
