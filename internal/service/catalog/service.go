// Package catalog exposes the service and price-rule tables: public reads
// plus operator upserts.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/pawcall/pawcall/internal/domain"
	"github.com/pawcall/pawcall/internal/repository"
)

var (
	ErrServiceNotFound = errors.New("service not found")
	ErrInvalidRule     = errors.New("price rule must have a positive amount and a valid weight band")
)

type Service struct {
	stores repository.Stores
}

func New(stores repository.Stores) *Service {
	return &Service{stores: stores}
}

func (s *Service) ListServices(ctx context.Context, activeOnly bool) ([]domain.Service, error) {
	const op = "service.catalog.Service.ListServices"

	services, err := s.stores.Catalog().ListServices(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return services, nil
}

func (s *Service) GetService(ctx context.Context, id string) (*domain.Service, error) {
	const op = "service.catalog.Service.GetService"

	svc, err := s.stores.Catalog().GetService(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrServiceNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return svc, nil
}

func (s *Service) UpsertService(ctx context.Context, svc domain.Service) error {
	const op = "service.catalog.Service.UpsertService"

	if err := s.stores.Catalog().UpsertService(ctx, svc); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Service) ListPriceRules(ctx context.Context, serviceID string) ([]domain.PriceRule, error) {
	const op = "service.catalog.Service.ListPriceRules"

	if _, err := s.GetService(ctx, serviceID); err != nil {
		return nil, err
	}
	rules, err := s.stores.Catalog().ListPriceRules(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rules, nil
}

// UpsertPriceRule validates and writes one rule. An empty id allocates one.
func (s *Service) UpsertPriceRule(ctx context.Context, rule domain.PriceRule) (*domain.PriceRule, error) {
	const op = "service.catalog.Service.UpsertPriceRule"

	if rule.AmountCents <= 0 || rule.WeightMinKg < 0 {
		return nil, ErrInvalidRule
	}
	if rule.WeightMaxKg > 0 && rule.WeightMaxKg <= rule.WeightMinKg {
		return nil, ErrInvalidRule
	}
	if _, err := s.GetService(ctx, rule.ServiceID); err != nil {
		return nil, err
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if err := s.stores.Catalog().UpsertPriceRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &rule, nil
}
