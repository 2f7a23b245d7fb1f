package postgres

import (
	"context"

	"github.com/pawcall/pawcall/internal/domain"
)

type CatalogRepo struct {
	db DB
}

func (r *CatalogRepo) GetService(ctx context.Context, id string) (*domain.Service, error) {
	const op = "postgres.CatalogRepo.GetService"

	var svc domain.Service
	if err := r.db.QueryRow(ctx,
		`SELECT id, name, kind, species, breed_allow, requires, active
       	 FROM services
      	 WHERE id = $1`,
		id,
	).Scan(&svc.ID, &svc.Name, &svc.Kind, &svc.Species, &svc.BreedAllow, &svc.Requires, &svc.Active); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &svc, nil
}

func (r *CatalogRepo) ListServices(ctx context.Context, activeOnly bool) ([]domain.Service, error) {
	const op = "postgres.CatalogRepo.ListServices"

	rows, err := r.db.Query(ctx,
		`SELECT id, name, kind, species, breed_allow, requires, active
       	 FROM services
 	     WHERE NOT $1 OR active
 	     ORDER BY id`,
		activeOnly,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Service
	for rows.Next() {
		var svc domain.Service
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.Kind, &svc.Species, &svc.BreedAllow, &svc.Requires, &svc.Active); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *CatalogRepo) UpsertService(ctx context.Context, svc domain.Service) error {
	const op = "postgres.CatalogRepo.UpsertService"

	_, err := r.db.Exec(ctx,
		`INSERT INTO services(id, name, kind, species, breed_allow, requires, active)
       	 VALUES ($1, $2, $3, $4, $5, $6, $7)
     	 ON CONFLICT (id) DO UPDATE
        	SET name = EXCLUDED.name,
            	kind = EXCLUDED.kind,
            	species = EXCLUDED.species,
            	breed_allow = EXCLUDED.breed_allow,
            	requires = EXCLUDED.requires,
            	active = EXCLUDED.active`,
		svc.ID, svc.Name, svc.Kind, svc.Species, svc.BreedAllow, svc.Requires, svc.Active,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *CatalogRepo) ListPriceRules(ctx context.Context, serviceID string) ([]domain.PriceRule, error) {
	const op = "postgres.CatalogRepo.ListPriceRules"

	rows, err := r.db.Query(ctx,
		`SELECT id, service_id, species, breed_category, weight_min_kg, weight_max_kg,
            	amount_cents, currency, active
       	 FROM price_rules
      	 WHERE service_id = $1
      	 ORDER BY id`,
		serviceID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.PriceRule
	for rows.Next() {
		var rule domain.PriceRule
		if err := rows.Scan(
			&rule.ID, &rule.ServiceID, &rule.Species, &rule.BreedCategory,
			&rule.WeightMinKg, &rule.WeightMaxKg, &rule.AmountCents, &rule.Currency, &rule.Active,
		); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *CatalogRepo) UpsertPriceRule(ctx context.Context, rule domain.PriceRule) error {
	const op = "postgres.CatalogRepo.UpsertPriceRule"

	_, err := r.db.Exec(ctx,
		`INSERT INTO price_rules(id, service_id, species, breed_category, weight_min_kg,
                             	 weight_max_kg, amount_cents, currency, active)
       	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
     	 ON CONFLICT (id) DO UPDATE
        	SET species = EXCLUDED.species,
            	breed_category = EXCLUDED.breed_category,
            	weight_min_kg = EXCLUDED.weight_min_kg,
            	weight_max_kg = EXCLUDED.weight_max_kg,
            	amount_cents = EXCLUDED.amount_cents,
            	currency = EXCLUDED.currency,
            	active = EXCLUDED.active`,
		rule.ID, rule.ServiceID, rule.Species, rule.BreedCategory, rule.WeightMinKg,
		rule.WeightMaxKg, rule.AmountCents, rule.Currency, rule.Active,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}
