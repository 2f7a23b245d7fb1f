package postgres

import (
	"context"

	"github.com/pawcall/pawcall/internal/domain"
)

type PetRepo struct {
	db DB
}

func (r *PetRepo) GetByID(ctx context.Context, id string) (*domain.Pet, error) {
	const op = "postgres.PetRepo.GetByID"

	var p domain.Pet
	if err := r.db.QueryRow(ctx,
		`SELECT id, user_id, name, species, breed, breed_category, weight_kg
       	 FROM pets
      	 WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.UserID, &p.Name, &p.Species, &p.Breed, &p.BreedCategory, &p.WeightKg); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &p, nil
}

func (r *PetRepo) Upsert(ctx context.Context, p domain.Pet) error {
	const op = "postgres.PetRepo.Upsert"

	_, err := r.db.Exec(ctx,
		`INSERT INTO pets(id, user_id, name, species, breed, breed_category, weight_kg)
       	 VALUES ($1, $2, $3, $4, $5, $6, $7)
     	 ON CONFLICT (id) DO UPDATE
        	SET name = EXCLUDED.name,
            	species = EXCLUDED.species,
            	breed = EXCLUDED.breed,
            	breed_category = EXCLUDED.breed_category,
            	weight_kg = EXCLUDED.weight_kg`,
		p.ID, p.UserID, p.Name, p.Species, p.Breed, p.BreedCategory, p.WeightKg,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

type ProviderRepo struct {
	db DB
}

func (r *ProviderRepo) GetByID(ctx context.Context, id string) (*domain.Provider, error) {
	const op = "postgres.ProviderRepo.GetByID"

	var p domain.Provider
	if err := r.db.QueryRow(ctx,
		`SELECT id, name, active FROM providers WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Active); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &p, nil
}

func (r *ProviderRepo) Upsert(ctx context.Context, p domain.Provider) error {
	const op = "postgres.ProviderRepo.Upsert"

	_, err := r.db.Exec(ctx,
		`INSERT INTO providers(id, name, active)
       	 VALUES ($1, $2, $3)
     	 ON CONFLICT (id) DO UPDATE
        	SET name = EXCLUDED.name,
            	active = EXCLUDED.active`,
		p.ID, p.Name, p.Active,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}
