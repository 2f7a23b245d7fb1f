package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pawcall/pawcall/internal/repository"
)

type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the persistent implementation of repository.Stores backed by a
// pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ repository.Stores = (*Store)(nil)

func (s *Store) Catalog() repository.CatalogStore     { return &CatalogRepo{db: s.pool} }
func (s *Store) Slots() repository.SlotStore          { return &SlotRepo{db: s.pool} }
func (s *Store) Holds() repository.HoldStore          { return &HoldRepo{db: s.pool} }
func (s *Store) Carts() repository.CartStore          { return &CartRepo{db: s.pool} }
func (s *Store) Orders() repository.OrderStore        { return &OrderRepo{db: s.pool} }
func (s *Store) Pets() repository.PetStore            { return &PetRepo{db: s.pool} }
func (s *Store) Providers() repository.ProviderStore  { return &ProviderRepo{db: s.pool} }

// RunTx runs fn against a transaction-bound view of the store. Row locks
// taken via SELECT ... FOR UPDATE are held until commit or rollback.
func (s *Store) RunTx(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Stores) error,
) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return err
	}

	defer tx.Rollback(ctx)

	if err := fn(ctx, &txStore{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// txStore binds every aggregate store to one open transaction. A nested
// RunTx joins the enclosing transaction.
type txStore struct {
	db DB
}

var _ repository.Stores = (*txStore)(nil)

func (t *txStore) Catalog() repository.CatalogStore    { return &CatalogRepo{db: t.db} }
func (t *txStore) Slots() repository.SlotStore         { return &SlotRepo{db: t.db} }
func (t *txStore) Holds() repository.HoldStore         { return &HoldRepo{db: t.db} }
func (t *txStore) Carts() repository.CartStore         { return &CartRepo{db: t.db} }
func (t *txStore) Orders() repository.OrderStore       { return &OrderRepo{db: t.db} }
func (t *txStore) Pets() repository.PetStore           { return &PetRepo{db: t.db} }
func (t *txStore) Providers() repository.ProviderStore { return &ProviderRepo{db: t.db} }

func (t *txStore) RunTx(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Stores) error,
) error {
	return fn(ctx, t)
}
