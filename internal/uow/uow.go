package uow

import (
	"context"

	"github.com/pawcall/pawcall/internal/repository"
)

// AfterCommit is a function that runs after a successful transaction commit.
// It is used for side effects that must not roll back the transition itself,
// such as cache invalidation and notification delivery.
type AfterCommit func(ctx context.Context)

// UoW represents a unit of work over a Stores bundle.
type UoW struct {
	stores repository.Stores
}

func New(stores repository.Stores) *UoW {
	return &UoW{stores: stores}
}

// Do runs fn inside a transaction. After a successful commit, it executes
// all registered after-commit hooks in order.
func (u *UoW) Do(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Stores, after func(AfterCommit)) error,
) error {
	var hooks []AfterCommit

	err := u.stores.RunTx(ctx, func(ctx context.Context, tx repository.Stores) error {
		return fn(ctx, tx, func(h AfterCommit) {
			hooks = append(hooks, h)
		})
	})
	if err != nil {
		return err
	}

	for _, h := range hooks {
		h(ctx)
	}

	return nil
}
