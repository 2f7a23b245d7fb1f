package service

import (
	"log/slog"

	"github.com/pawcall/pawcall/internal/notification"
	"github.com/pawcall/pawcall/internal/repository"
	redisrepo "github.com/pawcall/pawcall/internal/repository/redis"
	"github.com/pawcall/pawcall/internal/service/availability"
	"github.com/pawcall/pawcall/internal/service/cart"
	"github.com/pawcall/pawcall/internal/service/catalog"
	"github.com/pawcall/pawcall/internal/service/hold"
	"github.com/pawcall/pawcall/internal/service/order"
	"github.com/pawcall/pawcall/internal/service/pricing"
	"github.com/pawcall/pawcall/internal/uow"
)

type Services struct {
	Catalog      *catalog.Service
	Pricing      *pricing.Service
	Availability *availability.Service
	Hold         *hold.Service
	Cart         *cart.Service
	Order        *order.Service
}

type Config struct {
	Pricing      pricing.Config
	Availability availability.Config
	Hold         hold.Config
	Cart         cart.Config
	Order        order.Config
}

func NewServices(
	stores repository.Stores,
	cache *redisrepo.Cache,
	limiter *redisrepo.SlidingWindowLimiter,
	idem *redisrepo.IdempotencyStore,
	notifier notification.Notifier,
	logger *slog.Logger,
	cfg Config,
) *Services {
	u := uow.New(stores)
	pr := pricing.New(stores, pricing.DefaultBreedRules(), cfg.Pricing)
	// A nil *IdempotencyStore must stay a nil interface inside the hold
	// service, not a typed non-nil one.
	var idemDep hold.Idempotency
	if idem != nil {
		idemDep = idem
	}
	return &Services{
		Catalog:      catalog.New(stores),
		Pricing:      pr,
		Availability: availability.New(stores, cache, cfg.Availability),
		Hold:         hold.New(stores, u, pr, cache, limiter, idemDep, cfg.Hold),
		Cart:         cart.New(stores, u, cfg.Cart),
		Order:        order.New(stores, u, notifier, logger, cfg.Order),
	}
}
