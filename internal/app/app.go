package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pawcall/pawcall/internal/auth"
	"github.com/pawcall/pawcall/internal/config"
	"github.com/pawcall/pawcall/internal/notification"
	"github.com/pawcall/pawcall/internal/postgres"
	redisx "github.com/pawcall/pawcall/internal/redis"
	postgresrepo "github.com/pawcall/pawcall/internal/repository/postgres"
	redisrepo "github.com/pawcall/pawcall/internal/repository/redis"
	"github.com/pawcall/pawcall/internal/service"
	"github.com/pawcall/pawcall/internal/service/availability"
	"github.com/pawcall/pawcall/internal/service/cart"
	"github.com/pawcall/pawcall/internal/service/hold"
	"github.com/pawcall/pawcall/internal/service/order"
	"github.com/pawcall/pawcall/internal/sweeper"
	httpgin "github.com/pawcall/pawcall/internal/transport/http/gin"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	sweeper    *sweeper.Sweeper
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	dsn := cfg.Postgres.DSN()

	if err := runMigrations(dsn); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	pgxPool, err := postgres.New(context.Background(), postgres.Config{DSN: dsn})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	rdb, err := redisx.New(context.Background(), redisx.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	stores := postgresrepo.NewStore(pgxPool)
	if err := seedCatalog(context.Background(), stores); err != nil {
		return nil, fmt.Errorf("failed to seed catalog: %w", err)
	}

	cache := redisrepo.New(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, "holds", cfg.Booking.RateLimit, time.Minute)
	idem := redisrepo.NewIdempotencyStore(rdb, 2*time.Hour)
	sweepLock := redisrepo.NewSweepLock(rdb)
	notifier := notification.NewPubSubNotifier(redisx.NewNotificationsPubSub(rdb))

	services := service.NewServices(stores, cache, limiter, idem, notifier, logger, service.Config{
		Hold:  hold.Config{TTL: cfg.Booking.HoldTTL},
		Cart:  cart.Config{TTL: cfg.Booking.CartTTL, Currency: cfg.Booking.Currency},
		Order: order.Config{Currency: cfg.Booking.Currency},
		Availability: availability.Config{
			CacheTTL: 30 * time.Second,
		},
	})

	verifier := auth.NewStaticVerifier(cfg.Auth.Tokens)
	router := httpgin.NewRouter(services, verifier, logger)

	sw := sweeper.New(services.Hold, services.Cart, sweepLock, cfg.Booking.SweepInterval, logger)

	return &App{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
		sweeper: sw,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		err := a.sweeper.Run(gCtx)
		if err == context.Canceled {
			return nil
		}
		return err
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}
