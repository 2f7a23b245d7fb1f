// Package sweeper runs the periodic batch expiry pass over holds and carts.
// Lazy expiry on read keeps API responses truthful; the sweeper is the
// backstop that reclaims capacity nobody is reading.
package sweeper

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Expirer is implemented by the hold and cart services.
type Expirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

// Locker serializes sweeps across replicas. A nil Locker means single-node
// deployment, every tick sweeps.
type Locker interface {
	Acquire(ctx context.Context, ttl time.Duration) (bool, error)
	Release(ctx context.Context) error
}

type Sweeper struct {
	holds    Expirer
	carts    Expirer
	lock     Locker
	interval time.Duration
	logger   *slog.Logger

	running atomic.Bool
}

func New(holds, carts Expirer, lock Locker, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		holds:    holds,
		carts:    carts,
		lock:     lock,
		interval: interval,
		logger:   logger,
	}
}

// Run blocks, sweeping once per interval until ctx is cancelled. It always
// returns ctx.Err(); sweep failures are logged and retried next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one expiry pass. Overlapping calls coalesce: if a pass is
// still running, the new call returns immediately. With a Locker configured,
// only one replica sweeps per interval.
func (s *Sweeper) Sweep(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	defer s.running.Store(false)

	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, s.interval)
		if err != nil {
			s.logger.Warn("sweep lock acquire failed", slog.String("error", err.Error()))
			return
		}
		if !acquired {
			return
		}
		defer func() {
			if err := s.lock.Release(ctx); err != nil {
				s.logger.Warn("sweep lock release failed", slog.String("error", err.Error()))
			}
		}()
	}

	start := time.Now()
	holds, err := s.holds.ExpireStale(ctx)
	if err != nil {
		s.logger.Error("hold expiry pass failed", slog.String("error", err.Error()))
	}
	carts, err := s.carts.ExpireStale(ctx)
	if err != nil {
		s.logger.Error("cart expiry pass failed", slog.String("error", err.Error()))
	}

	if holds > 0 || carts > 0 {
		s.logger.Info("expiry sweep",
			slog.Int("holds_expired", holds),
			slog.Int("carts_expired", carts),
			slog.Duration("took", time.Since(start)),
		)
	}
}
