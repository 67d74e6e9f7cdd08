package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/admindash/internal/domain"
	"github.com/aryan0dhankhar/admindash/internal/observability/metrics"
	"github.com/aryan0dhankhar/admindash/internal/reliability/circuitbreaker"
)

// ErrCircuitOpen is returned while the breaker keeps calls away from a failing backend
var ErrCircuitOpen = errors.New("user store circuit open")

// GuardedStore records metrics for every store call and, when a breaker is
// set, fails fast while the backend keeps erroring.
type GuardedStore struct {
	next    domain.UserStore
	backend string
	breaker *circuitbreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewGuardedStore wraps next. breaker may be nil.
func NewGuardedStore(next domain.UserStore, backend string, breaker *circuitbreaker.CircuitBreaker, logger *slog.Logger) *GuardedStore {
	if logger == nil {
		logger = slog.Default()
	}
	g := &GuardedStore{
		next:    next,
		backend: backend,
		breaker: breaker,
		logger:  logger,
	}
	if breaker != nil {
		breaker.SetStateChangeCallback(func(from, to circuitbreaker.State) {
			logger.Warn("user store circuit state changed",
				slog.String("backend", backend),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		})
	}
	return g
}

func (g *GuardedStore) Load(ctx context.Context) (*domain.Snapshot, error) {
	if err := g.allow(); err != nil {
		metrics.ObserveStoreOperation(g.backend, "load", "rejected", 0)
		return nil, err
	}
	start := time.Now()
	snap, err := g.next.Load(ctx)
	g.record("load", err, time.Since(start))
	if err == nil {
		metrics.SetUsers(len(snap.Users))
	}
	return snap, err
}

func (g *GuardedStore) Save(ctx context.Context, users []domain.User, expected uint64) (uint64, error) {
	if err := g.allow(); err != nil {
		metrics.ObserveStoreOperation(g.backend, "save", "rejected", 0)
		return 0, err
	}
	start := time.Now()
	version, err := g.next.Save(ctx, users, expected)
	g.record("save", err, time.Since(start))
	if err == nil {
		metrics.SetUsers(len(users))
	}
	return version, err
}

func (g *GuardedStore) Ping(ctx context.Context) error {
	return g.next.Ping(ctx)
}

func (g *GuardedStore) allow() error {
	if g.breaker == nil || g.breaker.AllowRequest() {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrCircuitOpen, g.backend)
}

func (g *GuardedStore) record(op string, err error, d time.Duration) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrStaleSnapshot):
		result = "stale"
	case errors.Is(err, context.Canceled):
		result = "canceled"
	default:
		result = "error"
	}
	metrics.ObserveStoreOperation(g.backend, op, result, d)

	if g.breaker == nil {
		return
	}
	// a stale snapshot or a caller giving up says nothing about backend health
	if result == "error" {
		g.breaker.RecordFailure()
	} else {
		g.breaker.RecordSuccess()
	}
}
