package provider

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/flowpulse/flowpulse/internal/domain"
)

// staleAfter is the consecutive-failure count after which an
// instrument's feed is reported stale to consumers.
const staleAfter = 3

// GuardedConfig tunes the protective wrapper around a Source.
type GuardedConfig struct {
	Timeout time.Duration `yaml:"timeout"` // per-call deadline
	RPS     float64       `yaml:"rps"`     // token bucket refill rate
	Burst   int           `yaml:"burst"`   // token bucket capacity
}

// DefaultGuardedConfig matches the upstream gateway's rate limits.
func DefaultGuardedConfig() GuardedConfig {
	return GuardedConfig{
		Timeout: 15 * time.Second,
		RPS:     5,
		Burst:   10,
	}
}

// Guarded decorates a Source with a per-call timeout, a token-bucket
// rate limiter and a circuit breaker, and tracks consecutive failures
// per instrument so callers can surface staleness. A failed call never
// corrupts caller state; it only returns an error for this tick.
type Guarded struct {
	inner   Source
	cfg     GuardedConfig
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker

	mu       sync.Mutex
	failures map[string]int
}

// NewGuarded wraps src with the protective layer.
func NewGuarded(src Source, cfg GuardedConfig) *Guarded {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultGuardedConfig().Timeout
	}
	if cfg.RPS <= 0 {
		cfg.RPS = DefaultGuardedConfig().RPS
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultGuardedConfig().Burst
	}

	settings := gobreaker.Settings{
		Name:    "market-feed",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("feed circuit breaker state change")
		},
	}

	return &Guarded{
		inner:    src,
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		breaker:  gobreaker.NewCircuitBreaker(settings),
		failures: make(map[string]int),
	}
}

// Candles implements Source.
func (g *Guarded) Candles(ctx context.Context, instrument string, limit int) ([]domain.Candle, error) {
	result, err := g.call(ctx, instrument, func(ctx context.Context) (any, error) {
		return g.inner.Candles(ctx, instrument, limit)
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Candle), nil
}

// PairSnapshot implements Source.
func (g *Guarded) PairSnapshot(ctx context.Context, instrument string) (PairSnapshot, error) {
	result, err := g.call(ctx, instrument, func(ctx context.Context) (any, error) {
		return g.inner.PairSnapshot(ctx, instrument)
	})
	if err != nil {
		return PairSnapshot{}, err
	}
	return result.(PairSnapshot), nil
}

// Stale reports whether the instrument has failed staleAfter or more
// consecutive calls.
func (g *Guarded) Stale(instrument string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failures[instrument] >= staleAfter
}

func (g *Guarded) call(ctx context.Context, instrument string, fn func(context.Context) (any, error)) (any, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	result, err := g.breaker.Execute(func() (any, error) {
		return fn(callCtx)
	})

	g.mu.Lock()
	if err != nil {
		g.failures[instrument]++
	} else {
		g.failures[instrument] = 0
	}
	g.mu.Unlock()

	return result, err
}
