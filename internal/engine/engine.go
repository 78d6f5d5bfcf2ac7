package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flowpulse/flowpulse/internal/config"
	"github.com/flowpulse/flowpulse/internal/domain/factors"
	"github.com/flowpulse/flowpulse/internal/domain/scenario"
	"github.com/flowpulse/flowpulse/internal/events"
	"github.com/flowpulse/flowpulse/internal/flow"
	"github.com/flowpulse/flowpulse/internal/provider"
	"github.com/flowpulse/flowpulse/internal/pulse"
	"github.com/flowpulse/flowpulse/internal/telemetry"
)

// Feed is the guarded data capability the engine polls. It matches
// provider.Guarded; tests substitute fakes.
type Feed interface {
	provider.Source
	Stale(instrument string) bool
}

// InstrumentStatus is the per-instrument health view for consumers.
type InstrumentStatus struct {
	Instrument  string    `json:"instrument"`
	Stale       bool      `json:"stale"`
	LastSuccess time.Time `json:"last_success,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
}

// Engine drives the snapshot-to-signal pipeline: one watcher goroutine
// per instrument, each owning its flow state exclusively. The pulse
// manager and event bus are the only cross-instrument resources.
type Engine struct {
	cfg     config.EngineConfig
	flowCfg flow.Config
	feed    Feed
	pulse   *pulse.Manager
	bus     *events.Bus
	metrics *telemetry.Registry
	newRand func() *rand.Rand

	mu       sync.RWMutex
	watchers map[string]*watcher
}

// Option tweaks engine construction.
type Option func(*Engine)

// WithRandSource overrides the synthesizer's randomness, letting tests
// pin deterministic sizes.
func WithRandSource(newRand func() *rand.Rand) Option {
	return func(e *Engine) { e.newRand = newRand }
}

// New creates an engine. bus and metrics must be non-nil; use a bus
// with a nil external publisher and a fresh registry when in doubt.
func New(cfg config.EngineConfig, flowCfg flow.Config, feed Feed, manager *pulse.Manager, bus *events.Bus, metrics *telemetry.Registry, opts ...Option) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.DetectEvery <= 0 {
		cfg.DetectEvery = 12
	}
	if cfg.CandleLimit <= 0 {
		cfg.CandleLimit = 250
	}

	e := &Engine{
		cfg:      cfg,
		flowCfg:  flowCfg,
		feed:     feed,
		pulse:    manager,
		bus:      bus,
		metrics:  metrics,
		watchers: make(map[string]*watcher),
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Watch starts polling an instrument. Watching an already watched
// instrument is an error.
func (e *Engine) Watch(ctx context.Context, instrument string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.watchers[instrument]; exists {
		return fmt.Errorf("instrument %s already watched", instrument)
	}

	wctx, cancel := context.WithCancel(ctx)
	w := &watcher{
		instrument: instrument,
		cancel:     cancel,
		flow:       flow.NewEngine(e.flowCfg),
		rng:        e.newRand(),
	}
	e.watchers[instrument] = w
	e.metrics.ActiveInstruments.Set(float64(len(e.watchers)))

	go e.run(wctx, w)
	log.Info().Str("instrument", instrument).Msg("watch started")
	return nil
}

// Unwatch deterministically halts an instrument's polling and discards
// its flow state. An in-flight poll observes the cancelled context
// before any state write.
func (e *Engine) Unwatch(instrument string) {
	e.mu.Lock()
	w, ok := e.watchers[instrument]
	if ok {
		delete(e.watchers, instrument)
		e.metrics.ActiveInstruments.Set(float64(len(e.watchers)))
	}
	e.mu.Unlock()

	if ok {
		w.cancel()
		log.Info().Str("instrument", instrument).Msg("watch stopped")
	}
}

// Close stops every watcher.
func (e *Engine) Close() {
	e.mu.Lock()
	watchers := e.watchers
	e.watchers = make(map[string]*watcher)
	e.metrics.ActiveInstruments.Set(0)
	e.mu.Unlock()

	for _, w := range watchers {
		w.cancel()
	}
}

// Subscribe exposes the push surface: regime transitions, whale
// alerts, pressure shifts and fresh high-confidence signals.
func (e *Engine) Subscribe() (<-chan events.Message, func()) {
	return e.bus.Subscribe()
}

// Instruments lists watched instruments with their health status.
func (e *Engine) Instruments() []InstrumentStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]InstrumentStatus, 0, len(e.watchers))
	for name, w := range e.watchers {
		out = append(out, w.status(name, e.feed))
	}
	return out
}

// Factors fetches candles for the instrument and computes factor
// scores on demand.
func (e *Engine) Factors(ctx context.Context, instrument string) (factors.Scores, error) {
	candles, err := e.feed.Candles(ctx, instrument, e.cfg.CandleLimit)
	if err != nil {
		return factors.Neutral(), fmt.Errorf("fetch candles for %s: %w", instrument, err)
	}
	return factors.Compute(candles), nil
}

// Scenarios computes the 3-way probability distribution on demand.
func (e *Engine) Scenarios(ctx context.Context, instrument string) (scenario.Probabilities, error) {
	candles, err := e.feed.Candles(ctx, instrument, e.cfg.CandleLimit)
	if err != nil {
		return scenario.Probabilities{}, fmt.Errorf("fetch candles for %s: %w", instrument, err)
	}
	return scenario.FromCandles(candles), nil
}

// Levels computes the entry/invalidation/target levels on demand.
func (e *Engine) Levels(ctx context.Context, instrument string) (scenario.KeyLevels, error) {
	candles, err := e.feed.Candles(ctx, instrument, e.cfg.CandleLimit)
	if err != nil {
		return scenario.KeyLevels{}, fmt.Errorf("fetch candles for %s: %w", instrument, err)
	}
	return scenario.Levels(candles), nil
}

// FlowState returns the instrument's current regime and metrics.
func (e *Engine) FlowState(instrument string) (flow.State, error) {
	w, err := e.watcher(instrument)
	if err != nil {
		return flow.State{}, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flow.State(), nil
}

// RecentEvents returns the capped flow event feed, newest-first.
func (e *Engine) RecentEvents(instrument string) ([]flow.Event, error) {
	w, err := e.watcher(instrument)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flow.Events(), nil
}

// Transactions returns the rolling classified window, newest-first.
func (e *Engine) Transactions(instrument string) ([]flow.Tx, error) {
	w, err := e.watcher(instrument)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flow.Window(), nil
}

// ActiveSignals returns the live pulse signals, newest-first.
func (e *Engine) ActiveSignals(maxVisible int) []pulse.Signal {
	return e.pulse.Active(time.Now(), maxVisible)
}

func (e *Engine) watcher(instrument string) (*watcher, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	w, ok := e.watchers[instrument]
	if !ok {
		return nil, fmt.Errorf("instrument %s not watched", instrument)
	}
	return w, nil
}
