package flow

import (
	"fmt"
	"time"
)

// Config holds the rolling-window sizes and regime thresholds.
type Config struct {
	MaxTransactions int           `yaml:"max_transactions"` // FIFO cap on the rolling buffer
	MaxEvents       int           `yaml:"max_events"`       // cap on the event feed
	RateWindow      time.Duration `yaml:"rate_window"`      // horizon for rate metrics
	QuietTxPerMin   float64       `yaml:"quiet_tx_per_min"` // below this the flow is quiet
	BuyRatioUpper   float64       `yaml:"buy_ratio_upper"`  // accumulation threshold
	BuyRatioLower   float64       `yaml:"buy_ratio_lower"`  // distribution threshold
}

// DefaultConfig returns the standard window sizes and thresholds.
func DefaultConfig() Config {
	return Config{
		MaxTransactions: 50,
		MaxEvents:       20,
		RateWindow:      time.Minute,
		QuietTxPerMin:   5,
		BuyRatioUpper:   0.65,
		BuyRatioLower:   0.35,
	}
}

// Engine is the per-instrument flow state machine. It owns a bounded
// rolling transaction buffer (newest-first, FIFO eviction by count),
// recomputes aggregate metrics on every poll, and classifies the flow
// regime with hysteresis: a regime-change event fires only when the
// classification differs from the previous tick.
//
// Engine is not safe for concurrent use; each instrument's watcher owns
// exactly one engine and serializes access to it.
type Engine struct {
	cfg    Config
	window []Tx // newest-first
	events []Event

	state        State
	initialized  bool
	prevFreq     float64
	prevWhale    bool
	prevPressure EventType
}

// NewEngine creates an engine with the given config, applying defaults
// for unset fields.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.MaxTransactions <= 0 {
		cfg.MaxTransactions = def.MaxTransactions
	}
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = def.MaxEvents
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = def.RateWindow
	}
	if cfg.QuietTxPerMin <= 0 {
		cfg.QuietTxPerMin = def.QuietTxPerMin
	}
	if cfg.BuyRatioUpper <= 0 {
		cfg.BuyRatioUpper = def.BuyRatioUpper
	}
	if cfg.BuyRatioLower <= 0 {
		cfg.BuyRatioLower = def.BuyRatioLower
	}
	return &Engine{
		cfg: cfg,
		state: State{
			Regime:  RegimeQuiet,
			Metrics: Metrics{BuyRatio: 0.5},
		},
	}
}

// Apply ingests newly classified transactions (possibly none), updates
// metrics and regime, and returns the state plus any events emitted
// this tick.
func (e *Engine) Apply(txs []Tx, now time.Time) (State, []Event) {
	// Prepend newest-first, truncate by count.
	if len(txs) > 0 {
		merged := make([]Tx, 0, len(txs)+len(e.window))
		for i := len(txs) - 1; i >= 0; i-- {
			merged = append(merged, txs[i])
		}
		merged = append(merged, e.window...)
		if len(merged) > e.cfg.MaxTransactions {
			merged = merged[:e.cfg.MaxTransactions]
		}
		e.window = merged
	}

	metrics := e.computeMetrics(now)
	regime := e.classify(metrics)

	var emitted []Event

	if e.initialized && e.state.Regime != regime {
		emitted = append(emitted, Event{
			Type:        EventRegimeChange,
			Timestamp:   now,
			Description: fmt.Sprintf("%s → %s", e.state.Regime, regime),
		})
	}

	// Whale alert fires on the rising edge only.
	if metrics.WhaleActivity && !e.prevWhale {
		emitted = append(emitted, Event{
			Type:        EventWhaleAlert,
			Timestamp:   now,
			Description: "Large participant detected in flow",
		})
	}
	e.prevWhale = metrics.WhaleActivity

	// Pressure shift, edge-triggered at the dominance thresholds.
	pressure := EventType("")
	if metrics.BuyRatio > 0.7 {
		pressure = EventBuyDominance
	} else if metrics.BuyRatio < 0.3 {
		pressure = EventSellPressure
	}
	if pressure != "" && pressure != e.prevPressure {
		desc := "Buy-side dominance detected"
		if pressure == EventSellPressure {
			desc = "Sell pressure building"
		}
		emitted = append(emitted, Event{Type: pressure, Timestamp: now, Description: desc})
	}
	e.prevPressure = pressure

	e.state = State{
		Regime:       regime,
		Metrics:      metrics,
		LastUpdate:   now,
		WindowOldest: e.windowOldest(),
	}
	e.initialized = true
	e.prevFreq = metrics.TxFrequency

	if len(emitted) > 0 {
		e.events = append(emitted, e.events...)
		if len(e.events) > e.cfg.MaxEvents {
			e.events = e.events[:e.cfg.MaxEvents]
		}
	}

	return e.state, emitted
}

// State returns the latest computed flow state.
func (e *Engine) State() State {
	return e.state
}

// Events returns the capped event feed, newest-first.
func (e *Engine) Events() []Event {
	out := make([]Event, len(e.events))
	copy(out, e.events)
	return out
}

// Window returns a copy of the rolling transaction buffer, newest-first.
func (e *Engine) Window() []Tx {
	out := make([]Tx, len(e.window))
	copy(out, e.window)
	return out
}

// Context assembles the classifier context for the next batch from the
// rolling window and the current pair snapshot fields.
func (e *Engine) Context(priceChange1h, priceChange24h float64, counts PairCounts) Context {
	recent := e.window
	if len(recent) > 20 {
		recent = recent[:20]
	}
	recentCopy := make([]Tx, len(recent))
	copy(recentCopy, recent)

	avg := 5000.0
	if len(e.window) > 0 {
		sum := 0.0
		for _, t := range e.window {
			sum += t.SizeUSD
		}
		avg = sum / float64(len(e.window))
	}

	return Context{
		RecentTxs:      recentCopy,
		AvgSizeUSD:     avg,
		PriceChange1h:  priceChange1h,
		PriceChange24h: priceChange24h,
		BuyCount5m:     counts.Buys,
		SellCount5m:    counts.Sells,
	}
}

// computeMetrics derives the aggregate metrics. Rate metrics (frequency
// and velocity) look at the time-bounded tail of the window so that a
// silent feed decays toward quiet; size and ratio metrics cover the
// whole count-bounded buffer.
func (e *Engine) computeMetrics(now time.Time) Metrics {
	if len(e.window) == 0 {
		return Metrics{BuyRatio: 0.5}
	}

	cutoff := now.Add(-e.cfg.RateWindow)
	inWindow := 0
	whale := false
	for _, t := range e.window {
		if t.Timestamp.After(cutoff) {
			inWindow++
			if t.Classification == WhaleMove {
				whale = true
			}
		}
	}

	minutes := e.cfg.RateWindow.Minutes()
	freq := float64(inWindow) / minutes

	sum := 0.0
	buys := 0
	for _, t := range e.window {
		sum += t.SizeUSD
		if t.Type == Buy {
			buys++
		}
	}
	avgSize := sum / float64(len(e.window))
	buyRatio := float64(buys) / float64(len(e.window))

	velocity := 0.0
	if e.prevFreq > 0 {
		velocity = (freq - e.prevFreq) / e.prevFreq
	}

	return Metrics{
		TxFrequency:   freq,
		AvgSize:       avgSize,
		BuyRatio:      clampRatio(buyRatio),
		Velocity:      velocity,
		WhaleActivity: whale,
	}
}

// classify maps metrics onto a regime. Whale activity counts as
// elevated flow even when raw frequency sits below the quiet floor.
func (e *Engine) classify(m Metrics) Regime {
	elevated := m.TxFrequency >= e.cfg.QuietTxPerMin || m.WhaleActivity
	if !elevated {
		return RegimeQuiet
	}
	switch {
	case m.BuyRatio >= e.cfg.BuyRatioUpper:
		return RegimeAccumulation
	case m.BuyRatio <= e.cfg.BuyRatioLower:
		return RegimeDistribution
	default:
		return RegimeChurn
	}
}

func (e *Engine) windowOldest() time.Time {
	if len(e.window) == 0 {
		return time.Time{}
	}
	return e.window[len(e.window)-1].Timestamp
}

func clampRatio(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
