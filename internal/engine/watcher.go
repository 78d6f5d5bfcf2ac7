package engine

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flowpulse/flowpulse/internal/events"
	"github.com/flowpulse/flowpulse/internal/flow"
	"github.com/flowpulse/flowpulse/internal/pulse"
)

// watcher owns the mutable per-instrument pipeline state. Nothing else
// writes to it; cross-goroutine reads go through its mutex.
type watcher struct {
	instrument string
	cancel     context.CancelFunc
	rng        *rand.Rand

	mu          sync.Mutex
	flow        *flow.Engine
	lastCounts  *flow.PairCounts
	pollCount   int
	lastSuccess time.Time
	lastError   string
}

func (w *watcher) status(name string, feed Feed) InstrumentStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return InstrumentStatus{
		Instrument:  name,
		Stale:       feed.Stale(name),
		LastSuccess: w.lastSuccess,
		LastError:   w.lastError,
	}
}

// run is the per-instrument poll loop. Ticks are strictly sequential;
// a failed tick leaves all state untouched.
func (e *Engine) run(ctx context.Context, w *watcher) {
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	e.poll(ctx, w)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.poll(ctx, w)
		}
	}
}

func (e *Engine) poll(ctx context.Context, w *watcher) {
	start := time.Now()

	snap, err := e.feed.PairSnapshot(ctx, w.instrument)
	if err != nil {
		// Skip the tick; prior state stays intact.
		e.metrics.PollErrors.WithLabelValues(w.instrument).Inc()
		e.metrics.PollDuration.WithLabelValues(w.instrument, "error").Observe(time.Since(start).Seconds())
		log.Warn().Err(err).Str("instrument", w.instrument).Msg("snapshot poll failed")

		w.mu.Lock()
		w.lastError = err.Error()
		w.mu.Unlock()
		return
	}
	if ctx.Err() != nil {
		// Unwatched while the call was in flight; the discarded
		// state must not be written.
		return
	}

	now := time.Now()

	w.mu.Lock()
	w.pollCount++
	w.lastSuccess = now
	w.lastError = ""

	var txs []flow.Tx
	if w.lastCounts == nil {
		// Cold start: nothing to diff against yet.
		w.lastCounts = &snap.Counts
	} else {
		drafts := flow.Synthesize(*w.lastCounts, snap.Counts, flow.PairContext{
			ChainID:    snap.ChainID,
			PairSymbol: w.instrument,
			Volume5m:   snap.Volume5m,
			TotalTx5m:  snap.Counts.Buys + snap.Counts.Sells,
		}, now, w.rng)
		w.lastCounts = &snap.Counts

		if len(drafts) > 0 {
			txCtx := w.flow.Context(snap.PriceChange1h, snap.PriceChange24h, snap.Counts)
			txs = flow.ClassifyAll(drafts, txCtx)
		}
	}

	prevRegime := w.flow.State().Regime
	state, emitted := w.flow.Apply(txs, now)
	detect := (w.pollCount-1)%e.cfg.DetectEvery == 0
	w.mu.Unlock()

	for _, tx := range txs {
		e.metrics.TxSynthesized.WithLabelValues(w.instrument, string(tx.Type)).Inc()
	}
	e.metrics.PollDuration.WithLabelValues(w.instrument, "ok").Observe(time.Since(start).Seconds())

	e.publishFlowEvents(w.instrument, prevRegime, state, emitted)

	if detect {
		e.detectSignals(ctx, w.instrument, now)
	}
}

// publishFlowEvents fans emitted flow events out to the bus and feeds
// regime transitions into the signal lifecycle as advisories.
func (e *Engine) publishFlowEvents(instrument string, prevRegime flow.Regime, state flow.State, emitted []flow.Event) {
	for _, ev := range emitted {
		msg := events.Message{
			Instrument: instrument,
			Timestamp:  ev.Timestamp,
			Payload:    ev,
		}

		switch ev.Type {
		case flow.EventRegimeChange:
			msg.Type = events.TypeRegimeChange
			e.metrics.RegimeSwitches.WithLabelValues(string(prevRegime), string(state.Regime)).Inc()
			log.Info().
				Str("instrument", instrument).
				Str("from", string(prevRegime)).
				Str("to", string(state.Regime)).
				Msg("flow regime transition")

			e.ingestSignal(pulse.Signal{
				Instrument: instrument,
				Category:   pulse.CategoryStructure,
				Message:    "Flow regime shift: " + ev.Description,
				Confidence: pulse.ConfidenceHigh,
				Timestamp:  ev.Timestamp,
				TTL:        600,
				Tag:        "flow-regime-" + string(state.Regime),
			}, false)
		case flow.EventWhaleAlert:
			msg.Type = events.TypeWhaleAlert
		default:
			msg.Type = events.TypePressure
		}

		e.bus.Publish(msg)
	}
}

// detectSignals refreshes the candle-based pulse detectors.
func (e *Engine) detectSignals(ctx context.Context, instrument string, now time.Time) {
	candles, err := e.feed.Candles(ctx, instrument, e.cfg.CandleLimit)
	if err != nil {
		log.Debug().Err(err).Str("instrument", instrument).Msg("candle fetch for detectors failed")
		return
	}

	for _, sig := range pulse.Detect(instrument, candles, now) {
		if sig.ID == "" {
			continue
		}
		e.ingestSignal(sig, true)
	}
}

// ingestSignal routes a signal through the lifecycle manager, records
// metrics, and pushes accepted high-confidence signals to subscribers.
func (e *Engine) ingestSignal(sig pulse.Signal, notify bool) {
	if sig.ID == "" {
		// Regime-shift advisories are synthesized here, not by a
		// detector, so they mint their own identity.
		sig.ID = sig.Tag + "-" + sig.Timestamp.Format(time.RFC3339Nano)
	}

	if !e.pulse.Ingest(sig) {
		e.metrics.SignalsDeduped.Inc()
		return
	}
	e.metrics.SignalsIngested.WithLabelValues(string(sig.Category)).Inc()

	if notify && sig.Confidence == pulse.ConfidenceHigh {
		e.bus.Publish(events.Message{
			Type:       events.TypeSignal,
			Instrument: sig.Instrument,
			Timestamp:  sig.Timestamp,
			Payload:    sig,
		})
	}
}
