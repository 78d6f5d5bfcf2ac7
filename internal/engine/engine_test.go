package engine

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowpulse/flowpulse/internal/config"
	"github.com/flowpulse/flowpulse/internal/domain"
	"github.com/flowpulse/flowpulse/internal/events"
	"github.com/flowpulse/flowpulse/internal/flow"
	"github.com/flowpulse/flowpulse/internal/provider"
	"github.com/flowpulse/flowpulse/internal/pulse"
	"github.com/flowpulse/flowpulse/internal/telemetry"
)

// fakeFeed serves canned candles and a buy counter that advances on
// every snapshot, simulating steady one-sided flow.
type fakeFeed struct {
	mu        sync.Mutex
	buys      int
	snapErr   error
	snapCalls int
}

func (f *fakeFeed) Candles(ctx context.Context, instrument string, limit int) ([]domain.Candle, error) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]domain.Candle, 30)
	for i := range candles {
		candles[i] = domain.Candle{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      100.2, High: 101, Low: 100, Close: 100.8,
			Volume: 100,
		}
	}
	return candles, nil
}

func (f *fakeFeed) PairSnapshot(ctx context.Context, instrument string) (provider.PairSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapCalls++
	if f.snapErr != nil {
		return provider.PairSnapshot{}, f.snapErr
	}
	f.buys += 5
	return provider.PairSnapshot{
		Counts:        flow.PairCounts{Buys: f.buys, Sells: 0},
		Volume5m:      25000,
		PriceChange1h: 1.5,
		ChainID:       "solana",
	}, nil
}

func (f *fakeFeed) Stale(instrument string) bool { return false }

func testEngine(t *testing.T, feed Feed) *Engine {
	t.Helper()
	cfg := config.EngineConfig{
		PollInterval: 10 * time.Millisecond,
		DetectEvery:  1 << 20, // keep candle detectors out of these tests
		CandleLimit:  30,
	}
	return New(cfg, flow.DefaultConfig(), feed, pulse.NewManager(),
		events.NewBus(nil), telemetry.NewRegistry(),
		WithRandSource(func() *rand.Rand { return rand.New(rand.NewSource(7)) }))
}

func TestEngineWatchLifecycle(t *testing.T) {
	eng := testEngine(t, &fakeFeed{})
	defer eng.Close()

	ctx := context.Background()
	require.NoError(t, eng.Watch(ctx, "SOL/USDC"))
	assert.Error(t, eng.Watch(ctx, "SOL/USDC"), "double watch must be rejected")

	require.Eventually(t, func() bool {
		txs, err := eng.Transactions("SOL/USDC")
		return err == nil && len(txs) > 0
	}, 2*time.Second, 5*time.Millisecond, "synthesis should kick in after the cold-start poll")

	txs, err := eng.Transactions("SOL/USDC")
	require.NoError(t, err)
	for _, tx := range txs {
		assert.Equal(t, flow.Buy, tx.Type)
		assert.Equal(t, "SOL/USDC", tx.PairSymbol)
		assert.NotEmpty(t, tx.Summary)
		assert.Positive(t, tx.Impact)
	}

	eng.Unwatch("SOL/USDC")
	_, err = eng.Transactions("SOL/USDC")
	assert.Error(t, err, "unwatched instrument state must be gone")
}

func TestEngineRegimeEventsReachSubscribers(t *testing.T) {
	eng := testEngine(t, &fakeFeed{})
	defer eng.Close()

	msgs, cancel := eng.Subscribe()
	defer cancel()

	require.NoError(t, eng.Watch(context.Background(), "SOL/USDC"))

	// Pure buy flow above the quiet floor forces a transition into
	// accumulation, which must surface on the bus.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-msgs:
			if msg.Type == events.TypeRegimeChange {
				assert.Equal(t, "SOL/USDC", msg.Instrument)
				return
			}
		case <-deadline:
			t.Fatal("no regime change observed on the bus")
		}
	}
}

func TestEngineRegimeShiftFeedsSignalStore(t *testing.T) {
	eng := testEngine(t, &fakeFeed{})
	defer eng.Close()

	require.NoError(t, eng.Watch(context.Background(), "SOL/USDC"))

	require.Eventually(t, func() bool {
		return len(eng.ActiveSignals(0)) > 0
	}, 2*time.Second, 5*time.Millisecond)

	signals := eng.ActiveSignals(0)
	assert.Equal(t, pulse.CategoryStructure, signals[0].Category)
	assert.Contains(t, signals[0].Tag, "flow-regime-")
}

func TestEngineFailedPollLeavesStateUntouched(t *testing.T) {
	feed := &fakeFeed{snapErr: errors.New("gateway down")}
	eng := testEngine(t, feed)
	defer eng.Close()

	require.NoError(t, eng.Watch(context.Background(), "SOL/USDC"))

	require.Eventually(t, func() bool {
		feed.mu.Lock()
		defer feed.mu.Unlock()
		return feed.snapCalls >= 3
	}, 2*time.Second, 5*time.Millisecond)

	state, err := eng.FlowState("SOL/USDC")
	require.NoError(t, err)
	assert.Equal(t, flow.RegimeQuiet, state.Regime)
	assert.True(t, state.LastUpdate.IsZero(), "failed ticks never advance flow state")

	statuses := eng.Instruments()
	require.Len(t, statuses, 1)
	assert.Equal(t, "gateway down", statuses[0].LastError)
}

func TestEngineOnDemandAnalysis(t *testing.T) {
	eng := testEngine(t, &fakeFeed{})
	defer eng.Close()

	// On-demand calculators work without a watcher.
	scores, err := eng.Factors(context.Background(), "SOL/USDC")
	require.NoError(t, err)
	assert.Equal(t, 50.0, scores.Momentum, "30 bars degrade to neutral factors")

	probs, err := eng.Scenarios(context.Background(), "SOL/USDC")
	require.NoError(t, err)
	assert.Equal(t, 100, probs.Upside+probs.Unclear+probs.Downside)

	levels, err := eng.Levels(context.Background(), "SOL/USDC")
	require.NoError(t, err)
	assert.Greater(t, levels.Target.Price, levels.Invalidation.Price)
}
