package flow

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func synthRand() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

func TestSynthesizeFromCountDeltas(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pctx := PairContext{
		ChainID:    "solana",
		PairSymbol: "SOL/USDC",
		Volume5m:   20000,
		TotalTx5m:  18,
	}

	drafts := Synthesize(
		PairCounts{Buys: 10, Sells: 8},
		PairCounts{Buys: 14, Sells: 9},
		pctx, now, synthRand(),
	)
	require.Len(t, drafts, 5)

	var buys, sells int
	seen := make(map[string]bool)
	avgSize := 20000.0 / 18
	for _, d := range drafts {
		assert.False(t, seen[d.ID], "IDs must be unique within a tick")
		seen[d.ID] = true
		assert.Equal(t, "solana", d.ChainID)
		assert.Equal(t, "SOL/USDC", d.PairSymbol)
		assert.GreaterOrEqual(t, d.SizeUSD, avgSize*0.5)
		assert.Less(t, d.SizeUSD, avgSize*1.5)

		switch d.Type {
		case Buy:
			buys++
		case Sell:
			sells++
		}
	}
	assert.Equal(t, 4, buys)
	assert.Equal(t, 1, sells)
}

func TestSynthesizeSpacingAscending(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	drafts := Synthesize(
		PairCounts{}, PairCounts{Buys: 3},
		PairContext{Volume5m: 9000, TotalTx5m: 3}, now, synthRand(),
	)
	require.Len(t, drafts, 3)

	// Oldest first, half-second apart, newest pinned at now.
	assert.Equal(t, now.Add(-time.Second), drafts[0].Timestamp)
	assert.Equal(t, now.Add(-500*time.Millisecond), drafts[1].Timestamp)
	assert.Equal(t, now, drafts[2].Timestamp)
}

func TestSynthesizeCapsPerSide(t *testing.T) {
	drafts := Synthesize(
		PairCounts{}, PairCounts{Buys: 40, Sells: 12},
		PairContext{Volume5m: 50000, TotalTx5m: 52}, time.Now(), synthRand(),
	)
	assert.Len(t, drafts, 10, "each side caps at five per tick")
}

func TestSynthesizeCounterReset(t *testing.T) {
	// A feed-side counter reset makes the diff negative; nothing is
	// fabricated from it.
	drafts := Synthesize(
		PairCounts{Buys: 100, Sells: 90}, PairCounts{Buys: 2, Sells: 1},
		PairContext{Volume5m: 5000, TotalTx5m: 3}, time.Now(), synthRand(),
	)
	assert.Empty(t, drafts)
}

func TestSynthesizeDefaultSizing(t *testing.T) {
	drafts := Synthesize(
		PairCounts{}, PairCounts{Buys: 1},
		PairContext{}, time.Now(), synthRand(),
	)
	require.Len(t, drafts, 1)

	// Zero feed volume falls back to the default notional pool.
	assert.GreaterOrEqual(t, drafts[0].SizeUSD, 5000.0)
	assert.Less(t, drafts[0].SizeUSD, 15000.0)
}
