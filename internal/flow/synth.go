package flow

import (
	"fmt"
	"math/rand"
	"time"
)

// Per-poll cap on synthesized transactions per side. Bounds work per
// tick and prevents burst amplification after feed gaps.
const maxSynthPerSide = 5

const (
	defaultVolume5m = 10000.0
	synthSpacing    = 500 * time.Millisecond
)

// Synthesize converts the change in cumulative buy/sell counts between
// two consecutive snapshots into synthetic transaction drafts. Notional
// size is the 5-minute average trade size scaled by a uniform [0.5,1.5)
// factor drawn from rng; per-trade sizes are unobservable, so the
// variance is modeled rather than measured. Buys are emitted before
// sells, each side oldest-first by synthetic offset.
func Synthesize(prev, curr PairCounts, pctx PairContext, now time.Time, rng *rand.Rand) []Draft {
	delta := curr.Diff(prev)

	volume := pctx.Volume5m
	if volume <= 0 {
		volume = defaultVolume5m
	}
	totalTx := pctx.TotalTx5m
	if totalTx <= 0 {
		totalTx = 1
	}
	avgSize := volume / float64(totalTx)

	drafts := make([]Draft, 0, min(delta.Buys, maxSynthPerSide)+min(delta.Sells, maxSynthPerSide))
	drafts = appendSide(drafts, Buy, delta.Buys, avgSize, pctx, now, rng)
	drafts = appendSide(drafts, Sell, delta.Sells, avgSize, pctx, now, rng)
	return drafts
}

func appendSide(drafts []Draft, side TxType, count int, avgSize float64, pctx PairContext, now time.Time, rng *rand.Rand) []Draft {
	n := min(count, maxSynthPerSide)
	for i := 0; i < n; i++ {
		variance := 0.5 + rng.Float64()
		drafts = append(drafts, Draft{
			ID:         fmt.Sprintf("%d-%s-%d", now.UnixMilli(), side, i),
			Timestamp:  now.Add(-time.Duration(n-1-i) * synthSpacing),
			Type:       side,
			SizeUSD:    avgSize * variance,
			ChainID:    pctx.ChainID,
			PairSymbol: pctx.PairSymbol,
		})
	}
	return drafts
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
