package flow

import (
	"fmt"
	"math"
	"time"
)

// Classifier rule thresholds.
const (
	whaleMultiplier     = 10.0 // size above 10x average reads as a whale
	botWindow           = 30 * time.Second
	botTxThreshold      = 3
	sellPressureCount   = 3
	sellPressureWindow  = 2 * time.Minute
	dipThresholdPct     = -5.0
	dominanceMultiplier = 2 // 5m counts on one side at 2x the other
)

// Classify assigns a classification tag, a human-readable summary and
// an impact score to a draft transaction. It is a pure function of the
// draft and its context; all randomness lives in the synthesizer.
func Classify(d Draft, ctx Context) (Classification, string, int) {
	impact := baseImpact(d.SizeUSD, ctx.AvgSizeUSD)

	// Whale: notional far above the rolling average.
	if d.SizeUSD > ctx.AvgSizeUSD*whaleMultiplier {
		impact = clampImpact(impact + 40)
		if d.Type == Buy {
			return WhaleMove, fmt.Sprintf("Large buyer entered — %s position opened.", formatSize(d.SizeUSD)), impact
		}
		return WhaleMove, fmt.Sprintf("Significant exit — %s liquidated.", formatSize(d.SizeUSD)), impact
	}

	// Bot-like: repeated same-side trades inside a short window.
	sameSide := 0
	for _, t := range ctx.RecentTxs {
		if t.Type == d.Type && d.Timestamp.Sub(t.Timestamp) < botWindow {
			sameSide++
		}
	}
	if sameSide >= botTxThreshold {
		impact = clampImpact(impact + 15)
		return BotLike, fmt.Sprintf("Automated activity detected — %d %ss in 30s.", sameSide+1, typeWord(d.Type)), impact
	}

	// Sell pressure: clustered sells inside two minutes.
	if d.Type == Sell {
		recentSells := 0
		for _, t := range ctx.RecentTxs {
			if t.Type == Sell && d.Timestamp.Sub(t.Timestamp) < sellPressureWindow {
				recentSells++
			}
		}
		if recentSells >= sellPressureCount-1 {
			impact = clampImpact(impact + 25)
			return SellPressure, fmt.Sprintf("Sell pressure increasing — %d sells in 2 minutes.", recentSells+1), impact
		}
	}

	// Contrarian buy into a falling market.
	if d.Type == Buy && ctx.PriceChange1h < dipThresholdPct {
		impact = clampImpact(impact + 20)
		return DipBuy, fmt.Sprintf("Dip buyer entered — accumulating after %.1f%% drop.", ctx.PriceChange1h), impact
	}

	// Directional dominance in the 5-minute counts.
	if d.Type == Buy && ctx.BuyCount5m > ctx.SellCount5m*dominanceMultiplier {
		impact = clampImpact(impact + 10)
		return Accumulating, "Accumulation phase — buy-side dominance detected.", impact
	}
	if d.Type == Sell && ctx.SellCount5m > ctx.BuyCount5m*dominanceMultiplier {
		impact = clampImpact(impact + 10)
		return Distributing, "Distribution phase — sell-side pressure building.", impact
	}

	if impact < 10 {
		impact = 10
	}
	if d.Type == Buy {
		return Normal, fmt.Sprintf("Standard buy order — %s added.", formatSize(d.SizeUSD)), impact
	}
	return Normal, fmt.Sprintf("Standard sell order — %s removed.", formatSize(d.SizeUSD)), impact
}

// ClassifyAll completes a batch of drafts in order, feeding each
// classified transaction back into the context so that intra-tick
// causality holds (later drafts see earlier ones as recent).
func ClassifyAll(drafts []Draft, ctx Context) []Tx {
	txs := make([]Tx, 0, len(drafts))
	for _, d := range drafts {
		c, summary, impact := Classify(d, ctx)
		tx := Tx{Draft: d, Classification: c, Summary: summary, Impact: impact}
		txs = append(txs, tx)
		ctx.RecentTxs = append([]Tx{tx}, ctx.RecentTxs...)
	}
	return txs
}

// BatchPressure summarizes a transaction window into a dominant flow
// side and a 0-100 pressure reading, weighted by notional.
func BatchPressure(txs []Tx) (TxType, int) {
	var buyVolume, sellVolume float64
	for _, t := range txs {
		if t.Type == Buy {
			buyVolume += t.SizeUSD
		} else {
			sellVolume += t.SizeUSD
		}
	}

	total := buyVolume + sellVolume
	if total == 0 {
		return "", 0
	}

	buyRatio := buyVolume / total
	switch {
	case buyRatio > 0.6:
		return Buy, int(math.Round(buyRatio * 100))
	case buyRatio < 0.4:
		return Sell, int(math.Round((1 - buyRatio) * 100))
	default:
		return "", 50
	}
}

func baseImpact(sizeUSD, avgSizeUSD float64) int {
	denom := math.Max(avgSizeUSD, 1000)
	return clampImpact(int(math.Round(sizeUSD / denom * 30)))
}

func clampImpact(v int) int {
	if v > 100 {
		return 100
	}
	if v < 0 {
		return 0
	}
	return v
}

func formatSize(usd float64) string {
	switch {
	case usd >= 1_000_000:
		return fmt.Sprintf("$%.1fM", usd/1_000_000)
	case usd >= 1_000:
		return fmt.Sprintf("$%.1fk", usd/1_000)
	default:
		return fmt.Sprintf("$%.0f", usd)
	}
}

func typeWord(t TxType) string {
	if t == Buy {
		return "buy"
	}
	return "sell"
}
