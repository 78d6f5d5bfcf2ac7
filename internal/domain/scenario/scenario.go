package scenario

import (
	"fmt"
	"math"

	"github.com/flowpulse/flowpulse/internal/domain"
	"github.com/flowpulse/flowpulse/internal/domain/factors"
	"github.com/flowpulse/flowpulse/internal/domain/indicators"
)

// Probabilities is the 3-way price scenario distribution. The fields
// are percentages and always sum to exactly 100.
type Probabilities struct {
	Upside   int `json:"upside"`
	Unclear  int `json:"unclear"`
	Downside int `json:"downside"`
}

// PriceRange bounds a suggested entry zone.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Level is a single price level with a human-readable reason.
type Level struct {
	Price  float64 `json:"price"`
	Reason string  `json:"reason"`
}

// KeyLevels carries the actionable levels derived from price and ATR.
type KeyLevels struct {
	Entry        PriceRange `json:"entry_zone"`
	Invalidation Level      `json:"invalidation"`
	Target       Level      `json:"target"`
}

const atrPeriod = 14

// Compute derives the scenario distribution from precomputed factor
// scores. Adjustments are applied to a near-uniform prior and the
// result is re-normalized so the percentages always sum to 100.
func Compute(scores factors.Scores) Probabilities {
	upside, unclear, downside := 33.0, 34.0, 33.0

	switch {
	case scores.Trend > 60:
		upside += 15
		downside -= 10
		unclear -= 5
	case scores.Trend < 40:
		downside += 15
		upside -= 10
		unclear -= 5
	default:
		unclear += 10
		upside -= 5
		downside -= 5
	}

	if scores.Momentum > 70 {
		upside += 5
	}
	if scores.Momentum < 30 {
		downside += 5
	}
	if scores.Volatility > 80 {
		unclear += 10
		upside -= 5
		downside -= 5
	}

	return normalize(upside, unclear, downside)
}

// FromCandles computes the distribution directly from OHLCV history,
// inheriting the factor calculator's degraded-input fallback.
func FromCandles(candles []domain.Candle) Probabilities {
	return Compute(factors.Compute(candles))
}

// normalize repairs the running total back to an exact 100. Rounding
// residue lands on the unclear bucket, which is the honest place for it.
func normalize(upside, unclear, downside float64) Probabilities {
	total := upside + unclear + downside
	if total <= 0 {
		return Probabilities{Upside: 33, Unclear: 34, Downside: 33}
	}

	p := Probabilities{
		Upside:   int(math.Round(upside / total * 100)),
		Downside: int(math.Round(downside / total * 100)),
	}
	p.Unclear = 100 - p.Upside - p.Downside
	return p
}

// Levels derives the entry zone, invalidation and target from the
// latest price and ATR(14). The invalidation keeps a long-bias stop
// distance regardless of trend direction.
func Levels(candles []domain.Candle) KeyLevels {
	price := domain.LastClose(candles)
	atr := indicators.ATR(candles, atrPeriod)

	ema20, ok := indicators.EMA(domain.Closes(candles), 20)
	if !ok {
		ema20 = price
	}

	return KeyLevels{
		Entry: PriceRange{
			Min: ema20 - 0.2*atr,
			Max: ema20 + 0.2*atr,
		},
		Invalidation: Level{
			Price:  price - 2*atr,
			Reason: fmt.Sprintf("2x ATR stop distance below current price (ATR %.4f)", atr),
		},
		Target: Level{
			Price:  price + 3*atr,
			Reason: "3x ATR extension from current price",
		},
	}
}
