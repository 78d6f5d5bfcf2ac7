package pulse

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/flowpulse/flowpulse/internal/domain"
	"github.com/flowpulse/flowpulse/internal/domain/indicators"
)

// Detector thresholds.
const (
	volumeSurgeRatio       = 2.5
	volumeCompressionRatio = 0.4
	tightRangePct          = 2.0
	wickBodyMultiple       = 2.0
	wickRatioFloor         = 3.0
	atrCompressionPct      = -20.0
	atrExpansionPct        = 30.0
	breakoutLookback       = 20
)

// Detect runs every OHLCV detector against an ascending candle
// sequence and returns the signals that fired. Detectors are pure;
// they never error on short input, they simply stay silent.
func Detect(instrument string, candles []domain.Candle, now time.Time) []Signal {
	if len(candles) == 0 {
		return nil
	}

	var signals []Signal
	for _, fn := range []func(string, []domain.Candle, time.Time) *Signal{
		detectVolumeAnomaly,
		detectTightRange,
		detectWickRejection,
		detectVolatilityShift,
		detectTrendStructure,
		detectFailedBreakout,
	} {
		if s := fn(instrument, candles, now); s != nil {
			signals = append(signals, *s)
		}
	}
	return signals
}

func newSignal(instrument string, category Category, tag, message string, confidence Confidence, ttl int, now time.Time, debug map[string]any) *Signal {
	return &Signal{
		ID:         uuid.NewString(),
		Instrument: instrument,
		Category:   category,
		Message:    message,
		Confidence: confidence,
		Timestamp:  now,
		TTL:        ttl,
		Tag:        tag,
		Debug:      debug,
	}
}

// detectVolumeAnomaly flags volume surges (>=2.5x the 20-bar average)
// and participation droughts (<=0.4x).
func detectVolumeAnomaly(instrument string, candles []domain.Candle, now time.Time) *Signal {
	if len(candles) < 21 {
		return nil
	}

	latest := candles[len(candles)-1]
	avg, ok := indicators.TrailingSMA(domain.Volumes(candles), 20)
	if !ok || avg == 0 {
		return nil
	}

	ratio := latest.Volume / avg
	if ratio >= volumeSurgeRatio {
		confidence := ConfidenceLow
		if ratio >= 4 {
			confidence = ConfidenceHigh
		} else if ratio >= 3 {
			confidence = ConfidenceMedium
		}
		return newSignal(instrument, CategoryStrength, "volume-surge",
			fmt.Sprintf("Volume surge +%d%%", int(math.Round((ratio-1)*100))),
			confidence, 1800, now, map[string]any{"volume_ratio": ratio, "avg_volume": avg})
	}

	if ratio <= volumeCompressionRatio {
		return newSignal(instrument, CategoryNeutral, "volume-compression",
			fmt.Sprintf("Low participation (%d%% of avg)", int(math.Round(ratio*100))),
			ConfidenceMedium, 3600, now, map[string]any{"volume_ratio": ratio})
	}

	return nil
}

// detectTightRange flags consolidation: the last 24 bars spanning under
// 2% of their midpoint.
func detectTightRange(instrument string, candles []domain.Candle, now time.Time) *Signal {
	if len(candles) < 50 {
		return nil
	}

	recent := candles[len(candles)-24:]
	high, low := recent[0].High, recent[0].Low
	for _, c := range recent {
		high = math.Max(high, c.High)
		low = math.Min(low, c.Low)
	}
	mid := (high + low) / 2
	if mid == 0 {
		return nil
	}

	rangePct := (high - low) / mid * 100
	if rangePct < tightRangePct {
		return newSignal(instrument, CategoryNeutral, "range-tight",
			fmt.Sprintf("Tight range for %dh (%.1f%%)", len(recent), rangePct),
			ConfidenceHigh, 7200, now, map[string]any{"high": high, "low": low, "range_pct": rangePct})
	}
	return nil
}

// detectWickRejection flags a dominant wick on the latest bar: a failed
// push above (weakness) or an absorbed push below (strength).
func detectWickRejection(instrument string, candles []domain.Candle, now time.Time) *Signal {
	if len(candles) < 5 {
		return nil
	}

	latest := candles[len(candles)-1]
	body := math.Abs(latest.Close - latest.Open)
	upperWick := latest.High - math.Max(latest.Open, latest.Close)
	lowerWick := math.Min(latest.Open, latest.Close) - latest.Low

	denom := body
	if denom == 0 {
		denom = 0.0001
	}
	wickRatio := math.Max(upperWick, lowerWick) / denom

	confidence := ConfidenceMedium
	if wickRatio > 5 {
		confidence = ConfidenceHigh
	}

	if upperWick > body*wickBodyMultiple && wickRatio > wickRatioFloor {
		return newSignal(instrument, CategoryWeakness, "upper-rejection",
			fmt.Sprintf("Rejection at %.2f", latest.High),
			confidence, 1800, now, map[string]any{"level": latest.High, "wick_ratio": wickRatio})
	}
	if lowerWick > body*wickBodyMultiple && wickRatio > wickRatioFloor {
		return newSignal(instrument, CategoryStrength, "lower-rejection",
			fmt.Sprintf("Bounce off %.2f", latest.Low),
			confidence, 1800, now, map[string]any{"level": latest.Low, "wick_ratio": wickRatio})
	}
	return nil
}

// detectVolatilityShift compares the latest ATR(14) window against the
// preceding one: a sharp contraction reads as coiling, a sharp rise as
// expansion.
func detectVolatilityShift(instrument string, candles []domain.Candle, now time.Time) *Signal {
	if len(candles) < 30 {
		return nil
	}

	n := len(candles)
	currentATR := indicators.ATR(candles[n-15:], 14)
	previousATR := indicators.ATR(candles[n-29:n-14], 14)
	if currentATR == 0 || previousATR == 0 {
		return nil
	}

	change := (currentATR - previousATR) / previousATR * 100
	if change < atrCompressionPct {
		confidence := ConfidenceMedium
		if math.Abs(change) > 40 {
			confidence = ConfidenceHigh
		}
		return newSignal(instrument, CategoryNeutral, "volatility-compression",
			fmt.Sprintf("Volatility compression (%.0f%% decline)", math.Abs(change)),
			confidence, 7200, now, map[string]any{"atr_change": change})
	}
	if change > atrExpansionPct {
		return newSignal(instrument, CategoryMeta, "volatility-expansion",
			fmt.Sprintf("Volatility expanding (+%.0f%%)", change),
			ConfidenceMedium, 3600, now, map[string]any{"atr_change": change})
	}
	return nil
}

// detectTrendStructure looks for five consecutive higher lows or lower
// highs on the most recent bars.
func detectTrendStructure(instrument string, candles []domain.Candle, now time.Time) *Signal {
	if len(candles) < 10 {
		return nil
	}

	recent := candles[len(candles)-5:]
	higherLows, lowerHighs := true, true
	for i := 1; i < len(recent); i++ {
		if recent[i].Low <= recent[i-1].Low {
			higherLows = false
		}
		if recent[i].High >= recent[i-1].High {
			lowerHighs = false
		}
	}

	if higherLows {
		return newSignal(instrument, CategoryStrength, "higher-lows",
			"Higher lows forming", ConfidenceMedium, 3600, now, nil)
	}
	if lowerHighs {
		return newSignal(instrument, CategoryWeakness, "lower-highs",
			"Lower highs compressing", ConfidenceMedium, 3600, now, nil)
	}
	return nil
}

// detectFailedBreakout checks the latest bar against the prior 20-bar
// range: a push through that closes back inside is a trap.
func detectFailedBreakout(instrument string, candles []domain.Candle, now time.Time) *Signal {
	if len(candles) < breakoutLookback+1 {
		return nil
	}

	n := len(candles)
	latest := candles[n-1]
	prior := candles[n-1-breakoutLookback : n-1]

	rangeHigh, rangeLow := prior[0].High, prior[0].Low
	for _, c := range prior {
		rangeHigh = math.Max(rangeHigh, c.High)
		rangeLow = math.Min(rangeLow, c.Low)
	}

	if latest.High > rangeHigh && latest.Close < rangeHigh {
		return newSignal(instrument, CategoryWeakness, "false-break-up",
			fmt.Sprintf("Upside breakout rejected at %.2f", rangeHigh),
			ConfidenceMedium, 120, now, map[string]any{"level": rangeHigh})
	}
	if latest.Low < rangeLow && latest.Close > rangeLow {
		return newSignal(instrument, CategoryStrength, "false-break-down",
			"Breakdown attempt absorbed at range low",
			ConfidenceMedium, 120, now, map[string]any{"level": rangeLow})
	}
	return nil
}
