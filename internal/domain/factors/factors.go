package factors

import (
	"github.com/flowpulse/flowpulse/internal/domain"
	"github.com/flowpulse/flowpulse/internal/domain/indicators"
)

// Scores holds the four normalized factor scores, each in [0,100].
type Scores struct {
	Momentum   float64 `json:"momentum"`
	Volume     float64 `json:"volume"`
	Volatility float64 `json:"volatility"`
	Trend      float64 `json:"trend"`
}

// MinHistory is the candle count required for a full computation.
// Shorter sequences degrade to the neutral midpoint rather than error.
const MinHistory = 50

const (
	rsiPeriod       = 14
	rocPeriod       = 10
	volumeSMAPeriod = 20
	atrPeriod       = 14
	atrLookback     = 30
)

// Neutral is the degraded-input result: every factor at the midpoint.
func Neutral() Scores {
	return Scores{Momentum: 50, Volume: 50, Volatility: 50, Trend: 50}
}

// Compute derives all four factor scores from an OHLCV sequence. It is
// pure and never fails: insufficient history returns Neutral().
func Compute(candles []domain.Candle) Scores {
	if len(candles) < MinHistory {
		return Neutral()
	}

	closes := domain.Closes(candles)
	return Scores{
		Momentum:   momentumScore(closes),
		Volume:     volumeScore(domain.Volumes(candles)),
		Volatility: volatilityScore(candles),
		Trend:      trendScore(closes),
	}
}

// momentumScore blends RSI(14) with a normalized 10-bar rate of change:
// 70% RSI, 30% ROC mapped from [-5%,+5%] onto [0,100].
func momentumScore(closes []float64) float64 {
	rsi := indicators.RSI(closes, rsiPeriod).Value

	roc, ok := indicators.ROC(closes, rocPeriod)
	if !ok {
		roc = 0
	}
	rocScore := indicators.Clamp((roc+5)*10, 0, 100)

	return indicators.Clamp(rsi*0.7+rocScore*0.3, 0, 100)
}

// volumeScore maps relative volume (current vs 20-bar trailing SMA)
// from the [0.5x, 2.5x] band onto [0,100].
func volumeScore(volumes []float64) float64 {
	sma, ok := indicators.TrailingSMA(volumes, volumeSMAPeriod)
	if !ok || sma == 0 {
		return 50
	}

	rVol := volumes[len(volumes)-1] / sma
	return indicators.Clamp((rVol-0.5)/2.0*100, 0, 100)
}

// volatilityScore ranks the latest ATR(14) against the trailing 30 ATR
// values: 0 at the window low, 100 at the window high.
func volatilityScore(candles []domain.Candle) float64 {
	series := indicators.ATRSeries(candles, atrPeriod)
	if len(series) == 0 {
		return 50
	}

	window := series
	if len(window) > atrLookback {
		window = window[len(window)-atrLookback:]
	}

	minATR, maxATR := window[0], window[0]
	for _, v := range window {
		if v < minATR {
			minATR = v
		}
		if v > maxATR {
			maxATR = v
		}
	}
	if maxATR == minATR {
		return 50
	}

	current := series[len(series)-1]
	return indicators.Clamp((current-minATR)/(maxATR-minATR)*100, 0, 100)
}

// trendScore starts from EMA(20/50/200) alignment relative to price
// (fully bullish 85, fully bearish 15, mixed 50) and nudges by the
// EMA20 slope over the last two samples.
func trendScore(closes []float64) float64 {
	ema20Series := indicators.EMASeries(closes, 20)
	if len(ema20Series) < 2 {
		return 50
	}
	e20 := ema20Series[len(ema20Series)-1]

	e50, ok := indicators.EMA(closes, 50)
	if !ok {
		return 50
	}
	e200, ok := indicators.EMA(closes, 200)
	if !ok {
		// Short histories rarely reach 200 bars; degrade to the 50 EMA.
		e200 = e50
	}

	price := closes[len(closes)-1]
	score := 50.0
	switch {
	case price > e20 && e20 > e50 && e50 > e200:
		score = 85
	case price < e20 && e20 < e50 && e50 < e200:
		score = 15
	}

	prevE20 := ema20Series[len(ema20Series)-2]
	if prevE20 != 0 {
		slope := (e20 - prevE20) / prevE20
		if slope > 0.001 {
			score += 10
		} else if slope < -0.001 {
			score -= 10
		}
	}

	return indicators.Clamp(score, 0, 100)
}
