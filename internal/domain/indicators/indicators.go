package indicators

import (
	"math"

	"github.com/flowpulse/flowpulse/internal/domain"
)

// RSIResult represents the result of RSI calculation
type RSIResult struct {
	Value     float64 `json:"value"`
	Period    int     `json:"period"`
	IsValid   bool    `json:"is_valid"`
	DataCount int     `json:"data_count"`
}

// RSI calculates the Relative Strength Index using Wilder's smoothing.
// Returns the neutral midpoint when there is not enough history.
func RSI(prices []float64, period int) RSIResult {
	if len(prices) < period+1 {
		return RSIResult{Value: 50.0, Period: period, IsValid: false, DataCount: len(prices)}
	}

	gains := make([]float64, len(prices)-1)
	losses := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gains[i-1] = change
		} else {
			losses[i-1] = -change
		}
	}

	// SMA seed for the first period, Wilder's smoothing after
	avgGain := 0.0
	avgLoss := 0.0
	for i := 0; i < period; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	alpha := 1.0 / float64(period)
	for i := period; i < len(gains); i++ {
		avgGain = avgGain*(1-alpha) + gains[i]*alpha
		avgLoss = avgLoss*(1-alpha) + losses[i]*alpha
	}

	if avgLoss == 0 {
		return RSIResult{Value: 100.0, Period: period, IsValid: true, DataCount: len(prices)}
	}

	rs := avgGain / avgLoss
	return RSIResult{
		Value:     100.0 - (100.0 / (1.0 + rs)),
		Period:    period,
		IsValid:   true,
		DataCount: len(prices),
	}
}

// ROC returns the rate of change in percent over the given lookback.
// The bool reports whether enough history was available.
func ROC(prices []float64, period int) (float64, bool) {
	if len(prices) < period+1 {
		return 0, false
	}
	past := prices[len(prices)-1-period]
	if past == 0 {
		return 0, false
	}
	current := prices[len(prices)-1]
	return (current - past) / past * 100.0, true
}

// ATRSeries computes the Wilder-smoothed Average True Range per bar.
// The returned slice holds one smoothed value per bar starting at
// index period (earlier bars carry no value); callers take the tail.
func ATRSeries(candles []domain.Candle, period int) []float64 {
	if len(candles) < period+1 {
		return nil
	}

	trueRanges := make([]float64, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		hl := candles[i].High - candles[i].Low
		hc := math.Abs(candles[i].High - candles[i-1].Close)
		lc := math.Abs(candles[i].Low - candles[i-1].Close)
		trueRanges[i-1] = math.Max(hl, math.Max(hc, lc))
	}

	atr := 0.0
	for i := 0; i < period; i++ {
		atr += trueRanges[i]
	}
	atr /= float64(period)

	series := make([]float64, 0, len(trueRanges)-period+1)
	series = append(series, atr)

	alpha := 1.0 / float64(period)
	for i := period; i < len(trueRanges); i++ {
		atr = atr*(1-alpha) + trueRanges[i]*alpha
		series = append(series, atr)
	}
	return series
}

// ATR returns the latest Average True Range value, or 0 when the
// sequence is too short.
func ATR(candles []domain.Candle, period int) float64 {
	series := ATRSeries(candles, period)
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

// EMASeries computes the exponential moving average per value, seeded
// with the SMA of the first period values so the tail converges to the
// standard EMA.
func EMASeries(values []float64, period int) []float64 {
	if len(values) < period {
		return nil
	}

	series := make([]float64, 0, len(values)-period+1)
	seed := 0.0
	for i := 0; i < period; i++ {
		seed += values[i]
	}
	seed /= float64(period)
	series = append(series, seed)

	k := 2.0 / (float64(period) + 1.0)
	ema := seed
	for i := period; i < len(values); i++ {
		ema = values[i]*k + ema*(1-k)
		series = append(series, ema)
	}
	return series
}

// EMA returns the latest EMA value. The bool reports availability.
func EMA(values []float64, period int) (float64, bool) {
	series := EMASeries(values, period)
	if len(series) == 0 {
		return 0, false
	}
	return series[len(series)-1], true
}

// TrailingSMA returns the simple moving average of the period values
// ending just before the final one (the relative-volume convention:
// current bar compared against the trailing average).
func TrailingSMA(values []float64, period int) (float64, bool) {
	if len(values) < period+1 {
		return 0, false
	}
	sum := 0.0
	for _, v := range values[len(values)-period-1 : len(values)-1] {
		sum += v
	}
	return sum / float64(period), true
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
