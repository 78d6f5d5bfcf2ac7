package pulse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowpulse/flowpulse/internal/domain"
)

func baseCandles(n int) []domain.Candle {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]domain.Candle, n)
	for i := range candles {
		candles[i] = domain.Candle{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      100.2,
			High:      101,
			Low:       100,
			Close:     100.8,
			Volume:    100,
		}
	}
	return candles
}

func findByTag(signals []Signal, tag string) *Signal {
	for i := range signals {
		if signals[i].Tag == tag {
			return &signals[i]
		}
	}
	return nil
}

func TestDetectEmptyInput(t *testing.T) {
	assert.Nil(t, Detect("SOL/USDC", nil, signalNow))
}

func TestDetectVolumeSurge(t *testing.T) {
	candles := baseCandles(30)
	candles[len(candles)-1].Volume = 300

	sig := findByTag(Detect("SOL/USDC", candles, signalNow), "volume-surge")
	require.NotNil(t, sig)
	assert.Equal(t, CategoryStrength, sig.Category)
	assert.Equal(t, ConfidenceMedium, sig.Confidence, "3x volume reads medium, not high")
	assert.Equal(t, 1800, sig.TTL)
	assert.Equal(t, "Volume surge +200%", sig.Message)
	assert.NotEmpty(t, sig.ID)
}

func TestDetectVolumeCompression(t *testing.T) {
	candles := baseCandles(30)
	candles[len(candles)-1].Volume = 30

	sig := findByTag(Detect("SOL/USDC", candles, signalNow), "volume-compression")
	require.NotNil(t, sig)
	assert.Equal(t, CategoryNeutral, sig.Category)
	assert.Equal(t, 3600, sig.TTL)
}

func TestDetectTightRange(t *testing.T) {
	// A 1-point span around 100 is well under the 2% threshold.
	candles := baseCandles(60)

	sig := findByTag(Detect("SOL/USDC", candles, signalNow), "range-tight")
	require.NotNil(t, sig)
	assert.Equal(t, CategoryNeutral, sig.Category)
	assert.Equal(t, ConfidenceHigh, sig.Confidence)
	assert.Equal(t, 7200, sig.TTL)
}

func TestDetectUpperWickRejection(t *testing.T) {
	candles := baseCandles(30)
	last := &candles[len(candles)-1]
	last.Open = 100
	last.Close = 100.5
	last.High = 105
	last.Low = 99.9

	sig := findByTag(Detect("SOL/USDC", candles, signalNow), "upper-rejection")
	require.NotNil(t, sig)
	assert.Equal(t, CategoryWeakness, sig.Category)
	assert.Equal(t, ConfidenceHigh, sig.Confidence, "a 9x wick ratio is high conviction")
	assert.Equal(t, "Rejection at 105.00", sig.Message)
}

func TestDetectLowerWickRejection(t *testing.T) {
	candles := baseCandles(30)
	last := &candles[len(candles)-1]
	last.Open = 100.5
	last.Close = 100.6
	last.High = 100.7
	last.Low = 96

	sig := findByTag(Detect("SOL/USDC", candles, signalNow), "lower-rejection")
	require.NotNil(t, sig)
	assert.Equal(t, CategoryStrength, sig.Category)
}

func TestDetectVolatilityCompression(t *testing.T) {
	candles := baseCandles(40)
	// Wide bars early, narrow bars late.
	for i := range candles {
		if i < len(candles)-15 {
			candles[i].High = 105
			candles[i].Low = 95
		}
	}

	sig := findByTag(Detect("SOL/USDC", candles, signalNow), "volatility-compression")
	require.NotNil(t, sig)
	assert.Equal(t, ConfidenceHigh, sig.Confidence, "a 90% collapse in range is high conviction")
	assert.Equal(t, 7200, sig.TTL)
}

func TestDetectTrendStructure(t *testing.T) {
	candles := baseCandles(30)
	n := len(candles)
	for i := 0; i < 5; i++ {
		candles[n-5+i].Low = 100 + float64(i)
		candles[n-5+i].High = 103 + float64(i)
		candles[n-5+i].Open = 101 + float64(i)
		candles[n-5+i].Close = 102 + float64(i)
	}

	sig := findByTag(Detect("SOL/USDC", candles, signalNow), "higher-lows")
	require.NotNil(t, sig)
	assert.Equal(t, CategoryStrength, sig.Category)
	assert.Equal(t, "Higher lows forming", sig.Message)
}

func TestDetectFailedBreakout(t *testing.T) {
	candles := baseCandles(40)
	last := &candles[len(candles)-1]
	last.High = 102.5 // pokes above the 101 range high
	last.Close = 100.5
	last.Open = 100.9

	sig := findByTag(Detect("SOL/USDC", candles, signalNow), "false-break-up")
	require.NotNil(t, sig)
	assert.Equal(t, CategoryWeakness, sig.Category)
	assert.Equal(t, 120, sig.TTL, "trap signals decay fast")
}

func TestDetectQuietMarketStaysSilent(t *testing.T) {
	// Identical bars, normal volume: only the consolidation detector
	// has anything to say.
	signals := Detect("SOL/USDC", baseCandles(60), signalNow)
	for _, sig := range signals {
		assert.Equal(t, "range-tight", sig.Tag)
	}
}
