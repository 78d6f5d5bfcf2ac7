package provider

import (
	"context"

	"github.com/flowpulse/flowpulse/internal/domain"
	"github.com/flowpulse/flowpulse/internal/flow"
)

// PairSnapshot is the pull-based 5-minute activity snapshot for one
// instrument, as served by the upstream market data feed.
type PairSnapshot struct {
	Counts         flow.PairCounts `json:"counts"`
	Volume5m       float64         `json:"volume_5m"`
	Volume1h       float64         `json:"volume_1h"`
	PriceChange1h  float64         `json:"price_change_1h"`
	PriceChange24h float64         `json:"price_change_24h"`
	ChainID        string          `json:"chain_id"`
}

// Source is the abstract market data capability the engine consumes.
// Implementations wrap whatever concrete feed the deployment uses; the
// engine never fetches data any other way.
type Source interface {
	// Candles returns up to limit OHLCV bars for the instrument,
	// ascending by time.
	Candles(ctx context.Context, instrument string, limit int) ([]domain.Candle, error)

	// PairSnapshot returns the current cumulative 5-minute counters
	// and price-change context for the instrument.
	PairSnapshot(ctx context.Context, instrument string) (PairSnapshot, error)
}
