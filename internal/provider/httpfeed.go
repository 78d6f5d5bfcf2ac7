package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flowpulse/flowpulse/internal/domain"
	"github.com/flowpulse/flowpulse/internal/flow"
)

// HTTPFeed is a Source backed by a JSON market data gateway:
//
//	GET {base}/candles?symbol=S&limit=N  -> []candlePayload
//	GET {base}/pairs/{symbol}           -> pairPayload
//
// The gateway shape matches the aggregator API the UI already proxies.
type HTTPFeed struct {
	baseURL string
	client  *http.Client
}

// NewHTTPFeed creates a feed client. client may be nil.
func NewHTTPFeed(baseURL string, client *http.Client) *HTTPFeed {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &HTTPFeed{baseURL: baseURL, client: client}
}

type candlePayload struct {
	Timestamp int64   `json:"timestamp"` // unix milliseconds
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

type pairPayload struct {
	ChainID string `json:"chainId"`
	Txns    struct {
		M5 struct {
			Buys  int `json:"buys"`
			Sells int `json:"sells"`
		} `json:"m5"`
	} `json:"txns"`
	Volume struct {
		M5 float64 `json:"m5"`
		H1 float64 `json:"h1"`
	} `json:"volume"`
	PriceChange struct {
		H1  float64 `json:"h1"`
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
}

// Candles implements Source.
func (f *HTTPFeed) Candles(ctx context.Context, instrument string, limit int) ([]domain.Candle, error) {
	endpoint := fmt.Sprintf("%s/candles?symbol=%s&limit=%s",
		f.baseURL, url.QueryEscape(instrument), strconv.Itoa(limit))

	var payload []candlePayload
	if err := f.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, fmt.Errorf("candles %s: %w", instrument, err)
	}

	candles := make([]domain.Candle, len(payload))
	for i, p := range payload {
		candles[i] = domain.Candle{
			Timestamp: time.UnixMilli(p.Timestamp),
			Open:      p.Open,
			High:      p.High,
			Low:       p.Low,
			Close:     p.Close,
			Volume:    p.Volume,
		}
	}
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
	return candles, nil
}

// PairSnapshot implements Source.
func (f *HTTPFeed) PairSnapshot(ctx context.Context, instrument string) (PairSnapshot, error) {
	endpoint := fmt.Sprintf("%s/pairs/%s", f.baseURL, url.PathEscape(instrument))

	var payload pairPayload
	if err := f.getJSON(ctx, endpoint, &payload); err != nil {
		return PairSnapshot{}, fmt.Errorf("pair snapshot %s: %w", instrument, err)
	}

	return PairSnapshot{
		Counts:         flow.PairCounts{Buys: payload.Txns.M5.Buys, Sells: payload.Txns.M5.Sells},
		Volume5m:       payload.Volume.M5,
		Volume1h:       payload.Volume.H1,
		PriceChange1h:  payload.PriceChange.H1,
		PriceChange24h: payload.PriceChange.H24,
		ChainID:        payload.ChainID,
	}, nil
}

func (f *HTTPFeed) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Debug().Int("status", resp.StatusCode).Str("url", endpoint).Msg("feed request rejected")
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
