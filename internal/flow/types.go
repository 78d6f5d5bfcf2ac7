package flow

import "time"

// TxType is the direction of a synthesized transaction.
type TxType string

const (
	Buy  TxType = "BUY"
	Sell TxType = "SELL"
)

// Classification is the rule-based tag assigned by the classifier.
type Classification string

const (
	WhaleMove    Classification = "WHALE_MOVE"
	BotLike      Classification = "BOT_LIKE"
	SellPressure Classification = "SELL_PRESSURE"
	DipBuy       Classification = "DIP_BUY"
	Accumulating Classification = "ACCUMULATION"
	Distributing Classification = "DISTRIBUTION"
	Normal       Classification = "NORMAL"
)

// Draft is a synthesized transaction before classification.
type Draft struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Type       TxType    `json:"type"`
	SizeUSD    float64   `json:"size_usd"`
	ChainID    string    `json:"chain_id"`
	PairSymbol string    `json:"pair_symbol"`
}

// Tx is a fully classified transaction. Immutable once classified;
// identity is the ID derived from synthesis time and offset.
type Tx struct {
	Draft
	Classification Classification `json:"classification"`
	Summary        string         `json:"summary"`
	Impact         int            `json:"impact"` // 0-100
}

// Context is the rolling state the classifier consults per transaction.
type Context struct {
	RecentTxs      []Tx
	AvgSizeUSD     float64
	PriceChange1h  float64
	PriceChange24h float64
	BuyCount5m     int
	SellCount5m    int
}

// PairCounts is a cumulative 5-minute buy/sell counter snapshot.
// Deltas between consecutive snapshots drive synthesis.
type PairCounts struct {
	Buys  int `json:"buys"`
	Sells int `json:"sells"`
}

// Diff returns the non-negative per-side count change since prev.
func (c PairCounts) Diff(prev PairCounts) PairCounts {
	return PairCounts{
		Buys:  max(0, c.Buys-prev.Buys),
		Sells: max(0, c.Sells-prev.Sells),
	}
}

// PairContext carries the feed fields needed to size synthetic trades.
type PairContext struct {
	ChainID    string
	PairSymbol string
	Volume5m   float64
	TotalTx5m  int
}

// Regime is the discrete classification of recent flow activity.
type Regime string

const (
	RegimeQuiet        Regime = "QUIET"
	RegimeAccumulation Regime = "ACCUMULATION"
	RegimeDistribution Regime = "DISTRIBUTION"
	RegimeChurn        Regime = "CHURN"
)

// Metrics are the aggregate flow measurements recomputed every poll.
type Metrics struct {
	TxFrequency   float64 `json:"tx_frequency"` // transactions per minute
	AvgSize       float64 `json:"avg_size"`     // mean notional USD
	BuyRatio      float64 `json:"buy_ratio"`    // 0-1
	Velocity      float64 `json:"velocity"`     // rate of change of frequency
	WhaleActivity bool    `json:"whale_activity"`
}

// State is the per-instrument flow snapshot exposed to callers.
type State struct {
	Regime       Regime    `json:"regime"`
	Metrics      Metrics   `json:"metrics"`
	LastUpdate   time.Time `json:"last_update"`
	WindowOldest time.Time `json:"window_oldest,omitempty"`
}

// EventType discriminates the append-only flow event feed.
type EventType string

const (
	EventRegimeChange EventType = "FLOW_REGIME"
	EventWhaleAlert   EventType = "WHALE_ALERT"
	EventBuyDominance EventType = "FLOW"
	EventSellPressure EventType = "PRESSURE"
)

// Event records a discrete flow observation. Events are produced only
// on transitions, never on every poll.
type Event struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
