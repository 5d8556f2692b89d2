package marketdata

import "CycleSentinel/internal/model"

// Fetcher defines the interface for fetching market data. Implementations
// must return bars ordered oldest to newest, with the derived series the
// indicator roster consumes already computed.
type Fetcher interface {
	FetchTimeframe(timeframe string, bars int) (*model.TimeframeDataset, error)
	CurrentPrice() (float64, error)
	Name() string
}

// MetricSource supplies on-chain and derivatives metrics that do not come
// from OHLCV history (CVDD, terminal price, NUPL, transaction fees, funding
// rates). Implementations live outside the core; indicators depending on a
// metric report unavailable when the source cannot provide it.
type MetricSource interface {
	Metric(name string) (float64, error)
}

// Metric names resolvable through a MetricSource.
const (
	MetricCVDD          = "cvdd"
	MetricTerminalPrice = "terminal_price"
	MetricNUPL          = "nupl"
	MetricAvgTxFee      = "avg_tx_fee"
	MetricFundingRate   = "funding_rate_bps"
)
