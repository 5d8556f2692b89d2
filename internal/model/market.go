package model

import "time"

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// TimeframeDataset holds one timeframe's bars plus derived series keyed by
// name, each series aligned index-for-index with Bars. A dataset is never
// mutated after construction; a refresh replaces the whole object.
type TimeframeDataset struct {
	Symbol    string               `json:"symbol"`
	Timeframe string               `json:"timeframe"`
	Bars      []OHLCV              `json:"bars"`
	Series    map[string][]float64 `json:"series"`
	FetchedAt time.Time            `json:"fetched_at"`
}

// Closes returns the close column of Bars.
func (d *TimeframeDataset) Closes() []float64 {
	out := make([]float64, len(d.Bars))
	for i, b := range d.Bars {
		out[i] = b.Close
	}
	return out
}

// Volumes returns the volume column of Bars.
func (d *TimeframeDataset) Volumes() []float64 {
	out := make([]float64, len(d.Bars))
	for i, b := range d.Bars {
		out[i] = b.Volume
	}
	return out
}

// LastClose returns the most recent close, or false if there are no bars.
func (d *TimeframeDataset) LastClose() (float64, bool) {
	if len(d.Bars) == 0 {
		return 0, false
	}
	return d.Bars[len(d.Bars)-1].Close, true
}

// SeriesTail returns the last value of a named derived series, or false if
// the series is missing or empty.
func (d *TimeframeDataset) SeriesTail(name string) (float64, bool) {
	s, ok := d.Series[name]
	if !ok || len(s) == 0 {
		return 0, false
	}
	return s[len(s)-1], true
}

// PriceStatistics summarizes recent closes over a lookback window.
type PriceStatistics struct {
	Current   float64 `json:"current"`
	Mean      float64 `json:"mean"`
	Std       float64 `json:"std"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	ChangePct float64 `json:"change_pct"`
}

// VolumeStatistics summarizes recent volume over a lookback window.
type VolumeStatistics struct {
	Current    float64 `json:"current"`
	Mean       float64 `json:"mean"`
	Std        float64 `json:"std"`
	ZScore     float64 `json:"z_score"`
	Percentile float64 `json:"percentile"`
}

// MarketContext captures the market snapshot attached to each run.
type MarketContext struct {
	CurrentPrice *float64          `json:"current_price"`
	PriceStats   *PriceStatistics  `json:"price_statistics,omitempty"`
	VolumeStats  *VolumeStatistics `json:"volume_statistics,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}

// TimeframeStatus reports one cache entry's state.
type TimeframeStatus struct {
	Cached     bool      `json:"cached"`
	FetchedAt  time.Time `json:"fetched_at,omitempty"`
	AgeMinutes float64   `json:"age_minutes"`
	Valid      bool      `json:"valid"`
}
