package marketdata

import (
	"fmt"
	"math"
	"time"

	"CycleSentinel/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price    float64
	Datasets map[string]*model.TimeframeDataset
	Err      error
	Calls    int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchTimeframe(timeframe string, bars int) (*model.TimeframeDataset, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	if ds, ok := m.Datasets[timeframe]; ok {
		return ds, nil
	}
	return GenerateDataset(m.Price, timeframe, bars), nil
}

func (m *MockFetcher) CurrentPrice() (float64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	return m.Price, nil
}

// MockMetrics is a MetricSource backed by a fixed map.
type MockMetrics struct {
	Values map[string]float64
}

func (m *MockMetrics) Metric(name string) (float64, error) {
	if v, ok := m.Values[name]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("metric %q unavailable", name)
}

// UnavailableMetrics is the default MetricSource when no on-chain adapter
// is wired; every lookup reports unavailable.
type UnavailableMetrics struct{}

func (UnavailableMetrics) Metric(name string) (float64, error) {
	return 0, fmt.Errorf("metric %q: no metric source configured", name)
}

// GenerateDataset builds a deterministic synthetic dataset around a base
// price, with derived series computed the same way as for live data.
func GenerateDataset(basePrice float64, timeframe string, count int) *model.TimeframeDataset {
	step := 24 * time.Hour
	switch timeframe {
	case "1W":
		step = 7 * 24 * time.Hour
	case "1M":
		step = 30 * 24 * time.Hour
	case "3D":
		step = 3 * 24 * time.Hour
	case "5D":
		step = 5 * 24 * time.Hour
	}

	now := time.Now()
	bars := make([]model.OHLCV, count)
	for i := 0; i < count; i++ {
		drift := 1 + float64(i-count/2)*0.001
		wave := 1 + 0.02*math.Sin(float64(i)/9)
		p := basePrice * drift * wave
		bars[i] = model.OHLCV{
			Time:   now.Add(-time.Duration(count-i) * step),
			Open:   p * 0.999,
			High:   p * 1.006,
			Low:    p * 0.994,
			Close:  p,
			Volume: 1_000_000 * (1 + 0.3*math.Sin(float64(i)/5)),
		}
	}
	return &model.TimeframeDataset{
		Symbol:    "BTCUSD",
		Timeframe: timeframe,
		Bars:      bars,
		Series:    ComputeSeries(bars),
		FetchedAt: now,
	}
}
