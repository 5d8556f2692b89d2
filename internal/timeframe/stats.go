package timeframe

import (
	"math"

	"CycleSentinel/internal/marketdata"
	"CycleSentinel/internal/model"
)

// Read helpers over cached datasets. All return ok=false instead of an
// error when the data is missing, too short, or not yet warmed up.

// SeriesValue extracts a derived-series value, lookback bars from the end.
func (c *Cache) SeriesValue(timeframe, series string, lookback int) (float64, bool) {
	ds := c.Get(timeframe, false)
	if ds == nil {
		return 0, false
	}
	s, ok := ds.Series[series]
	if !ok || len(s) <= lookback {
		return 0, false
	}
	v := s[len(s)-1-lookback]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// BarValue extracts an OHLCV column value, lookback bars from the end.
func (c *Cache) BarValue(timeframe, column string, lookback int) (float64, bool) {
	ds := c.Get(timeframe, false)
	if ds == nil || len(ds.Bars) <= lookback {
		return 0, false
	}
	b := ds.Bars[len(ds.Bars)-1-lookback]
	switch column {
	case "open":
		return b.Open, true
	case "high":
		return b.High, true
	case "low":
		return b.Low, true
	case "close":
		return b.Close, true
	case "volume":
		return b.Volume, true
	}
	return 0, false
}

// PriceStatistics summarizes the last periods closes of a timeframe.
func (c *Cache) PriceStatistics(timeframe string, periods int) (*model.PriceStatistics, bool) {
	ds := c.Get(timeframe, false)
	if ds == nil || len(ds.Bars) == 0 {
		return nil, false
	}
	bars := ds.Bars
	if len(bars) > periods {
		bars = bars[len(bars)-periods:]
	}

	closes := make([]float64, len(bars))
	high := math.Inf(-1)
	low := math.Inf(1)
	for i, b := range bars {
		closes[i] = b.Close
		if b.High > high {
			high = b.High
		}
		if b.Low < low {
			low = b.Low
		}
	}

	current := closes[len(closes)-1]
	changePct := 0.0
	if closes[0] != 0 {
		changePct = (current - closes[0]) / closes[0] * 100
	}
	return &model.PriceStatistics{
		Current:   current,
		Mean:      marketdata.Mean(closes),
		Std:       marketdata.SampleStd(closes),
		High:      high,
		Low:       low,
		ChangePct: changePct,
	}, true
}

// VolumeStatistics summarizes the last periods volumes of a timeframe,
// including the z-score and percentile rank of the newest volume.
func (c *Cache) VolumeStatistics(timeframe string, periods int) (*model.VolumeStatistics, bool) {
	ds := c.Get(timeframe, false)
	if ds == nil || len(ds.Bars) == 0 {
		return nil, false
	}
	volumes := ds.Volumes()
	recent := volumes
	if len(recent) > periods {
		recent = recent[len(recent)-periods:]
	}

	current := volumes[len(volumes)-1]
	mean := marketdata.Mean(recent)
	std := marketdata.SampleStd(recent)

	z := 0.0
	if std > 0 {
		z = (current - mean) / std
	}
	below := 0
	for _, v := range recent {
		if current > v {
			below++
		}
	}
	return &model.VolumeStatistics{
		Current:    current,
		Mean:       mean,
		Std:        std,
		ZScore:     z,
		Percentile: float64(below) / float64(len(recent)) * 100,
	}, true
}

// Momentum returns the percentage rate of change over periods bars.
func (c *Cache) Momentum(timeframe string, periods int) (float64, bool) {
	ds := c.Get(timeframe, false)
	if ds == nil || len(ds.Bars) <= periods {
		return 0, false
	}
	closes := ds.Closes()
	current := closes[len(closes)-1]
	past := closes[len(closes)-1-periods]
	if past == 0 {
		return 0, false
	}
	return (current - past) / past * 100, true
}
