package indicator

import (
	"fmt"
	"math"
	"time"

	"CycleSentinel/internal/marketdata"
	"CycleSentinel/internal/model"
	"CycleSentinel/internal/timeframe"
)

// TopRoster returns the full set of top-side indicators.
func TopRoster(cache *timeframe.Cache, metrics marketdata.MetricSource, now func() time.Time) []Indicator {
	if now == nil {
		now = time.Now
	}
	return []Indicator{
		&cvddRelative{cache: cache, metrics: metrics, side: model.SideTop},
		&nupl{metrics: metrics},
		&transactionCost{metrics: metrics},
		&fundingRates{metrics: metrics},
		&bbwp{cache: cache},
		&wavetrendOscillator{cache: cache},
		&volume3D{cache: cache},
		&mmdTop{cache: cache},
		&piCycleTop{cache: cache},
		&timedTopScore{cache: cache, now: now},
	}
}

// nupl reports net unrealized profit/loss in percent. Elevated readings
// mark widespread paper profit, a euphoria precondition.
type nupl struct {
	metrics marketdata.MetricSource
}

func (n *nupl) Name() string     { return "nupl" }
func (n *nupl) Side() model.Side { return model.SideTop }

func (n *nupl) RawValue() (float64, error) {
	v, err := n.metrics.Metric(marketdata.MetricNUPL)
	if err != nil {
		return 0, fmt.Errorf("nupl: %w", err)
	}
	return v, nil
}

// transactionCost reports the average on-chain transaction fee in USD.
// Fee spikes accompany blow-off phases.
type transactionCost struct {
	metrics marketdata.MetricSource
}

func (t *transactionCost) Name() string     { return "transaction_cost" }
func (t *transactionCost) Side() model.Side { return model.SideTop }

func (t *transactionCost) RawValue() (float64, error) {
	v, err := t.metrics.Metric(marketdata.MetricAvgTxFee)
	if err != nil {
		return 0, fmt.Errorf("transaction fee: %w", err)
	}
	return v, nil
}

// fundingRates reports the cross-exchange perpetual funding rate in basis
// points. Persistently positive funding marks a crowded long side.
type fundingRates struct {
	metrics marketdata.MetricSource
}

func (f *fundingRates) Name() string     { return "funding_rates" }
func (f *fundingRates) Side() model.Side { return model.SideTop }

func (f *fundingRates) RawValue() (float64, error) {
	v, err := f.metrics.Metric(marketdata.MetricFundingRate)
	if err != nil {
		return 0, fmt.Errorf("funding rate: %w", err)
	}
	return v, nil
}

// bbwp is the Bollinger Band Width Percentile: the share of trailing band
// widths below the current one, adjusted for trend direction.
type bbwp struct {
	cache *timeframe.Cache
}

func (b *bbwp) Name() string     { return "bbwp" }
func (b *bbwp) Side() model.Side { return model.SideTop }

func (b *bbwp) RawValue() (float64, error) {
	ds, err := dataset(b.cache, "1D")
	if err != nil {
		return 0, err
	}
	widths := dropNaN(ds.Series["width"])
	if len(widths) < 20 {
		return 0, fmt.Errorf("%w: band width history too short", ErrUnavailable)
	}

	lookback := 100
	if len(widths) < lookback {
		lookback = len(widths) - 1
		if lookback < 20 {
			lookback = 20
		}
	}

	current := widths[len(widths)-1]
	historical := tail(widths, lookback)
	below := 0
	for _, w := range historical {
		if w < current {
			below++
		}
	}
	percentile := float64(below) / float64(len(historical)) * 100

	closes := ds.Closes()
	if len(closes) >= 20 {
		sma20, ok := last(marketdata.SMA(closes, 20))
		if ok {
			uptrend := closes[len(closes)-1] > sma20
			if uptrend && percentile > 80 {
				percentile = math.Min(100, percentile*1.2)
			} else if !uptrend && percentile > 80 {
				percentile *= 0.8
			}
		}
	}
	return percentile, nil
}

// wavetrendOscillator is the channel-index oscillator over daily closes,
// boosted when price and oscillator trends diverge bearishly.
type wavetrendOscillator struct {
	cache *timeframe.Cache
}

func (w *wavetrendOscillator) Name() string     { return "wavetrend_oscillator" }
func (w *wavetrendOscillator) Side() model.Side { return model.SideTop }

func wavetrend(closes []float64, channelLength, averageLength int) []float64 {
	esa := marketdata.EMA(closes, channelLength)
	d := make([]float64, len(closes))
	for i := range closes {
		d[i] = math.Abs(closes[i] - esa[i])
	}
	dEMA := marketdata.EMA(d, channelLength)
	ci := make([]float64, len(closes))
	for i := range closes {
		den := 0.015 * dEMA[i]
		if den == 0 || math.IsNaN(den) || math.IsInf(den, 0) {
			ci[i] = 0
			continue
		}
		ci[i] = (closes[i] - esa[i]) / den
		if math.IsNaN(ci[i]) || math.IsInf(ci[i], 0) {
			ci[i] = 0
		}
	}
	return marketdata.EMA(ci, averageLength)
}

func (w *wavetrendOscillator) RawValue() (float64, error) {
	ds, err := dataset(w.cache, "1D")
	if err != nil {
		return 0, err
	}
	closes := ds.Closes()
	if len(closes) < 50 {
		return 0, fmt.Errorf("%w: need 50 daily closes, have %d", ErrUnavailable, len(closes))
	}

	wt := wavetrend(closes, 10, 21)
	current, ok := last(wt)
	if !ok {
		return 0, fmt.Errorf("wavetrend calculation failed")
	}

	recentWT := tail(wt, 10)
	recentPrices := tail(closes, 10)
	if len(recentWT) >= 5 && slope(recentPrices) > 0 && slope(recentWT) < 0 {
		// bearish divergence: price rising while the oscillator rolls over
		current *= 1.2
	}
	return current, nil
}

// volume3D looks for distribution volume across the 3-day, daily, and
// weekly horizons: high volume z-scores while price rises.
type volume3D struct {
	cache *timeframe.Cache
}

func (v *volume3D) Name() string     { return "3d_volume" }
func (v *volume3D) Side() model.Side { return model.SideTop }

func (v *volume3D) timeframeScore(tf string) (float64, bool) {
	ds := v.cache.Get(tf, false)
	if ds == nil || len(ds.Bars) < 20 {
		return 0, false
	}
	volumes := ds.Volumes()
	recent := tail(volumes, 20)
	std := marketdata.SampleStd(recent)
	if std == 0 {
		return 0, false
	}
	z := (volumes[len(volumes)-1] - marketdata.Mean(recent)) / std

	closes := ds.Closes()
	if len(closes) < 10 {
		return math.Max(0, z/2.0), true
	}
	past := closes[len(closes)-10]
	if past == 0 {
		return math.Max(0, z/2.0), true
	}
	priceChange := (closes[len(closes)-1] - past) / past

	switch {
	case priceChange > 0 && z > 1.5:
		return math.Min(z/2.0, 4.0), true
	case priceChange > 0 && z > 0.5:
		return z, true
	case priceChange < 0 && z > 2.0:
		return math.Min(z/1.5, 3.0), true
	default:
		return math.Max(0, z/2.0), true
	}
}

func (v *volume3D) RawValue() (float64, error) {
	var scores []float64
	for _, tf := range []string{"3D", "1D", "1W"} {
		if s, ok := v.timeframeScore(tf); ok {
			scores = append(scores, s)
		}
	}
	if len(scores) == 0 {
		return 0, fmt.Errorf("%w: no volume history", ErrUnavailable)
	}

	var weighted float64
	switch len(scores) {
	case 3:
		weighted = scores[0]*0.5 + scores[1]*0.3 + scores[2]*0.2
	case 2:
		weighted = scores[0]*0.7 + scores[1]*0.3
	default:
		weighted = scores[0]
	}

	if stats, ok := v.cache.VolumeStatistics("1D", 30); ok {
		if stats.Percentile > 80 {
			weighted *= 1.3
		} else if stats.Percentile > 60 {
			weighted *= 1.1
		}
	}
	return math.Min(weighted, 4.0), nil
}

// mmdTop is the top-side momentum descriptor: weighted momentum breadth
// across daily, weekly, and monthly horizons, mapped so deteriorating
// momentum produces a high reading.
type mmdTop struct {
	cache *timeframe.Cache
}

func (m *mmdTop) Name() string     { return "mmd" }
func (m *mmdTop) Side() model.Side { return model.SideTop }

func (m *mmdTop) momentumBreadth(tf string, periods int) (float64, bool) {
	ds := m.cache.Get(tf, false)
	if ds == nil {
		return 0, false
	}
	closes := ds.Closes()
	volumes := ds.Volumes()
	if len(closes) < periods+5 {
		return 0, false
	}

	past := closes[len(closes)-1-periods]
	if past == 0 {
		return 0, false
	}
	priceMomentum := (closes[len(closes)-1] - past) / past * 100

	avgVolume := marketdata.Mean(tail(volumes, periods))
	var volumeMomentum float64
	if avgVolume > 0 {
		volumeMomentum = (volumes[len(volumes)-1]/avgVolume - 1) * 100
	}

	changes := tail(pctChanges(closes), periods)
	var positive, negative float64
	for _, c := range changes {
		if c > 0 {
			positive += c
		} else {
			negative += -c
		}
	}
	strength := 100.0
	if negative != 0 {
		rs := positive / negative
		strength = 100 - 100/(1+rs)
	}

	return priceMomentum*0.5 + volumeMomentum*0.2 + (strength-50)*0.3, true
}

func (m *mmdTop) RawValue() (float64, error) {
	horizons := []struct {
		tf      string
		periods int
	}{{"1D", 14}, {"1W", 8}, {"1M", 4}}

	var values []float64
	for _, h := range horizons {
		if v, ok := m.momentumBreadth(h.tf, h.periods); ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return 0, fmt.Errorf("%w: no momentum history", ErrUnavailable)
	}

	var weighted float64
	switch len(values) {
	case 3:
		weighted = values[0]*0.6 + values[1]*0.3 + values[2]*0.1
	case 2:
		weighted = values[0]*0.7 + values[1]*0.3
	default:
		weighted = values[0]
	}

	if ds := m.cache.Get("1D", false); ds != nil {
		closes := ds.Closes()
		if len(closes) >= 20 {
			priceTrend := slope(tail(closes, 10))
			if priceTrend > 0 && weighted < -5 {
				weighted *= 1.3
			} else if priceTrend > 0 && weighted > 20 {
				weighted *= 0.8
			}
		}
	}

	// weak or negative momentum raises top risk
	var score float64
	switch {
	case weighted > 20:
		score = 0.5
	case weighted > 0:
		score = 1.0 + (20-weighted)/40
	case weighted > -20:
		score = 2.0 + math.Abs(weighted)/20
	default:
		score = 4.0
	}
	return math.Min(score, 5.0), nil
}

// piCycleTop watches for the 111-day MA crossing above twice the 350-day
// MA, the classic cycle-top crossing, with positioning and price
// confirmation components.
type piCycleTop struct {
	cache *timeframe.Cache
}

func (p *piCycleTop) Name() string     { return "pi_cycle" }
func (p *piCycleTop) Side() model.Side { return model.SideTop }

func (p *piCycleTop) RawValue() (float64, error) {
	ds, err := dataset(p.cache, "1D")
	if err != nil {
		return 0, err
	}
	closes := ds.Closes()

	shortPeriod, longPeriod := 111, 350
	if len(closes) < longPeriod {
		longPeriod = len(closes) - 1
		if shortPeriod > longPeriod/2 {
			shortPeriod = longPeriod / 2
		}
	}
	if longPeriod < 100 {
		return 0, fmt.Errorf("%w: need at least 100 daily closes, have %d", ErrUnavailable, len(closes))
	}

	signal := marketdata.SMA(closes, shortPeriod)
	longMA := marketdata.SMA(closes, longPeriod)
	resistance := make([]float64, len(longMA))
	for i, v := range longMA {
		resistance[i] = v * 2.0
	}

	curSignal, okS := last(signal)
	curResistance, okR := last(resistance)
	if !okS || !okR || curResistance == 0 || curSignal == 0 {
		return 0, fmt.Errorf("moving average warmup incomplete")
	}
	price := closes[len(closes)-1]

	crossScore, barsSince := crossoverScore(signal, resistance, 30, 1.0)

	ratio := curSignal / curResistance
	var positionScore float64
	switch {
	case ratio >= 1.0:
		positionScore = 1.0
	case ratio >= 0.98:
		positionScore = 0.8
	case ratio >= 0.95:
		positionScore = 0.6
	default:
		positionScore = math.Max(0, (ratio-0.90)/0.05)
	}

	var confirmationScore float64
	if ratio >= 1.0 {
		if price/curSignal >= 1.0 {
			confirmationScore = 1.0
		} else {
			confirmationScore = 0.7
		}
	} else {
		confirmationScore = 0.3
	}

	score := crossScore*0.6 + positionScore*0.25 + confirmationScore*0.15
	if barsSince <= 5 {
		score *= 1.5
	}
	return clamp01(score), nil
}

// timedTopScore blends distribution, momentum exhaustion, sentiment, and
// volatility expansion components, scaled by schedule proximity.
type timedTopScore struct {
	cache *timeframe.Cache
	now   func() time.Time
}

func (t *timedTopScore) Name() string     { return "m_timed_top_score" }
func (t *timedTopScore) Side() model.Side { return model.SideTop }

func (t *timedTopScore) distributionComponent() (float64, bool) {
	ds := t.cache.Get("1M", false)
	if ds == nil || len(ds.Bars) < 10 {
		return 0, false
	}
	const recentPeriods = 6
	priceTrend := slope(tail(ds.Closes(), recentPeriods))
	volumeTrend := slope(tail(ds.Volumes(), recentPeriods))

	// rising price on falling volume is the distribution fingerprint
	switch {
	case priceTrend > 0 && volumeTrend < 0:
		return 0.9, true
	case priceTrend > 0 && volumeTrend > 0:
		return 0.4, true
	case priceTrend < 0 && volumeTrend > 0:
		return 0.7, true
	default:
		return 0.5, true
	}
}

func (t *timedTopScore) exhaustionComponent() (float64, bool) {
	var scores []float64

	if daily, ok := t.cache.Momentum("1D", 14); ok {
		switch {
		case daily < -10:
			scores = append(scores, 0.8)
		case daily < 5:
			scores = append(scores, 0.6)
		case daily < 15:
			scores = append(scores, 0.4)
		default:
			scores = append(scores, 0.2)
		}
	}
	if weekly, ok := t.cache.Momentum("1W", 4); ok {
		switch {
		case weekly < -5:
			scores = append(scores, 0.9)
		case weekly < 10:
			scores = append(scores, 0.6)
		default:
			scores = append(scores, 0.3)
		}
	}

	if len(scores) == 0 {
		return 0, false
	}
	return marketdata.Mean(scores), true
}

func (t *timedTopScore) sentimentComponent() (float64, bool) {
	rsi, ok := t.cache.SeriesValue("1D", "rsi", 0)
	if !ok {
		return 0.5, true
	}
	switch {
	case rsi >= 80:
		return 1.0, true
	case rsi >= 70:
		return 0.8, true
	case rsi >= 60:
		return 0.6, true
	case rsi >= 50:
		return 0.4, true
	default:
		return 0.2, true
	}
}

func (t *timedTopScore) volatilityComponent() (float64, bool) {
	ds := t.cache.Get("1D", false)
	if ds == nil {
		return 0, false
	}
	closes := ds.Closes()
	if len(closes) < 31 {
		return 0, false
	}
	returns := pctChanges(closes)
	recent := marketdata.SampleStd(tail(returns, 10))
	historical := marketdata.SampleStd(tail(returns, 30))
	if historical == 0 {
		return 0.5, true
	}

	ratio := recent / historical
	switch {
	case ratio >= 2.0:
		return 0.8, true
	case ratio >= 1.5:
		return 0.6, true
	case ratio >= 1.2:
		return 0.5, true
	default:
		return 0.3, true
	}
}

func (t *timedTopScore) RawValue() (float64, error) {
	type component struct {
		score  float64
		weight float64
		ok     bool
	}
	var components []component

	d, ok := t.distributionComponent()
	components = append(components, component{d, 0.30, ok})
	e, ok := t.exhaustionComponent()
	components = append(components, component{e, 0.30, ok})
	s, ok := t.sentimentComponent()
	components = append(components, component{s, 0.25, ok})
	v, ok := t.volatilityComponent()
	components = append(components, component{v, 0.15, ok})

	var weightedSum, totalWeight float64
	for _, c := range components {
		if c.ok {
			weightedSum += c.score * c.weight
			totalWeight += c.weight
		}
	}
	if totalWeight == 0 {
		return 0, fmt.Errorf("%w: no score components", ErrUnavailable)
	}

	return (weightedSum / totalWeight) * scheduleProximity(t.now(), 0.7, 0.3), nil
}
