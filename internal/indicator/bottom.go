package indicator

import (
	"fmt"
	"math"
	"time"

	"CycleSentinel/internal/marketdata"
	"CycleSentinel/internal/model"
	"CycleSentinel/internal/timeframe"
)

// BottomRoster returns the full set of bottom-side indicators. now feeds
// the time-weighted scores and defaults to time.Now when nil.
func BottomRoster(cache *timeframe.Cache, metrics marketdata.MetricSource, now func() time.Time) []Indicator {
	if now == nil {
		now = time.Now
	}
	return []Indicator{
		&cvddRelative{cache: cache, metrics: metrics, side: model.SideBottom},
		&timedBottomScore{cache: cache, now: now},
		&volumeBurst2D{cache: cache},
		&cmVixFix{cache: cache},
		&gaussianChannel{cache: cache},
		&mmd3D{cache: cache},
		&hashRibbons{cache: cache},
		&wavefront{cache: cache},
		&superTrendSignal{cache: cache},
		&piCycleLow{cache: cache},
		&puellMultiple{cache: cache},
	}
}

// cvddRelative places the latest close between the CVDD floor and the
// terminal price ceiling. The top side reads the position directly; the
// bottom side reads its complement so a price near the floor scores high.
type cvddRelative struct {
	cache   *timeframe.Cache
	metrics marketdata.MetricSource
	side    model.Side
}

func (c *cvddRelative) Name() string     { return "cvdd_terminal_relative" }
func (c *cvddRelative) Side() model.Side { return c.side }

func (c *cvddRelative) RawValue() (float64, error) {
	ds, err := dataset(c.cache, "1D")
	if err != nil {
		return 0, err
	}
	price, _ := ds.LastClose()

	cvdd, err := c.metrics.Metric(marketdata.MetricCVDD)
	if err != nil {
		return 0, fmt.Errorf("cvdd: %w", err)
	}
	terminal, err := c.metrics.Metric(marketdata.MetricTerminalPrice)
	if err != nil {
		return 0, fmt.Errorf("terminal price: %w", err)
	}
	if terminal <= cvdd {
		return 0, fmt.Errorf("terminal price %.2f <= cvdd %.2f", terminal, cvdd)
	}

	position := (price - cvdd) / (terminal - cvdd)
	if c.side == model.SideBottom {
		return 1 - position, nil
	}
	return position, nil
}

// timedBottomScore blends momentum, volatility, volume, and oversold
// components, then scales by proximity to the twice-daily analysis slots.
type timedBottomScore struct {
	cache *timeframe.Cache
	now   func() time.Time
}

func (t *timedBottomScore) Name() string     { return "m_timed_bottom_score" }
func (t *timedBottomScore) Side() model.Side { return model.SideBottom }

func (t *timedBottomScore) momentumComponent() (float64, bool) {
	m, ok := t.cache.Momentum("1M", 3)
	if !ok {
		return 0, false
	}
	// falling monthly momentum strengthens the bottom case
	score := math.Tanh(-m / 20.0)
	return (score + 1) / 2, true
}

func (t *timedBottomScore) volatilityComponent() (float64, bool) {
	ds, err := dataset(t.cache, "1D")
	if err != nil {
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
	case ratio <= 1.5:
		return ratio / 1.5, true
	case ratio <= 3.0:
		return 1.0, true
	default:
		return math.Max(0.5, 1.0-(ratio-3.0)/5.0), true
	}
}

func (t *timedBottomScore) volumeComponent() (float64, bool) {
	stats, ok := t.cache.VolumeStatistics("1D", 20)
	if !ok {
		return 0, false
	}
	z := stats.ZScore
	switch {
	case z >= 2.0:
		return 1.0, true
	case z >= 1.0:
		return 0.8, true
	case z >= 0:
		return 0.6, true
	default:
		return math.Max(0.2, 0.6+z*0.2), true
	}
}

func (t *timedBottomScore) oversoldComponent() (float64, bool) {
	rsi, ok := t.cache.SeriesValue("1D", "rsi", 0)
	if !ok {
		return 0.5, true
	}
	switch {
	case rsi <= 30:
		return 1.0, true
	case rsi <= 40:
		return 0.8, true
	case rsi <= 50:
		return 0.6, true
	default:
		return math.Max(0.2, (100-rsi)/50), true
	}
}

func (t *timedBottomScore) RawValue() (float64, error) {
	type component struct {
		score  float64
		weight float64
		ok     bool
	}
	var components []component

	m, ok := t.momentumComponent()
	components = append(components, component{m, 0.35, ok})
	v, ok := t.volatilityComponent()
	components = append(components, component{v, 0.25, ok})
	vol, ok := t.volumeComponent()
	components = append(components, component{vol, 0.25, ok})
	o, ok := t.oversoldComponent()
	components = append(components, component{o, 0.15, ok})

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

	return (weightedSum / totalWeight) * scheduleProximity(t.now(), 0.5, 0.5), nil
}

// scheduleProximity weights a score by closeness to the 08:00 and 20:00
// analysis slots, decaying linearly out to six hours away. floor is the
// minimum weight; span is how much the weight can fall from 1.0.
func scheduleProximity(now time.Time, floor, span float64) float64 {
	current := now.Hour()*60 + now.Minute()
	minDistance := math.Inf(1)
	for _, slot := range []int{8 * 60, 20 * 60} {
		d := math.Abs(float64(current - slot))
		if wrapped := 1440 - d; wrapped < d {
			d = wrapped
		}
		if d < minDistance {
			minDistance = d
		}
	}
	const maxDistance = 6 * 60
	return math.Max(floor, 1.0-(minDistance/maxDistance)*span)
}

// volumeBurst2D measures the two-day average volume as a z-score against
// the prior twenty days. Spikes during declines mark capitulation.
type volumeBurst2D struct {
	cache *timeframe.Cache
}

func (v *volumeBurst2D) Name() string     { return "2d_volume_burst" }
func (v *volumeBurst2D) Side() model.Side { return model.SideBottom }

func (v *volumeBurst2D) RawValue() (float64, error) {
	ds, err := dataset(v.cache, "1D")
	if err != nil {
		return 0, err
	}
	volumes := ds.Volumes()
	if len(volumes) < 22 {
		return 0, fmt.Errorf("%w: need 22 volume bars, have %d", ErrUnavailable, len(volumes))
	}

	current2d := marketdata.Mean(volumes[len(volumes)-2:])
	historical := volumes[len(volumes)-22 : len(volumes)-2]

	std := marketdata.SampleStd(historical)
	if std == 0 {
		return 0, nil
	}
	return (current2d - marketdata.Mean(historical)) / std, nil
}

// cmVixFix is the Williams VIX Fix over 22 days, averaged across the last
// three sessions for smoothing. High readings flag capitulation lows.
type cmVixFix struct {
	cache *timeframe.Cache
}

func (c *cmVixFix) Name() string     { return "cm_vix_fix" }
func (c *cmVixFix) Side() model.Side { return model.SideBottom }

func (c *cmVixFix) RawValue() (float64, error) {
	ds, err := dataset(c.cache, "1D")
	if err != nil {
		return 0, err
	}
	const period = 22
	bars := ds.Bars
	if len(bars) < period+3 {
		return 0, fmt.Errorf("%w: need %d daily bars, have %d", ErrUnavailable, period+3, len(bars))
	}
	closes := ds.Closes()

	var values []float64
	for i := 0; i < 3; i++ {
		window := closes[len(closes)-period-i : len(closes)-i]
		highest := window[0]
		for _, v := range window {
			if v > highest {
				highest = v
			}
		}
		low := bars[len(bars)-1-i].Low
		if highest > 0 {
			values = append(values, (highest-low)/highest*100)
		}
	}
	if len(values) == 0 {
		return 0, fmt.Errorf("invalid highest close")
	}
	return marketdata.Mean(values), nil
}

// gaussianChannel reports how far below its Gaussian moving average the
// price sits, in standard deviations. Depth below the channel center is
// returned as a positive magnitude.
type gaussianChannel struct {
	cache *timeframe.Cache
}

func (g *gaussianChannel) Name() string     { return "gaussian_channel" }
func (g *gaussianChannel) Side() model.Side { return model.SideBottom }

func gaussianWeights(period int, sigma float64) []float64 {
	weights := make([]float64, period)
	var sum float64
	loc := float64(period) / 2
	for i := range weights {
		x := (float64(i) - loc) / sigma
		weights[i] = math.Exp(-x * x / 2)
		sum += weights[i]
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights
}

func (g *gaussianChannel) RawValue() (float64, error) {
	ds, err := dataset(g.cache, "1D")
	if err != nil {
		return 0, err
	}
	closes := ds.Closes()
	const period = 20
	if len(closes) < 30 {
		return 0, fmt.Errorf("%w: need 30 daily closes, have %d", ErrUnavailable, len(closes))
	}

	weights := gaussianWeights(period, 2.0)
	window := closes[len(closes)-period:]
	var gma float64
	for i, v := range window {
		gma += v * weights[i]
	}
	std := marketdata.PopulationStd(window)
	if std == 0 {
		return 0, fmt.Errorf("zero channel deviation")
	}

	distance := (closes[len(closes)-1] - gma) / std
	// depth below the channel drives the bottom score upward
	return -distance, nil
}

// mmd3D is a multi-horizon momentum descriptor over the 3-day, daily, and
// weekly timeframes with a volume confirmation factor. Deeply negative
// momentum is a bottom precondition, so the combined value is inverted.
type mmd3D struct {
	cache *timeframe.Cache
}

func (m *mmd3D) Name() string     { return "3d_mmd" }
func (m *mmd3D) Side() model.Side { return model.SideBottom }

func (m *mmd3D) RawValue() (float64, error) {
	primary, err := momentumZ(m.cache, "3D", 10)
	if err != nil {
		return 0, fmt.Errorf("3D momentum: %w", err)
	}
	combined := primary * 0.6

	if daily, err := momentumZ(m.cache, "1D", 14); err == nil {
		combined += daily * 0.3
	}
	if weekly, err := momentumZ(m.cache, "1W", 4); err == nil {
		combined += weekly * 0.1
	}

	if stats, ok := m.cache.VolumeStatistics("3D", 20); ok {
		factor := math.Min(stats.ZScore/2.0, 1.0)
		combined *= 1 + factor*0.2
	}

	return -combined, nil
}

// hashRibbons scores miner capitulation recovery from the 30/60-day MA
// pair: the current ratio, recent crossings, and the ratio's momentum.
type hashRibbons struct {
	cache *timeframe.Cache
}

func (h *hashRibbons) Name() string     { return "hash_ribbons" }
func (h *hashRibbons) Side() model.Side { return model.SideBottom }

func (h *hashRibbons) RawValue() (float64, error) {
	ds, err := dataset(h.cache, "1D")
	if err != nil {
		return 0, err
	}
	closes := ds.Closes()
	if len(closes) < 60 {
		return 0, fmt.Errorf("%w: need 60 daily closes, have %d", ErrUnavailable, len(closes))
	}

	shortMA := marketdata.SMA(closes, 30)
	longMA := marketdata.SMA(closes, 60)
	curShort, okS := last(shortMA)
	curLong, okL := last(longMA)
	if !okS || !okL || curLong == 0 {
		return 0, fmt.Errorf("moving average warmup incomplete")
	}
	ratio := curShort / curLong

	const lookback = 10
	rs := tail(shortMA, lookback)
	rl := tail(longMA, lookback)
	var crossScore float64
	for i := 1; i < len(rs); i++ {
		w := float64(len(rs)-i) / float64(len(rs))
		switch {
		case rs[i-1] <= rl[i-1] && rs[i] > rl[i]:
			crossScore += w * 0.8
		case rs[i-1] >= rl[i-1] && rs[i] < rl[i]:
			crossScore -= w * 0.3
		}
	}

	var momentumScore float64
	if len(shortMA) >= 5 {
		pastShort := shortMA[len(shortMA)-5]
		pastLong := longMA[len(longMA)-5]
		if !math.IsNaN(pastShort) && !math.IsNaN(pastLong) && pastLong != 0 {
			pastRatio := pastShort / pastLong
			if pastRatio != 0 {
				momentumScore = math.Tanh((ratio-pastRatio)/pastRatio*10) * 0.5
			}
		}
	}

	ratioScore := clamp01((ratio - 0.98) / 0.04)
	score := ratioScore*0.4 + (crossScore+0.5)*0.4 + (momentumScore+0.5)*0.2
	return clamp01(score), nil
}

// wavefront averages five oscillators: monthly stochastic RSI, EMA-smoothed
// monthly RSI, the daily MACD histogram, a double-smoothed monthly RSI, and
// the monthly accumulation/distribution trend.
type wavefront struct {
	cache *timeframe.Cache
}

func (w *wavefront) Name() string     { return "w_wavefront" }
func (w *wavefront) Side() model.Side { return model.SideBottom }

func (w *wavefront) monthlyRSI() []float64 {
	ds := w.cache.Get("1M", false)
	if ds == nil {
		return nil
	}
	return dropNaN(ds.Series["rsi"])
}

func (w *wavefront) stochasticRSI() (float64, bool) {
	rsi := w.monthlyRSI()
	const period = 14
	if len(rsi) < period {
		return 0, false
	}
	recent := tail(rsi, period)
	lo, hi := recent[0], recent[0]
	for _, v := range recent {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi == lo {
		return 0.5, true
	}
	return (rsi[len(rsi)-1] - lo) / (hi - lo), true
}

func (w *wavefront) smoothedRSI(spans ...int) (float64, bool) {
	rsi := w.monthlyRSI()
	if len(rsi) < 10 {
		return 0, false
	}
	values := rsi
	for _, span := range spans {
		values = marketdata.EMA(values, span)
	}
	v, ok := last(values)
	if !ok {
		return 0, false
	}
	return v / 100.0, true
}

func (w *wavefront) macdComponent() (float64, bool) {
	ds := w.cache.Get("1D", false)
	if ds == nil {
		return 0, false
	}
	hist := dropNaN(ds.Series["histogram"])
	if len(hist) == 0 {
		return 0, false
	}
	current := hist[len(hist)-1]
	std := marketdata.SampleStd(tail(hist, 20))
	if std == 0 {
		return 0, false
	}
	return (math.Tanh(current/std) + 1) / 2, true
}

func (w *wavefront) accumulationDistribution() (float64, bool) {
	ds := w.cache.Get("1M", false)
	if ds == nil || len(ds.Bars) < 20 {
		return 0, false
	}
	adLine := make([]float64, len(ds.Bars))
	var cum float64
	for i, b := range ds.Bars {
		if b.High != b.Low {
			clv := ((b.Close - b.Low) - (b.High - b.Close)) / (b.High - b.Low)
			cum += clv * b.Volume
		}
		adLine[i] = cum
	}
	if len(adLine) < 10 {
		return 0.5, true
	}
	current := adLine[len(adLine)-1]
	past := adLine[len(adLine)-10]
	var change float64
	if past != 0 {
		change = (current - past) / math.Abs(past)
	}
	return (math.Tanh(change/10.0) + 1) / 2, true
}

func (w *wavefront) RawValue() (float64, error) {
	var sum float64
	var count int
	add := func(v float64, ok bool) {
		if ok {
			sum += v
			count++
		}
	}
	add(w.stochasticRSI())
	add(w.smoothedRSI(9))
	add(w.macdComponent())
	add(w.smoothedRSI(13, 8))
	add(w.accumulationDistribution())

	if count == 0 {
		return 0, fmt.Errorf("%w: no oscillator components", ErrUnavailable)
	}
	return sum / float64(count), nil
}

// superTrendSignal scores trend flips on the daily SuperTrend line plus
// price proximity to it. A fresh bearish-to-bullish flip near the line is
// the strongest configuration.
type superTrendSignal struct {
	cache *timeframe.Cache
}

func (s *superTrendSignal) Name() string     { return "supertrend" }
func (s *superTrendSignal) Side() model.Side { return model.SideBottom }

func (s *superTrendSignal) RawValue() (float64, error) {
	ds, err := dataset(s.cache, "1D")
	if err != nil {
		return 0, err
	}
	line := ds.Series["supertrend"]
	trend := ds.Series["trend"]
	if len(line) < 10 || len(trend) < 5 {
		return 0, fmt.Errorf("%w: supertrend series too short", ErrUnavailable)
	}
	price, ok := ds.LastClose()
	if !ok || price == 0 {
		return 0, fmt.Errorf("no current price")
	}
	current, okLine := last(line)
	currentTrend, okTrend := last(trend)
	if !okLine || !okTrend {
		return 0, fmt.Errorf("supertrend warmup incomplete")
	}

	reca := tail(trend, 5)
	changes := 0
	for i := 1; i < len(reca); i++ {
		if reca[i] != reca[i-1] {
			changes++
		}
	}
	distance := math.Abs(price-current) / price * 100

	var score float64
	switch currentTrend {
	case 1:
		score += 0.4
	case -1:
		score += 0.1
	}
	if changes > 0 {
		if len(reca) >= 2 && reca[len(reca)-1] == 1 && reca[len(reca)-2] == -1 {
			score += 0.35
		} else if changes >= 2 {
			score += 0.20
		}
	}
	switch {
	case distance <= 1.0:
		score += 0.25
	case distance <= 2.0:
		score += 0.20
	case distance <= 5.0:
		score += 0.10
	}
	return score, nil
}

// piCycleLow watches for the 150-day MA times 0.745 crossing above the
// 471-day MA, combined with the lines' positioning and price proximity.
type piCycleLow struct {
	cache *timeframe.Cache
}

func (p *piCycleLow) Name() string     { return "pi_cycle_low" }
func (p *piCycleLow) Side() model.Side { return model.SideBottom }

func (p *piCycleLow) RawValue() (float64, error) {
	ds, err := dataset(p.cache, "1D")
	if err != nil {
		return 0, err
	}
	closes := ds.Closes()

	longPeriod, shortPeriod := 471, 150
	if len(closes) < longPeriod {
		longPeriod = len(closes) - 1
		if shortPeriod > longPeriod/2 {
			shortPeriod = longPeriod / 2
		}
	}
	if longPeriod < 50 {
		return 0, fmt.Errorf("%w: need at least 50 daily closes, have %d", ErrUnavailable, len(closes))
	}

	support := marketdata.SMA(closes, longPeriod)
	shortMA := marketdata.SMA(closes, shortPeriod)
	piLine := make([]float64, len(shortMA))
	for i, v := range shortMA {
		piLine[i] = v * 0.745
	}

	curPi, okP := last(piLine)
	curSupport, okS := last(support)
	if !okP || !okS || curSupport == 0 || curPi == 0 {
		return 0, fmt.Errorf("moving average warmup incomplete")
	}
	price := closes[len(closes)-1]

	crossScore, barsSince := crossoverScore(piLine, support, 20, 0.8)

	ratio := curPi / curSupport
	positionScore := clamp01((ratio - 0.995) / 0.01)

	pricePi := price / curPi
	priceSupport := price / curSupport
	var proximityScore float64
	if ratio > 1.0 {
		switch {
		case pricePi >= 0.95 && pricePi <= 1.05:
			proximityScore = 1.0
		case priceSupport >= 0.9 && priceSupport <= 1.1:
			proximityScore = 0.7
		default:
			proximityScore = math.Max(0, 1-math.Abs(pricePi-1)*2)
		}
	} else {
		proximityScore = 0.3
	}

	score := crossScore*0.4 + positionScore*0.3 + proximityScore*0.3
	if barsSince <= 10 {
		score *= 1.2
	}
	return clamp01(score), nil
}

// puellMultiple proxies daily issuance value with price against its yearly
// mean, applies a volume activity factor, and inverts the multiple so a
// depressed reading scores high.
type puellMultiple struct {
	cache *timeframe.Cache
}

func (p *puellMultiple) Name() string     { return "puell_multiple" }
func (p *puellMultiple) Side() model.Side { return model.SideBottom }

func (p *puellMultiple) RawValue() (float64, error) {
	ds, err := dataset(p.cache, "1D")
	if err != nil {
		return 0, err
	}
	closes := ds.Closes()
	volumes := ds.Volumes()

	maPeriod := 365
	if len(closes) < maPeriod {
		maPeriod = len(closes) - 1
	}
	if maPeriod < 30 {
		return 0, fmt.Errorf("%w: need at least 30 daily closes, have %d", ErrUnavailable, len(closes))
	}

	// issuance value scales linearly with price at a fixed block schedule,
	// so the multiple reduces to price over its trailing mean
	meanPrice := marketdata.Mean(tail(closes, maPeriod))
	if meanPrice == 0 {
		return 0, fmt.Errorf("zero mean price")
	}
	multiple := closes[len(closes)-1] / meanPrice

	avgVolume := marketdata.Mean(tail(volumes, maPeriod))
	volumeFactor := 1.0
	if avgVolume > 0 {
		volumeFactor = volumes[len(volumes)-1] / avgVolume
	}
	adjusted := multiple * (0.9 + 0.1*math.Min(volumeFactor, 2.0))

	// invert so a depressed multiple maps near 1 and an elevated one near 0
	return 1 / (1 + adjusted), nil
}
