package indicator

import (
	"fmt"
	"math"

	"CycleSentinel/internal/marketdata"
	"CycleSentinel/internal/model"
	"CycleSentinel/internal/timeframe"
)

func dataset(c *timeframe.Cache, tf string) (*model.TimeframeDataset, error) {
	ds := c.Get(tf, false)
	if ds == nil || len(ds.Bars) == 0 {
		return nil, fmt.Errorf("%w: no %s dataset", ErrUnavailable, tf)
	}
	return ds, nil
}

func tail(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

func dropNaN(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func last(values []float64) (float64, bool) {
	if len(values) == 0 || math.IsNaN(values[len(values)-1]) {
		return 0, false
	}
	return values[len(values)-1], true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// slope fits a least-squares line through values at x = 0..n-1 and returns
// its gradient. Zero for fewer than two points.
func slope(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	fn := float64(n)
	den := fn*sumXX - sumX*sumX
	if den == 0 {
		return 0
	}
	return (fn*sumXY - sumX*sumY) / den
}

// pctChanges returns bar-over-bar fractional returns, one element shorter
// than the input.
func pctChanges(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (closes[i]-closes[i-1])/closes[i-1])
	}
	return out
}

// momentumZ returns the z-score of the current rate of change against the
// distribution of rates of change over the trailing 2*periods window.
func momentumZ(c *timeframe.Cache, tf string, periods int) (float64, error) {
	ds, err := dataset(c, tf)
	if err != nil {
		return 0, err
	}
	closes := ds.Closes()
	if len(closes) < periods+1 {
		return 0, fmt.Errorf("%w: %s has %d closes, need %d", ErrUnavailable, tf, len(closes), periods+1)
	}

	current := closes[len(closes)-1]
	past := closes[len(closes)-1-periods]
	if past == 0 {
		return 0, fmt.Errorf("zero reference close in %s", tf)
	}
	momentum := (current - past) / past * 100

	recent := tail(closes, periods*2)
	var moms []float64
	for i := periods; i < len(recent); i++ {
		if recent[i-periods] == 0 {
			continue
		}
		moms = append(moms, (recent[i]-recent[i-periods])/recent[i-periods]*100)
	}
	if len(moms) == 0 {
		return 0, nil
	}
	std := marketdata.PopulationStd(moms)
	if std == 0 {
		return 0, nil
	}
	return (momentum - marketdata.Mean(moms)) / std, nil
}

// crossoverScore scans the trailing lookback window of two lines for fast
// crossing above slow, weighting recent crossings higher. Also returns how
// many bars ago the most recent crossing happened; math.Inf(1) when none.
func crossoverScore(fast, slow []float64, lookback int, unit float64) (score, barsSince float64) {
	f := tail(fast, lookback)
	s := tail(slow, lookback)
	n := len(f)
	if len(s) < n {
		n = len(s)
	}
	barsSince = math.Inf(1)
	for i := 1; i < n; i++ {
		if math.IsNaN(f[i-1]) || math.IsNaN(s[i-1]) || math.IsNaN(f[i]) || math.IsNaN(s[i]) {
			continue
		}
		if f[i-1] <= s[i-1] && f[i] > s[i] {
			ago := float64(n - i)
			if ago < barsSince {
				barsSince = ago
			}
			w := (float64(lookback) - ago) / float64(lookback)
			if w < 0 {
				w = 0
			}
			if w*unit > score {
				score = w * unit
			}
		}
	}
	return score, barsSince
}
