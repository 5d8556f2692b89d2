package marketdata

import (
	"math"

	"CycleSentinel/internal/model"
)

// Derived series computation. Each function returns a slice aligned
// index-for-index with its input; warmup positions hold NaN.

// SMA computes the simple moving average over period.
func SMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA computes the exponential moving average with span-based smoothing.
func EMA(values []float64, span int) []float64 {
	out := nanSlice(len(values))
	if span <= 0 || len(values) == 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// RSI computes the relative strength index using rolling average gains and
// losses over period.
func RSI(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 || len(closes) < period+1 {
		return out
	}
	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}
	avgGain := SMA(gains[1:], period)
	avgLoss := SMA(losses[1:], period)
	for i := period; i < len(closes); i++ {
		g, l := avgGain[i-1], avgLoss[i-1]
		if math.IsNaN(g) || math.IsNaN(l) {
			continue
		}
		if l == 0 {
			out[i] = 100
			continue
		}
		rs := g / l
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// MACD returns the MACD line, signal line, and histogram.
func MACD(closes []float64, fast, slow, signal int) (macd, sig, hist []float64) {
	fastEMA := EMA(closes, fast)
	slowEMA := EMA(closes, slow)
	macd = nanSlice(len(closes))
	for i := range closes {
		macd[i] = fastEMA[i] - slowEMA[i]
	}
	sig = EMA(macd, signal)
	hist = nanSlice(len(closes))
	for i := range closes {
		hist[i] = macd[i] - sig[i]
	}
	return macd, sig, hist
}

// Bollinger returns upper, middle, lower bands and the band width.
func Bollinger(closes []float64, period int, stdDev float64) (upper, middle, lower, width []float64) {
	middle = SMA(closes, period)
	upper = nanSlice(len(closes))
	lower = nanSlice(len(closes))
	width = nanSlice(len(closes))
	for i := period - 1; i < len(closes); i++ {
		sd := PopulationStd(closes[i-period+1 : i+1])
		upper[i] = middle[i] + stdDev*sd
		lower[i] = middle[i] - stdDev*sd
		width[i] = upper[i] - lower[i]
	}
	return upper, middle, lower, width
}

// Stochastic returns %K and its %D smoothing.
func Stochastic(bars []model.OHLCV, kPeriod, dPeriod int) (k, d []float64) {
	k = nanSlice(len(bars))
	for i := kPeriod - 1; i < len(bars); i++ {
		lo := math.Inf(1)
		hi := math.Inf(-1)
		for j := i - kPeriod + 1; j <= i; j++ {
			if bars[j].Low < lo {
				lo = bars[j].Low
			}
			if bars[j].High > hi {
				hi = bars[j].High
			}
		}
		if hi == lo {
			k[i] = 50
			continue
		}
		k[i] = 100 * (bars[i].Close - lo) / (hi - lo)
	}
	d = SMA(k, dPeriod)
	return k, d
}

// ATR computes the average true range over period.
func ATR(bars []model.OHLCV, period int) []float64 {
	tr := nanSlice(len(bars))
	for i, b := range bars {
		if i == 0 {
			tr[i] = b.High - b.Low
			continue
		}
		prevClose := bars[i-1].Close
		tr[i] = math.Max(b.High-b.Low, math.Max(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
	}
	return SMA(tr, period)
}

// SuperTrend returns the supertrend line and the trend direction series
// (+1 bullish, -1 bearish).
func SuperTrend(bars []model.OHLCV, period int, multiplier float64) (line, trend []float64) {
	line = nanSlice(len(bars))
	trend = nanSlice(len(bars))
	if len(bars) < period+1 {
		return line, trend
	}
	atr := ATR(bars, period)
	upperBand := nanSlice(len(bars))
	lowerBand := nanSlice(len(bars))
	for i, b := range bars {
		hl2 := (b.High + b.Low) / 2
		upperBand[i] = hl2 + multiplier*atr[i]
		lowerBand[i] = hl2 - multiplier*atr[i]
	}
	for i := 1; i < len(bars); i++ {
		if math.IsNaN(upperBand[i-1]) {
			continue
		}
		switch {
		case bars[i].Close <= lowerBand[i-1]:
			line[i] = upperBand[i]
			trend[i] = -1
		case bars[i].Close >= upperBand[i-1]:
			line[i] = lowerBand[i]
			trend[i] = 1
		default:
			line[i] = line[i-1]
			trend[i] = trend[i-1]
		}
	}
	return line, trend
}

// ComputeSeries builds the full derived-series map the indicator roster
// consumes from a bar sequence.
func ComputeSeries(bars []model.OHLCV) map[string][]float64 {
	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	series := make(map[string][]float64)
	series["rsi"] = RSI(closes, 14)

	macd, sig, hist := MACD(closes, 12, 26, 9)
	series["macd"] = macd
	series["signal"] = sig
	series["histogram"] = hist

	k, d := Stochastic(bars, 14, 3)
	series["k_percent"] = k
	series["d_percent"] = d

	upper, middle, lower, width := Bollinger(closes, 20, 2)
	series["upper"] = upper
	series["middle"] = middle
	series["lower"] = lower
	series["width"] = width

	st, trend := SuperTrend(bars, 10, 3.0)
	series["supertrend"] = st
	series["trend"] = trend

	volSMA := SMA(volumes, 20)
	series["volume_sma"] = volSMA
	ratio := nanSlice(len(bars))
	for i := range bars {
		if !math.IsNaN(volSMA[i]) && volSMA[i] != 0 {
			ratio[i] = volumes[i] / volSMA[i]
		}
	}
	series["volume_ratio"] = ratio

	return series
}

// Mean returns the arithmetic mean. Zero for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// SampleStd returns the sample standard deviation (divide by n-1).
func SampleStd(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := Mean(values)
	sum := 0.0
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

// PopulationStd returns the population standard deviation (divide by n).
func PopulationStd(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := Mean(values)
	sum := 0.0
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(values)))
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
