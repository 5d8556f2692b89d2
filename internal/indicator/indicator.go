package indicator

import (
	"errors"
	"fmt"
	"log"
	"time"

	"CycleSentinel/internal/config"
	"CycleSentinel/internal/model"
)

// Indicator computes one raw signal value from cached market data. Raw
// values are unbounded; Evaluate rescales them against the configured
// bounds. Implementations must not mutate the datasets they read.
type Indicator interface {
	Name() string
	Side() model.Side
	RawValue() (float64, error)
}

// ErrUnavailable marks a failure caused by missing input data rather than
// a calculation error. Scraper-fed metrics and cold caches return it.
var ErrUnavailable = errors.New("required data unavailable")

// Evaluate runs a single indicator and packages the outcome. A failure of
// any kind, including a panic inside RawValue, produces a result with nil
// scores and a populated Error instead of propagating. Weight and bounds
// are attached even on failure so the entry stays visible in the composite.
func Evaluate(ind Indicator, tables *config.Tables, ts time.Time) (res model.IndicatorResult) {
	res = model.IndicatorResult{
		Name:      ind.Name(),
		Side:      ind.Side(),
		Timestamp: ts,
	}

	spec, ok := tables.Lookup(ind.Side(), ind.Name())
	if !ok {
		res.Error = "indicator not configured"
		log.Printf("[WARN] %s/%s: not configured", ind.Side(), ind.Name())
		return res
	}
	res.Weight = spec.Weight
	res.Bounds = model.Bounds{Lower: spec.Lower, Upper: spec.Upper}

	defer func() {
		if r := recover(); r != nil {
			res.RawValue = nil
			res.NormalizedScore = nil
			res.Error = fmt.Sprintf("panic: %v", r)
			log.Printf("[ERROR] %s/%s: panic: %v", ind.Side(), ind.Name(), r)
		}
	}()

	raw, err := ind.RawValue()
	if err != nil {
		res.Error = err.Error()
		log.Printf("[WARN] %s/%s: %v", ind.Side(), ind.Name(), err)
		return res
	}

	score, ok := config.Normalize(raw, res.Bounds)
	if !ok {
		res.Error = fmt.Sprintf("degenerate bounds [%g, %g]", spec.Lower, spec.Upper)
		log.Printf("[WARN] %s/%s: %s", ind.Side(), ind.Name(), res.Error)
		return res
	}

	res.RawValue = model.Float(raw)
	res.NormalizedScore = model.Float(score)
	return res
}
