package composer

import (
	"fmt"
	"log"
	"time"

	"CycleSentinel/internal/config"
	"CycleSentinel/internal/indicator"
	"CycleSentinel/internal/marketdata"
	"CycleSentinel/internal/model"
)

// Composer evaluates one side's roster and folds the results into a
// weighted composite with statistics, interpretation, and data quality.
type Composer struct {
	side     model.Side
	roster   []indicator.Indicator
	tables   *config.Tables
	dataTime func() time.Time
	now      func() time.Time
}

// New wires a composer over one side's roster. dataTime reports the freshest
// fetch time of the market data the roster reads; indicator results are
// stamped with it so a score computed from stale-served data carries the
// data's age rather than the wall clock. Nil or a zero report falls back to
// the wall clock.
func New(side model.Side, roster []indicator.Indicator, tables *config.Tables, dataTime func() time.Time) *Composer {
	if dataTime == nil {
		dataTime = func() time.Time { return time.Time{} }
	}
	return &Composer{side: side, roster: roster, tables: tables, dataTime: dataTime, now: time.Now}
}

// CompleteAnalysis evaluates every indicator in the roster and returns the
// composite. It never panics: individual indicator failures are carried as
// failed entries, and an unexpected failure of the composition itself
// degrades to a result holding only the side, error, and timestamp.
func (c *Composer) CompleteAnalysis() (res *model.CompositeResult) {
	now := c.now()
	ts := c.dataTime()
	if ts.IsZero() {
		ts = now
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ERROR] %s analysis: panic: %v", c.side, r)
			res = &model.CompositeResult{
				Side:      c.side,
				Error:     fmt.Sprintf("panic: %v", r),
				Timestamp: now,
			}
		}
	}()

	log.Printf("[INFO] starting %s analysis (%d indicators)", c.side, len(c.roster))

	results := make([]model.IndicatorResult, 0, len(c.roster))
	for _, ind := range c.roster {
		r := indicator.Evaluate(ind, c.tables, ts)
		if r.Valid() {
			log.Printf("[INFO] %s: %.4f (weight %.2f)", r.Name, *r.NormalizedScore, r.Weight)
		} else {
			log.Printf("[WARN] %s: failed: %s", r.Name, r.Error)
		}
		results = append(results, r)
	}

	res = c.compose(results, now)
	if res.CompositeScore != nil {
		log.Printf("[INFO] %s analysis complete: %.4f (%s)", c.side, *res.CompositeScore, res.Interpretation.Strength)
	} else {
		log.Printf("[ERROR] %s analysis produced no composite score", c.side)
	}
	return res
}

func (c *Composer) compose(results []model.IndicatorResult, ts time.Time) *model.CompositeResult {
	out := &model.CompositeResult{
		Side:      c.side,
		Results:   results,
		Timestamp: ts,
	}

	var weightedSum, totalWeight float64
	var validScores []float64
	for _, r := range results {
		if r.Valid() {
			weightedSum += *r.NormalizedScore * r.Weight
			totalWeight += r.Weight
			validScores = append(validScores, *r.NormalizedScore)
		} else {
			out.FailedIndicators = append(out.FailedIndicators, r.Name)
		}
	}
	out.ValidCount = len(validScores)
	out.TotalWeight = totalWeight
	out.Quality = quality(len(results), len(validScores))

	if totalWeight == 0 {
		out.Error = "no valid indicators"
		return out
	}

	score := weightedSum / totalWeight
	out.CompositeScore = model.Float(score)
	out.Stats = scoreStatistics(validScores)
	out.Interpretation = Interpret(c.side, score)
	return out
}

func quality(total, successful int) model.DataQuality {
	q := model.DataQuality{
		TotalIndicators: total,
		Successful:      successful,
		Failed:          total - successful,
	}
	if total > 0 {
		q.SuccessRate = float64(successful) / float64(total) * 100
	}
	return q
}

func scoreStatistics(scores []float64) *model.ScoreStatistics {
	if len(scores) == 0 {
		return nil
	}
	stats := &model.ScoreStatistics{
		Mean: marketdata.Mean(scores),
		Min:  scores[0],
		Max:  scores[0],
	}
	for _, s := range scores {
		if s < stats.Min {
			stats.Min = s
		}
		if s > stats.Max {
			stats.Max = s
		}
	}
	if len(scores) > 1 {
		stats.Std = marketdata.PopulationStd(scores)
	}
	return stats
}
