package model

import "time"

// Side identifies which cycle extreme a roster or score targets.
type Side string

const (
	SideBottom Side = "bottom"
	SideTop    Side = "top"
)

// Bounds is the normalization range configured per indicator.
type Bounds struct {
	Lower float64 `json:"lower" yaml:"lower"`
	Upper float64 `json:"upper" yaml:"upper"`
}

// Degenerate reports whether the bounds cannot normalize anything.
func (b Bounds) Degenerate() bool { return b.Upper == b.Lower }

// IndicatorResult is the outcome of one indicator evaluation. RawValue and
// NormalizedScore are nil when the indicator could not produce a value;
// Weight and Bounds are always populated so a failure stays a named entry in
// the composite rather than silently dropping out.
type IndicatorResult struct {
	Name            string    `json:"name"`
	Side            Side      `json:"side"`
	RawValue        *float64  `json:"raw_value"`
	NormalizedScore *float64  `json:"normalized_score"`
	Weight          float64   `json:"weight"`
	Bounds          Bounds    `json:"bounds"`
	Timestamp       time.Time `json:"timestamp"`
	Error           string    `json:"error,omitempty"`
}

// Valid reports whether the result carries a usable normalized score.
func (r *IndicatorResult) Valid() bool { return r.NormalizedScore != nil }

// ScoreStatistics are descriptive statistics over the valid normalized
// scores of one composite. Std is the population standard deviation and is
// zero when fewer than two valid scores exist.
type ScoreStatistics struct {
	Mean float64 `json:"mean"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Std  float64 `json:"std"`
}

// Interpretation maps a composite score into a human-readable band.
type Interpretation struct {
	Strength    string  `json:"strength"`
	Description string  `json:"description"`
	Color       string  `json:"color"`
	Score       float64 `json:"score"`
	Percentage  float64 `json:"percentage"`
}

// DataQuality reports how much of the roster produced usable scores.
type DataQuality struct {
	TotalIndicators int     `json:"total_indicators"`
	Successful      int     `json:"successful_calculations"`
	Failed          int     `json:"failed_calculations"`
	SuccessRate     float64 `json:"success_rate"`
}

// CompositeResult is one side's full analysis for one run. It is created
// fresh per run and never updated afterwards.
type CompositeResult struct {
	Side             Side              `json:"side"`
	CompositeScore   *float64          `json:"composite_score"`
	TotalWeight      float64           `json:"total_weight"`
	Results          []IndicatorResult `json:"indicators"`
	FailedIndicators []string          `json:"failed_indicators"`
	ValidCount       int               `json:"valid_indicators"`
	Stats            *ScoreStatistics  `json:"score_statistics,omitempty"`
	Interpretation   *Interpretation   `json:"interpretation,omitempty"`
	Quality          DataQuality       `json:"data_quality"`
	Timestamp        time.Time         `json:"timestamp"`
	Error            string            `json:"error,omitempty"`
}

// RunResult packages both composites plus market context for persistence
// and export.
type RunResult struct {
	RunID         string                     `json:"run_id"`
	Bottom        *CompositeResult           `json:"bottom_analysis,omitempty"`
	Top           *CompositeResult           `json:"top_analysis,omitempty"`
	Context       *MarketContext             `json:"market_context,omitempty"`
	CacheStatus   map[string]TimeframeStatus `json:"cache_status,omitempty"`
	DataRefreshed bool                       `json:"data_refreshed"`
	StartTime     time.Time                  `json:"start_time"`
	EndTime       time.Time                  `json:"end_time"`
	Duration      time.Duration              `json:"duration"`
	Error         string                     `json:"error,omitempty"`
}

// Float returns a pointer to v. Helper for the optional score fields.
func Float(v float64) *float64 { return &v }
