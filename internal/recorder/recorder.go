package recorder

import (
	"time"

	"CycleSentinel/internal/model"
)

// CalculationRow is one persisted composite calculation.
type CalculationRow struct {
	ID             int64
	RunID          string
	Timestamp      time.Time
	Side           model.Side
	CompositeScore *float64
	SuccessRate    float64
	DurationSec    float64
	Strength       string
}

// IndicatorRow is one persisted indicator result.
type IndicatorRow struct {
	ID              int64
	CalculationID   int64
	Name            string
	Side            model.Side
	RawValue        *float64
	NormalizedScore *float64
	Weight          float64
	Timestamp       time.Time
	Error           string
}

// Stats summarizes the persistence store.
type Stats struct {
	Calculations     int64
	IndicatorResults int64
	RunsLast24h      int64
	SizeBytes        int64
}

// Recorder persists analysis runs for later inspection.
type Recorder interface {
	RecordRun(run *model.RunResult) error
	RecentCalculations(hours int, side model.Side) ([]CalculationRow, error)
	IndicatorHistory(name string, days int) ([]IndicatorRow, error)
	Cleanup(retentionDays int) (int64, error)
	Stats() (*Stats, error)
	Close() error
}
