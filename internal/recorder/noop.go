package recorder

import "CycleSentinel/internal/model"

// NoopRecorder is a no-op implementation used when persistence is not
// configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRun(_ *model.RunResult) error { return nil }
func (n *NoopRecorder) RecentCalculations(_ int, _ model.Side) ([]CalculationRow, error) {
	return nil, nil
}
func (n *NoopRecorder) IndicatorHistory(_ string, _ int) ([]IndicatorRow, error) { return nil, nil }
func (n *NoopRecorder) Cleanup(_ int) (int64, error)                             { return 0, nil }
func (n *NoopRecorder) Stats() (*Stats, error)                                   { return &Stats{}, nil }
func (n *NoopRecorder) Close() error                                             { return nil }
