package composer

import (
	"errors"
	"math"
	"testing"
	"time"

	"CycleSentinel/internal/config"
	"CycleSentinel/internal/indicator"
	"CycleSentinel/internal/model"
)

type stubIndicator struct {
	name   string
	side   model.Side
	value  float64
	err    error
	panics bool
}

func (s *stubIndicator) Name() string     { return s.name }
func (s *stubIndicator) Side() model.Side { return s.side }

func (s *stubIndicator) RawValue() (float64, error) {
	if s.panics {
		panic("formula blew up")
	}
	return s.value, s.err
}

func unitTables(weights map[string]float64) *config.Tables {
	entries := make(map[string]config.Spec, len(weights))
	for name, w := range weights {
		entries[name] = config.Spec{Lower: 0, Upper: 1, Weight: w}
	}
	return &config.Tables{Bottom: entries, Top: entries}
}

func TestCompleteAnalysis_WeightedComposite(t *testing.T) {
	roster := []*stubIndicator{
		{name: "a", side: model.SideBottom, value: 0.2},
		{name: "b", side: model.SideBottom, value: 0.6},
		{name: "c", side: model.SideBottom, value: 0.9},
	}
	tables := unitTables(map[string]float64{"a": 1, "b": 2, "c": 3})

	c := New(model.SideBottom, indicators(roster), tables, nil)
	res := c.CompleteAnalysis()

	if res.CompositeScore == nil {
		t.Fatal("expected composite score")
	}
	want := (0.2*1 + 0.6*2 + 0.9*3) / 6
	if math.Abs(*res.CompositeScore-want) > 1e-9 {
		t.Errorf("composite = %.6f, want %.6f", *res.CompositeScore, want)
	}
	if res.TotalWeight != 6 {
		t.Errorf("total weight = %g, want 6", res.TotalWeight)
	}
	if res.ValidCount != 3 || len(res.FailedIndicators) != 0 {
		t.Errorf("valid=%d failed=%v", res.ValidCount, res.FailedIndicators)
	}
}

func TestCompleteAnalysis_Scenario(t *testing.T) {
	roster := []*stubIndicator{
		{name: "a", side: model.SideBottom, value: 0.9},
		{name: "b", side: model.SideBottom, err: errors.New("source offline")},
		{name: "c", side: model.SideBottom, value: 0.5},
	}
	tables := unitTables(map[string]float64{"a": 10, "b": 3, "c": 5})

	res := New(model.SideBottom, indicators(roster), tables, nil).CompleteAnalysis()

	if res.CompositeScore == nil {
		t.Fatal("expected composite score")
	}
	want := (0.9*10 + 0.5*5) / 15
	if math.Abs(*res.CompositeScore-want) > 1e-9 {
		t.Errorf("composite = %.6f, want %.6f", *res.CompositeScore, want)
	}
	if res.ValidCount != 2 {
		t.Errorf("valid = %d, want 2", res.ValidCount)
	}
	if len(res.FailedIndicators) != 1 || res.FailedIndicators[0] != "b" {
		t.Errorf("failed = %v, want [b]", res.FailedIndicators)
	}
	if res.Interpretation == nil || res.Interpretation.Strength != "Strong" {
		t.Errorf("interpretation = %+v, want Strong", res.Interpretation)
	}
	if res.Quality.SuccessRate < 66.6 || res.Quality.SuccessRate > 66.7 {
		t.Errorf("success rate = %.2f", res.Quality.SuccessRate)
	}
}

func TestCompleteAnalysis_AllFailed(t *testing.T) {
	roster := []*stubIndicator{
		{name: "a", side: model.SideTop, err: errors.New("no data")},
		{name: "b", side: model.SideTop, err: errors.New("no data")},
	}
	tables := unitTables(map[string]float64{"a": 1, "b": 1})

	res := New(model.SideTop, indicators(roster), tables, nil).CompleteAnalysis()

	if res.CompositeScore != nil {
		t.Errorf("expected absent composite, got %v", *res.CompositeScore)
	}
	if res.TotalWeight != 0 {
		t.Errorf("total weight = %g, want 0", res.TotalWeight)
	}
	if len(res.FailedIndicators) != 2 {
		t.Errorf("failed = %v, want full roster", res.FailedIndicators)
	}
	if res.Error == "" {
		t.Error("expected an error message")
	}
	if res.Quality.SuccessRate != 0 {
		t.Errorf("success rate = %g, want 0", res.Quality.SuccessRate)
	}
}

func TestCompleteAnalysis_PanicIsolation(t *testing.T) {
	roster := []*stubIndicator{
		{name: "a", side: model.SideBottom, value: 0.4},
		{name: "b", side: model.SideBottom, panics: true},
		{name: "c", side: model.SideBottom, value: 0.6},
	}
	tables := unitTables(map[string]float64{"a": 1, "b": 1, "c": 1})

	res := New(model.SideBottom, indicators(roster), tables, nil).CompleteAnalysis()

	if res.ValidCount != 2 {
		t.Fatalf("valid = %d, want 2", res.ValidCount)
	}
	if len(res.FailedIndicators) != 1 || res.FailedIndicators[0] != "b" {
		t.Fatalf("failed = %v, want [b]", res.FailedIndicators)
	}
	for _, r := range res.Results {
		if r.Name == "b" && r.Error == "" {
			t.Error("panicking indicator should carry a non-empty error")
		}
	}
}

func TestCompleteAnalysis_WeightsAndBoundsSurviveFailure(t *testing.T) {
	roster := []*stubIndicator{
		{name: "a", side: model.SideBottom, err: errors.New("offline")},
	}
	tables := &config.Tables{Bottom: map[string]config.Spec{
		"a": {Lower: 5, Upper: 40, Weight: 0.1},
	}}

	res := New(model.SideBottom, indicators(roster), tables, nil).CompleteAnalysis()

	r := res.Results[0]
	if r.Weight != 0.1 {
		t.Errorf("weight = %g, want 0.1", r.Weight)
	}
	if r.Bounds.Lower != 5 || r.Bounds.Upper != 40 {
		t.Errorf("bounds = %+v, want [5,40]", r.Bounds)
	}
	if r.RawValue != nil || r.NormalizedScore != nil {
		t.Error("failed result must not carry values")
	}
}

func TestCompleteAnalysis_ResultsStampedWithDataTime(t *testing.T) {
	roster := []*stubIndicator{
		{name: "a", side: model.SideBottom, value: 0.4},
		{name: "b", side: model.SideBottom, err: errors.New("offline")},
	}
	tables := unitTables(map[string]float64{"a": 1, "b": 1})
	fetched := time.Date(2025, 6, 15, 6, 30, 0, 0, time.UTC)

	res := New(model.SideBottom, indicators(roster), tables, func() time.Time { return fetched }).CompleteAnalysis()

	for _, r := range res.Results {
		if !r.Timestamp.Equal(fetched) {
			t.Errorf("%s stamped %v, want the data fetch time %v", r.Name, r.Timestamp, fetched)
		}
	}
	if res.Timestamp.Equal(fetched) {
		t.Error("composite timestamp must be the calculation time, not the data time")
	}
}

func TestCompleteAnalysis_ZeroDataTimeFallsBackToClock(t *testing.T) {
	roster := []*stubIndicator{{name: "a", side: model.SideBottom, value: 0.4}}
	tables := unitTables(map[string]float64{"a": 1})

	res := New(model.SideBottom, indicators(roster), tables, nil).CompleteAnalysis()

	if res.Results[0].Timestamp.IsZero() {
		t.Error("cold data time must fall back to the wall clock")
	}
}

func TestInterpret_Boundaries(t *testing.T) {
	tests := []struct {
		score    float64
		strength string
	}{
		{1.0, "Very Strong"},
		{0.8, "Very Strong"},
		{0.7999, "Strong"},
		{0.6, "Strong"},
		{0.5999, "Moderate"},
		{0.4, "Moderate"},
		{0.3999, "Weak"},
		{0.2, "Weak"},
		{0.1999, "Very Weak"},
		{0.0, "Very Weak"},
	}
	for _, tt := range tests {
		got := Interpret(model.SideBottom, tt.score)
		if got.Strength != tt.strength {
			t.Errorf("Interpret(%g) = %s, want %s", tt.score, got.Strength, tt.strength)
		}
	}
}

func TestInterpret_SideSpecific(t *testing.T) {
	bottom := Interpret(model.SideBottom, 0.85)
	top := Interpret(model.SideTop, 0.85)

	if bottom.Color != "green" {
		t.Errorf("bottom color = %s, want green", bottom.Color)
	}
	if top.Color != "red" {
		t.Errorf("top color = %s, want red", top.Color)
	}
	if bottom.Percentage != 85.0 {
		t.Errorf("percentage = %g, want 85.0", bottom.Percentage)
	}
}

func TestInterpret_PercentageRounding(t *testing.T) {
	got := Interpret(model.SideTop, 0.71666)
	if got.Percentage != 71.7 {
		t.Errorf("percentage = %g, want 71.7", got.Percentage)
	}
}

func indicators(stubs []*stubIndicator) []indicator.Indicator {
	out := make([]indicator.Indicator, len(stubs))
	for i, s := range stubs {
		out[i] = s
	}
	return out
}
