package indicator

import (
	"errors"
	"testing"
	"time"

	"CycleSentinel/internal/config"
	"CycleSentinel/internal/marketdata"
	"CycleSentinel/internal/model"
	"CycleSentinel/internal/timeframe"
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
		panic("index out of range")
	}
	return s.value, s.err
}

func stubTables(name string, spec config.Spec) *config.Tables {
	return &config.Tables{
		Bottom: map[string]config.Spec{name: spec},
		Top:    map[string]config.Spec{name: spec},
	}
}

func TestEvaluate_NotConfigured(t *testing.T) {
	ind := &stubIndicator{name: "mystery", side: model.SideBottom, value: 1}
	res := Evaluate(ind, stubTables("other", config.Spec{Lower: 0, Upper: 1, Weight: 0.1}), time.Now())

	if res.Error != "indicator not configured" {
		t.Errorf("error = %q", res.Error)
	}
	if res.Weight != 0 {
		t.Errorf("unconfigured indicator must carry zero weight, got %v", res.Weight)
	}
	if res.Valid() {
		t.Error("unconfigured indicator must not be valid")
	}
}

func TestEvaluate_NormalizesAndClamps(t *testing.T) {
	tables := stubTables("vix", config.Spec{Lower: 5, Upper: 40, Weight: 0.1})
	tests := []struct {
		name string
		raw  float64
		want float64
	}{
		{"midpoint", 22.5, 0.5},
		{"below lower clamps to zero", -10, 0},
		{"above upper clamps to one", 500, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ind := &stubIndicator{name: "vix", side: model.SideBottom, value: tt.raw}
			res := Evaluate(ind, tables, time.Now())
			if !res.Valid() {
				t.Fatalf("unexpected failure: %s", res.Error)
			}
			if *res.NormalizedScore != tt.want {
				t.Errorf("score = %v, want %v", *res.NormalizedScore, tt.want)
			}
			if *res.RawValue != tt.raw {
				t.Errorf("raw = %v, want %v", *res.RawValue, tt.raw)
			}
		})
	}
}

func TestEvaluate_ErrorKeepsWeightAndBounds(t *testing.T) {
	tables := stubTables("vix", config.Spec{Lower: 5, Upper: 40, Weight: 0.1})
	ind := &stubIndicator{name: "vix", side: model.SideBottom, err: errors.New("feed down")}
	res := Evaluate(ind, tables, time.Now())

	if res.Error != "feed down" {
		t.Errorf("error = %q", res.Error)
	}
	if res.Weight != 0.1 || res.Bounds.Lower != 5 || res.Bounds.Upper != 40 {
		t.Errorf("weight/bounds lost on failure: %+v", res)
	}
	if res.RawValue != nil || res.NormalizedScore != nil {
		t.Error("failed evaluation must carry nil values")
	}
}

func TestEvaluate_RecoversPanic(t *testing.T) {
	tables := stubTables("vix", config.Spec{Lower: 0, Upper: 1, Weight: 0.1})
	ind := &stubIndicator{name: "vix", side: model.SideTop, panics: true}
	res := Evaluate(ind, tables, time.Now())

	if res.Error != "panic: index out of range" {
		t.Errorf("error = %q", res.Error)
	}
	if res.Valid() {
		t.Error("panicking indicator must not be valid")
	}
}

func TestEvaluate_DegenerateBounds(t *testing.T) {
	tables := stubTables("vix", config.Spec{Lower: 2, Upper: 2, Weight: 0.1})
	ind := &stubIndicator{name: "vix", side: model.SideBottom, value: 3}
	res := Evaluate(ind, tables, time.Now())

	if res.Valid() {
		t.Error("degenerate bounds must fail")
	}
	if res.Error == "" {
		t.Error("degenerate bounds must report an error")
	}
}

func TestScheduleProximity(t *testing.T) {
	day := func(hour, min int) time.Time {
		return time.Date(2025, 6, 15, hour, min, 0, 0, time.UTC)
	}
	tests := []struct {
		name string
		at   time.Time
		want float64
	}{
		{"on morning slot", day(8, 0), 1.0},
		{"on evening slot", day(20, 0), 1.0},
		{"one hour after slot", day(9, 0), 1.0 - (60.0/360.0)*0.5},
		{"midway between slots", day(14, 0), 0.5},
		{"wraps past midnight", day(2, 0), 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scheduleProximity(tt.at, 0.5, 0.5)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("scheduleProximity(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func syntheticCache() *timeframe.Cache {
	return timeframe.NewCache(&marketdata.MockFetcher{Price: 60000}, 500, time.Hour)
}

func testMetrics() *marketdata.MockMetrics {
	return &marketdata.MockMetrics{Values: map[string]float64{
		marketdata.MetricCVDD:          28000,
		marketdata.MetricTerminalPrice: 185000,
		marketdata.MetricNUPL:          45.2,
		marketdata.MetricAvgTxFee:      8.4,
		marketdata.MetricFundingRate:   32.5,
	}}
}

func TestRosters_MatchConfiguredIndicators(t *testing.T) {
	tables := config.DefaultTables()
	cache := syntheticCache()

	bottom := BottomRoster(cache, testMetrics(), nil)
	if len(bottom) != len(tables.Bottom) {
		t.Errorf("bottom roster = %d indicators, config has %d", len(bottom), len(tables.Bottom))
	}
	for _, ind := range bottom {
		if ind.Side() != model.SideBottom {
			t.Errorf("%s reports side %s", ind.Name(), ind.Side())
		}
		if _, ok := tables.Lookup(model.SideBottom, ind.Name()); !ok {
			t.Errorf("bottom indicator %s has no configuration entry", ind.Name())
		}
	}

	top := TopRoster(cache, testMetrics(), nil)
	if len(top) != len(tables.Top) {
		t.Errorf("top roster = %d indicators, config has %d", len(top), len(tables.Top))
	}
	for _, ind := range top {
		if ind.Side() != model.SideTop {
			t.Errorf("%s reports side %s", ind.Name(), ind.Side())
		}
		if _, ok := tables.Lookup(model.SideTop, ind.Name()); !ok {
			t.Errorf("top indicator %s has no configuration entry", ind.Name())
		}
	}
}

func TestRosters_EvaluateOnSyntheticData(t *testing.T) {
	tables := config.DefaultTables()
	cache := syntheticCache()
	fixed := func() time.Time { return time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC) }

	all := append(BottomRoster(cache, testMetrics(), fixed), TopRoster(cache, testMetrics(), fixed)...)
	for _, ind := range all {
		res := Evaluate(ind, tables, fixed())
		if !res.Valid() {
			t.Errorf("%s/%s failed on synthetic data: %s", res.Side, res.Name, res.Error)
			continue
		}
		if s := *res.NormalizedScore; s < 0 || s > 1 {
			t.Errorf("%s/%s score %v outside [0,1]", res.Side, res.Name, s)
		}
	}
}

func TestMetricIndicators_DegradeWithoutSource(t *testing.T) {
	tables := config.DefaultTables()
	cache := syntheticCache()

	for _, ind := range TopRoster(cache, marketdata.UnavailableMetrics{}, nil) {
		res := Evaluate(ind, tables, time.Now())
		switch res.Name {
		case "nupl", "transaction_cost", "funding_rates", "cvdd_terminal_relative":
			if res.Valid() {
				t.Errorf("%s must fail without a metric source", res.Name)
			}
			if res.Error == "" {
				t.Errorf("%s must surface its error", res.Name)
			}
		}
	}
}
