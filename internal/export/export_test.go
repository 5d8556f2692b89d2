package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"CycleSentinel/internal/model"
)

func sampleRun() *model.RunResult {
	now := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)
	return &model.RunResult{
		RunID:     "run-abc",
		StartTime: now,
		EndTime:   now.Add(3 * time.Second),
		Duration:  3 * time.Second,
		Context:   &model.MarketContext{CurrentPrice: model.Float(64250.5), Timestamp: now},
		Bottom: &model.CompositeResult{
			Side:           model.SideBottom,
			CompositeScore: model.Float(0.41),
			Interpretation: &model.Interpretation{Strength: "Moderate", Description: "Possible bottom formation"},
			Quality:        model.DataQuality{TotalIndicators: 2, Successful: 2, SuccessRate: 100},
			Results: []model.IndicatorResult{
				{Name: "cm_vix_fix", Side: model.SideBottom, RawValue: model.Float(17.1),
					NormalizedScore: model.Float(0.35), Weight: 0.10, Timestamp: now},
				{Name: "supertrend", Side: model.SideBottom, RawValue: model.Float(0.47),
					NormalizedScore: model.Float(0.47), Weight: 0.09, Timestamp: now},
			},
			Timestamp: now,
		},
		Top: &model.CompositeResult{
			Side:    model.SideTop,
			Quality: model.DataQuality{TotalIndicators: 1, Failed: 1},
			Results: []model.IndicatorResult{
				{Name: "bbwp", Side: model.SideTop, Weight: 0.09, Timestamp: now, Error: "no data"},
			},
			Error:     "no valid indicators",
			Timestamp: now,
		},
	}
}

func newTestExporter(t *testing.T) *Exporter {
	t.Helper()
	e, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}
	e.now = func() time.Time { return time.Date(2025, 6, 15, 8, 0, 1, 0, time.UTC) }
	return e
}

func TestWriteJSON_RoundTrip(t *testing.T) {
	e := newTestExporter(t)
	path, err := e.WriteJSON(sampleRun())
	if err != nil {
		t.Fatalf("write json: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if decoded["run_id"] != "run-abc" {
		t.Errorf("run_id = %v", decoded["run_id"])
	}
	if decoded["duration_seconds"] != 3.0 {
		t.Errorf("duration_seconds = %v, want 3", decoded["duration_seconds"])
	}
	if _, ok := decoded["bottom_analysis"]; !ok {
		t.Error("snapshot missing bottom_analysis")
	}
}

func TestWriteCSV_CreatesPerSideAndSummary(t *testing.T) {
	e := newTestExporter(t)
	if err := e.WriteCSV(sampleRun()); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	csvDir := filepath.Join(e.outputDir, "csv")
	for _, name := range []string{
		"bottom_indicators_20250615_080001.csv",
		"top_indicators_20250615_080001.csv",
		"summary_20250615_080001.csv",
	} {
		if _, err := os.Stat(filepath.Join(csvDir, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}

	f, err := os.Open(filepath.Join(csvDir, "bottom_indicators_20250615_080001.csv"))
	if err != nil {
		t.Fatalf("open bottom csv: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read bottom csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("bottom csv rows = %d, want header + 2", len(rows))
	}
	if rows[1][0] != "cm_vix_fix" || rows[1][8] != "true" {
		t.Errorf("unexpected first data row: %v", rows[1])
	}
}

func TestAppendHistorical_HeaderOnceRowsAccumulate(t *testing.T) {
	e := newTestExporter(t)
	run := sampleRun()
	if err := e.AppendHistorical(run); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if err := e.AppendHistorical(run); err != nil {
		t.Fatalf("second append: %v", err)
	}

	f, err := os.Open(filepath.Join(e.outputDir, "csv", "historical_bottom.csv"))
	if err != nil {
		t.Fatalf("open historical: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read historical: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("historical rows = %d, want header + 2", len(rows))
	}
	wantHeader := []string{"timestamp", "composite_score", "signal_strength", "success_rate", "cm_vix_fix_score", "supertrend_score"}
	for i, col := range wantHeader {
		if rows[0][i] != col {
			t.Errorf("header[%d] = %q, want %q", i, rows[0][i], col)
		}
	}
	if rows[1][1] != "0.41" || rows[1][2] != "Moderate" {
		t.Errorf("unexpected historical row: %v", rows[1])
	}
}

func TestWriteAll_SurvivesFailedSide(t *testing.T) {
	e := newTestExporter(t)
	run := sampleRun()
	run.Bottom = nil
	if err := e.WriteAll(run); err != nil {
		t.Fatalf("write all: %v", err)
	}
	if _, err := os.Stat(filepath.Join(e.outputDir, "csv", "historical_top.csv")); err != nil {
		t.Errorf("expected top historical file: %v", err)
	}
}
