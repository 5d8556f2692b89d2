package notifier

import (
	"strings"
	"testing"
	"time"

	"CycleSentinel/internal/model"
	"CycleSentinel/internal/recorder"
)

func reportRun() *model.RunResult {
	now := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)
	return &model.RunResult{
		RunID:     "run-xyz",
		StartTime: now,
		Duration:  4 * time.Second,
		Context: &model.MarketContext{
			CurrentPrice: model.Float(64250.5),
			PriceStats:   &model.PriceStatistics{ChangePct: -3.2},
			Timestamp:    now,
		},
		Bottom: &model.CompositeResult{
			Side:           model.SideBottom,
			CompositeScore: model.Float(0.82),
			Interpretation: &model.Interpretation{
				Strength:    "Very Strong",
				Description: "Multiple indicators suggest high probability of market bottom",
				Color:       "green",
				Percentage:  82.0,
			},
			Quality: model.DataQuality{TotalIndicators: 11, Successful: 9, Failed: 2, SuccessRate: 81.8},
			Results: []model.IndicatorResult{
				{Name: "cm_vix_fix", NormalizedScore: model.Float(0.91)},
				{Name: "supertrend", NormalizedScore: model.Float(0.55)},
				{Name: "hash_ribbons", NormalizedScore: model.Float(0.97)},
				{Name: "nupl", Error: "metric unavailable"},
			},
		},
		Top: &model.CompositeResult{
			Side:  model.SideTop,
			Error: "no valid indicators",
		},
	}
}

func TestFormatRunReport(t *testing.T) {
	msg := FormatRunReport(reportRun())

	for _, want := range []string{
		"CycleSentinel BTC Analysis",
		"$64250.50",
		"-3.2% / 30d",
		"Very Strong",
		"82.0%",
		"high probability of market bottom",
		"9/11 indicators",
		"🟢",
		"no valid indicators",
		"Completed in 4.0s",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("report missing %q:\n%s", want, msg)
		}
	}
}

func TestFormatRunReport_LeadingIndicatorsSorted(t *testing.T) {
	msg := FormatRunReport(reportRun())

	idx := strings.Index(msg, "Leading: ")
	if idx < 0 {
		t.Fatalf("report missing leading line:\n%s", msg)
	}
	line := msg[idx:]
	line = line[:strings.Index(line, "\n")]

	hr := strings.Index(line, "hash_ribbons")
	vix := strings.Index(line, "cm_vix_fix")
	st := strings.Index(line, "supertrend")
	if hr < 0 || vix < 0 || st < 0 {
		t.Fatalf("leading line incomplete: %s", line)
	}
	if !(hr < vix && vix < st) {
		t.Errorf("leading indicators not sorted by score: %s", line)
	}
	if strings.Contains(line, "nupl") {
		t.Errorf("failed indicator must not appear as leading: %s", line)
	}
}

func TestFormatRunReport_NilSides(t *testing.T) {
	msg := FormatRunReport(&model.RunResult{
		StartTime: time.Now(),
		Error:     "panic: data source exploded",
	})
	if !strings.Contains(msg, "analysis unavailable") {
		t.Errorf("nil sides must render a placeholder:\n%s", msg)
	}
	if !strings.Contains(msg, "Run error: panic: data source exploded") {
		t.Errorf("run error must be surfaced:\n%s", msg)
	}
}

func TestFormatCacheStatus(t *testing.T) {
	status := map[string]model.TimeframeStatus{
		"1D": {Cached: true, Valid: true, AgeMinutes: 12},
		"1W": {Cached: true, Valid: false, AgeMinutes: 95},
	}
	stats := &recorder.Stats{Calculations: 42, IndicatorResults: 880, RunsLast24h: 2, SizeBytes: 65536}

	msg := FormatCacheStatus(status, stats)
	for _, want := range []string{
		"1D: fresh (12 min old)",
		"1W: stale (95 min old)",
		"1M: not cached",
		"Calculations: 42",
		"Runs (24h): 2",
		"64.0 KB",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("status missing %q:\n%s", want, msg)
		}
	}
}

func TestFormatCleanupReport(t *testing.T) {
	msg := FormatCleanupReport(17, 90)
	if !strings.Contains(msg, "17") || !strings.Contains(msg, "90 days") {
		t.Errorf("unexpected cleanup message: %s", msg)
	}
}
