package export

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"CycleSentinel/internal/model"
)

// Exporter writes run results to disk as JSON snapshots, per-side CSV
// tables, and append-only historical CSVs used for backtesting.
type Exporter struct {
	outputDir string
	now       func() time.Time
}

// New creates the output directory layout and returns an Exporter.
func New(outputDir string) (*Exporter, error) {
	for _, sub := range []string{"json", "csv"} {
		if err := os.MkdirAll(filepath.Join(outputDir, sub), 0755); err != nil {
			return nil, fmt.Errorf("failed to create output dir: %w", err)
		}
	}
	return &Exporter{outputDir: outputDir, now: time.Now}, nil
}

// WriteAll persists every export format for one run. Each format is
// attempted independently so a single failure does not block the others.
func (e *Exporter) WriteAll(run *model.RunResult) error {
	var firstErr error
	if _, err := e.WriteJSON(run); err != nil {
		log.Printf("[WARN] JSON export failed: %v", err)
		firstErr = err
	}
	if err := e.WriteCSV(run); err != nil {
		log.Printf("[WARN] CSV export failed: %v", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	if err := e.AppendHistorical(run); err != nil {
		log.Printf("[WARN] historical CSV append failed: %v", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type snapshot struct {
	*model.RunResult
	DurationSeconds float64 `json:"duration_seconds"`
}

// WriteJSON writes the full run result as an indented JSON snapshot and
// returns the path of the written file.
func (e *Exporter) WriteJSON(run *model.RunResult) (string, error) {
	stamp := e.now().Format("20060102_150405")
	path := filepath.Join(e.outputDir, "json", fmt.Sprintf("btc_indicators_%s.json", stamp))

	data, err := json.MarshalIndent(snapshot{run, run.Duration.Seconds()}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal run result: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write JSON snapshot: %w", err)
	}
	log.Printf("[INFO] Results written to %s", path)
	return path, nil
}

// WriteCSV writes one indicator table per side plus a summary file, all
// sharing the same timestamp suffix.
func (e *Exporter) WriteCSV(run *model.RunResult) error {
	stamp := e.now().Format("20060102_150405")
	csvDir := filepath.Join(e.outputDir, "csv")

	if run.Bottom != nil {
		path := filepath.Join(csvDir, fmt.Sprintf("bottom_indicators_%s.csv", stamp))
		if err := writeIndicatorsCSV(run.Bottom.Results, path); err != nil {
			return err
		}
	}
	if run.Top != nil {
		path := filepath.Join(csvDir, fmt.Sprintf("top_indicators_%s.csv", stamp))
		if err := writeIndicatorsCSV(run.Top.Results, path); err != nil {
			return err
		}
	}
	return writeSummaryCSV(run, filepath.Join(csvDir, fmt.Sprintf("summary_%s.csv", stamp)))
}

// AppendHistorical appends one row per side to the long-lived historical
// CSVs. Headers are written only when a file is created, so the indicator
// column order must stay stable across runs.
func (e *Exporter) AppendHistorical(run *model.RunResult) error {
	ts := e.now()
	if run.Bottom != nil {
		path := filepath.Join(e.outputDir, "csv", "historical_bottom.csv")
		if err := appendHistoricalRow(run.Bottom, path, ts); err != nil {
			return err
		}
	}
	if run.Top != nil {
		path := filepath.Join(e.outputDir, "csv", "historical_top.csv")
		if err := appendHistoricalRow(run.Top, path, ts); err != nil {
			return err
		}
	}
	return nil
}
