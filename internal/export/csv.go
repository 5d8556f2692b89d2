package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"CycleSentinel/internal/model"
)

func writeIndicatorsCSV(results []model.IndicatorResult, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create indicators CSV: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"indicator_name", "indicator_type", "raw_value", "normalized_score",
		"weight", "bounds_lower", "bounds_upper", "timestamp", "success",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range results {
		row := []string{
			r.Name,
			string(r.Side),
			floatField(r.RawValue),
			floatField(r.NormalizedScore),
			formatFloat(r.Weight),
			formatFloat(r.Bounds.Lower),
			formatFloat(r.Bounds.Upper),
			r.Timestamp.Format(time.RFC3339),
			strconv.FormatBool(r.Valid()),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return w.Error()
}

func writeSummaryCSV(run *model.RunResult, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create summary CSV: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	rows := [][]string{
		{"Metric", "Value"},
		{"Run ID", run.RunID},
		{"Calculation Start", run.StartTime.Format(time.RFC3339)},
		{"Calculation Duration (s)", formatFloat(run.Duration.Seconds())},
	}
	if run.Context != nil && run.Context.CurrentPrice != nil {
		rows = append(rows, []string{"Current BTC Price", formatFloat(*run.Context.CurrentPrice)})
	}
	rows = append(rows, summaryRows("Bottom", run.Bottom)...)
	rows = append(rows, summaryRows("Top", run.Top)...)

	return w.WriteAll(rows)
}

func summaryRows(label string, res *model.CompositeResult) [][]string {
	if res == nil {
		return nil
	}
	rows := [][]string{
		{label + " Composite Score", floatField(res.CompositeScore)},
	}
	if res.Interpretation != nil {
		rows = append(rows,
			[]string{label + " Signal Strength", res.Interpretation.Strength},
			[]string{label + " Signal Description", res.Interpretation.Description},
		)
	}
	rows = append(rows, []string{label + " Success Rate (%)", formatFloat(res.Quality.SuccessRate)})
	return rows
}

func appendHistoricalRow(res *model.CompositeResult, path string, ts time.Time) error {
	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open historical CSV: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if isNew {
		header := []string{"timestamp", "composite_score", "signal_strength", "success_rate"}
		for _, r := range res.Results {
			header = append(header, r.Name+"_score")
		}
		if err := w.Write(header); err != nil {
			return err
		}
	}

	strength := ""
	if res.Interpretation != nil {
		strength = res.Interpretation.Strength
	}
	row := []string{
		ts.Format(time.RFC3339),
		floatField(res.CompositeScore),
		strength,
		formatFloat(res.Quality.SuccessRate),
	}
	for _, r := range res.Results {
		row = append(row, floatField(r.NormalizedScore))
	}
	if err := w.Write(row); err != nil {
		return err
	}
	return w.Error()
}

func floatField(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
