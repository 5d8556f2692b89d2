package notifier

import (
	"fmt"
	"strings"
	"time"

	"CycleSentinel/internal/model"
	"CycleSentinel/internal/recorder"
)

var colorEmoji = map[string]string{
	"green":        "🟢",
	"yellow-green": "🟡",
	"yellow":       "🟡",
	"orange":       "🟠",
	"red":          "🔴",
}

// FormatRunReport formats a completed analysis run into a Telegram message.
func FormatRunReport(run *model.RunResult) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>CycleSentinel BTC Analysis</b> | %s\n\n", run.StartTime.Format("2006-01-02 15:04")))

	if run.Context != nil && run.Context.CurrentPrice != nil {
		b.WriteString(fmt.Sprintf("Price: $%.2f", *run.Context.CurrentPrice))
		if run.Context.PriceStats != nil {
			b.WriteString(fmt.Sprintf(" (%+.1f%% / 30d)", run.Context.PriceStats.ChangePct))
		}
		b.WriteString("\n\n")
	}

	writeSideReport(&b, "🔻 Bottom", run.Bottom)
	writeSideReport(&b, "🔺 Top", run.Top)

	if run.Error != "" {
		b.WriteString(fmt.Sprintf("⚠️ Run error: %s\n", run.Error))
	}
	b.WriteString(fmt.Sprintf("\nCompleted in %.1fs", run.Duration.Seconds()))
	return b.String()
}

func writeSideReport(b *strings.Builder, label string, res *model.CompositeResult) {
	b.WriteString(fmt.Sprintf("<b>%s Analysis</b>\n", label))
	if res == nil || res.CompositeScore == nil {
		reason := "analysis unavailable"
		if res != nil && res.Error != "" {
			reason = res.Error
		}
		b.WriteString(fmt.Sprintf("  ❌ %s\n\n", reason))
		return
	}

	emoji := ""
	if res.Interpretation != nil {
		emoji = colorEmoji[res.Interpretation.Color]
		b.WriteString(fmt.Sprintf("  %s <b>%s</b> (%.1f%%)\n", emoji,
			res.Interpretation.Strength, res.Interpretation.Percentage))
		b.WriteString(fmt.Sprintf("  %s\n", res.Interpretation.Description))
	} else {
		b.WriteString(fmt.Sprintf("  Score: %.4f\n", *res.CompositeScore))
	}
	b.WriteString(fmt.Sprintf("  Data quality: %d/%d indicators (%.1f%%)\n",
		res.Quality.Successful, res.Quality.TotalIndicators, res.Quality.SuccessRate))

	if top := strongestIndicators(res, 3); len(top) > 0 {
		b.WriteString("  Leading: " + strings.Join(top, ", ") + "\n")
	}
	b.WriteString("\n")
}

// strongestIndicators returns the n highest-scoring indicator names with
// their scores, for the "what is driving this" line.
func strongestIndicators(res *model.CompositeResult, n int) []string {
	type scored struct {
		name  string
		score float64
	}
	var valid []scored
	for i := range res.Results {
		r := &res.Results[i]
		if r.Valid() {
			valid = append(valid, scored{r.Name, *r.NormalizedScore})
		}
	}
	for i := 0; i < len(valid); i++ {
		for j := i + 1; j < len(valid); j++ {
			if valid[j].score > valid[i].score {
				valid[i], valid[j] = valid[j], valid[i]
			}
		}
	}
	if len(valid) > n {
		valid = valid[:n]
	}
	out := make([]string, 0, len(valid))
	for _, v := range valid {
		out = append(out, fmt.Sprintf("%s %.2f", v.name, v.score))
	}
	return out
}

// FormatCacheStatus formats the per-timeframe cache state for the /status command.
func FormatCacheStatus(status map[string]model.TimeframeStatus, stats *recorder.Stats) string {
	var b strings.Builder
	b.WriteString("📦 <b>Cache Status</b>\n\n")
	for _, tf := range []string{"1M", "1W", "5D", "3D", "1D"} {
		st, ok := status[tf]
		if !ok || !st.Cached {
			b.WriteString(fmt.Sprintf("%s: not cached\n", tf))
			continue
		}
		state := "stale"
		if st.Valid {
			state = "fresh"
		}
		b.WriteString(fmt.Sprintf("%s: %s (%.0f min old)\n", tf, state, st.AgeMinutes))
	}
	if stats != nil {
		b.WriteString(fmt.Sprintf("\n🗄 <b>Database</b>\nCalculations: %d\nIndicator rows: %d\nRuns (24h): %d\nSize: %.1f KB\n",
			stats.Calculations, stats.IndicatorResults, stats.RunsLast24h, float64(stats.SizeBytes)/1024))
	}
	b.WriteString(fmt.Sprintf("\nUpdated: %s", time.Now().Format("2006-01-02 15:04")))
	return b.String()
}

// FormatCleanupReport formats the result of a retention cleanup.
func FormatCleanupReport(removed int64, retentionDays int) string {
	return fmt.Sprintf("🧹 <b>Cleanup complete</b>\nRemoved %d calculations older than %d days ✅", removed, retentionDays)
}
