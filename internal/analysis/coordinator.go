package analysis

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"CycleSentinel/internal/composer"
	"CycleSentinel/internal/config"
	"CycleSentinel/internal/indicator"
	"CycleSentinel/internal/marketdata"
	"CycleSentinel/internal/model"
	"CycleSentinel/internal/timeframe"
)

// Coordinator owns the full analysis pipeline: data refresh, both composite
// analyses, and the market context snapshot attached to each run.
type Coordinator struct {
	cache   *timeframe.Cache
	fetcher marketdata.Fetcher
	bottom  *composer.Composer
	top     *composer.Composer
	now     func() time.Time
}

// New wires the rosters and composers for both sides against a shared cache.
func New(cfg *config.Config, fetcher marketdata.Fetcher, metrics marketdata.MetricSource) *Coordinator {
	cache := timeframe.NewCache(fetcher, cfg.DataSource.BarCount, cfg.CacheMaxAge())
	return &Coordinator{
		cache:   cache,
		fetcher: fetcher,
		bottom:  composer.New(model.SideBottom, indicator.BottomRoster(cache, metrics, nil), cfg.Indicators, cache.FreshestTime),
		top:     composer.New(model.SideTop, indicator.TopRoster(cache, metrics, nil), cfg.Indicators, cache.FreshestTime),
		now:     time.Now,
	}
}

// Cache exposes the shared timeframe cache, mainly for status reporting.
func (c *Coordinator) Cache() *timeframe.Cache { return c.cache }

// Run executes one full analysis pass. With refreshData set it refreshes
// every timeframe first, best effort: timeframes that fail to refresh keep
// serving cached bars. Run never panics; an unexpected failure returns an
// error-shaped result that still reports identity and timing.
func (c *Coordinator) Run(refreshData bool) (result *model.RunResult) {
	start := c.now()
	result = &model.RunResult{
		RunID:     uuid.NewString(),
		StartTime: start,
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ERROR] analysis run %s: panic: %v", result.RunID, r)
			result.Error = fmt.Sprintf("panic: %v", r)
		}
		result.EndTime = c.now()
		result.Duration = result.EndTime.Sub(start)
	}()

	log.Printf("[INFO] analysis run %s started (refresh=%v)", result.RunID, refreshData)

	if refreshData {
		report := c.cache.RefreshAll()
		result.DataRefreshed = len(report.Refreshed) > 0
		if !report.AllRefreshed() {
			log.Printf("[WARN] refresh incomplete, using cached data for: %v", report.Failed)
		}
	}

	result.Bottom = c.bottom.CompleteAnalysis()
	result.Top = c.top.CompleteAnalysis()
	result.Context = c.marketContext()
	result.CacheStatus = c.cache.Status()

	c.logSummary(result)
	return result
}

func (c *Coordinator) marketContext() *model.MarketContext {
	ctx := &model.MarketContext{Timestamp: c.now()}

	if price, err := c.fetcher.CurrentPrice(); err == nil {
		ctx.CurrentPrice = model.Float(price)
	} else {
		log.Printf("[WARN] spot price unavailable: %v", err)
		if ds := c.cache.Get("1D", false); ds != nil {
			if px, ok := ds.LastClose(); ok {
				ctx.CurrentPrice = model.Float(px)
			}
		}
	}

	if stats, ok := c.cache.PriceStatistics("1D", 30); ok {
		ctx.PriceStats = stats
	}
	if stats, ok := c.cache.VolumeStatistics("1D", 30); ok {
		ctx.VolumeStats = stats
	}
	return ctx
}

func (c *Coordinator) logSummary(r *model.RunResult) {
	if r.Bottom != nil && r.Bottom.CompositeScore != nil {
		log.Printf("[INFO] BOTTOM score: %.4f (%s)", *r.Bottom.CompositeScore, r.Bottom.Interpretation.Strength)
	}
	if r.Top != nil && r.Top.CompositeScore != nil {
		log.Printf("[INFO] TOP score: %.4f (%s)", *r.Top.CompositeScore, r.Top.Interpretation.Strength)
	}
	if r.Context != nil && r.Context.CurrentPrice != nil {
		log.Printf("[INFO] current price: $%.2f", *r.Context.CurrentPrice)
	}
	log.Printf("[INFO] analysis run %s finished in %s", r.RunID, r.Duration.Round(time.Millisecond))
}
