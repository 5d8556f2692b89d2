package timeframe

import (
	"errors"
	"testing"
	"time"

	"CycleSentinel/internal/marketdata"
	"CycleSentinel/internal/model"
)

func newTestCache(fetcher marketdata.Fetcher, at time.Time) (*Cache, *time.Time) {
	clock := at
	c := NewCache(fetcher, 100, 60*time.Minute)
	c.now = func() time.Time { return clock }
	return c, &clock
}

func TestGet_ServesCachedWithinMaxAge(t *testing.T) {
	fetcher := &marketdata.MockFetcher{Price: 50000}
	t0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	c, clock := newTestCache(fetcher, t0)

	if c.Get("1D", false) == nil {
		t.Fatal("expected dataset")
	}
	if fetcher.Calls != 1 {
		t.Fatalf("calls = %d, want 1", fetcher.Calls)
	}

	*clock = t0.Add(59 * time.Minute)
	if c.Get("1D", false) == nil {
		t.Fatal("expected cached dataset")
	}
	if fetcher.Calls != 1 {
		t.Errorf("valid entry at 59min should not refetch, calls = %d", fetcher.Calls)
	}

	*clock = t0.Add(61 * time.Minute)
	c.Get("1D", false)
	if fetcher.Calls != 2 {
		t.Errorf("expired entry at 61min should refetch, calls = %d", fetcher.Calls)
	}
}

func TestGet_ForceBypassesValidity(t *testing.T) {
	fetcher := &marketdata.MockFetcher{Price: 50000}
	t0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	c, _ := newTestCache(fetcher, t0)

	c.Get("1W", false)
	c.Get("1W", true)
	if fetcher.Calls != 2 {
		t.Errorf("force refresh must refetch, calls = %d", fetcher.Calls)
	}
}

func TestGet_ServesStaleOnFetchFailure(t *testing.T) {
	fetcher := &marketdata.MockFetcher{Price: 50000}
	t0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	c, clock := newTestCache(fetcher, t0)

	first := c.Get("1D", false)
	if first == nil {
		t.Fatal("expected dataset")
	}

	fetcher.Err = errors.New("upstream down")
	*clock = t0.Add(2 * time.Hour)
	stale := c.Get("1D", false)
	if stale != first {
		t.Error("expected the stale dataset to be served on fetch failure")
	}
}

func TestGet_NilOnColdCacheFailure(t *testing.T) {
	fetcher := &marketdata.MockFetcher{Err: errors.New("upstream down")}
	c, _ := newTestCache(fetcher, time.Now())

	if ds := c.Get("1D", false); ds != nil {
		t.Errorf("expected nil on cold-cache failure, got %v", ds.Timeframe)
	}
}

func TestRefreshAll_BestEffort(t *testing.T) {
	fetcher := &failingFetcher{inner: &marketdata.MockFetcher{Price: 50000}, failFor: "3D"}
	t0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	c, _ := newTestCache(fetcher, t0)

	report := c.RefreshAll()
	if report.AllRefreshed() {
		t.Fatal("expected a failed timeframe")
	}
	if len(report.Refreshed) != len(Timeframes)-1 {
		t.Errorf("refreshed = %v", report.Refreshed)
	}
	if len(report.Failed) != 1 || report.Failed[0] != "3D" {
		t.Errorf("failed = %v, want [3D]", report.Failed)
	}
}

func TestRefreshAll_ReportsSuccessTimeframes(t *testing.T) {
	fetcher := &marketdata.MockFetcher{Price: 50000}
	t0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	c, _ := newTestCache(fetcher, t0)

	report := c.RefreshAll()
	if !report.AllRefreshed() {
		t.Fatalf("failed = %v", report.Failed)
	}
	if len(report.Refreshed) != len(Timeframes) {
		t.Errorf("refreshed = %v, want all of %v", report.Refreshed, Timeframes)
	}
}

func TestRefreshAll_FrozenClockStillReportsRefreshed(t *testing.T) {
	fetcher := &marketdata.MockFetcher{Price: 50000}
	t0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	c, _ := newTestCache(fetcher, t0)

	// Two back-to-back refreshes at the same clock reading: entries get the
	// same fetchedAt both times, but each refetch did succeed.
	c.RefreshAll()
	report := c.RefreshAll()
	if !report.AllRefreshed() {
		t.Errorf("identical fetch timestamps must not read as failure: %v", report.Failed)
	}
	if len(report.Refreshed) != len(Timeframes) {
		t.Errorf("refreshed = %v, want all of %v", report.Refreshed, Timeframes)
	}
}

func TestFreshestTime(t *testing.T) {
	fetcher := &marketdata.MockFetcher{Price: 50000}
	t0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	c, clock := newTestCache(fetcher, t0)

	if !c.FreshestTime().IsZero() {
		t.Error("cold cache must report the zero time")
	}

	c.Get("1W", false)
	*clock = t0.Add(10 * time.Minute)
	c.Get("1D", false)

	if got := c.FreshestTime(); !got.Equal(t0.Add(10 * time.Minute)) {
		t.Errorf("freshest = %v, want the 1D fetch time %v", got, t0.Add(10*time.Minute))
	}
}

func TestStatus_ReflectsEntryState(t *testing.T) {
	fetcher := &marketdata.MockFetcher{Price: 50000}
	t0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	c, clock := newTestCache(fetcher, t0)

	c.Get("1D", false)
	*clock = t0.Add(30 * time.Minute)

	status := c.Status()
	if len(status) != len(Timeframes) {
		t.Fatalf("status entries = %d, want %d", len(status), len(Timeframes))
	}
	daily := status["1D"]
	if !daily.Cached || !daily.Valid {
		t.Errorf("daily = %+v, want cached and valid", daily)
	}
	if daily.AgeMinutes < 29.9 || daily.AgeMinutes > 30.1 {
		t.Errorf("age = %.2f minutes, want ~30", daily.AgeMinutes)
	}
	if status["1M"].Cached {
		t.Error("1M was never fetched, must report uncached")
	}
}

func TestStatisticsHelpers(t *testing.T) {
	fetcher := &marketdata.MockFetcher{Price: 50000}
	c, _ := newTestCache(fetcher, time.Now())

	if _, ok := c.PriceStatistics("1D", 30); !ok {
		t.Error("expected price statistics")
	}
	stats, ok := c.VolumeStatistics("1D", 30)
	if !ok {
		t.Fatal("expected volume statistics")
	}
	if stats.Percentile < 0 || stats.Percentile > 100 {
		t.Errorf("percentile = %.2f out of range", stats.Percentile)
	}
	if _, ok := c.Momentum("1D", 14); !ok {
		t.Error("expected momentum")
	}
	if _, ok := c.SeriesValue("1D", "rsi", 0); !ok {
		t.Error("expected rsi series value")
	}
	if _, ok := c.SeriesValue("1D", "nonexistent", 0); ok {
		t.Error("unknown series must report missing")
	}

	high, ok := c.BarValue("1D", "high", 0)
	if !ok || high <= 0 {
		t.Errorf("high = %v, ok=%v", high, ok)
	}
	low, _ := c.BarValue("1D", "low", 0)
	if low >= high {
		t.Errorf("low %v must be below high %v", low, high)
	}
	if _, ok := c.BarValue("1D", "bogus", 0); ok {
		t.Error("unknown column must report missing")
	}
	if _, ok := c.BarValue("1D", "close", 1_000_000); ok {
		t.Error("lookback past the data must report missing")
	}
}

// failingFetcher fails every fetch for one timeframe and delegates the rest.
type failingFetcher struct {
	inner   *marketdata.MockFetcher
	failFor string
}

func (f *failingFetcher) Name() string { return "failing" }

func (f *failingFetcher) FetchTimeframe(tf string, bars int) (*model.TimeframeDataset, error) {
	if tf == f.failFor {
		return nil, errors.New("synthetic failure")
	}
	return f.inner.FetchTimeframe(tf, bars)
}

func (f *failingFetcher) CurrentPrice() (float64, error) { return f.inner.CurrentPrice() }
