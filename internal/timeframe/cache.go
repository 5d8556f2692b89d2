package timeframe

import (
	"log"
	"sync"
	"time"

	"CycleSentinel/internal/marketdata"
	"CycleSentinel/internal/model"
)

// Timeframes lists every configured sampling granularity, in refresh order.
var Timeframes = []string{"1M", "1W", "5D", "3D", "1D"}

type entry struct {
	dataset   *model.TimeframeDataset
	fetchedAt time.Time
}

// Cache holds the most recently fetched dataset per timeframe and mediates
// all reads of market data. Entries are replaced whole, never patched.
// A mutex guards the entry map so a scheduler and a manual trigger cannot
// race a read-or-refresh-then-write sequence.
type Cache struct {
	fetcher  marketdata.Fetcher
	barCount int
	maxAge   time.Duration

	mu      sync.Mutex
	entries map[string]entry

	now func() time.Time // swapped in tests
}

// NewCache creates a cache over the given fetcher.
func NewCache(fetcher marketdata.Fetcher, barCount int, maxAge time.Duration) *Cache {
	return &Cache{
		fetcher:  fetcher,
		barCount: barCount,
		maxAge:   maxAge,
		entries:  make(map[string]entry),
		now:      time.Now,
	}
}

// valid reports whether an entry can be served without refetching. An entry
// stamped in the future relative to the process clock is never served.
func (c *Cache) valid(e entry, now time.Time) bool {
	if e.dataset == nil {
		return false
	}
	if e.fetchedAt.After(now) {
		return false
	}
	return now.Sub(e.fetchedAt) < c.maxAge
}

// Get returns the dataset for a timeframe. A valid cached entry is served
// without I/O unless force is set. On fetch failure the previous entry is
// served stale when present.
func (c *Cache) Get(timeframe string, force bool) *model.TimeframeDataset {
	c.mu.Lock()
	defer c.mu.Unlock()
	ds, _ := c.getLocked(timeframe, force)
	return ds
}

// getLocked returns the dataset and whether this call stored a freshly
// fetched one. Serving from cache, serving stale, and total failure all
// report false.
func (c *Cache) getLocked(timeframe string, force bool) (*model.TimeframeDataset, bool) {
	now := c.now()
	e, cached := c.entries[timeframe]
	if !force && cached && c.valid(e, now) {
		return e.dataset, false
	}

	log.Printf("[INFO] fetching fresh data for %s", timeframe)
	ds, err := c.fetcher.FetchTimeframe(timeframe, c.barCount)
	if err != nil {
		if cached {
			log.Printf("[WARN] fetch %s failed: %v, serving stale data", timeframe, err)
			return e.dataset, false
		}
		log.Printf("[ERROR] fetch %s failed with no cached fallback: %v", timeframe, err)
		return nil, false
	}

	c.entries[timeframe] = entry{dataset: ds, fetchedAt: c.now()}
	return ds, true
}

// RefreshReport records which timeframes a RefreshAll call actually
// refreshed and which failed.
type RefreshReport struct {
	Refreshed []string
	Failed    []string
}

// AllRefreshed reports whether every configured timeframe refreshed.
func (r RefreshReport) AllRefreshed() bool { return len(r.Failed) == 0 }

// RefreshAll force-refreshes every configured timeframe. Refreshing is
// best-effort: one timeframe's failure does not stop the others, and the
// report says which succeeded.
func (c *Cache) RefreshAll() RefreshReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	var report RefreshReport
	for _, tf := range Timeframes {
		if _, refreshed := c.getLocked(tf, true); refreshed {
			report.Refreshed = append(report.Refreshed, tf)
		} else {
			report.Failed = append(report.Failed, tf)
		}
	}
	if !report.AllRefreshed() {
		log.Printf("[WARN] refresh incomplete, failed timeframes: %v", report.Failed)
	}
	return report
}

// Status reports each timeframe's cache state. Read-only.
func (c *Cache) Status() map[string]model.TimeframeStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	status := make(map[string]model.TimeframeStatus, len(Timeframes))
	for _, tf := range Timeframes {
		e, cached := c.entries[tf]
		if !cached {
			status[tf] = model.TimeframeStatus{}
			continue
		}
		status[tf] = model.TimeframeStatus{
			Cached:     true,
			FetchedAt:  e.fetchedAt,
			AgeMinutes: now.Sub(e.fetchedAt).Minutes(),
			Valid:      c.valid(e, now),
		}
	}
	return status
}

// FreshestTime returns the newest fetch timestamp across cached entries,
// or the zero time when nothing is cached.
func (c *Cache) FreshestTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	var t time.Time
	for _, e := range c.entries {
		if e.fetchedAt.After(t) {
			t = e.fetchedAt
		}
	}
	return t
}
