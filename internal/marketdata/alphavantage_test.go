package marketdata

import (
	"sync"
	"testing"
	"time"
)

func TestRateLimit_ConcurrentCallers(t *testing.T) {
	f := &AlphaVantageFetcher{MinCallDelay: 0}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.rateLimit()
		}()
	}
	wg.Wait()

	if f.lastCall.IsZero() {
		t.Fatal("lastCall not recorded after rateLimit")
	}
}

func TestRateLimit_EnforcesDelay(t *testing.T) {
	f := &AlphaVantageFetcher{MinCallDelay: 20 * time.Millisecond}

	f.rateLimit()
	start := time.Now()
	f.rateLimit()
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Errorf("second call returned after %v, want at least the configured delay", elapsed)
	}
}
