package marketdata

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"CycleSentinel/internal/model"
)

// AlphaVantageFetcher implements Fetcher using the Alpha Vantage digital
// currency endpoints for bars and the CoinGecko simple-price endpoint for
// the spot price. Calls are spaced by a fixed minimum delay because the
// Alpha Vantage free tier allows five calls per minute.
type AlphaVantageFetcher struct {
	Client       *http.Client
	APIKey       string
	CoinGeckoKey string
	Symbol       string
	MinCallDelay time.Duration

	mu       sync.Mutex
	lastCall time.Time
}

// NewAlphaVantageFetcher creates a fetcher with optional proxy support.
func NewAlphaVantageFetcher(apiKey, coinGeckoKey, symbol, proxyURL string, minCallDelay time.Duration) *AlphaVantageFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &AlphaVantageFetcher{
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		APIKey:       apiKey,
		CoinGeckoKey: coinGeckoKey,
		Symbol:       symbol,
		MinCallDelay: minCallDelay,
	}
}

func (f *AlphaVantageFetcher) Name() string { return "alphavantage" }

func (f *AlphaVantageFetcher) rateLimit() {
	f.mu.Lock()
	defer f.mu.Unlock()
	elapsed := time.Since(f.lastCall)
	if elapsed < f.MinCallDelay {
		wait := f.MinCallDelay - elapsed
		log.Printf("[INFO] rate limiting alphavantage: sleeping %v", wait.Round(time.Millisecond))
		time.Sleep(wait)
	}
	f.lastCall = time.Now()
}

// avFunction maps a timeframe key to the Alpha Vantage function and the
// daily resample factor (0 means the endpoint serves the timeframe natively).
func avFunction(timeframe string) (function string, resample int, err error) {
	switch timeframe {
	case "1M":
		return "DIGITAL_CURRENCY_MONTHLY", 0, nil
	case "1W":
		return "DIGITAL_CURRENCY_WEEKLY", 0, nil
	case "1D":
		return "DIGITAL_CURRENCY_DAILY", 0, nil
	case "3D":
		return "DIGITAL_CURRENCY_DAILY", 3, nil
	case "5D":
		return "DIGITAL_CURRENCY_DAILY", 5, nil
	}
	return "", 0, fmt.Errorf("unknown timeframe %q", timeframe)
}

func avSeriesKey(function string) string {
	switch function {
	case "DIGITAL_CURRENCY_MONTHLY":
		return "Time Series (Digital Currency Monthly)"
	case "DIGITAL_CURRENCY_WEEKLY":
		return "Time Series (Digital Currency Weekly)"
	}
	return "Time Series (Digital Currency Daily)"
}

// FetchTimeframe fetches bars for one timeframe, resampling 3D/5D from
// daily bars, and computes the derived series the roster consumes.
func (f *AlphaVantageFetcher) FetchTimeframe(timeframe string, barCount int) (*model.TimeframeDataset, error) {
	function, resample, err := avFunction(timeframe)
	if err != nil {
		return nil, err
	}

	fetchCount := barCount
	if resample > 0 {
		fetchCount = barCount * resample
	}
	bars, err := f.fetchBars(function, fetchCount)
	if err != nil {
		return nil, err
	}
	if resample > 0 {
		bars = ResampleBars(bars, resample)
	}
	if len(bars) > barCount {
		bars = bars[len(bars)-barCount:]
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("alphavantage: no bars for %s", timeframe)
	}

	return &model.TimeframeDataset{
		Symbol:    f.Symbol,
		Timeframe: timeframe,
		Bars:      bars,
		Series:    ComputeSeries(bars),
		FetchedAt: time.Now(),
	}, nil
}

func (f *AlphaVantageFetcher) fetchBars(function string, barCount int) ([]model.OHLCV, error) {
	f.rateLimit()

	u := fmt.Sprintf("https://www.alphavantage.co/query?function=%s&symbol=BTC&market=USD&apikey=%s",
		function, url.QueryEscape(f.APIKey))

	resp, err := f.Client.Get(u)
	if err != nil {
		return nil, fmt.Errorf("alphavantage fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("alphavantage read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("alphavantage: status %d, body: %s", resp.StatusCode, string(body))
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("alphavantage decode: %w", err)
	}
	if msg, ok := payload["Error Message"]; ok {
		return nil, fmt.Errorf("alphavantage api error: %s", string(msg))
	}
	if msg, ok := payload["Note"]; ok {
		return nil, fmt.Errorf("alphavantage rate limited: %s", string(msg))
	}

	raw, ok := payload[avSeriesKey(function)]
	if !ok {
		return nil, fmt.Errorf("alphavantage: no time series in response")
	}
	var series map[string]map[string]string
	if err := json.Unmarshal(raw, &series); err != nil {
		return nil, fmt.Errorf("alphavantage decode series: %w", err)
	}

	bars := make([]model.OHLCV, 0, len(series))
	for dateStr, values := range series {
		ts, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		bars = append(bars, model.OHLCV{
			Time:   ts,
			Open:   avField(values, "1a. open (USD)", "1. open"),
			High:   avField(values, "2a. high (USD)", "2. high"),
			Low:    avField(values, "3a. low (USD)", "3. low"),
			Close:  avField(values, "4a. close (USD)", "4. close"),
			Volume: avField(values, "5. volume", "5. volume"),
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("alphavantage: empty time series")
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	if len(bars) > barCount {
		bars = bars[len(bars)-barCount:]
	}
	return bars, nil
}

// avField tolerates both the legacy "(USD)" keys and the plain keys the API
// has served at different times.
func avField(values map[string]string, key, altKey string) float64 {
	s, ok := values[key]
	if !ok {
		s = values[altKey]
	}
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// CurrentPrice fetches the BTC spot price from CoinGecko, falling back to
// the Pro endpoint when a key is configured.
func (f *AlphaVantageFetcher) CurrentPrice() (float64, error) {
	price, err := f.coinGeckoPrice("https://api.coingecko.com/api/v3/simple/price", "")
	if err == nil {
		return price, nil
	}
	if f.CoinGeckoKey != "" {
		log.Printf("[WARN] coingecko free api failed: %v, trying pro", err)
		return f.coinGeckoPrice("https://pro-api.coingecko.com/api/v3/simple/price", f.CoinGeckoKey)
	}
	return 0, err
}

func (f *AlphaVantageFetcher) coinGeckoPrice(base, key string) (float64, error) {
	u := base + "?ids=bitcoin&vs_currencies=usd"
	if key != "" {
		u += "&x_cg_pro_api_key=" + url.QueryEscape(key)
	}

	resp, err := f.Client.Get(u)
	if err != nil {
		return 0, fmt.Errorf("coingecko fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("coingecko: status %d, body: %s", resp.StatusCode, string(body))
	}

	var payload map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("coingecko decode: %w", err)
	}
	price, ok := payload["bitcoin"]["usd"]
	if !ok {
		return 0, fmt.Errorf("coingecko: no bitcoin price in response")
	}
	return price, nil
}

// ResampleBars aggregates consecutive daily bars into factor-day bars,
// anchored so the newest bar ends at the newest daily bar.
func ResampleBars(daily []model.OHLCV, factor int) []model.OHLCV {
	if factor <= 1 || len(daily) == 0 {
		return daily
	}
	out := make([]model.OHLCV, 0, len(daily)/factor+1)
	for end := len(daily); end > 0; end -= factor {
		start := end - factor
		if start < 0 {
			start = 0
		}
		chunk := daily[start:end]
		bar := model.OHLCV{
			Time:  chunk[0].Time,
			Open:  chunk[0].Open,
			High:  chunk[0].High,
			Low:   chunk[0].Low,
			Close: chunk[len(chunk)-1].Close,
		}
		for _, b := range chunk {
			if b.High > bar.High {
				bar.High = b.High
			}
			if b.Low < bar.Low {
				bar.Low = b.Low
			}
			bar.Volume += b.Volume
		}
		out = append(out, bar)
	}
	// Built newest-first; restore chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
