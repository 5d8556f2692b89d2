package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"CycleSentinel/internal/analysis"
	"CycleSentinel/internal/config"
	"CycleSentinel/internal/export"
	"CycleSentinel/internal/marketdata"
	"CycleSentinel/internal/model"
	"CycleSentinel/internal/notifier"
	"CycleSentinel/internal/recorder"
	"CycleSentinel/internal/scheduler"
	"CycleSentinel/internal/timeframe"

	"github.com/joho/godotenv"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	daemon := flag.Bool("daemon", false, "run the cron scheduler and Telegram polling instead of a single analysis")
	status := flag.Bool("status", false, "print cache and database status and exit")
	cleanup := flag.Int("cleanup", 0, "purge records older than N days and exit")
	flag.Parse()

	if err := godotenv.Load(); err == nil {
		log.Println("[INFO] loaded .env file")
	}

	log.Println("[INFO] CycleSentinel starting...")

	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Init fetcher
	var fetcher marketdata.Fetcher
	if cfg.DataSource.AlphaVantageKey != "" {
		fetcher = marketdata.NewAlphaVantageFetcher(
			cfg.DataSource.AlphaVantageKey, cfg.DataSource.CoinGeckoKey,
			cfg.DataSource.Symbol, cfg.Proxy,
			time.Duration(cfg.DataSource.MinCallDelaySec)*time.Second)
	} else {
		log.Println("[WARN] no Alpha Vantage key configured, using synthetic market data")
		fetcher = syntheticFetcher(cfg.DataSource.BarCount)
	}
	log.Printf("[INFO] data source: %s", fetcher.Name())

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	coord := analysis.New(cfg, fetcher, marketdata.UnavailableMetrics{})

	if *status {
		printStatus(coord, rec)
		return
	}
	if *cleanup > 0 {
		runCleanup(rec, *cleanup)
		return
	}

	exp, err := export.New(cfg.Export.OutputDir)
	if err != nil {
		log.Fatalf("[FATAL] init exporter: %v", err)
	}

	// Init Telegram notifier
	var tn notifier.Notifier = notifier.NoopNotifier{}
	var tg *notifier.TelegramNotifier
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		tg = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		tn = tg
	} else {
		log.Println("[INFO] Telegram not configured, notifications disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.NewScheduler(ctx, coord, rec, exp, tn, cfg.Database.RetentionDays)

	if !*daemon {
		// One-shot: run a full analysis and exit.
		run := sched.RunNow()
		if run.Error != "" {
			log.Fatalf("[FATAL] analysis run failed: %s", run.Error)
		}
		return
	}

	if err := sched.RegisterAll(cfg.Schedule.MorningCron, cfg.Schedule.EveningCron, cfg.Schedule.CleanupCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	if tg != nil {
		go tg.StartPolling(ctx, sched.HandleCommand)
		log.Println("[INFO] Telegram polling started")
	}

	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, executing analysis now")
		go sched.RunNow()
	}

	log.Println("[INFO] CycleSentinel is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()
	log.Println("[INFO] CycleSentinel stopped")
}

// syntheticFetcher builds a deterministic in-memory data source so the
// pipeline stays runnable without API credentials.
func syntheticFetcher(barCount int) marketdata.Fetcher {
	datasets := make(map[string]*model.TimeframeDataset, len(timeframe.Timeframes))
	for _, tf := range timeframe.Timeframes {
		datasets[tf] = marketdata.GenerateDataset(60000, tf, barCount)
	}
	return &marketdata.MockFetcher{Price: 60000, Datasets: datasets}
}

func printStatus(coord *analysis.Coordinator, rec recorder.Recorder) {
	for _, tf := range timeframe.Timeframes {
		st := coord.Cache().Status()[tf]
		state := "not cached"
		if st.Cached {
			state = fmt.Sprintf("cached, %.0f min old", st.AgeMinutes)
		}
		fmt.Printf("%-4s %s\n", tf, state)
	}
	stats, err := rec.Stats()
	if err != nil {
		log.Fatalf("[FATAL] read stats: %v", err)
	}
	fmt.Printf("calculations: %d\nindicator rows: %d\nruns last 24h: %d\ndb size: %d bytes\n",
		stats.Calculations, stats.IndicatorResults, stats.RunsLast24h, stats.SizeBytes)
}

func runCleanup(rec recorder.Recorder, retentionDays int) {
	removed, err := rec.Cleanup(retentionDays)
	if err != nil {
		log.Fatalf("[FATAL] cleanup: %v", err)
	}
	log.Printf("[INFO] removed %d calculations older than %d days", removed, retentionDays)
}
