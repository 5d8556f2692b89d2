package scheduler

import (
	"context"
	"fmt"
	"log"

	"CycleSentinel/internal/analysis"
	"CycleSentinel/internal/export"
	"CycleSentinel/internal/model"
	"CycleSentinel/internal/notifier"
	"CycleSentinel/internal/recorder"

	"github.com/robfig/cron/v3"
)

// Scheduler manages the twice-daily analysis runs and the weekly
// retention cleanup.
type Scheduler struct {
	Cron        *cron.Cron
	Coordinator *analysis.Coordinator
	Recorder    recorder.Recorder
	Exporter    *export.Exporter
	Notifier    notifier.Notifier
	Retention   int
	Ctx         context.Context
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, coord *analysis.Coordinator, rec recorder.Recorder, exp *export.Exporter, tn notifier.Notifier, retentionDays int) *Scheduler {
	return &Scheduler{
		Cron:        cron.New(cron.WithSeconds()),
		Coordinator: coord,
		Recorder:    rec,
		Exporter:    exp,
		Notifier:    tn,
		Retention:   retentionDays,
		Ctx:         ctx,
	}
}

// RegisterAll registers the morning, evening, and cleanup tasks.
func (s *Scheduler) RegisterAll(morningCron, eveningCron, cleanupCron string) error {
	if _, err := s.Cron.AddFunc(morningCron, s.analysisTask); err != nil {
		return fmt.Errorf("register morning task: %w", err)
	}
	if _, err := s.Cron.AddFunc(eveningCron, s.analysisTask); err != nil {
		return fmt.Errorf("register evening task: %w", err)
	}
	if _, err := s.Cron.AddFunc(cleanupCron, s.cleanupTask); err != nil {
		return fmt.Errorf("register cleanup task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	log.Println("[INFO] scheduler stopped")
}

// RunNow executes a full analysis immediately (manual trigger / RUN_ON_START)
// and returns the run result.
func (s *Scheduler) RunNow() *model.RunResult {
	return s.analysisRun()
}

func (s *Scheduler) analysisTask() {
	s.analysisRun()
}

// analysisRun executes one full pipeline: refresh data, analyze both sides,
// persist, export, notify. Persistence and export failures are logged but
// never abort the run.
func (s *Scheduler) analysisRun() *model.RunResult {
	log.Println("[INFO] running scheduled analysis")
	run := s.Coordinator.Run(true)

	if err := s.Recorder.RecordRun(run); err != nil {
		log.Printf("[ERROR] record run: %v", err)
	}
	if s.Exporter != nil {
		if err := s.Exporter.WriteAll(run); err != nil {
			log.Printf("[ERROR] export run: %v", err)
		}
	}
	s.trySend(notifier.FormatRunReport(run))
	return run
}

func (s *Scheduler) cleanupTask() {
	log.Println("[INFO] running retention cleanup")
	removed, err := s.Recorder.Cleanup(s.Retention)
	if err != nil {
		log.Printf("[ERROR] cleanup: %v", err)
		s.trySend(fmt.Sprintf("❌ Cleanup failed: %v", err))
		return
	}
	log.Printf("[INFO] cleanup removed %d calculations", removed)
	s.trySend(notifier.FormatCleanupReport(removed, s.Retention))
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	switch command {
	case "/run":
		s.analysisTask()
		return ""
	case "/status":
		stats, err := s.Recorder.Stats()
		if err != nil {
			log.Printf("[ERROR] read stats: %v", err)
			stats = nil
		}
		return notifier.FormatCacheStatus(s.Coordinator.Cache().Status(), stats)
	case "/cleanup":
		s.cleanupTask()
		return ""
	default:
		return "Available commands:\n• /run - run analysis now\n• /status - cache and database status\n• /cleanup - purge old records"
	}
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
