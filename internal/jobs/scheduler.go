package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/karloscodes/cartridge"

	"blogstats/internal/config"
)

// Scheduler runs the background maintenance jobs.
// It implements cartridge.BackgroundWorker.
type Scheduler struct {
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	interval  time.Duration
	isRunning bool

	// Prevents overlapping executions when a run outlasts the interval.
	processingMutex sync.Mutex
	isProcessing    bool

	sessionPrune *SessionPruneJob
	ticker       *time.Ticker
}

var _ cartridge.BackgroundWorker = (*Scheduler)(nil)

func NewScheduler(dbManager cartridge.DBManager, logger *slog.Logger, cfg *config.Config) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	interval := time.Duration(cfg.JobIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	return &Scheduler{
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
		interval:     interval,
		sessionPrune: NewSessionPruneJob(dbManager, logger, cfg.SessionRetentionDays),
	}
}

// executeJobSafely runs a job only if no other job is currently executing
func (s *Scheduler) executeJobSafely(jobName string, jobFunc func() error) {
	s.processingMutex.Lock()
	if s.isProcessing {
		s.logger.Debug("Skipping job execution - previous job still running", slog.String("job", jobName))
		s.processingMutex.Unlock()
		return
	}
	s.isProcessing = true
	s.processingMutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", jobName),
				slog.Any("panic", r))
		}

		s.processingMutex.Lock()
		s.isProcessing = false
		s.processingMutex.Unlock()
	}()

	if err := jobFunc(); err != nil {
		s.logger.Error("Error executing job", slog.String("job", jobName), slog.Any("error", err))
	}
}

func (s *Scheduler) pruneSessions() error {
	_, err := s.sessionPrune.Run()
	return err
}

// Start runs the session prune job once and then on every interval tick.
func (s *Scheduler) Start() error {
	if s.isRunning {
		s.logger.Info("Background jobs already running.")
		return nil
	}
	s.isRunning = true

	s.logger.Info("Starting session prune job", slog.Duration("interval", s.interval))
	s.ticker = time.NewTicker(s.interval)

	go func() {
		s.executeJobSafely("session_prune", s.pruneSessions)

		for {
			select {
			case <-s.ticker.C:
				s.executeJobSafely("session_prune", s.pruneSessions)
			case <-s.ctx.Done():
				s.logger.Info("Session prune job stopped")
				return
			}
		}
	}()

	return nil
}

// Stop halts all background jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background jobs...")

	if s.ticker != nil {
		s.ticker.Stop()
	}

	s.cancel()
	s.isRunning = false
}

// IsRunning returns whether jobs are currently running
func (s *Scheduler) IsRunning() bool {
	return s.isRunning
}

// PruneSessions runs the session prune job immediately.
func (s *Scheduler) PruneSessions() (int64, error) {
	return s.sessionPrune.Run()
}
