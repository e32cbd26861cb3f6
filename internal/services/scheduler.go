package services

import (
	"context"
	"time"

	"github.com/ioscatalog/ios/backend/internal/config"
	"github.com/ioscatalog/ios/backend/pkg/logger"
	"github.com/robfig/cron/v3"
)

const jobLockTTL = time.Hour

// Scheduler runs the periodic jobs: ledger reconciliation through the task
// queue and audit log retention. With a locker, each tick runs on one
// instance only.
type Scheduler struct {
	cron      *cron.Cron
	queue     TaskQueue
	auditLogs *SystemLogService
	locks     *JobLocker
	cfg       *config.Config
}

func NewScheduler(cfg *config.Config, queue TaskQueue, auditLogs *SystemLogService, locks *JobLocker) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		queue:     queue,
		auditLogs: auditLogs,
		locks:     locks,
		cfg:       cfg,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if s.cfg.Reconcile.Enabled && s.cfg.Reconcile.Cron != "" {
		if _, err := s.cron.AddFunc(s.cfg.Reconcile.Cron, s.enqueueReconcile); err != nil {
			return err
		}
		logger.Info().Str("cron", s.cfg.Reconcile.Cron).Msg("[Scheduler] reconcile scheduled")
	}

	if s.cfg.Audit.RetentionDays > 0 {
		if _, err := s.cron.AddFunc("@daily", s.cleanupAuditLogs); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// claim reports whether this instance should run the job's current tick.
func (s *Scheduler) claim(job string) bool {
	if s.locks == nil {
		return true
	}
	runKey := s.locks.now().UTC().Truncate(time.Minute).Format(time.RFC3339)
	ok, err := s.locks.TryAcquire(context.Background(), job, runKey, jobLockTTL)
	if err != nil {
		logger.Error().Err(err).Str("job", job).Msg("[Scheduler] failed to acquire job lock")
		return false
	}
	if !ok {
		logger.Debug().Str("job", job).Str("run_key", runKey).Msg("[Scheduler] run claimed by another instance")
	}
	return ok
}

func (s *Scheduler) enqueueReconcile() {
	if !s.claim("reconcile") {
		return
	}
	task := &ReconcileTask{
		RecountCounters: s.cfg.Reconcile.RecountCounters,
		Reason:          "cron",
		RequestedAt:     time.Now(),
	}
	if err := s.queue.Enqueue(task); err != nil {
		logger.Error().Err(err).Msg("[Scheduler] failed to enqueue reconcile task")
	}
}

func (s *Scheduler) cleanupAuditLogs() {
	if !s.claim("audit-retention") {
		return
	}
	if s.locks != nil {
		if _, err := s.locks.PurgeExpired(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("[Scheduler] failed to purge job locks")
		}
	}
	deleted, err := s.auditLogs.CleanupOldLogs(context.Background(), s.cfg.Audit.RetentionDays)
	if err != nil {
		logger.Error().Err(err).Msg("[Scheduler] failed to clean up audit logs")
		return
	}
	if deleted > 0 {
		logger.Info().Int64("deleted", deleted).Int("retention_days", s.cfg.Audit.RetentionDays).Msg("[Scheduler] audit logs cleaned up")
	}
}
