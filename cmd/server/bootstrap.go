package main

import (
	"fmt"

	"github.com/ioscatalog/ios/backend/internal/config"
	"github.com/ioscatalog/ios/backend/internal/middleware"
	"github.com/ioscatalog/ios/backend/internal/models"
	"github.com/ioscatalog/ios/backend/internal/services"
	"github.com/ioscatalog/ios/backend/internal/utils"
	"github.com/ioscatalog/ios/backend/pkg/logger"
	"gorm.io/gorm"
)

// appServices holds the services and background workers shared by the routes.
type appServices struct {
	cfg *config.Config
	db  *gorm.DB
	hub *services.EventHub

	projects   *services.ProjectService
	ledger     *services.LedgerService
	comments   *services.CommentService
	engagement *services.EngagementService
	auditLogs  *services.SystemLogService
	reconcile  *services.ReconcileService

	taskQueue    services.TaskQueue
	worker       *services.Worker
	scheduler    *services.Scheduler
	writeLimiter *middleware.RateLimiter
}

// bootstrap connects the database, migrates it and starts the background
// workers.
func bootstrap(cfg *config.Config) (*appServices, error) {
	utils.SetJWTSecret(cfg.Auth.Secret)

	if err := models.InitDB(&cfg.Database, cfg.Server.Mode == "debug"); err != nil {
		return nil, err
	}
	if err := models.AutoMigrate(models.GetDB()); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	svc := newAppServices(cfg, models.GetDB(), services.NewTaskQueue(&cfg.Redis))

	if cfg.Redis.Enabled && svc.taskQueue.IsAsync() {
		svc.worker = services.NewWorker(&cfg.Redis)
		if svc.worker != nil {
			svc.worker.SetProcessor(svc.reconcile.ProcessTask)
			if err := svc.worker.Start(); err != nil {
				return nil, fmt.Errorf("failed to start worker: %w", err)
			}
		}
	}

	svc.scheduler = services.NewScheduler(cfg, svc.taskQueue, svc.auditLogs, services.NewJobLocker(svc.db))
	if err := svc.scheduler.Start(); err != nil {
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}
	logger.Info().Int("jobs", svc.scheduler.Entries()).Msg("Scheduler started")

	return svc, nil
}

// newAppServices wires the services over db without starting anything.
func newAppServices(cfg *config.Config, db *gorm.DB, queue services.TaskQueue) *appServices {
	hub := services.NewEventHub()
	projects := services.NewProjectService(db)
	reconcile := services.NewReconcileService(db)

	if syncQueue, ok := queue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(reconcile.ProcessTask)
	}

	return &appServices{
		cfg:          cfg,
		db:           db,
		hub:          hub,
		projects:     projects,
		ledger:       services.NewLedgerService(db),
		comments:     services.NewCommentService(db, projects),
		engagement:   services.NewEngagementService(db, hub),
		auditLogs:    services.NewSystemLogService(db),
		reconcile:    reconcile,
		taskQueue:    queue,
		writeLimiter: middleware.NewRateLimiter(cfg.Server.WriteRPS, cfg.Server.WriteBurst),
	}
}

// shutdown stops the background workers and closes the database.
func (s *appServices) shutdown() {
	if s.scheduler != nil {
		s.scheduler.Stop()
		logger.Info().Msg("Scheduler stopped")
	}
	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		if err := s.taskQueue.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close task queue")
		}
	}
	s.writeLimiter.Close()

	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.Close()
	}
}
