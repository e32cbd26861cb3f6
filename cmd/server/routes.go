package main

import (
	"github.com/gin-gonic/gin"
	"github.com/ioscatalog/ios/backend/internal/handlers"
	"github.com/ioscatalog/ios/backend/internal/middleware"
	"github.com/ioscatalog/ios/backend/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	cfg := svc.cfg

	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	// Entity refs contain "/" and arrive percent-encoded in a single segment.
	r.UseRawPath = true
	r.UnescapePathValues = true
	r.Use(middleware.CORS(cfg.Server.AllowOrigins))

	healthHandler := handlers.NewHealthHandler(svc.db, svc.taskQueue, svc.hub)
	metricsHandler := handlers.NewMetricsHandler(svc.db, svc.taskQueue, svc.hub)
	r.GET("/health", healthHandler.Check)
	r.GET("/health/detail", healthHandler.CheckDetail)
	r.GET("/metrics", metricsHandler.Serve)

	projectHandler := handlers.NewProjectHandler(svc.projects)
	ledgerHandler := handlers.NewLedgerHandler(svc.ledger)
	commentHandler := handlers.NewCommentHandler(svc.comments)
	engagementHandler := handlers.NewEngagementHandler(svc.engagement, svc.hub, &cfg.Auth)
	configHandler := handlers.NewConfigHandler(cfg)
	systemLogHandler := handlers.NewSystemLogHandler(svc.auditLogs)
	reconcileHandler := handlers.NewReconcileHandler(svc.taskQueue)

	api := r.Group("/api/ios")
	api.Use(middleware.AuditLog(svc.auditLogs))
	{
		// Reads: identity is optional.
		read := api.Group("", middleware.Identity(&cfg.Auth))
		{
			read.GET("/projects", projectHandler.List)
			read.GET("/projects/:id", projectHandler.GetByEntityRef)
			read.GET("/projects/ref/*entity_ref", projectHandler.GetByEntityRef)
			read.GET("/projects/id/:id", projectHandler.GetByID)
			read.GET("/projects/id/:id/version", projectHandler.GetVersion)
			read.GET("/projects/:id/comments", commentHandler.List)
			read.GET("/projects/replies/:comment_id_ref", commentHandler.Replies)

			read.GET("/ios_members/:project_id", ledgerHandler.GetMembers)
			read.GET("/ios_members/user", ledgerHandler.GetUser)
			read.GET("/ios_members/user/*user_ref", ledgerHandler.GetUser)
			read.POST("/ios_members/views", ledgerHandler.GetViewed)
			read.POST("/ios_members/rates", ledgerHandler.GetRated)

			read.GET("/config/:configId", configHandler.Get)
			read.GET("/events/engagement", engagementHandler.Stream)
		}

		// Writes: identity required when auth is enabled, rate limited per IP.
		write := api.Group("", middleware.AuthRequired(&cfg.Auth), svc.writeLimiter.Middleware())
		{
			write.POST("/projects", projectHandler.Create)
			write.PUT("/projects/:id", projectHandler.Update)
			write.DELETE("/projects/:id", projectHandler.Delete)
			write.PUT("/projects/views/:project_id/:views", projectHandler.UpdateViews)
			write.PUT("/projects/rating/:project_id/:rating", projectHandler.UpdateRating)

			write.POST("/projects/:id/comments", commentHandler.Add)
			write.DELETE("/projects/:id/comments/:comment_id", commentHandler.Delete)

			write.POST("/projects/:id/view", engagementHandler.View)
			write.POST("/projects/:id/rate", engagementHandler.Rate)

			write.POST("/ios_members", ledgerHandler.AddMember)
			write.PUT("/ios_members/:user_id", ledgerHandler.SetMemberProjects)
			write.DELETE("/ios_members/:project_id/:user_id", ledgerHandler.RemoveMember)
			write.PUT("/ios_members/add_view", ledgerHandler.AddView)
			write.PUT("/ios_members/add_rate/:project_id", ledgerHandler.AddRate)
			write.DELETE("/ios_members/rates_del/:project_id", ledgerHandler.RemoveRate)
		}

		admin := api.Group("", middleware.AuthRequired(&cfg.Auth), middleware.AdminRequired(&cfg.Auth))
		{
			admin.GET("/audit-logs", systemLogHandler.List)
			admin.GET("/audit-logs/modules", systemLogHandler.GetModules)
			admin.POST("/admin/reconcile", reconcileHandler.Trigger)
		}
	}
}
