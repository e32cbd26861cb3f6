package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ioscatalog/ios/backend/internal/services"
	"gorm.io/gorm"
)

// HealthHandler provides the liveness and component health endpoints.
type HealthHandler struct {
	db    *gorm.DB
	queue services.TaskQueue
	hub   *services.EventHub
}

func NewHealthHandler(db *gorm.DB, queue services.TaskQueue, hub *services.EventHub) *HealthHandler {
	return &HealthHandler{db: db, queue: queue, hub: hub}
}

// Check is the liveness probe.
// GET /health
func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "ios"})
}

// CheckDetail pings the database and reports queue mode and SSE clients.
// GET /health/detail
func (h *HealthHandler) CheckDetail(c *gin.Context) {
	overall := "healthy"
	status := http.StatusOK

	dbStatus := "ok"
	sqlDB, err := h.db.DB()
	if err != nil {
		dbStatus = "error: " + err.Error()
	} else if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		dbStatus = "error: " + err.Error()
	}
	if dbStatus != "ok" {
		overall = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":  overall,
		"service": "ios",
		"components": gin.H{
			"database":    dbStatus,
			"queue_mode":  queueMode(h.queue),
			"sse_clients": h.hub.ClientCount(),
		},
	})
}

func queueMode(queue services.TaskQueue) string {
	if queue != nil && queue.IsAsync() {
		return "async (Redis)"
	}
	return "sync"
}
