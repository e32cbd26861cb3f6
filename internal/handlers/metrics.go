package handlers

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ioscatalog/ios/backend/internal/models"
	"github.com/ioscatalog/ios/backend/internal/services"
	"gorm.io/gorm"
)

// MetricsHandler writes Prometheus text format gauges.
type MetricsHandler struct {
	db      *gorm.DB
	queue   services.TaskQueue
	hub     *services.EventHub
	started time.Time
}

func NewMetricsHandler(db *gorm.DB, queue services.TaskQueue, hub *services.EventHub) *MetricsHandler {
	return &MetricsHandler{db: db, queue: queue, hub: hub, started: time.Now()}
}

type kindCount struct {
	Kind  models.LedgerKind
	Total int64
}

// GET /metrics
func (h *MetricsHandler) Serve(c *gin.Context) {
	var b strings.Builder

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	writeGauge(&b, "ios_uptime_seconds", "Time since server start in seconds", time.Since(h.started).Seconds())
	writeGauge(&b, "ios_goroutines", "Number of active goroutines", float64(runtime.NumGoroutine()))
	writeGauge(&b, "ios_memory_alloc_bytes", "Current heap allocation in bytes", float64(m.Alloc))
	writeGauge(&b, "ios_gc_runs_total", "Total number of GC runs", float64(m.NumGC))

	if sqlDB, err := h.db.DB(); err == nil {
		stats := sqlDB.Stats()
		writeGauge(&b, "ios_db_open_connections", "Number of open DB connections", float64(stats.OpenConnections))
		writeGauge(&b, "ios_db_in_use_connections", "Number of in-use DB connections", float64(stats.InUse))
		writeGauge(&b, "ios_db_idle_connections", "Number of idle DB connections", float64(stats.Idle))
	}

	writeGauge(&b, "ios_sse_active_clients", "Number of active SSE connections", float64(h.hub.ClientCount()))

	queueAsync := 0.0
	if h.queue != nil && h.queue.IsAsync() {
		queueAsync = 1.0
	}
	writeGauge(&b, "ios_queue_async_enabled", "Whether the Redis queue is enabled (1=yes, 0=no)", queueAsync)

	db := h.db.WithContext(c.Request.Context())
	var projects, comments, users int64
	db.Model(&models.Project{}).Count(&projects)
	db.Model(&models.Comment{}).Count(&comments)
	db.Model(&models.User{}).Count(&users)
	writeGauge(&b, "ios_projects_total", "Number of catalog projects", float64(projects))
	writeGauge(&b, "ios_comments_total", "Number of comments and replies", float64(comments))
	writeGauge(&b, "ios_users_total", "Number of users known to the ledger", float64(users))

	counts := map[models.LedgerKind]int64{models.KindMember: 0, models.KindViewed: 0, models.KindRated: 0}
	var rows []kindCount
	db.Model(&models.LedgerEntry{}).Select("kind, COUNT(*) AS total").Group("kind").Scan(&rows)
	for _, r := range rows {
		counts[r.Kind] = r.Total
	}
	fmt.Fprintf(&b, "# HELP ios_ledger_entries Ledger rows by kind\n# TYPE ios_ledger_entries gauge\n")
	for _, kind := range []models.LedgerKind{models.KindMember, models.KindViewed, models.KindRated} {
		fmt.Fprintf(&b, "ios_ledger_entries{kind=%q} %d\n", kind, counts[kind])
	}
	b.WriteString("\n")

	c.Data(200, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
}

func writeGauge(b *strings.Builder, name, help string, value float64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s gauge\n", name)
	fmt.Fprintf(b, "%s %g\n\n", name, value)
}
