package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ioscatalog/ios/backend/internal/middleware"
	"github.com/ioscatalog/ios/backend/internal/services"
	"github.com/ioscatalog/ios/backend/pkg/response"
)

type ReconcileHandler struct {
	queue services.TaskQueue
}

func NewReconcileHandler(queue services.TaskQueue) *ReconcileHandler {
	return &ReconcileHandler{queue: queue}
}

// Trigger queues a ledger reconciliation. ?recount=true also recomputes the
// view and rating counters from the ledger.
// POST /api/ios/admin/reconcile
func (h *ReconcileHandler) Trigger(c *gin.Context) {
	recount := false
	if v := c.Query("recount"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			response.BadRequest(c, "recount must be a boolean")
			return
		}
		recount = parsed
	}

	task := &services.ReconcileTask{
		RecountCounters: recount,
		Reason:          "manual",
		RequestedBy:     middleware.GetUserRef(c),
		RequestedAt:     time.Now(),
	}
	if err := h.queue.Enqueue(task); err != nil {
		fail(c, "enqueue reconcile", err)
		return
	}

	c.JSON(http.StatusAccepted, response.Response{
		Code:    0,
		Message: "queued",
		Data:    gin.H{"recount_counters": recount, "queue_mode": queueMode(h.queue)},
	})
}
