package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/ioscatalog/ios/backend/internal/services"
	"github.com/ioscatalog/ios/backend/pkg/response"
)

type SystemLogHandler struct {
	systemLogService *services.SystemLogService
}

func NewSystemLogHandler(logs *services.SystemLogService) *SystemLogHandler {
	return &SystemLogHandler{systemLogService: logs}
}

// GET /api/ios/audit-logs
func (h *SystemLogHandler) List(c *gin.Context) {
	var req services.SystemLogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.systemLogService.List(c.Request.Context(), &req)
	if err != nil {
		fail(c, "list audit logs", err)
		return
	}
	response.Success(c, resp)
}

// GET /api/ios/audit-logs/modules
func (h *SystemLogHandler) GetModules(c *gin.Context) {
	modules, err := h.systemLogService.GetModules(c.Request.Context())
	if err != nil {
		fail(c, "list audit modules", err)
		return
	}
	response.Success(c, gin.H{"modules": modules})
}
