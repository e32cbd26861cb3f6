package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ioscatalog/ios/backend/internal/config"
	"github.com/ioscatalog/ios/backend/pkg/response"
)

// ConfigHandler serves values from the ios section of the configuration to
// the frontend plugin.
type ConfigHandler struct {
	cfg *config.Config
}

func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

// Get answers {"response": value}, the shape the frontend plugin reads.
// GET /api/ios/config/:configId
func (h *ConfigHandler) Get(c *gin.Context) {
	key := c.Param("configId")
	value, ok := h.cfg.Value(key)
	if !ok {
		response.NotFound(c, "config key not found: "+key)
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": value})
}
