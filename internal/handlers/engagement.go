package handlers

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ioscatalog/ios/backend/internal/config"
	"github.com/ioscatalog/ios/backend/internal/middleware"
	"github.com/ioscatalog/ios/backend/internal/services"
	"github.com/ioscatalog/ios/backend/internal/utils"
	"github.com/ioscatalog/ios/backend/pkg/logger"
	"github.com/ioscatalog/ios/backend/pkg/response"
)

// EngagementHandler exposes the view and rating flows and streams their
// events over SSE.
type EngagementHandler struct {
	engagement *services.EngagementService
	hub        *services.EventHub
	auth       *config.AuthConfig
}

func NewEngagementHandler(engagement *services.EngagementService, hub *services.EventHub, auth *config.AuthConfig) *EngagementHandler {
	return &EngagementHandler{engagement: engagement, hub: hub, auth: auth}
}

// View counts the caller's first view of a project.
// POST /api/ios/projects/:id/view
func (h *EngagementHandler) View(c *gin.Context) {
	projectID, ok := parseID(c, "id")
	if !ok {
		return
	}
	userRef := middleware.GetUserRef(c)
	if userRef == "" {
		response.Unauthorized(c, "caller identity required")
		return
	}

	result, err := h.engagement.OnProjectViewed(c.Request.Context(), userRef, projectID)
	if err != nil {
		fail(c, "record project view", err)
		return
	}
	response.Success(c, result)
}

// Rate toggles the caller's rating of a project.
// POST /api/ios/projects/:id/rate
func (h *EngagementHandler) Rate(c *gin.Context) {
	projectID, ok := parseID(c, "id")
	if !ok {
		return
	}
	userRef := middleware.GetUserRef(c)
	if userRef == "" {
		response.Unauthorized(c, "caller identity required")
		return
	}

	result, err := h.engagement.OnRatingToggled(c.Request.Context(), userRef, projectID)
	if err != nil {
		fail(c, "toggle project rating", err)
		return
	}
	response.Success(c, result)
}

// Stream sends engagement events as Server-Sent Events. Browsers cannot set
// headers on EventSource, so the token may also come as ?token=.
// GET /api/ios/events/engagement
func (h *EngagementHandler) Stream(c *gin.Context) {
	userRef := middleware.GetUserRef(c)
	if token := c.Query("token"); userRef == "" && token != "" {
		claims, err := utils.ParseToken(token)
		if err != nil {
			response.Unauthorized(c, "invalid token")
			return
		}
		userRef = claims.UserRef
	}
	if h.auth.Enabled && userRef == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	clientID := uuid.New().String()
	events := h.hub.Subscribe(clientID)
	defer h.hub.Unsubscribe(clientID)

	log := logger.FromGin(c)
	log.Info().Str("client_id", clientID).Str("user_ref", userRef).Int("total", h.hub.ClientCount()).Msg("SSE client connected")

	fmt.Fprintf(c.Writer, ": connected %s\n\n", clientID)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			data, err := json.Marshal(event)
			if err != nil {
				log.Error().Err(err).Msg("SSE marshal error")
				return true
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Kind, data)
			return true
		case <-c.Request.Context().Done():
			log.Info().Str("client_id", clientID).Msg("SSE client disconnected")
			return false
		}
	})
}
