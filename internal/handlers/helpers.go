package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ioscatalog/ios/backend/internal/middleware"
	"github.com/ioscatalog/ios/backend/pkg/logger"
	"github.com/ioscatalog/ios/backend/pkg/response"
)

// parseID reads a numeric path parameter. It writes a 400 and returns false
// when the value is not a positive integer.
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid "+strings.ReplaceAll(name, "_", " "))
		return 0, false
	}
	return uint(id), true
}

// parseCount reads a non-negative integer path parameter.
func parseCount(c *gin.Context, name string) (int, bool) {
	n, err := strconv.Atoi(c.Param(name))
	if err != nil || n < 0 {
		response.BadRequest(c, name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}

// wildcardParam strips the leading slash gin keeps on catch-all parameters.
func wildcardParam(c *gin.Context, name string) string {
	return strings.TrimPrefix(c.Param(name), "/")
}

// callerOr returns ref, or the caller's identity when ref is blank.
func callerOr(c *gin.Context, ref string) string {
	if strings.TrimSpace(ref) != "" {
		return ref
	}
	return middleware.GetUserRef(c)
}

// fail logs err with the request context and writes the matching error response.
func fail(c *gin.Context, op string, err error) {
	status := response.StatusOf(err)
	l := logger.FromGin(c)
	event := l.Warn()
	if status >= http.StatusInternalServerError {
		event = l.Error()
	}
	event.Err(err).Str("op", op).Int("status", status).Str("path", c.Request.URL.Path).Msg("request failed")
	response.Error(c, err)
}
