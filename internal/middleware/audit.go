package middleware

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/ioscatalog/ios/backend/internal/services"
	"github.com/ioscatalog/ios/backend/pkg/logger"
)

const maxAuditBody = 2000

// AuditLog records write requests (POST/PUT/DELETE) to the audit log.
func AuditLog(logs *services.SystemLogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if method != http.MethodPost && method != http.MethodPut && method != http.MethodDelete {
			c.Next()
			return
		}

		var bodySnippet string
		if c.Request.Body != nil {
			bodyBytes, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			bodySnippet = string(bodyBytes)
			bodySnippet = truncateBody(bodySnippet, maxAuditBody)
			bodySnippet = maskSensitiveFields(bodySnippet)
		}

		c.Next()

		status := c.Writer.Status()
		userRef := GetUserRef(c)
		module, action := parseRouteInfo(c.FullPath(), method)

		level := "info"
		if status >= http.StatusBadRequest {
			level = "warning"
		}

		logs.Record(c.Request.Context(), services.AuditEntry{
			Level:     level,
			Module:    module,
			Action:    action,
			Message:   formatAuditMessage(userRef, method, c.Request.URL.Path, status),
			UserRef:   userRef,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Extra: map[string]interface{}{
				"method":     method,
				"path":       c.Request.URL.Path,
				"status":     status,
				"body":       bodySnippet,
				"request_id": logger.RequestID(c),
			},
		})
	}
}

// truncateBody cuts s to at most limit bytes without splitting a rune.
func truncateBody(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "...[truncated]"
}

// parseRouteInfo derives module and action from a gin route pattern.
// "/api/ios/projects/:id" with PUT gives ("projects", "update").
func parseRouteInfo(fullPath, method string) (module, action string) {
	path := strings.TrimPrefix(fullPath, "/api/ios/")
	path = strings.TrimPrefix(path, "/")

	module = strings.SplitN(path, "/", 2)[0]
	if module == "" {
		module = "unknown"
	}

	switch method {
	case http.MethodPost:
		action = "create"
	case http.MethodPut:
		action = "update"
	case http.MethodDelete:
		action = "delete"
	default:
		action = strings.ToLower(method)
	}

	return module, action
}

func formatAuditMessage(userRef, method, path string, status int) string {
	if userRef == "" {
		userRef = "anonymous"
	}
	outcome := "OK"
	if status < 200 || status >= 300 {
		outcome = "Failed"
	}
	return fmt.Sprintf("[Audit] %s %s %s -> %s (%d)", userRef, method, path, outcome, status)
}

// maskSensitiveFields replaces sensitive values in a JSON body.
func maskSensitiveFields(body string) string {
	sensitiveKeys := []string{"password", "secret", "token", "access_token"}
	lower := strings.ToLower(body)
	for _, key := range sensitiveKeys {
		if strings.Contains(lower, key) {
			body = maskJSONValue(body, key)
		}
	}
	return body
}

// maskJSONValue masks the first string value of key. Best effort, not a
// JSON parser.
func maskJSONValue(body, key string) string {
	lower := strings.ToLower(body)
	idx := strings.Index(lower, "\""+key+"\"")
	if idx == -1 {
		return body
	}

	colonIdx := strings.Index(body[idx+len(key)+2:], ":")
	if colonIdx == -1 {
		return body
	}
	valueStart := idx + len(key) + 2 + colonIdx + 1

	for valueStart < len(body) && (body[valueStart] == ' ' || body[valueStart] == '\t') {
		valueStart++
	}
	if valueStart >= len(body) || body[valueStart] != '"' {
		return body
	}

	endQuote := strings.Index(body[valueStart+1:], "\"")
	if endQuote == -1 {
		return body
	}
	return body[:valueStart+1] + "***" + body[valueStart+1+endQuote:]
}
