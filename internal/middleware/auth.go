package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ioscatalog/ios/backend/internal/config"
	"github.com/ioscatalog/ios/backend/internal/utils"
	"github.com/ioscatalog/ios/backend/pkg/response"
)

const (
	ContextUserRef  = "user_ref"
	ContextUsername = "username"
	ContextRole     = "role"
)

const RoleAdmin = "admin"

// Identity resolves the caller from an optional bearer token. Requests
// without a token pass through anonymous, or as the configured default user
// when auth is disabled. A token that is present but invalid is rejected.
func Identity(cfg *config.AuthConfig) gin.HandlerFunc {
	return identity(cfg, false)
}

// AuthRequired is Identity that also rejects anonymous callers when auth is
// enabled.
func AuthRequired(cfg *config.AuthConfig) gin.HandlerFunc {
	return identity(cfg, true)
}

func identity(cfg *config.AuthConfig, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			if !cfg.Enabled {
				c.Set(ContextUserRef, utils.NormalizeUserRef(cfg.DefaultUser))
				c.Set(ContextRole, RoleAdmin)
			} else if required {
				response.Unauthorized(c, "authorization header required")
				c.Abort()
				return
			}
			c.Next()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			response.Unauthorized(c, "invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := utils.ParseToken(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextUserRef, claims.UserRef)
		c.Set(ContextUsername, claims.Name)
		c.Set(ContextRole, claims.Role)

		c.Next()
	}
}

// AdminRequired checks for the admin role. With auth disabled every caller
// is treated as admin.
func AdminRequired(cfg *config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Next()
			return
		}
		if GetRole(c) != RoleAdmin {
			response.Forbidden(c, "admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetUserRef returns the caller's user entity ref, or "" for anonymous callers.
func GetUserRef(c *gin.Context) string {
	return c.GetString(ContextUserRef)
}

func GetUsername(c *gin.Context) string {
	return c.GetString(ContextUsername)
}

func GetRole(c *gin.Context) string {
	return c.GetString(ContextRole)
}
