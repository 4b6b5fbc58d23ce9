package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/marcusgoll/cfipros-web-sub000/internal/auth"
	"github.com/marcusgoll/cfipros-web-sub000/internal/logger"
	"github.com/marcusgoll/cfipros-web-sub000/internal/models"
	"github.com/marcusgoll/cfipros-web-sub000/pkg/apperrors"
	"github.com/marcusgoll/cfipros-web-sub000/pkg/contextkeys"
)

// TokenParser verifies access tokens.
type TokenParser interface {
	ParseToken(tokenStr string) (*auth.Claims, error)
}

// AuthMiddleware requires a Bearer token and stores the principal under
// contextkeys.UserIDKey and contextkeys.RoleKey. Browsers cannot set headers on
// websocket upgrades, so a token query parameter is accepted there.
func AuthMiddleware(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			apperrors.HandleError(c, apperrors.NewUnauthorizedError("Authorization header missing or invalid"))
			return
		}

		claims, err := tokens.ParseToken(tokenStr)
		if err != nil {
			apperrors.HandleError(c, apperrors.ErrInvalidToken.WithError(err))
			return
		}

		c.Set(contextkeys.UserIDKey, claims.UserID)
		c.Set(contextkeys.RoleKey, models.UserRole(claims.Role))
		c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), claims.UserID))
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		return c.Query("token")
	}
	return ""
}

// RequireRoles lets through only callers whose role is in roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	roleSet := make(map[models.UserRole]bool, len(roles))
	for _, r := range roles {
		roleSet[r] = true
	}

	return func(c *gin.Context) {
		role, ok := GetRole(c)
		if !ok {
			apperrors.HandleError(c, apperrors.NewForbiddenError("Access denied: no role"))
			return
		}
		if !roleSet[role] {
			apperrors.HandleError(c, apperrors.NewForbiddenError("Access denied: insufficient role"))
			return
		}
		c.Next()
	}
}

func GetUserID(c *gin.Context) string {
	return c.GetString(contextkeys.UserIDKey)
}

func GetRole(c *gin.Context) (models.UserRole, bool) {
	v, exists := c.Get(contextkeys.RoleKey)
	if !exists {
		return "", false
	}
	switch role := v.(type) {
	case models.UserRole:
		return role, true
	case string:
		return models.UserRole(role), true
	}
	return "", false
}
