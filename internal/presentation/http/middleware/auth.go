package middleware

import (
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	infraRepo "github.com/sangkips/gstbill-desk/internal/infrastructure/repository"
	"github.com/sangkips/gstbill-desk/internal/presentation/http/dto/response"
	"github.com/sangkips/gstbill-desk/pkg/utils"
)

// AccessTokenQueryParam carries the token for clients that cannot set headers,
// such as EventSource and browser WebSockets.
const AccessTokenQueryParam = "access_token"

// AuthMiddleware creates a JWT authentication middleware. The token is read
// from the Authorization header, or from the access_token query parameter.
func AuthMiddleware(jwtManager *utils.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, msg := extractToken(c)
		if tokenString == "" {
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}

		claims, err := jwtManager.ValidateAccessToken(tokenString)
		if err != nil {
			response.Unauthorized(c, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserEmail, claims.Email)
		c.Set(ContextRoles, claims.Roles)
		c.Set(ContextPermissions, claims.Permissions)

		// Services and repositories read identity from the request context.
		ctx := infraRepo.WithUser(c.Request.Context(), claims.UserID)
		if claims.TenantID != uuid.Nil {
			c.Set(ContextTenantID, claims.TenantID)
			ctx = infraRepo.WithTenant(ctx, claims.TenantID)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// extractToken returns the bearer token, or an empty token and the reason
// it is missing.
func extractToken(c *gin.Context) (string, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := c.Query(AccessTokenQueryParam); token != "" {
			return token, ""
		}
		return "", "Authorization header is required"
	}

	// Extract token from "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", "Invalid authorization header format"
	}
	return parts[1], ""
}

// RequirePermission rejects tokens that do not grant permission.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !slices.Contains(c.GetStringSlice(ContextPermissions), permission) {
			response.Forbidden(c, "You do not have permission to perform this action")
			c.Abort()
			return
		}
		c.Next()
	}
}
