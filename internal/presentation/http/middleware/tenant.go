package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sangkips/gstbill-desk/internal/presentation/http/dto/response"
)

// Gin context keys set by AuthMiddleware.
const (
	ContextUserID      = "user_id"
	ContextUserEmail   = "user_email"
	ContextRoles       = "user_roles"
	ContextPermissions = "user_permissions"
	ContextTenantID    = "tenant_id"
)

// RequireTenant rejects tokens without a tenant claim. Print history is
// stored per tenant.
func RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetTenantID(c) == uuid.Nil {
			response.BadRequest(c, "Tenant context required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetTenantID returns the caller's tenant, or uuid.Nil.
func GetTenantID(c *gin.Context) uuid.UUID {
	return contextUUID(c, ContextTenantID)
}

// GetUserID returns the authenticated user, or uuid.Nil.
func GetUserID(c *gin.Context) uuid.UUID {
	return contextUUID(c, ContextUserID)
}

func contextUUID(c *gin.Context, key string) uuid.UUID {
	v, _ := c.Get(key)
	id, _ := v.(uuid.UUID)
	return id
}
