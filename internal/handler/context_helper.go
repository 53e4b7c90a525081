package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/edstack/academia-api/internal/middleware"
	"github.com/edstack/academia-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.AccessClaims {
	value, exists := c.Get(middleware.ContextClaimsKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.AccessClaims)
	if !ok {
		return nil
	}
	return claims
}

// tenantFromContext returns the tenant scoping every query for the
// authenticated request. Empty when the route is unauthenticated.
func tenantFromContext(c *gin.Context) string {
	claims := claimsFromContext(c)
	if claims == nil {
		return ""
	}
	return claims.TenantID
}
