package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/edstack/academia-api/internal/models"
	"github.com/edstack/academia-api/pkg/config"
	appErrors "github.com/edstack/academia-api/pkg/errors"
	"github.com/edstack/academia-api/pkg/response"
)

// ContextClaimsKey is the gin context key storing access token claims.
const ContextClaimsKey = "accessClaims"

// Auth protects routes by requiring a valid externally issued access
// token. The token's tenant claim scopes every downstream query; a
// client may pin the expected tenant with X-Tenant-ID and get a
// TENANT_MISMATCH instead of silently reading another tenant.
func Auth(cfg config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := parseAccessToken(parts[1], cfg)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		if pinned := c.GetHeader("X-Tenant-ID"); pinned != "" && pinned != claims.TenantID {
			response.Error(c, appErrors.Clone(appErrors.ErrTenantMismatch, "token is not issued for the requested tenant"))
			c.Abort()
			return
		}

		c.Set(ContextClaimsKey, claims)
		c.Next()
	}
}

func parseAccessToken(raw string, cfg config.AuthConfig) (*models.AccessClaims, error) {
	claims := &models.AccessClaims{}
	options := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}

	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(cfg.TokenSecret), nil
	}, options...)
	if err != nil || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired access token")
	}
	if claims.TenantID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token carries no tenant")
	}
	return claims, nil
}
