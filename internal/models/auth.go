package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents a coarse role within a tenant.
type UserRole string

// Roles recognised by route gates.
const (
	RoleAdmin   UserRole = "admin"
	RoleHOD     UserRole = "hod"
	RoleFaculty UserRole = "faculty"
	RoleStudent UserRole = "student"
)

// AccessClaims are the claims carried by externally issued access
// tokens. Subject is the identity provider's opaque subject identifier.
type AccessClaims struct {
	TenantID string   `json:"tenant_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email,omitempty"`
	jwt.RegisteredClaims
}
