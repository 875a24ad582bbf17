package iam

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenUse distinguishes access tokens from refresh tokens
type TokenUse string

const (
	TokenUseAccess  TokenUse = "access"
	TokenUseRefresh TokenUse = "refresh"
)

// JWTClaims is the claim set shared by access and refresh tokens. Refresh
// tokens leave Email empty.
type JWTClaims struct {
	jwt.RegisteredClaims
	AccountID int64    `json:"id"`
	Email     string   `json:"email,omitempty"`
	UserRole  Role     `json:"role"`
	Use       TokenUse `json:"token_use"`
}

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// SubjectID parses the subject into an account id
func (c *JWTClaims) SubjectID() (int64, error) {
	return strconv.ParseInt(c.RegisteredClaims.Subject, 10, 64)
}

// Role returns the role claim
func (c *JWTClaims) Role() Role {
	return c.UserRole
}

// HasRole checks the role claim against role
func (c *JWTClaims) HasRole(role Role) bool {
	return c.UserRole == role
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
