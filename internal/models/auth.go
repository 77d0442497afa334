package models

import "github.com/golang-jwt/jwt/v5"

// Role enumerates access levels recognised by this API. Tokens are minted
// by the external identity service; this API only validates them.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleScheduler Role = "scheduler"
	RoleDoctor    Role = "doctor"
)

// JWTClaims carries the identity payload embedded in access tokens.
type JWTClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	jwt.RegisteredClaims
}
