package auth

import (
	"github.com/angelmondragon/cropmarket-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.Role
	Email  string
	JTI    string
}

// AccessTokenClaims is the typed JWT the identity provider issues.
type AccessTokenClaims struct {
	UserID uuid.UUID  `json:"user_id"`
	Role   enums.Role `json:"role"`
	Email  string     `json:"email,omitempty"`
	jwt.RegisteredClaims
}
