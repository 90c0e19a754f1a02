package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/mygros-backend/pkg/enums"
)

// AccessTokenPayload is what the auth service knows when it mints a token.
type AccessTokenPayload struct {
	UserID    uuid.UUID
	CompanyID *uuid.UUID
	Role      enums.Role
	JTI       string
}

// AccessTokenClaims is the signed body of an access token. The jti doubles as
// the session id in Redis.
type AccessTokenClaims struct {
	UserID    uuid.UUID  `json:"user_id"`
	CompanyID *uuid.UUID `json:"company_id,omitempty"`
	Role      enums.Role `json:"role"`
	jwt.RegisteredClaims
}
