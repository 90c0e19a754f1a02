package auth

import (
	"github.com/angelmondragon/mygros-backend/internal/users"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
)

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest carries the possibly expired access token and its refresh token.
type RefreshRequest struct {
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RegisterRequest onboards a buyer. RequestedRole opens a pending access
// request for another role in the same transaction.
type RegisterRequest struct {
	FirstName     string      `json:"first_name" validate:"required,max=100"`
	LastName      string      `json:"last_name" validate:"required,max=100"`
	Email         string      `json:"email" validate:"required,email"`
	Password      string      `json:"password" validate:"required,min=8,max=128"`
	Phone         *string     `json:"phone,omitempty" validate:"omitempty,max=30"`
	CompanyName   *string     `json:"company_name,omitempty" validate:"omitempty,max=200"`
	Siret         *string     `json:"siret,omitempty" validate:"omitempty,len=14,numeric"`
	City          *string     `json:"city,omitempty"`
	PostalCode    *string     `json:"postal_code,omitempty"`
	RequestedRole *enums.Role `json:"requested_role,omitempty"`
	Reason        *string     `json:"reason,omitempty" validate:"omitempty,max=1000"`
}

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// LoginResponse contains the tokens and the authenticated profile.
type LoginResponse struct {
	TokenPair
	User *users.UserDTO `json:"user"`
}

// RegisterResponse reports the created profile and whether an access request is pending.
type RegisterResponse struct {
	User                 *users.UserDTO `json:"user"`
	AccessRequestPending bool           `json:"access_request_pending"`
}
