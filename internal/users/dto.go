package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID          uuid.UUID   `json:"id"`
	Email       string      `json:"email"`
	FirstName   string      `json:"first_name"`
	LastName    string      `json:"last_name"`
	Phone       *string     `json:"phone,omitempty"`
	AvatarURL   *string     `json:"avatar_url,omitempty"`
	Role        enums.Role  `json:"role"`
	CompanyID   *uuid.UUID  `json:"company_id,omitempty"`
	Company     *CompanyDTO `json:"company,omitempty"`
	IsActive    bool        `json:"is_active"`
	LastLoginAt *time.Time  `json:"last_login_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type CompanyDTO struct {
	ID          uuid.UUID         `json:"id"`
	Name        string            `json:"name"`
	CompanyType enums.CompanyType `json:"company_type"`
	Siret       *string           `json:"siret,omitempty"`
	City        *string           `json:"city,omitempty"`
}

// CreateUserDTO holds the data required by the repo to persist a new profile.
type CreateUserDTO struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        *string
	Role         enums.Role
	CompanyID    *uuid.UUID
}

// ListFilters narrows the admin user list.
type ListFilters struct {
	Role   *enums.Role
	Active *bool
}

// UserList is one cursor page of profiles.
type UserList struct {
	Users      []UserDTO `json:"users"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

func (d CreateUserDTO) ToModel() *models.Profile {
	role := d.Role
	if role == "" {
		role = enums.RoleBuyer
	}
	return &models.Profile{
		Email:        strings.ToLower(strings.TrimSpace(d.Email)),
		PasswordHash: d.PasswordHash,
		FirstName:    strings.TrimSpace(d.FirstName),
		LastName:     strings.TrimSpace(d.LastName),
		Phone:        d.Phone,
		Role:         role,
		CompanyID:    d.CompanyID,
		IsActive:     true,
	}
}

func FromModel(p *models.Profile) *UserDTO {
	if p == nil {
		return nil
	}
	return &UserDTO{
		ID:          p.ID,
		Email:       p.Email,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Phone:       p.Phone,
		AvatarURL:   p.AvatarURL,
		Role:        p.Role,
		CompanyID:   p.CompanyID,
		IsActive:    p.IsActive,
		LastLoginAt: p.LastLoginAt,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func FromCompany(c *models.Company) *CompanyDTO {
	if c == nil {
		return nil
	}
	return &CompanyDTO{
		ID:          c.ID,
		Name:        c.Name,
		CompanyType: c.CompanyType,
		Siret:       c.Siret,
		City:        c.City,
	}
}
