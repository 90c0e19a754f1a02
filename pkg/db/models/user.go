package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mygros-backend/pkg/enums"
)

// Company is the buying or supplying business a profile belongs to.
type Company struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Name        string            `gorm:"column:name;not null"`
	CompanyType enums.CompanyType `gorm:"column:company_type;type:company_type;not null"`
	Siret       *string           `gorm:"column:siret"`
	Address     *string           `gorm:"column:address"`
	City        *string           `gorm:"column:city"`
	PostalCode  *string           `gorm:"column:postal_code"`
	Phone       *string           `gorm:"column:phone"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Company) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}

// Profile is the authenticated identity. Role drives every capability check.
type Profile struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Email        string     `gorm:"column:email;not null"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	Role         enums.Role `gorm:"column:role;type:user_role;not null;default:'buyer'"`
	CompanyID    *uuid.UUID `gorm:"column:company_id;type:uuid"`
	FirstName    string     `gorm:"column:first_name;not null"`
	LastName     string     `gorm:"column:last_name;not null"`
	Phone        *string    `gorm:"column:phone"`
	AvatarURL    *string    `gorm:"column:avatar_url"`
	IsActive     bool       `gorm:"column:is_active;not null"`
	LastLoginAt  *time.Time `gorm:"column:last_login_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Profile) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

func (p Profile) FullName() string {
	return p.FirstName + " " + p.LastName
}
