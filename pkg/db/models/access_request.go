package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mygros-backend/pkg/enums"
)

type AccessRequest struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID                 `gorm:"column:user_id;type:uuid;not null"`
	RequestedRole enums.Role                `gorm:"column:requested_role;type:user_role;not null"`
	Reason        *string                   `gorm:"column:reason"`
	Status        enums.AccessRequestStatus `gorm:"column:status;type:access_request_status;not null;default:'pending'"`
	ReviewedBy    *uuid.UUID                `gorm:"column:reviewed_by;type:uuid"`
	ReviewedAt    *time.Time                `gorm:"column:reviewed_at"`
	ReviewNote    *string                   `gorm:"column:review_note"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

func (a *AccessRequest) BeforeCreate(*gorm.DB) error {
	assignID(&a.ID)
	return nil
}
