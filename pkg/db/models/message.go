package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mygros-backend/pkg/enums"
)

// Message is either a direct note (RecipientID set) or a broadcast to an
// audience (IsBroadcast with TargetRole).
type Message struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	SenderID    uuid.UUID              `gorm:"column:sender_id;type:uuid;not null"`
	SenderRole  enums.Role             `gorm:"column:sender_role;type:user_role;not null"`
	RecipientID *uuid.UUID             `gorm:"column:recipient_id;type:uuid"`
	Body        string                 `gorm:"column:body;not null"`
	IsBroadcast bool                   `gorm:"column:is_broadcast;not null"`
	TargetRole  *enums.MessageAudience `gorm:"column:target_role;type:message_audience"`
	ReadAt      *time.Time             `gorm:"column:read_at"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (m *Message) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}

// ContactMessage is an anonymous inquiry from the public contact form.
type ContactMessage struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Name      string              `gorm:"column:name;not null"`
	Email     string              `gorm:"column:email;not null"`
	Phone     *string             `gorm:"column:phone"`
	Company   *string             `gorm:"column:company"`
	Subject   string              `gorm:"column:subject;not null"`
	Message   string              `gorm:"column:message;not null"`
	Status    enums.ContactStatus `gorm:"column:status;type:contact_status;not null;default:'new'"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *ContactMessage) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}
