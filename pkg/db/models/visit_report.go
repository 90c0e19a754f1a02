package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VisitReport is a field visit logged by a commercial agent.
type VisitReport struct {
	ID            uuid.UUID    `gorm:"column:id;type:uuid;primaryKey"`
	CommercialID  uuid.UUID    `gorm:"column:commercial_id;type:uuid;not null"`
	ClientName    string       `gorm:"column:client_name;not null"`
	ClientAddress *string      `gorm:"column:client_address"`
	ClientCity    *string      `gorm:"column:client_city"`
	Latitude      *float64     `gorm:"column:latitude"`
	Longitude     *float64     `gorm:"column:longitude"`
	Notes         *string      `gorm:"column:notes"`
	VisitDate     time.Time    `gorm:"column:visit_date;type:date;not null"`
	Photos        []VisitPhoto `gorm:"foreignKey:VisitReportID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time    `gorm:"column:created_at;autoCreateTime"`
}

func (v *VisitReport) BeforeCreate(*gorm.DB) error {
	assignID(&v.ID)
	return nil
}

type VisitPhoto struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	VisitReportID uuid.UUID `gorm:"column:visit_report_id;type:uuid;not null"`
	PhotoURL      string    `gorm:"column:photo_url;not null"`
	Caption       *string   `gorm:"column:caption"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (p *VisitPhoto) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}
