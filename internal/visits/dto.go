package visits

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/mygros-backend/pkg/db/models"
)

const (
	MaxPhotosPerReport = 10
	visitDateLayout    = "2006-01-02"
)

type PhotoInput struct {
	URL     string  `json:"url" validate:"required,url"`
	Caption *string `json:"caption,omitempty" validate:"omitempty,max=200"`
}

// CreateInput files a visit. VisitDate defaults to today (UTC) when empty.
type CreateInput struct {
	ClientName    string       `json:"client_name" validate:"required,max=200"`
	ClientAddress *string      `json:"client_address,omitempty"`
	ClientCity    *string      `json:"client_city,omitempty"`
	Latitude      *float64     `json:"latitude,omitempty"`
	Longitude     *float64     `json:"longitude,omitempty"`
	Notes         *string      `json:"notes,omitempty" validate:"omitempty,max=5000"`
	VisitDate     string       `json:"visit_date,omitempty"`
	Photos        []PhotoInput `json:"photos,omitempty" validate:"omitempty,max=10,dive"`
}

type ListFilters struct {
	CommercialID *uuid.UUID
	From         *time.Time
	To           *time.Time
}

type PhotoDTO struct {
	ID       uuid.UUID `json:"id"`
	PhotoURL string    `json:"photo_url"`
	Caption  *string   `json:"caption,omitempty"`
}

type ReportDTO struct {
	ID            uuid.UUID  `json:"id"`
	CommercialID  uuid.UUID  `json:"commercial_id"`
	ClientName    string     `json:"client_name"`
	ClientAddress *string    `json:"client_address,omitempty"`
	ClientCity    *string    `json:"client_city,omitempty"`
	Latitude      *float64   `json:"latitude,omitempty"`
	Longitude     *float64   `json:"longitude,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
	VisitDate     string     `json:"visit_date"`
	Photos        []PhotoDTO `json:"photos"`
	CreatedAt     time.Time  `json:"created_at"`
}

type ReportList struct {
	Reports    []ReportDTO `json:"reports"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

func newReportDTO(m models.VisitReport) ReportDTO {
	dto := ReportDTO{
		ID:            m.ID,
		CommercialID:  m.CommercialID,
		ClientName:    m.ClientName,
		ClientAddress: m.ClientAddress,
		ClientCity:    m.ClientCity,
		Latitude:      m.Latitude,
		Longitude:     m.Longitude,
		Notes:         m.Notes,
		VisitDate:     m.VisitDate.UTC().Format(visitDateLayout),
		Photos:        make([]PhotoDTO, 0, len(m.Photos)),
		CreatedAt:     m.CreatedAt,
	}
	for _, p := range m.Photos {
		dto.Photos = append(dto.Photos, PhotoDTO{ID: p.ID, PhotoURL: p.PhotoURL, Caption: p.Caption})
	}
	return dto
}

func validPhotoURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func optional(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
