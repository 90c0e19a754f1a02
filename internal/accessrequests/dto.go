package accessrequests

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
)

// requestableRoles are the roles a user may ask for. Admin is granted by hand.
var requestableRoles = map[enums.Role]struct{}{
	enums.RoleSupplier:   {},
	enums.RoleCommercial: {},
	enums.RoleDriver:     {},
}

// Requestable reports whether role may be requested through the access flow.
func Requestable(role enums.Role) bool {
	_, ok := requestableRoles[role]
	return ok
}

type SubmitInput struct {
	UserID        uuid.UUID
	CurrentRole   enums.Role
	RequestedRole enums.Role
	Reason        *string
}

type ReviewInput struct {
	RequestID  uuid.UUID
	ReviewerID uuid.UUID
	Approve    bool
	Note       *string
}

type ListFilters struct {
	Status *enums.AccessRequestStatus
}

type RequestDTO struct {
	ID            uuid.UUID                 `json:"id"`
	UserID        uuid.UUID                 `json:"user_id"`
	RequestedRole enums.Role                `json:"requested_role"`
	Reason        *string                   `json:"reason,omitempty"`
	Status        enums.AccessRequestStatus `json:"status"`
	ReviewedBy    *uuid.UUID                `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time                `json:"reviewed_at,omitempty"`
	ReviewNote    *string                   `json:"review_note,omitempty"`
	CreatedAt     time.Time                 `json:"created_at"`
}

type RequestList struct {
	Requests   []RequestDTO `json:"requests"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

func newRequestDTO(m models.AccessRequest) RequestDTO {
	return RequestDTO{
		ID:            m.ID,
		UserID:        m.UserID,
		RequestedRole: m.RequestedRole,
		Reason:        m.Reason,
		Status:        m.Status,
		ReviewedBy:    m.ReviewedBy,
		ReviewedAt:    m.ReviewedAt,
		ReviewNote:    m.ReviewNote,
		CreatedAt:     m.CreatedAt,
	}
}
