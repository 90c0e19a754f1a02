package messages

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
)

const MaxBodyLength = 4000

// Sender identifies the author of a message.
type Sender struct {
	UserID uuid.UUID
	Role   enums.Role
}

// SendInput posts a direct message. A nil RecipientID from a non-admin goes
// to the support desk.
type SendInput struct {
	RecipientID *uuid.UUID `json:"recipient_id,omitempty"`
	Body        string     `json:"body" validate:"required,max=4000"`
}

type BroadcastInput struct {
	Audience enums.MessageAudience `json:"audience" validate:"required,oneof=all buyer driver"`
	Body     string                `json:"body" validate:"required,max=4000"`
}

type MessageDTO struct {
	ID          uuid.UUID              `json:"id"`
	SenderID    uuid.UUID              `json:"sender_id"`
	SenderRole  enums.Role             `json:"sender_role"`
	RecipientID *uuid.UUID             `json:"recipient_id,omitempty"`
	Body        string                 `json:"body"`
	IsBroadcast bool                   `json:"is_broadcast"`
	TargetRole  *enums.MessageAudience `json:"target_role,omitempty"`
	ReadAt      *time.Time             `json:"read_at,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

type Inbox struct {
	Messages   []MessageDTO `json:"messages"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

func newMessageDTO(m models.Message) MessageDTO {
	return MessageDTO{
		ID:          m.ID,
		SenderID:    m.SenderID,
		SenderRole:  m.SenderRole,
		RecipientID: m.RecipientID,
		Body:        m.Body,
		IsBroadcast: m.IsBroadcast,
		TargetRole:  m.TargetRole,
		ReadAt:      m.ReadAt,
		CreatedAt:   m.CreatedAt,
	}
}

// audiencesFor lists the broadcast audiences that reach role.
func audiencesFor(role enums.Role) []enums.MessageAudience {
	all := []enums.MessageAudience{enums.AudienceAll, enums.AudienceBuyer, enums.AudienceDriver}
	out := make([]enums.MessageAudience, 0, len(all))
	for _, a := range all {
		if a.Reaches(role) {
			out = append(out, a)
		}
	}
	return out
}
