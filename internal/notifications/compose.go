package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
	"github.com/angelmondragon/mygros-backend/pkg/outbox/payloads"
)

// Event is the slice of an outbox envelope the composer needs.
type Event struct {
	ID   uuid.UUID
	Type enums.OutboxEventType
	Data json.RawMessage
}

type recipientLookup interface {
	ActiveUserIDsByRole(ctx context.Context, role enums.Role) ([]uuid.UUID, error)
}

// Composer turns one domain event into zero or more per-user notifications.
type Composer struct {
	users recipientLookup
}

func NewComposer(users recipientLookup) (*Composer, error) {
	if users == nil {
		return nil, fmt.Errorf("recipient lookup required")
	}
	return &Composer{users: users}, nil
}

// Handles reports whether the composer knows the event type.
func (c *Composer) Handles(eventType enums.OutboxEventType) bool {
	switch eventType {
	case enums.EventDriverAssigned, enums.EventMessagePosted, enums.EventAccessRequestReviewed:
		return true
	}
	return false
}

func (c *Composer) Compose(ctx context.Context, evt Event) ([]models.Notification, error) {
	switch evt.Type {
	case enums.EventDriverAssigned:
		var p payloads.DriverAssignedEvent
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", evt.Type, err)
		}
		return c.driverAssigned(evt.ID, p), nil
	case enums.EventMessagePosted:
		var p payloads.MessagePostedEvent
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", evt.Type, err)
		}
		return c.messagePosted(ctx, evt.ID, p)
	case enums.EventAccessRequestReviewed:
		var p payloads.AccessRequestReviewedEvent
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", evt.Type, err)
		}
		return c.accessReviewed(evt.ID, p), nil
	default:
		return nil, nil
	}
}

func (c *Composer) driverAssigned(eventID uuid.UUID, p payloads.DriverAssignedEvent) []models.Notification {
	if p.DriverID == uuid.Nil {
		return nil
	}
	return []models.Notification{{
		UserID:  p.DriverID,
		EventID: eventID,
		Type:    enums.NotificationTypeDelivery,
		Title:   "Nouvelle livraison assignée",
		Body:    "Une livraison vient de vous être assignée.",
		Link:    link("/driver/deliveries/%s", p.TrackingID),
	}}
}

// Broadcasts stay in the message inbox only. Support desk messages fan out
// to every active admin except the sender.
func (c *Composer) messagePosted(ctx context.Context, eventID uuid.UUID, p payloads.MessagePostedEvent) ([]models.Notification, error) {
	if p.IsBroadcast {
		return nil, nil
	}
	recipients := []uuid.UUID{}
	if p.RecipientID != nil {
		recipients = append(recipients, *p.RecipientID)
	} else {
		admins, err := c.users.ActiveUserIDsByRole(ctx, enums.RoleAdmin)
		if err != nil {
			return nil, fmt.Errorf("load support desk: %w", err)
		}
		for _, id := range admins {
			if id != p.SenderID {
				recipients = append(recipients, id)
			}
		}
	}

	out := make([]models.Notification, 0, len(recipients))
	for _, id := range recipients {
		out = append(out, models.Notification{
			UserID:  id,
			EventID: eventID,
			Type:    enums.NotificationTypeMessage,
			Title:   "Nouveau message",
			Body:    "Vous avez reçu un nouveau message.",
			Link:    link("/messages#%s", p.MessageID),
		})
	}
	return out, nil
}

func (c *Composer) accessReviewed(eventID uuid.UUID, p payloads.AccessRequestReviewedEvent) []models.Notification {
	if p.UserID == uuid.Nil {
		return nil
	}
	n := models.Notification{
		UserID:  p.UserID,
		EventID: eventID,
		Type:    enums.NotificationTypeAccount,
		Link:    link("/access-requests/%s", p.RequestID),
	}
	switch p.Status {
	case enums.AccessRequestApproved:
		n.Title = "Demande d'accès approuvée"
		n.Body = fmt.Sprintf("Votre accès %s sera actif à votre prochaine connexion.", roleLabel(p.RequestedRole))
	case enums.AccessRequestRejected:
		n.Title = "Demande d'accès refusée"
		n.Body = fmt.Sprintf("Votre demande d'accès %s n'a pas été retenue.", roleLabel(p.RequestedRole))
	default:
		return nil
	}
	return []models.Notification{n}
}

func roleLabel(r enums.Role) string {
	switch r {
	case enums.RoleSupplier:
		return "fournisseur"
	case enums.RoleCommercial:
		return "commercial"
	case enums.RoleDriver:
		return "livreur"
	case enums.RoleAdmin:
		return "administrateur"
	default:
		return "acheteur"
	}
}

func link(format string, id uuid.UUID) *string {
	s := fmt.Sprintf(format, id)
	return &s
}
