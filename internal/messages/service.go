package messages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mygros-backend/pkg/errors"
	"github.com/angelmondragon/mygros-backend/pkg/outbox"
	"github.com/angelmondragon/mygros-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/mygros-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service covers the in-app messaging surface.
type Service interface {
	Send(ctx context.Context, sender Sender, input SendInput) (*MessageDTO, error)
	Broadcast(ctx context.Context, sender Sender, input BroadcastInput) (*MessageDTO, error)
	Inbox(ctx context.Context, userID uuid.UUID, role enums.Role, params pagination.Params) (*Inbox, error)
	MarkRead(ctx context.Context, userID uuid.UUID, role enums.Role, messageID uuid.UUID) (*MessageDTO, error)
	UnreadCount(ctx context.Context, userID uuid.UUID, role enums.Role) (int64, error)
}

type service struct {
	repo   *Repository
	tx     txRunner
	outbox outboxPublisher
	now    func() time.Time
}

func NewService(repo *Repository, tx txRunner, outbox outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("messages repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outbox, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) Send(ctx context.Context, sender Sender, input SendInput) (*MessageDTO, error) {
	if err := checkSender(sender, enums.CapSendMessages); err != nil {
		return nil, err
	}
	body, err := normalizeBody(input.Body)
	if err != nil {
		return nil, err
	}
	if input.RecipientID == nil && sender.Role.IsBackOffice() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient_id is required")
	}
	if input.RecipientID != nil && !sender.Role.IsBackOffice() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "direct messages go to the support desk")
	}
	if input.RecipientID != nil && *input.RecipientID == sender.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot message yourself")
	}

	msg := &models.Message{
		SenderID:    sender.UserID,
		SenderRole:  sender.Role,
		RecipientID: input.RecipientID,
		Body:        body,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if msg.RecipientID != nil {
			recipient, err := repo.FindProfile(ctx, *msg.RecipientID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "recipient not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recipient")
			}
			if !recipient.IsActive {
				return pkgerrors.New(pkgerrors.CodeValidation, "recipient is inactive")
			}
		}
		return s.persist(ctx, tx, sender, msg)
	})
	if err != nil {
		return nil, err
	}
	dto := newMessageDTO(*msg)
	return &dto, nil
}

func (s *service) Broadcast(ctx context.Context, sender Sender, input BroadcastInput) (*MessageDTO, error) {
	if err := checkSender(sender, enums.CapBroadcastMessages); err != nil {
		return nil, err
	}
	if !input.Audience.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid audience").
			WithDetails(map[string]any{"audience": input.Audience})
	}
	body, err := normalizeBody(input.Body)
	if err != nil {
		return nil, err
	}

	audience := input.Audience
	msg := &models.Message{
		SenderID:    sender.UserID,
		SenderRole:  sender.Role,
		Body:        body,
		IsBroadcast: true,
		TargetRole:  &audience,
	}
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.persist(ctx, tx, sender, msg)
	}); err != nil {
		return nil, err
	}
	dto := newMessageDTO(*msg)
	return &dto, nil
}

func (s *service) persist(ctx context.Context, tx *gorm.DB, sender Sender, msg *models.Message) error {
	if err := s.repo.WithTx(tx).Create(ctx, msg); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create message")
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventMessagePosted,
		AggregateType: enums.AggregateMessage,
		AggregateID:   msg.ID,
		Actor:         &outbox.ActorRef{UserID: sender.UserID, Role: sender.Role},
		Data: payloads.MessagePostedEvent{
			MessageID:   msg.ID,
			SenderID:    msg.SenderID,
			RecipientID: msg.RecipientID,
			IsBroadcast: msg.IsBroadcast,
			TargetRole:  msg.TargetRole,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit message posted")
	}
	return nil
}

func (s *service) Inbox(ctx context.Context, userID uuid.UUID, role enums.Role, params pagination.Params) (*Inbox, error) {
	if userID == uuid.Nil || !role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.Inbox(ctx, userID, role, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list messages")
	}
	out := &Inbox{Messages: make([]MessageDTO, 0, len(rows))}
	for _, row := range rows {
		out.Messages = append(out.Messages, newMessageDTO(row))
	}
	if next != nil {
		out.NextCursor = pagination.EncodeCursor(*next)
	}
	return out, nil
}

// MarkRead is allowed for the recipient, or any admin for support desk
// messages. Broadcasts carry no read state.
func (s *service) MarkRead(ctx context.Context, userID uuid.UUID, role enums.Role, messageID uuid.UUID) (*MessageDTO, error) {
	msg, err := s.repo.Find(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "message not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load message")
	}
	if msg.IsBroadcast {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "broadcasts cannot be marked read")
	}
	allowed := (msg.RecipientID != nil && *msg.RecipientID == userID) ||
		(msg.RecipientID == nil && role.IsBackOffice())
	if !allowed {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not the recipient")
	}
	if msg.ReadAt == nil {
		now := s.now()
		if err := s.repo.MarkRead(ctx, msg.ID, now); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark read")
		}
		msg.ReadAt = &now
	}
	dto := newMessageDTO(*msg)
	return &dto, nil
}

func (s *service) UnreadCount(ctx context.Context, userID uuid.UUID, role enums.Role) (int64, error) {
	count, err := s.repo.UnreadCount(ctx, userID, role)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread")
	}
	return count, nil
}

func checkSender(sender Sender, capability enums.Capability) error {
	if sender.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !sender.Role.Can(capability) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to send this message")
	}
	return nil
}

func normalizeBody(body string) (string, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "message body is required")
	}
	if utf8.RuneCountInString(trimmed) > MaxBodyLength {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "message body too long").
			WithDetails(map[string]any{"max_length": MaxBodyLength})
	}
	return trimmed, nil
}
