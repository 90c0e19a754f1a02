package messages

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/mygros-backend/pkg/db"
	"github.com/angelmondragon/mygros-backend/pkg/db/dbtest"
	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mygros-backend/pkg/errors"
	"github.com/angelmondragon/mygros-backend/pkg/outbox"
	"github.com/angelmondragon/mygros-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/mygros-backend/pkg/pagination"
)

type recordingOutbox struct {
	events []outbox.DomainEvent
}

func (r *recordingOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	r.events = append(r.events, event)
	return nil
}

type fixture struct {
	conn   *gorm.DB
	svc    Service
	outbox *recordingOutbox
	admin  Sender
	buyer  Sender
	driver Sender
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	rec := &recordingOutbox{}
	svc, err := NewService(NewRepository(conn), db.NewFromConn(conn), rec)
	require.NoError(t, err)
	f := &fixture{conn: conn, svc: svc, outbox: rec}
	f.admin = f.sender(t, enums.RoleAdmin, true)
	f.buyer = f.sender(t, enums.RoleBuyer, true)
	f.driver = f.sender(t, enums.RoleDriver, true)
	return f
}

func (f *fixture) sender(t *testing.T, role enums.Role, active bool) Sender {
	t.Helper()
	p := &models.Profile{
		Email:        uuid.NewString() + "@mygros.test",
		PasswordHash: "hash",
		FirstName:    "Alex",
		LastName:     string(role),
		Role:         role,
		IsActive:     active,
	}
	require.NoError(t, f.conn.Create(p).Error)
	return Sender{UserID: p.ID, Role: role}
}

func idsOf(inbox *Inbox) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(inbox.Messages))
	for _, m := range inbox.Messages {
		out = append(out, m.ID)
	}
	return out
}

func TestBroadcastReachesTargetedRolesOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	toDrivers, err := f.svc.Broadcast(ctx, f.admin, BroadcastInput{Audience: enums.AudienceDriver, Body: "Tournée avancée à 5h demain"})
	require.NoError(t, err)
	toAll, err := f.svc.Broadcast(ctx, f.admin, BroadcastInput{Audience: enums.AudienceAll, Body: "Fermé le 15 août"})
	require.NoError(t, err)

	driverInbox, err := f.svc.Inbox(ctx, f.driver.UserID, f.driver.Role, pagination.Params{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{toDrivers.ID, toAll.ID}, idsOf(driverInbox))

	buyerInbox, err := f.svc.Inbox(ctx, f.buyer.UserID, f.buyer.Role, pagination.Params{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{toAll.ID}, idsOf(buyerInbox))

	require.Len(t, f.outbox.events, 2)
	data, ok := f.outbox.events[0].Data.(payloads.MessagePostedEvent)
	require.True(t, ok)
	assert.True(t, data.IsBroadcast)
	assert.Equal(t, enums.EventMessagePosted, f.outbox.events[0].EventType)
}

func TestBroadcastRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Broadcast(context.Background(), f.buyer, BroadcastInput{Audience: enums.AudienceAll, Body: "hello"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.Broadcast(context.Background(), f.admin, BroadcastInput{Audience: "supplier", Body: "hello"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Empty(t, f.outbox.events)
}

func TestSupportDeskAndPrivateReplies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	question, err := f.svc.Send(ctx, f.buyer, SendInput{Body: "  Livraison possible samedi ?  "})
	require.NoError(t, err)
	assert.Equal(t, "Livraison possible samedi ?", question.Body)
	assert.Nil(t, question.RecipientID)

	adminInbox, err := f.svc.Inbox(ctx, f.admin.UserID, f.admin.Role, pagination.Params{})
	require.NoError(t, err)
	assert.Contains(t, idsOf(adminInbox), question.ID)

	unread, err := f.svc.UnreadCount(ctx, f.admin.UserID, f.admin.Role)
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)

	reply, err := f.svc.Send(ctx, f.admin, SendInput{RecipientID: &f.buyer.UserID, Body: "Oui, avant 10h"})
	require.NoError(t, err)

	buyerInbox, err := f.svc.Inbox(ctx, f.buyer.UserID, f.buyer.Role, pagination.Params{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{question.ID, reply.ID}, idsOf(buyerInbox))

	driverInbox, err := f.svc.Inbox(ctx, f.driver.UserID, f.driver.Role, pagination.Params{})
	require.NoError(t, err)
	assert.Empty(t, driverInbox.Messages)
}

func TestSendRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inactive := f.sender(t, enums.RoleBuyer, false)
	missing := uuid.New()

	cases := []struct {
		name   string
		sender Sender
		input  SendInput
		code   pkgerrors.Code
	}{
		{"empty body", f.buyer, SendInput{Body: "   "}, pkgerrors.CodeValidation},
		{"too long", f.buyer, SendInput{Body: strings.Repeat("a", MaxBodyLength+1)}, pkgerrors.CodeValidation},
		{"buyer to user", f.buyer, SendInput{RecipientID: &f.driver.UserID, Body: "salut"}, pkgerrors.CodeForbidden},
		{"admin without recipient", f.admin, SendInput{Body: "salut"}, pkgerrors.CodeValidation},
		{"admin to self", f.admin, SendInput{RecipientID: &f.admin.UserID, Body: "salut"}, pkgerrors.CodeValidation},
		{"unknown recipient", f.admin, SendInput{RecipientID: &missing, Body: "salut"}, pkgerrors.CodeNotFound},
		{"inactive recipient", f.admin, SendInput{RecipientID: &inactive.UserID, Body: "salut"}, pkgerrors.CodeValidation},
		{"anonymous", Sender{Role: enums.RoleBuyer}, SendInput{Body: "salut"}, pkgerrors.CodeUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Send(ctx, tc.sender, tc.input)
			assert.True(t, pkgerrors.IsCode(err, tc.code), "got %v", err)
		})
	}
	assert.Empty(t, f.outbox.events)
}

func TestMarkRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	note, err := f.svc.Send(ctx, f.admin, SendInput{RecipientID: &f.driver.UserID, Body: "Clé du dépôt chez le gardien"})
	require.NoError(t, err)
	broadcast, err := f.svc.Broadcast(ctx, f.admin, BroadcastInput{Audience: enums.AudienceAll, Body: "info"})
	require.NoError(t, err)

	_, err = f.svc.MarkRead(ctx, f.buyer.UserID, f.buyer.Role, note.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	read, err := f.svc.MarkRead(ctx, f.driver.UserID, f.driver.Role, note.ID)
	require.NoError(t, err)
	require.NotNil(t, read.ReadAt)

	again, err := f.svc.MarkRead(ctx, f.driver.UserID, f.driver.Role, note.ID)
	require.NoError(t, err)
	require.NotNil(t, again.ReadAt)
	assert.WithinDuration(t, *read.ReadAt, *again.ReadAt, time.Second)

	unread, err := f.svc.UnreadCount(ctx, f.driver.UserID, f.driver.Role)
	require.NoError(t, err)
	assert.Zero(t, unread)

	_, err = f.svc.MarkRead(ctx, f.driver.UserID, f.driver.Role, broadcast.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = f.svc.MarkRead(ctx, f.driver.UserID, f.driver.Role, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestInboxPagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := f.svc.Broadcast(ctx, f.admin, BroadcastInput{Audience: enums.AudienceBuyer, Body: "promo"})
		require.NoError(t, err)
	}

	first, err := f.svc.Inbox(ctx, f.buyer.UserID, f.buyer.Role, pagination.Params{Limit: 3})
	require.NoError(t, err)
	require.Len(t, first.Messages, 3)
	require.NotEmpty(t, first.NextCursor)

	second, err := f.svc.Inbox(ctx, f.buyer.UserID, f.buyer.Role, pagination.Params{Limit: 3, Cursor: first.NextCursor})
	require.NoError(t, err)
	assert.Len(t, second.Messages, 2)
	assert.Empty(t, second.NextCursor)
	assert.NotContains(t, idsOf(first), second.Messages[0].ID)

	_, err = f.svc.Inbox(ctx, f.buyer.UserID, f.buyer.Role, pagination.Params{Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCommercialWorksTheSupportDesk(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	commercial := f.sender(t, enums.RoleCommercial, true)

	question, err := f.svc.Send(ctx, f.buyer, SendInput{Body: "Tarif pour 20 caisses ?"})
	require.NoError(t, err)

	inbox, err := f.svc.Inbox(ctx, commercial.UserID, commercial.Role, pagination.Params{})
	require.NoError(t, err)
	assert.Contains(t, idsOf(inbox), question.ID)

	unread, err := f.svc.UnreadCount(ctx, commercial.UserID, commercial.Role)
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)

	_, err = f.svc.Send(ctx, commercial, SendInput{RecipientID: &f.buyer.UserID, Body: "Je vous envoie un devis"})
	require.NoError(t, err)
	read, err := f.svc.MarkRead(ctx, commercial.UserID, commercial.Role, question.ID)
	require.NoError(t, err)
	assert.NotNil(t, read.ReadAt)

	_, err = f.svc.Send(ctx, commercial, SendInput{Body: "sans destinataire"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
