package accessrequests

import (
	"context"
	"testing"

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
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	rec := &recordingOutbox{}
	svc, err := NewService(NewRepository(conn), db.NewFromConn(conn), rec)
	require.NoError(t, err)
	return &fixture{conn: conn, svc: svc, outbox: rec}
}

func (f *fixture) profile(t *testing.T, role enums.Role) *models.Profile {
	t.Helper()
	p := &models.Profile{
		Email:        uuid.NewString() + "@mygros.test",
		PasswordHash: "hash",
		FirstName:    "Lou",
		LastName:     "Martin",
		Role:         role,
		IsActive:     true,
	}
	require.NoError(t, f.conn.Create(p).Error)
	return p
}

func strPtr(v string) *string { return &v }

func TestSubmitOnePendingPerUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.profile(t, enums.RoleBuyer)

	req, err := f.svc.Submit(ctx, SubmitInput{
		UserID:        user.ID,
		CurrentRole:   user.Role,
		RequestedRole: enums.RoleDriver,
		Reason:        strPtr("  livreur depuis 2019 "),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.AccessRequestPending, req.Status)
	require.NotNil(t, req.Reason)
	assert.Equal(t, "livreur depuis 2019", *req.Reason)

	_, err = f.svc.Submit(ctx, SubmitInput{UserID: user.ID, CurrentRole: user.Role, RequestedRole: enums.RoleCommercial})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	mine, err := f.svc.ListMine(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestSubmitRejectsUnrequestableRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.profile(t, enums.RoleDriver)

	cases := []enums.Role{enums.RoleAdmin, enums.RoleBuyer, enums.RoleDriver, enums.Role("chef")}
	for _, role := range cases {
		_, err := f.svc.Submit(ctx, SubmitInput{UserID: user.ID, CurrentRole: user.Role, RequestedRole: role})
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "role %s", role)
	}
}

func TestReviewApproveGrantsRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.profile(t, enums.RoleBuyer)
	admin := f.profile(t, enums.RoleAdmin)

	req, err := f.svc.Submit(ctx, SubmitInput{UserID: user.ID, CurrentRole: user.Role, RequestedRole: enums.RoleSupplier})
	require.NoError(t, err)

	reviewed, err := f.svc.Review(ctx, ReviewInput{RequestID: req.ID, ReviewerID: admin.ID, Approve: true, Note: strPtr("ok")})
	require.NoError(t, err)
	assert.Equal(t, enums.AccessRequestApproved, reviewed.Status)
	require.NotNil(t, reviewed.ReviewedBy)
	assert.Equal(t, admin.ID, *reviewed.ReviewedBy)

	var refreshed models.Profile
	require.NoError(t, f.conn.First(&refreshed, "id = ?", user.ID).Error)
	assert.Equal(t, enums.RoleSupplier, refreshed.Role)

	require.Len(t, f.outbox.events, 1)
	event := f.outbox.events[0]
	assert.Equal(t, enums.EventAccessRequestReviewed, event.EventType)
	data, ok := event.Data.(payloads.AccessRequestReviewedEvent)
	require.True(t, ok)
	assert.Equal(t, enums.AccessRequestApproved, data.Status)

	_, err = f.svc.Review(ctx, ReviewInput{RequestID: req.ID, ReviewerID: admin.ID, Approve: false})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))
}

func TestReviewRejectKeepsRoleAndAllowsResubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.profile(t, enums.RoleBuyer)
	admin := f.profile(t, enums.RoleAdmin)

	req, err := f.svc.Submit(ctx, SubmitInput{UserID: user.ID, CurrentRole: user.Role, RequestedRole: enums.RoleCommercial})
	require.NoError(t, err)
	_, err = f.svc.Review(ctx, ReviewInput{RequestID: req.ID, ReviewerID: admin.ID})
	require.NoError(t, err)

	var refreshed models.Profile
	require.NoError(t, f.conn.First(&refreshed, "id = ?", user.ID).Error)
	assert.Equal(t, enums.RoleBuyer, refreshed.Role)

	_, err = f.svc.Submit(ctx, SubmitInput{UserID: user.ID, CurrentRole: user.Role, RequestedRole: enums.RoleCommercial})
	assert.NoError(t, err)

	_, err = f.svc.Review(ctx, ReviewInput{RequestID: uuid.New(), ReviewerID: admin.ID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListFiltersByStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.profile(t, enums.RoleAdmin)
	for i := 0; i < 3; i++ {
		u := f.profile(t, enums.RoleBuyer)
		req, err := f.svc.Submit(ctx, SubmitInput{UserID: u.ID, CurrentRole: u.Role, RequestedRole: enums.RoleDriver})
		require.NoError(t, err)
		if i == 0 {
			_, err = f.svc.Review(ctx, ReviewInput{RequestID: req.ID, ReviewerID: admin.ID, Approve: true})
			require.NoError(t, err)
		}
	}

	pending := enums.AccessRequestPending
	list, err := f.svc.List(ctx, pagination.Params{}, ListFilters{Status: &pending})
	require.NoError(t, err)
	assert.Len(t, list.Requests, 2)

	page, err := f.svc.List(ctx, pagination.Params{Limit: 2}, ListFilters{})
	require.NoError(t, err)
	assert.Len(t, page.Requests, 2)
	require.NotEmpty(t, page.NextCursor)

	rest, err := f.svc.List(ctx, pagination.Params{Limit: 2, Cursor: page.NextCursor}, ListFilters{})
	require.NoError(t, err)
	assert.Len(t, rest.Requests, 1)

	bad := enums.AccessRequestStatus("maybe")
	_, err = f.svc.List(ctx, pagination.Params{}, ListFilters{Status: &bad})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
