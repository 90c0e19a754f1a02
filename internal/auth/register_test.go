package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/mygros-backend/internal/accessrequests"
	"github.com/angelmondragon/mygros-backend/pkg/db"
	"github.com/angelmondragon/mygros-backend/pkg/db/dbtest"
	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mygros-backend/pkg/errors"
	"github.com/angelmondragon/mygros-backend/pkg/outbox"
	"github.com/angelmondragon/mygros-backend/pkg/security"
)

type discardOutbox struct{}

func (discardOutbox) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error { return nil }

func newRegisterService(t *testing.T) (RegisterService, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	client := db.NewFromConn(conn)
	access, err := accessrequests.NewService(accessrequests.NewRepository(conn), client, discardOutbox{})
	require.NoError(t, err)
	svc, err := NewRegisterService(RegisterServiceParams{DB: client, AccessRequests: access, PasswordConfig: testPassword})
	require.NoError(t, err)
	return svc, conn
}

func ptr[T any](v T) *T { return &v }

func TestRegisterCreatesBuyerWithCompany(t *testing.T) {
	svc, conn := newRegisterService(t)

	resp, err := svc.Register(context.Background(), RegisterRequest{
		FirstName:   "Inès",
		LastName:    "Moreau",
		Email:       "Ines@Bistrot.fr",
		Password:    "bonjour-123",
		CompanyName: ptr("Bistrot Moreau"),
		City:        ptr("Lyon"),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.RoleBuyer, resp.User.Role)
	assert.Equal(t, "ines@bistrot.fr", resp.User.Email)
	assert.False(t, resp.AccessRequestPending)
	require.NotNil(t, resp.User.Company)
	assert.Equal(t, enums.CompanyTypeBuyer, resp.User.Company.CompanyType)

	var stored models.Profile
	require.NoError(t, conn.First(&stored, "id = ?", resp.User.ID).Error)
	ok, err := security.VerifyPassword("bonjour-123", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRegisterOpensAccessRequest(t *testing.T) {
	svc, conn := newRegisterService(t)

	resp, err := svc.Register(context.Background(), RegisterRequest{
		FirstName:     "Karim",
		LastName:      "Benali",
		Email:         "karim@primeur.fr",
		Password:      "bonjour-123",
		CompanyName:   ptr("Primeurs Benali"),
		RequestedRole: ptr(enums.RoleSupplier),
		Reason:        ptr("grossiste fruits et légumes"),
	})
	require.NoError(t, err)
	assert.True(t, resp.AccessRequestPending)
	assert.Equal(t, enums.RoleBuyer, resp.User.Role)
	assert.Equal(t, enums.CompanyTypeSupplier, resp.User.Company.CompanyType)

	var requests []models.AccessRequest
	require.NoError(t, conn.Where("user_id = ?", resp.User.ID).Find(&requests).Error)
	require.Len(t, requests, 1)
	assert.Equal(t, enums.RoleSupplier, requests[0].RequestedRole)
	assert.Equal(t, enums.AccessRequestPending, requests[0].Status)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newRegisterService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{FirstName: "A", LastName: "B", Email: "a@b.fr", Password: "short"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Register(ctx, RegisterRequest{FirstName: "A", LastName: "B", Email: "a@b.fr", Password: "bonjour-123", RequestedRole: ptr(enums.RoleAdmin)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Register(ctx, RegisterRequest{FirstName: "A", LastName: "B", Email: "a@b.fr", Password: "bonjour-123"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterRequest{FirstName: "A", LastName: "B", Email: "A@B.FR", Password: "bonjour-123"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestRegisterUnknownRoleCreatesNothing(t *testing.T) {
	svc, conn := newRegisterService(t)

	_, err := svc.Register(context.Background(), RegisterRequest{
		FirstName:     "A",
		LastName:      "B",
		Email:         "rollback@b.fr",
		Password:      "bonjour-123",
		RequestedRole: ptr(enums.Role("chef")),
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, conn.Model(&models.Profile{}).Where("email = ?", "rollback@b.fr").Count(&count).Error)
	assert.Zero(t, count)
}
