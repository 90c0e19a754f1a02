package visits

import (
	"context"
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
	"github.com/angelmondragon/mygros-backend/pkg/pagination"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn), db.NewFromConn(conn))
	require.NoError(t, err)
	return svc, conn
}

func actor(t *testing.T, conn *gorm.DB, role enums.Role) Actor {
	t.Helper()
	p := &models.Profile{
		Email:        uuid.NewString() + "@mygros.test",
		PasswordHash: "hash",
		FirstName:    "Noé",
		LastName:     string(role),
		Role:         role,
		IsActive:     true,
	}
	require.NoError(t, conn.Create(p).Error)
	return Actor{UserID: p.ID, Role: role}
}

func f64(v float64) *float64 { return &v }

func TestCreateReportWithPhotos(t *testing.T) {
	svc, conn := newTestService(t)
	commercial := actor(t, conn, enums.RoleCommercial)
	caption := "vitrine"

	report, err := svc.Create(context.Background(), commercial, CreateInput{
		ClientName: "  Épicerie Fine Lemaire ",
		Latitude:   f64(45.764),
		Longitude:  f64(4.8357),
		VisitDate:  "2026-03-02",
		Photos: []PhotoInput{
			{URL: "https://cdn.mygros.test/v/1.jpg", Caption: &caption},
			{URL: "https://cdn.mygros.test/v/2.jpg"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Épicerie Fine Lemaire", report.ClientName)
	assert.Equal(t, "2026-03-02", report.VisitDate)
	assert.Len(t, report.Photos, 2)

	loaded, err := svc.Get(context.Background(), commercial, report.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Photos, 2)
}

func TestCreateDefaultsVisitDateToToday(t *testing.T) {
	svc, conn := newTestService(t)
	commercial := actor(t, conn, enums.RoleCommercial)

	report, err := svc.Create(context.Background(), commercial, CreateInput{ClientName: "Cave Bernard"})
	require.NoError(t, err)
	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), report.VisitDate)
	assert.NotNil(t, report.Photos)
}

func TestCreateValidation(t *testing.T) {
	svc, conn := newTestService(t)
	commercial := actor(t, conn, enums.RoleCommercial)
	buyer := actor(t, conn, enums.RoleBuyer)
	ctx := context.Background()

	cases := []struct {
		name  string
		actor Actor
		input CreateInput
		code  pkgerrors.Code
	}{
		{"buyer", buyer, CreateInput{ClientName: "X"}, pkgerrors.CodeForbidden},
		{"blank client", commercial, CreateInput{ClientName: " "}, pkgerrors.CodeValidation},
		{"half coordinates", commercial, CreateInput{ClientName: "X", Latitude: f64(45)}, pkgerrors.CodeValidation},
		{"latitude range", commercial, CreateInput{ClientName: "X", Latitude: f64(95), Longitude: f64(2)}, pkgerrors.CodeValidation},
		{"bad date", commercial, CreateInput{ClientName: "X", VisitDate: "02/03/2026"}, pkgerrors.CodeValidation},
		{"future date", commercial, CreateInput{ClientName: "X", VisitDate: time.Now().UTC().AddDate(0, 0, 3).Format("2006-01-02")}, pkgerrors.CodeValidation},
		{"photo scheme", commercial, CreateInput{ClientName: "X", Photos: []PhotoInput{{URL: "ftp://x/y.jpg"}}}, pkgerrors.CodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.actor, tc.input)
			assert.True(t, pkgerrors.IsCode(err, tc.code), "got %v", err)
		})
	}
}

func TestAddPhotoOwnershipAndLimit(t *testing.T) {
	svc, conn := newTestService(t)
	owner := actor(t, conn, enums.RoleCommercial)
	other := actor(t, conn, enums.RoleCommercial)
	ctx := context.Background()

	report, err := svc.Create(ctx, owner, CreateInput{ClientName: "Boulangerie Petit"})
	require.NoError(t, err)

	_, err = svc.AddPhoto(ctx, other, report.ID, PhotoInput{URL: "https://cdn.mygros.test/x.jpg"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	for i := 0; i < MaxPhotosPerReport; i++ {
		_, err = svc.AddPhoto(ctx, owner, report.ID, PhotoInput{URL: "https://cdn.mygros.test/x.jpg"})
		require.NoError(t, err)
	}
	_, err = svc.AddPhoto(ctx, owner, report.ID, PhotoInput{URL: "https://cdn.mygros.test/x.jpg"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.AddPhoto(ctx, owner, uuid.New(), PhotoInput{URL: "https://cdn.mygros.test/x.jpg"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListScopes(t *testing.T) {
	svc, conn := newTestService(t)
	alice := actor(t, conn, enums.RoleCommercial)
	bob := actor(t, conn, enums.RoleCommercial)
	admin := actor(t, conn, enums.RoleAdmin)
	ctx := context.Background()

	for _, c := range []Actor{alice, alice, bob} {
		_, err := svc.Create(ctx, c, CreateInput{ClientName: "Client"})
		require.NoError(t, err)
	}

	mine, err := svc.ListMine(ctx, alice, pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, mine.Reports, 2)

	all, err := svc.ListAll(ctx, admin, pagination.Params{}, ListFilters{})
	require.NoError(t, err)
	assert.Len(t, all.Reports, 3)

	onlyBob, err := svc.ListAll(ctx, admin, pagination.Params{}, ListFilters{CommercialID: &bob.UserID})
	require.NoError(t, err)
	assert.Len(t, onlyBob.Reports, 1)

	team, err := svc.ListAll(ctx, alice, pagination.Params{}, ListFilters{})
	require.NoError(t, err)
	assert.Len(t, team.Reports, 3)
	_, err = svc.Get(ctx, bob, mine.Reports[0].ID)
	assert.NoError(t, err)

	driver := actor(t, conn, enums.RoleDriver)
	_, err = svc.ListAll(ctx, driver, pagination.Params{}, ListFilters{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	_, err = svc.Get(ctx, driver, mine.Reports[0].ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = svc.Get(ctx, admin, mine.Reports[0].ID)
	assert.NoError(t, err)
}
