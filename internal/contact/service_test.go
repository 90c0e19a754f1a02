package contact

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/mygros-backend/pkg/db/dbtest"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mygros-backend/pkg/errors"
	"github.com/angelmondragon/mygros-backend/pkg/logger"
	"github.com/angelmondragon/mygros-backend/pkg/pagination"
)

func newTestService(t *testing.T) (Service, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})
	svc, err := NewService(NewRepository(dbtest.Open(t)), logg)
	require.NoError(t, err)
	return svc, &buf
}

func validInput() SubmitInput {
	company := "Brasserie du Marché"
	return SubmitInput{
		Name:    " Jeanne Roux ",
		Email:   "Jeanne@Brasserie.FR",
		Company: &company,
		Subject: "Ouverture de compte",
		Message: "Bonjour, nous souhaitons commander chaque semaine.",
	}
}

func TestSubmitStoresNewMessage(t *testing.T) {
	svc, buf := newTestService(t)

	dto, err := svc.Submit(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, "Jeanne Roux", dto.Name)
	assert.Equal(t, "jeanne@brasserie.fr", dto.Email)
	assert.Equal(t, enums.ContactStatusNew, dto.Status)
	assert.Nil(t, dto.Phone)
	assert.Contains(t, buf.String(), dto.ID.String())
}

func TestSubmitValidation(t *testing.T) {
	svc, _ := newTestService(t)

	blank := validInput()
	blank.Subject = "  "
	blank.Message = ""
	_, err := svc.Submit(context.Background(), blank)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, map[string]any{"fields": []string{"subject", "message"}}, appErr.Details())

	badEmail := validInput()
	badEmail.Email = "pas-un-email"
	_, err = svc.Submit(context.Background(), badEmail)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestListAndUpdateStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Submit(ctx, validInput())
	require.NoError(t, err)
	_, err = svc.Submit(ctx, validInput())
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(ctx, first.ID, enums.ContactStatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, enums.ContactStatusInProgress, updated.Status)

	status := enums.ContactStatusNew
	list, err := svc.List(ctx, pagination.Params{}, ListFilters{Status: &status})
	require.NoError(t, err)
	assert.Len(t, list.Messages, 1)

	reopened, err := svc.UpdateStatus(ctx, first.ID, enums.ContactStatusNew)
	require.NoError(t, err)
	assert.Equal(t, enums.ContactStatusNew, reopened.Status)

	_, err = svc.UpdateStatus(ctx, first.ID, "archived")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = svc.UpdateStatus(ctx, uuid.New(), enums.ContactStatusResolved)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
