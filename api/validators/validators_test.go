package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/mygros-backend/pkg/errors"
	"github.com/angelmondragon/mygros-backend/pkg/pagination"
)

type sampleBody struct {
	Email    string `json:"email" validate:"required,email"`
	Zone     string `json:"zone" validate:"required,oneof=local national"`
	Quantity int    `json:"quantity" validate:"min=1"`
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.fr","zone":"local","quantity":1,"extra":true}`))
	var dest sampleBody
	err := DecodeJSONBody(req, &dest)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyReportsFieldsByJSONName(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope","zone":"mars","quantity":0}`))
	var dest sampleBody
	err := DecodeJSONBody(req, &dest)
	require.Error(t, err)

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	details, ok := appErr.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "email must be a valid email address", details["email"])
	assert.Contains(t, details["zone"], "local national")
	assert.Contains(t, details["quantity"], "quantity must be 1")
}

type orderBody struct {
	Items []struct {
		ProductID string `json:"product_id" validate:"required"`
		Quantity  int    `json:"quantity" validate:"gte=1"`
	} `json:"items" validate:"required,dive"`
}

func TestDecodeJSONBodyKeysNestedFieldsByPath(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"items":[{"product_id":"p1","quantity":2},{"product_id":"","quantity":0}]}`))
	var dest orderBody
	err := DecodeJSONBody(req, &dest)
	require.Error(t, err)

	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	assert.Contains(t, details, "items[1].product_id")
	assert.Contains(t, details, "items[1].quantity")
	assert.Len(t, details, 2)
}

func TestDecodeJSONBodyRejectsMalformedBodies(t *testing.T) {
	for name, body := range map[string]string{
		"empty":     "",
		"trailing":  `{"email":"a@b.fr","zone":"local","quantity":1} {"again":true}`,
		"syntax":    `{"email":`,
		"too large": `{"email":"` + strings.Repeat("a", MaxBodyBytes) + `"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		var dest sampleBody
		err := DecodeJSONBody(req, &dest)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), name)
	}
}

func TestParsePagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=10&cursor=abc", nil)
	params, err := ParsePagination(req)
	require.NoError(t, err)
	assert.Equal(t, pagination.Params{Limit: 10, Cursor: "abc"}, params)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	params, err = ParsePagination(req)
	require.NoError(t, err)
	assert.Equal(t, pagination.DefaultLimit, params.Limit)

	req = httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
	_, err = ParsePagination(req)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestURLParamUUID(t *testing.T) {
	id := uuid.New()
	rc := chi.NewRouteContext()
	rc.URLParams.Add("orderId", id.String())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	got, err := URLParamUUID(req, "orderId")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = URLParamUUID(req, "trackingId")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseQueryDateAndBool(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?from=2026-03-01&active=false&to=03/01/2026", nil)
	from, err := ParseQueryDate(req, "from")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", from.Format("2006-01-02"))

	_, err = ParseQueryDate(req, "to")
	assert.Error(t, err)

	active, err := ParseQueryBool(req, "active")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.False(t, *active)
}

func TestSanitizeStringKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "épi", SanitizeString("  épicerie ", 3))
	assert.Equal(t, "olive", SanitizeString("olive", 0))
}
