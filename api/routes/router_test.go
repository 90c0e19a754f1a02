package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/mygros-backend/api/controllers"
	"github.com/angelmondragon/mygros-backend/internal/checkout"
	"github.com/angelmondragon/mygros-backend/internal/orders"
	product "github.com/angelmondragon/mygros-backend/internal/products"
	"github.com/angelmondragon/mygros-backend/pkg/auth"
	"github.com/angelmondragon/mygros-backend/pkg/config"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
	"github.com/angelmondragon/mygros-backend/pkg/logger"
	"github.com/angelmondragon/mygros-backend/pkg/metrics"
	"github.com/angelmondragon/mygros-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubSessions struct{}

func (stubSessions) HasSession(context.Context, string) (bool, error) { return true, nil }

type memoryStore struct {
	data     map[string]string
	counters map[string]int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}, counters: map[string]int64{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	str, _ := value.(string)
	m.data[key] = str
	return nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	m.data[key] = str
	return true, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("test:idempotency:%s:%s", scope, id)
}

func (m *memoryStore) RateLimitKey(parts ...string) string {
	return "test:rate_limit:" + strings.Join(parts, ":")
}

func (m *memoryStore) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.counters[key]++
	return m.counters[key], nil
}

type stubProducts struct {
	product.Service
}

func (stubProducts) ListCategories(context.Context, bool) ([]product.CategoryDTO, error) {
	return []product.CategoryDTO{{ID: uuid.New(), Name: "Olives & Condiments"}}, nil
}

type stubOrders struct {
	orders.Service
}

func (stubOrders) ListAll(context.Context, pagination.Params, orders.AdminListFilters) (*orders.OrderList, error) {
	return &orders.OrderList{Orders: []orders.OrderDTO{}}, nil
}

type countingCheckout struct {
	calls int
}

func (c *countingCheckout) Execute(context.Context, checkout.Buyer, checkout.Input) (*orders.OrderDTO, error) {
	c.calls++
	return &orders.OrderDTO{ID: uuid.New(), OrderNumber: int64(1000 + c.calls), Status: enums.OrderStatusPending}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", CORSOrigins: "*"},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "mygros", ExpirationMinutes: 30},
		AuthRateLimit: config.AuthRateLimitConfig{
			LoginWindow:    time.Minute,
			LoginIPLimit:   2,
			ContactWindow:  time.Minute,
			ContactIPLimit: 1,
		},
	}
}

func testParams(cfg *config.Config) Params {
	return Params{
		Config:    cfg,
		Logger:    logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard}),
		Store:     newMemoryStore(),
		Sessions:  stubSessions{},
		Readiness: map[string]controllers.Pinger{"postgres": stubPinger{}},
		Products:  stubProducts{},
		Orders:    stubOrders{},
	}
}

func buildToken(t *testing.T, cfg *config.Config, role enums.Role) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg.JWT, time.Now(), auth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
		JTI:    uuid.NewString(),
	})
	require.NoError(t, err)
	return token
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthRoutes(t *testing.T) {
	router := NewRouter(testParams(testConfig()))

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestCatalogIsPublic(t *testing.T) {
	router := NewRouter(testParams(testConfig()))
	rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/catalog/categories", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Olives & Condiments")
}

func TestAuthenticatedRoutesRejectMissingToken(t *testing.T) {
	router := NewRouter(testParams(testConfig()))
	for _, path := range []string{"/api/v1/orders", "/api/v1/cart", "/api/v1/admin/orders", "/api/v1/driver/deliveries", "/api/v1/notifications"} {
		rec := serve(router, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestAdminRoutesRequireCapability(t *testing.T) {
	cfg := testConfig()
	router := NewRouter(testParams(cfg))

	cases := []struct {
		role enums.Role
		want int
	}{
		{enums.RoleBuyer, http.StatusForbidden},
		{enums.RoleDriver, http.StatusForbidden},
		{enums.RoleSupplier, http.StatusForbidden},
		{enums.RoleCommercial, http.StatusOK},
		{enums.RoleAdmin, http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders", nil)
		req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, tc.role))
		rec := serve(router, req)
		assert.Equal(t, tc.want, rec.Code, tc.role)
	}
}

func TestBackOfficeRoutesClosedToCommercialAndSupplier(t *testing.T) {
	cfg := testConfig()
	router := NewRouter(testParams(cfg))

	cases := []struct {
		role   enums.Role
		method string
		path   string
	}{
		{enums.RoleCommercial, http.MethodGet, "/api/v1/admin/users"},
		{enums.RoleCommercial, http.MethodGet, "/api/v1/admin/access-requests"},
		{enums.RoleCommercial, http.MethodGet, "/api/v1/admin/promo-rules"},
		{enums.RoleSupplier, http.MethodGet, "/api/v1/admin/products"},
		{enums.RoleSupplier, http.MethodPatch, "/api/v1/admin/products/" + uuid.NewString()},
		{enums.RoleSupplier, http.MethodDelete, "/api/v1/admin/products/" + uuid.NewString()},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(`{"price":"1.00"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, tc.role))
		assert.Equal(t, http.StatusForbidden, serve(router, req).Code, "%s %s %s", tc.role, tc.method, tc.path)
	}
}

func TestDriverCannotUseCart(t *testing.T) {
	cfg := testConfig()
	router := NewRouter(testParams(cfg))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleDriver))
	assert.Equal(t, http.StatusForbidden, serve(router, req).Code)
}

func TestCheckoutRequiresAndReplaysIdempotencyKey(t *testing.T) {
	cfg := testConfig()
	params := testParams(cfg)
	stub := &countingCheckout{}
	params.Checkout = stub
	router := NewRouter(params)
	token := buildToken(t, cfg, enums.RoleBuyer)

	body := `{"delivery_zone":"national","delivery_address":"3 rue Paradis","delivery_city":"Lyon","delivery_postal_code":"69001","payment_method":"card"}`
	newReq := func(key string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		if key != "" {
			req.Header.Set("Idempotency-Key", key)
		}
		return req
	}

	rec := serve(router, newReq(""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, stub.calls)

	first := serve(router, newReq("checkout-1"))
	require.Equal(t, http.StatusCreated, first.Code)
	second := serve(router, newReq("checkout-1"))
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, stub.calls)
}

func TestContactIsRateLimited(t *testing.T) {
	router := NewRouter(testParams(testConfig()))
	body := `{"name":"Camille","email":"c@bistrot.fr","subject":"Tarifs","message":"Bonjour"}`

	first := serve(router, httptest.NewRequest(http.MethodPost, "/api/v1/contact", strings.NewReader(body)))
	assert.NotEqual(t, http.StatusTooManyRequests, first.Code)

	second := serve(router, httptest.NewRequest(http.MethodPost, "/api/v1/contact", strings.NewReader(body)))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestMetricsEndpointAndRouteLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	params := testParams(testConfig())
	params.Metrics = metrics.NewHTTPMetrics(reg)
	params.Gatherer = reg
	router := NewRouter(params)

	serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/catalog/categories", nil))

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/api/v1/catalog/categories"`)
}

func TestUnknownRouteIs404(t *testing.T) {
	router := NewRouter(testParams(testConfig()))
	assert.Equal(t, http.StatusNotFound, serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)).Code)
}
