package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestWithPattern(method, url, pattern string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

type observation struct {
	method string
	route  string
	status int
}

type recordingObserver struct {
	seen []observation
}

func (r *recordingObserver) Observe(method, route string, status int, _ time.Duration) {
	r.seen = append(r.seen, observation{method: method, route: route, status: status})
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	obs := &recordingObserver{}
	handler := Metrics(obs)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := requestWithPattern(http.MethodGet, "/api/v1/orders/42", "/api/v1/orders/{orderId}", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, obs.seen, 1)
	assert.Equal(t, observation{method: http.MethodGet, route: "/api/v1/orders/{orderId}", status: http.StatusNotFound}, obs.seen[0])
}

func TestMetricsDefaultsStatusAndUnmatched(t *testing.T) {
	obs := &recordingObserver{}
	handler := Metrics(obs)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	require.Len(t, obs.seen, 1)
	assert.Equal(t, "unmatched", obs.seen[0].route)
	assert.Equal(t, http.StatusOK, obs.seen[0].status)
}
