package writer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pkgbigquery "github.com/angelmondragon/mygros-backend/pkg/bigquery"
)

type fakeInserter struct {
	responses []error
	calls     []int
}

func (f *fakeInserter) InsertSalesEvents(_ context.Context, rows []*pkgbigquery.SalesEventRow) error {
	n := len(f.calls)
	f.calls = append(f.calls, len(rows))
	if n < len(f.responses) {
		return f.responses[n]
	}
	return nil
}

func newTestWriter(cfg Config) (*BigQueryWriter, *fakeInserter) {
	fake := &fakeInserter{}
	cfg.BaseBackoff = time.Millisecond
	cfg.MaxBackoff = 2 * time.Millisecond
	return newWriter(fake, cfg), fake
}

func row(id string) *pkgbigquery.SalesEventRow {
	return &pkgbigquery.SalesEventRow{EventID: id}
}

func TestNewRequiresClient(t *testing.T) {
	_, err := New(nil, Config{})
	assert.Error(t, err)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{BaseBackoff: 5 * time.Second}.withDefaults()
	assert.Equal(t, 1, cfg.BatchSize)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.MaxBackoff, "cap never undercuts the base")
}

func TestInsertRetriesTransientFailure(t *testing.T) {
	w, fake := newTestWriter(Config{})
	fake.responses = []error{&googleapi.Error{Code: http.StatusServiceUnavailable}}

	require.NoError(t, w.InsertSales(context.Background(), row("1")))
	assert.Equal(t, []int{1, 1}, fake.calls)
	assert.Empty(t, w.pending)
}

func TestInsertStopsOnPermanentFailure(t *testing.T) {
	w, fake := newTestWriter(Config{})
	fake.responses = []error{&googleapi.Error{Code: http.StatusBadRequest}}

	err := w.InsertSales(context.Background(), row("1"))
	require.Error(t, err)
	assert.Len(t, fake.calls, 1)
	assert.Len(t, w.pending, 1, "failed rows stay queued")

	require.NoError(t, w.Flush(context.Background()))
	assert.Empty(t, w.pending)
}

func TestInsertGivesUpAfterMaxAttempts(t *testing.T) {
	w, fake := newTestWriter(Config{MaxAttempts: 3})
	unavailable := status.Error(codes.Unavailable, "try later")
	fake.responses = []error{unavailable, unavailable, unavailable, nil}

	err := w.InsertSales(context.Background(), row("1"))
	require.Error(t, err)
	assert.Equal(t, codes.Unavailable, status.Code(errors.Unwrap(err)))
	assert.Len(t, fake.calls, 3)
}

func TestInsertHonoursCancelledContext(t *testing.T) {
	w, fake := newTestWriter(Config{MaxAttempts: 5})
	fake.responses = []error{status.Error(codes.Unavailable, "x"), status.Error(codes.Unavailable, "x")}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, w.InsertSales(ctx, row("1")))
	assert.LessOrEqual(t, len(fake.calls), 1)
}

func TestBatching(t *testing.T) {
	w, fake := newTestWriter(Config{BatchSize: 2})

	require.NoError(t, w.InsertSales(context.Background(), row("1")))
	assert.Empty(t, fake.calls)
	require.NoError(t, w.InsertSales(context.Background(), row("2")))
	assert.Equal(t, []int{2}, fake.calls)

	require.NoError(t, w.InsertSales(context.Background(), nil))
	require.NoError(t, w.Flush(context.Background()))
	assert.Equal(t, []int{2}, fake.calls, "empty flush does not call BigQuery")
}

func TestTransient(t *testing.T) {
	cases := map[string]struct {
		err  error
		want bool
	}{
		"nil":          {nil, false},
		"plain":        {errors.New("boom"), false},
		"http 429":     {&googleapi.Error{Code: http.StatusTooManyRequests}, true},
		"http 403":     {&googleapi.Error{Code: http.StatusForbidden}, false},
		"wrapped 503":  {fmt.Errorf("put: %w", &googleapi.Error{Code: http.StatusServiceUnavailable}), true},
		"grpc aborted": {status.Error(codes.Aborted, "x"), true},
		"grpc invalid": {status.Error(codes.InvalidArgument, "x"), false},
	}
	for name, tc := range cases {
		assert.Equal(t, tc.want, transient(tc.err), name)
	}
}

func TestTransientRowErrors(t *testing.T) {
	unavailable := &googleapi.Error{Code: http.StatusServiceUnavailable}
	invalid := &googleapi.Error{Code: http.StatusBadRequest}

	allTransient := cbigquery.PutMultiError{
		{InsertID: "a", Errors: cbigquery.MultiError{unavailable}},
		{InsertID: "b", Errors: cbigquery.MultiError{unavailable}},
	}
	onePermanent := cbigquery.PutMultiError{
		{InsertID: "a", Errors: cbigquery.MultiError{unavailable}},
		{InsertID: "b", Errors: cbigquery.MultiError{invalid}},
	}

	assert.True(t, transient(allTransient))
	assert.False(t, transient(onePermanent))
	assert.False(t, transient(cbigquery.MultiError{}))
}
