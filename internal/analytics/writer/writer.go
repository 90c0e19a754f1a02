package writer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/sethvargo/go-retry"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pkgbigquery "github.com/angelmondragon/mygros-backend/pkg/bigquery"
)

// Config tunes the sales writer. A BatchSize above one acknowledges events
// before their rows are durable, so it only makes sense when Flush runs on
// shutdown.
type Config struct {
	BatchSize   int
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 1
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 250 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 2 * time.Second
	}
	c.MaxBackoff = max(c.MaxBackoff, c.BaseBackoff)
	return c
}

type salesInserter interface {
	InsertSalesEvents(ctx context.Context, rows []*pkgbigquery.SalesEventRow) error
}

// BigQueryWriter buffers sales rows and streams them to BigQuery, retrying
// quota and availability failures with capped exponential backoff.
type BigQueryWriter struct {
	client salesInserter
	cfg    Config

	mu      sync.Mutex
	pending []*pkgbigquery.SalesEventRow
}

func New(client *pkgbigquery.Client, cfg Config) (*BigQueryWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	return newWriter(client, cfg), nil
}

func newWriter(client salesInserter, cfg Config) *BigQueryWriter {
	return &BigQueryWriter{client: client, cfg: cfg.withDefaults()}
}

// InsertSales queues row and writes the batch once it is full. Rows of a
// failed write stay queued for the next attempt.
func (w *BigQueryWriter) InsertSales(ctx context.Context, row *pkgbigquery.SalesEventRow) error {
	if row == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, row)
	if len(w.pending) < w.cfg.BatchSize {
		return nil
	}
	return w.writePending(ctx)
}

// Flush writes whatever is queued.
func (w *BigQueryWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writePending(ctx)
}

func (w *BigQueryWriter) writePending(ctx context.Context) error {
	if len(w.pending) == 0 {
		return nil
	}
	rows := slices.Clone(w.pending)
	err := retry.Do(ctx, w.backoff(), func(ctx context.Context) error {
		err := w.client.InsertSalesEvents(ctx, rows)
		if err != nil && transient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("insert %d sales rows: %w", len(rows), err)
	}
	w.pending = w.pending[:0]
	return nil
}

func (w *BigQueryWriter) backoff() retry.Backoff {
	b := retry.NewExponential(w.cfg.BaseBackoff)
	b = retry.WithCappedDuration(w.cfg.MaxBackoff, b)
	return retry.WithMaxRetries(uint64(w.cfg.MaxAttempts-1), b)
}

// transient reports whether a streaming insert failure is worth retrying.
// A multi-row failure is transient only when every row failed transiently.
func transient(err error) bool {
	if err == nil {
		return false
	}

	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		return len(multi) > 0 && !slices.ContainsFunc(multi, func(e error) bool { return !transient(e) })
	}
	var rowErrs cbigquery.PutMultiError
	if errors.As(err, &rowErrs) {
		return len(rowErrs) > 0 && !slices.ContainsFunc(rowErrs, func(r cbigquery.RowInsertionError) bool { return !transient(r.Errors) })
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusRequestTimeout, http.StatusTooManyRequests,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Aborted, codes.DeadlineExceeded, codes.Internal,
			codes.ResourceExhausted, codes.Unavailable:
			return true
		}
	}
	return false
}
