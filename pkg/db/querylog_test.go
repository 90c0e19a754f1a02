package db

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/mygros-backend/pkg/logger"
)

func newCapturedQueryLogger(slow time.Duration) (gormlogger.Interface, *bytes.Buffer) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: &buf})
	return newQueryLogger(logg, slow), &buf
}

func statement(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestQueryLoggerReportsSlowQueries(t *testing.T) {
	ql, buf := newCapturedQueryLogger(100 * time.Millisecond)

	ql.Trace(context.Background(), time.Now().Add(-time.Second), statement("SELECT * FROM orders", 3), nil)

	out := buf.String()
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, "db.slow_query")
	assert.Contains(t, out, `"sql":"SELECT * FROM orders"`)
	assert.Contains(t, out, `"rows":3`)
}

func TestQueryLoggerQuietForFastQueriesAndMissingRows(t *testing.T) {
	ql, buf := newCapturedQueryLogger(time.Minute)

	ql.Trace(context.Background(), time.Now(), statement("SELECT 1", 1), nil)
	ql.Trace(context.Background(), time.Now(), statement("SELECT * FROM users", 0), gorm.ErrRecordNotFound)

	assert.Empty(t, buf.String())
}

func TestQueryLoggerReportsFailures(t *testing.T) {
	ql, buf := newCapturedQueryLogger(0)

	ql.Trace(context.Background(), time.Now(), statement("INSERT INTO carts", 0), errors.New("disk full"))

	out := buf.String()
	assert.Contains(t, out, "db.query_failed")
	assert.Contains(t, out, "disk full")
}

func TestQueryLoggerModes(t *testing.T) {
	ql, buf := newCapturedQueryLogger(0)

	ql.LogMode(gormlogger.Silent).Trace(context.Background(), time.Now(), statement("SELECT 1", 1), errors.New("ignored"))
	assert.Empty(t, buf.String())

	ql.LogMode(gormlogger.Info).Trace(context.Background(), time.Now(), statement("SELECT 1", 1), nil)
	assert.Contains(t, buf.String(), "db.query")
}

func TestQueryLoggerDropsBoundValues(t *testing.T) {
	ql, _ := newCapturedQueryLogger(0)
	filter, ok := ql.(interface {
		ParamsFilter(context.Context, string, ...any) (string, []any)
	})
	if assert.True(t, ok) {
		sql, params := filter.ParamsFilter(context.Background(), "SELECT * FROM users WHERE email = ?", "a@b.c")
		assert.Equal(t, "SELECT * FROM users WHERE email = ?", sql)
		assert.Nil(t, params)
	}
}

func TestNilLoggerDiscards(t *testing.T) {
	assert.Equal(t, gormlogger.Discard, newQueryLogger(nil, time.Second))
}
