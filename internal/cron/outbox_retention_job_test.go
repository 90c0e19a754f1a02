package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeOutboxPruner struct {
	cutoff      time.Time
	maxAttempts int
	calls       int
	err         error
}

func (f *fakeOutboxPruner) DeleteSettledBefore(_ *gorm.DB, cutoff time.Time, maxAttempts int) (int64, error) {
	f.calls++
	f.cutoff = cutoff
	f.maxAttempts = maxAttempts
	return 3, f.err
}

type passthroughTx struct{}

func (passthroughTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newRetentionJob(t *testing.T, repo *fakeOutboxPruner, days int) *outboxRetentionJob {
	t.Helper()
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:        testLogger(),
		DB:            passthroughTx{},
		Repository:    repo,
		RetentionDays: days,
		MaxAttempts:   10,
	})
	require.NoError(t, err)
	return job.(*outboxRetentionJob)
}

func TestOutboxRetentionCutoff(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	repo := &fakeOutboxPruner{}
	job := newRetentionJob(t, repo, 0)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, repo.calls)
	assert.Equal(t, now.Add(-defaultOutboxRetentionDays*24*time.Hour), repo.cutoff)
	assert.Equal(t, 10, repo.maxAttempts)

	job = newRetentionJob(t, repo, 7)
	job.now = func() time.Time { return now }
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, now.Add(-7*24*time.Hour), repo.cutoff)
}

func TestOutboxRetentionPropagatesError(t *testing.T) {
	job := newRetentionJob(t, &fakeOutboxPruner{err: errors.New("db down")}, 1)
	assert.ErrorContains(t, job.Run(context.Background()), "db down")
}
