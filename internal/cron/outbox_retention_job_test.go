package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/vowmarket-backend/pkg/db/dbtest"
	"github.com/angelmondragon/vowmarket-backend/pkg/logger"
	"github.com/angelmondragon/vowmarket-backend/pkg/outbox"
)

type stubRetentionStore struct {
	cutoff     time.Time
	deleteErr  error
	parkedWith int
}

func (s *stubRetentionStore) DeletePublishedBefore(_ *gorm.DB, cutoff time.Time) (int64, error) {
	s.cutoff = cutoff
	return 4, s.deleteErr
}

func (s *stubRetentionStore) CountParked(_ *gorm.DB, maxAttempts int) (int64, error) {
	s.parkedWith = maxAttempts
	return 1, nil
}

func newRetentionJob(t *testing.T, conn *gorm.DB, store outboxRetentionStore) *outboxRetentionJob {
	t.Helper()
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:      logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		DB:          dbtest.Client(conn),
		Outbox:      store,
		Retention:   48 * time.Hour,
		MaxAttempts: 10,
	})
	require.NoError(t, err)
	retention := job.(*outboxRetentionJob)
	retention.now = func() time.Time { return captureNow }
	return retention
}

func TestOutboxRetentionUsesCutoffAndCeiling(t *testing.T) {
	store := &stubRetentionStore{}
	job := newRetentionJob(t, dbtest.Open(t), store)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, captureNow.Add(-48*time.Hour), store.cutoff)
	assert.Equal(t, 10, store.parkedWith)
}

func TestOutboxRetentionPropagatesStoreErrors(t *testing.T) {
	store := &stubRetentionStore{deleteErr: errors.New("disk full")}
	job := newRetentionJob(t, dbtest.Open(t), store)

	assert.ErrorContains(t, job.Run(context.Background()), "disk full")
}

func TestOutboxRetentionAgainstRepository(t *testing.T) {
	conn := dbtest.Open(t)
	job := newRetentionJob(t, conn, outbox.NewRepository(conn))
	require.NoError(t, job.Run(context.Background()))
}

func TestNewOutboxRetentionJobValidates(t *testing.T) {
	_, err := NewOutboxRetentionJob(OutboxRetentionJobParams{})
	assert.Error(t, err)

	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:      logger.New(logger.Options{Output: io.Discard}),
		DB:          dbtest.Client(dbtest.Open(t)),
		Outbox:      &stubRetentionStore{},
		MaxAttempts: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, defaultOutboxRetention, job.(*outboxRetentionJob).retention)
	assert.Equal(t, OutboxRetentionJobName, job.Name())
}
