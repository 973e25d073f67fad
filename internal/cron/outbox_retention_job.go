package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/vowmarket-backend/pkg/logger"
)

// OutboxRetentionJobName identifies the outbox pruning job.
const OutboxRetentionJobName = "outbox-retention"

const defaultOutboxRetention = 30 * 24 * time.Hour

type outboxRetentionStore interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
	CountParked(tx *gorm.DB, maxAttempts int) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Outbox      outboxRetentionStore
	Retention   time.Duration
	MaxAttempts int
}

// NewOutboxRetentionJob prunes published outbox rows older than Retention and
// warns about rows the publisher has given up on.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox repository required")
	case params.MaxAttempts <= 0:
		return nil, fmt.Errorf("max attempts must be positive")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultOutboxRetention
	}
	return &outboxRetentionJob{
		logg:        params.Logger,
		db:          params.DB,
		store:       params.Outbox,
		retention:   retention,
		maxAttempts: params.MaxAttempts,
		now:         time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg        *logger.Logger
	db          txRunner
	store       outboxRetentionStore
	retention   time.Duration
	maxAttempts int
	now         func() time.Time
}

func (j *outboxRetentionJob) Name() string { return OutboxRetentionJobName }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted, parked int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		if deleted, err = j.store.DeletePublishedBefore(tx, cutoff); err != nil {
			return fmt.Errorf("delete published rows: %w", err)
		}
		if parked, err = j.store.CountParked(tx, j.maxAttempts); err != nil {
			return fmt.Errorf("count parked rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	ctx = j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
		"rows_parked":  parked,
	})
	if parked > 0 {
		j.logg.Warn(ctx, "outbox has parked events awaiting manual replay")
	}
	j.logg.Info(ctx, "outbox retention complete")
	return nil
}
