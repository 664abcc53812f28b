package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/cropmarket-backend/pkg/enums"
	"github.com/angelmondragon/cropmarket-backend/pkg/logger"
)

const (
	outboxRetentionDays       = 30
	notificationRetentionDays = 90
)

type purgeFunc func(ctx context.Context, cutoff time.Time) (int64, error)

// retentionJob deletes rows older than a rolling cutoff of retention days.
type retentionJob struct {
	name      string
	logg      *logger.Logger
	purge     purgeFunc
	retention int
	after     func(ctx context.Context)
	now       func() time.Time
}

func newRetentionJob(name string, logg *logger.Logger, purge purgeFunc, days, fallback int) (*retentionJob, error) {
	if logg == nil {
		return nil, errors.New("logger required")
	}
	if days <= 0 {
		days = fallback
	}
	return &retentionJob{name: name, logg: logg, purge: purge, retention: days, now: time.Now}, nil
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) cutoff() time.Time {
	return j.now().UTC().AddDate(0, 0, -j.retention)
}

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.cutoff()
	deleted, err := j.purge(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"job":            j.name,
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	}), "retention sweep complete")
	if j.after != nil {
		j.after(ctx)
	}
	return nil
}

// OutboxRetentionJobParams configures the sweep of published outbox rows.
// Unpublished and dead-lettered events are never touched.
type OutboxRetentionJobParams struct {
	Logger      *logger.Logger
	Repository  outboxRetentionRepo
	DeadLetters deadLetterBacklog
	Retention   int
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// deadLetterBacklog is optional; when set, each sweep reports what is waiting
// in outbox_dlq.
type deadLetterBacklog interface {
	CountByReason(ctx context.Context) (map[enums.OutboxDLQErrorReason]int64, error)
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, errors.New("outbox repository required")
	}
	job, err := newRetentionJob("outbox-retention", params.Logger, params.Repository.DeletePublishedBefore, params.Retention, outboxRetentionDays)
	if err != nil {
		return nil, err
	}
	if params.DeadLetters != nil {
		job.after = func(ctx context.Context) { reportDeadLetters(ctx, job.logg, params.DeadLetters) }
	}
	return job, nil
}

// reportDeadLetters never fails the sweep; the backlog is informational.
func reportDeadLetters(ctx context.Context, logg *logger.Logger, dlq deadLetterBacklog) {
	counts, err := dlq.CountByReason(ctx)
	if err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "outbox dlq backlog unavailable")
		return
	}
	var total int64
	fields := map[string]any{}
	for reason, n := range counts {
		fields["dlq_"+reason.String()] = n
		total += n
	}
	if total == 0 {
		return
	}
	fields["dlq_total"] = total
	logg.Warn(logg.WithFields(ctx, fields), "outbox dead letters awaiting review")
}

type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	Repository notificationsCleanupRepo
	Retention  int
}

type notificationsCleanupRepo interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, errors.New("notifications repository required")
	}
	job, err := newRetentionJob("notification-cleanup", params.Logger, params.Repository.DeleteOlderThan, params.Retention, notificationRetentionDays)
	if err != nil {
		return nil, err
	}
	return job, nil
}
