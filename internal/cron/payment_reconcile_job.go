package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/cropmarket-backend/pkg/logger"
)

const (
	defaultPendingPaymentMaxAge = 30 * time.Minute
	defaultReconcileBatchSize   = 100
)

type PaymentReconcileJobParams struct {
	Logger    *logger.Logger
	Payments  paymentReconciler
	MaxAge    time.Duration
	BatchSize int
}

// paymentReconciler polls the gateway for payments whose webhook never landed.
type paymentReconciler interface {
	ReconcileStale(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

func NewPaymentReconcileJob(params PaymentReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	maxAge := params.MaxAge
	if maxAge <= 0 {
		maxAge = defaultPendingPaymentMaxAge
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReconcileBatchSize
	}
	return &paymentReconcileJob{
		logg:     params.Logger,
		payments: params.Payments,
		maxAge:   maxAge,
		batch:    batch,
	}, nil
}

type paymentReconcileJob struct {
	logg     *logger.Logger
	payments paymentReconciler
	maxAge   time.Duration
	batch    int
}

func (j *paymentReconcileJob) Name() string { return "payment-reconcile" }

func (j *paymentReconcileJob) Run(ctx context.Context) error {
	advanced, err := j.payments.ReconcileStale(ctx, j.maxAge, j.batch)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"max_age":       j.maxAge.String(),
		"batch_size":    j.batch,
		"rows_advanced": advanced,
	})
	if err != nil {
		return fmt.Errorf("payment reconcile: %w", err)
	}
	j.logg.Info(logCtx, "payment reconcile complete")
	return nil
}
