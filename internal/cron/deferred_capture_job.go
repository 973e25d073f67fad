package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v83"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/vowmarket-backend/internal/payments"
	"github.com/angelmondragon/vowmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vowmarket-backend/pkg/errors"
	"github.com/angelmondragon/vowmarket-backend/pkg/logger"
	"github.com/angelmondragon/vowmarket-backend/pkg/metrics"
	"github.com/angelmondragon/vowmarket-backend/pkg/outbox"
	"github.com/angelmondragon/vowmarket-backend/pkg/outbox/payloads"
	pkgstripe "github.com/angelmondragon/vowmarket-backend/pkg/stripe"
)

// DeferredCaptureJobName identifies the capture job in the registry and the
// admin trigger endpoint.
const DeferredCaptureJobName = "deferred-capture"

const (
	defaultHoldWindow   = 7 * 24 * time.Hour
	defaultCaptureBatch = 200

	captureOutcomeCaptured   = "captured"
	captureOutcomeReconciled = "reconciled"
	captureOutcomeSkipped    = "skipped"
	captureOutcomeFailed     = "failed"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CaptureGateway is the provider surface used to capture held funds.
type CaptureGateway interface {
	GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
	CapturePaymentIntent(ctx context.Context, id string, params *stripe.PaymentIntentCaptureParams) (*stripe.PaymentIntent, error)
}

type DeferredCaptureJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Payments   payments.Repository
	Gateway    CaptureGateway
	Outbox     outbox.Emitter
	Metrics    *metrics.SettlementMetrics
	HoldWindow time.Duration
	BatchSize  int
}

// NewDeferredCaptureJob builds the job that captures authorizations once the
// hold window has elapsed. Capturing never touches seller balances; the
// credit was booked when the payment settled.
func NewDeferredCaptureJob(params DeferredCaptureJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("capture gateway required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	hold := params.HoldWindow
	if hold <= 0 {
		hold = defaultHoldWindow
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultCaptureBatch
	}
	return &deferredCaptureJob{
		logg:     params.Logger,
		db:       params.DB,
		payments: params.Payments,
		gateway:  params.Gateway,
		outbox:   params.Outbox,
		metrics:  params.Metrics,
		hold:     hold,
		batch:    batch,
		now:      time.Now,
	}, nil
}

type deferredCaptureJob struct {
	logg     *logger.Logger
	db       txRunner
	payments payments.Repository
	gateway  CaptureGateway
	outbox   outbox.Emitter
	metrics  *metrics.SettlementMetrics
	hold     time.Duration
	batch    int
	now      func() time.Time
}

func (j *deferredCaptureJob) Name() string { return DeferredCaptureJobName }

// Run captures every due payment. A failed capture leaves the payment
// pending for the next run and does not stop the rest of the batch.
func (j *deferredCaptureJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.hold)
	due, err := j.payments.ListDueForCapture(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("list payments due for capture: %w", err)
	}

	var (
		errs   error
		counts = map[string]int{}
	)
	for _, payment := range due {
		outcome, err := j.capture(ctx, payment.ID)
		counts[outcome]++
		j.metrics.ObserveCapture(outcome)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("payment %s: %w", payment.ID, err))
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":     cutoff,
		"due":        len(due),
		"captured":   counts[captureOutcomeCaptured],
		"reconciled": counts[captureOutcomeReconciled],
		"skipped":    counts[captureOutcomeSkipped],
		"failed":     counts[captureOutcomeFailed],
	}), "deferred capture run complete")
	return errs
}

func (j *deferredCaptureJob) capture(ctx context.Context, paymentID uuid.UUID) (string, error) {
	outcome := captureOutcomeCaptured
	logCtx := j.logg.WithField(ctx, "payment_id", paymentID.String())

	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.payments.WithTx(tx)
		payment, err := repo.FindByIDForUpdate(ctx, paymentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock payment")
		}
		if payment.CaptureStatus != enums.CaptureStatusPending || payment.Status != enums.PaymentStatusSucceeded {
			outcome = captureOutcomeSkipped
			return nil
		}
		logCtx = j.logg.WithOrderID(logCtx, payment.OrderID.String())
		logCtx = j.logg.WithSellerID(logCtx, payment.SellerID.String())

		params := &stripe.PaymentIntentCaptureParams{}
		params.SetIdempotencyKey(pkgstripe.CaptureIdempotencyKey(payment.ID))
		if _, captureErr := j.gateway.CapturePaymentIntent(ctx, payment.StripePaymentIntentID, params); captureErr != nil {
			// A capture that succeeded upstream but failed to answer is
			// recorded rather than retried.
			intent, getErr := j.gateway.GetPaymentIntent(ctx, payment.StripePaymentIntentID)
			if getErr != nil || intent.Status != stripe.PaymentIntentStatusSucceeded {
				return pkgerrors.ProviderFailure(captureErr, pkgstripe.ProviderMessage(captureErr))
			}
			j.logg.Warn(logCtx, "capture error but intent already captured; reconciling")
			outcome = captureOutcomeReconciled
		}

		capturedAt := j.now().UTC()
		if err := repo.MarkCaptured(ctx, payment.ID, capturedAt); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment captured")
		}
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentCaptured,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Data: payloads.PaymentCapturedEvent{
				PaymentID:  payment.ID,
				OrderID:    payment.OrderID,
				SellerID:   payment.SellerID,
				CapturedAt: capturedAt,
			},
		})
	})
	if err != nil {
		j.logg.Error(logCtx, "deferred capture failed", err)
		return captureOutcomeFailed, err
	}
	if outcome != captureOutcomeSkipped {
		j.logg.Info(logCtx, "payment captured")
	}
	return outcome, nil
}
