package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"

	"github.com/angelmondragon/vowmarket-backend/api/responses"
	pkgerrors "github.com/angelmondragon/vowmarket-backend/pkg/errors"
	"github.com/angelmondragon/vowmarket-backend/pkg/logger"
)

const maxWebhookBodyBytes = 1 << 16

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type WebhookGuard interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Complete(ctx context.Context, eventID string) error
	Release(ctx context.Context, eventID string) error
}

type SigningClient interface {
	SigningSecret() string
}

// StripeWebhook verifies and settles provider events. Every verified event is
// acknowledged with 200; processing failures are logged and the guard released
// so a redelivery gets another attempt.
func StripeWebhook(svc StripeWebhookService, client SigningClient, guard WebhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe client unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.InvalidSignature(nil))
			return
		}

		event, err := webhook.ConstructEventWithOptions(payload, sigHeader, client.SigningSecret(), webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.InvalidSignature(err))
			return
		}

		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"event_id":   event.ID,
				"event_type": string(event.Type),
			})
		}

		claimed := false
		if guard != nil {
			ok, claimErr := guard.Claim(ctx, event.ID)
			switch {
			case claimErr != nil:
				// fall through to the database, which rejects duplicates on its own
				if logg != nil {
					logg.Warn(ctx, "stripe webhook guard unavailable: "+claimErr.Error())
				}
			case !ok:
				if logg != nil {
					logg.Info(ctx, "stripe webhook duplicate delivery")
				}
				responses.WriteSuccess(w, map[string]string{"status": "duplicate"})
				return
			default:
				claimed = true
			}
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			if claimed {
				if releaseErr := guard.Release(ctx, event.ID); releaseErr != nil && logg != nil {
					logg.Warn(ctx, "stripe webhook guard release failed: "+releaseErr.Error())
				}
			}
			if logg != nil {
				logg.Error(ctx, "stripe webhook processing failed", err)
			}
			responses.WriteSuccess(w, map[string]string{"status": "failed"})
			return
		}

		if claimed {
			if err := guard.Complete(ctx, event.ID); err != nil && logg != nil {
				logg.Warn(ctx, "stripe webhook guard completion failed: "+err.Error())
			}
		}
		if logg != nil {
			logg.Info(ctx, "stripe webhook processed")
		}
		responses.WriteSuccess(w, map[string]string{"status": "processed"})
	}
}
