package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/vowmarket-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/vowmarket-backend/api/controllers/webhooks"
	"github.com/angelmondragon/vowmarket-backend/api/middleware"
	"github.com/angelmondragon/vowmarket-backend/internal/cron"
	"github.com/angelmondragon/vowmarket-backend/pkg/config"
	"github.com/angelmondragon/vowmarket-backend/pkg/enums"
	"github.com/angelmondragon/vowmarket-backend/pkg/logger"
)

// Dependencies groups everything the HTTP surface is wired to. Nil fields
// leave their routes answering with an internal error.
type Dependencies struct {
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency middleware.IdempotencyStore

	Checkout controllers.CheckoutService
	Refunds  controllers.RefundService
	Accounts controllers.AccountService
	Ledger   controllers.LedgerReader
	Jobs     controllers.JobRunner

	StripeClient         webhookcontrollers.SigningClient
	StripeWebhookService webhookcontrollers.StripeWebhookService
	StripeWebhookGuard   webhookcontrollers.WebhookGuard

	Metrics http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.CORS(cfg.App.CORSAllowedOrigins),
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	ready := map[string]controllers.Pinger{}
	if deps.DB != nil {
		ready["db"] = deps.DB
	}
	if deps.Redis != nil {
		ready["redis"] = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, ready))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhookService, deps.StripeClient, deps.StripeWebhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleBuyer))
			r.Use(middleware.Idempotency(deps.Idempotency, logg))
			r.Post("/checkout/cart", controllers.CheckoutCart(deps.Checkout, logg))
			r.Post("/checkout/offers/{offerId}", controllers.CheckoutOffer(deps.Checkout, logg))
			r.Post("/refunds", controllers.FileRefund(deps.Refunds, logg))
		})

		r.Route("/seller", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleSeller))
			r.Use(middleware.Idempotency(deps.Idempotency, logg))
			r.Post("/connect", controllers.SellerConnect(deps.Accounts, logg))
			r.Post("/connect/refresh", controllers.SellerConnectRefresh(deps.Accounts, logg))
			r.Get("/balance", controllers.SellerBalance(deps.Accounts, logg))
			r.Get("/ledger", controllers.SellerLedger(deps.Ledger, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
		r.Use(middleware.Idempotency(deps.Idempotency, logg))

		r.Post("/refunds/{orderItemId}/decision", controllers.DecideRefund(deps.Refunds, logg))
		r.Post("/jobs/deferred-capture", controllers.RunJob(deps.Jobs, cron.DeferredCaptureJobName, logg))
		r.Post("/jobs/outbox-retention", controllers.RunJob(deps.Jobs, cron.OutboxRetentionJobName, logg))
	})

	return r
}
