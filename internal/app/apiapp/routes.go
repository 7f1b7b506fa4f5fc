package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	accesssvc "github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/services/access"
	cancelsvc "github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/services/cancel"
	checkoutsvc "github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/services/checkout"
	webhooksvc "github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/services/webhook"
	"github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/transport/http/handlers"
)

type Dependencies struct {
	CheckoutService *checkoutsvc.Service
	AccessService   *accesssvc.Service
	CancelService   *cancelsvc.Service
	WebhookService  *webhooksvc.Service
	Logger          *zap.Logger
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	payHandler := handlers.NewPayHandler(deps.CheckoutService, deps.AccessService, deps.CancelService)
	webhookHandler := handlers.NewWebhookHandler(deps.WebhookService, deps.Logger)

	r.Get("/healthz", healthHandler.Get)
	r.Route("/api/pay", func(r chi.Router) {
		r.Post("/create-checkout-session", payHandler.CreateCheckoutSession)
		r.Post("/wayforpay-webhook", webhookHandler.Handle)
		r.Get("/check-access", payHandler.CheckAccess)
		r.Post("/check-access", payHandler.CheckAccess)
		r.Post("/cancel-subscription", payHandler.CancelSubscription)
	})
}
