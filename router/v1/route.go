package v1

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/mstgnz/idpay/handler"
	"github.com/mstgnz/idpay/infra/middle"
	"github.com/mstgnz/idpay/infra/session"
	"github.com/mstgnz/idpay/provider"
)

// Services are the dependencies of the v1 API
type Services struct {
	Purchases handler.PurchaseStore
	Profiles  handler.ProfileStore
	Logs      handler.LogStore
	// Search is nil when OpenSearch logging is disabled
	Search    handler.LogSearcher
	Registry  *provider.ProviderRegistry
	Host      *provider.Host
	Sessions  session.Backend
	Processor *provider.CallbackProcessor
	Validate  *validator.Validate
}

// Routes registers all API routes
func Routes(r chi.Router, s Services) {
	paymentHandler := handler.NewPaymentHandler(s.Purchases, s.Profiles, s.Registry, s.Host, s.Sessions, s.Processor, s.Validate)
	configHandler := handler.NewConfigHandler(s.Profiles, s.Registry, s.Validate)
	logsHandler := handler.NewLogsHandler(s.Logs, s.Search)

	// Routes reached by the end user's browser and the gateway
	r.Group(func(r chi.Router) {
		r.Use(session.Middleware)

		r.Get("/purchases/{requestKey}/pay", paymentHandler.Pay)
		r.Post("/purchases/{requestKey}/pay", paymentHandler.Pay)

		r.Get("/callback/{provider}", paymentHandler.HandleCallback)
		r.Post("/callback/{provider}", paymentHandler.HandleCallback)
	})

	// Merchant and administration routes
	r.Group(func(r chi.Router) {
		r.Use(middle.IPWhitelistMiddleware())

		r.Post("/purchases", paymentHandler.CreatePurchase)
		r.Get("/purchases/{requestKey}/logs", logsHandler.GetPurchaseLogs)

		r.Get("/providers", configHandler.ListProviders)

		r.Route("/profiles", func(r chi.Router) {
			r.Get("/", configHandler.ListProfiles)
			r.Post("/", configHandler.SaveProfile)
			r.Get("/{id}", configHandler.GetProfile)
		})

		r.Route("/logs", func(r chi.Router) {
			r.Get("/transactions/{transactionID}", logsHandler.GetTransactionLogs)
			r.Get("/errors", logsHandler.GetErrorLogs)
		})
	})
}
