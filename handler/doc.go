// Package handler provides the HTTP handlers of the IDPay gateway service.
//
// Handlers depend on small store interfaces (PurchaseStore, ProfileStore, LogStore)
// so they can run against the SQL store in production and fakes in tests.
//
// # Core Handlers
//
//   - PaymentHandler: creates purchase requests, hands the user over to the gateway
//     and processes gateway callbacks
//   - ConfigHandler: manages payment profiles and lists the registered providers
//   - LogsHandler: exposes stored payment logs and, when enabled, the logs shipped
//     to OpenSearch
//   - HealthHandler: reports storage, session backend and OpenSearch status
//
// # Payment Handler
//
//	paymentHandler := handler.NewPaymentHandler(store, store, provider.DefaultRegistry,
//		host, sessions, provider.NewCallbackProcessor(store), validate)
//
//	r.Post("/v1/purchases", paymentHandler.CreatePurchase)
//	r.HandleFunc("/v1/purchases/{requestKey}/pay", paymentHandler.Pay)
//	r.HandleFunc("/v1/callback/{provider}", paymentHandler.HandleCallback)
//
// Pay answers with a 302 to the gateway, or a plain text message for the user when
// the gateway refuses the payment. HandleCallback answers a redirect with a Location
// header plus an inline script doing the same, and a bare 200 when the callback
// needs no user-visible response (unrelated or duplicate notifications).
//
// # Response Format
//
// JSON endpoints use the envelope from infra/response:
//
//	{
//	  "code": 200,
//	  "success": true,
//	  "message": "Payment profiles retrieved",
//	  "data": [...]
//	}
package handler
