// Package idpay is a payment service that takes purchases through the IDPay
// gateway (idpay.ir) and settles them against the purchase records it keeps.
//
// # Overview
//
// A merchant application creates a purchase request, sends the user to the pay
// link it gets back and waits for the purchase to be marked fulfilled. The
// service talks to IDPay in between:
//
//	┌─────────────────┐    ┌─────────────────┐    ┌─────────────────┐
//	│                 │    │                 │    │                 │
//	│  Merchant App   │◄──►│     IDPay       │◄──►│   idpay.ir      │
//	│                 │    │   (Service)     │    │   (Gateway)     │
//	│                 │    │                 │    │                 │
//	└─────────────────┘    └─────────────────┘    └─────────────────┘
//
// # Payment Flow
//
//  1. POST /v1/purchases stores a purchase request against a payment profile and
//     returns its pay link.
//  2. The user opens /v1/purchases/{requestKey}/pay. The service creates the
//     payment at IDPay, remembers where to send the user afterwards and
//     redirects to the gateway.
//  3. IDPay sends the user back to /v1/callback/idpay. The callback is only
//     trusted after a server side inquiry confirms the settled amount. The
//     purchase is then fulfilled and the user lands on the return page.
//
// Every callback, including unrelated and replayed ones, leaves exactly one
// payment log entry.
//
// # Payment Profiles
//
// Gateway credentials live in payment profiles, managed under /v1/profiles:
//
//	{
//	    "providerId": "idpay",
//	    "title": "IDPay",
//	    "options": {
//	        "idpay_api_key": "6a7f99eb-7c20-4412-a972-6dfb7cd253a4",
//	        "idpay_sandbox": "1",
//	        "idpay_failed_message": "Payment failed. Track id: {track_id}"
//	    }
//	}
//
// # HTTP API
//
//	# Merchant routes (restricted by ADMIN_IP_WHITELIST)
//	POST /v1/purchases
//	GET  /v1/purchases/{requestKey}/logs
//	GET  /v1/providers
//	GET  /v1/profiles
//	POST /v1/profiles
//	GET  /v1/profiles/{id}
//	GET  /v1/logs/transactions/{transactionID}
//	GET  /v1/logs/errors?hours=24
//
//	# User and gateway routes
//	GET|POST /v1/purchases/{requestKey}/pay
//	GET|POST /v1/callback/{provider}
//
//	# Health
//	GET /health
//
// # Configuration
//
// Configuration is read from the environment, optionally through a .env file:
//
//	APP_PORT=9999
//	APP_URL=https://pay.example.com
//	PUBLIC_SITE_URL=https://shop.example.com  # default return and cancel pages
//	DB_DRIVER=sqlite                 # or postgres with DATABASE_URL
//	SQLITE_PATH=./data/idpay.db
//	SESSION_BACKEND=memory           # or redis with REDIS_ADDR
//	IDPAY_API_URL=https://api.idpay.ir
//	ENABLE_OPENSEARCH_LOGGING=false
//	RATE_LIMIT_PER_MINUTE=100
//
// # Command Line
//
// cmd/idpayctl verifies profile options and runs payment inquiries by hand:
//
//	idpayctl verify --api-key KEY --sandbox
//	idpayctl inquiry --api-key KEY --id GATEWAY_ID --order-id REQUEST_KEY
//
// # Adding a Gateway
//
//  1. Implement the provider.PaymentProvider interface
//  2. Add the provider package under provider/{provider}/
//  3. Register the provider in provider/{provider}/register.go
//  4. Import the package from cmd/main.go
package idpay
