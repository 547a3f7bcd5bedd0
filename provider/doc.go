// Package provider defines the contract between the purchase system and payment
// gateway integrations.
//
// A gateway integration implements PaymentProvider and registers a factory from an
// init function:
//
//	func init() {
//		provider.Register("idpay", NewProvider)
//	}
//
// The host owns purchase requests, payment profiles and payment logs and exposes
// them to providers through Host. Payments move through two entry points:
//
//   - InitiatePayment is called when a user checks out. It returns a Result that
//     either redirects the user to the gateway or carries a message for the user.
//   - CallbackProcessor.Process is called when the gateway sends the user (or a
//     notification) back. It walks the provider through SetupCallback,
//     ValidateTransaction, ValidateCost, GetPaymentResult, PrepareLogData and
//     CompleteTransaction, and writes exactly one PaymentLog for the callback.
//
// Values that must survive the trip to the gateway and back, such as the pages to
// return to, are kept in a LeaseStore supplied per request.
package provider
