package idpay

import "github.com/mstgnz/idpay/provider"

// Register IDPay provider with the gateway registry
func init() {
	provider.Register(providerID, NewProvider)
}
