// Package http carries the protocol over HTTP: the paying round-tripper on
// the client side, the paywall middleware on the server side, and the
// facilitator client/handler pair for delegated verification.
package http

import x402 "github.com/x402-foundation/x402-core"

// Wire header names.
const (
	// HeaderPayment carries the base64-encoded PaymentPayload on the
	// retried request.
	HeaderPayment = "X-PAYMENT"

	// HeaderPaymentResponse carries the base64-encoded settlement receipt
	// on the paid response.
	HeaderPaymentResponse = "X-PAYMENT-RESPONSE"

	// HeaderPaymentRequired optionally duplicates the 402 challenge body
	// for clients that cannot read bodies.
	HeaderPaymentRequired = "X-Payment-Required"

	// Legacy single-option challenge headers.
	HeaderLegacyPrice     = "X-Price"
	HeaderLegacyRecipient = "X-Recipient"
	HeaderLegacyToken     = "X-Token"
	HeaderLegacyChain     = "X-Chain"
)

// authenticateScheme is the WWW-Authenticate scheme token for challenges.
const authenticateScheme = "x402"

// Re-exported for callers that only import this package.
type (
	PaymentRequired  = x402.PaymentRequired
	PaymentPayload   = x402.PaymentPayload
	SettlementResult = x402.SettlementResult
)
