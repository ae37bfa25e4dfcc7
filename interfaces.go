package x402

import (
	"context"
	"time"
)

// SchemeClient is the Client role of a payment scheme: it signs a payment
// payload for one requirement entry.
//
// Implementations must be deterministic with respect to the requirement
// content, so that re-signing the same requirement yields an equivalent
// payload (the server recognizes a resent payload instead of treating it
// as a fresh payment).
type SchemeClient interface {
	Scheme() string

	// CreatePaymentPayload returns the scheme-specific signed payload body.
	// The engine wraps it with accepted/resource/extensions.
	CreatePaymentPayload(ctx context.Context, requirements PaymentRequirements) (map[string]interface{}, error)
}

// SchemeServer is the Server role of a payment scheme: it interprets route
// prices for its networks and validates payload shape and deadline before
// the payload is forwarded to a facilitator.
type SchemeServer interface {
	Scheme() string

	// ParsePrice converts a route price (decimal string, money string such
	// as "$1.50", or AssetAmount) into a concrete asset and amount for the
	// given network.
	ParsePrice(price Price, network Network) (AssetAmount, error)

	// ValidatePayload checks scheme-specific payload shape and deadline.
	// Returns a PaymentError with ErrCodeInvalidPayload or
	// ErrCodeDeadlineExpired on rejection.
	ValidatePayload(payload PaymentPayload, requirements PaymentRequirements, now time.Time) error

	// PaymentNonce extracts the replay-protection nonce from the payload:
	// the transaction hash for on-chain schemes, or a signature digest for
	// off-chain signature schemes.
	PaymentNonce(payload PaymentPayload) (string, error)
}

// SchemeFacilitator is the Facilitator role of a payment scheme: it
// cryptographically (or on-chain) verifies a payload and settles it.
type SchemeFacilitator interface {
	Scheme() string
	Verify(ctx context.Context, payload PaymentPayload, requirements PaymentRequirements) (*VerificationResult, error)
	Settle(ctx context.Context, payload PaymentPayload, requirements PaymentRequirements) (*SettlementResult, error)
}

// Facilitator is the verification/settlement capability consumed by the
// ResourceServer. LocalFacilitator satisfies it in-process; the HTTP
// facilitator client satisfies it against a remote service.
type Facilitator interface {
	Verify(ctx context.Context, payload PaymentPayload, requirements PaymentRequirements) (*VerificationResult, error)
	Settle(ctx context.Context, payload PaymentPayload, requirements PaymentRequirements) (*SettlementResult, error)
	GetSupported(ctx context.Context) (SupportedResponse, error)
}

// RequirementsSelector picks one entry from the mutually supported subset
// of a challenge's accepts list. The subset preserves the server's
// preference order; the slice is never empty.
type RequirementsSelector func(accepts []PaymentRequirements) PaymentRequirements
