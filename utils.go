package x402

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// ValidatePaymentPayload performs structural validation on a payment payload.
func ValidatePaymentPayload(p PaymentPayload) error {
	if p.X402Version < 1 || p.X402Version > ProtocolVersion {
		return NewPaymentError(ErrCodeInvalidPayload, "unsupported x402 version", nil).
			WithDetails("x402Version", p.X402Version)
	}
	if p.Accepted.Scheme == "" {
		return NewPaymentError(ErrCodeInvalidPayload, "payment scheme is required", nil)
	}
	if p.Accepted.Network == "" {
		return NewPaymentError(ErrCodeInvalidPayload, "payment network is required", nil)
	}
	if len(p.Payload) == 0 {
		return NewPaymentError(ErrCodeInvalidPayload, "payment payload body is required", nil)
	}
	return nil
}

// ValidatePaymentRequirements performs structural validation on one
// requirements entry.
func ValidatePaymentRequirements(r PaymentRequirements) error {
	if r.Scheme == "" {
		return NewPaymentError(ErrCodeInvalidPayload, "payment scheme is required", nil)
	}
	if r.Network == "" {
		return NewPaymentError(ErrCodeInvalidPayload, "payment network is required", nil)
	}
	if _, _, err := r.Network.Parse(); err != nil {
		return err
	}
	if r.Asset == "" {
		return NewPaymentError(ErrCodeInvalidPayload, "payment asset is required", nil)
	}
	if r.Amount == "" {
		return NewPaymentError(ErrCodeInvalidPayload, "payment amount is required", nil)
	}
	if r.PayTo == "" {
		return NewPaymentError(ErrCodeInvalidPayload, "payment recipient is required", nil)
	}
	return nil
}

// ProofDigest derives a replay-protection nonce from a payload's signed
// body: the SHA-256 hex digest of its normalized JSON encoding. Schemes
// with a natural proof identifier (a transaction hash) should prefer it;
// this is the fallback for pure signature schemes.
func ProofDigest(payload PaymentPayload) string {
	data, err := json.Marshal(payload.Payload)
	if err != nil {
		data = []byte{}
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
