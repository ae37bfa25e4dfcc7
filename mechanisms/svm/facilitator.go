package svm

import (
	"context"
	"crypto/ed25519"
	"strconv"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	x402 "github.com/x402-foundation/x402-core"
)

// Facilitator verifies exact-scheme Solana payments by Ed25519 signature
// check over the Borsh signing bytes and settles them locally.
type Facilitator struct {
	clock func() time.Time
}

// FacilitatorOption configures a Facilitator.
type FacilitatorOption func(*Facilitator)

// WithFacilitatorClock overrides the time source (tests).
func WithFacilitatorClock(clock func() time.Time) FacilitatorOption {
	return func(f *Facilitator) {
		f.clock = clock
	}
}

// NewFacilitator creates the Facilitator-role exact scheme.
func NewFacilitator(opts ...FacilitatorOption) *Facilitator {
	f := &Facilitator{clock: time.Now}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Scheme implements x402.SchemeFacilitator.
func (f *Facilitator) Scheme() string { return SchemeExact }

// Verify implements x402.SchemeFacilitator.
func (f *Facilitator) Verify(_ context.Context, payload x402.PaymentPayload, requirements x402.PaymentRequirements) (*x402.VerificationResult, error) {
	decoded, err := PayloadFromMap(payload.Payload)
	if err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeInvalidPayload, "malformed Solana payment payload", err)
	}
	authorization := decoded.Authorization

	if reason := f.checkAuthorization(authorization, requirements); reason != "" {
		return &x402.VerificationResult{Valid: false, Method: x402.VerifyMethodSignature, Error: reason}, nil
	}

	message, err := authorization.SigningBytes()
	if err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeInvalidPayload, "unencodable authorization", err)
	}
	source, err := solana.PublicKeyFromBase58(authorization.Source)
	if err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeInvalidPayload, "invalid source account", err)
	}
	signature, err := solana.SignatureFromBase58(decoded.Signature)
	if err != nil {
		return &x402.VerificationResult{
			Valid:  false,
			Method: x402.VerifyMethodSignature,
			Error:  "undecodable signature",
		}, nil
	}

	if !ed25519.Verify(ed25519.PublicKey(source[:]), message, signature[:]) {
		return &x402.VerificationResult{
			Valid:  false,
			Method: x402.VerifyMethodSignature,
			Error:  "signature does not match the authorization source",
		}, nil
	}

	now := f.clock()
	return &x402.VerificationResult{
		Valid:      true,
		Method:     x402.VerifyMethodSignature,
		Payer:      authorization.Source,
		PaidAmount: authorization.Amount,
		Timestamp:  &now,
	}, nil
}

// Settle implements x402.SchemeFacilitator.
func (f *Facilitator) Settle(ctx context.Context, payload x402.PaymentPayload, requirements x402.PaymentRequirements) (*x402.SettlementResult, error) {
	verification, err := f.Verify(ctx, payload, requirements)
	if err != nil {
		return nil, err
	}
	if !verification.Valid {
		return &x402.SettlementResult{
			Success:   false,
			Status:    x402.SettlementFailed,
			Error:     verification.Error,
			Timestamp: f.clock(),
		}, nil
	}

	return &x402.SettlementResult{
		Success:      true,
		SettlementID: uuid.NewString(),
		NetAmount:    verification.PaidAmount,
		Fee:          "0",
		Status:       x402.SettlementConfirmed,
		Timestamp:    f.clock(),
	}, nil
}

func (f *Facilitator) checkAuthorization(authorization TransferAuthorization, requirements x402.PaymentRequirements) string {
	if authorization.Amount != requirements.Amount {
		return "authorization amount does not match the requirement"
	}
	if authorization.Destination != requirements.PayTo {
		return "authorization destination does not match the requirement"
	}

	validUntil, err := strconv.ParseInt(authorization.ValidUntil, 10, 64)
	if err != nil || f.clock().Unix() >= validUntil {
		return "transfer authorization has expired"
	}
	return ""
}
