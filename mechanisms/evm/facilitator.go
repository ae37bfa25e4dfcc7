package evm

import (
	"context"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	x402 "github.com/x402-foundation/x402-core"
)

// Facilitator verifies exact-scheme EVM payments by EIP-712 signature
// recovery and settles them locally. On-chain submission is out of scope;
// a settlement here is a signed, verified authorization the operator can
// redeem with transferWithAuthorization.
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

// Verify implements x402.SchemeFacilitator. A bad signature or a stale
// authorization is a negative verification, not an error; errors are
// reserved for payloads that cannot be checked at all.
func (f *Facilitator) Verify(_ context.Context, payload x402.PaymentPayload, requirements x402.PaymentRequirements) (*x402.VerificationResult, error) {
	decoded, err := PayloadFromMap(payload.Payload)
	if err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeInvalidPayload, "malformed EVM payment payload", err)
	}
	authorization := decoded.Authorization

	if reason := f.checkAuthorization(authorization, requirements); reason != "" {
		return &x402.VerificationResult{Valid: false, Method: x402.VerifyMethodSignature, Error: reason}, nil
	}

	domain, err := assetDomain(requirements)
	if err != nil {
		return nil, err
	}
	digest, err := HashTransferAuthorization(authorization,
		domain.ChainID, domain.Asset, domain.Name, domain.Version)
	if err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeInvalidPayload, "unhashable authorization", err)
	}

	payer, ok := recoverSigner(digest, decoded.Signature)
	if !ok || !sameAddress(payer, authorization.From) {
		return &x402.VerificationResult{
			Valid:  false,
			Method: x402.VerifyMethodSignature,
			Error:  "signature does not match the authorization payer",
		}, nil
	}

	now := f.clock()
	return &x402.VerificationResult{
		Valid:      true,
		Method:     x402.VerifyMethodSignature,
		Payer:      payer,
		PaidAmount: authorization.Value,
		Timestamp:  &now,
	}, nil
}

// Settle implements x402.SchemeFacilitator. Settlement re-verifies and
// records the authorization under a fresh settlement id.
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

// checkAuthorization returns a rejection reason, or "" when the
// authorization satisfies the requirement.
func (f *Facilitator) checkAuthorization(authorization TransferAuthorization, requirements x402.PaymentRequirements) string {
	if authorization.Value != requirements.Amount {
		return "authorization value does not match the requirement"
	}
	if !sameAddress(authorization.To, requirements.PayTo) {
		return "authorization recipient does not match the requirement"
	}

	validBefore, err := strconv.ParseInt(authorization.ValidBefore, 10, 64)
	if err != nil || f.clock().Unix() >= validBefore {
		return "transfer authorization has expired"
	}
	return ""
}

// recoverSigner recovers the checksummed signer address from a 65-byte
// (r, s, v) signature over the digest.
func recoverSigner(digest []byte, signature string) (string, bool) {
	sig, err := hexutil.Decode(ensureHexPrefix(signature))
	if err != nil || len(sig) != 65 {
		return "", false
	}
	// Normalize v from {27, 28} to {0, 1} for recovery.
	recovery := make([]byte, 65)
	copy(recovery, sig)
	if recovery[64] >= 27 {
		recovery[64] -= 27
	}

	pub, err := crypto.SigToPub(digest, recovery)
	if err != nil {
		return "", false
	}
	return crypto.PubkeyToAddress(*pub).Hex(), true
}

func sameAddress(a, b string) bool {
	return common.HexToAddress(a) == common.HexToAddress(b)
}
