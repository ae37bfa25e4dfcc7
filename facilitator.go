package x402

import (
	"context"
)

// LocalFacilitator satisfies the Facilitator contract in-process by
// routing verify/settle calls to Facilitator-role schemes in a registry.
// It is the on-chain / signature-checking alternative to delegating to a
// remote facilitator service over HTTP.
type LocalFacilitator struct {
	registry   *SchemeRegistry
	extensions []string
}

// LocalFacilitatorOption configures a LocalFacilitator.
type LocalFacilitatorOption func(*LocalFacilitator)

// WithExtensions declares protocol extensions advertised by GetSupported.
func WithExtensions(extensions ...string) LocalFacilitatorOption {
	return func(f *LocalFacilitator) {
		f.extensions = append(f.extensions, extensions...)
	}
}

// NewLocalFacilitator creates a facilitator backed by the registry's
// Facilitator-role schemes.
func NewLocalFacilitator(registry *SchemeRegistry, opts ...LocalFacilitatorOption) *LocalFacilitator {
	f := &LocalFacilitator{registry: registry}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Verify routes the payload to the matching Facilitator-role scheme.
func (f *LocalFacilitator) Verify(ctx context.Context, payload PaymentPayload, requirements PaymentRequirements) (*VerificationResult, error) {
	scheme, err := f.registry.ResolveFacilitator(requirements.Scheme, requirements.Network)
	if err != nil {
		return nil, err
	}
	return scheme.Verify(ctx, payload, requirements)
}

// Settle routes the payload to the matching Facilitator-role scheme.
func (f *LocalFacilitator) Settle(ctx context.Context, payload PaymentPayload, requirements PaymentRequirements) (*SettlementResult, error) {
	scheme, err := f.registry.ResolveFacilitator(requirements.Scheme, requirements.Network)
	if err != nil {
		return nil, err
	}
	return scheme.Settle(ctx, payload, requirements)
}

// GetSupported enumerates the registered facilitator capabilities.
func (f *LocalFacilitator) GetSupported(_ context.Context) (SupportedResponse, error) {
	extensions := f.extensions
	if extensions == nil {
		extensions = []string{}
	}
	return SupportedResponse{
		Kinds:      f.registry.FacilitatorKinds(),
		Extensions: extensions,
	}, nil
}
