package x402

import (
	"context"
	"fmt"
)

// EngineState is the lifecycle state of one payment attempt.
type EngineState string

const (
	StateUnpaid     EngineState = "unpaid"
	StateChallenged EngineState = "challenged"
	StateSelecting  EngineState = "selecting"
	StateSigning    EngineState = "signing"
	StateRetrying   EngineState = "retrying"
	StateSettled    EngineState = "settled"
	StateFailed     EngineState = "failed"
)

// PaymentEngine drives the client side of the flow: given a 402 challenge
// it filters the offered requirements down to the mutually supported set,
// selects one, and produces a signed PaymentPayload.
//
// The engine holds no per-request state; one instance serves any number of
// concurrent payments.
type PaymentEngine struct {
	registry *SchemeRegistry
	selector RequirementsSelector
}

// EngineOption configures a PaymentEngine.
type EngineOption func(*PaymentEngine)

// WithSelector replaces the default selector (first mutually supported
// entry, preserving the server's preference order).
func WithSelector(selector RequirementsSelector) EngineOption {
	return func(e *PaymentEngine) {
		if selector != nil {
			e.selector = selector
		}
	}
}

// NewPaymentEngine creates an engine backed by the given registry.
func NewPaymentEngine(registry *SchemeRegistry, opts ...EngineOption) (*PaymentEngine, error) {
	if registry == nil {
		return nil, fmt.Errorf("x402: payment engine requires a scheme registry")
	}

	e := &PaymentEngine{
		registry: registry,
		selector: func(accepts []PaymentRequirements) PaymentRequirements {
			return accepts[0]
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// SupportedRequirements filters the offered requirements down to those the
// engine has a registered Client-role scheme for, preserving order.
func (e *PaymentEngine) SupportedRequirements(accepts []PaymentRequirements) []PaymentRequirements {
	var supported []PaymentRequirements
	for _, req := range accepts {
		if e.registry.SupportsClient(req.Scheme, req.Network) {
			supported = append(supported, req)
		}
	}
	return supported
}

// SelectRequirement picks exactly one requirement from a challenge.
func (e *PaymentEngine) SelectRequirement(required PaymentRequired) (PaymentRequirements, error) {
	if required.X402Version <= 0 || required.X402Version > ProtocolVersion {
		return PaymentRequirements{}, NewPaymentError(ErrCodeInvalidPayload,
			fmt.Sprintf("unsupported protocol version %d", required.X402Version), nil)
	}
	if len(required.Accepts) == 0 {
		return PaymentRequirements{}, NewPaymentError(ErrCodeInvalidPayload,
			"challenge offers no payment requirements", nil)
	}

	supported := e.SupportedRequirements(required.Accepts)
	if len(supported) == 0 {
		return PaymentRequirements{}, NewPaymentError(ErrCodeNoMatchingScheme,
			"no mutually supported payment scheme", nil)
	}

	return e.selector(supported), nil
}

// CreatePayment selects a requirement and signs a payment for it. The
// selected requirement is echoed verbatim in the payload's accepted field,
// which the server checks for membership against its original offer.
func (e *PaymentEngine) CreatePayment(ctx context.Context, required PaymentRequired) (PaymentPayload, error) {
	selected, err := e.SelectRequirement(required)
	if err != nil {
		return PaymentPayload{}, err
	}

	client, err := e.registry.ResolveClient(selected.Scheme, selected.Network)
	if err != nil {
		return PaymentPayload{}, err
	}

	proof, err := client.CreatePaymentPayload(ctx, selected)
	if err != nil {
		if CodeOf(err) != "" {
			return PaymentPayload{}, err
		}
		return PaymentPayload{}, NewPaymentError(ErrCodeInvalidPayload, "payment signing failed", err)
	}

	payload := PaymentPayload{
		X402Version: required.X402Version,
		Resource:    required.Resource,
		Accepted:    selected,
		Payload:     proof,
	}
	if err := ValidatePaymentPayload(payload); err != nil {
		return PaymentPayload{}, err
	}
	return payload, nil
}
