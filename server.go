package x402

import (
	"context"
	"fmt"
	"time"
)

// RouteAccept is one (scheme, network) combination a route accepts, in
// server preference order.
type RouteAccept struct {
	Scheme  string  `json:"scheme"`
	Network Network `json:"network"`
}

// RouteConfig is the payment configuration of one protected route.
type RouteConfig struct {
	// Accepts lists acceptable payment options, most preferred first.
	Accepts []RouteAccept

	// Price is the static price for the route. Ignored when Calculator
	// is set.
	Price Price

	// Calculator computes a request-specific price.
	Calculator PriceCalculator

	// PayTo overrides the server wallet as the payment recipient.
	PayTo string

	// MaxTimeoutSeconds is the payment deadline window; defaults to
	// DefaultMaxTimeoutSeconds.
	MaxTimeoutSeconds int

	Description string
	MimeType    string
}

// ResourceServerConfig wires the collaborators of a ResourceServer. It is
// constructed once at startup and owned by the server; there is no
// process-global configuration.
type ResourceServerConfig struct {
	// Wallet is the default payment recipient for routes without PayTo.
	Wallet string

	// Registry supplies Server-role schemes for price parsing and payload
	// validation.
	Registry *SchemeRegistry

	// Facilitator verifies and settles payments (local or HTTP-delegated).
	Facilitator Facilitator

	// Nonces is the replay-protection ledger. Defaults to an in-memory
	// store.
	Nonces NonceStore
}

// ResourceServer orchestrates the server side of the x402 flow: it builds
// PaymentRequired challenges for protected routes and validates inbound
// payment payloads against them.
type ResourceServer struct {
	cfg   ResourceServerConfig
	clock func() time.Time
}

// ResourceServerOption configures a ResourceServer.
type ResourceServerOption func(*ResourceServer)

// WithClock overrides the time source (tests).
func WithClock(clock func() time.Time) ResourceServerOption {
	return func(s *ResourceServer) {
		s.clock = clock
	}
}

// NewResourceServer creates a ResourceServer from its configuration.
func NewResourceServer(cfg ResourceServerConfig, opts ...ResourceServerOption) (*ResourceServer, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("x402: resource server requires a scheme registry")
	}
	if cfg.Facilitator == nil {
		return nil, fmt.Errorf("x402: resource server requires a facilitator")
	}
	if cfg.Nonces == nil {
		cfg.Nonces = NewMemoryNonceStore()
	}

	s := &ResourceServer{cfg: cfg, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// BuildPaymentRequired produces the 402 challenge for a route: one
// requirements entry per accepted (scheme, network), in preference order.
func (s *ResourceServer) BuildPaymentRequired(ctx context.Context, route RouteConfig, info ResourceInfo, pricing PricingContext) (PaymentRequired, error) {
	if len(route.Accepts) == 0 {
		return PaymentRequired{}, NewPaymentError(ErrCodeNoMatchingScheme, "route accepts no payment options", nil)
	}

	price := route.Price
	if route.Calculator != nil {
		breakdown, err := route.Calculator.Calculate(ctx, pricing)
		if err != nil {
			return PaymentRequired{}, fmt.Errorf("x402: price calculation failed: %w", err)
		}
		price = breakdown.Total().String()
	}

	timeout := route.MaxTimeoutSeconds
	if timeout <= 0 {
		timeout = DefaultMaxTimeoutSeconds
	}

	payTo := route.PayTo
	if payTo == "" {
		payTo = s.cfg.Wallet
	}

	var accepts []PaymentRequirements
	for _, accept := range route.Accepts {
		server, err := s.cfg.Registry.ResolveServer(accept.Scheme, accept.Network)
		if err != nil {
			return PaymentRequired{}, err
		}

		assetAmount, err := server.ParsePrice(price, accept.Network)
		if err != nil {
			return PaymentRequired{}, fmt.Errorf("x402: parse price for %s: %w", accept.Network, err)
		}

		accepts = append(accepts, PaymentRequirements{
			Scheme:            accept.Scheme,
			Network:           accept.Network,
			Asset:             assetAmount.Asset,
			Amount:            assetAmount.Amount,
			PayTo:             payTo,
			MaxTimeoutSeconds: timeout,
			Extra:             assetAmount.Extra,
		})
	}

	return PaymentRequired{
		X402Version: ProtocolVersion,
		Resource:    &info,
		Accepts:     accepts,
		Error:       "Payment required",
	}, nil
}

// PaymentReceipt is the outcome of a fully processed payment.
type PaymentReceipt struct {
	Verification VerificationResult `json:"verification"`
	Settlement   *SettlementResult  `json:"settlement,omitempty"`
}

// ProcessPayment validates an inbound payload against the originally
// offered requirements, verifies it through the facilitator, consumes the
// payment-proof nonce, and settles.
//
// The proof is spent the moment verification succeeds: a settlement
// failure afterwards is reported but does not release the nonce, so the
// same proof cannot be re-submitted against another route.
func (s *ResourceServer) ProcessPayment(ctx context.Context, payload PaymentPayload, offered []PaymentRequirements) (*PaymentReceipt, error) {
	if err := ValidatePaymentPayload(payload); err != nil {
		return nil, err
	}

	if !ContainsRequirement(offered, payload.Accepted) {
		return nil, NewPaymentError(ErrCodeRequirementMismatch,
			"accepted requirement was altered or never offered", nil)
	}

	now := s.clock()
	requirements := payload.Accepted

	server, err := s.cfg.Registry.ResolveServer(requirements.Scheme, requirements.Network)
	if err != nil {
		return nil, err
	}
	if err := server.ValidatePayload(payload, requirements, now); err != nil {
		return nil, err
	}

	verification, err := s.cfg.Facilitator.Verify(ctx, payload, requirements)
	if err != nil {
		if CodeOf(err) != "" {
			return nil, err
		}
		return nil, NewPaymentError(ErrCodeVerificationFailed, "payment verification failed", err)
	}
	if !verification.Valid {
		return &PaymentReceipt{Verification: *verification},
			NewPaymentError(ErrCodeVerificationFailed, verificationReason(verification), nil)
	}

	nonce, err := server.PaymentNonce(payload)
	if err != nil || nonce == "" {
		nonce = ProofDigest(payload)
	}

	ttl := time.Duration(requirements.MaxTimeoutSeconds) * time.Second
	if min := DefaultMaxTimeoutSeconds * time.Second; ttl < min {
		ttl = min
	}

	fresh, err := s.cfg.Nonces.Consume(ctx, nonce, ttl)
	if err != nil {
		return nil, fmt.Errorf("x402: nonce store: %w", err)
	}
	if !fresh {
		replayed := *verification
		replayed.IsReplay = true
		replayed.Valid = false
		return &PaymentReceipt{Verification: replayed},
			NewPaymentError(ErrCodeReplayDetected, "payment proof already consumed", nil).
				WithDetails("nonce", nonce)
	}

	settlement, err := s.cfg.Facilitator.Settle(ctx, payload, requirements)
	if err != nil {
		if CodeOf(err) == ErrCodeFacilitatorUnreachable {
			return &PaymentReceipt{Verification: *verification}, err
		}
		return &PaymentReceipt{Verification: *verification},
			NewPaymentError(ErrCodeSettlementFailed, "payment settlement failed", err)
	}
	if !settlement.Success {
		return &PaymentReceipt{Verification: *verification, Settlement: settlement},
			NewPaymentError(ErrCodeSettlementFailed, settlementReason(settlement), nil)
	}

	return &PaymentReceipt{Verification: *verification, Settlement: settlement}, nil
}

func verificationReason(v *VerificationResult) string {
	if v.Error != "" {
		return v.Error
	}
	return "payment verification rejected"
}

func settlementReason(s *SettlementResult) string {
	if s.Error != "" {
		return s.Error
	}
	return "payment settlement rejected"
}
