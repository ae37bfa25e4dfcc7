package http

import (
	"context"
	"time"

	x402 "github.com/x402-foundation/x402-core"
)

// testScheme implements all three scheme roles for transport and paywall
// tests.
type testScheme struct {
	asset string
}

func (s *testScheme) Scheme() string { return "exact" }

func (s *testScheme) CreatePaymentPayload(_ context.Context, req x402.PaymentRequirements) (map[string]interface{}, error) {
	return map[string]interface{}{
		"signature": "0xtestsig",
		"amount":    req.Amount,
	}, nil
}

func (s *testScheme) ParsePrice(price x402.Price, _ x402.Network) (x402.AssetAmount, error) {
	amount, ok := price.(string)
	if !ok {
		return x402.AssetAmount{}, x402.NewPaymentError(x402.ErrCodeInvalidPayload, "unsupported price type", nil)
	}
	return x402.AssetAmount{Asset: s.asset, Amount: amount}, nil
}

func (s *testScheme) ValidatePayload(x402.PaymentPayload, x402.PaymentRequirements, time.Time) error {
	return nil
}

func (s *testScheme) PaymentNonce(p x402.PaymentPayload) (string, error) {
	return x402.ProofDigest(p), nil
}

func (s *testScheme) Verify(_ context.Context, p x402.PaymentPayload, _ x402.PaymentRequirements) (*x402.VerificationResult, error) {
	if p.Payload["signature"] != "0xtestsig" {
		return &x402.VerificationResult{Valid: false, Error: "bad signature"}, nil
	}
	return &x402.VerificationResult{Valid: true, Method: x402.VerifyMethodSignature, Payer: "0xPayer"}, nil
}

func (s *testScheme) Settle(_ context.Context, _ x402.PaymentPayload, req x402.PaymentRequirements) (*x402.SettlementResult, error) {
	return &x402.SettlementResult{
		Success:      true,
		SettlementID: "settle-1",
		NetAmount:    req.Amount,
		Status:       x402.SettlementConfirmed,
		Timestamp:    time.Now(),
	}, nil
}

func testRegistry() *x402.SchemeRegistry {
	return x402.NewSchemeRegistry().
		RegisterClient("eip155:*", &testScheme{asset: "0xUSDC"}).
		RegisterServer("eip155:*", &testScheme{asset: "0xUSDC"}).
		RegisterFacilitator("eip155:*", &testScheme{asset: "0xUSDC"})
}

func testEngine() *x402.PaymentEngine {
	engine, err := x402.NewPaymentEngine(testRegistry())
	if err != nil {
		panic(err)
	}
	return engine
}

func testResourceServer() *x402.ResourceServer {
	registry := testRegistry()
	server, err := x402.NewResourceServer(x402.ResourceServerConfig{
		Wallet:      "0xServerWallet",
		Registry:    registry,
		Facilitator: x402.NewLocalFacilitator(registry),
	})
	if err != nil {
		panic(err)
	}
	return server
}

func testChallenge() x402.PaymentRequired {
	return x402.PaymentRequired{
		X402Version: x402.ProtocolVersion,
		Resource:    &x402.ResourceInfo{URL: "https://api.example.com/data"},
		Accepts: []x402.PaymentRequirements{{
			Scheme:            "exact",
			Network:           "eip155:8453",
			Asset:             "0xUSDC",
			Amount:            "10000",
			PayTo:             "0xServerWallet",
			MaxTimeoutSeconds: 300,
		}},
	}
}
