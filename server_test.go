package x402

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSchemeServer is a configurable Server-role scheme for pipeline tests.
type fakeSchemeServer struct {
	scheme      string
	asset       string
	validateErr error
	nonce       string
}

func (f *fakeSchemeServer) Scheme() string { return f.scheme }

func (f *fakeSchemeServer) ParsePrice(price Price, _ Network) (AssetAmount, error) {
	amount, ok := price.(string)
	if !ok {
		return AssetAmount{}, NewPaymentError(ErrCodeInvalidPayload, "unsupported price type", nil)
	}
	return AssetAmount{Asset: f.asset, Amount: amount}, nil
}

func (f *fakeSchemeServer) ValidatePayload(_ PaymentPayload, _ PaymentRequirements, _ time.Time) error {
	return f.validateErr
}

func (f *fakeSchemeServer) PaymentNonce(_ PaymentPayload) (string, error) {
	return f.nonce, nil
}

// fakeFacilitator records calls and returns scripted results.
type fakeFacilitator struct {
	verifyResult *VerificationResult
	verifyErr    error
	settleResult *SettlementResult
	settleErr    error
	verifyCalls  int
	settleCalls  int
}

func (f *fakeFacilitator) Verify(_ context.Context, _ PaymentPayload, _ PaymentRequirements) (*VerificationResult, error) {
	f.verifyCalls++
	return f.verifyResult, f.verifyErr
}

func (f *fakeFacilitator) Settle(_ context.Context, _ PaymentPayload, _ PaymentRequirements) (*SettlementResult, error) {
	f.settleCalls++
	return f.settleResult, f.settleErr
}

func (f *fakeFacilitator) GetSupported(_ context.Context) (SupportedResponse, error) {
	return SupportedResponse{Extensions: []string{}}, nil
}

func testServer(t *testing.T, facilitator Facilitator) *ResourceServer {
	t.Helper()
	registry := NewSchemeRegistry().
		RegisterServer("eip155:*", &fakeSchemeServer{scheme: "exact", asset: "0xUSDC", nonce: "proof-nonce"}).
		RegisterServer("solana:*", &fakeSchemeServer{scheme: "exact", asset: "SOLUSDC", nonce: "proof-nonce"})

	server, err := NewResourceServer(ResourceServerConfig{
		Wallet:      "0xServerWallet",
		Registry:    registry,
		Facilitator: facilitator,
	})
	require.NoError(t, err)
	return server
}

func testRoute() RouteConfig {
	return RouteConfig{
		Accepts: []RouteAccept{
			{Scheme: "exact", Network: "eip155:8453"},
			{Scheme: "exact", Network: "solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp"},
		},
		Price:       "10000",
		Description: "premium data",
		MimeType:    "application/json",
	}
}

func okFacilitator() *fakeFacilitator {
	return &fakeFacilitator{
		verifyResult: &VerificationResult{Valid: true, Method: VerifyMethodSignature, Payer: "0xPayer"},
		settleResult: &SettlementResult{Success: true, SettlementID: "s-1", Status: SettlementConfirmed},
	}
}

func TestBuildPaymentRequired(t *testing.T) {
	server := testServer(t, okFacilitator())

	required, err := server.BuildPaymentRequired(context.Background(), testRoute(),
		ResourceInfo{URL: "https://api.example.com/data"}, PricingContext{})
	require.NoError(t, err)

	require.Len(t, required.Accepts, 2)
	assert.Equal(t, ProtocolVersion, required.X402Version)
	assert.Equal(t, Network("eip155:8453"), required.Accepts[0].Network, "preference order preserved")
	assert.Equal(t, "0xUSDC", required.Accepts[0].Asset)
	assert.Equal(t, "SOLUSDC", required.Accepts[1].Asset)
	assert.Equal(t, "0xServerWallet", required.Accepts[0].PayTo)
	assert.Equal(t, DefaultMaxTimeoutSeconds, required.Accepts[0].MaxTimeoutSeconds)
}

func TestBuildPaymentRequiredPayToOverride(t *testing.T) {
	server := testServer(t, okFacilitator())
	route := testRoute()
	route.PayTo = "0xRouteWallet"

	required, err := server.BuildPaymentRequired(context.Background(), route, ResourceInfo{}, PricingContext{})
	require.NoError(t, err)
	assert.Equal(t, "0xRouteWallet", required.Accepts[0].PayTo)
}

func TestBuildPaymentRequiredDynamicPrice(t *testing.T) {
	server := testServer(t, okFacilitator())
	route := testRoute()
	route.Calculator = &DynamicPricer{Base: bigInt(1000), PerByte: bigInt(2)}

	required, err := server.BuildPaymentRequired(context.Background(), route,
		ResourceInfo{}, PricingContext{BodySize: 500})
	require.NoError(t, err)
	assert.Equal(t, "2000", required.Accepts[0].Amount)
}

func paidPayload(required PaymentRequired) PaymentPayload {
	return PaymentPayload{
		X402Version: ProtocolVersion,
		Accepted:    required.Accepts[0],
		Payload:     map[string]interface{}{"signature": "0xsig", "nonce": "n-1"},
	}
}

func TestProcessPaymentHappyPath(t *testing.T) {
	facilitator := okFacilitator()
	server := testServer(t, facilitator)
	required, err := server.BuildPaymentRequired(context.Background(), testRoute(), ResourceInfo{}, PricingContext{})
	require.NoError(t, err)

	receipt, err := server.ProcessPayment(context.Background(), paidPayload(required), required.Accepts)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.True(t, receipt.Verification.Valid)
	require.NotNil(t, receipt.Settlement)
	assert.True(t, receipt.Settlement.Success)
	assert.Equal(t, 1, facilitator.verifyCalls)
	assert.Equal(t, 1, facilitator.settleCalls)
}

func TestProcessPaymentRequirementMismatch(t *testing.T) {
	facilitator := okFacilitator()
	server := testServer(t, facilitator)
	required, _ := server.BuildPaymentRequired(context.Background(), testRoute(), ResourceInfo{}, PricingContext{})

	payload := paidPayload(required)
	payload.Accepted.Amount = "1" // client tampered with the price

	_, err := server.ProcessPayment(context.Background(), payload, required.Accepts)
	require.Error(t, err)
	assert.Equal(t, ErrCodeRequirementMismatch, CodeOf(err))
	assert.Zero(t, facilitator.verifyCalls, "mismatched payment never reaches the facilitator")
}

func TestProcessPaymentDeadlineExpired(t *testing.T) {
	facilitator := okFacilitator()
	registry := NewSchemeRegistry().
		RegisterServer("eip155:*", &fakeSchemeServer{
			scheme:      "exact",
			asset:       "0xUSDC",
			validateErr: NewPaymentError(ErrCodeDeadlineExpired, "authorization expired", nil),
		})
	server, err := NewResourceServer(ResourceServerConfig{
		Wallet: "0xW", Registry: registry, Facilitator: facilitator,
	})
	require.NoError(t, err)

	route := RouteConfig{
		Accepts: []RouteAccept{{Scheme: "exact", Network: "eip155:8453"}},
		Price:   "10000",
	}
	required, err := server.BuildPaymentRequired(context.Background(), route, ResourceInfo{}, PricingContext{})
	require.NoError(t, err)

	_, err = server.ProcessPayment(context.Background(), paidPayload(required), required.Accepts)
	require.Error(t, err)
	assert.Equal(t, ErrCodeDeadlineExpired, CodeOf(err))
	assert.Zero(t, facilitator.verifyCalls)
}

func TestProcessPaymentVerificationFailed(t *testing.T) {
	facilitator := okFacilitator()
	facilitator.verifyResult = &VerificationResult{Valid: false, Error: "bad signature"}
	server := testServer(t, facilitator)
	required, _ := server.BuildPaymentRequired(context.Background(), testRoute(), ResourceInfo{}, PricingContext{})

	receipt, err := server.ProcessPayment(context.Background(), paidPayload(required), required.Accepts)
	require.Error(t, err)
	assert.Equal(t, ErrCodeVerificationFailed, CodeOf(err))
	require.NotNil(t, receipt)
	assert.False(t, receipt.Verification.Valid)
	assert.Zero(t, facilitator.settleCalls, "invalid payment is never settled")
}

func TestProcessPaymentFacilitatorUnreachable(t *testing.T) {
	facilitator := okFacilitator()
	facilitator.verifyResult = nil
	facilitator.verifyErr = NewPaymentError(ErrCodeFacilitatorUnreachable, "dial tcp: timeout", nil)
	server := testServer(t, facilitator)
	required, _ := server.BuildPaymentRequired(context.Background(), testRoute(), ResourceInfo{}, PricingContext{})
	payload := paidPayload(required)

	_, err := server.ProcessPayment(context.Background(), payload, required.Accepts)
	require.Error(t, err)
	assert.Equal(t, ErrCodeFacilitatorUnreachable, CodeOf(err),
		"transport failure is distinct from a negative verification")

	// The proof was never spent: once the facilitator recovers, the same
	// payment goes through instead of tripping replay protection.
	facilitator.verifyErr = nil
	facilitator.verifyResult = &VerificationResult{Valid: true, Method: VerifyMethodSignature, Payer: "0xPayer"}
	receipt, err := server.ProcessPayment(context.Background(), payload, required.Accepts)
	require.NoError(t, err)
	assert.True(t, receipt.Verification.Valid)
}

// ctxFacilitator fails Verify when the request context is already done,
// like a real HTTP facilitator client would.
type ctxFacilitator struct {
	*fakeFacilitator
}

func (f *ctxFacilitator) Verify(ctx context.Context, payload PaymentPayload, requirements PaymentRequirements) (*VerificationResult, error) {
	if err := ctx.Err(); err != nil {
		f.verifyCalls++
		return nil, err
	}
	return f.fakeFacilitator.Verify(ctx, payload, requirements)
}

func TestProcessPaymentCancelledVerificationKeepsNonceFresh(t *testing.T) {
	facilitator := &ctxFacilitator{fakeFacilitator: okFacilitator()}
	server := testServer(t, facilitator)
	required, _ := server.BuildPaymentRequired(context.Background(), testRoute(), ResourceInfo{}, PricingContext{})
	payload := paidPayload(required)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := server.ProcessPayment(ctx, payload, required.Accepts)
	require.Error(t, err)
	assert.Equal(t, ErrCodeVerificationFailed, CodeOf(err))
	assert.Zero(t, facilitator.settleCalls, "cancelled payment is never settled")

	// Cancellation before verification completes must not consume the
	// nonce: the identical proof succeeds on a live context.
	receipt, err := server.ProcessPayment(context.Background(), payload, required.Accepts)
	require.NoError(t, err)
	assert.True(t, receipt.Verification.Valid)
	require.NotNil(t, receipt.Settlement)
	assert.True(t, receipt.Settlement.Success)
}

func TestProcessPaymentReplay(t *testing.T) {
	facilitator := okFacilitator()
	server := testServer(t, facilitator)
	required, _ := server.BuildPaymentRequired(context.Background(), testRoute(), ResourceInfo{}, PricingContext{})
	payload := paidPayload(required)

	_, err := server.ProcessPayment(context.Background(), payload, required.Accepts)
	require.NoError(t, err)

	receipt, err := server.ProcessPayment(context.Background(), payload, required.Accepts)
	require.Error(t, err)
	assert.Equal(t, ErrCodeReplayDetected, CodeOf(err))
	require.NotNil(t, receipt)
	assert.True(t, receipt.Verification.IsReplay)
	assert.False(t, receipt.Verification.Valid)
	assert.Equal(t, 1, facilitator.settleCalls, "a replay is never settled a second time")
}

func TestProcessPaymentSettlementFailureKeepsNonceConsumed(t *testing.T) {
	facilitator := okFacilitator()
	facilitator.settleResult = &SettlementResult{Success: false, Status: SettlementFailed, Error: "insufficient funds"}
	server := testServer(t, facilitator)
	required, _ := server.BuildPaymentRequired(context.Background(), testRoute(), ResourceInfo{}, PricingContext{})
	payload := paidPayload(required)

	receipt, err := server.ProcessPayment(context.Background(), payload, required.Accepts)
	require.Error(t, err)
	assert.Equal(t, ErrCodeSettlementFailed, CodeOf(err))
	require.NotNil(t, receipt)
	require.NotNil(t, receipt.Settlement)
	assert.False(t, receipt.Settlement.Success)

	// The proof stays spent: resubmitting is a replay, not a retry.
	_, err = server.ProcessPayment(context.Background(), payload, required.Accepts)
	require.Error(t, err)
	assert.Equal(t, ErrCodeReplayDetected, CodeOf(err))
}

func TestProcessPaymentInvalidPayload(t *testing.T) {
	server := testServer(t, okFacilitator())

	_, err := server.ProcessPayment(context.Background(), PaymentPayload{X402Version: 99}, nil)
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidPayload, CodeOf(err))
}
