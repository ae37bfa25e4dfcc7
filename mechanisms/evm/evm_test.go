package evm_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x402 "github.com/x402-foundation/x402-core"
	"github.com/x402-foundation/x402-core/mechanisms/evm"
	evmsigner "github.com/x402-foundation/x402-core/signers/evm"
)

// Well-known anvil/hardhat development key, safe to embed in tests.
const testPrivateKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func testSigner(t *testing.T) *evmsigner.KeySigner {
	t.Helper()
	signer, err := evmsigner.NewKeySigner(testPrivateKey)
	require.NoError(t, err)
	return signer
}

func baseRequirement() x402.PaymentRequirements {
	return x402.PaymentRequirements{
		Scheme:            evm.SchemeExact,
		Network:           "eip155:8453",
		Asset:             "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		Amount:            "10000",
		PayTo:             "0x1111111111111111111111111111111111111111",
		MaxTimeoutSeconds: 300,
		Extra:             map[string]interface{}{"name": "USD Coin", "version": "2"},
	}
}

func TestClientSignsVerifiableAuthorization(t *testing.T) {
	client := evm.NewClient(testSigner(t))
	requirements := baseRequirement()

	proof, err := client.CreatePaymentPayload(context.Background(), requirements)
	require.NoError(t, err)

	payload := x402.PaymentPayload{
		X402Version: x402.ProtocolVersion,
		Accepted:    requirements,
		Payload:     proof,
	}

	facilitator := evm.NewFacilitator()
	result, err := facilitator.Verify(context.Background(), payload, requirements)
	require.NoError(t, err)
	assert.True(t, result.Valid, "verification error: %s", result.Error)
	assert.Equal(t, x402.VerifyMethodSignature, result.Method)
	assert.Equal(t, testSigner(t).Address(), result.Payer)
	assert.Equal(t, "10000", result.PaidAmount)
}

func TestClientNonceIsDeterministic(t *testing.T) {
	client := evm.NewClient(testSigner(t))
	requirements := baseRequirement()

	first, err := client.CreatePaymentPayload(context.Background(), requirements)
	require.NoError(t, err)
	second, err := client.CreatePaymentPayload(context.Background(), requirements)
	require.NoError(t, err)

	firstAuth := first["authorization"].(map[string]interface{})
	secondAuth := second["authorization"].(map[string]interface{})
	assert.Equal(t, firstAuth["nonce"], secondAuth["nonce"],
		"signing the same offer twice derives the same nonce")

	other := requirements
	other.Amount = "20000"
	third, err := client.CreatePaymentPayload(context.Background(), other)
	require.NoError(t, err)
	assert.NotEqual(t, firstAuth["nonce"], third["authorization"].(map[string]interface{})["nonce"],
		"a different offer derives a different nonce")
}

func TestFacilitatorRejectsTamperedAuthorization(t *testing.T) {
	client := evm.NewClient(testSigner(t))
	requirements := baseRequirement()

	proof, err := client.CreatePaymentPayload(context.Background(), requirements)
	require.NoError(t, err)

	// Redirect the signed authorization to another recipient.
	tampered := requirements
	tampered.PayTo = "0x2222222222222222222222222222222222222222"
	proof["authorization"].(map[string]interface{})["to"] = tampered.PayTo

	payload := x402.PaymentPayload{X402Version: 2, Accepted: tampered, Payload: proof}
	result, err := evm.NewFacilitator().Verify(context.Background(), payload, tampered)
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestFacilitatorRejectsWrongSigner(t *testing.T) {
	client := evm.NewClient(testSigner(t))
	requirements := baseRequirement()

	proof, err := client.CreatePaymentPayload(context.Background(), requirements)
	require.NoError(t, err)
	// Claim the authorization came from someone else.
	proof["authorization"].(map[string]interface{})["from"] = "0x3333333333333333333333333333333333333333"

	payload := x402.PaymentPayload{X402Version: 2, Accepted: requirements, Payload: proof}
	result, err := evm.NewFacilitator().Verify(context.Background(), payload, requirements)
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestFacilitatorSettle(t *testing.T) {
	client := evm.NewClient(testSigner(t))
	requirements := baseRequirement()

	proof, err := client.CreatePaymentPayload(context.Background(), requirements)
	require.NoError(t, err)
	payload := x402.PaymentPayload{X402Version: 2, Accepted: requirements, Payload: proof}

	settlement, err := evm.NewFacilitator().Settle(context.Background(), payload, requirements)
	require.NoError(t, err)
	assert.True(t, settlement.Success)
	assert.NotEmpty(t, settlement.SettlementID)
	assert.Equal(t, "10000", settlement.NetAmount)
	assert.Equal(t, x402.SettlementConfirmed, settlement.Status)
}

func TestServerParsePrice(t *testing.T) {
	server := evm.NewServer()

	tests := []struct {
		name  string
		price x402.Price
		want  string
	}{
		{"money string", "$1.50", "1500000"},
		{"money string no dollar", "2.5", "2500000"},
		{"sub-cent", "$0.0001", "100"},
		{"base units", "10000", "10000"},
		{"extra precision truncated", "$1.23456789", "1234567"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, err := server.ParsePrice(tt.price, "eip155:8453")
			require.NoError(t, err)
			assert.Equal(t, tt.want, amount.Amount)
			assert.Equal(t, "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", amount.Asset)
		})
	}
}

func TestServerParsePriceRejects(t *testing.T) {
	server := evm.NewServer()

	_, err := server.ParsePrice("not a price", "eip155:8453")
	require.Error(t, err)

	_, err = server.ParsePrice("$1.00", "eip155:999999")
	require.Error(t, err)
	assert.Equal(t, x402.ErrCodeNoMatchingScheme, x402.CodeOf(err))
}

func TestServerValidatePayloadDeadline(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	client := evm.NewClient(testSigner(t), evm.WithClientClock(func() time.Time { return now }))
	requirements := baseRequirement()

	proof, err := client.CreatePaymentPayload(context.Background(), requirements)
	require.NoError(t, err)
	payload := x402.PaymentPayload{X402Version: 2, Accepted: requirements, Payload: proof}

	server := evm.NewServer()
	assert.NoError(t, server.ValidatePayload(payload, requirements, now.Add(time.Minute)))

	err = server.ValidatePayload(payload, requirements, now.Add(10*time.Minute))
	require.Error(t, err)
	assert.Equal(t, x402.ErrCodeDeadlineExpired, x402.CodeOf(err))
}

func TestServerValidatePayloadMismatch(t *testing.T) {
	client := evm.NewClient(testSigner(t))
	requirements := baseRequirement()

	proof, err := client.CreatePaymentPayload(context.Background(), requirements)
	require.NoError(t, err)

	cheaper := requirements
	cheaper.Amount = "1"
	payload := x402.PaymentPayload{X402Version: 2, Accepted: cheaper, Payload: proof}

	err = evm.NewServer().ValidatePayload(payload, cheaper, time.Now())
	require.Error(t, err)
	assert.Equal(t, x402.ErrCodeRequirementMismatch, x402.CodeOf(err))
}

func TestServerPaymentNonce(t *testing.T) {
	client := evm.NewClient(testSigner(t))
	requirements := baseRequirement()

	proof, err := client.CreatePaymentPayload(context.Background(), requirements)
	require.NoError(t, err)
	payload := x402.PaymentPayload{X402Version: 2, Accepted: requirements, Payload: proof}

	nonce, err := evm.NewServer().PaymentNonce(payload)
	require.NoError(t, err)
	assert.Len(t, nonce, 66, "0x-prefixed 32-byte hex")
	assert.Equal(t, evm.AuthorizationNonce(requirements, testSigner(t).Address()), nonce)
}
