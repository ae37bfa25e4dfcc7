package x402

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evmOnlyEngine(t *testing.T) *PaymentEngine {
	t.Helper()
	registry := NewSchemeRegistry().
		RegisterClient("eip155:*", &stubClient{scheme: "exact", tag: "evm"})
	engine, err := NewPaymentEngine(registry)
	require.NoError(t, err)
	return engine
}

func twoChainChallenge() PaymentRequired {
	return PaymentRequired{
		X402Version: ProtocolVersion,
		Resource:    &ResourceInfo{URL: "https://api.example.com/report"},
		Accepts: []PaymentRequirements{
			{Scheme: "exact", Network: "eip155:8453", Asset: "0xUSDC", Amount: "10000", PayTo: "0xW", MaxTimeoutSeconds: 300},
			{Scheme: "exact", Network: "solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp", Asset: "SOLUSDC", Amount: "10000", PayTo: "sol1", MaxTimeoutSeconds: 300},
		},
	}
}

func TestSelectRequirementPrefersServerOrder(t *testing.T) {
	registry := NewSchemeRegistry().
		RegisterClient("eip155:*", &stubClient{scheme: "exact", tag: "evm"}).
		RegisterClient("solana:*", &stubClient{scheme: "exact", tag: "svm"})
	engine, err := NewPaymentEngine(registry)
	require.NoError(t, err)

	selected, err := engine.SelectRequirement(twoChainChallenge())
	require.NoError(t, err)
	assert.Equal(t, Network("eip155:8453"), selected.Network)
}

func TestSelectRequirementFiltersUnsupported(t *testing.T) {
	registry := NewSchemeRegistry().
		RegisterClient("solana:*", &stubClient{scheme: "exact", tag: "svm"})
	engine, err := NewPaymentEngine(registry)
	require.NoError(t, err)

	// Server prefers the EVM entry, but only the solana entry is mutually
	// supported, so it is chosen despite being listed second.
	selected, err := engine.SelectRequirement(twoChainChallenge())
	require.NoError(t, err)
	assert.Equal(t, Network("solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp"), selected.Network)
}

func TestSelectRequirementNoMutualScheme(t *testing.T) {
	engine, err := NewPaymentEngine(NewSchemeRegistry())
	require.NoError(t, err)

	_, err = engine.SelectRequirement(twoChainChallenge())
	require.Error(t, err)
	assert.Equal(t, ErrCodeNoMatchingScheme, CodeOf(err))
}

func TestSelectRequirementRejectsBadChallenge(t *testing.T) {
	engine := evmOnlyEngine(t)

	tests := []struct {
		name      string
		challenge PaymentRequired
	}{
		{"empty accepts", PaymentRequired{X402Version: ProtocolVersion}},
		{"future version", PaymentRequired{X402Version: ProtocolVersion + 1, Accepts: twoChainChallenge().Accepts}},
		{"zero version", PaymentRequired{Accepts: twoChainChallenge().Accepts}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.SelectRequirement(tt.challenge)
			require.Error(t, err)
			assert.Equal(t, ErrCodeInvalidPayload, CodeOf(err))
		})
	}
}

func TestSelectRequirementCustomSelector(t *testing.T) {
	registry := NewSchemeRegistry().
		RegisterClient("eip155:*", &stubClient{scheme: "exact"}).
		RegisterClient("solana:*", &stubClient{scheme: "exact"})
	engine, err := NewPaymentEngine(registry, WithSelector(func(accepts []PaymentRequirements) PaymentRequirements {
		return accepts[len(accepts)-1]
	}))
	require.NoError(t, err)

	selected, err := engine.SelectRequirement(twoChainChallenge())
	require.NoError(t, err)
	assert.Equal(t, Network("solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp"), selected.Network)
}

func TestCreatePaymentEchoesRequirementVerbatim(t *testing.T) {
	engine := evmOnlyEngine(t)
	challenge := twoChainChallenge()

	payload, err := engine.CreatePayment(context.Background(), challenge)
	require.NoError(t, err)

	assert.Equal(t, ProtocolVersion, payload.X402Version)
	assert.True(t, RequirementsEqual(challenge.Accepts[0], payload.Accepted))
	assert.True(t, ContainsRequirement(challenge.Accepts, payload.Accepted))
	require.NotNil(t, payload.Resource)
	assert.Equal(t, "https://api.example.com/report", payload.Resource.URL)
	assert.Equal(t, "evm", payload.Payload["tag"])
}

type failingClient struct{}

func (failingClient) Scheme() string { return "exact" }

func (failingClient) CreatePaymentPayload(context.Context, PaymentRequirements) (map[string]interface{}, error) {
	return nil, errors.New("keystore locked")
}

func TestCreatePaymentSigningFailure(t *testing.T) {
	registry := NewSchemeRegistry().RegisterClient("eip155:*", failingClient{})
	engine, err := NewPaymentEngine(registry)
	require.NoError(t, err)

	_, err = engine.CreatePayment(context.Background(), twoChainChallenge())
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidPayload, CodeOf(err))
}
