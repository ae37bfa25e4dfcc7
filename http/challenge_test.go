package http

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x402 "github.com/x402-foundation/x402-core"
)

func response402() *http.Response {
	return &http.Response{
		StatusCode: http.StatusPaymentRequired,
		Header:     make(http.Header),
	}
}

func TestParseChallengeJSONBody(t *testing.T) {
	resp := response402()
	body, err := json.Marshal(testChallenge())
	require.NoError(t, err)

	required, err := ParseChallenge(resp, body)
	require.NoError(t, err)
	require.Len(t, required.Accepts, 1)
	assert.Equal(t, x402.Network("eip155:8453"), required.Accepts[0].Network)
}

func TestParseChallengeHeader(t *testing.T) {
	resp := response402()
	header, err := EncodePaymentRequiredHeader(testChallenge())
	require.NoError(t, err)
	resp.Header.Set(HeaderPaymentRequired, header)

	required, err := ParseChallenge(resp, nil)
	require.NoError(t, err)
	require.Len(t, required.Accepts, 1)
	assert.Equal(t, "10000", required.Accepts[0].Amount)
}

func TestParseChallengeWWWAuthenticate(t *testing.T) {
	resp := response402()
	resp.Header.Set("WWW-Authenticate",
		`x402 scheme="exact", network="eip155:8453", asset="0xUSDC", amount="5000", payto="0xW"`)

	required, err := ParseChallenge(resp, nil)
	require.NoError(t, err)
	require.Len(t, required.Accepts, 1)
	req := required.Accepts[0]
	assert.Equal(t, "exact", req.Scheme)
	assert.Equal(t, x402.Network("eip155:8453"), req.Network)
	assert.Equal(t, "5000", req.Amount)
	assert.Equal(t, "0xW", req.PayTo)
	assert.Equal(t, x402.DefaultMaxTimeoutSeconds, req.MaxTimeoutSeconds)
}

func TestParseChallengeWWWAuthenticateOtherScheme(t *testing.T) {
	resp := response402()
	resp.Header.Set("WWW-Authenticate", `Bearer realm="api"`)

	_, err := ParseChallenge(resp, nil)
	require.Error(t, err)
}

func TestParseChallengeLegacyHeaders(t *testing.T) {
	resp := response402()
	resp.Header.Set(HeaderLegacyPrice, "10000")
	resp.Header.Set(HeaderLegacyRecipient, "0xRecipient")
	resp.Header.Set(HeaderLegacyToken, "0xUSDC")
	resp.Header.Set(HeaderLegacyChain, "eip155:8453")

	required, err := ParseChallenge(resp, nil)
	require.NoError(t, err)
	require.Len(t, required.Accepts, 1)
	req := required.Accepts[0]
	assert.Equal(t, "exact", req.Scheme)
	assert.Equal(t, "0xRecipient", req.PayTo)
	assert.Equal(t, 1, required.X402Version)
}

func TestParseChallengeLegacyIncomplete(t *testing.T) {
	resp := response402()
	resp.Header.Set(HeaderLegacyPrice, "10000")

	_, err := ParseChallenge(resp, nil)
	require.Error(t, err)
	assert.Equal(t, x402.ErrCodeInvalidPayload, x402.CodeOf(err))
}

func TestParseChallengePriority(t *testing.T) {
	// A structured body wins over legacy headers carrying different values.
	resp := response402()
	resp.Header.Set(HeaderLegacyPrice, "99999")
	resp.Header.Set(HeaderLegacyRecipient, "0xLegacy")
	resp.Header.Set(HeaderLegacyToken, "0xOld")
	resp.Header.Set(HeaderLegacyChain, "eip155:1")
	body, err := json.Marshal(testChallenge())
	require.NoError(t, err)

	required, err := ParseChallenge(resp, body)
	require.NoError(t, err)
	assert.Equal(t, "10000", required.Accepts[0].Amount)
	assert.Equal(t, x402.Network("eip155:8453"), required.Accepts[0].Network)
}

func TestParseChallengeNothingRecognizable(t *testing.T) {
	_, err := ParseChallenge(response402(), []byte("upgrade required"))
	require.Error(t, err)
	assert.Equal(t, x402.ErrCodeInvalidPayload, x402.CodeOf(err))
}
