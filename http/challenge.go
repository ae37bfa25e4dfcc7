package http

import (
	"encoding/json"
	"net/http"
	"strings"

	x402 "github.com/x402-foundation/x402-core"
)

// ChallengeParser extracts a payment challenge from one source on a 402
// response. Parsers return (zero, false, nil) when their source is absent,
// and an error only when the source is present but malformed.
type ChallengeParser func(resp *http.Response, body []byte) (x402.PaymentRequired, bool, error)

// challengeParsers is the fixed fallback chain: the structured JSON
// challenge, then the WWW-Authenticate form, then the legacy headers.
// The first parser that recognizes its source wins.
var challengeParsers = []ChallengeParser{
	parseJSONChallenge,
	parseAuthenticateChallenge,
	parseLegacyChallenge,
}

// ParseChallenge extracts the payment challenge from a 402 response.
func ParseChallenge(resp *http.Response, body []byte) (x402.PaymentRequired, error) {
	for _, parse := range challengeParsers {
		required, ok, err := parse(resp, body)
		if err != nil {
			return x402.PaymentRequired{}, err
		}
		if ok {
			return required, nil
		}
	}
	return x402.PaymentRequired{}, x402.NewPaymentError(x402.ErrCodeInvalidPayload,
		"402 response carries no recognizable payment challenge", nil)
}

// parseJSONChallenge reads the structured challenge from the response body
// or the X-Payment-Required header.
func parseJSONChallenge(resp *http.Response, body []byte) (x402.PaymentRequired, bool, error) {
	if header := resp.Header.Get(HeaderPaymentRequired); header != "" {
		required, err := DecodePaymentRequiredHeader(header)
		if err != nil {
			return x402.PaymentRequired{}, false, x402.NewPaymentError(x402.ErrCodeInvalidPayload,
				"malformed X-Payment-Required header", err)
		}
		return required, true, nil
	}

	if len(body) == 0 {
		return x402.PaymentRequired{}, false, nil
	}
	var required x402.PaymentRequired
	if err := json.Unmarshal(body, &required); err != nil || len(required.Accepts) == 0 {
		return x402.PaymentRequired{}, false, nil
	}
	return required, true, nil
}

// parseAuthenticateChallenge reads a WWW-Authenticate challenge of the form
//
//	WWW-Authenticate: x402 scheme="exact", network="eip155:8453",
//	    asset="0x...", amount="10000", payto="0x..."
func parseAuthenticateChallenge(resp *http.Response, _ []byte) (x402.PaymentRequired, bool, error) {
	header := resp.Header.Get("WWW-Authenticate")
	if header == "" {
		return x402.PaymentRequired{}, false, nil
	}
	rest, ok := cutAuthScheme(header)
	if !ok {
		return x402.PaymentRequired{}, false, nil
	}

	params := parseAuthParams(rest)
	req := x402.PaymentRequirements{
		Scheme:            params["scheme"],
		Network:           x402.Network(params["network"]),
		Asset:             params["asset"],
		Amount:            params["amount"],
		PayTo:             params["payto"],
		MaxTimeoutSeconds: x402.DefaultMaxTimeoutSeconds,
	}
	if req.Scheme == "" {
		req.Scheme = "exact"
	}
	if err := x402.ValidatePaymentRequirements(req); err != nil {
		return x402.PaymentRequired{}, false, x402.NewPaymentError(x402.ErrCodeInvalidPayload,
			"incomplete WWW-Authenticate challenge", err)
	}

	return x402.PaymentRequired{
		X402Version: x402.ProtocolVersion,
		Accepts:     []x402.PaymentRequirements{req},
	}, true, nil
}

// parseLegacyChallenge reads the pre-standard single-option headers.
func parseLegacyChallenge(resp *http.Response, _ []byte) (x402.PaymentRequired, bool, error) {
	price := resp.Header.Get(HeaderLegacyPrice)
	recipient := resp.Header.Get(HeaderLegacyRecipient)
	if price == "" && recipient == "" {
		return x402.PaymentRequired{}, false, nil
	}

	req := x402.PaymentRequirements{
		Scheme:            "exact",
		Network:           x402.Network(resp.Header.Get(HeaderLegacyChain)),
		Asset:             resp.Header.Get(HeaderLegacyToken),
		Amount:            price,
		PayTo:             recipient,
		MaxTimeoutSeconds: x402.DefaultMaxTimeoutSeconds,
	}
	if err := x402.ValidatePaymentRequirements(req); err != nil {
		return x402.PaymentRequired{}, false, x402.NewPaymentError(x402.ErrCodeInvalidPayload,
			"incomplete legacy payment headers", err)
	}

	return x402.PaymentRequired{
		X402Version: 1,
		Accepts:     []x402.PaymentRequirements{req},
	}, true, nil
}

func cutAuthScheme(header string) (string, bool) {
	fields := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if !strings.EqualFold(fields[0], authenticateScheme) {
		return "", false
	}
	if len(fields) == 1 {
		return "", true
	}
	return fields[1], true
}

// parseAuthParams parses comma-separated key="value" pairs; keys are
// lowercased, quotes are optional.
func parseAuthParams(s string) map[string]string {
	params := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.Trim(strings.TrimSpace(value), `"`)
		if key != "" && value != "" {
			params[key] = value
		}
	}
	return params
}
