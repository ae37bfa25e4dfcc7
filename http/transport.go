package http

import (
	"io"
	"log/slog"
	"math/big"
	"net/http"

	x402 "github.com/x402-foundation/x402-core"
)

// maxChallengeBody caps how much of a 402 body is read for parsing.
const maxChallengeBody = 1 << 20

// PaymentResult describes the outcome of a paid round trip.
type PaymentResult struct {
	State      x402.EngineState
	Payment    *x402.PaymentPayload
	Settlement *x402.SettlementResult
	Err        error
}

// PaymentRoundTripper is an http.RoundTripper that transparently answers
// 402 challenges: it parses the challenge, has the engine sign a payment,
// and retries the request exactly once with the X-PAYMENT header attached.
// A second 402 on the retried request is terminal.
type PaymentRoundTripper struct {
	engine    *x402.PaymentEngine
	base      http.RoundTripper
	logger    *slog.Logger
	maxAmount *big.Int
	onResult  func(PaymentResult)
}

// TransportOption configures a PaymentRoundTripper.
type TransportOption func(*PaymentRoundTripper)

// WithBaseTransport sets the underlying transport (default
// http.DefaultTransport).
func WithBaseTransport(base http.RoundTripper) TransportOption {
	return func(t *PaymentRoundTripper) {
		if base != nil {
			t.base = base
		}
	}
}

// WithLogger sets the structured logger for payment events.
func WithLogger(logger *slog.Logger) TransportOption {
	return func(t *PaymentRoundTripper) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithMaxAmount refuses to pay more than the given amount in asset base
// units; a costlier selection fails the round trip with PaymentRejected.
func WithMaxAmount(max *big.Int) TransportOption {
	return func(t *PaymentRoundTripper) {
		t.maxAmount = max
	}
}

// WithResultCallback registers a callback invoked once per payment attempt
// with its terminal state.
func WithResultCallback(fn func(PaymentResult)) TransportOption {
	return func(t *PaymentRoundTripper) {
		t.onResult = fn
	}
}

// NewPaymentRoundTripper wires a payment engine into an HTTP transport.
func NewPaymentRoundTripper(engine *x402.PaymentEngine, opts ...TransportOption) *PaymentRoundTripper {
	t := &PaymentRoundTripper{
		engine: engine,
		base:   http.DefaultTransport,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RoundTrip implements http.RoundTripper.
func (t *PaymentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	// A request that already carries a payment is a retry; never pay twice.
	if req.Header.Get(HeaderPayment) != "" {
		return t.base.RoundTrip(req)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusPaymentRequired {
		return resp, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxChallengeBody))
	resp.Body.Close()
	if err != nil {
		return nil, t.fail(x402.StateChallenged, err)
	}

	required, err := ParseChallenge(resp, body)
	if err != nil {
		return nil, t.fail(x402.StateChallenged, err)
	}

	payload, err := t.engine.CreatePayment(req.Context(), required)
	if err != nil {
		return nil, t.fail(x402.StateSelecting, err)
	}

	if t.maxAmount != nil {
		amount, ok := new(big.Int).SetString(payload.Accepted.Amount, 10)
		if !ok || amount.Cmp(t.maxAmount) > 0 {
			err := x402.NewPaymentError(x402.ErrCodePaymentRejected,
				"challenge price exceeds the configured maximum", nil).
				WithDetails("amount", payload.Accepted.Amount).
				WithDetails("maxAmount", t.maxAmount.String())
			return nil, t.fail(x402.StateSigning, err)
		}
	}

	header, err := EncodePaymentHeader(payload)
	if err != nil {
		return nil, t.fail(x402.StateSigning, err)
	}

	retry, err := cloneRequest(req)
	if err != nil {
		return nil, t.fail(x402.StateRetrying, err)
	}
	retry.Header.Set(HeaderPayment, header)

	t.logger.Debug("retrying request with payment",
		"url", req.URL.String(),
		"scheme", payload.Accepted.Scheme,
		"network", string(payload.Accepted.Network),
		"amount", payload.Accepted.Amount)

	paidResp, err := t.base.RoundTrip(retry)
	if err != nil {
		return nil, t.fail(x402.StateRetrying, err)
	}

	if paidResp.StatusCode == http.StatusPaymentRequired {
		paidResp.Body.Close()
		err := x402.NewPaymentError(x402.ErrCodePaymentRejected,
			"server rejected the payment with a second 402", nil)
		return nil, t.fail(x402.StateFailed, err)
	}

	result := PaymentResult{State: x402.StateSettled, Payment: &payload}
	if header := paidResp.Header.Get(HeaderPaymentResponse); header != "" {
		if settlement, err := DecodeSettlementHeader(header); err == nil {
			result.Settlement = &settlement
		} else {
			t.logger.Warn("undecodable settlement receipt", "error", err)
		}
	}
	if t.onResult != nil {
		t.onResult(result)
	}
	return paidResp, nil
}

func (t *PaymentRoundTripper) fail(state x402.EngineState, err error) error {
	t.logger.Debug("payment attempt failed", "state", string(state), "error", err)
	if t.onResult != nil {
		t.onResult(PaymentResult{State: x402.StateFailed, Err: err})
	}
	return err
}

// cloneRequest copies a request for the paid retry. Requests with
// non-replayable bodies cannot be retried.
func cloneRequest(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, x402.NewPaymentError(x402.ErrCodePaymentRejected,
			"request body is not replayable, cannot retry with payment", nil)
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	clone.Body = body
	return clone, nil
}
