package http

import (
	"net/http"

	x402 "github.com/x402-foundation/x402-core"
)

// NewClient returns an *http.Client whose transport answers 402 challenges
// through the given payment engine. The zero-value client semantics are
// otherwise unchanged.
func NewClient(engine *x402.PaymentEngine, opts ...TransportOption) *http.Client {
	return &http.Client{Transport: NewPaymentRoundTripper(engine, opts...)}
}

// WrapClient installs a paying transport onto an existing client,
// preserving its current transport as the base.
func WrapClient(client *http.Client, engine *x402.PaymentEngine, opts ...TransportOption) *http.Client {
	if client == nil {
		client = &http.Client{}
	}
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	opts = append([]TransportOption{WithBaseTransport(base)}, opts...)
	client.Transport = NewPaymentRoundTripper(engine, opts...)
	return client
}
