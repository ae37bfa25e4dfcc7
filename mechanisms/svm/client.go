package svm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	solana "github.com/gagliardetto/solana-go"

	x402 "github.com/x402-foundation/x402-core"
)

// Signer signs authorization messages with a Solana key.
type Signer interface {
	PublicKey() solana.PublicKey
	Sign(message []byte) (solana.Signature, error)
}

// Client signs exact-scheme payments as Ed25519 transfer authorizations.
type Client struct {
	signer Signer
	clock  func() time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientClock overrides the deadline time source (tests).
func WithClientClock(clock func() time.Time) ClientOption {
	return func(c *Client) {
		c.clock = clock
	}
}

// NewClient creates the Client-role exact scheme for Solana networks.
func NewClient(signer Signer, opts ...ClientOption) *Client {
	c := &Client{signer: signer, clock: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Scheme implements x402.SchemeClient.
func (c *Client) Scheme() string { return SchemeExact }

// CreatePaymentPayload signs a transfer authorization for the requirement.
// Ed25519 signing is deterministic, and the nonce is derived from the
// requirement content, so the same offer always yields the same proof.
func (c *Client) CreatePaymentPayload(_ context.Context, requirements x402.PaymentRequirements) (map[string]interface{}, error) {
	if _, ok := GetNetworkConfig(string(requirements.Network)); !ok {
		return nil, x402.NewPaymentError(x402.ErrCodeNoMatchingScheme,
			"unsupported Solana network "+string(requirements.Network), nil)
	}

	timeout := requirements.MaxTimeoutSeconds
	if timeout <= 0 {
		timeout = x402.DefaultMaxTimeoutSeconds
	}

	authorization := TransferAuthorization{
		Source:      c.signer.PublicKey().String(),
		Destination: requirements.PayTo,
		Mint:        requirements.Asset,
		Amount:      requirements.Amount,
		ValidUntil:  strconv.FormatInt(c.clock().Unix()+int64(timeout), 10),
		Nonce:       AuthorizationNonce(requirements, c.signer.PublicKey().String()),
	}

	message, err := authorization.SigningBytes()
	if err != nil {
		return nil, err
	}
	signature, err := c.signer.Sign(message)
	if err != nil {
		return nil, fmt.Errorf("sign transfer authorization: %w", err)
	}

	return AuthorizationPayload{
		Signature:     signature.String(),
		Authorization: authorization,
	}.ToMap(), nil
}

// AuthorizationNonce derives the authorization nonce for a requirement:
// the SHA-256 of the normalized requirement JSON and the payer key.
func AuthorizationNonce(requirements x402.PaymentRequirements, source string) string {
	data, err := json.Marshal(requirements)
	if err != nil {
		data = []byte{}
	}
	sum := sha256.Sum256(append(data, []byte(source)...))
	return hex.EncodeToString(sum[:])
}
