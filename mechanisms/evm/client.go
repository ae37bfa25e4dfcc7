package evm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	x402 "github.com/x402-foundation/x402-core"
)

// Signer signs 32-byte EIP-712 digests with an EVM key.
type Signer interface {
	// Address returns the hex-encoded signer address.
	Address() string

	// SignHash signs a 32-byte digest, returning a 65-byte (r, s, v)
	// signature with v in {27, 28}.
	SignHash(digest []byte) ([]byte, error)
}

// Client signs exact-scheme payments as EIP-3009 transfer authorizations.
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

// NewClient creates the Client-role exact scheme for EVM networks.
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
// The authorization nonce is derived from the requirement content and the
// signer address, so signing the same offer twice produces the same nonce.
func (c *Client) CreatePaymentPayload(_ context.Context, requirements x402.PaymentRequirements) (map[string]interface{}, error) {
	domain, err := assetDomain(requirements)
	if err != nil {
		return nil, err
	}

	timeout := requirements.MaxTimeoutSeconds
	if timeout <= 0 {
		timeout = x402.DefaultMaxTimeoutSeconds
	}
	now := c.clock()

	authorization := TransferAuthorization{
		From:        c.signer.Address(),
		To:          requirements.PayTo,
		Value:       requirements.Amount,
		ValidAfter:  "0",
		ValidBefore: strconv.FormatInt(now.Unix()+int64(timeout), 10),
		Nonce:       AuthorizationNonce(requirements, c.signer.Address()),
	}

	digest, err := HashTransferAuthorization(authorization,
		domain.ChainID, domain.Asset, domain.Name, domain.Version)
	if err != nil {
		return nil, err
	}
	signature, err := c.signer.SignHash(digest)
	if err != nil {
		return nil, fmt.Errorf("sign transfer authorization: %w", err)
	}

	return AuthorizationPayload{
		Signature:     hexutil.Encode(signature),
		Authorization: authorization,
	}.ToMap(), nil
}

// AuthorizationNonce derives the EIP-3009 nonce for a requirement: the
// keccak256 of the normalized requirement JSON and the payer address.
func AuthorizationNonce(requirements x402.PaymentRequirements, from string) string {
	data, err := json.Marshal(requirements)
	if err != nil {
		data = []byte{}
	}
	return hexutil.Encode(crypto.Keccak256(data, []byte(from)))
}
