package evm

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	x402 "github.com/x402-foundation/x402-core"
)

// Server is the Server-role exact scheme for EVM networks: it resolves
// prices to on-chain amounts and validates inbound transfer authorizations.
type Server struct{}

// NewServer creates the Server-role exact scheme.
func NewServer() *Server { return &Server{} }

// Scheme implements x402.SchemeServer.
func (s *Server) Scheme() string { return SchemeExact }

// ParsePrice resolves a route price to an asset amount. Accepted shapes:
// a money string ("$1.50"), a decimal string in base units ("1500000"),
// or an explicit x402.AssetAmount.
func (s *Server) ParsePrice(price x402.Price, network x402.Network) (x402.AssetAmount, error) {
	config, ok := GetNetworkConfig(string(network))
	if !ok {
		return x402.AssetAmount{}, x402.NewPaymentError(x402.ErrCodeNoMatchingScheme,
			"unsupported EVM network "+string(network), nil)
	}
	asset := config.DefaultAsset

	switch v := price.(type) {
	case x402.AssetAmount:
		if v.Asset == "" {
			v.Asset = asset.Address
		}
		return v, nil
	case string:
		amount, err := parseAmount(v, asset.Decimals)
		if err != nil {
			return x402.AssetAmount{}, err
		}
		return x402.AssetAmount{
			Asset:  asset.Address,
			Amount: amount.String(),
			Extra:  map[string]interface{}{"name": asset.Name, "version": asset.Version},
		}, nil
	default:
		return x402.AssetAmount{}, x402.NewPaymentError(x402.ErrCodeInvalidPayload,
			fmt.Sprintf("unsupported price type %T", price), nil)
	}
}

// parseAmount converts "$1.50" or "1.50" to base units using the asset
// decimals; a plain integer string is already in base units.
func parseAmount(price string, decimals int) (*big.Int, error) {
	price = strings.TrimSpace(strings.TrimPrefix(price, "$"))
	if price == "" {
		return nil, x402.NewPaymentError(x402.ErrCodeInvalidPayload, "empty price", nil)
	}

	whole, frac, hasFrac := strings.Cut(price, ".")
	if !hasFrac {
		amount, ok := new(big.Int).SetString(whole, 10)
		if !ok || amount.Sign() < 0 {
			return nil, x402.NewPaymentError(x402.ErrCodeInvalidPayload, "invalid price "+price, nil)
		}
		return amount, nil
	}

	if len(frac) > decimals {
		frac = frac[:decimals]
	}
	frac += strings.Repeat("0", decimals-len(frac))
	if whole == "" {
		whole = "0"
	}
	amount, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok || amount.Sign() < 0 {
		return nil, x402.NewPaymentError(x402.ErrCodeInvalidPayload, "invalid price "+price, nil)
	}
	return amount, nil
}

// ValidatePayload checks the authorization against the requirement it
// claims to satisfy: recipient, value and time window.
func (s *Server) ValidatePayload(payload x402.PaymentPayload, requirements x402.PaymentRequirements, now time.Time) error {
	decoded, err := PayloadFromMap(payload.Payload)
	if err != nil {
		return x402.NewPaymentError(x402.ErrCodeInvalidPayload, "malformed EVM payment payload", err)
	}
	authorization := decoded.Authorization

	if common.HexToAddress(authorization.To) != common.HexToAddress(requirements.PayTo) {
		return x402.NewPaymentError(x402.ErrCodeRequirementMismatch,
			"authorization recipient does not match the requirement", nil)
	}
	if authorization.Value != requirements.Amount {
		return x402.NewPaymentError(x402.ErrCodeRequirementMismatch,
			"authorization value does not match the requirement", nil)
	}

	validBefore, err := strconv.ParseInt(authorization.ValidBefore, 10, 64)
	if err != nil {
		return x402.NewPaymentError(x402.ErrCodeInvalidPayload, "invalid validBefore", err)
	}
	if now.Unix() >= validBefore {
		return x402.NewPaymentError(x402.ErrCodeDeadlineExpired,
			"transfer authorization has expired", nil).
			WithDetails("validBefore", authorization.ValidBefore)
	}
	validAfter, err := strconv.ParseInt(authorization.ValidAfter, 10, 64)
	if err != nil {
		return x402.NewPaymentError(x402.ErrCodeInvalidPayload, "invalid validAfter", err)
	}
	if now.Unix() < validAfter {
		return x402.NewPaymentError(x402.ErrCodeInvalidPayload,
			"transfer authorization is not yet valid", nil)
	}
	return nil
}

// PaymentNonce implements x402.SchemeServer: the EIP-3009 authorization
// nonce is the replay-protection key.
func (s *Server) PaymentNonce(payload x402.PaymentPayload) (string, error) {
	decoded, err := PayloadFromMap(payload.Payload)
	if err != nil {
		return "", err
	}
	if decoded.Authorization.Nonce == "" {
		return "", fmt.Errorf("authorization carries no nonce")
	}
	return strings.ToLower(ensureHexPrefix(decoded.Authorization.Nonce)), nil
}
