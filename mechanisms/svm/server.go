package svm

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	x402 "github.com/x402-foundation/x402-core"
)

// Server is the Server-role exact scheme for Solana networks.
type Server struct{}

// NewServer creates the Server-role exact scheme.
func NewServer() *Server { return &Server{} }

// Scheme implements x402.SchemeServer.
func (s *Server) Scheme() string { return SchemeExact }

// ParsePrice resolves a route price to a mint amount. Accepted shapes
// match the EVM server: money string, base-unit string, or AssetAmount.
func (s *Server) ParsePrice(price x402.Price, network x402.Network) (x402.AssetAmount, error) {
	config, ok := GetNetworkConfig(string(network))
	if !ok {
		return x402.AssetAmount{}, x402.NewPaymentError(x402.ErrCodeNoMatchingScheme,
			"unsupported Solana network "+string(network), nil)
	}
	asset := config.DefaultAsset

	switch v := price.(type) {
	case x402.AssetAmount:
		if v.Asset == "" {
			v.Asset = asset.Mint
		}
		return v, nil
	case string:
		amount, err := parseAmount(v, asset.Decimals)
		if err != nil {
			return x402.AssetAmount{}, err
		}
		return x402.AssetAmount{
			Asset:  asset.Mint,
			Amount: amount.String(),
			Extra:  map[string]interface{}{"name": asset.Name},
		}, nil
	default:
		return x402.AssetAmount{}, x402.NewPaymentError(x402.ErrCodeInvalidPayload,
			fmt.Sprintf("unsupported price type %T", price), nil)
	}
}

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
// claims to satisfy: destination, amount and deadline.
func (s *Server) ValidatePayload(payload x402.PaymentPayload, requirements x402.PaymentRequirements, now time.Time) error {
	decoded, err := PayloadFromMap(payload.Payload)
	if err != nil {
		return x402.NewPaymentError(x402.ErrCodeInvalidPayload, "malformed Solana payment payload", err)
	}
	authorization := decoded.Authorization

	if authorization.Destination != requirements.PayTo {
		return x402.NewPaymentError(x402.ErrCodeRequirementMismatch,
			"authorization destination does not match the requirement", nil)
	}
	if authorization.Amount != requirements.Amount {
		return x402.NewPaymentError(x402.ErrCodeRequirementMismatch,
			"authorization amount does not match the requirement", nil)
	}

	validUntil, err := strconv.ParseInt(authorization.ValidUntil, 10, 64)
	if err != nil {
		return x402.NewPaymentError(x402.ErrCodeInvalidPayload, "invalid validUntil", err)
	}
	if now.Unix() >= validUntil {
		return x402.NewPaymentError(x402.ErrCodeDeadlineExpired,
			"transfer authorization has expired", nil).
			WithDetails("validUntil", authorization.ValidUntil)
	}
	return nil
}

// PaymentNonce implements x402.SchemeServer.
func (s *Server) PaymentNonce(payload x402.PaymentPayload) (string, error) {
	decoded, err := PayloadFromMap(payload.Payload)
	if err != nil {
		return "", err
	}
	if decoded.Authorization.Nonce == "" {
		return "", fmt.Errorf("authorization carries no nonce")
	}
	return strings.ToLower(decoded.Authorization.Nonce), nil
}
