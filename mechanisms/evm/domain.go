package evm

import (
	"math/big"

	x402 "github.com/x402-foundation/x402-core"
)

// signingDomain carries the resolved EIP-712 domain for a requirement.
type signingDomain struct {
	ChainID *big.Int
	Asset   string
	Name    string
	Version string
}

// assetDomain resolves the token signing domain for a requirement. The
// asset address comes from the requirement itself; name and version come
// from its extra fields, falling back to the network's default asset.
func assetDomain(requirements x402.PaymentRequirements) (signingDomain, error) {
	config, ok := GetNetworkConfig(string(requirements.Network))
	if !ok {
		return signingDomain{}, x402.NewPaymentError(x402.ErrCodeNoMatchingScheme,
			"unsupported EVM network "+string(requirements.Network), nil)
	}

	domain := signingDomain{
		ChainID: config.ChainID,
		Asset:   requirements.Asset,
		Name:    config.DefaultAsset.Name,
		Version: config.DefaultAsset.Version,
	}
	if domain.Asset == "" {
		domain.Asset = config.DefaultAsset.Address
	}
	if name, ok := requirements.Extra["name"].(string); ok && name != "" {
		domain.Name = name
	}
	if version, ok := requirements.Extra["version"].(string); ok && version != "" {
		domain.Version = version
	}
	return domain, nil
}
