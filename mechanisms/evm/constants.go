package evm

import "math/big"

const (
	// SchemeExact is the exact-amount payment scheme identifier.
	SchemeExact = "exact"

	// DefaultDecimals is the USDC decimal count.
	DefaultDecimals = 6
)

var (
	ChainIDEthereum    = big.NewInt(1)
	ChainIDBase        = big.NewInt(8453)
	ChainIDBaseSepolia = big.NewInt(84532)
)

// AssetInfo identifies a network's default stablecoin and its EIP-712
// domain parameters.
type AssetInfo struct {
	Address  string
	Name     string
	Version  string
	Decimals int
}

// NetworkConfig is the per-network chain id and default asset.
type NetworkConfig struct {
	ChainID      *big.Int
	DefaultAsset AssetInfo
}

// networkConfigs maps CAIP-2 network ids to their configuration. Prices
// given as money strings resolve against the default asset.
var networkConfigs = map[string]NetworkConfig{
	"eip155:1": {
		ChainID: ChainIDEthereum,
		DefaultAsset: AssetInfo{
			Address:  "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
			Name:     "USD Coin",
			Version:  "2",
			Decimals: DefaultDecimals,
		},
	},
	"eip155:8453": {
		ChainID: ChainIDBase,
		DefaultAsset: AssetInfo{
			Address:  "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
			Name:     "USD Coin",
			Version:  "2",
			Decimals: DefaultDecimals,
		},
	},
	"eip155:84532": {
		ChainID: ChainIDBaseSepolia,
		DefaultAsset: AssetInfo{
			Address:  "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
			Name:     "USDC",
			Version:  "2",
			Decimals: DefaultDecimals,
		},
	},
}

// GetNetworkConfig returns the configuration for a CAIP-2 network id.
func GetNetworkConfig(network string) (NetworkConfig, bool) {
	config, ok := networkConfigs[network]
	return config, ok
}
