package svm

// SchemeExact is the exact-amount payment scheme identifier.
const SchemeExact = "exact"

// DefaultDecimals is the USDC mint decimal count.
const DefaultDecimals = 6

// AssetInfo identifies a network's default stablecoin mint.
type AssetInfo struct {
	Mint     string
	Name     string
	Decimals int
}

// NetworkConfig is the per-network default asset.
type NetworkConfig struct {
	DefaultAsset AssetInfo
}

// networkConfigs maps CAIP-2 Solana network ids (genesis-hash references)
// to their configuration.
var networkConfigs = map[string]NetworkConfig{
	// Mainnet
	"solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp": {
		DefaultAsset: AssetInfo{
			Mint:     "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
			Name:     "USDC",
			Decimals: DefaultDecimals,
		},
	},
	// Devnet
	"solana:EtWTRABZaYq6iMfeYKouRu166VU2xqa1": {
		DefaultAsset: AssetInfo{
			Mint:     "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU",
			Name:     "USDC",
			Decimals: DefaultDecimals,
		},
	},
}

// GetNetworkConfig returns the configuration for a CAIP-2 network id.
func GetNetworkConfig(network string) (NetworkConfig, bool) {
	config, ok := networkConfigs[network]
	return config, ok
}
