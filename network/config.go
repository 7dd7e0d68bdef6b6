package network

import "fmt"

// RPCConfig holds the connection parameters for a bitcoind JSON-RPC interface.
type RPCConfig struct {
	URL      string `json:"url"`
	User     string `json:"user"`
	Password string `json:"password"`
	Network  string `json:"network"`
}

// NetworkPresets contains default RPC configurations for known networks.
// Mainnet has no preset and must be configured explicitly.
var NetworkPresets = map[string]RPCConfig{
	"regtest": {URL: "http://localhost:18443", User: "feebump", Password: "feebump"},
	"testnet": {URL: "http://localhost:18332", User: "feebump", Password: "feebump"},
	"signet":  {URL: "http://localhost:38332", User: "feebump", Password: "feebump"},
}

// ResolveConfig merges RPC configuration from three sources with decreasing priority:
//  1. CLI flags (highest priority)
//  2. Environment variables (FEEBUMP_RPC_URL, FEEBUMP_RPC_USER, FEEBUMP_RPC_PASS)
//  3. Network presets (lowest priority, regtest/testnet/signet only)
//
// Mainnet has no preset, so its URL must come from flags or the environment.
func ResolveConfig(flags *RPCConfig, env map[string]string, network string) (*RPCConfig, error) {
	result := RPCConfig{Network: network}

	// Layer 1: start with preset defaults if available.
	if preset, ok := NetworkPresets[network]; ok {
		result = preset
		result.Network = network
	}

	// Layer 2: environment variables override preset defaults.
	if env != nil {
		if v, ok := env["FEEBUMP_RPC_URL"]; ok && v != "" {
			result.URL = v
		}
		if v, ok := env["FEEBUMP_RPC_USER"]; ok && v != "" {
			result.User = v
		}
		if v, ok := env["FEEBUMP_RPC_PASS"]; ok && v != "" {
			result.Password = v
		}
	}

	// Layer 3: CLI flags have highest priority.
	if flags != nil {
		if flags.URL != "" {
			result.URL = flags.URL
		}
		if flags.User != "" {
			result.User = flags.User
		}
		if flags.Password != "" {
			result.Password = flags.Password
		}
	}

	// Unconfigured mainnet ends up here.
	if result.URL == "" {
		return nil, fmt.Errorf("network: %s requires explicit RPC configuration (set --rpcurl, FEEBUMP_RPC_URL or rpcurl in the config file)", network)
	}

	return &result, nil
}
