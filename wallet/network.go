package wallet

import (
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/chaincfg"
)

// NetworkConfig ties a network name to its chain parameters and default
// backends.
type NetworkConfig struct {
	Name       string
	Params     *chaincfg.Params
	RPCPort    uint16
	EsploraURL string // empty when no public instance exists
}

// Predefined network configurations.
var (
	MainNet = NetworkConfig{
		Name:       "mainnet",
		Params:     &chaincfg.MainNetParams,
		RPCPort:    8332,
		EsploraURL: "https://mempool.space/api",
	}

	TestNet = NetworkConfig{
		Name:       "testnet",
		Params:     &chaincfg.TestNet3Params,
		RPCPort:    18332,
		EsploraURL: "https://mempool.space/testnet/api",
	}

	SigNet = NetworkConfig{
		Name:       "signet",
		Params:     &chaincfg.SigNetParams,
		RPCPort:    38332,
		EsploraURL: "https://mempool.space/signet/api",
	}

	RegTest = NetworkConfig{
		Name:    "regtest",
		Params:  &chaincfg.RegressionNetParams,
		RPCPort: 18443,
	}
)

// predefined maps network names to their configs.
var predefined = map[string]*NetworkConfig{
	"mainnet": &MainNet,
	"testnet": &TestNet,
	"signet":  &SigNet,
	"regtest": &RegTest,
}

// GetNetwork returns a predefined network by name.
// If the name is not predefined, it returns ErrInvalidNetwork.
func GetNetwork(name string) (*NetworkConfig, error) {
	if net, ok := predefined[name]; ok {
		return net, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidNetwork, name)
}

// NetworkNames lists the predefined network names, sorted.
func NetworkNames() []string {
	names := make([]string, 0, len(predefined))
	for name := range predefined {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
