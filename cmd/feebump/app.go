package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bitfsorg/feebump-go/boost"
	"github.com/bitfsorg/feebump-go/config"
	"github.com/bitfsorg/feebump-go/feerate"
	"github.com/bitfsorg/feebump-go/history"
	"github.com/bitfsorg/feebump-go/logging"
	"github.com/bitfsorg/feebump-go/network"
	"github.com/bitfsorg/feebump-go/wallet"
)

const (
	addressBookFile = "addresses.json"
	historyDBFile   = "boosts.db"

	feeCacheTTL = time.Minute
)

// loadSettings reads the config file and applies the flags set in o.
// A missing default config file is not an error.
func loadSettings(o *options) (config.Config, error) {
	dataDir := o.DataDir
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}
	path := o.ConfigFile
	if path == "" {
		path = config.ConfigPath(dataDir)
	}

	cfg, err := config.LoadConfig(path)
	switch {
	case errors.Is(err, config.ErrConfigNotFound) && o.ConfigFile == "":
		cfg = config.DefaultConfig()
		cfg.DataDir = dataDir
	case err != nil:
		return cfg, err
	}

	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&cfg.DataDir, o.DataDir)
	override(&cfg.Network, o.Network)
	override(&cfg.Backend, o.Backend)
	override(&cfg.RPCURL, o.RPCURL)
	override(&cfg.RPCUser, o.RPCUser)
	override(&cfg.RPCPass, o.RPCPass)
	override(&cfg.EsploraURL, o.EsploraURL)
	override(&cfg.LogLevel, o.LogLevel)

	if err := config.ValidateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// environ returns the process environment as a map.
func environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

func openAddressBook(cfg config.Config) (*wallet.AddressBook, error) {
	return wallet.LoadAddressBook(filepath.Join(cfg.DataDir, addressBookFile), cfg.Network)
}

// app holds the wired components for one command run.
type app struct {
	cfg     config.Config
	net     *wallet.NetworkConfig
	log     logging.Logger
	chain   network.BlockchainService
	book    *wallet.AddressBook
	store   *history.BoltStore
	tracker *history.Tracker
	builder *boost.Builder

	closeLog func()
}

// newApp wires every component from cfg. Logs go to stderr unless a log
// file is configured, so stdout carries only command output.
func newApp(cfg config.Config) (*app, error) {
	net, err := wallet.GetNetwork(cfg.Network)
	if err != nil {
		return nil, err
	}

	var (
		lm       *logging.LoggerMaker
		closeLog = func() {}
	)
	if cfg.LogFile == "" {
		lm, err = logging.NewLoggerMaker(os.Stderr, strings.ToLower(cfg.LogLevel))
	} else {
		lm, closeLog, err = logging.InitLogging(cfg.LogFile, strings.ToLower(cfg.LogLevel), false)
	}
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, net: net, log: lm.NewLogger(logging.SubsystemMain), closeLog: closeLog}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	chain, sources, err := newBackend(cfg, net, lm.NewLogger(logging.SubsystemNetwork))
	if err != nil {
		return nil, err
	}
	a.chain = chain
	fees := feerate.Capped{
		Provider: feerate.NewCache(feerate.NewRanked(sources, lm.NewLogger(logging.SubsystemFeeRate)), feeCacheTTL),
		Max:      cfg.MaxFeeRate,
	}

	if a.book, err = openAddressBook(cfg); err != nil {
		return nil, err
	}
	if a.store, err = history.OpenBoltStore(filepath.Join(cfg.DataDir, historyDBFile)); err != nil {
		return nil, err
	}
	if a.tracker, err = history.NewTracker(a.store, lm.NewLogger(logging.SubsystemHistory)); err != nil {
		return nil, err
	}
	a.builder = boost.NewBuilder(a.chain, a.book, fees, net.Params, lm.NewLogger(logging.SubsystemBoost))

	ok = true
	return a, nil
}

// newBackend returns the chain service for cfg.Backend and the fee
// sources to rank. bitcoind's own estimate is preferred when talking to
// a node, with the public mempool API as a fallback where one exists.
func newBackend(cfg config.Config, net *wallet.NetworkConfig, log logging.Logger) (network.BlockchainService, []*feerate.Source, error) {
	esploraURL := cfg.EsploraURL
	if esploraURL == "" {
		esploraURL = net.EsploraURL
	}

	switch cfg.Backend {
	case config.BackendRPC:
		rpcCfg, err := network.ResolveConfig(&network.RPCConfig{
			URL:      cfg.RPCURL,
			User:     cfg.RPCUser,
			Password: cfg.RPCPass,
		}, environ(), cfg.Network)
		if err != nil {
			return nil, nil, err
		}
		rpc := network.NewRPCClient(*rpcCfg)
		log.Debugf("Using bitcoind at %s", rpcCfg.URL)

		sources := []*feerate.Source{{Name: "bitcoind", Provider: feerate.NewNode(rpc), Rank: 0}}
		if esploraURL != "" {
			esplora, err := network.NewEsploraClient(network.EsploraConfig{URL: esploraURL, Params: net.Params})
			if err != nil {
				return nil, nil, err
			}
			sources = append(sources, &feerate.Source{Name: "esplora", Provider: feerate.NewMempool(esplora), Rank: 1})
		}
		return rpc, sources, nil

	case config.BackendEsplora:
		esplora, err := network.NewEsploraClient(network.EsploraConfig{URL: esploraURL, Params: net.Params})
		if err != nil {
			return nil, nil, err
		}
		log.Debugf("Using esplora at %s", esploraURL)
		return esplora, []*feerate.Source{{Name: "esplora", Provider: feerate.NewMempool(esplora), Rank: 0}}, nil
	}
	return nil, nil, fmt.Errorf("%w: %q", config.ErrInvalidBackend, cfg.Backend)
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warnf("Failed to close history store: %v", err)
		}
	}
	a.closeLog()
}
