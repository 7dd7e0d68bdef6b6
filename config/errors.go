// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "errors"

var (
	// ErrInvalidNetwork indicates the network name is not recognized.
	ErrInvalidNetwork = errors.New("config: invalid network (must be \"mainnet\", \"testnet\", \"signet\", or \"regtest\")")

	// ErrInvalidBackend indicates the chain backend is not recognized.
	ErrInvalidBackend = errors.New("config: invalid backend (must be \"rpc\" or \"esplora\")")

	// ErrInvalidURL indicates a malformed RPC or Esplora URL.
	ErrInvalidURL = errors.New("config: invalid URL")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level")

	// ErrInvalidCoinSelection indicates an unknown coin selection policy.
	ErrInvalidCoinSelection = errors.New("config: invalid coin selection policy")

	// ErrInvalidFeeTier indicates an unknown fee tier.
	ErrInvalidFeeTier = errors.New("config: invalid fee tier")

	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")

	// ErrInvalidConfigLine indicates a line in the config file is malformed.
	ErrInvalidConfigLine = errors.New("config: invalid configuration line")
)
