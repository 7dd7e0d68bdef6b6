// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/bitfsorg/feebump-go/coinselect"
	"github.com/bitfsorg/feebump-go/feerate"
	"github.com/bitfsorg/feebump-go/logging"
	"github.com/bitfsorg/feebump-go/wallet"
)

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	net, err := wallet.GetNetwork(cfg.Network)
	if err != nil {
		return ErrInvalidNetwork
	}

	switch cfg.Backend {
	case BackendRPC:
		if cfg.RPCURL != "" {
			if err := validateURL(cfg.RPCURL); err != nil {
				return fmt.Errorf("%w: rpcurl: %w", ErrInvalidURL, err)
			}
		}
	case BackendEsplora:
		if cfg.EsploraURL == "" && net.EsploraURL == "" {
			return fmt.Errorf("%w: esploraurl is required on %s", ErrInvalidURL, net.Name)
		}
		if cfg.EsploraURL != "" {
			if err := validateURL(cfg.EsploraURL); err != nil {
				return fmt.Errorf("%w: esploraurl: %w", ErrInvalidURL, err)
			}
		}
	default:
		return ErrInvalidBackend
	}

	if _, err := logging.ParseLevel(strings.ToLower(cfg.LogLevel)); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, cfg.LogLevel)
	}
	if _, err := coinselect.ParsePolicy(cfg.CoinSelection); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidCoinSelection, cfg.CoinSelection)
	}
	if _, err := feerate.ParseTier(cfg.FeeTier); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidFeeTier, cfg.FeeTier)
	}
	return nil
}

// validateURL checks that raw is an absolute http(s) URL.
func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
