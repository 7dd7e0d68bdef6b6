// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config loads and saves the feebump configuration file, a list
// of "key = value" lines stored at <datadir>/config.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Backend names.
const (
	BackendRPC     = "rpc"
	BackendEsplora = "esplora"
)

// Config holds the user's settings.
type Config struct {
	DataDir string
	Network string

	// Backend selects the chain data source, "rpc" or "esplora".
	Backend    string
	RPCURL     string // empty uses the network preset
	RPCUser    string
	RPCPass    string
	EsploraURL string // empty uses the network's public instance

	LogLevel string
	LogFile  string // empty logs to stdout only

	CoinSelection string
	FeeTier       string
	MaxFeeRate    uint64 // sat/vB, 0 = no cap
}

// DefaultDataDir returns ~/.feebump, or .feebump in the working directory
// when the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".feebump"
	}
	return filepath.Join(home, ".feebump")
}

// DefaultConfig returns the settings used when no file exists.
func DefaultConfig() Config {
	return Config{
		DataDir:       DefaultDataDir(),
		Network:       "mainnet",
		Backend:       BackendEsplora,
		LogLevel:      "info",
		CoinSelection: "smallest-first",
		FeeTier:       "fastest",
		MaxFeeRate:    500,
	}
}

// ConfigPath returns the config file path inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config")
}

// LoadConfig reads the file at path over DefaultConfig. Blank lines and
// lines starting with '#' are skipped. Unknown keys are ignored.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, err := parseKeyValue(line)
		if err != nil {
			return cfg, fmt.Errorf("%w: line %d: %q", ErrInvalidConfigLine, lineNo, line)
		}
		if err := cfg.set(key, value); err != nil {
			return cfg, fmt.Errorf("%w: line %d: %v", ErrInvalidConfigLine, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	return cfg, nil
}

// parseKeyValue splits "key = value" on the first '='.
func parseKeyValue(line string) (string, string, error) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", ErrInvalidConfigLine
	}
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return "", "", ErrInvalidConfigLine
	}
	return key, strings.TrimSpace(value), nil
}

func (c *Config) set(key, value string) error {
	switch key {
	case "datadir":
		c.DataDir = value
	case "network":
		c.Network = value
	case "backend":
		c.Backend = value
	case "rpcurl":
		c.RPCURL = value
	case "rpcuser":
		c.RPCUser = value
	case "rpcpass":
		c.RPCPass = value
	case "esploraurl":
		c.EsploraURL = value
	case "loglevel":
		c.LogLevel = value
	case "logfile":
		c.LogFile = value
	case "coinselection":
		c.CoinSelection = value
	case "feetier":
		c.FeeTier = value
	case "maxfeerate":
		if value == "" {
			c.MaxFeeRate = 0
			return nil
		}
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("maxfeerate %q: %w", value, err)
		}
		c.MaxFeeRate = n
	}
	return nil
}

// SaveConfig writes cfg to path, creating the parent directory. The file
// is private to the user since it may hold RPC credentials.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# feebump configuration\n\n")
	fmt.Fprintf(&b, "datadir = %s\n", cfg.DataDir)
	fmt.Fprintf(&b, "network = %s\n", cfg.Network)
	fmt.Fprintf(&b, "backend = %s\n", cfg.Backend)
	fmt.Fprintf(&b, "rpcurl = %s\n", cfg.RPCURL)
	fmt.Fprintf(&b, "rpcuser = %s\n", cfg.RPCUser)
	fmt.Fprintf(&b, "rpcpass = %s\n", cfg.RPCPass)
	fmt.Fprintf(&b, "esploraurl = %s\n", cfg.EsploraURL)
	fmt.Fprintf(&b, "loglevel = %s\n", cfg.LogLevel)
	fmt.Fprintf(&b, "logfile = %s\n", cfg.LogFile)
	fmt.Fprintf(&b, "coinselection = %s\n", cfg.CoinSelection)
	fmt.Fprintf(&b, "feetier = %s\n", cfg.FeeTier)
	fmt.Fprintf(&b, "maxfeerate = %d\n", cfg.MaxFeeRate)

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
