// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// DefaultConfig tests
// ---------------------------------------------------------------------------

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"Network", cfg.Network, "mainnet"},
		{"Backend", cfg.Backend, BackendEsplora},
		{"LogLevel", cfg.LogLevel, "info"},
		{"LogFile", cfg.LogFile, ""},
		{"CoinSelection", cfg.CoinSelection, "smallest-first"},
		{"FeeTier", cfg.FeeTier, "fastest"},
		{"MaxFeeRate", cfg.MaxFeeRate, uint64(500)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("got %v, want %v", tc.got, tc.want)
			}
		})
	}

	if !strings.HasSuffix(cfg.DataDir, ".feebump") {
		t.Errorf("DataDir = %q, want suffix .feebump", cfg.DataDir)
	}
	if err := ValidateConfig(cfg); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestConfigPath(t *testing.T) {
	got := ConfigPath(filepath.Join("a", "b"))
	want := filepath.Join("a", "b", "config")
	if got != want {
		t.Errorf("ConfigPath = %q, want %q", got, want)
	}
}

// ---------------------------------------------------------------------------
// SaveConfig / LoadConfig round-trip tests
// ---------------------------------------------------------------------------

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config")

	original := Config{
		DataDir:       "/tmp/test-feebump",
		Network:       "testnet",
		Backend:       BackendRPC,
		RPCURL:        "http://127.0.0.1:18332",
		RPCUser:       "alice",
		RPCPass:       "p=ss",
		EsploraURL:    "https://example.org/api",
		LogLevel:      "debug",
		LogFile:       "/tmp/feebump.log",
		CoinSelection: "largest-first",
		FeeTier:       "hour",
		MaxFeeRate:    120,
	}

	if err := SaveConfig(path, original); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded != original {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", loaded, original)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file mode = %o, want 600", perm)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.HasPrefix(string(data), "# feebump configuration") {
		t.Errorf("missing header, got %q", string(data))
	}
}

// ---------------------------------------------------------------------------
// LoadConfig parsing tests
// ---------------------------------------------------------------------------

func TestLoadConfigNotFound(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("expected ErrConfigNotFound, got %v", err)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadConfigCommentsAndBlankLines(t *testing.T) {
	path := writeConfig(t, `
# a comment

  network = signet
   # indented comment
FeeTier=economy
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Network != "signet" {
		t.Errorf("Network = %q, want signet", cfg.Network)
	}
	if cfg.FeeTier != "economy" {
		t.Errorf("FeeTier = %q, want economy", cfg.FeeTier)
	}
	// Unset keys keep their defaults.
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadConfigUnknownKeysIgnored(t *testing.T) {
	path := writeConfig(t, "listenaddr = :8080\nnetwork = regtest\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Network != "regtest" {
		t.Errorf("Network = %q, want regtest", cfg.Network)
	}
}

func TestLoadConfigInvalidLine(t *testing.T) {
	path := writeConfig(t, "network = mainnet\nthis line has no separator\n")
	_, err := LoadConfig(path)
	if !errors.Is(err, ErrInvalidConfigLine) {
		t.Errorf("expected ErrInvalidConfigLine, got %v", err)
	}
}

func TestLoadConfigBadMaxFeeRate(t *testing.T) {
	path := writeConfig(t, "maxfeerate = lots\n")
	_, err := LoadConfig(path)
	if !errors.Is(err, ErrInvalidConfigLine) {
		t.Errorf("expected ErrInvalidConfigLine, got %v", err)
	}
}

func TestParseKeyValue(t *testing.T) {
	tests := []struct {
		line    string
		key     string
		value   string
		wantErr bool
	}{
		{"network = mainnet", "network", "mainnet", false},
		{"RPCPass=a=b", "rpcpass", "a=b", false},
		{"logfile =", "logfile", "", false},
		{"= value", "", "", true},
		{"novalue", "", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.line, func(t *testing.T) {
			key, value, err := parseKeyValue(tc.line)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.line)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if key != tc.key || value != tc.value {
				t.Errorf("got (%q, %q), want (%q, %q)", key, value, tc.key, tc.value)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// ValidateConfig tests
// ---------------------------------------------------------------------------

func TestValidateConfig(t *testing.T) {
	valid := DefaultConfig()
	valid.DataDir = "/tmp/feebump"

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", func(*Config) {}, nil},
		{"empty datadir", func(c *Config) { c.DataDir = "" }, ErrEmptyDataDir},
		{"bad network", func(c *Config) { c.Network = "bsv" }, ErrInvalidNetwork},
		{"bad backend", func(c *Config) { c.Backend = "electrum" }, ErrInvalidBackend},
		{"rpc default url", func(c *Config) { c.Backend = BackendRPC }, nil},
		{"rpc bad scheme", func(c *Config) {
			c.Backend = BackendRPC
			c.RPCURL = "ftp://node"
		}, ErrInvalidURL},
		{"esplora on regtest needs url", func(c *Config) { c.Network = "regtest" }, ErrInvalidURL},
		{"esplora on regtest with url", func(c *Config) {
			c.Network = "regtest"
			c.EsploraURL = "http://localhost:3002"
		}, nil},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, ErrInvalidLogLevel},
		{"upper log level", func(c *Config) { c.LogLevel = "DEBUG" }, nil},
		{"bad policy", func(c *Config) { c.CoinSelection = "random" }, ErrInvalidCoinSelection},
		{"bad tier", func(c *Config) { c.FeeTier = "soon" }, ErrInvalidFeeTier},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			err := ValidateConfig(cfg)
			if tc.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("got %v, want %v", err, tc.wantErr)
			}
		})
	}
}
