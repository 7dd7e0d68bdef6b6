package wallet

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
)

// Entry is one wallet address.
type Entry struct {
	Address        string `json:"address"`
	DerivationPath string `json:"derivation_path,omitempty"`
}

// AddressBook lists the receive and change addresses of a wallet.
// Persisted as JSON.
type AddressBook struct {
	Network         string  `json:"network"`
	Receive         []Entry `json:"receive"`
	Change          []Entry `json:"change"`
	NextChangeIndex uint32  `json:"next_change_index"`

	mu      sync.RWMutex
	path    string
	net     *NetworkConfig
	entries map[string]addressRecord
}

type addressRecord struct {
	Entry
	change bool
}

// NewAddressBook creates an empty book for the named network.
func NewAddressBook(network, path string) (*AddressBook, error) {
	b := &AddressBook{Network: network, path: path}
	if err := b.reindex(); err != nil {
		return nil, err
	}
	return b, nil
}

// LoadAddressBook reads a book from path. A missing file yields an empty
// book for network.
func LoadAddressBook(path, network string) (*AddressBook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewAddressBook(network, path)
		}
		return nil, fmt.Errorf("wallet: read address book: %w", err)
	}

	var b AddressBook
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("wallet: parse address book: %w", err)
	}
	if b.Network == "" {
		b.Network = network
	}
	if network != "" && b.Network != network {
		return nil, fmt.Errorf("%w: book is for %q, want %q", ErrInvalidNetwork, b.Network, network)
	}
	b.path = path
	if err := b.reindex(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Save persists the book to the path it was loaded from.
func (b *AddressBook) Save() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("wallet: marshal address book: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(b.path), 0700); err != nil {
		return fmt.Errorf("wallet: create address book directory: %w", err)
	}
	return os.WriteFile(b.path, data, 0600)
}

// reindex validates every address and rebuilds the lookup map.
func (b *AddressBook) reindex() error {
	net, err := GetNetwork(b.Network)
	if err != nil {
		return err
	}
	entries := make(map[string]addressRecord, len(b.Receive)+len(b.Change))
	add := func(e Entry, change bool) error {
		if _, err := decodeAddress(e.Address, net); err != nil {
			return err
		}
		if _, dup := entries[e.Address]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateAddress, e.Address)
		}
		entries[e.Address] = addressRecord{Entry: e, change: change}
		return nil
	}
	for _, e := range b.Receive {
		if err := add(e, false); err != nil {
			return err
		}
	}
	for _, e := range b.Change {
		if err := add(e, true); err != nil {
			return err
		}
	}
	b.net = net
	b.entries = entries
	return nil
}

// AddReceive adds receive addresses.
func (b *AddressBook) AddReceive(entries ...Entry) error {
	return b.addEntries(false, entries)
}

// AddChange adds change addresses.
func (b *AddressBook) AddChange(entries ...Entry) error {
	return b.addEntries(true, entries)
}

func (b *AddressBook) addEntries(change bool, entries []Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	receive, chg := b.Receive, b.Change
	if change {
		b.Change = append(append([]Entry(nil), chg...), entries...)
	} else {
		b.Receive = append(append([]Entry(nil), receive...), entries...)
	}
	if err := b.reindex(); err != nil {
		b.Receive, b.Change = receive, chg
		return err
	}
	return nil
}

// NetworkConfig returns the book's network.
func (b *AddressBook) NetworkConfig() *NetworkConfig {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.net
}

// IsOwned reports whether addr belongs to the wallet.
func (b *AddressBook) IsOwned(addr string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.entries[addr]
	return ok
}

// IsChange reports whether addr is one of the wallet's change addresses.
func (b *AddressBook) IsChange(addr string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.entries[addr].change
}

// Addresses returns every owned address, receive addresses first.
func (b *AddressBook) Addresses() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.Receive)+len(b.Change))
	for _, e := range b.Receive {
		out = append(out, e.Address)
	}
	for _, e := range b.Change {
		out = append(out, e.Address)
	}
	return out
}

// ChangeAddress returns the change address at NextChangeIndex, wrapping
// around when the index runs past the list.
func (b *AddressBook) ChangeAddress() (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.Change) == 0 {
		return "", ErrNoChangeAddress
	}
	return b.Change[int(b.NextChangeIndex)%len(b.Change)].Address, nil
}

// UseChangeAddress advances NextChangeIndex past addr if addr is the
// current change address.
func (b *AddressBook) UseChangeAddress(addr string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.Change) == 0 {
		return
	}
	if b.Change[int(b.NextChangeIndex)%len(b.Change)].Address == addr {
		b.NextChangeIndex++
	}
}

// DerivationPath returns the derivation path recorded for addr.
func (b *AddressBook) DerivationPath(addr string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.entries[addr]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownAddress, addr)
	}
	return rec.DerivationPath, nil
}

// ScriptHash returns the Electrum-style scripthash of addr: the SHA256 of
// its output script, byte-reversed, hex-encoded.
func (b *AddressBook) ScriptHash(addr string) (string, error) {
	b.mu.RLock()
	net := b.net
	b.mu.RUnlock()
	return ScriptHash(addr, net)
}

// ScriptHash computes the Electrum-style scripthash of addr on net.
func ScriptHash(addr string, net *NetworkConfig) (string, error) {
	decoded, err := decodeAddress(addr, net)
	if err != nil {
		return "", err
	}
	script, err := txscript.PayToAddrScript(decoded)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidAddress, addr, err)
	}
	sum := sha256.Sum256(script)
	for i, j := 0, len(sum)-1; i < j; i, j = i+1, j-1 {
		sum[i], sum[j] = sum[j], sum[i]
	}
	return hex.EncodeToString(sum[:]), nil
}

// decodeAddress decodes addr and checks it belongs to net. DecodeAddress
// alone accepts segwit addresses of any known network.
func decodeAddress(addr string, net *NetworkConfig) (btcutil.Address, error) {
	decoded, err := btcutil.DecodeAddress(addr, net.Params)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidAddress, addr, err)
	}
	if !decoded.IsForNet(net.Params) {
		return nil, fmt.Errorf("%w: %s is not a %s address", ErrInvalidAddress, addr, net.Name)
	}
	return decoded, nil
}
