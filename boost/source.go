package boost

import (
	"context"
	"fmt"

	"github.com/bitfsorg/feebump-go/coinselect"
	"github.com/bitfsorg/feebump-go/network"
)

// AddressBook is the wallet's view of its own addresses.
// *wallet.AddressBook implements it.
type AddressBook interface {
	IsOwned(addr string) bool
	IsChange(addr string) bool
	Addresses() []string
	ChangeAddress() (string, error)
	UseChangeAddress(addr string)
	ScriptHash(addr string) (string, error)
	DerivationPath(addr string) (string, error)
}

// Source turns the network's UTXO view into selector candidates for the
// wallet's addresses.
type Source struct {
	chain network.BlockchainService
	book  AddressBook
}

// NewSource pairs a data source with the wallet's address book.
func NewSource(chain network.BlockchainService, book AddressBook) *Source {
	return &Source{chain: chain, book: book}
}

// Utxos returns every unspent output of the wallet.
func (s *Source) Utxos(ctx context.Context) ([]coinselect.Utxo, error) {
	return s.list(ctx, s.book.Addresses())
}

// UnspentOutputsOf returns the outputs of tx that pay the wallet and are
// still unspent.
func (s *Source) UnspentOutputsOf(ctx context.Context, tx *network.Transaction) ([]coinselect.Utxo, error) {
	var addrs []string
	seen := make(map[string]struct{})
	for _, out := range tx.Outputs {
		if !s.book.IsOwned(out.Address) {
			continue
		}
		if _, ok := seen[out.Address]; !ok {
			seen[out.Address] = struct{}{}
			addrs = append(addrs, out.Address)
		}
	}
	if len(addrs) == 0 {
		return nil, nil
	}
	utxos, err := s.list(ctx, addrs)
	if err != nil {
		return nil, err
	}
	var out []coinselect.Utxo
	for _, u := range utxos {
		if u.TxID == tx.TxID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Source) list(ctx context.Context, addrs []string) ([]coinselect.Utxo, error) {
	if len(addrs) == 0 {
		return nil, nil
	}
	raw, err := s.chain.ListUnspent(ctx, addrs)
	if err != nil {
		return nil, fmt.Errorf("boost: list unspent: %w", err)
	}
	out := make([]coinselect.Utxo, 0, len(raw))
	for _, u := range raw {
		if !s.book.IsOwned(u.Address) {
			continue
		}
		utxo, err := s.toUtxo(u.Address, u.TxID, u.Vout, u.Amount)
		if err != nil {
			return nil, err
		}
		utxo.BlockHeight = uint32(u.BlockHeight)
		out = append(out, utxo)
	}
	return out, nil
}

// toUtxo fills the wallet metadata for an output paying addr.
func (s *Source) toUtxo(addr, txid string, vout uint32, value uint64) (coinselect.Utxo, error) {
	u := coinselect.Utxo{Address: addr, TxID: txid, Vout: vout, Value: value}
	if !s.book.IsOwned(addr) {
		return u, nil
	}
	var err error
	if u.ScriptHash, err = s.book.ScriptHash(addr); err != nil {
		return u, err
	}
	if u.DerivationPath, err = s.book.DerivationPath(addr); err != nil {
		return u, err
	}
	return u, nil
}
