package boost

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/feebump-go/coinselect"
	"github.com/bitfsorg/feebump-go/feerate"
	"github.com/bitfsorg/feebump-go/history"
	"github.com/bitfsorg/feebump-go/network"
	"github.com/bitfsorg/feebump-go/wallet"
)

const (
	recv1    = "bc1qqyqszqgpqyqszqgpqyqszqgpqyqszqgpyfl4f3"
	recv2    = "bc1qqgpqyqszqgpqyqszqgpqyqszqgpqyqsz4desz8"
	change1  = "bc1qqvpsxqcrqvpsxqcrqvpsxqcrqvpsxqcr5ac3gx"
	change2  = "bc1qqszqgpqyqszqgpqyqszqgpqyqszqgpqy5dl506"
	external = "bc1qq5zs2pg9q5zs2pg9q5zs2pg9q5zs2pg94a749m"

	// 1 P2WPKH input, 2 P2WPKH outputs.
	vsize1in2out = 141
	// 1 P2WPKH input, 1 P2WPKH output.
	vsize1in1out = 110
)

func txid(n int) string {
	return fmt.Sprintf("%064x", n)
}

func newTestBook(t *testing.T) *wallet.AddressBook {
	t.Helper()
	b, err := wallet.NewAddressBook("mainnet", "")
	require.NoError(t, err)
	require.NoError(t, b.AddReceive(wallet.Entry{Address: recv1, DerivationPath: "m/84'/0'/0'/0/0"}, wallet.Entry{Address: recv2}))
	require.NoError(t, b.AddChange(wallet.Entry{Address: change1, DerivationPath: "m/84'/0'/0'/1/0"}, wallet.Entry{Address: change2}))
	return b
}

// fakeChain is an in-memory network backing a MockBlockchainService.
type fakeChain struct {
	mu        sync.Mutex
	txs       map[string]*network.Transaction
	utxos     []*network.UTXO
	outspends map[string]*network.Outspend
	broadcast []string

	broadcastFn func(ctx context.Context, raw string) (string, error)
	outspendErr error
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		txs:       make(map[string]*network.Transaction),
		outspends: make(map[string]*network.Outspend),
	}
}

func (f *fakeChain) addTx(tx *network.Transaction) {
	f.txs[tx.TxID] = tx
}

func (f *fakeChain) addUtxo(txid string, vout uint32, addr string, value uint64, height uint64) {
	f.utxos = append(f.utxos, &network.UTXO{TxID: txid, Vout: vout, Address: addr, Amount: value, BlockHeight: height})
}

func (f *fakeChain) service() *network.MockBlockchainService {
	return &network.MockBlockchainService{
		ListUnspentFn: func(_ context.Context, addresses []string) ([]*network.UTXO, error) {
			want := make(map[string]bool, len(addresses))
			for _, a := range addresses {
				want[a] = true
			}
			var out []*network.UTXO
			for _, u := range f.utxos {
				if want[u.Address] {
					c := *u
					out = append(out, &c)
				}
			}
			return out, nil
		},
		GetTransactionFn: func(_ context.Context, id string) (*network.Transaction, error) {
			tx, ok := f.txs[id]
			if !ok {
				return nil, fmt.Errorf("%w: %s", network.ErrTxNotFound, id)
			}
			c := *tx
			return &c, nil
		},
		GetOutspendFn: func(_ context.Context, id string, vout uint32) (*network.Outspend, error) {
			if f.outspendErr != nil {
				return nil, f.outspendErr
			}
			f.mu.Lock()
			defer f.mu.Unlock()
			if out, ok := f.outspends[fmt.Sprintf("%s:%d", id, vout)]; ok {
				return out, nil
			}
			return &network.Outspend{}, nil
		},
		BroadcastTxFn: func(ctx context.Context, raw string) (string, error) {
			f.mu.Lock()
			f.broadcast = append(f.broadcast, raw)
			f.mu.Unlock()
			if f.broadcastFn != nil {
				return f.broadcastFn(ctx, raw)
			}
			return txid(500), nil
		},
		GetBestBlockHeightFn: func(context.Context) (uint64, error) {
			return 800010, nil
		},
	}
}

// rbfOriginal is an unconfirmed replaceable payment from recv1 to an
// external address with change, at rate sat/vB.
func rbfOriginal(id string, rate uint64) *network.Transaction {
	fee := rate * vsize1in2out
	return &network.Transaction{
		TxID: id,
		Inputs: []network.TxInput{{
			PrevTxID: txid(100), PrevVout: 0, Sequence: network.MaxRBFSequence,
			Value: 100000, Address: recv1,
		}},
		Outputs: []network.TxOutput{
			{Vout: 0, Value: 60000, Address: external},
			{Vout: 1, Value: 40000 - fee, Address: change1},
		},
		Fee:    fee,
		Weight: vsize1in2out * 4,
		VSize:  vsize1in2out,
	}
}

// incomingPayment is an unconfirmed, non-replaceable payment from an
// external wallet paying value to recv1 at vout 0.
func incomingPayment(id string, value, fee uint64) *network.Transaction {
	return &network.Transaction{
		TxID: id,
		Inputs: []network.TxInput{{
			PrevTxID: txid(101), PrevVout: 3, Sequence: 0xffffffff,
			Value: value + 20000 + fee, Address: external,
		}},
		Outputs: []network.TxOutput{
			{Vout: 0, Value: value, Address: recv1},
			{Vout: 1, Value: 20000, Address: external},
		},
		Fee:    fee,
		Weight: vsize1in2out * 4,
		VSize:  vsize1in2out,
	}
}

func newTestBuilder(t *testing.T, chain *fakeChain, fees feerate.Provider) (*Builder, *wallet.AddressBook) {
	t.Helper()
	book := newTestBook(t)
	return NewBuilder(chain.service(), book, fees, nil, nil), book
}

type fakeSigner struct {
	err     error
	calls   int
	entered chan struct{}
	release chan struct{}
}

func (s *fakeSigner) Sign(_ context.Context, draft *DraftTransaction) (string, error) {
	s.calls++
	if s.entered != nil {
		s.entered <- struct{}{}
		<-s.release
	}
	if s.err != nil {
		return "", s.err
	}
	return fmt.Sprintf("signed-%s-%d", draft.Kind, draft.Fee), nil
}

type fakeLedger struct {
	items     []history.ActivityItem
	removed   []string
	published []history.ActivityItem
	rawErr    error
	ctxErrs   []error
}

func (l *fakeLedger) RawActivity(ctx context.Context) ([]history.ActivityItem, error) {
	l.ctxErrs = append(l.ctxErrs, ctx.Err())
	if l.rawErr != nil {
		return nil, l.rawErr
	}
	return append([]history.ActivityItem(nil), l.items...), nil
}

func (l *fakeLedger) Publish(ctx context.Context, items []history.ActivityItem) error {
	l.ctxErrs = append(l.ctxErrs, ctx.Err())
	l.published = items
	return nil
}

func (l *fakeLedger) Remove(ctx context.Context, id string) error {
	l.ctxErrs = append(l.ctxErrs, ctx.Err())
	l.removed = append(l.removed, id)
	kept := l.items[:0]
	for _, it := range l.items {
		if it.TxID != id {
			kept = append(kept, it)
		}
	}
	l.items = kept
	return nil
}

func sumValues(outputs []coinselect.Output) uint64 {
	return coinselect.SumOutputs(outputs)
}
