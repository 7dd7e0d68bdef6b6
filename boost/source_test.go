package boost

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/feebump-go/network"
)

func TestSourceUtxos(t *testing.T) {
	chain := newFakeChain()
	chain.addUtxo(txid(1), 0, recv1, 5000, 799990)
	chain.addUtxo(txid(2), 1, change2, 7000, 0)
	chain.addUtxo(txid(3), 0, external, 9000, 799990)
	book := newTestBook(t)
	src := NewSource(chain.service(), book)

	utxos, err := src.Utxos(context.Background())
	require.NoError(t, err)
	require.Len(t, utxos, 2)

	assert.Equal(t, recv1, utxos[0].Address)
	assert.Equal(t, uint32(799990), utxos[0].BlockHeight)
	assert.True(t, utxos[0].Confirmed())
	assert.Equal(t, "m/84'/0'/0'/0/0", utxos[0].DerivationPath)
	sh, err := book.ScriptHash(recv1)
	require.NoError(t, err)
	assert.Equal(t, sh, utxos[0].ScriptHash)

	assert.Equal(t, txid(2)+":1", utxos[1].Outpoint())
	assert.False(t, utxos[1].Confirmed())
}

func TestSourceUnspentOutputsOf(t *testing.T) {
	chain := newFakeChain()
	tx := incomingPayment(txid(2), 80000, 282)
	chain.addUtxo(tx.TxID, 0, recv1, 80000, 0)
	chain.addUtxo(txid(3), 0, recv1, 1000, 0)
	src := NewSource(chain.service(), newTestBook(t))

	utxos, err := src.UnspentOutputsOf(context.Background(), tx)
	require.NoError(t, err)
	require.Len(t, utxos, 1)
	assert.Equal(t, uint64(80000), utxos[0].Value)

	foreign := &network.Transaction{TxID: txid(4), Outputs: []network.TxOutput{{Address: external, Value: 1}}}
	utxos, err = src.UnspentOutputsOf(context.Background(), foreign)
	require.NoError(t, err)
	assert.Empty(t, utxos)
}

func TestSourceListError(t *testing.T) {
	svc := newFakeChain().service()
	svc.ListUnspentFn = func(context.Context, []string) ([]*network.UTXO, error) {
		return nil, network.ErrConnectionFailed
	}
	_, err := NewSource(svc, newTestBook(t)).Utxos(context.Background())
	assert.ErrorIs(t, err, network.ErrConnectionFailed)
}
