package boost

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/feebump-go/history"
	"github.com/bitfsorg/feebump-go/network"
)

func TestEvaluateReplaceableWithChange(t *testing.T) {
	chain := newFakeChain()
	orig := rbfOriginal(txid(1), 2)
	chain.addTx(orig)
	chain.addUtxo(orig.TxID, 1, change1, orig.Outputs[1].Value, 0)
	chain.outspends[txid(100)+":0"] = &network.Outspend{Spent: true, SpentBy: orig.TxID}

	e := NewEvaluator(chain.service(), newTestBook(t), nil)
	elig, err := e.Evaluate(context.Background(), orig.TxID)
	require.NoError(t, err)
	assert.Equal(t, Eligibility{CanBoost: true, SupportsRBF: true, SupportsCPFP: true}, elig)
	assert.Equal(t, history.ReplaceByFee, elig.Preferred())
}

func TestEvaluateIncomingPaymentIsCPFPOnly(t *testing.T) {
	chain := newFakeChain()
	in := incomingPayment(txid(2), 80000, 282)
	chain.addTx(in)
	chain.addUtxo(in.TxID, 0, recv1, 80000, 0)

	e := NewEvaluator(chain.service(), newTestBook(t), nil)
	elig, err := e.Evaluate(context.Background(), in.TxID)
	require.NoError(t, err)
	assert.True(t, elig.CanBoost)
	assert.False(t, elig.SupportsRBF)
	assert.True(t, elig.SupportsCPFP)
	assert.Equal(t, history.ChildPaysForParent, elig.Preferred())
}

func TestEvaluateSpentOutputIsNotCPFP(t *testing.T) {
	chain := newFakeChain()
	in := incomingPayment(txid(2), 80000, 282)
	chain.addTx(in)

	e := NewEvaluator(chain.service(), newTestBook(t), nil)
	elig, err := e.Evaluate(context.Background(), in.TxID)
	require.NoError(t, err)
	assert.Equal(t, Eligibility{}, elig)
	assert.Zero(t, elig.Preferred())
}

func TestEvaluateNotFoundOrConfirmed(t *testing.T) {
	chain := newFakeChain()
	mined := rbfOriginal(txid(3), 2)
	mined.Confirmed = true
	mined.BlockHeight = 800000
	chain.addTx(mined)

	e := NewEvaluator(chain.service(), newTestBook(t), nil)
	for _, id := range []string{txid(3), txid(404)} {
		elig, err := e.Evaluate(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, Eligibility{}, elig)
	}
}

func TestEvaluateRBFConditions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(tx *network.Transaction, chain *fakeChain)
		want   bool
	}{
		{"signals", func(*network.Transaction, *fakeChain) {}, true},
		{"final sequence", func(tx *network.Transaction, _ *fakeChain) {
			tx.Inputs[0].Sequence = 0xfffffffe
		}, false},
		{"foreign inputs", func(tx *network.Transaction, _ *fakeChain) {
			tx.Inputs[0].Address = external
		}, false},
		{"input taken by mined conflict", func(tx *network.Transaction, chain *fakeChain) {
			chain.outspends[txid(100)+":0"] = &network.Outspend{Spent: true, SpentBy: txid(77), Confirmed: true}
		}, false},
		{"one input still free", func(tx *network.Transaction, chain *fakeChain) {
			tx.Inputs = append(tx.Inputs, network.TxInput{
				PrevTxID: txid(102), Sequence: network.MaxRBFSequence, Value: 5000, Address: recv2,
			})
			chain.outspends[txid(100)+":0"] = &network.Outspend{Spent: true, Confirmed: true}
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := newFakeChain()
			orig := rbfOriginal(txid(1), 2)
			tt.mutate(orig, chain)
			chain.addTx(orig)

			e := NewEvaluator(chain.service(), newTestBook(t), nil)
			elig, err := e.Evaluate(context.Background(), orig.TxID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, elig.SupportsRBF)
			assert.Equal(t, tt.want, elig.CanBoost)
		})
	}
}

func TestEvaluatePropagatesErrors(t *testing.T) {
	chain := newFakeChain()
	chain.addTx(rbfOriginal(txid(1), 2))
	chain.outspendErr = network.ErrConnectionFailed

	e := NewEvaluator(chain.service(), newTestBook(t), nil)
	_, err := e.Evaluate(context.Background(), txid(1))
	assert.ErrorIs(t, err, network.ErrConnectionFailed)

	svc := chain.service()
	svc.GetTransactionFn = func(context.Context, string) (*network.Transaction, error) {
		return nil, errors.New("node down")
	}
	_, err = NewEvaluator(svc, newTestBook(t), nil).Evaluate(context.Background(), txid(1))
	assert.ErrorContains(t, err, "node down")

	_, err = e.Evaluate(context.Background(), "xyz")
	assert.ErrorIs(t, err, ErrInvalidTxID)
}

func TestEligibilitySupports(t *testing.T) {
	e := Eligibility{CanBoost: true, SupportsCPFP: true}
	assert.True(t, e.Supports(history.ChildPaysForParent))
	assert.False(t, e.Supports(history.ReplaceByFee))
	assert.False(t, e.Supports(0))
}
