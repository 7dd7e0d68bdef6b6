package network

import (
	"context"
	"math"

	"github.com/btcsuite/btcd/wire"
)

// BlockchainService is the wallet's view of the Bitcoin network.
type BlockchainService interface {
	// ListUnspent returns the unspent outputs paying to any of addresses,
	// mempool outputs included.
	ListUnspent(ctx context.Context, addresses []string) ([]*UTXO, error)

	// GetTransaction returns a decoded transaction with its prevouts
	// resolved. It returns ErrTxNotFound for unknown txids.
	GetTransaction(ctx context.Context, txid string) (*Transaction, error)

	// GetOutspend reports whether and by what an output has been spent.
	GetOutspend(ctx context.Context, txid string, vout uint32) (*Outspend, error)

	// BroadcastTx submits a raw transaction hex to the network and returns the txid.
	BroadcastTx(ctx context.Context, rawTxHex string) (string, error)

	// GetBestBlockHeight returns the height of the current chain tip.
	GetBestBlockHeight(ctx context.Context) (uint64, error)
}

// UTXO represents an unspent transaction output.
type UTXO struct {
	TxID          string `json:"txid"`
	Vout          uint32 `json:"vout"`
	Amount        uint64 `json:"amount"` // satoshis
	ScriptPubKey  string `json:"script_pubkey"`
	Address       string `json:"address"`
	Confirmations int64  `json:"confirmations"`
	BlockHeight   uint64 `json:"block_height"` // 0 while unconfirmed
}

// TxInput is a transaction input with its previous output resolved.
type TxInput struct {
	PrevTxID string `json:"prev_txid"`
	PrevVout uint32 `json:"prev_vout"`
	Sequence uint32 `json:"sequence"`
	Value    uint64 `json:"value"`   // prevout value, satoshis
	Address  string `json:"address"` // prevout address, empty for non-standard scripts
}

// TxOutput is a transaction output.
type TxOutput struct {
	Vout         uint32 `json:"vout"`
	Value        uint64 `json:"value"`
	Address      string `json:"address"`
	ScriptPubKey string `json:"script_pubkey"`
}

// Transaction is a decoded transaction and its confirmation status.
type Transaction struct {
	TxID        string     `json:"txid"`
	Inputs      []TxInput  `json:"inputs"`
	Outputs     []TxOutput `json:"outputs"`
	Fee         uint64     `json:"fee"`
	Weight      uint64     `json:"weight"`
	VSize       uint64     `json:"vsize"`
	Confirmed   bool       `json:"confirmed"`
	BlockHash   string     `json:"block_hash"`
	BlockHeight uint64     `json:"block_height"`
}

// MaxRBFSequence is the highest input sequence number that signals BIP125
// replaceability.
const MaxRBFSequence = wire.MaxTxInSequenceNum - 2

// SignalsRBF reports whether any input opts in to replacement.
func (t *Transaction) SignalsRBF() bool {
	for _, in := range t.Inputs {
		if in.Sequence <= MaxRBFSequence {
			return true
		}
	}
	return false
}

// FeeRate returns the fee rate in sat/vB.
func (t *Transaction) FeeRate() float64 {
	if t.VSize == 0 {
		return 0
	}
	return float64(t.Fee) / float64(t.VSize)
}

// Outspend describes the spending status of an output.
type Outspend struct {
	Spent     bool   `json:"spent"`
	SpentBy   string `json:"txid,omitempty"` // empty when the spender is unknown
	Confirmed bool   `json:"confirmed"`      // the spend is mined
}

// RecommendedFees are mempool fee rates in sat/vB.
type RecommendedFees struct {
	FastestFee  uint64 `json:"fastestFee"`
	HalfHourFee uint64 `json:"halfHourFee"`
	HourFee     uint64 `json:"hourFee"`
	EconomyFee  uint64 `json:"economyFee"`
	MinimumFee  uint64 `json:"minimumFee"`
}

// vsizeFromWeight rounds weight units up to virtual bytes.
func vsizeFromWeight(weight uint64) uint64 {
	return uint64(math.Ceil(float64(weight) / 4))
}
