package network

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// Compile-time interface check.
var _ BlockchainService = (*RPCClient)(nil)

// btcToSat converts a BTC amount as returned by the node to satoshis.
func btcToSat(btc float64) (uint64, error) {
	amt, err := btcutil.NewAmount(btc)
	if err != nil {
		return 0, fmt.Errorf("%w: amount %v: %v", ErrInvalidResponse, btc, err)
	}
	if amt < 0 {
		return 0, fmt.Errorf("%w: negative amount %v", ErrInvalidResponse, btc)
	}
	return uint64(amt), nil
}

// listUnspentResult maps the JSON fields returned by the Bitcoin RPC listunspent call.
type listUnspentResult struct {
	TxID          string  `json:"txid"`
	Vout          uint32  `json:"vout"`
	Amount        float64 `json:"amount"`
	ScriptPubKey  string  `json:"scriptPubKey"`
	Address       string  `json:"address"`
	Confirmations int64   `json:"confirmations"`
}

// ListUnspent returns the wallet's unspent outputs for addresses.
// It calls `listunspent 0 9999999 [addresses]` and converts BTC amounts to
// satoshis. Block heights are derived from the tip when any output is
// confirmed.
func (c *RPCClient) ListUnspent(ctx context.Context, addresses []string) ([]*UTXO, error) {
	if addresses == nil {
		addresses = []string{}
	}
	params := []interface{}{0, 9999999, addresses}
	var results []listUnspentResult
	if err := c.Call(ctx, "listunspent", params, &results); err != nil {
		return nil, err
	}

	var tip uint64
	for _, r := range results {
		if r.Confirmations > 0 {
			h, err := c.GetBestBlockHeight(ctx)
			if err != nil {
				return nil, err
			}
			tip = h
			break
		}
	}

	utxos := make([]*UTXO, len(results))
	for i, r := range results {
		amount, err := btcToSat(r.Amount)
		if err != nil {
			return nil, err
		}
		utxos[i] = &UTXO{
			TxID:          r.TxID,
			Vout:          r.Vout,
			Amount:        amount,
			ScriptPubKey:  r.ScriptPubKey,
			Address:       r.Address,
			Confirmations: r.Confirmations,
		}
		if r.Confirmations > 0 && tip+1 >= uint64(r.Confirmations) {
			utxos[i].BlockHeight = tip + 1 - uint64(r.Confirmations)
		}
	}
	return utxos, nil
}

type scriptPubKeyResult struct {
	Hex     string `json:"hex"`
	Address string `json:"address"`
}

// verboseTxResult maps getrawtransaction with verbosity 2.
type verboseTxResult struct {
	TxID string `json:"txid"`
	Hex  string `json:"hex"`
	Vin  []struct {
		TxID     string `json:"txid"`
		Vout     uint32 `json:"vout"`
		Sequence uint32 `json:"sequence"`
		Prevout  *struct {
			Value        float64            `json:"value"`
			ScriptPubKey scriptPubKeyResult `json:"scriptPubKey"`
		} `json:"prevout"`
	} `json:"vin"`
	Vout []struct {
		Value        float64            `json:"value"`
		N            uint32             `json:"n"`
		ScriptPubKey scriptPubKeyResult `json:"scriptPubKey"`
	} `json:"vout"`
	Fee           *float64 `json:"fee"`
	Confirmations int64    `json:"confirmations"`
	BlockHash     string   `json:"blockhash"`
	BlockHeight   uint64   `json:"blockheight"`
}

// GetTransaction calls `getrawtransaction "txid" 2`, which resolves
// prevouts and the fee. Size and weight are computed from the raw hex.
func (c *RPCClient) GetTransaction(ctx context.Context, txid string) (*Transaction, error) {
	params := []interface{}{txid, 2}
	var result verboseTxResult
	if err := c.Call(ctx, "getrawtransaction", params, &result); err != nil {
		if isRPCCode(err, rpcInvalidAddressOrKey) {
			return nil, fmt.Errorf("%w: %s", ErrTxNotFound, txid)
		}
		return nil, err
	}

	raw, err := hex.DecodeString(result.Hex)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid tx hex: %v", ErrInvalidResponse, err)
	}
	var msgTx wire.MsgTx
	if err := msgTx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("%w: decode tx: %v", ErrInvalidResponse, err)
	}
	weight := uint64(msgTx.SerializeSizeStripped()*3 + msgTx.SerializeSize())

	tx := &Transaction{
		TxID:      msgTx.TxHash().String(),
		Weight:    weight,
		VSize:     vsizeFromWeight(weight),
		Confirmed: result.Confirmations > 0,
		BlockHash: result.BlockHash,
	}
	if tx.Confirmed {
		tx.BlockHeight = result.BlockHeight
	}

	var inTotal uint64
	prevoutsKnown := true
	for _, vin := range result.Vin {
		in := TxInput{PrevTxID: vin.TxID, PrevVout: vin.Vout, Sequence: vin.Sequence}
		if vin.Prevout != nil {
			if in.Value, err = btcToSat(vin.Prevout.Value); err != nil {
				return nil, err
			}
			in.Address = vin.Prevout.ScriptPubKey.Address
		} else {
			prevoutsKnown = false
		}
		inTotal += in.Value
		tx.Inputs = append(tx.Inputs, in)
	}

	var outTotal uint64
	for _, vout := range result.Vout {
		value, err := btcToSat(vout.Value)
		if err != nil {
			return nil, err
		}
		outTotal += value
		tx.Outputs = append(tx.Outputs, TxOutput{
			Vout:         vout.N,
			Value:        value,
			Address:      vout.ScriptPubKey.Address,
			ScriptPubKey: vout.ScriptPubKey.Hex,
		})
	}

	switch {
	case result.Fee != nil:
		if tx.Fee, err = btcToSat(*result.Fee); err != nil {
			return nil, err
		}
	case prevoutsKnown && inTotal >= outTotal:
		tx.Fee = inTotal - outTotal
	}
	return tx, nil
}

// gettxoutResult maps the JSON fields returned by the Bitcoin RPC gettxout call.
// The pointer type allows detecting JSON null (spent output) vs present result.
type gettxoutResult struct {
	Value         float64            `json:"value"`
	Confirmations int64              `json:"confirmations"`
	ScriptPubKey  scriptPubKeyResult `json:"scriptPubKey"`
}

// GetOutspend reports whether an output was spent by a mined transaction.
// It calls `gettxout "txid" vout false`, which ignores the mempool. A null
// result means the output is spent in a block, unless its own transaction
// is still unconfirmed. bitcoind does not name the spender.
func (c *RPCClient) GetOutspend(ctx context.Context, txid string, vout uint32) (*Outspend, error) {
	params := []interface{}{txid, vout, false}
	var result *gettxoutResult
	if err := c.Call(ctx, "gettxout", params, &result); err != nil {
		return nil, err
	}
	if result != nil {
		return &Outspend{}, nil
	}

	var status struct {
		Confirmations int64 `json:"confirmations"`
	}
	if err := c.Call(ctx, "getrawtransaction", []interface{}{txid, true}, &status); err != nil {
		if isRPCCode(err, rpcInvalidAddressOrKey) {
			return nil, fmt.Errorf("%w: %s", ErrTxNotFound, txid)
		}
		return nil, err
	}
	if status.Confirmations == 0 {
		// Only a mempool spend is possible.
		return &Outspend{}, nil
	}
	return &Outspend{Spent: true, Confirmed: true}, nil
}

// BroadcastTx submits a raw transaction hex to the network and returns the txid.
// It calls `sendrawtransaction "hex"`. RPC errors are wrapped with ErrBroadcastRejected.
func (c *RPCClient) BroadcastTx(ctx context.Context, rawTxHex string) (string, error) {
	params := []interface{}{rawTxHex}
	var txid string
	if err := c.Call(ctx, "sendrawtransaction", params, &txid); err != nil {
		return "", fmt.Errorf("%w: %w", ErrBroadcastRejected, err)
	}
	return txid, nil
}

// GetBestBlockHeight returns the height of the current chain tip.
// It calls `getblockcount` which returns an integer block height.
func (c *RPCClient) GetBestBlockHeight(ctx context.Context) (uint64, error) {
	params := []interface{}{}
	var raw json.RawMessage
	if err := c.Call(ctx, "getblockcount", params, &raw); err != nil {
		return 0, err
	}
	// getblockcount returns an integer, but JSON numbers are float64.
	var height float64
	if err := json.Unmarshal(raw, &height); err != nil {
		return 0, fmt.Errorf("%w: invalid block height: %v", ErrInvalidResponse, err)
	}
	return uint64(height), nil
}

// estimateSmartFeeResult maps `estimatesmartfee`. FeeRate is BTC/kvB.
type estimateSmartFeeResult struct {
	FeeRate *float64 `json:"feerate"`
	Errors  []string `json:"errors"`
	Blocks  int64    `json:"blocks"`
}

// EstimateSmartFee returns the node's fee estimate in sat/vB for
// confirmation within confTarget blocks, rounded up.
func (c *RPCClient) EstimateSmartFee(ctx context.Context, confTarget int64) (uint64, error) {
	var result estimateSmartFeeResult
	if err := c.Call(ctx, "estimatesmartfee", []interface{}{confTarget}, &result); err != nil {
		return 0, err
	}
	if result.FeeRate == nil {
		return 0, fmt.Errorf("%w: no fee estimate for %d blocks: %v", ErrInvalidResponse, confTarget, result.Errors)
	}
	perKvB, err := btcToSat(*result.FeeRate)
	if err != nil {
		return 0, err
	}
	return uint64(math.Ceil(float64(perKvB) / 1000)), nil
}
