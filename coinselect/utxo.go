package coinselect

import "fmt"

// Utxo is an unspent output offered to the selector. Values are copied in
// and never modified.
type Utxo struct {
	Address        string `json:"address"`
	ScriptHash     string `json:"scriptHash"`
	DerivationPath string `json:"derivationPath,omitempty"`
	TxID           string `json:"txid"`
	Vout           uint32 `json:"vout"`
	BlockHeight    uint32 `json:"height"` // 0 while unconfirmed
	Value          uint64 `json:"value"`  // satoshis
}

// Outpoint returns the "txid:vout" key of the output.
func (u Utxo) Outpoint() string {
	return fmt.Sprintf("%s:%d", u.TxID, u.Vout)
}

// Confirmed reports whether the output has been mined.
func (u Utxo) Confirmed() bool {
	return u.BlockHeight > 0
}

// Output is a destination of a draft transaction.
type Output struct {
	Address string `json:"address"`
	Value   uint64 `json:"value"`
	Vout    uint32 `json:"vout"`
}

// SumUtxos returns the total value of utxos.
func SumUtxos(utxos []Utxo) uint64 {
	var total uint64
	for _, u := range utxos {
		total += u.Value
	}
	return total
}

// SumOutputs returns the total value of outputs.
func SumOutputs(outputs []Output) uint64 {
	var total uint64
	for _, o := range outputs {
		total += o.Value
	}
	return total
}
