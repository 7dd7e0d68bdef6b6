package coinselect

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// AddressType is the script template of an address, as far as fee
// estimation cares.
type AddressType int

const (
	// AddressUnknown covers anything that fails to decode or is not one of
	// the templates below. It is costed at the heaviest known size.
	AddressUnknown AddressType = iota
	AddressP2PKH
	AddressP2SH // assumed P2SH-P2WPKH when spending
	AddressP2WPKH
	AddressP2TR

	addressTypeCount
)

var addressTypeNames = [addressTypeCount]string{"unknown", "p2pkh", "p2sh", "p2wpkh", "p2tr"}

func (t AddressType) String() string {
	if t < 0 || t >= addressTypeCount {
		return "invalid"
	}
	return addressTypeNames[t]
}

// isWitness reports whether spending an input of this type carries witness data.
func (t AddressType) isWitness() bool {
	return t == AddressP2SH || t == AddressP2WPKH || t == AddressP2TR
}

// Weight units. Inputs include a signature; outputs are value + script.
const (
	// version(4) + locktime(4) + input count(1) + output count(1), times 4.
	baseWeight = 10 * 4

	// segwit marker and flag bytes.
	witnessHeaderWeight = 2

	// DustLimit is the smallest change output worth creating, in satoshis.
	DustLimit = 546
)

var inputWeight = [addressTypeCount]uint64{
	AddressUnknown: 148 * 4,
	AddressP2PKH:   148 * 4,
	AddressP2SH:    108 + 64*4,
	AddressP2WPKH:  108 + 41*4,
	AddressP2TR:    66 + 41*4,
}

var outputWeight = [addressTypeCount]uint64{
	AddressUnknown: 43 * 4,
	AddressP2PKH:   34 * 4,
	AddressP2SH:    32 * 4,
	AddressP2WPKH:  31 * 4,
	AddressP2TR:    43 * 4,
}

// Classify decodes address for params and returns its type. A nil params
// means mainnet.
func Classify(address string, params *chaincfg.Params) AddressType {
	if params == nil {
		params = &chaincfg.MainNetParams
	}
	addr, err := btcutil.DecodeAddress(address, params)
	if err != nil {
		return AddressUnknown
	}
	switch addr.(type) {
	case *btcutil.AddressPubKeyHash:
		return AddressP2PKH
	case *btcutil.AddressScriptHash:
		return AddressP2SH
	case *btcutil.AddressWitnessPubKeyHash:
		return AddressP2WPKH
	case *btcutil.AddressTaproot:
		return AddressP2TR
	default:
		return AddressUnknown
	}
}

// Histogram counts addresses per type.
type Histogram [addressTypeCount]int

// Add counts one address of type t.
func (h *Histogram) Add(t AddressType) {
	if t < 0 || t >= addressTypeCount {
		t = AddressUnknown
	}
	h[t]++
}

// Total returns the number of counted addresses.
func (h Histogram) Total() int {
	n := 0
	for _, c := range h {
		n += c
	}
	return n
}

// UtxoHistogram classifies the address of every utxo.
func UtxoHistogram(utxos []Utxo, params *chaincfg.Params) Histogram {
	var h Histogram
	for _, u := range utxos {
		h.Add(Classify(u.Address, params))
	}
	return h
}

// OutputHistogram classifies the address of every output.
func OutputHistogram(outputs []Output, params *chaincfg.Params) Histogram {
	var h Histogram
	for _, o := range outputs {
		h.Add(Classify(o.Address, params))
	}
	return h
}

// ByteCost returns the estimated virtual size in vbytes of a transaction
// with the given input and output types. messageLen > 0 adds a zero-value
// OP_RETURN output carrying that many bytes.
func ByteCost(inputs, outputs Histogram, messageLen int) uint64 {
	weight := uint64(baseWeight)
	witness := false
	for t, n := range inputs {
		weight += uint64(n) * inputWeight[t]
		if n > 0 && AddressType(t).isWitness() {
			witness = true
		}
	}
	if witness {
		weight += witnessHeaderWeight
	}
	for t, n := range outputs {
		weight += uint64(n) * outputWeight[t]
	}
	if messageLen > 0 {
		weight += opReturnSize(messageLen) * 4
	}
	return (weight + 3) / 4
}

// opReturnSize is value(8) + script length(1) + OP_RETURN(1) + push opcode(s) + data.
func opReturnSize(n int) uint64 {
	push := 1
	switch {
	case n > 255:
		push = 3
	case n > 75:
		push = 2
	}
	return uint64(8 + 1 + 1 + push + n)
}
